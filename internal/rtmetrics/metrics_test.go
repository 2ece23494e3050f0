package rtmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordTrapIncrementsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordTrap("IntegerDivideByZero")
	m.RecordTrap("IntegerDivideByZero")
	m.RecordTrap("Unreachable")

	got := counterValue(t, m.TrapsTotal.WithLabelValues("IntegerDivideByZero"))
	require.Equal(t, float64(2), got)
}

func TestNewWithNilRegistererDoesNotPanic(t *testing.T) {
	m := New(nil)
	m.ObserveInstantiate(time.Now())
	m.RecordTrap("Unreachable")
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var metric dto.Metric
	require.NoError(t, c.Write(&metric))
	return metric.GetCounter().GetValue()
}
