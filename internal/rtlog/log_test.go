package rtlog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFormattedLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logrus.DebugLevel)
	l.WithField("fn", "$add").Warnf("duplicate type index for %s", "$add")
	require.Contains(t, buf.String(), "duplicate type index")
	require.Contains(t, buf.String(), `fn="$add"`)
}

func TestDiscardDropsOutput(t *testing.T) {
	l := Discard()
	l.Errorf("should not panic or write anywhere: %v", errors.New("boom"))
}
