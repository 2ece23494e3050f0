package reflectfn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"wrun/api"
	"wrun/internal/wasm"
)

func TestBind_NumericAdd(t *testing.T) {
	ft, hostFn, err := Bind(func(x, y uint32) uint32 { return x + y })
	require.NoError(t, err)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, ft.Params)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, ft.Results)

	results, err := hostFn(&wasm.HostContext{}, []uint64{2, 40})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestBind_ContextAndFloat(t *testing.T) {
	ft, hostFn, err := Bind(func(ctx context.Context, x float64) float64 { return x * 2 })
	require.NoError(t, err)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeF64}, ft.Params)

	results, err := hostFn(&wasm.HostContext{}, []uint64{api.EncodeF64(21)})
	require.NoError(t, err)
	require.Equal(t, 42.0, api.DecodeF64(results[0]))
}

func TestBind_ErrorResult(t *testing.T) {
	boom := errors.New("boom")
	_, hostFn, err := Bind(func(x uint32) (uint32, error) {
		if x == 0 {
			return 0, boom
		}
		return x, nil
	})
	require.NoError(t, err)

	_, err = hostFn(&wasm.HostContext{}, []uint64{0})
	require.ErrorIs(t, err, boom)

	results, err := hostFn(&wasm.HostContext{}, []uint64{7})
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, results)
}

func TestBind_RejectsNonFunc(t *testing.T) {
	_, _, err := Bind(42)
	require.Error(t, err)
}
