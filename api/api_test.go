package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueTypeName(t *testing.T) {
	tests := []struct {
		in       ValueType
		expected string
	}{
		{ValueTypeI32, "i32"},
		{ValueTypeI64, "i64"},
		{ValueTypeF32, "f32"},
		{ValueTypeF64, "f64"},
		{ValueTypeFuncref, "funcref"},
		{ValueTypeExternref, "externref"},
		{0xff, "unknown"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, ValueTypeName(tt.in))
	}
}

func TestExternTypeName(t *testing.T) {
	require.Equal(t, "func", ExternTypeName(ExternTypeFunc))
	require.Equal(t, "table", ExternTypeName(ExternTypeTable))
	require.Equal(t, "memory", ExternTypeName(ExternTypeMemory))
	require.Equal(t, "global", ExternTypeName(ExternTypeGlobal))
	require.Equal(t, "0xff", ExternTypeName(0xff))
}

func TestEncodeDecodeI32(t *testing.T) {
	require.Equal(t, int32(-1), DecodeI32(EncodeI32(-1)))
	require.Equal(t, uint32(1), DecodeU32(EncodeI32(1)))
}
