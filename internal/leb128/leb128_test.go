package leb128

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeUint32(t *testing.T) {
	tests := []struct {
		name     string
		in       []byte
		expected uint32
	}{
		{"one byte", []byte{8}, 8},
		{"two bytes", []byte{0x80, 0x01}, 128},
		{"high bit of byte clear, no continuation", []byte{0x40}, 64},
		{"max u32", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}, 0xFFFFFFFF},
		{"max u32 with low three bits clear", []byte{0xF8, 0xFF, 0xFF, 0xFF, 0x0F}, 0xFFFFFFF8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DecodeUint32(bytes.NewReader(tt.in))
			require.NoError(t, err)
			require.Equal(t, tt.expected, v)
		})
	}
}

func TestDecodeUint32_Errors(t *testing.T) {
	_, err := DecodeUint32(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x7F}))
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = DecodeUint32(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}))
	require.ErrorIs(t, err, ErrTooLong)

	_, err = DecodeUint32(bytes.NewReader(nil))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeInt32_SignExtension(t *testing.T) {
	v, err := DecodeInt32(bytes.NewReader([]byte{0x7f}))
	require.NoError(t, err)
	require.Equal(t, int32(-1), v)

	v, err = DecodeInt32(bytes.NewReader([]byte{0x80, 0x7f}))
	require.NoError(t, err)
	require.Equal(t, int32(-128), v)
}

func TestRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 0x7fffffff, 0xffffffff} {
		enc := EncodeUint32(nil, v)
		got, n, err := LoadUint32(enc)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, uint64(len(enc)), n)
	}
	for _, v := range []int64{0, -1, 1, -128, 128, -0x7fffffffff, 0x7fffffffff} {
		enc := EncodeInt64(nil, v)
		got, n, err := LoadInt64(enc)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, uint64(len(enc)), n)
	}
}
