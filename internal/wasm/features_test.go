package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatures_ZeroIsInvalid(t *testing.T) {
	f := Features(0)
	f = f.Set(0, true)
	require.False(t, f.Get(0))
}

func TestFeatures_SetAndGet(t *testing.T) {
	for _, tc := range []Features{1, FeatureSIMD, 1 << 63} {
		f := Features(0)
		require.False(t, f.Get(tc))
		f = f.Set(tc, true)
		require.True(t, f.Get(tc))
		f = f.Set(tc, false)
		require.False(t, f.Get(tc))
	}
}

func TestFeatures_String(t *testing.T) {
	tests := []struct {
		name     string
		feature  Features
		expected string
	}{
		{name: "none", feature: 0, expected: ""},
		{name: "mutable-global", feature: FeatureMutableGlobal, expected: "mutable-global"},
		{name: "combo", feature: FeatureMutableGlobal | FeatureMultiValue, expected: "multi-value|mutable-global"},
		{name: "undefined bit", feature: 1 << 63, expected: ""},
		{
			name:    "2.0",
			feature: Features20220419,
			expected: "bulk-memory-operations|multi-value|mutable-global|" +
				"nontrapping-float-to-int-conversion|reference-types|sign-extension-ops",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.feature.String())
		})
	}
}

func TestFeatures_Require(t *testing.T) {
	require.NoError(t, FeatureMutableGlobal.Require(FeatureMutableGlobal))
	err := Features(0).Require(FeatureMutableGlobal)
	require.EqualError(t, err, `feature "mutable-global" is disabled`)
}
