package main

import (
	"fmt"
	"strconv"
	"strings"

	"wrun/internal/wasm"
)

// applyFeatureFlags applies a list of NAME=BOOL strings (as repeated --feature flags) on top of base,
// enabling or disabling each named proposal in turn.
func applyFeatureFlags(base wasm.Features, flags []string) (wasm.Features, error) {
	result := base
	for _, flag := range flags {
		name, rawVal, ok := strings.Cut(flag, "=")
		if !ok {
			return 0, fmt.Errorf("invalid --feature %q: want NAME=BOOL", flag)
		}
		enabled, err := strconv.ParseBool(rawVal)
		if err != nil {
			return 0, fmt.Errorf("invalid --feature %q: %w", flag, err)
		}
		f, ok := wasm.ParseFeatureName(name)
		if !ok {
			return 0, fmt.Errorf("invalid --feature %q: unknown feature %q", flag, name)
		}
		result = result.Set(f, enabled)
	}
	return result, nil
}
