package wasm

import (
	"sort"
	"strings"

	"wrun/internal/wasmerr"
)

// Features is a bitset of optional WebAssembly proposals the resolver, validator and interpreter may gate
// behavior on. The zero flag is reserved (a bitset cannot use zero as a member), so flags start at bit 0 = 1.
type Features uint64

const (
	FeatureMutableGlobal Features = 1 << iota
	FeatureSignExtensionOps
	FeatureMultiValue
	FeatureNonTrappingFloatToIntConversion
	FeatureBulkMemoryOperations
	FeatureReferenceTypes
	FeatureSIMD
)

// Features20220419 is the WebAssembly 2.0 core feature set (named for the date the W3C recommendation that
// bundled these proposals was published), used as the default feature set for the text and binary front ends.
// FeatureSIMD is deliberately excluded: this runtime never executes a vector instruction, so modules that use
// one are rejected at validation unless a caller opts in explicitly via FeatureSIMD.
const Features20220419 = FeatureMutableGlobal | FeatureSignExtensionOps | FeatureMultiValue |
	FeatureNonTrappingFloatToIntConversion | FeatureBulkMemoryOperations | FeatureReferenceTypes

var featureNames = []struct {
	flag Features
	name string
}{
	{FeatureMutableGlobal, "mutable-global"},
	{FeatureSignExtensionOps, "sign-extension-ops"},
	{FeatureMultiValue, "multi-value"},
	{FeatureNonTrappingFloatToIntConversion, "nontrapping-float-to-int-conversion"},
	{FeatureBulkMemoryOperations, "bulk-memory-operations"},
	{FeatureReferenceTypes, "reference-types"},
	{FeatureSIMD, "simd"},
}

// Get reports whether every bit of f is set.
func (all Features) Get(f Features) bool {
	return f != 0 && all&f == f
}

// Set returns a copy of all with f set to on or off.
func (all Features) Set(f Features, on bool) Features {
	if on {
		return all | f
	}
	return all &^ f
}

// String renders the enabled, named flags of all as a sorted, pipe-joined list.
func (all Features) String() string {
	var names []string
	for _, fn := range featureNames {
		if all.Get(fn.flag) {
			names = append(names, fn.name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// ParseFeatureName looks up the Features flag for a CLI-facing feature name (e.g. "bulk-memory-operations"),
// reporting false if name names none of the flags in featureNames.
func ParseFeatureName(name string) (Features, bool) {
	for _, fn := range featureNames {
		if fn.name == name {
			return fn.flag, true
		}
	}
	return 0, false
}

// Require returns a *wasmerr.Error of KindValidate if f is not entirely enabled in all.
func (all Features) Require(f Features) error {
	for _, fn := range featureNames {
		if f&fn.flag != 0 && !all.Get(fn.flag) {
			return wasmerr.Newf(wasmerr.KindValidate, "feature %q is disabled", fn.name)
		}
	}
	return nil
}
