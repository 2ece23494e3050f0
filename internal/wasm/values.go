// Package wasm holds the core WebAssembly data model: value and index-space types, the pre-instantiation
// Module, the Store of allocated instances, and the bytecode representation a compiled function body is
// expressed in. Earlier pipeline stages (the binary decoder, the text-format parser and resolver) produce a
// *Module; later stages (the validator/emitter and the instantiation algorithm) consume one.
package wasm

import "wrun/api"

// ValueType is one of the four number types or two reference types, reusing the public api.ValueType encoding
// so a Store's inventory of declared types never needs translation at the api boundary.
type ValueType = api.ValueType

const (
	ValueTypeI32       = api.ValueTypeI32
	ValueTypeI64       = api.ValueTypeI64
	ValueTypeF32       = api.ValueTypeF32
	ValueTypeF64       = api.ValueTypeF64
	ValueTypeFuncref   = api.ValueTypeFuncref
	ValueTypeExternref = api.ValueTypeExternref
	ValueTypeV128      = api.ValueTypeV128
)

// IsReferenceType reports whether t is one of the two reference types, as opposed to a number type.
func IsReferenceType(t ValueType) bool {
	return t == ValueTypeFuncref || t == ValueTypeExternref
}

// IsNumberType reports whether t is one of the four number types.
func IsNumberType(t ValueType) bool {
	return t == ValueTypeI32 || t == ValueTypeI64 || t == ValueTypeF32 || t == ValueTypeF64
}

// ValueTypeName delegates to the public encoding's name table.
func ValueTypeName(t ValueType) string {
	return api.ValueTypeName(t)
}
