// Package api includes constants and interfaces used by both end users and internal implementations of wrun.
package api

import (
	"context"
	"fmt"
	"math"
)

// ValueType describes a numeric type used in WebAssembly 1.0. Function parameters and results, globals, and
// locals are only definable as a value type.
//
//   - ValueTypeI32 - uint64(uint32,int32)
//   - ValueTypeI64 - uint64(int64)
//   - ValueTypeF32 - EncodeF32 / DecodeF32 from float32
//   - ValueTypeF64 - EncodeF64 / DecodeF64 from float64
//   - ValueTypeFuncref - a function reference (store address), encoded as uint64
//   - ValueTypeExternref - an opaque host reference, encoded as uint64
type ValueType = byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeFuncref   ValueType = 0x70
	ValueTypeExternref ValueType = 0x6f

	// ValueTypeV128 is the vector type the SIMD proposal adds. This runtime recognizes it only to keep the
	// operand-stack type-checker consistent for modules that opt into FeatureSIMD; no vector instruction is
	// ever executed.
	ValueTypeV128 ValueType = 0x7b
)

// ValueTypeName returns the text format name of a ValueType, or "unknown" if it isn't recognized.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	case ValueTypeV128:
		return "v128"
	}
	return "unknown"
}

// ExternType classifies imports and exports with their respective types.
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// ExternTypeName returns the text format field name for the given ExternType.
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	}
	return fmt.Sprintf("%#x", et)
}

// EncodeI32 encodes the input as a uint64 for use in Function.Call.
func EncodeI32(input int32) uint64 { return uint64(uint32(input)) }

// EncodeI64 encodes the input as a uint64 for use in Function.Call.
func EncodeI64(input int64) uint64 { return uint64(input) }

// DecodeI32 decodes the uint64 result of Function.Call into an int32.
func DecodeI32(input uint64) int32 { return int32(input) }

// DecodeU32 decodes the uint64 result of Function.Call into a uint32.
func DecodeU32(input uint64) uint32 { return uint32(input) }

// EncodeF32 encodes the input as a uint64 for use in Function.Call.
func EncodeF32(input float32) uint64 { return uint64(math.Float32bits(input)) }

// EncodeF64 encodes the input as a uint64 for use in Function.Call.
func EncodeF64(input float64) uint64 { return math.Float64bits(input) }

// DecodeF32 decodes the uint64 result of Function.Call into a float32.
func DecodeF32(input uint64) float32 { return math.Float32frombits(uint32(input)) }

// DecodeF64 decodes the uint64 result of Function.Call into a float64.
func DecodeF64(input uint64) float64 { return math.Float64frombits(input) }

// Module is an instantiated WebAssembly module, post-link, post-instantiation.
type Module interface {
	fmt.Stringer

	// Name is the name this module was instantiated with.
	Name() string

	// Memory returns the single memory defined or imported in this module, or nil if there is none.
	Memory() Memory

	// ExportedFunction returns a function exported from this module, or nil if it wasn't.
	ExportedFunction(name string) Function

	// ExportedMemory returns a memory exported from this module, or nil if it wasn't.
	ExportedMemory(name string) Memory

	// ExportedGlobal returns a global exported from this module, or nil if it wasn't.
	ExportedGlobal(name string) Global

	// Close releases resources owned by this module and makes its name available again.
	Close(ctx context.Context) error
}

// Function is a WebAssembly 1.0 exported function.
type Function interface {
	// Call invokes the function with the given parameters, returning its results or an error (including a Trap).
	Call(ctx context.Context, params ...uint64) ([]uint64, error)

	// ParamTypes are the possibly empty sequence of value types accepted by this function, in order.
	ParamTypes() []ValueType

	// ResultTypes are the possibly empty sequence of value types returned by this function, in order.
	ResultTypes() []ValueType
}

// Memory is a WebAssembly 1.0 memory, addressable in bytes.
type Memory interface {
	// Size returns the memory size in bytes.
	Size(ctx context.Context) uint32

	// ReadByte reads a single byte at the given offset, or false if out of range.
	ReadByte(ctx context.Context, offset uint32) (byte, bool)

	// ReadUint32Le reads a uint32 in little-endian encoding at the given offset, or false if out of range.
	ReadUint32Le(ctx context.Context, offset uint32) (uint32, bool)

	// ReadUint64Le reads a uint64 in little-endian encoding at the given offset, or false if out of range.
	ReadUint64Le(ctx context.Context, offset uint32) (uint64, bool)

	// Read returns a view of byteCount bytes at the given offset, or false if out of range.
	Read(ctx context.Context, offset, byteCount uint32) ([]byte, bool)

	// WriteByte writes a single byte at the given offset, returning false if out of range.
	WriteByte(ctx context.Context, offset uint32, v byte) bool

	// WriteUint32Le writes a uint32 in little-endian encoding at the given offset, returning false if out of range.
	WriteUint32Le(ctx context.Context, offset uint32, v uint32) bool

	// WriteUint64Le writes a uint64 in little-endian encoding at the given offset, returning false if out of range.
	WriteUint64Le(ctx context.Context, offset uint32, v uint64) bool

	// Grow increases the memory by the given number of 64KiB pages, returning the previous page count on
	// success or false when it would exceed the maximum.
	Grow(ctx context.Context, deltaPages uint32) (previousPages uint32, ok bool)
}

// Global is a WebAssembly 1.0 global value.
type Global interface {
	// Type returns the numeric type held by this global.
	Type() ValueType

	// Get returns the current value, encoded the same as a function result.
	Get(ctx context.Context) uint64
}

// MutableGlobal extends Global for globals declared mutable.
type MutableGlobal interface {
	Global

	// Set updates the current value. Module.ExportedGlobal returns a MutableGlobal only for globals declared
	// mutable; an immutable global is returned as a plain Global, which has no Set.
	Set(ctx context.Context, v uint64)
}
