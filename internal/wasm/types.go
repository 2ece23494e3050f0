package wasm

import "strings"

// FunctionType is a function signature: zero or more parameter types mapping to zero or more result types.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// String renders the anonymous form used to compare and deduplicate types, e.g. "i32f64_null".
func (t *FunctionType) String() string {
	var b strings.Builder
	writeTypes(&b, t.Params)
	b.WriteByte('_')
	writeTypes(&b, t.Results)
	return b.String()
}

func writeTypes(b *strings.Builder, types []ValueType) {
	if len(types) == 0 {
		b.WriteString("null")
		return
	}
	for _, v := range types {
		b.WriteString(ValueTypeName(v))
	}
}

// EqualsSignature reports whether t has the same parameter and result types as other, ignoring identity.
func (t *FunctionType) EqualsSignature(other *FunctionType) bool {
	if other == nil {
		return false
	}
	return t.String() == other.String()
}

// Limits bounds a table or memory's size, in table-element or memory-page units depending on context.
type Limits struct {
	Min uint32
	Max *uint32 // nil means unbounded.
}

// TableType declares the reference type and size limits of a table.
type TableType struct {
	RefType ValueType // ValueTypeFuncref or ValueTypeExternref.
	Limits  Limits
}

// PageSize is the fixed WebAssembly memory page size, 64 KiB.
const PageSize = 65536

// MemoryType declares a memory's size limits in 64KiB pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType declares a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}
