package interp

import "wrun/internal/wasm"

// encodeRef and decodeRef move a wasm.Reference across the flat uint64 operand stack: 0 means null, anything
// else is the underlying address plus one. A funcref's Func address round-trips exactly; an externref that
// itself arrived from the stack (table.get of an externref table, say) round-trips through its boxed uint64
// the same way, since that's the only shape a value transiting this stack can have had to begin with.
func encodeRef(r wasm.Reference) uint64 {
	if r.IsNull {
		return 0
	}
	if r.Type == wasm.ValueTypeFuncref {
		return uint64(r.Func) + 1
	}
	if ev, ok := r.Extern.(uint64); ok {
		return ev + 1
	}
	return 1
}

func decodeRef(t wasm.ValueType, v uint64) wasm.Reference {
	if v == 0 {
		return wasm.NullReference(t)
	}
	if t == wasm.ValueTypeFuncref {
		return wasm.Reference{Type: t, Func: wasm.FunctionAddr(v - 1)}
	}
	return wasm.Reference{Type: t, Extern: v - 1}
}
