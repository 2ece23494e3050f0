package instantiate

import (
	"math"

	"wrun/api"
	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

// evalConstExpr evaluates a global initializer, element offset, element item, or data offset against the
// module instance under construction. Validation restricted these to const/global.get/ref.null/ref.func, each
// of which pushes exactly one value and pops none, so the expression is always exactly one instruction: there
// is no little stack machine to run here, just a switch on that single op.
func evalConstExpr(mi *wasm.ModuleInstance, store *wasm.Store, ce wasm.ConstExpr) (value uint64, ref wasm.Reference, err error) {
	if len(ce.Instrs) != 1 {
		return 0, wasm.Reference{}, wasmerr.Newf(wasmerr.KindValidate, "constant expression must be a single instruction, got %d", len(ce.Instrs))
	}
	ins := ce.Instrs[0]
	switch ins.Op {
	case wasm.OpI32Const:
		return api.EncodeI32(ins.I32), wasm.Reference{}, nil
	case wasm.OpI64Const:
		return api.EncodeI64(ins.I64), wasm.Reference{}, nil
	case wasm.OpF32Const:
		return uint64(math.Float32bits(ins.F32)), wasm.Reference{}, nil
	case wasm.OpF64Const:
		return math.Float64bits(ins.F64), wasm.Reference{}, nil
	case wasm.OpGlobalGet:
		if int(ins.GlobalIndex) >= len(mi.GlobalAddrs) {
			return 0, wasm.Reference{}, wasmerr.Newf(wasmerr.KindLink, "constant expression: global index %d out of range", ins.GlobalIndex)
		}
		g := store.Global(mi.GlobalAddrs[ins.GlobalIndex])
		return g.Value, g.Ref, nil
	case wasm.OpRefNull:
		return 0, wasm.NullReference(ins.RefType), nil
	case wasm.OpRefFunc:
		if int(ins.FuncIndex) >= len(mi.FunctionAddrs) {
			return 0, wasm.Reference{}, wasmerr.Newf(wasmerr.KindLink, "constant expression: function index %d out of range", ins.FuncIndex)
		}
		addr := mi.FunctionAddrs[ins.FuncIndex]
		return 0, wasm.Reference{Type: wasm.ValueTypeFuncref, Func: addr}, nil
	default:
		return 0, wasm.Reference{}, wasmerr.Newf(wasmerr.KindValidate, "non-constant instruction %#x in constant expression", ins.Op)
	}
}

// evalI32Offset evaluates an active element/data segment's offset expression, which the binary format and the
// validator both constrain to produce a single i32.
func evalI32Offset(mi *wasm.ModuleInstance, store *wasm.Store, ce wasm.ConstExpr) (uint32, error) {
	v, _, err := evalConstExpr(mi, store, ce)
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(v), nil
}
