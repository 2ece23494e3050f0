package validate

import "wrun/internal/wasm"

const (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f32 = wasm.ValueTypeF32
	f64 = wasm.ValueTypeF64
)

type sig struct {
	pop  []vtype
	push []vtype
}

func unop(t vtype) sig    { return sig{pop: []vtype{t}, push: []vtype{t}} }
func binop(t vtype) sig   { return sig{pop: []vtype{t, t}, push: []vtype{t}} }
func testop(t vtype) sig  { return sig{pop: []vtype{t}, push: []vtype{i32}} }
func relop(t vtype) sig   { return sig{pop: []vtype{t, t}, push: []vtype{i32}} }
func cvt(from, to vtype) sig { return sig{pop: []vtype{from}, push: []vtype{to}} }

// staticSignatures covers every opcode whose operand/result shape never depends on context (module, locals,
// or immediates) — i.e. everything except control-flow, local/global/table/memory accesses, and the constant
// instructions, which the validator handles with dedicated logic in validate.go.
var staticSignatures = map[wasm.Opcode]sig{
	wasm.OpI32Eqz: testop(i32),
	wasm.OpI32Eq: relop(i32), wasm.OpI32Ne: relop(i32),
	wasm.OpI32LtS: relop(i32), wasm.OpI32LtU: relop(i32), wasm.OpI32GtS: relop(i32), wasm.OpI32GtU: relop(i32),
	wasm.OpI32LeS: relop(i32), wasm.OpI32LeU: relop(i32), wasm.OpI32GeS: relop(i32), wasm.OpI32GeU: relop(i32),

	wasm.OpI64Eqz: cvt(i64, i32),
	wasm.OpI64Eq: relop(i64), wasm.OpI64Ne: relop(i64),
	wasm.OpI64LtS: relop(i64), wasm.OpI64LtU: relop(i64), wasm.OpI64GtS: relop(i64), wasm.OpI64GtU: relop(i64),
	wasm.OpI64LeS: relop(i64), wasm.OpI64LeU: relop(i64), wasm.OpI64GeS: relop(i64), wasm.OpI64GeU: relop(i64),

	wasm.OpF32Eq: relop(f32), wasm.OpF32Ne: relop(f32), wasm.OpF32Lt: relop(f32), wasm.OpF32Gt: relop(f32),
	wasm.OpF32Le: relop(f32), wasm.OpF32Ge: relop(f32),
	wasm.OpF64Eq: relop(f64), wasm.OpF64Ne: relop(f64), wasm.OpF64Lt: relop(f64), wasm.OpF64Gt: relop(f64),
	wasm.OpF64Le: relop(f64), wasm.OpF64Ge: relop(f64),

	wasm.OpI32Clz: unop(i32), wasm.OpI32Ctz: unop(i32), wasm.OpI32Popcnt: unop(i32),
	wasm.OpI32Add: binop(i32), wasm.OpI32Sub: binop(i32), wasm.OpI32Mul: binop(i32),
	wasm.OpI32DivS: binop(i32), wasm.OpI32DivU: binop(i32), wasm.OpI32RemS: binop(i32), wasm.OpI32RemU: binop(i32),
	wasm.OpI32And: binop(i32), wasm.OpI32Or: binop(i32), wasm.OpI32Xor: binop(i32),
	wasm.OpI32Shl: binop(i32), wasm.OpI32ShrS: binop(i32), wasm.OpI32ShrU: binop(i32),
	wasm.OpI32Rotl: binop(i32), wasm.OpI32Rotr: binop(i32),

	wasm.OpI64Clz: unop(i64), wasm.OpI64Ctz: unop(i64), wasm.OpI64Popcnt: unop(i64),
	wasm.OpI64Add: binop(i64), wasm.OpI64Sub: binop(i64), wasm.OpI64Mul: binop(i64),
	wasm.OpI64DivS: binop(i64), wasm.OpI64DivU: binop(i64), wasm.OpI64RemS: binop(i64), wasm.OpI64RemU: binop(i64),
	wasm.OpI64And: binop(i64), wasm.OpI64Or: binop(i64), wasm.OpI64Xor: binop(i64),
	wasm.OpI64Shl: binop(i64), wasm.OpI64ShrS: binop(i64), wasm.OpI64ShrU: binop(i64),
	wasm.OpI64Rotl: binop(i64), wasm.OpI64Rotr: binop(i64),

	wasm.OpF32Abs: unop(f32), wasm.OpF32Neg: unop(f32), wasm.OpF32Ceil: unop(f32), wasm.OpF32Floor: unop(f32),
	wasm.OpF32Trunc: unop(f32), wasm.OpF32Nearest: unop(f32), wasm.OpF32Sqrt: unop(f32),
	wasm.OpF32Add: binop(f32), wasm.OpF32Sub: binop(f32), wasm.OpF32Mul: binop(f32), wasm.OpF32Div: binop(f32),
	wasm.OpF32Min: binop(f32), wasm.OpF32Max: binop(f32), wasm.OpF32Copysign: binop(f32),

	wasm.OpF64Abs: unop(f64), wasm.OpF64Neg: unop(f64), wasm.OpF64Ceil: unop(f64), wasm.OpF64Floor: unop(f64),
	wasm.OpF64Trunc: unop(f64), wasm.OpF64Nearest: unop(f64), wasm.OpF64Sqrt: unop(f64),
	wasm.OpF64Add: binop(f64), wasm.OpF64Sub: binop(f64), wasm.OpF64Mul: binop(f64), wasm.OpF64Div: binop(f64),
	wasm.OpF64Min: binop(f64), wasm.OpF64Max: binop(f64), wasm.OpF64Copysign: binop(f64),

	wasm.OpI32WrapI64: cvt(i64, i32),
	wasm.OpI32TruncF32S: cvt(f32, i32), wasm.OpI32TruncF32U: cvt(f32, i32),
	wasm.OpI32TruncF64S: cvt(f64, i32), wasm.OpI32TruncF64U: cvt(f64, i32),
	wasm.OpI64ExtendI32S: cvt(i32, i64), wasm.OpI64ExtendI32U: cvt(i32, i64),
	wasm.OpI64TruncF32S: cvt(f32, i64), wasm.OpI64TruncF32U: cvt(f32, i64),
	wasm.OpI64TruncF64S: cvt(f64, i64), wasm.OpI64TruncF64U: cvt(f64, i64),
	wasm.OpF32ConvertI32S: cvt(i32, f32), wasm.OpF32ConvertI32U: cvt(i32, f32),
	wasm.OpF32ConvertI64S: cvt(i64, f32), wasm.OpF32ConvertI64U: cvt(i64, f32),
	wasm.OpF32DemoteF64: cvt(f64, f32),
	wasm.OpF64ConvertI32S: cvt(i32, f64), wasm.OpF64ConvertI32U: cvt(i32, f64),
	wasm.OpF64ConvertI64S: cvt(i64, f64), wasm.OpF64ConvertI64U: cvt(i64, f64),
	wasm.OpF64PromoteF32: cvt(f32, f64),
	wasm.OpI32ReinterpretF32: cvt(f32, i32), wasm.OpI64ReinterpretF64: cvt(f64, i64),
	wasm.OpF32ReinterpretI32: cvt(i32, f32), wasm.OpF64ReinterpretI64: cvt(i64, f64),

	wasm.OpI32Extend8S: unop(i32), wasm.OpI32Extend16S: unop(i32),
	wasm.OpI64Extend8S: unop(i64), wasm.OpI64Extend16S: unop(i64), wasm.OpI64Extend32S: unop(i64),

	wasm.OpI32TruncSatF32S: cvt(f32, i32), wasm.OpI32TruncSatF32U: cvt(f32, i32),
	wasm.OpI32TruncSatF64S: cvt(f64, i32), wasm.OpI32TruncSatF64U: cvt(f64, i32),
	wasm.OpI64TruncSatF32S: cvt(f32, i64), wasm.OpI64TruncSatF32U: cvt(f32, i64),
	wasm.OpI64TruncSatF64S: cvt(f64, i64), wasm.OpI64TruncSatF64U: cvt(f64, i64),
}

// naturalAlignment is the log2 of the largest alignment a memory instruction's static operand may declare,
// indexed by the bit-width of the value it accesses (the opcode table picks the right width).
func naturalAlignment(op wasm.Opcode) uint32 {
	switch op {
	case wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI32Store8, wasm.OpI64Store8:
		return 0
	case wasm.OpI32Load16S, wasm.OpI32Load16U, wasm.OpI64Load16S, wasm.OpI64Load16U, wasm.OpI32Store16, wasm.OpI64Store16:
		return 1
	case wasm.OpI32Load, wasm.OpF32Load, wasm.OpI64Load32S, wasm.OpI64Load32U, wasm.OpI32Store, wasm.OpF32Store, wasm.OpI64Store32:
		return 2
	case wasm.OpI64Load, wasm.OpF64Load, wasm.OpI64Store, wasm.OpF64Store:
		return 3
	}
	return 0
}

// memValueType is the value type a load instruction pushes, or a store instruction pops, in addition to the
// i32 address operand every memory instruction pops first.
func memValueType(op wasm.Opcode) vtype {
	switch op {
	case wasm.OpI32Load, wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI32Load16S, wasm.OpI32Load16U,
		wasm.OpI32Store, wasm.OpI32Store8, wasm.OpI32Store16:
		return i32
	case wasm.OpI64Load, wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI64Load16S, wasm.OpI64Load16U,
		wasm.OpI64Load32S, wasm.OpI64Load32U, wasm.OpI64Store, wasm.OpI64Store8, wasm.OpI64Store16, wasm.OpI64Store32:
		return i64
	case wasm.OpF32Load, wasm.OpF32Store:
		return f32
	case wasm.OpF64Load, wasm.OpF64Store:
		return f64
	}
	return unknownType
}

func isLoad(op wasm.Opcode) bool {
	switch op {
	case wasm.OpI32Load, wasm.OpI64Load, wasm.OpF32Load, wasm.OpF64Load,
		wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI32Load16S, wasm.OpI32Load16U,
		wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI64Load16S, wasm.OpI64Load16U, wasm.OpI64Load32S, wasm.OpI64Load32U:
		return true
	}
	return false
}
