package validate

import "wrun/internal/wasm"

const v128 = wasm.ValueTypeV128

// simdSignatures covers v128.const, i8x16.shuffle, i8x16.swizzle, every splat, the extract_lane/replace_lane
// family, and v128.load32_zero/load64_zero. The plain loads, v128.store and the load_lane/store_lane family
// are handled directly in validateSIMD. Every other sub-opcode (0x23-0x53 and 0x5e and up: the lane-wise
// arithmetic, comparison, bitwise, and conversion opcodes) isn't enumerated individually here;
// simdFallbackSignature covers it instead. No vector instruction ever executes — this
// table only keeps the operand-stack type-checker honest for modules that opt into FeatureSIMD.
var simdSignatures = map[byte]sig{
	0x0c: {pop: nil, push: []vtype{v128}},          // v128.const
	0x0d: {pop: []vtype{v128, v128}, push: []vtype{v128}}, // i8x16.shuffle
	0x0e: {pop: []vtype{v128, v128}, push: []vtype{v128}}, // i8x16.swizzle

	// splats: one scalar lane in, one v128 out.
	0x0f: {pop: []vtype{i32}, push: []vtype{v128}}, // i8x16.splat
	0x10: {pop: []vtype{i32}, push: []vtype{v128}}, // i16x8.splat
	0x11: {pop: []vtype{i32}, push: []vtype{v128}}, // i32x4.splat
	0x12: {pop: []vtype{i64}, push: []vtype{v128}}, // i64x2.splat
	0x13: {pop: []vtype{f32}, push: []vtype{v128}}, // f32x4.splat
	0x14: {pop: []vtype{f64}, push: []vtype{v128}}, // f64x2.splat

	// extract_lane / replace_lane.
	0x15: {pop: []vtype{v128}, push: []vtype{i32}}, // i8x16.extract_lane_s
	0x16: {pop: []vtype{v128}, push: []vtype{i32}}, // i8x16.extract_lane_u
	0x17: {pop: []vtype{v128, i32}, push: []vtype{v128}}, // i8x16.replace_lane
	0x18: {pop: []vtype{v128}, push: []vtype{i32}}, // i16x8.extract_lane_s
	0x19: {pop: []vtype{v128}, push: []vtype{i32}}, // i16x8.extract_lane_u
	0x1a: {pop: []vtype{v128, i32}, push: []vtype{v128}}, // i16x8.replace_lane
	0x1b: {pop: []vtype{v128}, push: []vtype{i32}}, // i32x4.extract_lane
	0x1c: {pop: []vtype{v128, i32}, push: []vtype{v128}}, // i32x4.replace_lane
	0x1d: {pop: []vtype{v128}, push: []vtype{i64}}, // i64x2.extract_lane
	0x1e: {pop: []vtype{v128, i64}, push: []vtype{v128}}, // i64x2.replace_lane
	0x1f: {pop: []vtype{v128}, push: []vtype{f32}}, // f32x4.extract_lane
	0x20: {pop: []vtype{v128, f32}, push: []vtype{v128}}, // f32x4.replace_lane
	0x21: {pop: []vtype{v128}, push: []vtype{f64}}, // f64x2.extract_lane
	0x22: {pop: []vtype{v128, f64}, push: []vtype{v128}}, // f64x2.replace_lane

	0x5c: {pop: []vtype{i32}, push: []vtype{v128}}, // v128.load32_zero
	0x5d: {pop: []vtype{i32}, push: []vtype{v128}}, // v128.load64_zero
}

// simdFallbackSignature is the modal shape for the sub-opcodes simdSignatures doesn't enumerate: the lane-wise
// arithmetic, comparison, and bitwise binary operators, which pop two vectors and push one vector. Sub-opcodes
// of any other shape that land here, such as the unary operators and the shifts (a vector and an i32 count),
// fail this check with a type mismatch or an operand-stack underflow.
var simdFallbackSignature = sig{pop: []vtype{v128, v128}, push: []vtype{v128}}

// validateSIMD type-checks and emits a 0xFD-prefixed vector instruction. It is reached only when FeatureSIMD
// is enabled; validateInstr rejects every SIMD opcode as unknown otherwise.
func (v *validator) validateSIMD(ins wasm.UnresolvedInstr) error {
	sub := ins.Op.SIMDSub()

	switch {
	case sub <= 0x0a: // v128.load and its extending/splatting load variants: i32 address -> v128
		if !v.module.HasMemory() {
			return v.fail("v128 load: module has no memory")
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.pushVal(v128)
	case sub == 0x0b: // v128.store: i32 address, v128 value -> nothing
		if !v.module.HasMemory() {
			return v.fail("v128.store: module has no memory")
		}
		if err := v.popExpect(v128); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
	case sub >= 0x54 && sub <= 0x5b: // load_lane/store_lane: pop the vector operand, then the i32 address
		if !v.module.HasMemory() {
			return v.fail("v128 load/store lane: module has no memory")
		}
		if err := v.popExpect(v128); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if sub < 0x58 { // load_lane replaces one lane of the vector and pushes the result; store_lane pushes nothing
			v.pushVal(v128)
		}
	default:
		s, ok := simdSignatures[sub]
		if !ok {
			s = simdFallbackSignature
		}
		if err := v.popExpectAll(s.pop); err != nil {
			return err
		}
		v.pushVals(s.push)
	}

	v.emit.opcode(ins.Op)
	return nil
}
