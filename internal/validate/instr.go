package validate

import "wrun/internal/wasm"

// blockSignature resolves a structured instruction's BlockType to a concrete (params, results) pair: either
// the inline 0-or-1-result shorthand, or a full signature looked up by type-section index.
func (v *validator) blockSignature(blk *wasm.UnresolvedBlock) (*wasm.FunctionType, error) {
	if blk.HasTypeIndex {
		ft := v.module.TypeAt(blk.TypeIndex)
		if ft == nil {
			return nil, v.fail("invalid block type index %d", blk.TypeIndex)
		}
		return ft, nil
	}
	bt := blk.Type
	return &bt, nil
}

func (v *validator) validateInstr(ins wasm.UnresolvedInstr) error {
	if ins.Op.IsSIMD() {
		if err := v.features.Require(wasm.FeatureSIMD); err != nil {
			return v.fail("unknown opcode %s (SIMD is not enabled)", ins.Op)
		}
		return v.validateSIMD(ins)
	}

	switch ins.Op {
	case wasm.OpBlock, wasm.OpLoop:
		return v.validateBlockOrLoop(ins)
	case wasm.OpIf:
		return v.validateIf(ins)
	case wasm.OpUnreachable:
		v.emit.opcode(ins.Op)
		v.setUnreachable()
		return nil
	case wasm.OpNop:
		v.emit.opcode(ins.Op)
		return nil
	case wasm.OpBr:
		return v.validateBr(ins)
	case wasm.OpBrIf:
		return v.validateBrIf(ins)
	case wasm.OpBrTable:
		return v.validateBrTable(ins)
	case wasm.OpReturn:
		return v.validateReturn(ins)
	case wasm.OpCall:
		return v.validateCall(ins)
	case wasm.OpCallIndirect:
		return v.validateCallIndirect(ins)
	case wasm.OpDrop:
		if _, err := v.popVal(); err != nil {
			return err
		}
		v.emit.opcode(ins.Op)
		return nil
	case wasm.OpSelect:
		return v.validateSelect(ins)
	case wasm.OpSelectT:
		return v.validateSelectT(ins)
	case wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee:
		return v.validateLocal(ins)
	case wasm.OpGlobalGet, wasm.OpGlobalSet:
		return v.validateGlobal(ins)
	case wasm.OpTableGet, wasm.OpTableSet:
		return v.validateTableGetSet(ins)
	case wasm.OpMemorySize:
		if !v.module.HasMemory() {
			return v.fail("memory.size: module has no memory")
		}
		v.pushVal(i32)
		v.emit.opcode(ins.Op)
		return nil
	case wasm.OpMemoryGrow:
		if !v.module.HasMemory() {
			return v.fail("memory.grow: module has no memory")
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.pushVal(i32)
		v.emit.opcode(ins.Op)
		return nil
	case wasm.OpI32Const:
		v.pushVal(i32)
		v.emit.opcode(ins.Op)
		v.emit.i32(ins.I32)
		return nil
	case wasm.OpI64Const:
		v.pushVal(i64)
		v.emit.opcode(ins.Op)
		v.emit.i64(ins.I64)
		return nil
	case wasm.OpF32Const:
		v.pushVal(f32)
		v.emit.opcode(ins.Op)
		v.emit.f32(ins.F32)
		return nil
	case wasm.OpF64Const:
		v.pushVal(f64)
		v.emit.opcode(ins.Op)
		v.emit.f64(ins.F64)
		return nil
	case wasm.OpRefNull:
		v.pushVal(ins.RefType)
		v.emit.opcode(ins.Op)
		v.emit.byte(byte(ins.RefType))
		return nil
	case wasm.OpRefIsNull:
		if _, err := v.popVal(); err != nil {
			return err
		}
		v.pushVal(i32)
		v.emit.opcode(ins.Op)
		return nil
	case wasm.OpRefFunc:
		v.pushVal(wasm.ValueTypeFuncref)
		v.emit.opcode(ins.Op)
		v.emit.u32(ins.FuncIndex)
		return nil
	case wasm.OpMemoryInit, wasm.OpDataDrop, wasm.OpMemoryCopy, wasm.OpMemoryFill:
		return v.validateMemoryBulk(ins)
	case wasm.OpTableInit, wasm.OpElemDrop, wasm.OpTableCopy, wasm.OpTableGrow, wasm.OpTableSize, wasm.OpTableFill:
		return v.validateTableBulk(ins)
	}

	if isLoad(ins.Op) || memValueType(ins.Op) != unknownType {
		return v.validateMemAccess(ins)
	}
	if s, ok := staticSignatures[ins.Op]; ok {
		if err := v.popExpectAll(s.pop); err != nil {
			return err
		}
		v.pushVals(s.push)
		v.emit.opcode(ins.Op)
		return nil
	}
	return v.fail("unsupported opcode %#x", uint16(ins.Op))
}

func (v *validator) validateBlockOrLoop(ins wasm.UnresolvedInstr) error {
	ft, err := v.blockSignature(ins.Block)
	if err != nil {
		return err
	}
	if err := v.popExpectAll(ft.Params); err != nil {
		return err
	}
	v.pushCtrl(ins.Op, ft.Params, ft.Results)
	frame := v.curFrame()

	v.emit.opcode(ins.Op)
	v.emit.u32(uint32(len(ft.Params)))
	v.emit.u32(uint32(len(ft.Results)))
	if ins.Op == wasm.OpLoop {
		v.emit.u32(uint32(v.emit.pos() - 9)) // continuation: the loop opcode's own position
	} else {
		frame.endPatchPos = v.emit.reserveU32()
	}

	if err := v.validateInstrs(ins.Block.Then); err != nil {
		return err
	}
	closed, err := v.popCtrl()
	if err != nil {
		return err
	}
	v.pushVals(closed.endTypes)

	v.emit.opcode(wasm.OpEnd)
	if closed.endPatchPos >= 0 {
		v.emit.patchU32(closed.endPatchPos, uint32(v.emit.pos()))
	}
	return nil
}

func (v *validator) validateIf(ins wasm.UnresolvedInstr) error {
	if err := v.popExpect(i32); err != nil {
		return err
	}
	ft, err := v.blockSignature(ins.Block)
	if err != nil {
		return err
	}
	if err := v.popExpectAll(ft.Params); err != nil {
		return err
	}

	v.emit.opcode(wasm.OpIf)
	v.emit.u32(uint32(len(ft.Params)))
	v.emit.u32(uint32(len(ft.Results)))
	endPatch := v.emit.reserveU32()
	elsePatch := v.emit.reserveU32()

	v.pushCtrl(wasm.OpIf, ft.Params, ft.Results)
	if err := v.validateInstrs(ins.Block.Then); err != nil {
		return err
	}
	if _, err := v.popCtrl(); err != nil {
		return err
	}

	v.emit.patchU32(elsePatch, uint32(v.emit.pos()))
	v.emit.opcode(wasm.OpElse)

	v.pushCtrl(wasm.OpElse, ft.Params, ft.Results)
	if err := v.validateInstrs(ins.Block.Else); err != nil {
		return err
	}
	closed, err := v.popCtrl()
	if err != nil {
		return err
	}
	v.pushVals(closed.endTypes)

	v.emit.opcode(wasm.OpEnd)
	v.emit.patchU32(endPatch, uint32(v.emit.pos()))
	return nil
}

func (v *validator) validateBr(ins wasm.UnresolvedInstr) error {
	if len(ins.Labels) == 0 {
		return v.fail("br: missing label")
	}
	depth := ins.Labels[0]
	types, err := v.labelTypesAt(int(depth))
	if err != nil {
		return err
	}
	if err := v.popExpectAll(types); err != nil {
		return err
	}
	v.emit.opcode(ins.Op)
	v.emit.u32(depth)
	v.setUnreachable()
	return nil
}

func (v *validator) validateBrIf(ins wasm.UnresolvedInstr) error {
	if len(ins.Labels) == 0 {
		return v.fail("br_if: missing label")
	}
	if err := v.popExpect(i32); err != nil {
		return err
	}
	depth := ins.Labels[0]
	types, err := v.labelTypesAt(int(depth))
	if err != nil {
		return err
	}
	if err := v.popExpectAll(types); err != nil {
		return err
	}
	v.pushVals(types)
	v.emit.opcode(ins.Op)
	v.emit.u32(depth)
	return nil
}

func (v *validator) validateBrTable(ins wasm.UnresolvedInstr) error {
	if len(ins.Labels) == 0 {
		return v.fail("br_table: missing labels")
	}
	if err := v.popExpect(i32); err != nil {
		return err
	}
	defaultDepth := ins.Labels[len(ins.Labels)-1]
	defaultTypes, err := v.labelTypesAt(int(defaultDepth))
	if err != nil {
		return err
	}
	for _, depth := range ins.Labels[:len(ins.Labels)-1] {
		types, err := v.labelTypesAt(int(depth))
		if err != nil {
			return err
		}
		if len(types) != len(defaultTypes) {
			return v.fail("br_table: arity mismatch between branch targets")
		}
	}
	if err := v.popExpectAll(defaultTypes); err != nil {
		return err
	}
	v.emit.opcode(ins.Op)
	v.emit.u32(uint32(len(ins.Labels) - 1))
	for _, depth := range ins.Labels {
		v.emit.u32(depth)
	}
	v.setUnreachable()
	return nil
}

func (v *validator) validateReturn(ins wasm.UnresolvedInstr) error {
	// The outermost control frame (index 0) always represents the function itself.
	results := v.ctrl[0].endTypes
	if err := v.popExpectAll(results); err != nil {
		return err
	}
	v.emit.opcode(ins.Op)
	v.setUnreachable()
	return nil
}

func (v *validator) validateCall(ins wasm.UnresolvedInstr) error {
	ft := v.module.TypeOfFunction(ins.FuncIndex)
	if ft == nil {
		return v.fail("call: function %s has no type", v.module.FuncRef(ins.FuncIndex))
	}
	if err := v.popExpectAll(ft.Params); err != nil {
		return err
	}
	v.pushVals(ft.Results)
	v.emit.opcode(ins.Op)
	v.emit.u32(ins.FuncIndex)
	return nil
}

func (v *validator) validateCallIndirect(ins wasm.UnresolvedInstr) error {
	ft := v.module.TypeAt(ins.TypeIndex)
	if ft == nil {
		return v.fail("call_indirect: invalid type index %d", ins.TypeIndex)
	}
	if v.module.TableTypeOf(ins.TableIndex) == nil {
		return v.fail("call_indirect: invalid table index %d", ins.TableIndex)
	}
	if err := v.popExpect(i32); err != nil {
		return err
	}
	if err := v.popExpectAll(ft.Params); err != nil {
		return err
	}
	v.pushVals(ft.Results)
	v.emit.opcode(ins.Op)
	v.emit.u32(ins.TableIndex)
	v.emit.u32(ins.TypeIndex)
	return nil
}

func (v *validator) validateSelect(ins wasm.UnresolvedInstr) error {
	if err := v.popExpect(i32); err != nil {
		return err
	}
	t2, err := v.popVal()
	if err != nil {
		return err
	}
	t1, err := v.popVal()
	if err != nil {
		return err
	}
	result := t1
	if isUnknown(t1) {
		result = t2
	} else if !isUnknown(t2) && t1 != t2 {
		return v.fail("select: operand types %s and %s differ", wasm.ValueTypeName(t1), wasm.ValueTypeName(t2))
	}
	v.pushVal(result)
	v.emit.opcode(ins.Op)
	return nil
}

// validateSelectT handles the typed form (select (result t)), which skips the untyped form's operand-type
// inference and instead checks both values against the declared type directly.
func (v *validator) validateSelectT(ins wasm.UnresolvedInstr) error {
	if len(ins.SelectTypes) != 1 {
		return v.fail("select: expected exactly one declared result type, got %d", len(ins.SelectTypes))
	}
	t := ins.SelectTypes[0]
	if err := v.popExpect(i32); err != nil {
		return err
	}
	if err := v.popExpect(t); err != nil {
		return err
	}
	if err := v.popExpect(t); err != nil {
		return err
	}
	v.pushVal(t)
	v.emit.opcode(ins.Op)
	v.emit.byte(byte(t))
	return nil
}

func (v *validator) localType(idx wasm.Index) (vtype, error) {
	if int(idx) >= len(v.locals) {
		return 0, v.fail("local index %d out of range", idx)
	}
	return v.locals[idx], nil
}

func (v *validator) validateLocal(ins wasm.UnresolvedInstr) error {
	t, err := v.localType(ins.LocalIndex)
	if err != nil {
		return err
	}
	switch ins.Op {
	case wasm.OpLocalGet:
		v.pushVal(t)
	case wasm.OpLocalSet:
		if err := v.popExpect(t); err != nil {
			return err
		}
	case wasm.OpLocalTee:
		if err := v.popExpect(t); err != nil {
			return err
		}
		v.pushVal(t)
	}
	v.emit.opcode(ins.Op)
	v.emit.u32(ins.LocalIndex)
	return nil
}

func (v *validator) validateGlobal(ins wasm.UnresolvedInstr) error {
	gt := v.module.GlobalTypeOf(ins.GlobalIndex)
	if gt == nil {
		return v.fail("global index %d out of range", ins.GlobalIndex)
	}
	switch ins.Op {
	case wasm.OpGlobalGet:
		// Per the constant-expression rules, a const-expr global.get may only name an imported, immutable
		// global: a module-local global isn't necessarily initialized yet, and a mutable one could change
		// after the const-expr that reads it has already been evaluated.
		if v.constExpr {
			if int(ins.GlobalIndex) >= v.module.ImportedGlobalCount() {
				return v.fail("constant expression: global.get %d is not an imported global", ins.GlobalIndex)
			}
			if gt.Mutable {
				return v.fail("constant expression: global.get %d: global is mutable", ins.GlobalIndex)
			}
		}
		v.pushVal(gt.ValType)
	case wasm.OpGlobalSet:
		if !gt.Mutable {
			return v.fail("global.set: global %d is immutable", ins.GlobalIndex)
		}
		if err := v.popExpect(gt.ValType); err != nil {
			return err
		}
	}
	v.emit.opcode(ins.Op)
	v.emit.u32(ins.GlobalIndex)
	return nil
}

func (v *validator) validateTableGetSet(ins wasm.UnresolvedInstr) error {
	tt := v.module.TableTypeOf(ins.TableIndex)
	if tt == nil {
		return v.fail("table index %d out of range", ins.TableIndex)
	}
	switch ins.Op {
	case wasm.OpTableGet:
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.pushVal(tt.RefType)
	case wasm.OpTableSet:
		if err := v.popExpect(tt.RefType); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
	}
	v.emit.opcode(ins.Op)
	v.emit.u32(ins.TableIndex)
	return nil
}

// validateMemAccess handles every load/store opcode: bound-check the static alignment, pop the i32 address
// (and, for stores, the value being written), push the loaded value (for loads).
func (v *validator) validateMemAccess(ins wasm.UnresolvedInstr) error {
	if !v.module.HasMemory() {
		return v.fail("memory access: module has no memory")
	}
	max := naturalAlignment(ins.Op)
	if ins.MemArgAlign > max {
		return v.fail("alignment %d exceeds natural alignment %d", ins.MemArgAlign, max)
	}
	vt := memValueType(ins.Op)
	if isLoad(ins.Op) {
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.pushVal(vt)
	} else {
		if err := v.popExpect(vt); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
	}
	v.emit.opcode(ins.Op)
	v.emit.u32(ins.MemArgAlign)
	v.emit.u32(ins.MemArgOffset)
	return nil
}

func (v *validator) validateMemoryBulk(ins wasm.UnresolvedInstr) error {
	if !v.module.HasMemory() {
		return v.fail("bulk memory op: module has no memory")
	}
	switch ins.Op {
	case wasm.OpMemoryInit:
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.emit.opcode(ins.Op)
		v.emit.u32(ins.DataIndex)
	case wasm.OpDataDrop:
		v.emit.opcode(ins.Op)
		v.emit.u32(ins.DataIndex)
	case wasm.OpMemoryCopy, wasm.OpMemoryFill:
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.emit.opcode(ins.Op)
	}
	return nil
}

func (v *validator) validateTableBulk(ins wasm.UnresolvedInstr) error {
	switch ins.Op {
	case wasm.OpTableInit:
		if v.module.TableTypeOf(ins.TableIndex) == nil {
			return v.fail("table.init: invalid table index %d", ins.TableIndex)
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.emit.opcode(ins.Op)
		v.emit.u32(ins.ElemIndex)
		v.emit.u32(ins.TableIndex)
	case wasm.OpElemDrop:
		v.emit.opcode(ins.Op)
		v.emit.u32(ins.ElemIndex)
	case wasm.OpTableCopy:
		if v.module.TableTypeOf(ins.TableIndex) == nil || v.module.TableTypeOf(ins.TableIndex2) == nil {
			return v.fail("table.copy: invalid table index")
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.emit.opcode(ins.Op)
		v.emit.u32(ins.TableIndex)
		v.emit.u32(ins.TableIndex2)
	case wasm.OpTableGrow:
		tt := v.module.TableTypeOf(ins.TableIndex)
		if tt == nil {
			return v.fail("table.grow: invalid table index %d", ins.TableIndex)
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(tt.RefType); err != nil {
			return err
		}
		v.pushVal(i32)
		v.emit.opcode(ins.Op)
		v.emit.u32(ins.TableIndex)
	case wasm.OpTableSize:
		if v.module.TableTypeOf(ins.TableIndex) == nil {
			return v.fail("table.size: invalid table index %d", ins.TableIndex)
		}
		v.pushVal(i32)
		v.emit.opcode(ins.Op)
		v.emit.u32(ins.TableIndex)
	case wasm.OpTableFill:
		tt := v.module.TableTypeOf(ins.TableIndex)
		if tt == nil {
			return v.fail("table.fill: invalid table index %d", ins.TableIndex)
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		if err := v.popExpect(tt.RefType); err != nil {
			return err
		}
		if err := v.popExpect(i32); err != nil {
			return err
		}
		v.emit.opcode(ins.Op)
		v.emit.u32(ins.TableIndex)
	}
	return nil
}
