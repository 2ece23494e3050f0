package wasmbin

import (
	"bytes"
	"io"

	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

// decodeInstrs reads a structured instruction sequence up to (and consuming) its terminating 0x0b (end) or,
// for an `if`'s then-branch, a 0x05 (else), discarding which of the two it was. decodeInstrsUntil reports
// that byte via term, for callers that need to distinguish end-of-if-then from else.
func decodeInstrs(r *bytes.Reader) ([]wasm.UnresolvedInstr, error) {
	instrs, _, err := decodeInstrsUntil(r)
	return instrs, err
}

func decodeInstrsUntil(r *bytes.Reader) ([]wasm.UnresolvedInstr, byte, error) {
	var out []wasm.UnresolvedInstr
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, 0, err
		}
		if op == 0x0b || op == 0x05 {
			return out, op, nil
		}
		instr, err := decodeOneInstr(r, op)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, instr)
	}
}

func decodeOneInstr(r *bytes.Reader, op byte) (wasm.UnresolvedInstr, error) {
	switch op {
	case 0x02, 0x03, 0x04: // block, loop, if
		bt, hasIdx, typeIdx, err := decodeBlockType(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		then, term, err := decodeInstrsUntil(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		blk := &wasm.UnresolvedBlock{Type: bt, HasTypeIndex: hasIdx, TypeIndex: typeIdx, Then: then}
		if op == 0x04 && term == 0x05 {
			els, _, err := decodeInstrsUntil(r)
			if err != nil {
				return wasm.UnresolvedInstr{}, err
			}
			blk.Else = els
		}
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), Block: blk}, nil

	case 0x0c, 0x0d: // br, br_if
		idx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), Labels: []wasm.Index{idx}}, err

	case 0x0e: // br_table
		n, err := readVarU32(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		labels := make([]wasm.Index, n+1)
		for i := range labels[:n] {
			if labels[i], err = readVarU32(r); err != nil {
				return wasm.UnresolvedInstr{}, err
			}
		}
		if labels[n], err = readVarU32(r); err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), Labels: labels}, nil

	case 0x10: // call
		idx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), FuncIndex: idx}, err

	case 0x11: // call_indirect
		typeIdx, err := readVarU32(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		tableIdx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), TypeIndex: typeIdx, TableIndex: tableIdx}, err

	case 0x20, 0x21, 0x22: // local.get/set/tee
		idx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), LocalIndex: idx}, err

	case 0x23, 0x24: // global.get/set
		idx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), GlobalIndex: idx}, err

	case 0x25, 0x26: // table.get/set
		idx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), TableIndex: idx}, err

	case 0x1c: // select t*
		types, err := readValueTypeVec(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), SelectTypes: types}, err

	case 0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f,
		0x30, 0x31, 0x32, 0x33, 0x34, 0x35,
		0x36, 0x37, 0x38, 0x39, 0x3a, 0x3b, 0x3c, 0x3d, 0x3e: // memory load/store
		align, err := readVarU32(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		offset, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), MemArgAlign: align, MemArgOffset: offset}, err

	case 0x3f, 0x40: // memory.size, memory.grow
		if _, err := r.ReadByte(); err != nil { // reserved memidx, always 0x00
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op)}, nil

	case 0x41: // i32.const
		v, err := readVarI32(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), I32: v}, err

	case 0x42: // i64.const
		v, err := readVarI64(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), I64: v}, err

	case 0x43: // f32.const
		v, err := readF32(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), F32: v}, err

	case 0x44: // f64.const
		v, err := readF64(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), F64: v}, err

	case 0xd0: // ref.null
		rt, err := readValueType(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), RefType: rt}, err

	case 0xd2: // ref.func
		idx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op), FuncIndex: idx}, err

	case 0xfc:
		return decodeFCInstr(r)

	case 0xfd:
		return decodeFDInstr(r)

	default:
		// Every remaining instruction (unreachable/nop/drop/select/end-of-control/return, all comparison and
		// arithmetic opcodes, ref.is_null) has no immediate operand.
		return wasm.UnresolvedInstr{Op: wasm.Opcode(op)}, nil
	}
}

func decodeFCInstr(r *bytes.Reader) (wasm.UnresolvedInstr, error) {
	sub, err := readVarU32(r)
	if err != nil {
		return wasm.UnresolvedInstr{}, err
	}
	op := wasm.Opcode(0xff00 | uint16(sub))
	switch sub {
	case 0, 1, 2, 3, 4, 5, 6, 7: // truncation saturation: no immediates
		return wasm.UnresolvedInstr{Op: op}, nil
	case 8: // memory.init
		dataIdx, err := readVarU32(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		if _, err := r.ReadByte(); err != nil { // memidx
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: op, DataIndex: dataIdx}, nil
	case 9: // data.drop
		idx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: op, DataIndex: idx}, err
	case 10: // memory.copy
		if _, err := r.ReadByte(); err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		if _, err := r.ReadByte(); err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: op}, nil
	case 11: // memory.fill
		if _, err := r.ReadByte(); err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: op}, nil
	case 12: // table.init
		elemIdx, err := readVarU32(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		tableIdx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: op, ElemIndex: elemIdx, TableIndex: tableIdx}, err
	case 13: // elem.drop
		idx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: op, ElemIndex: idx}, err
	case 14: // table.copy
		dst, err := readVarU32(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		src, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: op, TableIndex: dst, TableIndex2: src}, err
	case 15, 16, 17: // table.grow / table.size / table.fill
		idx, err := readVarU32(r)
		return wasm.UnresolvedInstr{Op: op, TableIndex: idx}, err
	default:
		return wasm.UnresolvedInstr{}, wasmerr.Newf(wasmerr.KindParse, "unknown 0xfc subopcode: %d", sub)
	}
}

// decodeFDInstr reads a 0xFD-prefixed SIMD instruction: a LEB128 sub-opcode followed by whatever immediate
// shape that sub-opcode carries. No vector instruction executes, so the decoded value is only ever used for
// validation (when FeatureSIMD is enabled); but every byte of the immediate must still be
// consumed here or the next instruction in the body would be misparsed.
func decodeFDInstr(r *bytes.Reader) (wasm.UnresolvedInstr, error) {
	sub, err := readVarU32(r)
	if err != nil {
		return wasm.UnresolvedInstr{}, err
	}
	op := wasm.SIMDOpcode(byte(sub))
	switch {
	case sub <= 0x0a: // v128.load and its extending/splatting variants: memarg
		align, offset, err := readMemArg(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: op, MemArgAlign: align, MemArgOffset: offset}, nil

	case sub == 0x0b: // v128.store: memarg
		align, offset, err := readMemArg(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: op, MemArgAlign: align, MemArgOffset: offset}, nil

	case sub == 0x0c: // v128.const: 16 raw bytes
		var v [16]byte
		if _, err := io.ReadFull(r, v[:]); err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: op, V128: v}, nil

	case sub == 0x0d: // i8x16.shuffle: 16 raw lane-index bytes
		var v [16]byte
		if _, err := io.ReadFull(r, v[:]); err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: op, V128: v}, nil

	case sub >= 0x15 && sub <= 0x22: // extract_lane / replace_lane family: one lane-index byte
		lane, err := r.ReadByte()
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: op, LaneIndex: lane}, nil

	case sub >= 0x54 && sub <= 0x5b: // load_lane / store_lane family: memarg plus a lane-index byte
		align, offset, err := readMemArg(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		lane, err := r.ReadByte()
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: op, MemArgAlign: align, MemArgOffset: offset, LaneIndex: lane}, nil

	case sub == 0x5c || sub == 0x5d: // v128.load32_zero / v128.load64_zero: memarg only
		align, offset, err := readMemArg(r)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
		return wasm.UnresolvedInstr{Op: op, MemArgAlign: align, MemArgOffset: offset}, nil

	default:
		// i8x16.swizzle, every splat, and the large lane-wise arithmetic/comparison/bitwise tail: operands
		// and results flow entirely through the operand stack, no immediate to read.
		return wasm.UnresolvedInstr{Op: op}, nil
	}
}

// readMemArg reads the align-then-offset LEB128 pair shared by every memory-accessing instruction's
// immediate, single-byte and SIMD alike.
func readMemArg(r *bytes.Reader) (align, offset uint32, err error) {
	if align, err = readVarU32(r); err != nil {
		return 0, 0, err
	}
	offset, err = readVarU32(r)
	return align, offset, err
}

// decodeBlockType reads a blocktype: 0x40 (empty), a value type byte, or a signed LEB128 type index.
func decodeBlockType(r *bytes.Reader) (bt wasm.BlockType, hasTypeIndex bool, typeIndex wasm.Index, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return wasm.BlockType{}, false, 0, err
	}
	if b == 0x40 {
		return wasm.BlockType{}, false, 0, nil
	}
	if isValueTypeByte(b) {
		return wasm.BlockType{Results: []wasm.ValueType{b}}, false, 0, nil
	}
	if err := r.UnreadByte(); err != nil {
		return wasm.BlockType{}, false, 0, err
	}
	idx, err := readVarI32(r)
	if err != nil {
		return wasm.BlockType{}, false, 0, err
	}
	return wasm.BlockType{}, true, wasm.Index(idx), nil
}

func isValueTypeByte(b byte) bool {
	switch b {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
		wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		return true
	}
	return false
}

func decodeConstExpr(r *bytes.Reader) (wasm.ConstExpr, error) {
	instrs, err := decodeInstrs(r)
	if err != nil {
		return wasm.ConstExpr{}, err
	}
	return wasm.ConstExpr{Instrs: instrs}, nil
}
