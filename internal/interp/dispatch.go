package interp

import (
	"context"
	"encoding/binary"
	"math"
	"math/bits"

	"wrun/internal/moremath"
	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

// run decodes and executes f.fn.Body from its current pc until the function-level end is reached (by falling
// off the closing `end`, by an explicit return, or by a branch whose depth exhausts every open label), at
// which point the frame's results sit on top of ce.stack ready for call to collect.
func (ce *callEngine) run(ctx context.Context, f *frame) {
	body := f.fn.Body
	mod := f.fn.Module
	store := ce.engine.store
	pc := f.pc

	readByte := func() byte { b := body[pc]; pc++; return b }
	readU32 := func() uint32 { v := binary.LittleEndian.Uint32(body[pc : pc+4]); pc += 4; return v }
	readU64 := func() uint64 { v := binary.LittleEndian.Uint64(body[pc : pc+8]); pc += 8; return v }

	for {
		opByte := readByte()
		op := wasm.Opcode(opByte)
		switch opByte {
		case 0xfc:
			op = wasm.ExtendedOpcode(readByte())
		case 0xfd:
			// No SIMD instruction is ever emitted with operands beyond its sub-opcode (see
			// internal/validate's emitter), so there's nothing further to skip here; the opcode falls
			// through to the unhandled-opcode panic below.
			op = wasm.SIMDOpcode(readByte())
		}

		switch op {
		case wasm.OpUnreachable:
			panic(wasmerr.NewTrap(wasmerr.TrapUnreachable, ""))
		case wasm.OpNop:

		case wasm.OpBlock, wasm.OpLoop:
			paramCount := readU32()
			resultCount := readU32()
			target := readU32()
			height := len(ce.stack) - int(paramCount)
			arity := int(resultCount)
			if op == wasm.OpLoop {
				arity = int(paramCount)
			}
			f.labels = append(f.labels, label{targetPC: int(target), height: height, arity: arity})

		case wasm.OpIf:
			paramCount := readU32()
			resultCount := readU32()
			endTarget := readU32()
			elseTarget := readU32()
			cond := ce.popValue()
			height := len(ce.stack) - int(paramCount)
			f.labels = append(f.labels, label{targetPC: int(endTarget), height: height, arity: int(resultCount)})
			if cond == 0 {
				pc = int(elseTarget) + 1 // skip the `else` opcode byte, run the else-body directly
			}

		case wasm.OpElse:
			// Only reached by falling out of a then-branch: skip the else-body and its own `end` entirely.
			lbl := f.labels[len(f.labels)-1]
			f.labels = f.labels[:len(f.labels)-1]
			pc = lbl.targetPC

		case wasm.OpEnd:
			if len(f.labels) == 0 {
				return
			}
			f.labels = f.labels[:len(f.labels)-1]

		case wasm.OpBr:
			depth := readU32()
			target, isReturn := ce.branch(f, depth)
			if isReturn {
				return
			}
			pc = target

		case wasm.OpBrIf:
			depth := readU32()
			cond := ce.popValue()
			if cond != 0 {
				target, isReturn := ce.branch(f, depth)
				if isReturn {
					return
				}
				pc = target
			}

		case wasm.OpBrTable:
			n := readU32()
			labels := make([]uint32, n+1)
			for i := range labels {
				labels[i] = readU32()
			}
			idx := uint32(ce.popValue())
			depth := labels[n]
			if idx < n {
				depth = labels[idx]
			}
			target, isReturn := ce.branch(f, depth)
			if isReturn {
				return
			}
			pc = target

		case wasm.OpReturn:
			arity := len(f.fn.Type.Results)
			vals := ce.popValuesN(arity)
			ce.stack = ce.stack[:f.baseHeight]
			ce.pushValues(vals)
			return

		case wasm.OpCall:
			idx := readU32()
			callee := store.Function(mod.FunctionAddrs[idx])
			args := ce.popValuesN(len(callee.Type.Params))
			ce.pushValues(ce.call(ctx, callee, args))

		case wasm.OpCallIndirect:
			tableIdx := readU32()
			typeIdx := readU32()
			elemIdx := uint32(ce.popValue())
			table := store.Table(mod.TableAddrs[tableIdx])
			if elemIdx >= uint32(len(table.Refs)) {
				panic(wasmerr.NewTrap(wasmerr.TrapOutOfBoundsTableAccess, ""))
			}
			ref := table.Refs[elemIdx]
			if ref.IsNull {
				panic(wasmerr.NewTrap(wasmerr.TrapUninitializedElement, ""))
			}
			callee := store.Function(ref.Func)
			want := mod.Types[typeIdx]
			if !callee.Type.EqualsSignature(want) {
				panic(wasmerr.NewTrap(wasmerr.TrapIndirectCallTypeMismatch, ""))
			}
			args := ce.popValuesN(len(callee.Type.Params))
			ce.pushValues(ce.call(ctx, callee, args))

		case wasm.OpDrop:
			ce.popValue()

		case wasm.OpSelect, wasm.OpSelectT:
			if op == wasm.OpSelectT {
				readByte() // declared result type, not needed to execute the selection itself
			}
			cond := ce.popValue()
			b := ce.popValue()
			a := ce.popValue()
			if cond != 0 {
				ce.pushValue(a)
			} else {
				ce.pushValue(b)
			}

		case wasm.OpLocalGet:
			idx := readU32()
			ce.pushValue(f.locals[idx])
		case wasm.OpLocalSet:
			idx := readU32()
			f.locals[idx] = ce.popValue()
		case wasm.OpLocalTee:
			idx := readU32()
			f.locals[idx] = ce.peekValue()

		case wasm.OpGlobalGet:
			idx := readU32()
			g := store.Global(mod.GlobalAddrs[idx])
			if isReferenceType(g.Type.ValType) {
				ce.pushValue(encodeRef(g.Ref))
			} else {
				ce.pushValue(g.Value)
			}
		case wasm.OpGlobalSet:
			idx := readU32()
			g := store.Global(mod.GlobalAddrs[idx])
			v := ce.popValue()
			if isReferenceType(g.Type.ValType) {
				g.Ref = decodeRef(g.Type.ValType, v)
			} else {
				g.Value = v
			}

		case wasm.OpTableGet:
			idx := readU32()
			table := store.Table(mod.TableAddrs[idx])
			i := uint32(ce.popValue())
			if i >= uint32(len(table.Refs)) {
				panic(wasmerr.NewTrap(wasmerr.TrapOutOfBoundsTableAccess, ""))
			}
			ce.pushValue(encodeRef(table.Refs[i]))
		case wasm.OpTableSet:
			idx := readU32()
			table := store.Table(mod.TableAddrs[idx])
			v := ce.popValue()
			i := uint32(ce.popValue())
			if i >= uint32(len(table.Refs)) {
				panic(wasmerr.NewTrap(wasmerr.TrapOutOfBoundsTableAccess, ""))
			}
			table.Refs[i] = decodeRef(table.Type.RefType, v)

		case wasm.OpMemorySize:
			mem := store.Memory(mod.MemoryAddrs[0])
			ce.pushValue(uint64(mem.PageCount()))
		case wasm.OpMemoryGrow:
			mem := store.Memory(mod.MemoryAddrs[0])
			delta := uint32(ce.popValue())
			prev, ok := mem.Grow(delta)
			if !ok {
				ce.pushValue(uint64(uint32(0xffffffff)))
			} else {
				ce.pushValue(uint64(prev))
			}

		case wasm.OpI32Const:
			ce.pushValue(uint64(readU32()))
		case wasm.OpI64Const:
			ce.pushValue(readU64())
		case wasm.OpF32Const:
			ce.pushValue(uint64(readU32()))
		case wasm.OpF64Const:
			ce.pushValue(readU64())

		case wasm.OpRefNull:
			t := wasm.ValueType(readByte())
			ce.pushValue(encodeRef(wasm.NullReference(t)))
		case wasm.OpRefIsNull:
			v := ce.popValue()
			if v == 0 {
				ce.pushValue(1)
			} else {
				ce.pushValue(0)
			}
		case wasm.OpRefFunc:
			idx := readU32()
			ce.pushValue(encodeRef(wasm.Reference{Type: wasm.ValueTypeFuncref, Func: mod.FunctionAddrs[idx]}))

		case wasm.OpMemoryInit, wasm.OpDataDrop, wasm.OpMemoryCopy, wasm.OpMemoryFill:
			ce.execMemoryBulk(op, mod, store, readU32)
		case wasm.OpTableInit, wasm.OpElemDrop, wasm.OpTableCopy, wasm.OpTableGrow, wasm.OpTableSize, wasm.OpTableFill:
			ce.execTableBulk(op, mod, store, readU32)

		default:
			if isLoadOp(op) || isStoreOp(op) {
				ce.execMemAccess(op, mod, store, readU32)
			} else {
				ce.execNumeric(op)
			}
		}
	}
}

func isReferenceType(t wasm.ValueType) bool {
	return t == wasm.ValueTypeFuncref || t == wasm.ValueTypeExternref
}

func isLoadOp(op wasm.Opcode) bool {
	switch op {
	case wasm.OpI32Load, wasm.OpI64Load, wasm.OpF32Load, wasm.OpF64Load,
		wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI32Load16S, wasm.OpI32Load16U,
		wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI64Load16S, wasm.OpI64Load16U,
		wasm.OpI64Load32S, wasm.OpI64Load32U:
		return true
	}
	return false
}

func isStoreOp(op wasm.Opcode) bool {
	switch op {
	case wasm.OpI32Store, wasm.OpI64Store, wasm.OpF32Store, wasm.OpF64Store,
		wasm.OpI32Store8, wasm.OpI32Store16, wasm.OpI64Store8, wasm.OpI64Store16, wasm.OpI64Store32:
		return true
	}
	return false
}

func effectiveAddr(base uint64, offset uint32, size uint32, memLen int) uint32 {
	ea := base + uint64(offset)
	if ea+uint64(size) > uint64(memLen) {
		panic(wasmerr.NewTrap(wasmerr.TrapOutOfBoundsMemoryAccess, ""))
	}
	return uint32(ea)
}

// execMemAccess runs every load/store opcode. The alignment immediate is read and discarded: WebAssembly
// permits misaligned access, so it's a performance hint the interpreter has no use for.
func (ce *callEngine) execMemAccess(op wasm.Opcode, mod *wasm.ModuleInstance, store *wasm.Store, readU32 func() uint32) {
	readU32() // align
	offset := readU32()
	mem := store.Memory(mod.MemoryAddrs[0])

	if isLoadOp(op) {
		addr := uint64(uint32(ce.popValue()))
		switch op {
		case wasm.OpI32Load:
			ea := effectiveAddr(addr, offset, 4, len(mem.Bytes))
			ce.pushValue(uint64(binary.LittleEndian.Uint32(mem.Bytes[ea:])))
		case wasm.OpI64Load:
			ea := effectiveAddr(addr, offset, 8, len(mem.Bytes))
			ce.pushValue(binary.LittleEndian.Uint64(mem.Bytes[ea:]))
		case wasm.OpF32Load:
			ea := effectiveAddr(addr, offset, 4, len(mem.Bytes))
			ce.pushValue(uint64(binary.LittleEndian.Uint32(mem.Bytes[ea:])))
		case wasm.OpF64Load:
			ea := effectiveAddr(addr, offset, 8, len(mem.Bytes))
			ce.pushValue(binary.LittleEndian.Uint64(mem.Bytes[ea:]))
		case wasm.OpI32Load8S:
			ea := effectiveAddr(addr, offset, 1, len(mem.Bytes))
			ce.pushValue(uint64(uint32(int32(int8(mem.Bytes[ea])))))
		case wasm.OpI32Load8U:
			ea := effectiveAddr(addr, offset, 1, len(mem.Bytes))
			ce.pushValue(uint64(mem.Bytes[ea]))
		case wasm.OpI32Load16S:
			ea := effectiveAddr(addr, offset, 2, len(mem.Bytes))
			ce.pushValue(uint64(uint32(int32(int16(binary.LittleEndian.Uint16(mem.Bytes[ea:]))))))
		case wasm.OpI32Load16U:
			ea := effectiveAddr(addr, offset, 2, len(mem.Bytes))
			ce.pushValue(uint64(binary.LittleEndian.Uint16(mem.Bytes[ea:])))
		case wasm.OpI64Load8S:
			ea := effectiveAddr(addr, offset, 1, len(mem.Bytes))
			ce.pushValue(uint64(int64(int8(mem.Bytes[ea]))))
		case wasm.OpI64Load8U:
			ea := effectiveAddr(addr, offset, 1, len(mem.Bytes))
			ce.pushValue(uint64(mem.Bytes[ea]))
		case wasm.OpI64Load16S:
			ea := effectiveAddr(addr, offset, 2, len(mem.Bytes))
			ce.pushValue(uint64(int64(int16(binary.LittleEndian.Uint16(mem.Bytes[ea:])))))
		case wasm.OpI64Load16U:
			ea := effectiveAddr(addr, offset, 2, len(mem.Bytes))
			ce.pushValue(uint64(binary.LittleEndian.Uint16(mem.Bytes[ea:])))
		case wasm.OpI64Load32S:
			ea := effectiveAddr(addr, offset, 4, len(mem.Bytes))
			ce.pushValue(uint64(int64(int32(binary.LittleEndian.Uint32(mem.Bytes[ea:])))))
		case wasm.OpI64Load32U:
			ea := effectiveAddr(addr, offset, 4, len(mem.Bytes))
			ce.pushValue(uint64(binary.LittleEndian.Uint32(mem.Bytes[ea:])))
		}
		return
	}

	switch op {
	case wasm.OpI32Store:
		v := uint32(ce.popValue())
		addr := uint64(uint32(ce.popValue()))
		ea := effectiveAddr(addr, offset, 4, len(mem.Bytes))
		binary.LittleEndian.PutUint32(mem.Bytes[ea:], v)
	case wasm.OpI64Store:
		v := ce.popValue()
		addr := uint64(uint32(ce.popValue()))
		ea := effectiveAddr(addr, offset, 8, len(mem.Bytes))
		binary.LittleEndian.PutUint64(mem.Bytes[ea:], v)
	case wasm.OpF32Store:
		v := uint32(ce.popValue())
		addr := uint64(uint32(ce.popValue()))
		ea := effectiveAddr(addr, offset, 4, len(mem.Bytes))
		binary.LittleEndian.PutUint32(mem.Bytes[ea:], v)
	case wasm.OpF64Store:
		v := ce.popValue()
		addr := uint64(uint32(ce.popValue()))
		ea := effectiveAddr(addr, offset, 8, len(mem.Bytes))
		binary.LittleEndian.PutUint64(mem.Bytes[ea:], v)
	case wasm.OpI32Store8:
		v := byte(ce.popValue())
		addr := uint64(uint32(ce.popValue()))
		ea := effectiveAddr(addr, offset, 1, len(mem.Bytes))
		mem.Bytes[ea] = v
	case wasm.OpI32Store16:
		v := uint16(ce.popValue())
		addr := uint64(uint32(ce.popValue()))
		ea := effectiveAddr(addr, offset, 2, len(mem.Bytes))
		binary.LittleEndian.PutUint16(mem.Bytes[ea:], v)
	case wasm.OpI64Store8:
		v := byte(ce.popValue())
		addr := uint64(uint32(ce.popValue()))
		ea := effectiveAddr(addr, offset, 1, len(mem.Bytes))
		mem.Bytes[ea] = v
	case wasm.OpI64Store16:
		v := uint16(ce.popValue())
		addr := uint64(uint32(ce.popValue()))
		ea := effectiveAddr(addr, offset, 2, len(mem.Bytes))
		binary.LittleEndian.PutUint16(mem.Bytes[ea:], v)
	case wasm.OpI64Store32:
		v := uint32(ce.popValue())
		addr := uint64(uint32(ce.popValue()))
		ea := effectiveAddr(addr, offset, 4, len(mem.Bytes))
		binary.LittleEndian.PutUint32(mem.Bytes[ea:], v)
	}
}

func (ce *callEngine) execMemoryBulk(op wasm.Opcode, mod *wasm.ModuleInstance, store *wasm.Store, readU32 func() uint32) {
	switch op {
	case wasm.OpMemoryInit:
		dataIdx := readU32()
		n := uint32(ce.popValue())
		src := uint32(ce.popValue())
		dst := uint32(ce.popValue())
		mem := store.Memory(mod.MemoryAddrs[0])
		data := store.DataSeg(mod.DataAddrs[dataIdx])
		if uint64(src)+uint64(n) > uint64(len(data.Bytes)) || uint64(dst)+uint64(n) > uint64(len(mem.Bytes)) {
			panic(wasmerr.NewTrap(wasmerr.TrapOutOfBoundsMemoryAccess, "memory.init"))
		}
		copy(mem.Bytes[dst:dst+n], data.Bytes[src:src+n])
	case wasm.OpDataDrop:
		dataIdx := readU32()
		store.DataSeg(mod.DataAddrs[dataIdx]).Bytes = nil
	case wasm.OpMemoryCopy:
		n := uint32(ce.popValue())
		src := uint32(ce.popValue())
		dst := uint32(ce.popValue())
		mem := store.Memory(mod.MemoryAddrs[0])
		if uint64(src)+uint64(n) > uint64(len(mem.Bytes)) || uint64(dst)+uint64(n) > uint64(len(mem.Bytes)) {
			panic(wasmerr.NewTrap(wasmerr.TrapOutOfBoundsMemoryAccess, "memory.copy"))
		}
		copy(mem.Bytes[dst:dst+n], mem.Bytes[src:src+n])
	case wasm.OpMemoryFill:
		n := uint32(ce.popValue())
		val := byte(ce.popValue())
		dst := uint32(ce.popValue())
		mem := store.Memory(mod.MemoryAddrs[0])
		if uint64(dst)+uint64(n) > uint64(len(mem.Bytes)) {
			panic(wasmerr.NewTrap(wasmerr.TrapOutOfBoundsMemoryAccess, "memory.fill"))
		}
		for i := uint32(0); i < n; i++ {
			mem.Bytes[dst+i] = val
		}
	}
}

func (ce *callEngine) execTableBulk(op wasm.Opcode, mod *wasm.ModuleInstance, store *wasm.Store, readU32 func() uint32) {
	switch op {
	case wasm.OpTableInit:
		elemIdx := readU32()
		tableIdx := readU32()
		n := uint32(ce.popValue())
		src := uint32(ce.popValue())
		dst := uint32(ce.popValue())
		table := store.Table(mod.TableAddrs[tableIdx])
		elem := store.Element(mod.ElementAddrs[elemIdx])
		if uint64(src)+uint64(n) > uint64(len(elem.Refs)) || uint64(dst)+uint64(n) > uint64(len(table.Refs)) {
			panic(wasmerr.NewTrap(wasmerr.TrapOutOfBoundsTableAccess, "table.init"))
		}
		copy(table.Refs[dst:dst+n], elem.Refs[src:src+n])
	case wasm.OpElemDrop:
		elemIdx := readU32()
		store.Element(mod.ElementAddrs[elemIdx]).Refs = nil
	case wasm.OpTableCopy:
		dstIdx := readU32()
		srcIdx := readU32()
		n := uint32(ce.popValue())
		src := uint32(ce.popValue())
		dst := uint32(ce.popValue())
		dstTable := store.Table(mod.TableAddrs[dstIdx])
		srcTable := store.Table(mod.TableAddrs[srcIdx])
		if uint64(src)+uint64(n) > uint64(len(srcTable.Refs)) || uint64(dst)+uint64(n) > uint64(len(dstTable.Refs)) {
			panic(wasmerr.NewTrap(wasmerr.TrapOutOfBoundsTableAccess, "table.copy"))
		}
		copy(dstTable.Refs[dst:dst+n], srcTable.Refs[src:src+n])
	case wasm.OpTableGrow:
		tableIdx := readU32()
		table := store.Table(mod.TableAddrs[tableIdx])
		n := uint32(ce.popValue())
		v := ce.popValue()
		ref := decodeRef(table.Type.RefType, v)
		prev := uint32(len(table.Refs))
		next := prev + n
		if n != 0 && next < prev {
			ce.pushValue(uint64(uint32(0xffffffff)))
			return
		}
		if (table.Type.Limits.Max != nil && next > *table.Type.Limits.Max) || next > wasm.MaxTableSize {
			ce.pushValue(uint64(uint32(0xffffffff)))
			return
		}
		grown := make([]wasm.Reference, next)
		copy(grown, table.Refs)
		for i := prev; i < next; i++ {
			grown[i] = ref
		}
		table.Refs = grown
		ce.pushValue(uint64(prev))
	case wasm.OpTableSize:
		tableIdx := readU32()
		table := store.Table(mod.TableAddrs[tableIdx])
		ce.pushValue(uint64(len(table.Refs)))
	case wasm.OpTableFill:
		tableIdx := readU32()
		table := store.Table(mod.TableAddrs[tableIdx])
		n := uint32(ce.popValue())
		v := ce.popValue()
		i := uint32(ce.popValue())
		if uint64(i)+uint64(n) > uint64(len(table.Refs)) {
			panic(wasmerr.NewTrap(wasmerr.TrapOutOfBoundsTableAccess, "table.fill"))
		}
		ref := decodeRef(table.Type.RefType, v)
		for k := uint32(0); k < n; k++ {
			table.Refs[i+k] = ref
		}
	}
}

// execNumeric handles every opcode with a context-free operand/result shape: comparisons, arithmetic,
// bitwise, and conversions. Opcodes not recognized here (control flow, locals, memory, ...) never reach this
// function since run's switch dispatches them earlier.
func (ce *callEngine) execNumeric(op wasm.Opcode) {
	switch op {
	// i32 comparisons
	case wasm.OpI32Eqz:
		ce.pushValue(boolU64(int32(ce.popValue()) == 0))
	case wasm.OpI32Eq:
		b, a := int32(ce.popValue()), int32(ce.popValue())
		ce.pushValue(boolU64(a == b))
	case wasm.OpI32Ne:
		b, a := int32(ce.popValue()), int32(ce.popValue())
		ce.pushValue(boolU64(a != b))
	case wasm.OpI32LtS:
		b, a := int32(ce.popValue()), int32(ce.popValue())
		ce.pushValue(boolU64(a < b))
	case wasm.OpI32LtU:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(boolU64(a < b))
	case wasm.OpI32GtS:
		b, a := int32(ce.popValue()), int32(ce.popValue())
		ce.pushValue(boolU64(a > b))
	case wasm.OpI32GtU:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(boolU64(a > b))
	case wasm.OpI32LeS:
		b, a := int32(ce.popValue()), int32(ce.popValue())
		ce.pushValue(boolU64(a <= b))
	case wasm.OpI32LeU:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(boolU64(a <= b))
	case wasm.OpI32GeS:
		b, a := int32(ce.popValue()), int32(ce.popValue())
		ce.pushValue(boolU64(a >= b))
	case wasm.OpI32GeU:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(boolU64(a >= b))

	// i64 comparisons
	case wasm.OpI64Eqz:
		ce.pushValue(boolU64(ce.popValue() == 0))
	case wasm.OpI64Eq:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(boolU64(a == b))
	case wasm.OpI64Ne:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(boolU64(a != b))
	case wasm.OpI64LtS:
		b, a := int64(ce.popValue()), int64(ce.popValue())
		ce.pushValue(boolU64(a < b))
	case wasm.OpI64LtU:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(boolU64(a < b))
	case wasm.OpI64GtS:
		b, a := int64(ce.popValue()), int64(ce.popValue())
		ce.pushValue(boolU64(a > b))
	case wasm.OpI64GtU:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(boolU64(a > b))
	case wasm.OpI64LeS:
		b, a := int64(ce.popValue()), int64(ce.popValue())
		ce.pushValue(boolU64(a <= b))
	case wasm.OpI64LeU:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(boolU64(a <= b))
	case wasm.OpI64GeS:
		b, a := int64(ce.popValue()), int64(ce.popValue())
		ce.pushValue(boolU64(a >= b))
	case wasm.OpI64GeU:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(boolU64(a >= b))

	// f32/f64 comparisons
	case wasm.OpF32Eq:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(boolU64(a == b))
	case wasm.OpF32Ne:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(boolU64(a != b))
	case wasm.OpF32Lt:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(boolU64(a < b))
	case wasm.OpF32Gt:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(boolU64(a > b))
	case wasm.OpF32Le:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(boolU64(a <= b))
	case wasm.OpF32Ge:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(boolU64(a >= b))
	case wasm.OpF64Eq:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(boolU64(a == b))
	case wasm.OpF64Ne:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(boolU64(a != b))
	case wasm.OpF64Lt:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(boolU64(a < b))
	case wasm.OpF64Gt:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(boolU64(a > b))
	case wasm.OpF64Le:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(boolU64(a <= b))
	case wasm.OpF64Ge:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(boolU64(a >= b))

	// i32 arithmetic
	case wasm.OpI32Clz:
		ce.pushValue(uint64(bits.LeadingZeros32(uint32(ce.popValue()))))
	case wasm.OpI32Ctz:
		ce.pushValue(uint64(bits.TrailingZeros32(uint32(ce.popValue()))))
	case wasm.OpI32Popcnt:
		ce.pushValue(uint64(bits.OnesCount32(uint32(ce.popValue()))))
	case wasm.OpI32Add:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(a + b))
	case wasm.OpI32Sub:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(a - b))
	case wasm.OpI32Mul:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(a * b))
	case wasm.OpI32DivS:
		b, a := int32(ce.popValue()), int32(ce.popValue())
		ce.pushValue(uint64(uint32(divI32S(a, b))))
	case wasm.OpI32DivU:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(divU32(a, b)))
	case wasm.OpI32RemS:
		b, a := int32(ce.popValue()), int32(ce.popValue())
		ce.pushValue(uint64(uint32(remI32S(a, b))))
	case wasm.OpI32RemU:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(remU32(a, b)))
	case wasm.OpI32And:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(a & b))
	case wasm.OpI32Or:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(a | b))
	case wasm.OpI32Xor:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(a ^ b))
	case wasm.OpI32Shl:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(a << (b & 31)))
	case wasm.OpI32ShrS:
		b, a := uint32(ce.popValue()), int32(ce.popValue())
		ce.pushValue(uint64(uint32(a >> (b & 31))))
	case wasm.OpI32ShrU:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(a >> (b & 31)))
	case wasm.OpI32Rotl:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(bits.RotateLeft32(a, int(b))))
	case wasm.OpI32Rotr:
		b, a := uint32(ce.popValue()), uint32(ce.popValue())
		ce.pushValue(uint64(bits.RotateLeft32(a, -int(b))))

	// i64 arithmetic
	case wasm.OpI64Clz:
		ce.pushValue(uint64(bits.LeadingZeros64(ce.popValue())))
	case wasm.OpI64Ctz:
		ce.pushValue(uint64(bits.TrailingZeros64(ce.popValue())))
	case wasm.OpI64Popcnt:
		ce.pushValue(uint64(bits.OnesCount64(ce.popValue())))
	case wasm.OpI64Add:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(a + b)
	case wasm.OpI64Sub:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(a - b)
	case wasm.OpI64Mul:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(a * b)
	case wasm.OpI64DivS:
		b, a := int64(ce.popValue()), int64(ce.popValue())
		ce.pushValue(uint64(divI64S(a, b)))
	case wasm.OpI64DivU:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(divU64(a, b))
	case wasm.OpI64RemS:
		b, a := int64(ce.popValue()), int64(ce.popValue())
		ce.pushValue(uint64(remI64S(a, b)))
	case wasm.OpI64RemU:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(remU64(a, b))
	case wasm.OpI64And:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(a & b)
	case wasm.OpI64Or:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(a | b)
	case wasm.OpI64Xor:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(a ^ b)
	case wasm.OpI64Shl:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(a << (b & 63))
	case wasm.OpI64ShrS:
		b, a := ce.popValue(), int64(ce.popValue())
		ce.pushValue(uint64(a >> (b & 63)))
	case wasm.OpI64ShrU:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(a >> (b & 63))
	case wasm.OpI64Rotl:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(bits.RotateLeft64(a, int(b)))
	case wasm.OpI64Rotr:
		b, a := ce.popValue(), ce.popValue()
		ce.pushValue(bits.RotateLeft64(a, -int(b)))

	// f32 arithmetic
	case wasm.OpF32Abs:
		ce.pushValue(pushF32(float32(math.Abs(float64(popF32(ce))))))
	case wasm.OpF32Neg:
		ce.pushValue(pushF32(-popF32(ce)))
	case wasm.OpF32Ceil:
		ce.pushValue(pushF32(float32(math.Ceil(float64(popF32(ce))))))
	case wasm.OpF32Floor:
		ce.pushValue(pushF32(float32(math.Floor(float64(popF32(ce))))))
	case wasm.OpF32Trunc:
		ce.pushValue(pushF32(float32(math.Trunc(float64(popF32(ce))))))
	case wasm.OpF32Nearest:
		ce.pushValue(pushF32(moremath.WasmCompatNearestF32(popF32(ce))))
	case wasm.OpF32Sqrt:
		ce.pushValue(pushF32(float32(math.Sqrt(float64(popF32(ce))))))
	case wasm.OpF32Add:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(pushF32(a + b))
	case wasm.OpF32Sub:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(pushF32(a - b))
	case wasm.OpF32Mul:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(pushF32(a * b))
	case wasm.OpF32Div:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(pushF32(a / b))
	case wasm.OpF32Min:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(pushF32(float32(moremath.WasmCompatMin(float64(a), float64(b)))))
	case wasm.OpF32Max:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(pushF32(float32(moremath.WasmCompatMax(float64(a), float64(b)))))
	case wasm.OpF32Copysign:
		b, a := popF32(ce), popF32(ce)
		ce.pushValue(pushF32(float32(math.Copysign(float64(a), float64(b)))))

	// f64 arithmetic
	case wasm.OpF64Abs:
		ce.pushValue(pushF64(math.Abs(popF64(ce))))
	case wasm.OpF64Neg:
		ce.pushValue(pushF64(-popF64(ce)))
	case wasm.OpF64Ceil:
		ce.pushValue(pushF64(math.Ceil(popF64(ce))))
	case wasm.OpF64Floor:
		ce.pushValue(pushF64(math.Floor(popF64(ce))))
	case wasm.OpF64Trunc:
		ce.pushValue(pushF64(math.Trunc(popF64(ce))))
	case wasm.OpF64Nearest:
		ce.pushValue(pushF64(moremath.WasmCompatNearestF64(popF64(ce))))
	case wasm.OpF64Sqrt:
		ce.pushValue(pushF64(math.Sqrt(popF64(ce))))
	case wasm.OpF64Add:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(pushF64(a + b))
	case wasm.OpF64Sub:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(pushF64(a - b))
	case wasm.OpF64Mul:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(pushF64(a * b))
	case wasm.OpF64Div:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(pushF64(a / b))
	case wasm.OpF64Min:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(pushF64(moremath.WasmCompatMin(a, b)))
	case wasm.OpF64Max:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(pushF64(moremath.WasmCompatMax(a, b)))
	case wasm.OpF64Copysign:
		b, a := popF64(ce), popF64(ce)
		ce.pushValue(pushF64(math.Copysign(a, b)))

	// conversions
	case wasm.OpI32WrapI64:
		ce.pushValue(uint64(uint32(ce.popValue())))
	case wasm.OpI32TruncF32S:
		ce.pushValue(uint64(uint32(truncI32S(float64(popF32(ce))))))
	case wasm.OpI32TruncF32U:
		ce.pushValue(uint64(truncI32U(float64(popF32(ce)))))
	case wasm.OpI32TruncF64S:
		ce.pushValue(uint64(uint32(truncI32S(popF64(ce)))))
	case wasm.OpI32TruncF64U:
		ce.pushValue(uint64(truncI32U(popF64(ce))))
	case wasm.OpI64ExtendI32S:
		ce.pushValue(uint64(int64(int32(ce.popValue()))))
	case wasm.OpI64ExtendI32U:
		ce.pushValue(uint64(uint32(ce.popValue())))
	case wasm.OpI64TruncF32S:
		ce.pushValue(uint64(truncI64S(float64(popF32(ce)))))
	case wasm.OpI64TruncF32U:
		ce.pushValue(truncI64U(float64(popF32(ce))))
	case wasm.OpI64TruncF64S:
		ce.pushValue(uint64(truncI64S(popF64(ce))))
	case wasm.OpI64TruncF64U:
		ce.pushValue(truncI64U(popF64(ce)))
	case wasm.OpF32ConvertI32S:
		ce.pushValue(pushF32(float32(int32(ce.popValue()))))
	case wasm.OpF32ConvertI32U:
		ce.pushValue(pushF32(float32(uint32(ce.popValue()))))
	case wasm.OpF32ConvertI64S:
		ce.pushValue(pushF32(float32(int64(ce.popValue()))))
	case wasm.OpF32ConvertI64U:
		ce.pushValue(pushF32(float32(ce.popValue())))
	case wasm.OpF32DemoteF64:
		ce.pushValue(pushF32(float32(popF64(ce))))
	case wasm.OpF64ConvertI32S:
		ce.pushValue(pushF64(float64(int32(ce.popValue()))))
	case wasm.OpF64ConvertI32U:
		ce.pushValue(pushF64(float64(uint32(ce.popValue()))))
	case wasm.OpF64ConvertI64S:
		ce.pushValue(pushF64(float64(int64(ce.popValue()))))
	case wasm.OpF64ConvertI64U:
		ce.pushValue(pushF64(float64(ce.popValue())))
	case wasm.OpF64PromoteF32:
		ce.pushValue(pushF64(float64(popF32(ce))))
	case wasm.OpI32ReinterpretF32:
		ce.pushValue(ce.popValue())
	case wasm.OpI64ReinterpretF64:
		ce.pushValue(ce.popValue())
	case wasm.OpF32ReinterpretI32:
		ce.pushValue(ce.popValue())
	case wasm.OpF64ReinterpretI64:
		ce.pushValue(ce.popValue())

	case wasm.OpI32Extend8S:
		ce.pushValue(uint64(uint32(int32(int8(ce.popValue())))))
	case wasm.OpI32Extend16S:
		ce.pushValue(uint64(uint32(int32(int16(ce.popValue())))))
	case wasm.OpI64Extend8S:
		ce.pushValue(uint64(int64(int8(ce.popValue()))))
	case wasm.OpI64Extend16S:
		ce.pushValue(uint64(int64(int16(ce.popValue()))))
	case wasm.OpI64Extend32S:
		ce.pushValue(uint64(int64(int32(ce.popValue()))))

	case wasm.OpI32TruncSatF32S:
		ce.pushValue(uint64(uint32(truncSatI32S(float64(popF32(ce))))))
	case wasm.OpI32TruncSatF32U:
		ce.pushValue(uint64(truncSatI32U(float64(popF32(ce)))))
	case wasm.OpI32TruncSatF64S:
		ce.pushValue(uint64(uint32(truncSatI32S(popF64(ce)))))
	case wasm.OpI32TruncSatF64U:
		ce.pushValue(uint64(truncSatI32U(popF64(ce))))
	case wasm.OpI64TruncSatF32S:
		ce.pushValue(uint64(truncSatI64S(float64(popF32(ce)))))
	case wasm.OpI64TruncSatF32U:
		ce.pushValue(truncSatI64U(float64(popF32(ce))))
	case wasm.OpI64TruncSatF64S:
		ce.pushValue(uint64(truncSatI64S(popF64(ce))))
	case wasm.OpI64TruncSatF64U:
		ce.pushValue(truncSatI64U(popF64(ce)))

	default:
		panic(wasmerr.Newf(wasmerr.KindTrap, "interp: unhandled opcode %s", op))
	}
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func popF32(ce *callEngine) float32 { return math.Float32frombits(uint32(ce.popValue())) }
func popF64(ce *callEngine) float64 { return math.Float64frombits(ce.popValue()) }
func pushF32(f float32) uint64      { return uint64(math.Float32bits(f)) }
func pushF64(f float64) uint64      { return math.Float64bits(f) }
