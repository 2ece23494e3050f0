// Package disasm renders an already-validated function body (the fixed-width bytecode internal/validate emits
// and internal/interp's dispatch loop reads directly, see internal/interp/dispatch.go's readByte/readU32/
// readU64 triple) back into readable mnemonic text: one instruction per line, opcode name first, then any
// resolved immediates (local/global/function/table index, branch target program counter, constant value).
//
// This is a pure reader: it never executes anything and shares no state with internal/interp, though it must
// agree with dispatch.go's run byte-for-byte about how many immediates each opcode consumes and in what
// encoding, since both are reading the same stream emitted by internal/validate's emitter.
package disasm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"wrun/api"
	"wrun/internal/wasm"
)

// Function disassembles a single function body into one line of text per instruction, prefixed with its
// byte offset in the stream so branch targets can be cross-referenced by eye.
func Function(code *wasm.Code) string {
	var b strings.Builder
	body := code.Body
	pc := 0

	readByte := func() byte { v := body[pc]; pc++; return v }
	readU32 := func() uint32 { v := binary.LittleEndian.Uint32(body[pc : pc+4]); pc += 4; return v }
	readU64 := func() uint64 { v := binary.LittleEndian.Uint64(body[pc : pc+8]); pc += 8; return v }

	for pc < len(body) {
		start := pc
		opByte := readByte()
		op := wasm.Opcode(opByte)
		if opByte == 0xfc {
			op = wasm.ExtendedOpcode(readByte())
		} else if opByte == 0xfd {
			op = wasm.SIMDOpcode(readByte())
		}

		fmt.Fprintf(&b, "%6d  %s", start, op)

		switch op {
		case wasm.OpBlock, wasm.OpLoop:
			paramCount, resultCount, target := readU32(), readU32(), readU32()
			fmt.Fprintf(&b, " params=%d results=%d target=%d", paramCount, resultCount, target)

		case wasm.OpIf:
			paramCount, resultCount, endTarget, elseTarget := readU32(), readU32(), readU32(), readU32()
			fmt.Fprintf(&b, " params=%d results=%d end=%d else=%d", paramCount, resultCount, endTarget, elseTarget)

		case wasm.OpBr, wasm.OpBrIf:
			fmt.Fprintf(&b, " depth=%d", readU32())

		case wasm.OpBrTable:
			n := readU32()
			depths := make([]uint32, n+1)
			for i := range depths {
				depths[i] = readU32()
			}
			fmt.Fprintf(&b, " %v", depths)

		case wasm.OpCall, wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee, wasm.OpGlobalGet, wasm.OpGlobalSet,
			wasm.OpTableGet, wasm.OpTableSet, wasm.OpRefFunc, wasm.OpDataDrop, wasm.OpElemDrop, wasm.OpTableGrow,
			wasm.OpTableSize, wasm.OpTableFill:
			fmt.Fprintf(&b, " %d", readU32())

		case wasm.OpCallIndirect:
			tableIdx, typeIdx := readU32(), readU32()
			fmt.Fprintf(&b, " table=%d type=%d", tableIdx, typeIdx)

		case wasm.OpMemoryInit:
			fmt.Fprintf(&b, " data=%d", readU32())

		case wasm.OpTableInit:
			elemIdx, tableIdx := readU32(), readU32()
			fmt.Fprintf(&b, " elem=%d table=%d", elemIdx, tableIdx)

		case wasm.OpTableCopy:
			dstIdx, srcIdx := readU32(), readU32()
			fmt.Fprintf(&b, " dst=%d src=%d", dstIdx, srcIdx)

		case wasm.OpSelectT:
			fmt.Fprintf(&b, " type=%s", api.ValueTypeName(wasm.ValueType(readByte())))

		case wasm.OpRefNull:
			fmt.Fprintf(&b, " type=%s", api.ValueTypeName(wasm.ValueType(readByte())))

		case wasm.OpI32Const:
			fmt.Fprintf(&b, " %d", int32(readU32()))
		case wasm.OpI64Const:
			fmt.Fprintf(&b, " %d", int64(readU64()))
		case wasm.OpF32Const:
			fmt.Fprintf(&b, " %g", math.Float32frombits(readU32()))
		case wasm.OpF64Const:
			fmt.Fprintf(&b, " %g", math.Float64frombits(readU64()))

		default:
			if isLoadOrStore(op) {
				align, offset := readU32(), readU32()
				fmt.Fprintf(&b, " align=%d offset=%d", align, offset)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// isLoadOrStore reports whether op is one of the memarg-carrying load/store opcodes (0x28..0x3e); memory.size
// and memory.grow sit just above this range (0x3f, 0x40) and take no immediate at all.
func isLoadOrStore(op wasm.Opcode) bool {
	return op >= wasm.OpI32Load && op <= wasm.OpI64Store32
}
