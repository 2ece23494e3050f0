package validate

import (
	"encoding/binary"
	"math"

	"wrun/internal/wasm"
)

// emitter accumulates the fixed-width-immediate bytecode stream described by the bytecode emission rules:
// every LEB128 immediate becomes a 4- or 8-byte little-endian fixed-width field, trading code size for
// dispatch-time decode speed in internal/interp.
type emitter struct {
	buf []byte
}

func (e *emitter) pos() int { return len(e.buf) }

func (e *emitter) byte(b byte) { e.buf = append(e.buf, b) }

func (e *emitter) opcode(op wasm.Opcode) {
	if op.IsExtended() {
		e.byte(0xfc)
		e.byte(op.ExtendedSub())
		return
	}
	if op.IsSIMD() {
		e.byte(0xfd)
		e.byte(op.SIMDSub())
		return
	}
	e.byte(byte(op))
}

func (e *emitter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *emitter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *emitter) i32(v int32) { e.u32(uint32(v)) }
func (e *emitter) i64(v int64) { e.u64(uint64(v)) }
func (e *emitter) f32(v float32) { e.u32(math.Float32bits(v)) }
func (e *emitter) f64(v float64) { e.u64(math.Float64bits(v)) }

// reserveU32 emits a placeholder 4-byte slot, returning its position so it can be patched later once the
// value it needs (a continuation PC) becomes known.
func (e *emitter) reserveU32() int {
	pos := e.pos()
	e.u32(0)
	return pos
}

func (e *emitter) patchU32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(e.buf[pos:pos+4], v)
}
