// Package validate implements the standard WebAssembly validation algorithm (a type-checking pass over an
// operand stack of polymorphic types plus a control-frame stack) co-routined with emission of a flat,
// fixed-width-immediate bytecode stream consumed by internal/interp.
package validate

import "wrun/internal/wasm"

// unknownType marks a polymorphic operand-stack slot, produced once a frame goes unreachable: any concrete
// type satisfies a pop against it.
const unknownType wasm.ValueType = 0xff

// vtype is one operand-stack entry.
type vtype = wasm.ValueType

func isUnknown(t vtype) bool { return t == unknownType }

// ctrlFrame is one control-stack entry, opened by function entry or a block/loop/if instruction.
type ctrlFrame struct {
	opcode      wasm.Opcode
	startTypes  []vtype // parameters, pushed at frame entry
	endTypes    []vtype // results
	height      int     // operand-stack length at frame entry (below the frame's own params)
	unreachable bool

	// Emission bookkeeping: byte positions in the emitter buffer still needing a patch once known.
	endPatchPos  int // position of the frame's reserved end-target slot, -1 if none (loop's target is immediate)
	elsePatchPos int // always -1: validateIf patches its else- and end-target slots through local variables
}

// labelTypes returns the types a branch to this frame observes: a loop's branch targets its parameters (the
// top of the loop repeats), every other construct's branch targets its results.
func (f *ctrlFrame) labelTypes() []vtype {
	if f.opcode == wasm.OpLoop {
		return f.startTypes
	}
	return f.endTypes
}

// opStack is the operand-stack half of the validation state machine.
type opStack struct {
	vals []vtype
}

func (s *opStack) push(t vtype) { s.vals = append(s.vals, t) }

func (s *opStack) pushAll(ts []vtype) {
	for _, t := range ts {
		s.push(t)
	}
}

func (s *opStack) height() int { return len(s.vals) }

func (s *opStack) truncate(h int) { s.vals = s.vals[:h] }
