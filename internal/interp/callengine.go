package interp

import (
	"context"

	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

// label is the runtime counterpart of a validator control frame: where a branch targeting it resumes (pc),
// how far to truncate the operand stack (height), and how many values it carries across the branch (arity).
// br/br_if/br_table only ever carry a static nesting depth, so the frame keeps a plain slice of these and
// resolves depth N to labels[len(labels)-1-N], mirroring how the validator indexes its own ctrl stack.
type label struct {
	targetPC int
	height   int
	arity    int
}

// frame is one function activation. locals holds params followed by declared local types, zero-valued; pc is
// the byte cursor into fn.Body; baseHeight is the callEngine stack height at the moment this frame was
// pushed, the truncation point a `return` (or an implicit branch past every open label) falls back to.
type frame struct {
	fn         *wasm.FunctionInstance
	pc         int
	locals     []uint64
	labels     []label
	baseHeight int
}

// callEngine is the activation record for one Engine.Call: the shared operand stack and the chain of function
// frames currently executing. It reads immediates straight off the emitted bytecode rather than walking a
// separate intermediate representation.
type callEngine struct {
	engine *Engine
	stack  []uint64
	frames []*frame
}

func (ce *callEngine) pushValue(v uint64) { ce.stack = append(ce.stack, v) }

func (ce *callEngine) popValue() uint64 {
	v := ce.stack[len(ce.stack)-1]
	ce.stack = ce.stack[:len(ce.stack)-1]
	return v
}

func (ce *callEngine) peekValue() uint64 { return ce.stack[len(ce.stack)-1] }

func (ce *callEngine) pushValues(vs []uint64) {
	ce.stack = append(ce.stack, vs...)
}

// popValuesN pops the top n values, returning them in push order (bottom to top), the shape callers need to
// re-push them unchanged after truncating everything beneath.
func (ce *callEngine) popValuesN(n int) []uint64 {
	if n == 0 {
		return nil
	}
	start := len(ce.stack) - n
	vs := make([]uint64, n)
	copy(vs, ce.stack[start:])
	ce.stack = ce.stack[:start]
	return vs
}

func (ce *callEngine) pushFrame(f *frame) {
	if len(ce.frames) >= ce.engine.callStackCeiling {
		panic(wasmerr.NewTrap(wasmerr.TrapCallStackExhaustion, ""))
	}
	ce.frames = append(ce.frames, f)
	ce.engine.metrics.CallStackDepth.Set(float64(len(ce.frames)))
}

func (ce *callEngine) popFrame() {
	ce.frames = ce.frames[:len(ce.frames)-1]
	ce.engine.metrics.CallStackDepth.Set(float64(len(ce.frames)))
}

// branch resolves a br/br_if/br_table static depth against f's open labels. A depth equal to len(f.labels)
// means every currently open label is exhausted, which the validator's own ctrl stack always represents via
// its extra function-level frame at index 0 — so it is handled here as a function return: pop the function's
// result arity from wherever the stack happens to be, truncate away everything back to the frame's own entry
// height, and push the saved results back. isReturn tells run's caller to stop decoding this frame.
func (ce *callEngine) branch(f *frame, depth uint32) (target int, isReturn bool) {
	if int(depth) == len(f.labels) {
		arity := len(f.fn.Type.Results)
		vals := ce.popValuesN(arity)
		ce.stack = ce.stack[:f.baseHeight]
		ce.pushValues(vals)
		return 0, true
	}
	idx := len(f.labels) - 1 - int(depth)
	lbl := f.labels[idx]
	vals := ce.popValuesN(lbl.arity)
	ce.stack = ce.stack[:lbl.height]
	ce.pushValues(vals)
	f.labels = f.labels[:idx]
	return lbl.targetPC, false
}

// call invokes fn, dispatching to the host closure or the bytecode loop as appropriate, and returns its
// results. Used both for the top-level Engine.Call and recursively for call/call_indirect.
func (ce *callEngine) call(ctx context.Context, fn *wasm.FunctionInstance, params []uint64) []uint64 {
	if fn.HostFn != nil {
		results, err := fn.HostFn(&wasm.HostContext{Module: fn.Module}, params)
		if err != nil {
			if werr, ok := err.(*wasmerr.Error); ok {
				panic(werr)
			}
			panic(wasmerr.New(wasmerr.KindTrap, err))
		}
		return results
	}

	locals := make([]uint64, len(fn.Type.Params)+len(fn.LocalTypes))
	copy(locals, params)

	f := &frame{fn: fn, locals: locals, baseHeight: len(ce.stack)}
	ce.pushFrame(f)
	ce.run(ctx, f)
	ce.popFrame()

	return ce.popValuesN(len(fn.Type.Results))
}
