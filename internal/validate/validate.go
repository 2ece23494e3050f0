package validate

import (
	"wrun/internal/rtlog"
	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

// Mode selects how a validation failure is handled, per the three bring-up modes: strict fails the compile,
// warn logs and proceeds (producing best-effort bytecode the interpreter may later trap on), panic aborts.
type Mode int

const (
	ModeStrict Mode = iota
	ModeWarn
	ModePanic
)

// Module validates every function body, global initializer, and active element/data offset in m, replacing
// each Code's Uncompiled tree with emitted bytecode in Body. Mode governs what happens to the first failure
// encountered; in ModeWarn, m is mutated with whatever bytecode could be produced even when some function
// fails, and the first error collected is still returned for the caller to inspect. features gates
// proposal-specific opcodes (currently only SIMD); an opcode whose feature isn't enabled in features fails
// validation as an unknown opcode.
func Module(m *wasm.Module, features wasm.Features, mode Mode, logger rtlog.Logger) error {
	if logger == nil {
		logger = rtlog.Discard()
	}
	var firstErr error
	fail := func(context string, err error) {
		if err == nil {
			return
		}
		wrapped := wasmerr.New(wasmerr.KindValidate, err).Wrap(context)
		if firstErr == nil {
			firstErr = wrapped
		}
		switch mode {
		case ModePanic:
			panic(wrapped)
		case ModeWarn:
			logger.WithError(wrapped).Warnf("validation error in %s", context)
		}
	}

	for i, code := range m.CodeSection {
		funcIdx := wasm.Index(m.ImportedFunctionCount() + i)
		ft := m.TypeOfFunction(funcIdx)
		if ft == nil {
			fail("function body", wasmerr.Newf(wasmerr.KindValidate, "function %s has no type", m.FuncRef(funcIdx)))
			continue
		}
		body, err := validateFunctionBody(m, ft, code, features)
		if err != nil {
			fail("function body", err)
			if mode != ModeWarn {
				return firstErr
			}
			continue
		}
		code.Body = body
	}

	for _, g := range m.GlobalSection {
		if err := validateConstExpr(m, g.Init, []wasm.ValueType{g.Type.ValType}, features); err != nil {
			fail("global initializer", err)
			if mode != ModeWarn {
				return firstErr
			}
		}
	}
	for _, e := range m.ElementSection {
		if e.Mode == wasm.ElementModeActive {
			if err := validateConstExpr(m, e.Offset, []wasm.ValueType{wasm.ValueTypeI32}, features); err != nil {
				fail("element offset", err)
				if mode != ModeWarn {
					return firstErr
				}
			}
		}
		for _, item := range e.Init {
			if err := validateConstExpr(m, item, []wasm.ValueType{e.RefType}, features); err != nil {
				fail("element item", err)
				if mode != ModeWarn {
					return firstErr
				}
			}
		}
	}
	for _, d := range m.DataSection {
		if d.Mode == wasm.DataModeActive {
			if err := validateConstExpr(m, d.Offset, []wasm.ValueType{wasm.ValueTypeI32}, features); err != nil {
				fail("data offset", err)
				if mode != ModeWarn {
					return firstErr
				}
			}
		}
	}

	return firstErr
}

// validator holds the per-function validation/emission state. constExpr is set only while validating a
// constant expression, where global.get is restricted to imported, immutable globals.
type validator struct {
	module    *wasm.Module
	features  wasm.Features
	constExpr bool
	locals    []vtype
	ops       opStack
	ctrl      []ctrlFrame
	emit      emitter
}

func validateFunctionBody(m *wasm.Module, ft *wasm.FunctionType, code *wasm.Code, features wasm.Features) ([]byte, error) {
	locals := append(append([]vtype{}, ft.Params...), code.LocalTypes...)
	v := &validator{module: m, features: features, locals: locals}
	v.pushCtrl(0, nil, ft.Results) // synthetic outer frame representing the function itself

	if err := v.validateInstrs(code.Uncompiled); err != nil {
		return nil, err
	}
	if _, err := v.popCtrl(); err != nil {
		return nil, err
	}
	v.emit.opcode(wasm.OpEnd)
	return v.emit.buf, nil
}

// validateConstExpr validates a constant expression (global initializer, element offset/item, data offset)
// against its single declared result type, with no locals and no branch targets beyond its own synthetic
// frame, per the constant-expression rules.
func validateConstExpr(m *wasm.Module, ce wasm.ConstExpr, result []wasm.ValueType, features wasm.Features) error {
	v := &validator{module: m, features: features, constExpr: true}
	v.pushCtrl(0, nil, result)
	for _, ins := range ce.Instrs {
		switch ins.Op {
		case wasm.OpI32Const, wasm.OpI64Const, wasm.OpF32Const, wasm.OpF64Const, wasm.OpGlobalGet, wasm.OpRefNull, wasm.OpRefFunc:
		default:
			return wasmerr.Newf(wasmerr.KindValidate, "non-constant instruction in constant expression")
		}
		if err := v.validateInstr(ins); err != nil {
			return err
		}
	}
	_, err := v.popCtrl()
	return err
}

func (v *validator) fail(format string, args ...interface{}) error {
	return wasmerr.Newf(wasmerr.KindValidate, format, args...)
}

func (v *validator) pushVal(t vtype) { v.ops.push(t) }
func (v *validator) pushVals(ts []vtype) { v.ops.pushAll(ts) }

func (v *validator) popVal() (vtype, error) {
	top := &v.ctrl[len(v.ctrl)-1]
	if v.ops.height() == top.height {
		if top.unreachable {
			return unknownType, nil
		}
		return 0, v.fail("operand stack underflow")
	}
	t := v.ops.vals[len(v.ops.vals)-1]
	v.ops.vals = v.ops.vals[:len(v.ops.vals)-1]
	return t, nil
}

func (v *validator) popExpect(t vtype) error {
	got, err := v.popVal()
	if err != nil {
		return err
	}
	if isUnknown(got) || isUnknown(t) {
		return nil
	}
	if got != t {
		return v.fail("type mismatch: expected %s, got %s", wasm.ValueTypeName(t), wasm.ValueTypeName(got))
	}
	return nil
}

func (v *validator) popExpectAll(ts []vtype) error {
	for i := len(ts) - 1; i >= 0; i-- {
		if err := v.popExpect(ts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) pushCtrl(op wasm.Opcode, in, out []vtype) {
	v.ops.pushAll(in)
	v.ctrl = append(v.ctrl, ctrlFrame{
		opcode: op, startTypes: in, endTypes: out, height: v.ops.height() - len(in),
		endPatchPos: -1, elsePatchPos: -1,
	})
}

func (v *validator) popCtrl() (ctrlFrame, error) {
	if len(v.ctrl) == 0 {
		return ctrlFrame{}, v.fail("control stack underflow")
	}
	top := v.ctrl[len(v.ctrl)-1]
	if err := v.popExpectAll(top.endTypes); err != nil {
		return ctrlFrame{}, err
	}
	if v.ops.height() != top.height {
		return ctrlFrame{}, v.fail("unused values remain at end of block")
	}
	v.ctrl = v.ctrl[:len(v.ctrl)-1]
	return top, nil
}

func (v *validator) setUnreachable() {
	top := &v.ctrl[len(v.ctrl)-1]
	v.ops.truncate(top.height)
	top.unreachable = true
}

func (v *validator) labelTypesAt(depth int) ([]vtype, error) {
	if depth < 0 || depth >= len(v.ctrl) {
		return nil, v.fail("invalid branch depth %d", depth)
	}
	return v.ctrl[len(v.ctrl)-1-depth].labelTypes(), nil
}

func (v *validator) curFrame() *ctrlFrame { return &v.ctrl[len(v.ctrl)-1] }

func (v *validator) validateInstrs(instrs []wasm.UnresolvedInstr) error {
	for _, ins := range instrs {
		if err := v.validateInstr(ins); err != nil {
			return err
		}
	}
	return nil
}
