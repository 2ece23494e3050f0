package disasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"wrun/internal/validate"
	"wrun/internal/wasm"
)

const i32 wasm.ValueType = 0x7f

func addModule() *wasm.Module {
	ft := &wasm.FunctionType{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}}
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{Op: wasm.OpLocalGet, LocalIndex: 1},
				{Op: wasm.OpI32Add},
			},
		}},
	}
}

func TestFunction_LocalGetLocalGetAdd(t *testing.T) {
	m := addModule()
	require.NoError(t, validate.Module(m, wasm.Features20220419, validate.ModeStrict, nil))

	out := Function(m.CodeSection[0])
	require.Contains(t, out, "local.get 0")
	require.Contains(t, out, "local.get 1")
	require.Contains(t, out, "i32.add")
}

func TestFunction_ConstAndDrop(t *testing.T) {
	m := addModule()
	m.TypeSection[0].Params = nil
	m.TypeSection[0].Results = nil
	m.CodeSection[0].Uncompiled = []wasm.UnresolvedInstr{
		{Op: wasm.OpI32Const, I32: 42},
		{Op: wasm.OpDrop},
	}
	require.NoError(t, validate.Module(m, wasm.Features20220419, validate.ModeStrict, nil))

	out := Function(m.CodeSection[0])
	require.Contains(t, out, "i32.const 42")
	require.Contains(t, out, "drop")
}

func TestFunction_BrIf(t *testing.T) {
	m := addModule()
	m.TypeSection[0].Params = nil
	m.TypeSection[0].Results = nil
	m.CodeSection[0].Uncompiled = []wasm.UnresolvedInstr{
		{Op: wasm.OpI32Const, I32: 1},
		{Op: wasm.OpBrIf, Labels: []wasm.Index{0}},
	}
	require.NoError(t, validate.Module(m, wasm.Features20220419, validate.ModeStrict, nil))

	out := Function(m.CodeSection[0])
	require.Contains(t, out, "br_if depth=0")
}

func TestFunction_LoadStore(t *testing.T) {
	m := addModule()
	m.MemorySection = []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}
	m.TypeSection[0].Params = []wasm.ValueType{i32}
	m.TypeSection[0].Results = nil
	m.CodeSection[0].Uncompiled = []wasm.UnresolvedInstr{
		{Op: wasm.OpLocalGet, LocalIndex: 0},
		{Op: wasm.OpI32Load, MemArgAlign: 2, MemArgOffset: 4},
		{Op: wasm.OpDrop},
	}
	require.NoError(t, validate.Module(m, wasm.Features20220419, validate.ModeStrict, nil))

	out := Function(m.CodeSection[0])
	require.Contains(t, out, "i32.load align=2 offset=4")
}
