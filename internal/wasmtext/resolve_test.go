package wasmtext

import (
	"testing"

	"github.com/stretchr/testify/require"
	"wrun/api"
	"wrun/internal/wasm"
)

func mustResolve(t *testing.T, src string) *wasm.Module {
	t.Helper()
	um, err := Parse(src)
	require.NoError(t, err)
	m, err := Resolve(um)
	require.NoError(t, err)
	return m
}

func TestResolve_AddModule(t *testing.T) {
	m := mustResolve(t, addModuleText)

	require.Len(t, m.TypeSection, 1)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, m.TypeSection[0].Params)

	require.Equal(t, []wasm.Index{0}, m.FunctionSection)

	exp, ok := m.ExportSection["add"]
	require.True(t, ok)
	require.Equal(t, api.ExternTypeFunc, exp.Type)
	require.Equal(t, wasm.Index(0), exp.Index)

	require.Len(t, m.CodeSection, 1)
	code := m.CodeSection[0]
	require.Len(t, code.Uncompiled, 3)
	require.Equal(t, wasm.OpLocalGet, code.Uncompiled[0].Op)
	require.Equal(t, wasm.Index(0), code.Uncompiled[0].LocalIndex)
	require.Equal(t, wasm.OpLocalGet, code.Uncompiled[1].Op)
	require.Equal(t, wasm.Index(1), code.Uncompiled[1].LocalIndex)
	require.Equal(t, wasm.OpI32Add, code.Uncompiled[2].Op)
}

func TestResolve_BranchLabelDepth(t *testing.T) {
	// The inner `br $inner` targets depth 0 (the loop itself); `br $outer` targets depth 1.
	src := `(module (func $f
    block $outer
      loop $inner
        br $inner
        br $outer
      end
    end))`
	m := mustResolve(t, src)
	body := m.CodeSection[0].Uncompiled
	require.Len(t, body, 1)
	loopInstr := body[0].Block.Then[0]
	require.Equal(t, wasm.OpLoop, loopInstr.Op)
	inner := loopInstr.Block.Then
	require.Len(t, inner, 2)
	require.Equal(t, []wasm.Index{0}, inner[0].Labels)
	require.Equal(t, []wasm.Index{1}, inner[1].Labels)
}

func TestResolve_UnresolvedLabelErrors(t *testing.T) {
	src := `(module (func $f br $nope))`
	um, err := Parse(src)
	require.NoError(t, err)
	_, err = Resolve(um)
	require.Error(t, err)
}

func TestResolve_UnresolvedFuncIndexErrors(t *testing.T) {
	src := `(module (func $f call $missing))`
	um, err := Parse(src)
	require.NoError(t, err)
	_, err = Resolve(um)
	require.Error(t, err)
}

func TestResolve_TypeUseInterning(t *testing.T) {
	// Two funcs with the same inline signature and no explicit (type ...) share one interned FunctionType.
	src := `(module
    (func $a (param i32) (result i32) local.get 0)
    (func $b (param i32) (result i32) local.get 0))`
	m := mustResolve(t, src)
	require.Len(t, m.TypeSection, 1)
	require.Equal(t, []wasm.Index{0, 0}, m.FunctionSection)
}

func TestResolve_ImportsPrecedeDefinitions(t *testing.T) {
	src := `(module
    (import "env" "f0" (func $imported (param i32)))
    (func $defined (param i32) local.get 0 drop)
    (export "defined" (func $defined)))`
	m := mustResolve(t, src)
	// $imported occupies func index 0; $defined (the module's only defined func) occupies index 1.
	exp := m.ExportSection["defined"]
	require.Equal(t, wasm.Index(1), exp.Index)
}

func TestResolve_CallIndirectWithTable(t *testing.T) {
	src := `(module
    (type $t (func (param i32) (result i32)))
    (table 1 funcref)
    (func $f (param $i i32) (result i32)
      local.get $i
      local.get $i
      call_indirect (type $t)))`
	m := mustResolve(t, src)
	body := m.CodeSection[0].Uncompiled
	ci := body[2]
	require.Equal(t, wasm.OpCallIndirect, ci.Op)
	require.Equal(t, wasm.Index(0), ci.TypeIndex)
	require.Equal(t, wasm.Index(0), ci.TableIndex)
}

func TestResolve_MemArg(t *testing.T) {
	src := `(module
    (memory 1)
    (func $f (param $p i32) (result i32)
      local.get $p
      i32.load offset=4 align=2))`
	m := mustResolve(t, src)
	body := m.CodeSection[0].Uncompiled
	require.Equal(t, wasm.OpI32Load, body[1].Op)
	require.EqualValues(t, 4, body[1].MemArgOffset)
	require.EqualValues(t, 2, body[1].MemArgAlign)
}
