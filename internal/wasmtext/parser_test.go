package wasmtext

import (
	"testing"

	"github.com/stretchr/testify/require"
	"wrun/internal/wasm"
)

const addModuleText = `(module
  (type $t (func (param i32 i32) (result i32)))
  (func $add (type $t) (param $a i32) (param $b i32) (result i32)
    local.get $a
    local.get $b
    i32.add)
  (export "add" (func $add)))`

func TestParse_AddModule(t *testing.T) {
	um, err := Parse(addModuleText)
	require.NoError(t, err)

	require.Len(t, um.Types, 1)
	require.Equal(t, "$t", um.Types[0].ID)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, um.Types[0].Params)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, um.Types[0].Results)

	require.Len(t, um.Funcs, 1)
	f := um.Funcs[0]
	require.Equal(t, "$add", f.ID)
	require.NotNil(t, f.TypeUse.Ref)
	require.Equal(t, "$t", f.TypeUse.Ref.Name)
	require.Len(t, f.TypeUse.Params, 2)
	require.Len(t, f.Body, 3)
	require.Equal(t, "local.get", f.Body[0].Op)
	require.Equal(t, []string{"$a"}, f.Body[0].Imm)
	require.Equal(t, "i32.add", f.Body[2].Op)

	require.Len(t, um.Exports, 1)
	require.Equal(t, "add", um.Exports[0].Name)
	require.Equal(t, "func", um.Exports[0].Kind)
	require.Equal(t, "$add", um.Exports[0].Ref.Name)
}

func TestParse_BlockWithLabel(t *testing.T) {
	src := `(module (func $f
    block $done
      br $done
    end))`
	um, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, um.Funcs, 1)
	body := um.Funcs[0].Body
	require.Len(t, body, 1)
	require.Equal(t, "block", body[0].Op)
	require.NotNil(t, body[0].Block)
	require.Equal(t, "$done", body[0].Block.LabelName)
	require.Len(t, body[0].Block.Then, 1)
	require.Equal(t, "br", body[0].Block.Then[0].Op)
	require.Equal(t, []string{"$done"}, body[0].Block.Then[0].Imm)
}

func TestParse_CallIndirect(t *testing.T) {
	src := `(module
    (type $t (func (param i32) (result i32)))
    (table 1 funcref)
    (func $f (param $i i32) (result i32)
      local.get $i
      local.get $i
      call_indirect (type $t)))`
	um, err := Parse(src)
	require.NoError(t, err)
	body := um.Funcs[0].Body
	require.Equal(t, "call_indirect", body[2].Op)
	require.Equal(t, []string{"$t"}, body[2].Imm)
}

func TestParse_MemArg(t *testing.T) {
	src := `(module
    (memory 1)
    (func $f (param $p i32) (result i32)
      local.get $p
      i32.load offset=4 align=2))`
	um, err := Parse(src)
	require.NoError(t, err)
	body := um.Funcs[0].Body
	require.Equal(t, "i32.load", body[1].Op)
	require.Equal(t, []string{"offset=4", "align=2"}, body[1].Imm)
}
