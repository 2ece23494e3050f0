package spectest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"wrun/internal/instantiate"
	"wrun/internal/interp"
	"wrun/internal/rtlog"
	"wrun/internal/validate"
	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
	"wrun/internal/wasmtext"
)

func TestRegister(t *testing.T) {
	store := wasm.NewStore(wasm.Features(0))
	engine := interp.NewEngine(store)
	registry := instantiate.NewRegistry()

	require.NoError(t, Register(store, registry, rtlog.Discard()))

	mi, ok := registry.Lookup("spectest")
	require.True(t, ok)

	gAddr, err := mi.ExportedGlobalAddr("global_i32")
	require.NoError(t, err)
	require.EqualValues(t, 666, store.Global(gAddr).Value)

	tAddr, err := mi.ExportedTableAddr("table")
	require.NoError(t, err)
	require.Len(t, store.Table(tAddr).Refs, 10)

	mAddr, err := mi.ExportedMemoryAddr("memory")
	require.NoError(t, err)
	require.EqualValues(t, wasm.PageSize, len(store.Memory(mAddr).Bytes))

	fAddr, err := mi.ExportedFunctionAddr("print_i32")
	require.NoError(t, err)
	_, err = engine.Call(context.Background(), store.Function(fAddr), []uint64{42})
	require.NoError(t, err)
}

// linkAgainstSpectest registers the spectest host module on a fresh store/engine/registry, then parses,
// resolves, validates and instantiates src (which must import from "spectest") as module "conformance".
func linkAgainstSpectest(t *testing.T, src string) (*interp.Engine, *wasm.Store, *wasm.ModuleInstance) {
	t.Helper()
	store := wasm.NewStore(wasm.Features(0))
	engine := interp.NewEngine(store)
	registry := instantiate.NewRegistry()
	require.NoError(t, Register(store, registry, rtlog.Discard()))

	um, err := wasmtext.Parse(src)
	require.NoError(t, err)
	m, err := wasmtext.Resolve(um)
	require.NoError(t, err)
	require.NoError(t, validate.Module(m, wasm.Features20220419, validate.ModeStrict, nil))

	mi, err := instantiate.Module(context.Background(), engine, registry, m, "conformance")
	require.NoError(t, err)
	return engine, store, mi
}

// The four cases below are minimal conformance-suite-style checks, written directly against this runtime's
// text parser rather than vendored from the official .wast corpus: each imports one of spectest's exports and
// exercises it the way the official call_indirect.wast/globals.wast/memory.wast/imports.wast files do,
// without requiring a .wast assert_* directive parser this codebase doesn't have.

func TestConformance_CallIndirect_UninitializedSpectestTable(t *testing.T) {
	src := `(module
    (import "spectest" "table" (table $t 10 20 funcref))
    (type $void (func))
    (func $f (export "run")
      i32.const 0
      call_indirect $t (type $void)))`
	engine, store, mi := linkAgainstSpectest(t, src)

	addr, err := mi.ExportedFunctionAddr("run")
	require.NoError(t, err)
	_, err = engine.Call(context.Background(), store.Function(addr), nil)
	require.Error(t, err)
	werr, ok := wasmerr.As(err)
	require.True(t, ok)
	code, hasCode := werr.TrapCode()
	require.True(t, hasCode)
	require.Equal(t, wasmerr.TrapUninitializedElement, code)
}

func TestConformance_GlobalImport_ReadMutableGlobal(t *testing.T) {
	src := `(module
    (import "spectest" "global_i32" (global $g (mut i32)))
    (func (export "run") (result i32)
      global.get $g
      i32.const 1
      i32.add))`
	engine, store, mi := linkAgainstSpectest(t, src)

	addr, err := mi.ExportedFunctionAddr("run")
	require.NoError(t, err)
	results, err := engine.Call(context.Background(), store.Function(addr), nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{667}, results) // spectest's global_i32 starts at 666
}

func TestConformance_MemoryImport_StoreThenLoad(t *testing.T) {
	src := `(module
    (import "spectest" "memory" (memory $m 1 2))
    (func (export "run") (result i32)
      i32.const 8
      i32.const 123
      i32.store
      i32.const 8
      i32.load))`
	engine, store, mi := linkAgainstSpectest(t, src)

	addr, err := mi.ExportedFunctionAddr("run")
	require.NoError(t, err)
	results, err := engine.Call(context.Background(), store.Function(addr), nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{123}, results)
}

func TestConformance_HostFunctionImport_PrintI32(t *testing.T) {
	src := `(module
    (import "spectest" "print_i32" (func $print (param i32)))
    (func (export "run")
      i32.const 42
      call $print))`
	engine, store, mi := linkAgainstSpectest(t, src)

	addr, err := mi.ExportedFunctionAddr("run")
	require.NoError(t, err)
	_, err = engine.Call(context.Background(), store.Function(addr), nil)
	require.NoError(t, err)
}
