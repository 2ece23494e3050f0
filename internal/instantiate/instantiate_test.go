package instantiate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"wrun/internal/interp"
	"wrun/internal/validate"
	"wrun/internal/wasm"
)

const i32 = wasm.ValueTypeI32

func newEngine() (*interp.Engine, *wasm.Store) {
	store := wasm.NewStore(wasm.Features(0))
	return interp.NewEngine(store), store
}

// TestModule_DataSegmentAndExport builds a module with one memory, an active data segment, and an exported
// function that reads a byte the segment should have written, exercising phases 3 (memory allocation), 10
// (data segment allocation and the memory.init+data.drop driver) and the export lookup.
func TestModule_DataSegmentAndExport(t *testing.T) {
	one := uint32(1)
	ft := &wasm.FunctionType{Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: &one}}},
		DataSection: []*wasm.DataSegment{{
			Mode:   wasm.DataModeActive,
			Offset: wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{{Op: wasm.OpI32Const, I32: 4}}},
			Init:   []byte{0x2a},
		}},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpI32Const, I32: 4},
				{Op: wasm.OpI32Load8U, MemArgAlign: 0, MemArgOffset: 0},
			},
		}},
		ExportSection: map[string]*wasm.Export{
			"get": {Name: "get", Type: 0x00, Index: 0},
		},
	}
	require.NoError(t, validate.Module(m, wasm.Features20220419, validate.ModeStrict, nil))

	engine, store := newEngine()
	registry := NewRegistry()
	mi, err := Module(context.Background(), engine, registry, m, "main")
	require.NoError(t, err)

	addr, err := mi.ExportedFunctionAddr("get")
	require.NoError(t, err)
	results, err := engine.Call(context.Background(), store.Function(addr), nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{0x2a}, results)

	registered, ok := registry.Lookup("main")
	require.True(t, ok)
	require.Same(t, mi, registered)
}

// TestModule_GlobalAndStart builds a module with a global initialized from a constant, a start function that
// writes the global's value into memory, and checks the start function actually ran during instantiation.
func TestModule_GlobalAndStart(t *testing.T) {
	one := uint32(1)
	startIdx := wasm.Index(0)
	voidFt := &wasm.FunctionType{}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{voidFt},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: &one}}},
		GlobalSection: []*wasm.Global{{
			Type: &wasm.GlobalType{ValType: i32, Mutable: false},
			Init: wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{{Op: wasm.OpI32Const, I32: 7}}},
		}},
		StartSection: &startIdx,
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpI32Const, I32: 0},
				{Op: wasm.OpGlobalGet, GlobalIndex: 0},
				{Op: wasm.OpI32Store, MemArgAlign: 2, MemArgOffset: 0},
			},
		}},
	}
	require.NoError(t, validate.Module(m, wasm.Features20220419, validate.ModeStrict, nil))

	engine, store := newEngine()
	registry := NewRegistry()
	mi, err := Module(context.Background(), engine, registry, m, "starter")
	require.NoError(t, err)

	mem := store.Memory(mi.MemoryAddrs[0])
	require.Equal(t, byte(7), mem.Bytes[0])
}

// TestModule_ActiveElementSegment checks a funcref table gets populated from an active element segment via
// the table.init+elem.drop driver, and that the element instance is emptied afterward.
func TestModule_ActiveElementSegment(t *testing.T) {
	ft := &wasm.FunctionType{Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		TableSection:    []*wasm.TableType{{RefType: wasm.ValueTypeFuncref, Limits: wasm.Limits{Min: 2}}},
		ElementSection: []*wasm.ElementSegment{{
			Mode:       wasm.ElementModeActive,
			TableIndex: 0,
			Offset:     wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{{Op: wasm.OpI32Const, I32: 0}}},
			RefType:    wasm.ValueTypeFuncref,
			Init:       []wasm.ConstExpr{{Instrs: []wasm.UnresolvedInstr{{Op: wasm.OpRefFunc, FuncIndex: 0}}}},
		}},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{{Op: wasm.OpI32Const, I32: 99}},
		}},
	}
	require.NoError(t, validate.Module(m, wasm.Features20220419, validate.ModeStrict, nil))

	engine, store := newEngine()
	registry := NewRegistry()
	mi, err := Module(context.Background(), engine, registry, m, "tabler")
	require.NoError(t, err)

	table := store.Table(mi.TableAddrs[0])
	require.False(t, table.Refs[0].IsNull)
	require.Equal(t, mi.FunctionAddrs[0], table.Refs[0].Func)

	elem := store.Element(mi.ElementAddrs[0])
	require.Nil(t, elem.Refs)
}

// TestModule_ImportLink instantiates a host-provided module, then a guest module importing its function and
// memory, checking import resolution produces callable/linked addresses.
func TestModule_ImportLink(t *testing.T) {
	engine, store := newEngine()
	registry := NewRegistry()

	hostFt := &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}
	hostMi := &wasm.ModuleInstance{Name: "host", Exports: map[string]*wasm.Export{}}
	hostFn := &wasm.FunctionInstance{
		Type:   hostFt,
		Module: hostMi,
		HostFn: func(ctx *wasm.HostContext, params []uint64) ([]uint64, error) {
			return []uint64{params[0] + 1}, nil
		},
	}
	hostMi.FunctionAddrs = []wasm.FunctionAddr{store.AllocateFunction(hostFn)}
	hostMi.Exports["inc"] = &wasm.Export{Name: "inc", Type: 0x00, Index: 0}
	require.NoError(t, registry.Register(hostMi))

	m := &wasm.Module{
		TypeSection: []*wasm.FunctionType{hostFt},
		ImportSection: []*wasm.Import{
			{Module: "host", Name: "inc", Type: 0x00, DescFunc: 0},
		},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{Op: wasm.OpCall, FuncIndex: 0},
			},
		}},
		ExportSection: map[string]*wasm.Export{
			"callInc": {Name: "callInc", Type: 0x00, Index: 1},
		},
	}
	require.NoError(t, validate.Module(m, wasm.Features20220419, validate.ModeStrict, nil))

	mi, err := Module(context.Background(), engine, registry, m, "guest")
	require.NoError(t, err)

	addr, err := mi.ExportedFunctionAddr("callInc")
	require.NoError(t, err)
	results, err := engine.Call(context.Background(), store.Function(addr), []uint64{41})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

// TestModule_ImportNotFound checks that a missing source module surfaces a link error rather than panicking.
func TestModule_ImportNotFound(t *testing.T) {
	engine, _ := newEngine()
	registry := NewRegistry()

	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{}},
		ImportSection:   []*wasm.Import{{Module: "nope", Name: "fn", Type: 0x00, DescFunc: 0}},
		FunctionSection: nil,
	}
	_, err := Module(context.Background(), engine, registry, m, "guest")
	require.Error(t, err)
}
