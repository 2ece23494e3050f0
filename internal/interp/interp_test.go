package interp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"wrun/internal/validate"
	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

const (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
)

// compileAndInstantiate validates m, then allocates every one of its defined functions (no imports, no
// start) into a fresh Store, returning the Store and the resulting ModuleInstance's function addresses in
// declaration order.
func compileAndInstantiate(t *testing.T, m *wasm.Module) (*wasm.Store, []wasm.FunctionAddr) {
	t.Helper()
	require.NoError(t, validate.Module(m, wasm.Features20220419, validate.ModeStrict, nil))

	store := wasm.NewStore(wasm.Features(0))
	mi := &wasm.ModuleInstance{Types: m.TypeSection}

	var tableAddrs []wasm.TableAddr
	for _, tt := range m.TableSection {
		refs := make([]wasm.Reference, tt.Limits.Min)
		for i := range refs {
			refs[i] = wasm.NullReference(tt.RefType)
		}
		tableAddrs = append(tableAddrs, store.AllocateTable(&wasm.TableInstance{Type: *tt, Refs: refs}))
	}
	mi.TableAddrs = tableAddrs

	var memAddrs []wasm.MemoryAddr
	for _, mt := range m.MemorySection {
		memAddrs = append(memAddrs, store.AllocateMemory(&wasm.MemoryInstance{
			Type:  *mt,
			Bytes: make([]byte, mt.Limits.Min*wasm.PageSize),
		}))
	}
	mi.MemoryAddrs = memAddrs

	var dataAddrs []wasm.DataAddr
	for _, d := range m.DataSection {
		dataAddrs = append(dataAddrs, store.AllocateData(&wasm.DataInstance{Bytes: append([]byte{}, d.Init...)}))
	}
	mi.DataAddrs = dataAddrs

	var elemAddrs []wasm.ElementAddr
	for _, e := range m.ElementSection {
		elemAddrs = append(elemAddrs, store.AllocateElement(&wasm.ElementInstance{RefType: e.RefType}))
	}
	mi.ElementAddrs = elemAddrs

	funcAddrs := make([]wasm.FunctionAddr, len(m.FunctionSection))
	for i, typeIdx := range m.FunctionSection {
		fi := &wasm.FunctionInstance{
			Type:       m.TypeSection[typeIdx],
			Module:     mi,
			LocalTypes: m.CodeSection[i].LocalTypes,
			Body:       m.CodeSection[i].Body,
		}
		funcAddrs[i] = store.AllocateFunction(fi)
	}
	mi.FunctionAddrs = funcAddrs

	return store, funcAddrs
}

func TestEngine_Call_Add(t *testing.T) {
	ft := &wasm.FunctionType{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
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
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	results, err := e.Call(context.Background(), store.Function(addrs[0]), []uint64{7, 35})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

// countdown: loop { n := n - 1; br_if 0 (n != 0) }; return n — exercises the loop label branching back to its
// own header and the br_if not-taken fallthrough.
func TestEngine_Call_LoopCountdown(t *testing.T) {
	ft := &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{
					Op: wasm.OpLoop,
					Block: &wasm.UnresolvedBlock{
						Type: wasm.BlockType{},
						Then: []wasm.UnresolvedInstr{
							{Op: wasm.OpLocalGet, LocalIndex: 0},
							{Op: wasm.OpI32Const, I32: 1},
							{Op: wasm.OpI32Sub},
							{Op: wasm.OpLocalSet, LocalIndex: 0},
							{Op: wasm.OpLocalGet, LocalIndex: 0},
							{Op: wasm.OpBrIf, Labels: []wasm.Index{0}},
						},
					},
				},
				{Op: wasm.OpLocalGet, LocalIndex: 0},
			},
		}},
	}
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	results, err := e.Call(context.Background(), store.Function(addrs[0]), []uint64{10})
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, results)
}

// blockBranch: (block (result i32) i32.const 41 br 0) i32.const 1 i32.add — a branch carrying the block's
// declared result out to trailing code that consumes it.
func TestEngine_Call_BlockBranch(t *testing.T) {
	ft := &wasm.FunctionType{Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{
					Op: wasm.OpBlock,
					Block: &wasm.UnresolvedBlock{
						Type: wasm.BlockType{Results: []wasm.ValueType{i32}},
						Then: []wasm.UnresolvedInstr{
							{Op: wasm.OpI32Const, I32: 41},
							{Op: wasm.OpBr, Labels: []wasm.Index{0}},
						},
					},
				},
				{Op: wasm.OpI32Const, I32: 1},
				{Op: wasm.OpI32Add},
			},
		}},
	}
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	results, err := e.Call(context.Background(), store.Function(addrs[0]), nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestEngine_Call_IfElse(t *testing.T) {
	ft := &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{
					Op: wasm.OpIf,
					Block: &wasm.UnresolvedBlock{
						Type: wasm.BlockType{Results: []wasm.ValueType{i32}},
						Then: []wasm.UnresolvedInstr{{Op: wasm.OpI32Const, I32: 1}},
						Else: []wasm.UnresolvedInstr{{Op: wasm.OpI32Const, I32: 0}},
					},
				},
			},
		}},
	}
	store, addrs := compileAndInstantiate(t, m)
	e := NewEngine(store)

	results, err := e.Call(context.Background(), store.Function(addrs[0]), []uint64{1})
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, results)

	results, err = e.Call(context.Background(), store.Function(addrs[0]), []uint64{0})
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, results)
}

func TestEngine_Call_Unreachable(t *testing.T) {
	ft := &wasm.FunctionType{}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{{Op: wasm.OpUnreachable}},
		}},
	}
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	_, err := e.Call(context.Background(), store.Function(addrs[0]), nil)
	require.Error(t, err)
	werr, ok := wasmerr.As(err)
	require.True(t, ok)
	code, hasCode := werr.TrapCode()
	require.True(t, hasCode)
	require.Equal(t, wasmerr.TrapUnreachable, code)
}

func TestEngine_Call_DivideByZero(t *testing.T) {
	ft := &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpI32Const, I32: 1},
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{Op: wasm.OpI32DivS},
			},
		}},
	}
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	_, err := e.Call(context.Background(), store.Function(addrs[0]), []uint64{0})
	require.Error(t, err)
	werr, ok := wasmerr.As(err)
	require.True(t, ok)
	code, _ := werr.TrapCode()
	require.Equal(t, wasmerr.TrapIntegerDivideByZero, code)
}

// infiniteRecursion calls itself with no base case, so the activation depth must eventually exceed a small
// configured ceiling and trap rather than overflow the host goroutine's real stack.
func TestEngine_Call_StackExhaustion(t *testing.T) {
	ft := &wasm.FunctionType{}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpCall, FuncIndex: 0},
			},
		}},
	}
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store, WithCallStackCeiling(8))
	_, err := e.Call(context.Background(), store.Function(addrs[0]), nil)
	require.Error(t, err)
	werr, ok := wasmerr.As(err)
	require.True(t, ok)
	code, hasCode := werr.TrapCode()
	require.True(t, hasCode)
	require.Equal(t, wasmerr.TrapCallStackExhaustion, code)
}

func TestEngine_Call_IntegerOverflow(t *testing.T) {
	ft := &wasm.FunctionType{Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpF32Const, F32: 1e10}, // well beyond i32's range
				{Op: wasm.OpI32TruncF32S},
			},
		}},
	}
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	_, err := e.Call(context.Background(), store.Function(addrs[0]), nil)
	require.Error(t, err)
	werr, ok := wasmerr.As(err)
	require.True(t, ok)
	code, hasCode := werr.TrapCode()
	require.True(t, hasCode)
	require.Equal(t, wasmerr.TrapIntegerOverflow, code)
}

// indirectCallModule builds a two-function module with a funcref table of size tableSize: function 0 (the
// caller) takes an i32 table index on the stack and call_indirects against calleeType (declared as type 1).
// The table starts out entirely null; tests populate the slots they need directly through the Store, since
// compileAndInstantiate doesn't run active element segments.
func indirectCallModule(tableSize uint32) *wasm.Module {
	callerType := &wasm.FunctionType{Params: []wasm.ValueType{i32}}
	calleeType := &wasm.FunctionType{}
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{callerType, calleeType},
		FunctionSection: []wasm.Index{0, 1},
		TableSection:    []*wasm.TableType{{RefType: wasm.ValueTypeFuncref, Limits: wasm.Limits{Min: tableSize}}},
		CodeSection: []*wasm.Code{
			{Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{Op: wasm.OpCallIndirect, TableIndex: 0, TypeIndex: 1},
			}},
			{Uncompiled: []wasm.UnresolvedInstr{{Op: wasm.OpNop}}},
		},
	}
}

func TestEngine_Call_CallIndirect_OutOfBoundsTableAccess(t *testing.T) {
	m := indirectCallModule(1)
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	_, err := e.Call(context.Background(), store.Function(addrs[0]), []uint64{5}) // table only has one slot
	require.Error(t, err)
	werr, ok := wasmerr.As(err)
	require.True(t, ok)
	code, hasCode := werr.TrapCode()
	require.True(t, hasCode)
	require.Equal(t, wasmerr.TrapOutOfBoundsTableAccess, code)
}

func TestEngine_Call_CallIndirect_UninitializedElement(t *testing.T) {
	m := indirectCallModule(1) // table allocated, nothing ever placed in slot 0
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	_, err := e.Call(context.Background(), store.Function(addrs[0]), []uint64{0})
	require.Error(t, err)
	werr, ok := wasmerr.As(err)
	require.True(t, ok)
	code, hasCode := werr.TrapCode()
	require.True(t, hasCode)
	require.Equal(t, wasmerr.TrapUninitializedElement, code)
}

func TestEngine_Call_CallIndirect_TypeMismatch(t *testing.T) {
	m := indirectCallModule(1)
	store, addrs := compileAndInstantiate(t, m)
	// slot 0 holds a reference to function 0 (callerType, one i32 param), but the caller's call_indirect
	// declares type 1 (calleeType, no params/results) — a real shape mismatch.
	table := store.Table(store.Function(addrs[0]).Module.TableAddrs[0])
	table.Refs[0] = wasm.Reference{Type: wasm.ValueTypeFuncref, Func: addrs[0]}

	e := NewEngine(store)
	_, err := e.Call(context.Background(), store.Function(addrs[0]), []uint64{0})
	require.Error(t, err)
	werr, ok := wasmerr.As(err)
	require.True(t, ok)
	code, hasCode := werr.TrapCode()
	require.True(t, hasCode)
	require.Equal(t, wasmerr.TrapIndirectCallTypeMismatch, code)
}

func TestEngine_Call_OutOfBoundsMemoryAccess(t *testing.T) {
	one := uint32(1)
	ft := &wasm.FunctionType{Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: &one}}},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpI32Const, I32: int32(wasm.PageSize) - 2}, // four-byte load starting two bytes before the end
				{Op: wasm.OpI32Load},
			},
		}},
	}
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	_, err := e.Call(context.Background(), store.Function(addrs[0]), nil)
	require.Error(t, err)
	werr, ok := wasmerr.As(err)
	require.True(t, ok)
	code, hasCode := werr.TrapCode()
	require.True(t, hasCode)
	require.Equal(t, wasmerr.TrapOutOfBoundsMemoryAccess, code)
}

func TestEngine_Call_MemoryLoadStore(t *testing.T) {
	one := uint32(1)
	ft := &wasm.FunctionType{Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: &one}}},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpI32Const, I32: 0},
				{Op: wasm.OpI32Const, I32: 123},
				{Op: wasm.OpI32Store},
				{Op: wasm.OpI32Const, I32: 0},
				{Op: wasm.OpI32Load},
			},
		}},
	}
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	results, err := e.Call(context.Background(), store.Function(addrs[0]), nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{123}, results)
}

func TestEngine_Call_HostFunction(t *testing.T) {
	ft := &wasm.FunctionType{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}}
	store := wasm.NewStore(wasm.Features(0))
	mi := &wasm.ModuleInstance{Types: []*wasm.FunctionType{ft}}
	hostAddr := store.AllocateFunction(&wasm.FunctionInstance{
		Type:   ft,
		Module: mi,
		Name:   "add",
		HostFn: func(_ *wasm.HostContext, params []uint64) ([]uint64, error) {
			return []uint64{params[0] + params[1]}, nil
		},
	})
	mi.FunctionAddrs = []wasm.FunctionAddr{hostAddr}

	e := NewEngine(store)
	results, err := e.Call(context.Background(), store.Function(hostAddr), []uint64{3, 4})
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, results)
}

func TestEngine_Call_I64Arithmetic(t *testing.T) {
	ft := &wasm.FunctionType{Params: []wasm.ValueType{i64, i64}, Results: []wasm.ValueType{i64}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{Op: wasm.OpLocalGet, LocalIndex: 1},
				{Op: wasm.OpI64Mul},
			},
		}},
	}
	store, addrs := compileAndInstantiate(t, m)

	e := NewEngine(store)
	results, err := e.Call(context.Background(), store.Function(addrs[0]), []uint64{6, 7})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}
