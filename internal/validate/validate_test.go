package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
	"wrun/api"
	"wrun/internal/wasm"
)

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

func TestModule_Add(t *testing.T) {
	m := addModule()
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.NoError(t, err)
	require.NotEmpty(t, m.CodeSection[0].Body)
}

func TestModule_TypeMismatch(t *testing.T) {
	m := addModule()
	m.CodeSection[0].Uncompiled = []wasm.UnresolvedInstr{
		{Op: wasm.OpLocalGet, LocalIndex: 0},
		{Op: wasm.OpF32Neg},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.Error(t, err)
}

func TestModule_StackUnderflow(t *testing.T) {
	m := addModule()
	m.CodeSection[0].Uncompiled = []wasm.UnresolvedInstr{
		{Op: wasm.OpI32Add},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.Error(t, err)
}

func TestModule_UnusedValuesAtEnd(t *testing.T) {
	m := addModule()
	m.CodeSection[0].Uncompiled = []wasm.UnresolvedInstr{
		{Op: wasm.OpLocalGet, LocalIndex: 0},
		{Op: wasm.OpLocalGet, LocalIndex: 1},
		{Op: wasm.OpI32Add},
		{Op: wasm.OpI32Const, I32: 0},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.Error(t, err)
}

// block-with-branch: (block (result i32) i32.const 1 br 0) i32.const 2 i32.add — validates a branch out of a
// block carrying the block's result type, with trailing code after the block consuming it.
func TestModule_BlockWithBranch(t *testing.T) {
	m := addModule()
	m.CodeSection[0].Uncompiled = []wasm.UnresolvedInstr{
		{
			Op: wasm.OpBlock,
			Block: &wasm.UnresolvedBlock{
				Type: wasm.BlockType{Results: []wasm.ValueType{i32}},
				Then: []wasm.UnresolvedInstr{
					{Op: wasm.OpI32Const, I32: 1},
					{Op: wasm.OpBr, Labels: []wasm.Index{0}},
				},
			},
		},
		{Op: wasm.OpI32Const, I32: 2},
		{Op: wasm.OpI32Add},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.NoError(t, err)
}

// loop-with-conditional-branch exercises a loop's label targeting its *parameters* (the repeat point) rather
// than its results, via br_if back to the top.
func TestModule_LoopBranchesToParams(t *testing.T) {
	ft := &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{
					Op: wasm.OpLoop,
					Block: &wasm.UnresolvedBlock{
						Type: wasm.BlockType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}},
						Then: []wasm.UnresolvedInstr{
							{Op: wasm.OpLocalGet, LocalIndex: 0},
							{Op: wasm.OpBrIf, Labels: []wasm.Index{0}},
						},
					},
				},
			},
		}},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.NoError(t, err)
}

// if-without-else requires the block's params and results to match exactly, since the implicit else body is
// empty and must itself satisfy push_ctrl/pop_ctrl with no instructions run.
func TestModule_IfWithoutElse_MatchingTypes(t *testing.T) {
	ft := &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{
					Op: wasm.OpIf,
					Block: &wasm.UnresolvedBlock{
						Type: wasm.BlockType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}},
						Then: []wasm.UnresolvedInstr{
							{Op: wasm.OpI32Const, I32: 1},
							{Op: wasm.OpI32Add},
						},
					},
				},
			},
		}},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.NoError(t, err)
}

func TestModule_IfWithoutElse_MismatchedTypesRejected(t *testing.T) {
	ft := &wasm.FunctionType{Results: []wasm.ValueType{i32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpI32Const, I32: 1},
				{
					Op: wasm.OpIf,
					Block: &wasm.UnresolvedBlock{
						Type: wasm.BlockType{Results: []wasm.ValueType{i32}},
						Then: []wasm.UnresolvedInstr{
							{Op: wasm.OpI32Const, I32: 1},
						},
						// No Else: the implicit empty else-body must also produce an i32, but produces nothing.
					},
				},
			},
		}},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.Error(t, err)
}

func TestModule_GlobalInitializer_RejectsNonConstant(t *testing.T) {
	m := &wasm.Module{
		GlobalSection: []*wasm.Global{{
			Type: &wasm.GlobalType{ValType: i32, Mutable: false},
			Init: wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{
				{Op: wasm.OpLocalGet, LocalIndex: 0},
			}},
		}},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.Error(t, err)
}

func TestModule_GlobalInitializer_Accepts(t *testing.T) {
	m := &wasm.Module{
		GlobalSection: []*wasm.Global{{
			Type: &wasm.GlobalType{ValType: i32, Mutable: false},
			Init: wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{
				{Op: wasm.OpI32Const, I32: 42},
			}},
		}},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.NoError(t, err)
}

func TestModule_BulkMemoryOps(t *testing.T) {
	one := uint32(1)
	ft := &wasm.FunctionType{}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: &one}}},
		DataSection: []*wasm.DataSegment{{
			Mode: wasm.DataModePassive,
			Init: []byte{1, 2, 3, 4},
		}},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpI32Const, I32: 0},
				{Op: wasm.OpI32Const, I32: 0},
				{Op: wasm.OpI32Const, I32: 4},
				{Op: wasm.OpMemoryInit, DataIndex: 0},
				{Op: wasm.OpDataDrop, DataIndex: 0},
			},
		}},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.NoError(t, err)
}

func TestModule_WarnModeCollectsFirstErrorButContinues(t *testing.T) {
	m := addModule()
	m.CodeSection[0].Uncompiled = []wasm.UnresolvedInstr{
		{Op: wasm.OpI32Add}, // underflow: warn mode must not abort the whole pass
	}
	err := Module(m, wasm.Features20220419, ModeWarn, nil)
	require.Error(t, err)
}

// simdModule builds a single-function module whose body is just the given SIMD instruction, preceded by
// whatever i32 address operand it needs to type-check when SIMD is accepted.
func simdModule(ins wasm.UnresolvedInstr) *wasm.Module {
	one := uint32(1)
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{}},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: &one}}},
		CodeSection: []*wasm.Code{{
			Uncompiled: []wasm.UnresolvedInstr{
				{Op: wasm.OpI32Const, I32: 0},
				ins,
				{Op: wasm.OpDrop},
			},
		}},
	}
}

func TestModule_SIMD_RejectedByDefault(t *testing.T) {
	m := simdModule(wasm.UnresolvedInstr{Op: wasm.SIMDOpcode(0x00)}) // v128.load
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.Error(t, err)
}

func TestModule_SIMD_AcceptedWhenFeatureEnabled(t *testing.T) {
	m := simdModule(wasm.UnresolvedInstr{Op: wasm.SIMDOpcode(0x00)}) // v128.load
	err := Module(m, wasm.Features20220419|wasm.FeatureSIMD, ModeStrict, nil)
	require.NoError(t, err)
	require.NotEmpty(t, m.CodeSection[0].Body)
}

func TestModule_ConstExpr_GlobalGet_RejectsNonImportedGlobal(t *testing.T) {
	m := &wasm.Module{
		GlobalSection: []*wasm.Global{
			{Type: &wasm.GlobalType{ValType: i32, Mutable: false}, Init: wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{
				{Op: wasm.OpI32Const, I32: 1},
			}}},
			{Type: &wasm.GlobalType{ValType: i32, Mutable: false}, Init: wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{
				{Op: wasm.OpGlobalGet, GlobalIndex: 0}, // global 0 is module-local, not imported
			}}},
		},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.Error(t, err)
}

func TestModule_ConstExpr_GlobalGet_RejectsMutableImportedGlobal(t *testing.T) {
	m := &wasm.Module{
		ImportSection: []*wasm.Import{{
			Module: "env", Name: "g", Type: api.ExternTypeGlobal,
			DescGlobal: &wasm.GlobalType{ValType: i32, Mutable: true},
		}},
		GlobalSection: []*wasm.Global{
			{Type: &wasm.GlobalType{ValType: i32, Mutable: false}, Init: wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{
				{Op: wasm.OpGlobalGet, GlobalIndex: 0},
			}}},
		},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.Error(t, err)
}

func TestModule_ConstExpr_GlobalGet_AcceptsImportedImmutableGlobal(t *testing.T) {
	m := &wasm.Module{
		ImportSection: []*wasm.Import{{
			Module: "env", Name: "g", Type: api.ExternTypeGlobal,
			DescGlobal: &wasm.GlobalType{ValType: i32, Mutable: false},
		}},
		GlobalSection: []*wasm.Global{
			{Type: &wasm.GlobalType{ValType: i32, Mutable: false}, Init: wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{
				{Op: wasm.OpGlobalGet, GlobalIndex: 0},
			}}},
		},
	}
	err := Module(m, wasm.Features20220419, ModeStrict, nil)
	require.NoError(t, err)
}
