package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"wrun/api"
)

func TestFunctionType_String(t *testing.T) {
	for _, tc := range []struct {
		functype *FunctionType
		exp      string
	}{
		{functype: &FunctionType{}, exp: "null_null"},
		{functype: &FunctionType{Params: []ValueType{ValueTypeI32}}, exp: "i32_null"},
		{functype: &FunctionType{Params: []ValueType{ValueTypeI32, ValueTypeF64}}, exp: "i32f64_null"},
		{functype: &FunctionType{Results: []ValueType{ValueTypeI64}}, exp: "null_i64"},
		{
			functype: &FunctionType{Params: []ValueType{ValueTypeI32}, Results: []ValueType{ValueTypeI64}},
			exp:      "i32_i64",
		},
	} {
		tc := tc
		t.Run(tc.exp, func(t *testing.T) {
			require.Equal(t, tc.exp, tc.functype.String())
		})
	}
}

func TestSectionIDName(t *testing.T) {
	require.Equal(t, "custom", SectionIDName(SectionIDCustom))
	require.Equal(t, "code", SectionIDName(SectionIDCode))
	require.Equal(t, "unknown", SectionIDName(100))
}

func TestModule_ImportedFunctionCount(t *testing.T) {
	m := &Module{
		ImportSection: []*Import{
			{Type: api.ExternTypeFunc, DescFunc: 0},
			{Type: api.ExternTypeGlobal, DescGlobal: &GlobalType{}},
			{Type: api.ExternTypeFunc, DescFunc: 1},
		},
		FunctionSection: []Index{2, 2},
	}
	require.Equal(t, 2, m.ImportedFunctionCount())
	require.Equal(t, 1, m.ImportedGlobalCount())
}

func TestModule_TypeOfFunction(t *testing.T) {
	ft0 := &FunctionType{Params: []ValueType{ValueTypeI32}}
	ft1 := &FunctionType{Results: []ValueType{ValueTypeI64}}
	m := &Module{
		TypeSection:     []*FunctionType{ft0, ft1},
		ImportSection:   []*Import{{Type: api.ExternTypeFunc, DescFunc: 1}},
		FunctionSection: []Index{0},
	}
	require.Same(t, ft1, m.TypeOfFunction(0)) // the import
	require.Same(t, ft0, m.TypeOfFunction(1)) // the first defined function
	require.Nil(t, m.TypeOfFunction(2))
}

func TestModule_validateStartSection(t *testing.T) {
	badStart := Index(0)
	m := &Module{
		TypeSection:     []*FunctionType{{Params: []ValueType{ValueTypeI32}}},
		FunctionSection: []Index{0},
		StartSection:    &badStart,
	}
	require.Error(t, m.validateStartSection())

	goodStart := Index(0)
	m2 := &Module{
		TypeSection:     []*FunctionType{{}},
		FunctionSection: []Index{0},
		StartSection:    &goodStart,
	}
	require.NoError(t, m2.validateStartSection())
}

func TestModule_Validate_ExportOutOfRange(t *testing.T) {
	m := &Module{
		ExportSection: map[string]*Export{"f": {Name: "f", Type: api.ExternTypeFunc, Index: 5}},
	}
	err := m.Validate(Features20220419)
	require.ErrorContains(t, err, "out of range")
}

func TestModule_Validate_AtMostOneMemory(t *testing.T) {
	m := &Module{
		MemorySection: []*MemoryType{{Limits: Limits{Min: 1}}, {Limits: Limits{Min: 1}}},
	}
	err := m.Validate(Features20220419)
	require.ErrorContains(t, err, "at most one memory")
}
