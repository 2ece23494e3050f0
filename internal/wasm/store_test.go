package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"wrun/api"
)

func TestStore_AllocateFunction(t *testing.T) {
	s := NewStore(Features20220419)
	addr := s.AllocateFunction(&FunctionInstance{Type: &FunctionType{}})
	require.Equal(t, FunctionAddr(0), addr)
	require.Same(t, s.Functions[0], s.Function(addr))

	addr2 := s.AllocateFunction(&FunctionInstance{Type: &FunctionType{}})
	require.Equal(t, FunctionAddr(1), addr2)
}

func TestMemoryInstance_Grow(t *testing.T) {
	max := uint32(2)
	m := &MemoryInstance{Type: MemoryType{Limits: Limits{Min: 1, Max: &max}}, Bytes: make([]byte, PageSize)}

	prev, ok := m.Grow(1)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(2), m.PageCount())

	_, ok = m.Grow(1)
	require.False(t, ok, "growth beyond Max must fail")
}

func TestElementInstance_Drop(t *testing.T) {
	e := &ElementInstance{RefType: ValueTypeFuncref, Refs: []Reference{{Func: 3}}}
	e.Refs = nil // elem.drop empties in place.
	require.Empty(t, e.Refs)
}

func TestModuleInstance_ExportedFunctionAddr(t *testing.T) {
	mi := &ModuleInstance{
		FunctionAddrs: []FunctionAddr{7},
		Exports:       map[string]*Export{"add": {Name: "add", Type: api.ExternTypeFunc, Index: 0}},
	}
	addr, err := mi.ExportedFunctionAddr("add")
	require.NoError(t, err)
	require.Equal(t, FunctionAddr(7), addr)

	_, err = mi.ExportedFunctionAddr("missing")
	require.Error(t, err)
}
