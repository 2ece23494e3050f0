package wasm

import (
	"wrun/api"
	"wrun/internal/wasmerr"
)

// ModuleInstance is the shared, post-instantiation state of one module: its type vector and, for each
// index-space, a vector mapping module-local index to Store address. Multiple FunctionInstances (one per
// function the module defines or imports) hold a pointer to the same ModuleInstance to resolve their own
// module-relative global.get, call, and memory/table instructions.
type ModuleInstance struct {
	Name  string
	Types []*FunctionType

	FunctionAddrs []FunctionAddr
	TableAddrs    []TableAddr
	MemoryAddrs   []MemoryAddr
	GlobalAddrs   []GlobalAddr
	ElementAddrs  []ElementAddr
	DataAddrs     []DataAddr

	Exports map[string]*Export
}

// ExportedFunctionAddr resolves a named function export to its Store address.
func (mi *ModuleInstance) ExportedFunctionAddr(name string) (FunctionAddr, error) {
	exp, ok := mi.Exports[name]
	if !ok || exp.Type != api.ExternTypeFunc {
		return 0, wasmerr.Newf(wasmerr.KindLink, "%q is not an exported function", name)
	}
	return mi.FunctionAddrs[exp.Index], nil
}

// ExportedMemoryAddr resolves a named memory export to its Store address.
func (mi *ModuleInstance) ExportedMemoryAddr(name string) (MemoryAddr, error) {
	exp, ok := mi.Exports[name]
	if !ok || exp.Type != api.ExternTypeMemory {
		return 0, wasmerr.Newf(wasmerr.KindLink, "%q is not an exported memory", name)
	}
	return mi.MemoryAddrs[exp.Index], nil
}

// ExportedGlobalAddr resolves a named global export to its Store address.
func (mi *ModuleInstance) ExportedGlobalAddr(name string) (GlobalAddr, error) {
	exp, ok := mi.Exports[name]
	if !ok || exp.Type != api.ExternTypeGlobal {
		return 0, wasmerr.Newf(wasmerr.KindLink, "%q is not an exported global", name)
	}
	return mi.GlobalAddrs[exp.Index], nil
}

// ExportedTableAddr resolves a named table export to its Store address.
func (mi *ModuleInstance) ExportedTableAddr(name string) (TableAddr, error) {
	exp, ok := mi.Exports[name]
	if !ok || exp.Type != api.ExternTypeTable {
		return 0, wasmerr.Newf(wasmerr.KindLink, "%q is not an exported table", name)
	}
	return mi.TableAddrs[exp.Index], nil
}
