// Package spectest builds the fixed "spectest" host module the official conformance test suite imports
// against: a mutable i32 global, a funcref table, a memory, and a family of no-op print_* functions that
// accept arguments of the shape their name advertises and return nothing. None of it does anything beyond
// type-checking its arguments; its only job is to give conformance modules something real to link against.
package spectest

import (
	"math"

	"wrun/api"
	"wrun/internal/instantiate"
	"wrun/internal/rtlog"
	"wrun/internal/wasm"
)

const moduleName = "spectest"

var (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f32 = wasm.ValueTypeF32
	f64 = wasm.ValueTypeF64
)

// Register allocates the spectest module instance in store and adds it to registry under "spectest", so
// modules that `(import "spectest" ...)` resolve against it the same way they would against any other
// previously-instantiated module. log receives one line per print_* call; pass rtlog.Discard() to silence it.
func Register(store *wasm.Store, registry *instantiate.Registry, log rtlog.Logger) error {
	mi := &wasm.ModuleInstance{Name: moduleName, Exports: map[string]*wasm.Export{}}

	tableMax := uint32(20)
	mi.TableAddrs = []wasm.TableAddr{store.AllocateTable(&wasm.TableInstance{
		Type: wasm.TableType{RefType: wasm.ValueTypeFuncref, Limits: wasm.Limits{Min: 10, Max: &tableMax}},
		Refs: nullRefs(10, wasm.ValueTypeFuncref),
	})}

	memMax := uint32(2)
	mi.MemoryAddrs = []wasm.MemoryAddr{store.AllocateMemory(&wasm.MemoryInstance{
		Type:  wasm.MemoryType{Limits: wasm.Limits{Min: 1, Max: &memMax}},
		Bytes: make([]byte, uint64(1)*wasm.PageSize),
	})}

	mi.GlobalAddrs = []wasm.GlobalAddr{
		store.AllocateGlobal(&wasm.GlobalInstance{Type: wasm.GlobalType{ValType: i32, Mutable: true}, Value: 666}),
		store.AllocateGlobal(&wasm.GlobalInstance{Type: wasm.GlobalType{ValType: i64, Mutable: false}, Value: 666}),
		store.AllocateGlobal(&wasm.GlobalInstance{Type: wasm.GlobalType{ValType: f32, Mutable: false}, Value: uint64(math.Float32bits(666))}),
		store.AllocateGlobal(&wasm.GlobalInstance{Type: wasm.GlobalType{ValType: f64, Mutable: false}, Value: math.Float64bits(666)}),
	}

	printFns := []struct {
		name   string
		params []wasm.ValueType
	}{
		{"print", nil},
		{"print_i32", []wasm.ValueType{i32}},
		{"print_i64", []wasm.ValueType{i64}},
		{"print_f32", []wasm.ValueType{f32}},
		{"print_f64", []wasm.ValueType{f64}},
		{"print_i32_f32", []wasm.ValueType{i32, f32}},
		{"print_f64_f64", []wasm.ValueType{f64, f64}},
	}
	for _, pf := range printFns {
		pf := pf // captured by the HostFn closure below; each function needs its own copy.
		ft := &wasm.FunctionType{Params: pf.params}
		addr := store.AllocateFunction(&wasm.FunctionInstance{
			Type:   ft,
			Module: mi,
			Name:   moduleName + "." + pf.name,
			HostFn: func(ctx *wasm.HostContext, params []uint64) ([]uint64, error) {
				log.WithField("module", moduleName).Debugf("%s%v", pf.name, params)
				return nil, nil
			},
		})
		mi.FunctionAddrs = append(mi.FunctionAddrs, addr)
	}

	exportFunc := func(name string, index wasm.Index) {
		mi.Exports[name] = &wasm.Export{Name: name, Type: api.ExternTypeFunc, Index: index}
	}
	for i, pf := range printFns {
		exportFunc(pf.name, wasm.Index(i))
	}
	mi.Exports["table"] = &wasm.Export{Name: "table", Type: api.ExternTypeTable, Index: 0}
	mi.Exports["memory"] = &wasm.Export{Name: "memory", Type: api.ExternTypeMemory, Index: 0}
	mi.Exports["global_i32"] = &wasm.Export{Name: "global_i32", Type: api.ExternTypeGlobal, Index: 0}
	mi.Exports["global_i64"] = &wasm.Export{Name: "global_i64", Type: api.ExternTypeGlobal, Index: 1}
	mi.Exports["global_f32"] = &wasm.Export{Name: "global_f32", Type: api.ExternTypeGlobal, Index: 2}
	mi.Exports["global_f64"] = &wasm.Export{Name: "global_f64", Type: api.ExternTypeGlobal, Index: 3}

	return registry.Register(mi)
}

func nullRefs(n uint32, refType wasm.ValueType) []wasm.Reference {
	refs := make([]wasm.Reference, n)
	for i := range refs {
		refs[i] = wasm.NullReference(refType)
	}
	return refs
}
