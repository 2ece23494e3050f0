package wrun

import (
	"context"
	"fmt"

	"wrun/api"
	"wrun/internal/reflectfn"
	"wrun/internal/wasm"
)

// HostFunctionBuilder defines a single host function (implemented in Go) for export from a HostModuleBuilder.
//
//	env := r.NewHostModuleBuilder("env")
//	env.NewFunctionBuilder().
//		WithFunc(func(ctx context.Context, x, y uint32) uint32 { return x + y }).
//		Export("add")
//
// Every parameter and the sole result (besides an optional leading context.Context and trailing error) must be
// one of uint32, int32, uint64, int64, float32, float64 — see internal/reflectfn for the exact binding rules.
type HostFunctionBuilder interface {
	// WithFunc uses reflection to bind fn's signature to a WebAssembly function type. fn must be a func;
	// anything else makes the owning HostModuleBuilder's Instantiate return an error.
	WithFunc(fn interface{}) HostFunctionBuilder

	// Export finishes this function and adds it to the owning HostModuleBuilder under name.
	Export(name string) HostModuleBuilder
}

// HostModuleBuilder defines a module entirely implemented in Go (no .wasm source), for import by modules
// instantiated from that Runtime.
type HostModuleBuilder interface {
	// NewFunctionBuilder begins the definition of one exported function.
	NewFunctionBuilder() HostFunctionBuilder

	// Instantiate builds and registers the module, returning the same api.Module handle InstantiateModule
	// would. The module is named as given to NewHostModuleBuilder.
	Instantiate(ctx context.Context) (api.Module, error)
}

type hostModuleBuilder struct {
	r          *Runtime
	moduleName string
	fns        []*hostFunctionBuilder
	err        error
}

type hostFunctionBuilder struct {
	b          *hostModuleBuilder
	fn         interface{}
	exportName string
}

func (b *hostModuleBuilder) NewFunctionBuilder() HostFunctionBuilder {
	fb := &hostFunctionBuilder{b: b}
	return fb
}

func (f *hostFunctionBuilder) WithFunc(fn interface{}) HostFunctionBuilder {
	f.fn = fn
	return f
}

func (f *hostFunctionBuilder) Export(name string) HostModuleBuilder {
	f.exportName = name
	f.b.fns = append(f.b.fns, f)
	return f.b
}

func (b *hostModuleBuilder) Instantiate(ctx context.Context) (api.Module, error) {
	if b.err != nil {
		return nil, b.err
	}

	mi := &wasm.ModuleInstance{Name: b.moduleName, Exports: map[string]*wasm.Export{}}
	for i, f := range b.fns {
		ft, hostFn, err := reflectfn.Bind(f.fn)
		if err != nil {
			return nil, fmt.Errorf("wrun: host function %q: %w", f.exportName, err)
		}
		addr := b.r.store.AllocateFunction(&wasm.FunctionInstance{
			Type:   ft,
			Module: mi,
			Name:   b.moduleName + "." + f.exportName,
			HostFn: hostFn,
		})
		mi.FunctionAddrs = append(mi.FunctionAddrs, addr)
		mi.Exports[f.exportName] = &wasm.Export{Name: f.exportName, Type: api.ExternTypeFunc, Index: wasm.Index(i)}
	}

	if err := b.r.registry.Register(mi); err != nil {
		return nil, err
	}
	return &moduleInstance{mi: mi, store: b.r.store, engine: b.r.engine, registry: b.r.registry}, nil
}
