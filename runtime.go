// Package wrun is a standalone WebAssembly 1.0 runtime: parse (binary or text), resolve, validate, link,
// instantiate, and run, without relying on any other Wasm implementation.
package wrun

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/google/uuid"

	"wrun/api"
	"wrun/internal/instantiate"
	"wrun/internal/interp"
	"wrun/internal/modcache"
	"wrun/internal/rtlog"
	"wrun/internal/rtmetrics"
	"wrun/internal/validate"
	"wrun/internal/wasm"
	"wrun/internal/wasmbin"
	"wrun/internal/wasmtext"
)

// Runtime is the top-level embedding surface: it owns a Store of allocated instances, the Engine that
// executes against it, and the Registry namespace modules link against. One process may run several
// independent Runtime instances; nothing is shared between them.
type Runtime struct {
	id       uuid.UUID
	store    *wasm.Store
	engine   *interp.Engine
	registry *instantiate.Registry
	cache    *Cache
	logger   rtlog.Logger
	config   *RuntimeConfig
}

// NewRuntime constructs a Runtime from config (see NewRuntimeConfig for defaults).
func NewRuntime(config *RuntimeConfig) *Runtime {
	if config == nil {
		config = NewRuntimeConfig()
	}
	store := wasm.NewStore(config.enabledFeatures)
	metrics := rtmetrics.New(config.registerer)
	engine := interp.NewEngine(store,
		interp.WithCallStackCeiling(config.callStackCeiling),
		interp.WithLogger(config.logger),
		interp.WithMetrics(metrics),
	)
	return &Runtime{
		id:       uuid.New(),
		store:    store,
		engine:   engine,
		registry: instantiate.NewRegistry(),
		cache:    config.cache,
		logger:   config.logger,
		config:   config,
	}
}

// ID uniquely identifies this Runtime instance within the process, for correlating log lines and metrics
// emitted by embedders running more than one Runtime at a time.
func (r *Runtime) ID() uuid.UUID { return r.id }

// CompileModule parses, resolves (if source is text format) and validates src, producing a CompiledModule
// ready for InstantiateModule. Binary sources are detected by the `\0asm` magic; anything else is parsed as
// text format.
func (r *Runtime) CompileModule(ctx context.Context, src []byte) (*CompiledModule, error) {
	id := modcache.HashSource(src)
	if r.cache != nil {
		if m, ok := r.cache.get(id); ok {
			return &CompiledModule{module: m}, nil
		}
	}

	m, err := r.parse(src)
	if err != nil {
		return nil, err
	}
	m.ID = wasm.NewID(src)

	if err := validate.Module(m, r.config.enabledFeatures, validate.ModeStrict, r.logger); err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.add(id, m)
	}
	return &CompiledModule{module: m}, nil
}

func (r *Runtime) parse(src []byte) (*wasm.Module, error) {
	if isBinary(src) {
		return wasmbin.Decode(bytes.NewReader(src), r.config.enabledFeatures)
	}
	um, err := wasmtext.Parse(string(src))
	if err != nil {
		return nil, err
	}
	return wasmtext.Resolve(um)
}

func isBinary(src []byte) bool {
	return len(src) >= 4 && src[0] == 0x00 && src[1] == 'a' && src[2] == 's' && src[3] == 'm'
}

// InstantiateModule links and instantiates compiled, registering it under the name from moduleConfig (or the
// module's own decoded name, if moduleConfig is nil or names none).
func (r *Runtime) InstantiateModule(ctx context.Context, compiled *CompiledModule, moduleConfig *ModuleConfig) (api.Module, error) {
	name := compiled.module.Name
	if moduleConfig != nil && moduleConfig.name != "" {
		name = moduleConfig.name
	}
	if name == "" {
		name = hex.EncodeToString(compiled.module.ID[:])
	}

	mi, err := instantiate.Module(ctx, r.engine, r.registry, compiled.module, name)
	if err != nil {
		return nil, err
	}
	return &moduleInstance{mi: mi, store: r.store, engine: r.engine, registry: r.registry}, nil
}

// NewHostModuleBuilder begins defining a host module (implemented in Go) importable under moduleName.
func (r *Runtime) NewHostModuleBuilder(moduleName string) HostModuleBuilder {
	return &hostModuleBuilder{r: r, moduleName: moduleName}
}

// Close releases every module instance this Runtime registered. A closed Runtime must not be used again; its
// Store and Engine are left for the garbage collector once every api.Module handle it returned is dropped too.
func (r *Runtime) Close(ctx context.Context) error {
	r.registry.ReleaseAll()
	return nil
}
