// Package instantiate implements the twelve-phase algorithm that turns a validated *wasm.Module into a linked,
// running *wasm.ModuleInstance: resolving imports against already-instantiated modules, allocating Store
// entries, and running element/data initializers and the start function through internal/interp.
package instantiate

import (
	"sync"

	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

// Registry is the set of named module instances a module's imports may resolve against, keyed by
// instantiation name. A Runtime owns one Registry per namespace.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*wasm.ModuleInstance
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: map[string]*wasm.ModuleInstance{}}
}

// Register adds mi under its own Name, failing if that name is already taken in this registry.
func (r *Registry) Register(mi *wasm.ModuleInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[mi.Name]; exists {
		return wasmerr.Newf(wasmerr.KindLink, "module %q already instantiated in this namespace", mi.Name)
	}
	r.modules[mi.Name] = mi
	return nil
}

// Lookup returns the module instance registered under name, if any.
func (r *Registry) Lookup(name string) (*wasm.ModuleInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mi, ok := r.modules[name]
	return mi, ok
}

// Release frees name for reuse, letting a module be closed and re-instantiated under the same name.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, name)
}

// ReleaseAll empties the registry, for a Runtime that is itself being closed.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = map[string]*wasm.ModuleInstance{}
}
