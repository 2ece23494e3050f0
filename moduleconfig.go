package wrun

// ModuleConfig controls the behavior of a single Runtime.InstantiateModule call. The zero value from
// NewModuleConfig instantiates under the module's own decoded name.
type ModuleConfig struct {
	name string
}

// NewModuleConfig returns a ModuleConfig with no overrides.
func NewModuleConfig() *ModuleConfig {
	return &ModuleConfig{}
}

// WithName overrides the name this module instance is registered and imported under, taking precedence over
// the module's own decoded name (and, failing that, the content-hash fallback).
func (c *ModuleConfig) WithName(name string) *ModuleConfig {
	ret := *c
	ret.name = name
	return &ret
}
