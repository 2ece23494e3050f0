package wrun

import (
	"github.com/prometheus/client_golang/prometheus"

	"wrun/internal/buildoptions"
	"wrun/internal/rtlog"
	"wrun/internal/wasm"
)

// RuntimeConfig controls the behavior of a Runtime constructed by NewRuntime. The zero value is never valid;
// start from NewRuntimeConfig and layer on With* calls, each of which returns an independent copy.
type RuntimeConfig struct {
	enabledFeatures  wasm.Features
	callStackCeiling int
	logger           rtlog.Logger
	registerer       prometheus.Registerer
	cache            *Cache
}

// NewRuntimeConfig returns the default RuntimeConfig: the WebAssembly 2.0 feature set, the interpreter's
// default call-stack ceiling, a discarding logger, no metrics registration, and no compile cache.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		enabledFeatures:  wasm.Features20220419,
		callStackCeiling: buildoptions.CallStackCeiling,
		logger:           rtlog.Discard(),
	}
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// WithFeature enables or disables a single optional proposal on top of the current feature set.
func (c *RuntimeConfig) WithFeature(f wasm.Features, enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(f, enabled)
	return ret
}

// WithCallStackCeiling overrides the maximum call activation depth before the interpreter raises a
// call-stack-exhaustion trap. Defaults to buildoptions.CallStackCeiling.
func (c *RuntimeConfig) WithCallStackCeiling(n int) *RuntimeConfig {
	ret := c.clone()
	ret.callStackCeiling = n
	return ret
}

// WithLogger attaches a logger used for compile-time diagnostics and any host module's own logging (such as
// internal/spectest's print_* functions). Defaults to a discarding logger.
func (c *RuntimeConfig) WithLogger(l rtlog.Logger) *RuntimeConfig {
	ret := c.clone()
	ret.logger = l
	return ret
}

// WithMetrics registers the Runtime's call counters and histograms against reg. Defaults to nil, meaning no
// registration; passing a non-nil Registerer is the only thing that causes anything to export metrics.
func (c *RuntimeConfig) WithMetrics(reg prometheus.Registerer) *RuntimeConfig {
	ret := c.clone()
	ret.registerer = reg
	return ret
}

// WithCache shares cache across every module this Runtime compiles, so compiling identical source more than
// once within the same process skips parsing, resolving and validating it again. The cache lives in memory
// only; nothing carries over between processes. Defaults to nil, meaning every CompileModule call does the full work.
func (c *RuntimeConfig) WithCache(cache *Cache) *RuntimeConfig {
	ret := c.clone()
	ret.cache = cache
	return ret
}
