// Package interp is the bytecode interpreter: it walks the fixed-width stream internal/validate emits and
// drives it against a *wasm.Store directly, reading immediates straight off the validator's own emitted
// stream instead of walking a second intermediate representation.
package interp

import (
	"context"

	"wrun/internal/buildoptions"
	"wrun/internal/rtlog"
	"wrun/internal/rtmetrics"
	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

// Engine runs compiled function bodies against a Store. One Engine is shared by every module instantiated
// into the same Store; callEngine is the per-Call activation record.
type Engine struct {
	store            *wasm.Store
	callStackCeiling int
	logger           rtlog.Logger
	metrics          *rtmetrics.Metrics
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithCallStackCeiling overrides the default activation depth (buildoptions.CallStackCeiling) before a
// call-stack-exhaustion trap is raised.
func WithCallStackCeiling(n int) Option {
	return func(e *Engine) { e.callStackCeiling = n }
}

// WithLogger attaches a logger; the default is rtlog.Discard().
func WithLogger(l rtlog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics attaches a metrics sink; the default records nothing.
func WithMetrics(m *rtmetrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs an Engine bound to store.
func NewEngine(store *wasm.Store, opts ...Option) *Engine {
	e := &Engine{
		store:            store,
		callStackCeiling: buildoptions.CallStackCeiling,
		logger:           rtlog.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = rtmetrics.New(nil)
	}
	return e
}

// Metrics returns the metrics sink this Engine records to, for callers (instantiation) that want to time
// themselves against the same collectors.
func (e *Engine) Metrics() *rtmetrics.Metrics { return e.metrics }

// Logger returns the logger this Engine reports traps to, for callers that want diagnostics on the same sink.
func (e *Engine) Logger() rtlog.Logger { return e.logger }

// Store returns the Store this Engine executes against.
func (e *Engine) Store() *wasm.Store { return e.store }

// Call invokes fn with params, returning its results or the *wasmerr.Error that trapped execution.
func (e *Engine) Call(ctx context.Context, fn *wasm.FunctionInstance, params []uint64) (results []uint64, err error) {
	ce := &callEngine{engine: e}
	defer func() {
		if r := recover(); r == nil {
			return
		} else if werr, ok := r.(*wasmerr.Error); ok {
			if code, hasCode := werr.TrapCode(); hasCode {
				e.metrics.RecordTrap(code.String())
			} else {
				e.metrics.RecordTrap(werr.Kind().String())
			}
			e.logger.WithError(werr).Errorf("trap executing %s", fn.Name)
			err = werr
		} else {
			panic(r)
		}
	}()
	results = ce.call(ctx, fn, params)
	return results, nil
}
