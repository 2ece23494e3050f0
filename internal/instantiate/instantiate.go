package instantiate

import (
	"context"
	"encoding/binary"
	"time"

	"wrun/internal/interp"
	"wrun/internal/wasm"
)

// Module runs the standard twelve-phase instantiation sequence against m, registering the resulting instance
// under name in registry so later modules can import from it. m must already have been validated (every
// Code.Body, global initializer, and active element/data offset/item compiled by internal/validate).
//
// The "push a dummy activation" step exists so constant-expression evaluation and the synthetic
// table.init/memory.init driver calls below have a current module instance to resolve module-local indices
// against; here that's simply the *wasm.ModuleInstance passed explicitly to evalConstExpr and threaded through
// the driver FunctionInstance's Module field; there is no literal interpreter frame pushed for it; nothing
// in this package depends on the interpreter's own call stack except the two driver invocations themselves.
func Module(ctx context.Context, engine *interp.Engine, registry *Registry, m *wasm.Module, name string) (*wasm.ModuleInstance, error) {
	start := time.Now()
	defer engine.Metrics().ObserveInstantiate(start)
	store := engine.Store()

	// Phase 1: skeleton with types only.
	mi := &wasm.ModuleInstance{Name: name, Types: m.TypeSection, Exports: map[string]*wasm.Export{}}

	// Phase 2: resolve imports.
	imports, err := resolveImports(store, registry, m)
	if err != nil {
		return nil, err
	}
	mi.FunctionAddrs = append(mi.FunctionAddrs, imports.Functions...)
	mi.TableAddrs = append(mi.TableAddrs, imports.Tables...)
	mi.MemoryAddrs = append(mi.MemoryAddrs, imports.Memories...)
	mi.GlobalAddrs = append(mi.GlobalAddrs, imports.Globals...)

	// Phase 3: allocate module-defined functions, tables, memories, all referring back to mi.
	for i, code := range m.CodeSection {
		funcIdx := wasm.Index(m.ImportedFunctionCount() + i)
		mi.FunctionAddrs = append(mi.FunctionAddrs, store.AllocateFunction(&wasm.FunctionInstance{
			Type:       m.TypeOfFunction(funcIdx),
			Module:     mi,
			LocalTypes: code.LocalTypes,
			Body:       code.Body,
			Name:       name + "." + m.FuncRef(funcIdx),
		}))
	}
	for _, tt := range m.TableSection {
		refs := make([]wasm.Reference, tt.Limits.Min)
		for i := range refs {
			refs[i] = wasm.NullReference(tt.RefType)
		}
		mi.TableAddrs = append(mi.TableAddrs, store.AllocateTable(&wasm.TableInstance{Type: *tt, Refs: refs}))
	}
	for _, mt := range m.MemorySection {
		mi.MemoryAddrs = append(mi.MemoryAddrs, store.AllocateMemory(&wasm.MemoryInstance{
			Type:  *mt,
			Bytes: make([]byte, uint64(mt.Limits.Min)*wasm.PageSize),
		}))
	}

	// Phase 4: snapshot published (mi already carries function/table/memory addrs; global/element/data vectors
	// fill in below, read only by code that runs after they're populated).

	// Phase 6: element items, then element instances. Element items may ref.func a module-defined function,
	// already resolved in phase 3/4 above.
	for _, es := range m.ElementSection {
		refs := make([]wasm.Reference, len(es.Init))
		for i, item := range es.Init {
			_, ref, err := evalConstExpr(mi, store, item)
			if err != nil {
				return nil, err
			}
			refs[i] = ref
		}
		mi.ElementAddrs = append(mi.ElementAddrs, store.AllocateElement(&wasm.ElementInstance{RefType: es.RefType, Refs: refs}))
	}

	// Phase 7: global initializers, referencing only already-resolved imported globals per validation.
	for _, g := range m.GlobalSection {
		value, ref, err := evalConstExpr(mi, store, g.Init)
		if err != nil {
			return nil, err
		}
		mi.GlobalAddrs = append(mi.GlobalAddrs, store.AllocateGlobal(&wasm.GlobalInstance{Type: *g.Type, Value: value, Ref: ref}))
	}

	// Phase 8: re-snapshot (mi now carries element/global addrs too).

	// Phase 9: active element segments drive table.init+elem.drop through the real interpreter.
	for i, es := range m.ElementSection {
		if es.Mode != wasm.ElementModeActive {
			continue
		}
		offset, err := evalI32Offset(mi, store, es.Offset)
		if err != nil {
			return nil, err
		}
		body := newDriver()
		body.i32Const(int32(offset))
		body.i32Const(0)
		body.i32Const(int32(len(es.Init)))
		body.op(wasm.OpTableInit)
		body.u32(uint32(i))
		body.u32(es.TableIndex)
		body.op(wasm.OpElemDrop)
		body.u32(uint32(i))
		body.op(wasm.OpEnd)
		if _, err := engine.Call(ctx, driverFn(mi, body), nil); err != nil {
			return nil, err
		}
	}

	// Phase 10: allocate every data segment up front (memory.init addresses mod.DataAddrs by section index,
	// so the vector must be complete before any driver below can run), then drive active ones through
	// memory.init+data.drop.
	for _, ds := range m.DataSection {
		mi.DataAddrs = append(mi.DataAddrs, store.AllocateData(&wasm.DataInstance{Bytes: ds.Init}))
	}
	for i, ds := range m.DataSection {
		if ds.Mode != wasm.DataModeActive {
			continue
		}
		offset, err := evalI32Offset(mi, store, ds.Offset)
		if err != nil {
			return nil, err
		}
		body := newDriver()
		body.i32Const(int32(offset))
		body.i32Const(0)
		body.i32Const(int32(len(ds.Init)))
		body.op(wasm.OpMemoryInit)
		body.u32(uint32(i))
		body.op(wasm.OpDataDrop)
		body.u32(uint32(i))
		body.op(wasm.OpEnd)
		if _, err := engine.Call(ctx, driverFn(mi, body), nil); err != nil {
			return nil, err
		}
	}

	// Exports: copy the resolved Export records in (Export.Index is already the module-local index the
	// ModuleInstance accessor methods expect).
	for name, exp := range m.ExportSection {
		mi.Exports[name] = exp
	}

	// Phase 12: start function, if any.
	if m.StartSection != nil {
		startFn := store.Function(mi.FunctionAddrs[*m.StartSection])
		if _, err := engine.Call(ctx, startFn, nil); err != nil {
			return nil, err
		}
	}

	if err := registry.Register(mi); err != nil {
		return nil, err
	}
	engine.Metrics().ModulesCompiled.Inc()
	return mi, nil
}

// driverFn wraps a synthetic bulk-init instruction sequence in a FunctionInstance so it can run through the
// same interpreter that executes guest code, rather than duplicating table.init/memory.init's bound-checked
// copy semantics here.
func driverFn(mi *wasm.ModuleInstance, body *driverBuilder) *wasm.FunctionInstance {
	return &wasm.FunctionInstance{Type: &wasm.FunctionType{}, Module: mi, Body: body.buf, Name: "<init>"}
}

// driverBuilder emits the same fixed-width bytecode internal/validate's emitter produces, scoped to the
// handful of opcodes an active element/data segment's init sequence ever needs.
type driverBuilder struct{ buf []byte }

func newDriver() *driverBuilder { return &driverBuilder{} }

func (b *driverBuilder) op(op wasm.Opcode) {
	if op.IsExtended() {
		b.buf = append(b.buf, 0xfc, op.ExtendedSub())
		return
	}
	b.buf = append(b.buf, byte(op))
}

func (b *driverBuilder) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *driverBuilder) i32Const(v int32) {
	b.op(wasm.OpI32Const)
	b.u32(uint32(v))
}

