package wrun

import (
	"context"
	"encoding/binary"
	"fmt"

	"wrun/api"
	"wrun/internal/instantiate"
	"wrun/internal/interp"
	"wrun/internal/wasm"
)

// moduleInstance implements api.Module over a *wasm.ModuleInstance, giving an embedder the only handle it
// gets to a module's exports once Runtime.InstantiateModule returns.
type moduleInstance struct {
	mi       *wasm.ModuleInstance
	store    *wasm.Store
	engine   *interp.Engine
	registry *instantiate.Registry
}

var _ api.Module = (*moduleInstance)(nil)

func (m *moduleInstance) String() string { return fmt.Sprintf("Module[%s]", m.mi.Name) }

func (m *moduleInstance) Name() string { return m.mi.Name }

func (m *moduleInstance) Memory() api.Memory {
	if len(m.mi.MemoryAddrs) == 0 {
		return nil
	}
	return &memory{inst: m.store.Memory(m.mi.MemoryAddrs[0])}
}

func (m *moduleInstance) ExportedFunction(name string) api.Function {
	addr, err := m.mi.ExportedFunctionAddr(name)
	if err != nil {
		return nil
	}
	return &function{engine: m.engine, fn: m.store.Function(addr)}
}

func (m *moduleInstance) ExportedMemory(name string) api.Memory {
	addr, err := m.mi.ExportedMemoryAddr(name)
	if err != nil {
		return nil
	}
	return &memory{inst: m.store.Memory(addr)}
}

func (m *moduleInstance) ExportedGlobal(name string) api.Global {
	addr, err := m.mi.ExportedGlobalAddr(name)
	if err != nil {
		return nil
	}
	g := m.store.Global(addr)
	if g.Type.Mutable {
		return &mutableGlobal{global{inst: g}}
	}
	return &global{inst: g}
}

func (m *moduleInstance) Close(ctx context.Context) error {
	m.registry.Release(m.mi.Name)
	return nil
}

// function implements api.Function over a *wasm.FunctionInstance, invoking it through the owning Engine.
type function struct {
	engine *interp.Engine
	fn     *wasm.FunctionInstance
}

var _ api.Function = (*function)(nil)

func (f *function) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.engine.Call(ctx, f.fn, params)
}

func (f *function) ParamTypes() []api.ValueType  { return f.fn.Type.Params }
func (f *function) ResultTypes() []api.ValueType { return f.fn.Type.Results }

// memory implements api.Memory over a *wasm.MemoryInstance.
type memory struct {
	inst *wasm.MemoryInstance
}

var _ api.Memory = (*memory)(nil)

func (m *memory) Size(ctx context.Context) uint32 { return uint32(len(m.inst.Bytes)) }

func (m *memory) ReadByte(ctx context.Context, offset uint32) (byte, bool) {
	if !m.inBounds(offset, 1) {
		return 0, false
	}
	return m.inst.Bytes[offset], true
}

func (m *memory) ReadUint32Le(ctx context.Context, offset uint32) (uint32, bool) {
	if !m.inBounds(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.inst.Bytes[offset:]), true
}

func (m *memory) ReadUint64Le(ctx context.Context, offset uint32) (uint64, bool) {
	if !m.inBounds(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.inst.Bytes[offset:]), true
}

func (m *memory) Read(ctx context.Context, offset, byteCount uint32) ([]byte, bool) {
	if !m.inBounds(offset, byteCount) {
		return nil, false
	}
	return m.inst.Bytes[offset : offset+byteCount : offset+byteCount], true
}

func (m *memory) WriteByte(ctx context.Context, offset uint32, v byte) bool {
	if !m.inBounds(offset, 1) {
		return false
	}
	m.inst.Bytes[offset] = v
	return true
}

func (m *memory) WriteUint32Le(ctx context.Context, offset uint32, v uint32) bool {
	if !m.inBounds(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.inst.Bytes[offset:], v)
	return true
}

func (m *memory) WriteUint64Le(ctx context.Context, offset uint32, v uint64) bool {
	if !m.inBounds(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.inst.Bytes[offset:], v)
	return true
}

func (m *memory) Grow(ctx context.Context, deltaPages uint32) (uint32, bool) {
	return m.inst.Grow(deltaPages)
}

func (m *memory) inBounds(offset, byteCount uint32) bool {
	end := uint64(offset) + uint64(byteCount)
	return end <= uint64(len(m.inst.Bytes))
}

// global implements api.Global over a *wasm.GlobalInstance.
type global struct {
	inst *wasm.GlobalInstance
}

var _ api.Global = (*global)(nil)

func (g *global) Type() api.ValueType { return g.inst.Type.ValType }
func (g *global) Get(ctx context.Context) uint64 { return g.inst.Value }

// mutableGlobal extends global with Set, returned only for globals declared mutable.
type mutableGlobal struct{ global }

var _ api.MutableGlobal = (*mutableGlobal)(nil)

func (g *mutableGlobal) Set(ctx context.Context, v uint64) { g.inst.Value = v }
