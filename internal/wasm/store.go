package wasm

import "sync"

// FunctionAddr, TableAddr, MemoryAddr, GlobalAddr, ElementAddr and DataAddr are newtyped indices into a
// Store's parallel instance vectors. Each is a distinct Go type so a value from one vector can never be
// passed, by the compiler's own accounting, where another is expected.
type (
	FunctionAddr uint32
	TableAddr    uint32
	MemoryAddr   uint32
	GlobalAddr   uint32
	ElementAddr  uint32
	DataAddr     uint32
)

// FunctionInstance is an allocated function: its type, the module instance it closes over for resolving its
// own module-relative indices, its declared local types (beyond parameters), and its compiled bytecode body.
// HostFn is set instead of Body for functions backed by a Go closure rather than WebAssembly bytecode.
type FunctionInstance struct {
	Type       *FunctionType
	Module     *ModuleInstance
	LocalTypes []ValueType
	Body       []byte

	HostFn func(ctx *HostContext, params []uint64) ([]uint64, error)
	Name   string // for diagnostics; not the export name.
}

// HostContext is the minimal handle passed to a host function, giving it access to the calling module
// instance's memory without exposing the interpreter's internal stack machinery.
type HostContext struct {
	Module *ModuleInstance
}

// TableInstance is an allocated table: its declared type and a vector of references sized by the type's
// lower limit, growable up to its upper limit (or MaxTableSize if unbounded).
type TableInstance struct {
	Type  TableType
	Refs  []Reference
}

// MaxTableSize bounds an unbounded table's growth, matching the practical ceiling most engines apply.
const MaxTableSize = 10000000

// Reference is a table or local/global value of reference type: either null (tagged with its type) or a
// resolved address into the Store (a FunctionAddr for funcref) or an opaque host value (for externref).
type Reference struct {
	IsNull  bool
	Type    ValueType
	Func    FunctionAddr
	Extern  interface{}
}

// NullReference constructs the null reference of the given type.
func NullReference(t ValueType) Reference { return Reference{IsNull: true, Type: t} }

// MemoryInstance is an allocated memory: its declared type and a byte vector whose length is always a
// multiple of PageSize.
type MemoryInstance struct {
	Type  MemoryType
	Bytes []byte
}

// PageCount returns the current size of the memory in pages.
func (m *MemoryInstance) PageCount() uint32 { return uint32(len(m.Bytes) / PageSize) }

// Grow grows the memory by delta pages, returning the previous page count, or false if the growth would
// exceed the memory's maximum (or the 4GiB address space).
func (m *MemoryInstance) Grow(delta uint32) (previous uint32, ok bool) {
	previous = m.PageCount()
	next := previous + delta
	if delta != 0 && next < previous {
		return previous, false // overflow
	}
	if m.Type.Limits.Max != nil && next > *m.Type.Limits.Max {
		return previous, false
	}
	const maxPages = (1 << 32) / PageSize
	if next > maxPages {
		return previous, false
	}
	grown := make([]byte, next*PageSize)
	copy(grown, m.Bytes)
	m.Bytes = grown
	return previous, true
}

// GlobalInstance is an allocated global: its declared type and current value, encoded the same as a function
// result (EncodeI32/EncodeF64/... from the api package).
type GlobalInstance struct {
	Type  GlobalType
	Value uint64
	Ref   Reference // meaningful only when Type.ValType is a reference type.
}

// ElementInstance is an allocated passive (or declarative) element segment: a boxed slice of references,
// emptied in place by elem.drop.
type ElementInstance struct {
	RefType ValueType
	Refs    []Reference
}

// DataInstance is an allocated passive data segment: a boxed byte slice, emptied in place by data.drop.
type DataInstance struct {
	Bytes []byte
}

// Store owns every instance allocated across every module instantiated against it. Addresses are stable for
// the Store's lifetime; entries are never compacted, only (for element/data) emptied in place.
type Store struct {
	mu sync.RWMutex

	Functions []*FunctionInstance
	Tables    []*TableInstance
	Memories  []*MemoryInstance
	Globals   []*GlobalInstance
	Elements  []*ElementInstance
	Data      []*DataInstance

	Features Features
}

// NewStore constructs an empty Store gated by the given feature set.
func NewStore(features Features) *Store {
	return &Store{Features: features}
}

func (s *Store) AllocateFunction(f *FunctionInstance) FunctionAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Functions = append(s.Functions, f)
	return FunctionAddr(len(s.Functions) - 1)
}

func (s *Store) AllocateTable(t *TableInstance) TableAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tables = append(s.Tables, t)
	return TableAddr(len(s.Tables) - 1)
}

func (s *Store) AllocateMemory(m *MemoryInstance) MemoryAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Memories = append(s.Memories, m)
	return MemoryAddr(len(s.Memories) - 1)
}

func (s *Store) AllocateGlobal(g *GlobalInstance) GlobalAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Globals = append(s.Globals, g)
	return GlobalAddr(len(s.Globals) - 1)
}

func (s *Store) AllocateElement(e *ElementInstance) ElementAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Elements = append(s.Elements, e)
	return ElementAddr(len(s.Elements) - 1)
}

func (s *Store) AllocateData(d *DataInstance) DataAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Data = append(s.Data, d)
	return DataAddr(len(s.Data) - 1)
}

func (s *Store) Function(a FunctionAddr) *FunctionInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Functions[a]
}

func (s *Store) Table(a TableAddr) *TableInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Tables[a]
}

func (s *Store) Memory(a MemoryAddr) *MemoryInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Memories[a]
}

func (s *Store) Global(a GlobalAddr) *GlobalInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Globals[a]
}

func (s *Store) Element(a ElementAddr) *ElementInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Elements[a]
}

func (s *Store) DataSeg(a DataAddr) *DataInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Data[a]
}
