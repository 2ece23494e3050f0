package wasm

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"wrun/api"
	"wrun/internal/wasmerr"
)

// Index is a resolved, in-range numeric index into one of a module's index-spaces (Type, Func, Table, Memory,
// Global, Elem, Data, Local, Label). Name-carrying indices only exist transiently in the text format's own AST;
// by the time a *Module exists, every Index here is numeric and, once resolved, guaranteed in-range.
type Index = uint32

// SectionID identifies a binary module section, also used to label decode/validate errors by phase.
type SectionID byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
	SectionIDDataCount
)

// SectionIDName returns the text-format section name, or "unknown".
func SectionIDName(id SectionID) string {
	switch id {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	case SectionIDDataCount:
		return "data count"
	default:
		return "unknown"
	}
}

// Import is a single imported entity. Exactly one Desc* field is meaningful, selected by Type.
type Import struct {
	Module, Name string
	Type         api.ExternType

	DescFunc   Index // index into the module's TypeSection.
	DescTable  *TableType
	DescMem    *MemoryType
	DescGlobal *GlobalType
}

// Export is a single named export, resolved to a module-local index in the index-space given by Type.
type Export struct {
	Name  string
	Type  api.ExternType
	Index Index
}

// Global is a module-defined (non-imported) global: its type and constant initializer.
type Global struct {
	Type *GlobalType
	Init ConstExpr
}

// ElementMode distinguishes the three element-segment forms.
type ElementMode byte

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// ElementSegment initializes a range of a table (active), or stages references for table.init (passive), or
// exists only to pre-declare a function reference as used (declarative).
type ElementSegment struct {
	Mode       ElementMode
	TableIndex Index // active only.
	Offset     ConstExpr
	RefType    ValueType
	Init       []ConstExpr // one const expr per element, each producing a single reference.
}

// DataMode distinguishes the two data-segment forms.
type DataMode byte

const (
	DataModeActive DataMode = iota
	DataModePassive
)

// DataSegment initializes a range of memory (active) or stages bytes for memory.init (passive).
type DataSegment struct {
	Mode      DataMode
	MemIndex  Index // active only.
	Offset    ConstExpr
	Init      []byte
}

// ID content-addresses a module from its canonical source bytes.
type ID [sha256.Size]byte

// Module is the pre-instantiation, already-resolved representation of a WebAssembly module: vectors of type,
// import, function, table, memory, global, export, element and data fields, plus an optional start function.
type Module struct {
	TypeSection     []*FunctionType
	ImportSection   []*Import
	FunctionSection []Index // TypeSection indices, one per module-defined function, parallel to CodeSection.
	TableSection    []*TableType
	MemorySection   []*MemoryType
	GlobalSection   []*Global
	ExportSection   map[string]*Export
	StartSection    *Index
	ElementSection  []*ElementSegment
	CodeSection     []*Code
	DataSection     []*DataSegment
	DataCountSection *uint32

	ID   ID
	Name string

	// FunctionNames maps a function index (covering both imported and module-defined functions) to its debug
	// name, decoded from the binary format's "name" custom section when present. Indices with no entry have
	// no recorded debug name.
	FunctionNames map[Index]string
}

// FunctionName returns idx's debug name and true if the module's name section recorded one, or ("", false)
// otherwise.
func (m *Module) FunctionName(idx Index) (string, bool) {
	name, ok := m.FunctionNames[idx]
	return name, ok
}

// FuncRef renders a function index for a diagnostic message, appending its debug name in parentheses when the
// name section recorded one (e.g. "3 ($add)"), or just the bare index otherwise.
func (m *Module) FuncRef(idx Index) string {
	if name, ok := m.FunctionName(idx); ok {
		return fmt.Sprintf("%d ($%s)", idx, name)
	}
	return strconv.FormatUint(uint64(idx), 10)
}

// NewID derives a Module's content-addressed ID from its canonical (already-resolved) source bytes.
func NewID(b []byte) ID { return sha256.Sum256(b) }

// ImportedFunctionCount returns the number of function imports, which occupy the low indices of the function
// index-space ahead of every module-defined function.
func (m *Module) ImportedFunctionCount() int {
	n := 0
	for _, imp := range m.ImportSection {
		if imp.Type == api.ExternTypeFunc {
			n++
		}
	}
	return n
}

// ImportedTableCount, ImportedMemoryCount, ImportedGlobalCount mirror ImportedFunctionCount for their spaces.
func (m *Module) ImportedTableCount() int  { return m.countImports(api.ExternTypeTable) }
func (m *Module) ImportedMemoryCount() int { return m.countImports(api.ExternTypeMemory) }
func (m *Module) ImportedGlobalCount() int { return m.countImports(api.ExternTypeGlobal) }

func (m *Module) countImports(t api.ExternType) int {
	n := 0
	for _, imp := range m.ImportSection {
		if imp.Type == t {
			n++
		}
	}
	return n
}

// TypeOfFunction returns the FunctionType of the funcIdx'th entry of the function index-space (imports first,
// then module-defined functions), or nil if funcIdx is out of range.
func (m *Module) TypeOfFunction(funcIdx Index) *FunctionType {
	imported := 0
	for _, imp := range m.ImportSection {
		if imp.Type != api.ExternTypeFunc {
			continue
		}
		if Index(imported) == funcIdx {
			return m.typeAt(imp.DescFunc)
		}
		imported++
	}
	defIdx := int(funcIdx) - imported
	if defIdx < 0 || defIdx >= len(m.FunctionSection) {
		return nil
	}
	return m.typeAt(m.FunctionSection[defIdx])
}

func (m *Module) typeAt(idx Index) *FunctionType {
	if int(idx) >= len(m.TypeSection) {
		return nil
	}
	return m.TypeSection[idx]
}

// TypeAt returns the idx'th entry of the type section directly (used for call_indirect's declared type,
// which names a type-section index rather than a function index).
func (m *Module) TypeAt(idx Index) *FunctionType { return m.typeAt(idx) }

// GlobalTypeOf returns the GlobalType of the globalIdx'th entry of the global index-space (imports first),
// or nil if out of range.
func (m *Module) GlobalTypeOf(globalIdx Index) *GlobalType {
	imported := 0
	for _, imp := range m.ImportSection {
		if imp.Type != api.ExternTypeGlobal {
			continue
		}
		if Index(imported) == globalIdx {
			return imp.DescGlobal
		}
		imported++
	}
	defIdx := int(globalIdx) - imported
	if defIdx < 0 || defIdx >= len(m.GlobalSection) {
		return nil
	}
	return m.GlobalSection[defIdx].Type
}

// TableTypeOf returns the TableType of the tableIdx'th entry of the table index-space (imports first), or nil
// if out of range.
func (m *Module) TableTypeOf(tableIdx Index) *TableType {
	imported := 0
	for _, imp := range m.ImportSection {
		if imp.Type != api.ExternTypeTable {
			continue
		}
		if Index(imported) == tableIdx {
			return imp.DescTable
		}
		imported++
	}
	defIdx := int(tableIdx) - imported
	if defIdx < 0 || defIdx >= len(m.TableSection) {
		return nil
	}
	return m.TableSection[defIdx]
}

// HasMemory reports whether the module has any memory (imported or defined) at index 0.
func (m *Module) HasMemory() bool {
	return m.ImportedMemoryCount()+len(m.MemorySection) > 0
}

// validateStartSection checks that, if present, the start function takes no parameters and returns no results.
func (m *Module) validateStartSection() error {
	if m.StartSection == nil {
		return nil
	}
	ft := m.TypeOfFunction(*m.StartSection)
	if ft == nil {
		return wasmerr.Newf(wasmerr.KindValidate, "start function %d has no type", *m.StartSection)
	}
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		return wasmerr.Newf(wasmerr.KindValidate, "start function must have type %s, but has %s", "null_null", ft)
	}
	return nil
}

// Validate runs the module-wide structural checks that don't require per-function validation: in-range
// indices for start/exports, and well-formed start signature. Per-function body validation is the
// responsibility of the validate package, run once per CodeSection entry.
func (m *Module) Validate(enabled Features) error {
	if err := m.validateStartSection(); err != nil {
		return err
	}
	funcCount := m.ImportedFunctionCount() + len(m.FunctionSection)
	for _, exp := range m.ExportSection {
		var max int
		switch exp.Type {
		case api.ExternTypeFunc:
			max = funcCount
		case api.ExternTypeTable:
			max = m.ImportedTableCount() + len(m.TableSection)
		case api.ExternTypeMemory:
			max = m.ImportedMemoryCount() + len(m.MemorySection)
		case api.ExternTypeGlobal:
			max = m.ImportedGlobalCount() + len(m.GlobalSection)
		default:
			return wasmerr.Newf(wasmerr.KindValidate, "invalid export type: %#x", exp.Type)
		}
		if int(exp.Index) >= max {
			return wasmerr.Newf(wasmerr.KindValidate, "export %q: index %d out of range", exp.Name, exp.Index)
		}
	}
	if len(m.TableSection)+m.ImportedTableCount() > 1 && !enabled.Get(FeatureReferenceTypes) {
		return wasmerr.Newf(wasmerr.KindValidate, "at most one table allowed in module, but read %d",
			len(m.TableSection)+m.ImportedTableCount())
	}
	if len(m.MemorySection)+m.ImportedMemoryCount() > 1 {
		return wasmerr.Newf(wasmerr.KindValidate, "at most one memory allowed in module, but read %d",
			len(m.MemorySection)+m.ImportedMemoryCount())
	}
	return nil
}
