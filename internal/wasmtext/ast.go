package wasmtext

import "wrun/internal/wasm"

// IndexRef is a not-yet-resolved reference to an entity in some index-space: either a name ($foo) or a bare
// numeric literal. Exactly one of HasName or the numeric form applies.
type IndexRef struct {
	Name    string
	HasName bool
	Num     wasm.Index
	Line    int
}

// TypeUse is a function signature as written at a use site: `(type $t)` alone, `(type $t)` plus an inline
// signature that must match, or a bare inline signature with no `(type ...)`.
type TypeUse struct {
	Ref          *IndexRef // nil when purely inline.
	Params       []ParamDecl
	Results      []wasm.ValueType
}

// ParamDecl is one named-or-anonymous parameter or local declaration.
type ParamDecl struct {
	Name string
	Type wasm.ValueType
}

// UnresolvedType is a top-level `(type ...)` field.
type UnresolvedType struct {
	ID      string
	Params  []ParamDecl
	Results []wasm.ValueType
}

// TextInstr is one instruction as written in the text format: flat (stack-machine) instructions carry their
// immediates directly; block/loop/if carry a nested Then/Else body.
type TextInstr struct {
	Op   string
	Line int

	Imm []string // raw trailing tokens (index refs, integers, floats, a second type name for select).

	Block *TextBlock
}

// TextBlock is the structured body of a block, loop, or if.
type TextBlock struct {
	LabelName string
	Type      TypeUse
	Then      []TextInstr
	Else      []TextInstr
}

// UnresolvedFunc is a `(func ...)` field (never one declared via `(import ...)`, which is an UnresolvedImport).
type UnresolvedFunc struct {
	ID      string
	TypeUse TypeUse
	Locals  []ParamDecl
	Body    []TextInstr
	Line    int
}

// UnresolvedImport is a top-level `(import "module" "name" (... desc ...))` field.
type UnresolvedImport struct {
	Module, Name string
	FuncID       string
	FuncType     *TypeUse
	TableID      string
	TableType    *wasm.TableType
	MemID        string
	MemType      *wasm.MemoryType
	GlobalID     string
	GlobalType   *wasm.GlobalType
	Line         int
}

// UnresolvedExport is a top-level `(export "name" (func|table|memory|global $ref))` field.
type UnresolvedExport struct {
	Name string
	Kind string // "func", "table", "memory", "global"
	Ref  IndexRef
	Line int
}

// UnresolvedGlobal is a `(global ...)` field (module-defined, not imported).
type UnresolvedGlobal struct {
	ID      string
	Type    wasm.GlobalType
	Init    []TextInstr
	Line    int
}

// UnresolvedTable and UnresolvedMemory are module-defined (not imported) table/memory fields.
type UnresolvedTable struct {
	ID   string
	Type wasm.TableType
}

type UnresolvedMemory struct {
	ID   string
	Type wasm.MemoryType
}

// UnresolvedElem and UnresolvedData mirror the binary format's element/data segments, indexed by name or number.
type UnresolvedElem struct {
	Mode       wasm.ElementMode
	TableRef   *IndexRef
	Offset     []TextInstr
	RefType    wasm.ValueType
	FuncRefs   []IndexRef
	Line       int
}

type UnresolvedData struct {
	Mode     wasm.DataMode
	MemRef   *IndexRef
	Offset   []TextInstr
	Bytes    []byte
	Line     int
}

// UnresolvedModule is the parser's output: a module tree with named and numeric references still unresolved.
type UnresolvedModule struct {
	ID string // optional module name, `(module $name ...)`.

	Types   []*UnresolvedType
	Imports []*UnresolvedImport
	Funcs   []*UnresolvedFunc
	Tables  []*UnresolvedTable
	Memories []*UnresolvedMemory
	Globals []*UnresolvedGlobal
	Exports []*UnresolvedExport
	Start   *IndexRef
	Elems   []*UnresolvedElem
	Datas   []*UnresolvedData
}
