package wasmtext

import (
	"wrun/api"
	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

// Resolve converts a parsed UnresolvedModule into a *wasm.Module: every name is replaced by the numeric index
// it refers to in the appropriate index-space, TypeUses are normalized to a concrete type-section index, and
// instruction trees are translated into the same wasm.UnresolvedInstr shape the binary decoder produces (so
// both front ends feed the same validator/emitter).
func Resolve(um *UnresolvedModule) (*wasm.Module, error) {
	r := &resolver{
		um:          um,
		typeByName:  map[string]wasm.Index{},
		funcByName:  map[string]wasm.Index{},
		tableByName: map[string]wasm.Index{},
		memByName:   map[string]wasm.Index{},
		globalByName: map[string]wasm.Index{},
		dataByName:  map[string]wasm.Index{},
		elemByName:  map[string]wasm.Index{},
	}
	return r.resolve()
}

type resolver struct {
	um *UnresolvedModule
	m  wasm.Module

	typeByName   map[string]wasm.Index
	funcByName   map[string]wasm.Index
	tableByName  map[string]wasm.Index
	memByName    map[string]wasm.Index
	globalByName map[string]wasm.Index
	dataByName   map[string]wasm.Index
	elemByName   map[string]wasm.Index
}

func (r *resolver) resolve() (*wasm.Module, error) {
	r.m.ExportSection = map[string]*wasm.Export{}

	for i, t := range r.um.Types {
		if t.ID != "" {
			r.typeByName[t.ID] = wasm.Index(i)
		}
		r.m.TypeSection = append(r.m.TypeSection, &wasm.FunctionType{Params: paramTypes(t.Params), Results: t.Results})
	}

	// Imports first, in declaration order, contributing the low indices of each space (the invariant the
	// data model requires: import fields precede any definition field in the same index-space).
	for _, imp := range r.um.Imports {
		wi := &wasm.Import{Module: imp.Module, Name: imp.Name}
		switch {
		case imp.FuncType != nil:
			wi.Type = api.ExternTypeFunc
			idx, err := r.typeUseIndex(*imp.FuncType)
			if err != nil {
				return nil, err
			}
			wi.DescFunc = idx
			if imp.FuncID != "" {
				r.funcByName[imp.FuncID] = wasm.Index(len(r.m.ImportSection)) // placeholder; fixed below
			}
		case imp.TableType != nil:
			wi.Type = api.ExternTypeTable
			wi.DescTable = imp.TableType
		case imp.MemType != nil:
			wi.Type = api.ExternTypeMemory
			wi.DescMem = imp.MemType
		case imp.GlobalType != nil:
			wi.Type = api.ExternTypeGlobal
			wi.DescGlobal = imp.GlobalType
		}
		r.m.ImportSection = append(r.m.ImportSection, wi)
	}
	// Now that all imports are appended, assign stable name->index within each space.
	funcIdx, tableIdx, memIdx, globalIdx := wasm.Index(0), wasm.Index(0), wasm.Index(0), wasm.Index(0)
	for _, imp := range r.um.Imports {
		switch {
		case imp.FuncType != nil:
			if imp.FuncID != "" {
				r.funcByName[imp.FuncID] = funcIdx
			}
			funcIdx++
		case imp.TableType != nil:
			if imp.TableID != "" {
				r.tableByName[imp.TableID] = tableIdx
			}
			tableIdx++
		case imp.MemType != nil:
			if imp.MemID != "" {
				r.memByName[imp.MemID] = memIdx
			}
			memIdx++
		case imp.GlobalType != nil:
			if imp.GlobalID != "" {
				r.globalByName[imp.GlobalID] = globalIdx
			}
			globalIdx++
		}
	}

	for i, f := range r.um.Funcs {
		if f.ID != "" {
			r.funcByName[f.ID] = funcIdx + wasm.Index(i)
		}
	}
	for i, t := range r.um.Tables {
		if t.ID != "" {
			r.tableByName[t.ID] = tableIdx + wasm.Index(i)
		}
	}
	for i, mem := range r.um.Memories {
		if mem.ID != "" {
			r.memByName[mem.ID] = memIdx + wasm.Index(i)
		}
	}
	for i, g := range r.um.Globals {
		if g.ID != "" {
			r.globalByName[g.ID] = globalIdx + wasm.Index(i)
		}
	}

	for _, t := range r.um.Tables {
		tt := t.Type
		r.m.TableSection = append(r.m.TableSection, &tt)
	}
	for _, mem := range r.um.Memories {
		mt := mem.Type
		r.m.MemorySection = append(r.m.MemorySection, &mt)
	}

	for _, g := range r.um.Globals {
		init, err := r.resolveConstExpr(g.Init)
		if err != nil {
			return nil, err
		}
		gt := g.Type
		r.m.GlobalSection = append(r.m.GlobalSection, &wasm.Global{Type: &gt, Init: init})
	}

	for _, f := range r.um.Funcs {
		typeIdx, err := r.typeUseIndex(f.TypeUse)
		if err != nil {
			return nil, err
		}
		r.m.FunctionSection = append(r.m.FunctionSection, typeIdx)

		localNames := map[string]wasm.Index{}
		var n wasm.Index
		for _, p := range f.TypeUse.Params {
			if p.Name != "" {
				localNames[p.Name] = n
			}
			n++
		}
		var localTypes []wasm.ValueType
		for _, l := range f.Locals {
			if l.Name != "" {
				localNames[l.Name] = n
			}
			n++
			localTypes = append(localTypes, l.Type)
		}
		body, err := r.resolveInstrs(f.Body, localNames, nil)
		if err != nil {
			return nil, err
		}
		r.m.CodeSection = append(r.m.CodeSection, &wasm.Code{LocalTypes: localTypes, Uncompiled: body})
	}

	for _, e := range r.um.Exports {
		idx, err := r.exportIndex(e)
		if err != nil {
			return nil, err
		}
		if _, dup := r.m.ExportSection[e.Name]; dup {
			return nil, wasmerr.Newf(wasmerr.KindResolve, "duplicate export name: %q", e.Name)
		}
		r.m.ExportSection[e.Name] = &wasm.Export{Name: e.Name, Type: exportKind(e.Kind), Index: idx}
	}

	if r.um.Start != nil {
		idx, err := r.index(r.funcByName, *r.um.Start, "func")
		if err != nil {
			return nil, err
		}
		r.m.StartSection = &idx
	}

	for _, e := range r.um.Elems {
		seg := &wasm.ElementSegment{Mode: e.Mode, RefType: e.RefType}
		if e.Mode == wasm.ElementModeActive {
			off, err := r.resolveConstExpr(e.Offset)
			if err != nil {
				return nil, err
			}
			seg.Offset = off
			if e.TableRef != nil {
				idx, err := r.index(r.tableByName, *e.TableRef, "table")
				if err != nil {
					return nil, err
				}
				seg.TableIndex = idx
			}
		}
		for _, fr := range e.FuncRefs {
			idx, err := r.index(r.funcByName, fr, "func")
			if err != nil {
				return nil, err
			}
			seg.Init = append(seg.Init, wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{{Op: wasm.OpRefFunc, FuncIndex: idx}}})
		}
		r.m.ElementSection = append(r.m.ElementSection, seg)
	}

	for _, d := range r.um.Datas {
		seg := &wasm.DataSegment{Mode: d.Mode, Init: d.Bytes}
		if d.Mode == wasm.DataModeActive {
			off, err := r.resolveConstExpr(d.Offset)
			if err != nil {
				return nil, err
			}
			seg.Offset = off
			if d.MemRef != nil {
				idx, err := r.index(r.memByName, *d.MemRef, "memory")
				if err != nil {
					return nil, err
				}
				seg.MemIndex = idx
			}
		}
		r.m.DataSection = append(r.m.DataSection, seg)
	}

	r.m.Name = r.um.ID
	return &r.m, nil
}

func paramTypes(params []ParamDecl) []wasm.ValueType {
	if len(params) == 0 {
		return nil
	}
	out := make([]wasm.ValueType, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

func exportKind(k string) api.ExternType {
	switch k {
	case "func":
		return api.ExternTypeFunc
	case "table":
		return api.ExternTypeTable
	case "memory":
		return api.ExternTypeMemory
	case "global":
		return api.ExternTypeGlobal
	}
	return 0xff
}

func (r *resolver) exportIndex(e *UnresolvedExport) (wasm.Index, error) {
	switch e.Kind {
	case "func":
		return r.index(r.funcByName, e.Ref, "func")
	case "table":
		return r.index(r.tableByName, e.Ref, "table")
	case "memory":
		return r.index(r.memByName, e.Ref, "memory")
	case "global":
		return r.index(r.globalByName, e.Ref, "global")
	}
	return 0, wasmerr.Newf(wasmerr.KindResolve, "line %d: unknown export kind %q", e.Line, e.Kind)
}

// index resolves ref against the given name table, or passes a numeric ref through unchanged.
func (r *resolver) index(names map[string]wasm.Index, ref IndexRef, space string) (wasm.Index, error) {
	if !ref.HasName {
		return ref.Num, nil
	}
	idx, ok := names[ref.Name]
	if !ok {
		return 0, wasmerr.Newf(wasmerr.KindResolve, "line %d: unresolved %s index %q", ref.Line, space, ref.Name)
	}
	return idx, nil
}

// typeUseIndex normalizes a TypeUse to a concrete TypeSection index, interning a fresh anonymous type if the
// signature is purely inline and no existing type matches.
func (r *resolver) typeUseIndex(tu TypeUse) (wasm.Index, error) {
	if tu.Ref != nil {
		idx, err := r.index(r.typeByName, *tu.Ref, "type")
		if err != nil {
			return 0, err
		}
		if len(tu.Params) > 0 || len(tu.Results) > 0 {
			if int(idx) >= len(r.m.TypeSection) {
				return 0, wasmerr.Newf(wasmerr.KindResolve, "type index %d out of range", idx)
			}
			want := &wasm.FunctionType{Params: paramTypes(tu.Params), Results: tu.Results}
			if !want.EqualsSignature(r.m.TypeSection[idx]) {
				return 0, wasmerr.Newf(wasmerr.KindResolve,
					"inline type does not match referenced type %d", idx)
			}
		}
		return idx, nil
	}
	want := &wasm.FunctionType{Params: paramTypes(tu.Params), Results: tu.Results}
	for i, existing := range r.m.TypeSection {
		if want.EqualsSignature(existing) {
			return wasm.Index(i), nil
		}
	}
	r.m.TypeSection = append(r.m.TypeSection, want)
	return wasm.Index(len(r.m.TypeSection) - 1), nil
}

func (r *resolver) resolveConstExpr(in []TextInstr) (wasm.ConstExpr, error) {
	instrs, err := r.resolveInstrs(in, nil, nil)
	if err != nil {
		return wasm.ConstExpr{}, err
	}
	return wasm.ConstExpr{Instrs: instrs}, nil
}

// resolveInstrs converts a flat []TextInstr into []wasm.UnresolvedInstr, given the enclosing function's local
// name table and the current label-name stack (innermost last).
func (r *resolver) resolveInstrs(in []TextInstr, locals map[string]wasm.Index, labels []string) ([]wasm.UnresolvedInstr, error) {
	out := make([]wasm.UnresolvedInstr, 0, len(in))
	for _, ti := range in {
		wi, err := r.resolveInstr(ti, locals, labels)
		if err != nil {
			return nil, err
		}
		out = append(out, wi)
	}
	return out, nil
}

func (r *resolver) labelDepth(ref IndexRef, labels []string) (wasm.Index, error) {
	if !ref.HasName {
		return ref.Num, nil
	}
	for depth, name := range reverse(labels) {
		if name == ref.Name {
			return wasm.Index(depth), nil
		}
	}
	return 0, wasmerr.Newf(wasmerr.KindResolve, "line %d: unresolved label %q", ref.Line, ref.Name)
}

func reverse(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

func (r *resolver) resolveInstr(ti TextInstr, locals map[string]wasm.Index, labels []string) (wasm.UnresolvedInstr, error) {
	if ti.Block != nil {
		return r.resolveBlockInstr(ti, locals, labels)
	}
	op, ok := opcodeByName[ti.Op]
	if !ok {
		return wasm.UnresolvedInstr{}, wasmerr.Newf(wasmerr.KindResolve, "line %d: unknown instruction %q", ti.Line, ti.Op)
	}
	wi := wasm.UnresolvedInstr{Op: op}
	switch opcodeImmKind(op) {
	case immNone:
	case immLocal:
		idx, err := r.immIndex(ti, locals, 0)
		if err != nil {
			return wi, err
		}
		wi.LocalIndex = idx
	case immGlobal:
		idx, err := r.namedImm(ti, r.globalByName, 0)
		if err != nil {
			return wi, err
		}
		wi.GlobalIndex = idx
	case immFunc:
		idx, err := r.namedImm(ti, r.funcByName, 0)
		if err != nil {
			return wi, err
		}
		wi.FuncIndex = idx
	case immTable:
		idx, err := r.namedImm(ti, r.tableByName, 0)
		if err != nil {
			return wi, err
		}
		wi.TableIndex = idx
	case immMemArg:
		align, offset, err := parseMemArg(ti.Imm)
		if err != nil {
			return wi, err
		}
		wi.MemArgAlign, wi.MemArgOffset = align, offset
	case immI32:
		v, err := parseIntImm(ti)
		if err != nil {
			return wi, err
		}
		wi.I32 = int32(v)
	case immI64:
		v, err := parseIntImm(ti)
		if err != nil {
			return wi, err
		}
		wi.I64 = v
	case immF32:
		_, _, f, _, err := ParseNumber(firstImm(ti))
		if err != nil {
			return wi, err
		}
		wi.F32 = float32(f)
	case immF64:
		_, _, f, _, err := ParseNumber(firstImm(ti))
		if err != nil {
			return wi, err
		}
		wi.F64 = f
	case immBrLabel:
		if len(ti.Imm) == 0 {
			return wi, wasmerr.Newf(wasmerr.KindResolve, "line %d: %s requires a label", ti.Line, ti.Op)
		}
		ref := textImmToRef(ti.Imm[0], ti.Line)
		depth, err := r.labelDepth(ref, labels)
		if err != nil {
			return wi, err
		}
		wi.Labels = []wasm.Index{depth}
	case immBrTable:
		depths := make([]wasm.Index, len(ti.Imm))
		for i, s := range ti.Imm {
			ref := textImmToRef(s, ti.Line)
			d, err := r.labelDepth(ref, labels)
			if err != nil {
				return wi, err
			}
			depths[i] = d
		}
		wi.Labels = depths
	case immRefType:
		vt, ok := valueTypeByName(firstImm(ti))
		if !ok {
			return wi, wasmerr.Newf(wasmerr.KindResolve, "line %d: invalid reftype %q", ti.Line, firstImm(ti))
		}
		wi.RefType = vt
	case immCallIndirect:
		// Imm carries what parseCallIndirect recorded: the numeric/ID type reference from (type $t), followed
		// optionally by a table index.
		if len(ti.Imm) == 0 {
			return wi, wasmerr.Newf(wasmerr.KindResolve, "line %d: call_indirect requires a type", ti.Line)
		}
		typeIdx, err := r.index(r.typeByName, textImmToRef(ti.Imm[0], ti.Line), "type")
		if err != nil {
			return wi, err
		}
		wi.TypeIndex = typeIdx
		if len(ti.Imm) > 1 {
			idx, err := r.index(r.tableByName, textImmToRef(ti.Imm[1], ti.Line), "table")
			if err != nil {
				return wi, err
			}
			wi.TableIndex = idx
		}
	case immDataIdx:
		idx, err := r.namedImm(ti, r.dataByName, 0)
		if err != nil {
			return wi, err
		}
		wi.DataIndex = idx
	case immElemIdx:
		idx, err := r.namedImm(ti, r.elemByName, 0)
		if err != nil {
			return wi, err
		}
		wi.ElemIndex = idx
	case immElemTable:
		elemIdx, err := r.namedImm(ti, r.elemByName, 0)
		if err != nil {
			return wi, err
		}
		wi.ElemIndex = elemIdx
		if len(ti.Imm) > 1 {
			tableIdx, err := r.namedImm(ti, r.tableByName, 1)
			if err != nil {
				return wi, err
			}
			wi.TableIndex = tableIdx
		}
	case immTableTable:
		dst, err := r.namedImm(ti, r.tableByName, 0)
		if err != nil {
			return wi, err
		}
		wi.TableIndex = dst
		if len(ti.Imm) > 1 {
			src, err := r.namedImm(ti, r.tableByName, 1)
			if err != nil {
				return wi, err
			}
			wi.TableIndex2 = src
		}
	}
	return wi, nil
}

func firstImm(ti TextInstr) string {
	if len(ti.Imm) == 0 {
		return ""
	}
	return ti.Imm[0]
}

func textImmToRef(s string, line int) IndexRef {
	if len(s) > 0 && s[0] == '$' {
		return IndexRef{Name: s, HasName: true, Line: line}
	}
	_, u, _, _, err := ParseNumber(s)
	if err != nil {
		return IndexRef{Name: s, HasName: true, Line: line}
	}
	return IndexRef{Num: wasm.Index(u), Line: line}
}

func (r *resolver) immIndex(ti TextInstr, locals map[string]wasm.Index, at int) (wasm.Index, error) {
	if at >= len(ti.Imm) {
		return 0, wasmerr.Newf(wasmerr.KindResolve, "line %d: %s requires an index", ti.Line, ti.Op)
	}
	ref := textImmToRef(ti.Imm[at], ti.Line)
	if !ref.HasName {
		return ref.Num, nil
	}
	idx, ok := locals[ref.Name]
	if !ok {
		return 0, wasmerr.Newf(wasmerr.KindResolve, "line %d: unresolved local index %q", ti.Line, ref.Name)
	}
	return idx, nil
}

func (r *resolver) namedImm(ti TextInstr, names map[string]wasm.Index, at int) (wasm.Index, error) {
	if at >= len(ti.Imm) {
		return 0, wasmerr.Newf(wasmerr.KindResolve, "line %d: %s requires an index", ti.Line, ti.Op)
	}
	return r.index(names, textImmToRef(ti.Imm[at], ti.Line), "")
}

func parseIntImm(ti TextInstr) (int64, error) {
	if len(ti.Imm) == 0 {
		return 0, wasmerr.Newf(wasmerr.KindResolve, "line %d: %s requires an immediate", ti.Line, ti.Op)
	}
	v, _, _, _, err := ParseNumber(ti.Imm[0])
	return v, err
}

func parseMemArg(imm []string) (align, offset uint32, err error) {
	for _, s := range imm {
		switch {
		case len(s) > 7 && s[:7] == "offset=":
			_, v, _, _, e := ParseNumber(s[7:])
			if e != nil {
				return 0, 0, e
			}
			offset = uint32(v)
		case len(s) > 6 && s[:6] == "align=":
			_, v, _, _, e := ParseNumber(s[6:])
			if e != nil {
				return 0, 0, e
			}
			align = uint32(v)
		}
	}
	return align, offset, nil
}

func (r *resolver) resolveBlockInstr(ti TextInstr, locals map[string]wasm.Index, labels []string) (wasm.UnresolvedInstr, error) {
	blk := ti.Block
	typeIdx, hasIdx, bt, err := r.resolveBlockType(blk.Type)
	if err != nil {
		return wasm.UnresolvedInstr{}, err
	}
	innerLabels := append(append([]string{}, labels...), blk.LabelName)
	then, err := r.resolveInstrs(blk.Then, locals, innerLabels)
	if err != nil {
		return wasm.UnresolvedInstr{}, err
	}
	var els []wasm.UnresolvedInstr
	if ti.Op == "if" && blk.Else != nil {
		els, err = r.resolveInstrs(blk.Else, locals, innerLabels)
		if err != nil {
			return wasm.UnresolvedInstr{}, err
		}
	}
	op := map[string]wasm.Opcode{"block": wasm.OpBlock, "loop": wasm.OpLoop, "if": wasm.OpIf}[ti.Op]
	return wasm.UnresolvedInstr{
		Op: op,
		Block: &wasm.UnresolvedBlock{
			Type: bt, HasTypeIndex: hasIdx, TypeIndex: typeIdx,
			Then: then, Else: els, LabelName: blk.LabelName,
		},
	}, nil
}

func (r *resolver) resolveBlockType(tu TypeUse) (typeIdx wasm.Index, hasIdx bool, bt wasm.BlockType, err error) {
	if tu.Ref == nil && len(tu.Params) == 0 && len(tu.Results) <= 1 {
		return 0, false, wasm.BlockType{Results: tu.Results}, nil
	}
	idx, err := r.typeUseIndex(tu)
	if err != nil {
		return 0, false, wasm.BlockType{}, err
	}
	return idx, true, wasm.BlockType{}, nil
}
