package wasmbin

import (
	"bytes"
	"io"

	"wrun/api"
	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

func (d *decoder) decodeTypeSection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading type count")
	}
	for i := uint32(0); i < n; i++ {
		form, err := r.ReadByte()
		if err != nil || form != 0x60 {
			return wasmerr.Newf(wasmerr.KindParse, "invalid functype form: %#x", form)
		}
		params, err := readValueTypeVec(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading params")
		}
		results, err := readValueTypeVec(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading results")
		}
		d.m.TypeSection = append(d.m.TypeSection, &wasm.FunctionType{Params: params, Results: results})
	}
	return nil
}

func readValueTypeVec(r *bytes.Reader) ([]wasm.ValueType, error) {
	n, err := readVarU32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]wasm.ValueType, n)
	for i := range out {
		v, err := readValueType(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *decoder) decodeImportSection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading import count")
	}
	for i := uint32(0); i < n; i++ {
		mod, err := readName(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading import module name")
		}
		name, err := readName(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading import name")
		}
		kind, err := r.ReadByte()
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		imp := &wasm.Import{Module: mod, Name: name, Type: api.ExternType(kind)}
		switch kind {
		case api.ExternTypeFunc:
			imp.DescFunc, err = readVarU32(r)
		case api.ExternTypeTable:
			var rt wasm.ValueType
			rt, err = readValueType(r)
			if err == nil {
				var lim wasm.Limits
				lim, err = readLimits(r)
				imp.DescTable = &wasm.TableType{RefType: rt, Limits: lim}
			}
		case api.ExternTypeMemory:
			var lim wasm.Limits
			lim, err = readLimits(r)
			imp.DescMem = &wasm.MemoryType{Limits: lim}
		case api.ExternTypeGlobal:
			var vt wasm.ValueType
			vt, err = readValueType(r)
			if err == nil {
				var mut byte
				mut, err = r.ReadByte()
				imp.DescGlobal = &wasm.GlobalType{ValType: vt, Mutable: mut == 1}
			}
		default:
			return wasmerr.Newf(wasmerr.KindParse, "invalid import kind: %#x", kind)
		}
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading import description")
		}
		d.m.ImportSection = append(d.m.ImportSection, imp)
	}
	return nil
}

func (d *decoder) decodeFunctionSection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading function count")
	}
	for i := uint32(0); i < n; i++ {
		idx, err := readVarU32(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		d.m.FunctionSection = append(d.m.FunctionSection, idx)
	}
	return nil
}

func (d *decoder) decodeTableSection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading table count")
	}
	if int(n)+d.m.ImportedTableCount() > 1 && !d.features.Get(wasm.FeatureReferenceTypes) {
		return wasmerr.Newf(wasmerr.KindParse, "at most one table allowed in module, but read %d",
			int(n)+d.m.ImportedTableCount())
	}
	for i := uint32(0); i < n; i++ {
		rt, err := readValueType(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		lim, err := readLimits(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		d.m.TableSection = append(d.m.TableSection, &wasm.TableType{RefType: rt, Limits: lim})
	}
	return nil
}

func (d *decoder) decodeMemorySection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading memory count")
	}
	if int(n)+d.m.ImportedMemoryCount() > 1 {
		return wasmerr.Newf(wasmerr.KindParse, "at most one memory allowed in module, but read %d",
			int(n)+d.m.ImportedMemoryCount())
	}
	for i := uint32(0); i < n; i++ {
		lim, err := readLimits(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		d.m.MemorySection = append(d.m.MemorySection, &wasm.MemoryType{Limits: lim})
	}
	return nil
}

func (d *decoder) decodeGlobalSection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading global count")
	}
	for i := uint32(0); i < n; i++ {
		vt, err := readValueType(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		mut, err := r.ReadByte()
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		init, err := decodeConstExpr(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading global initializer")
		}
		d.m.GlobalSection = append(d.m.GlobalSection, &wasm.Global{
			Type: &wasm.GlobalType{ValType: vt, Mutable: mut == 1},
			Init: init,
		})
	}
	return nil
}

func (d *decoder) decodeExportSection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading export count")
	}
	for i := uint32(0); i < n; i++ {
		name, err := readName(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		idx, err := readVarU32(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		if _, dup := d.m.ExportSection[name]; dup {
			return wasmerr.Newf(wasmerr.KindParse, "duplicate export name: %q", name)
		}
		d.m.ExportSection[name] = &wasm.Export{Name: name, Type: api.ExternType(kind), Index: idx}
	}
	return nil
}

func (d *decoder) decodeStartSection(r *bytes.Reader) error {
	idx, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err)
	}
	d.m.StartSection = &idx
	return nil
}

func (d *decoder) decodeDataCountSection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err)
	}
	d.m.DataCountSection = &n
	return nil
}

func (d *decoder) decodeElementSection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading element count")
	}
	for i := uint32(0); i < n; i++ {
		flags, err := readVarU32(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		seg := &wasm.ElementSegment{RefType: wasm.ValueTypeFuncref}
		switch flags {
		case 0:
			seg.Mode = wasm.ElementModeActive
			seg.Offset, err = decodeConstExpr(r)
			if err == nil {
				seg.Init, err = decodeElemFuncIndices(r)
			}
		case 1:
			seg.Mode = wasm.ElementModePassive
			if _, err = r.ReadByte(); err == nil { // elemkind, always 0x00 (funcref) in this encoding.
				seg.Init, err = decodeElemFuncIndices(r)
			}
		case 2:
			seg.Mode = wasm.ElementModeActive
			seg.TableIndex, err = readVarU32(r)
			if err == nil {
				seg.Offset, err = decodeConstExpr(r)
			}
			if err == nil {
				if _, err = r.ReadByte(); err == nil {
					seg.Init, err = decodeElemFuncIndices(r)
				}
			}
		case 3:
			seg.Mode = wasm.ElementModeDeclarative
			if _, err = r.ReadByte(); err == nil {
				seg.Init, err = decodeElemFuncIndices(r)
			}
		case 4:
			seg.Mode = wasm.ElementModeActive
			seg.Offset, err = decodeConstExpr(r)
			if err == nil {
				seg.Init, err = decodeElemExprs(r)
			}
		case 5, 7:
			if flags == 7 {
				seg.Mode = wasm.ElementModeDeclarative
			} else {
				seg.Mode = wasm.ElementModePassive
			}
			seg.RefType, err = readValueType(r)
			if err == nil {
				seg.Init, err = decodeElemExprs(r)
			}
		case 6:
			seg.Mode = wasm.ElementModeActive
			seg.TableIndex, err = readVarU32(r)
			if err == nil {
				seg.Offset, err = decodeConstExpr(r)
			}
			if err == nil {
				seg.RefType, err = readValueType(r)
			}
			if err == nil {
				seg.Init, err = decodeElemExprs(r)
			}
		default:
			return wasmerr.Newf(wasmerr.KindParse, "invalid element segment flags: %d", flags)
		}
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading element segment")
		}
		d.m.ElementSection = append(d.m.ElementSection, seg)
	}
	return nil
}

func decodeElemFuncIndices(r *bytes.Reader) ([]wasm.ConstExpr, error) {
	n, err := readVarU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ConstExpr, n)
	for i := range out {
		idx, err := readVarU32(r)
		if err != nil {
			return nil, err
		}
		out[i] = wasm.ConstExpr{Instrs: []wasm.UnresolvedInstr{{Op: wasm.OpRefFunc, FuncIndex: idx}}}
	}
	return out, nil
}

func decodeElemExprs(r *bytes.Reader) ([]wasm.ConstExpr, error) {
	n, err := readVarU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ConstExpr, n)
	for i := range out {
		out[i], err = decodeConstExpr(r)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *decoder) decodeCodeSection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading code count")
	}
	if int(n) != len(d.m.FunctionSection) {
		return wasmerr.Newf(wasmerr.KindParse, "code section count (%d) does not match function section count (%d)",
			n, len(d.m.FunctionSection))
	}
	for i := uint32(0); i < n; i++ {
		size, err := readVarU32(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		code, err := decodeFunctionBody(body)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading function body")
		}
		d.m.CodeSection = append(d.m.CodeSection, code)
	}
	return nil
}

func decodeFunctionBody(body []byte) (*wasm.Code, error) {
	br := bytes.NewReader(body)
	localGroups, err := readVarU32(br)
	if err != nil {
		return nil, err
	}
	var locals []wasm.ValueType
	for i := uint32(0); i < localGroups; i++ {
		count, err := readVarU32(br)
		if err != nil {
			return nil, err
		}
		vt, err := readValueType(br)
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < count; j++ {
			locals = append(locals, vt)
		}
	}
	instrs, err := decodeInstrs(br)
	if err != nil {
		return nil, err
	}
	return &wasm.Code{LocalTypes: locals, Uncompiled: instrs}, nil
}

func (d *decoder) decodeDataSection(r *bytes.Reader) error {
	n, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading data count")
	}
	for i := uint32(0); i < n; i++ {
		flags, err := readVarU32(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		seg := &wasm.DataSegment{}
		switch flags {
		case 0:
			seg.Mode = wasm.DataModeActive
			seg.Offset, err = decodeConstExpr(r)
		case 1:
			seg.Mode = wasm.DataModePassive
		case 2:
			seg.Mode = wasm.DataModeActive
			seg.MemIndex, err = readVarU32(r)
			if err == nil {
				seg.Offset, err = decodeConstExpr(r)
			}
		default:
			return wasmerr.Newf(wasmerr.KindParse, "invalid data segment flags: %d", flags)
		}
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		size, err := readVarU32(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		seg.Init = buf
		d.m.DataSection = append(d.m.DataSection, seg)
	}
	return nil
}
