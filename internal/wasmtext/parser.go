package wasmtext

import (
	"strconv"

	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

type parser struct {
	toks []Token
	pos  int
}

// Parse lexes and parses a complete `(module ...)` text into an UnresolvedModule.
func Parse(src string) (*UnresolvedModule, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseModule()
}

func (p *parser) cur() Token  { return p.toks[p.pos] }
func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if t.Kind != TokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(k TokenKind) (Token, error) {
	t := p.cur()
	if t.Kind != k {
		return t, wasmerr.Newf(wasmerr.KindParse, "line %d: unexpected token %q", t.Line, t.Text)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(kw string) error {
	t := p.cur()
	if t.Kind != TokenKeyword || t.Text != kw {
		return wasmerr.Newf(wasmerr.KindParse, "line %d: expected %q, got %q", t.Line, kw, t.Text)
	}
	p.advance()
	return nil
}

func (p *parser) atKeyword(kw string) bool {
	return p.cur().Kind == TokenKeyword && p.cur().Text == kw
}

// parseOptionalID consumes an optional leading `$name` token.
func (p *parser) parseOptionalID() string {
	if p.cur().Kind == TokenID {
		return p.advance().Text
	}
	return ""
}

func (p *parser) parseIndexRef() (IndexRef, error) {
	t := p.cur()
	if t.Kind == TokenID {
		p.advance()
		return IndexRef{Name: t.Text, HasName: true, Line: t.Line}, nil
	}
	if t.Kind == TokenNumber {
		p.advance()
		_, u, _, isFloat, err := ParseNumber(t.Text)
		if err != nil || isFloat {
			return IndexRef{}, wasmerr.Newf(wasmerr.KindParse, "line %d: invalid index %q", t.Line, t.Text)
		}
		return IndexRef{Num: wasm.Index(u), Line: t.Line}, nil
	}
	return IndexRef{}, wasmerr.Newf(wasmerr.KindParse, "line %d: expected index, got %q", t.Line, t.Text)
}

func (p *parser) parseModule() (*UnresolvedModule, error) {
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("module"); err != nil {
		return nil, err
	}
	m := &UnresolvedModule{ID: p.parseOptionalID()}

	for p.cur().Kind == TokenLParen {
		if err := p.parseModuleField(m); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	if p.cur().Kind != TokenEOF {
		return nil, wasmerr.Newf(wasmerr.KindParse, "line %d: trailing input after module", p.cur().Line)
	}
	return m, nil
}

func (p *parser) parseModuleField(m *UnresolvedModule) error {
	if _, err := p.expect(TokenLParen); err != nil {
		return err
	}
	kw := p.cur()
	if kw.Kind != TokenKeyword {
		return wasmerr.Newf(wasmerr.KindParse, "line %d: expected field keyword, got %q", kw.Line, kw.Text)
	}
	p.advance()
	var err error
	switch kw.Text {
	case "type":
		err = p.parseTypeField(m)
	case "import":
		err = p.parseImportField(m)
	case "func":
		err = p.parseFuncField(m)
	case "table":
		err = p.parseTableField(m)
	case "memory":
		err = p.parseMemoryField(m)
	case "global":
		err = p.parseGlobalField(m)
	case "export":
		err = p.parseExportField(m)
	case "start":
		ref, rerr := p.parseIndexRef()
		if rerr != nil {
			return rerr
		}
		m.Start = &ref
	case "elem":
		err = p.parseElemField(m)
	case "data":
		err = p.parseDataField(m)
	default:
		return wasmerr.Newf(wasmerr.KindParse, "line %d: unknown module field %q", kw.Line, kw.Text)
	}
	if err != nil {
		return err
	}
	_, err = p.expect(TokenRParen)
	return err
}

func (p *parser) parseValueType() (wasm.ValueType, error) {
	t := p.cur()
	if t.Kind != TokenKeyword {
		return 0, wasmerr.Newf(wasmerr.KindParse, "line %d: expected value type, got %q", t.Line, t.Text)
	}
	vt, ok := valueTypeByName(t.Text)
	if !ok {
		return 0, wasmerr.Newf(wasmerr.KindParse, "line %d: unknown value type %q", t.Line, t.Text)
	}
	p.advance()
	return vt, nil
}

func valueTypeByName(s string) (wasm.ValueType, bool) {
	switch s {
	case "i32":
		return wasm.ValueTypeI32, true
	case "i64":
		return wasm.ValueTypeI64, true
	case "f32":
		return wasm.ValueTypeF32, true
	case "f64":
		return wasm.ValueTypeF64, true
	case "funcref":
		return wasm.ValueTypeFuncref, true
	case "externref":
		return wasm.ValueTypeExternref, true
	}
	return 0, false
}

// parseParamsAndResults parses zero or more `(param ...)` fields followed by zero or more `(result ...)`
// fields, as used by both (type (func ...)) and bare func-field signatures.
func (p *parser) parseParamsAndResults() ([]ParamDecl, []wasm.ValueType, error) {
	var params []ParamDecl
	for p.cur().Kind == TokenLParen && p.peekKeywordAt(1) == "param" {
		p.advance() // (
		p.advance() // param
		if p.cur().Kind == TokenID {
			name := p.advance().Text
			vt, err := p.parseValueType()
			if err != nil {
				return nil, nil, err
			}
			params = append(params, ParamDecl{Name: name, Type: vt})
		} else {
			for p.cur().Kind == TokenKeyword {
				vt, err := p.parseValueType()
				if err != nil {
					return nil, nil, err
				}
				params = append(params, ParamDecl{Type: vt})
			}
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, nil, err
		}
	}
	var results []wasm.ValueType
	for p.cur().Kind == TokenLParen && p.peekKeywordAt(1) == "result" {
		p.advance()
		p.advance()
		for p.cur().Kind == TokenKeyword {
			vt, err := p.parseValueType()
			if err != nil {
				return nil, nil, err
			}
			results = append(results, vt)
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, nil, err
		}
	}
	return params, results, nil
}

func (p *parser) peekKeywordAt(offset int) string {
	i := p.pos + offset
	if i >= len(p.toks) {
		return ""
	}
	return p.toks[i].Text
}

func (p *parser) parseTypeUse() (TypeUse, error) {
	var tu TypeUse
	if p.cur().Kind == TokenLParen && p.peekKeywordAt(1) == "type" {
		p.advance()
		p.advance()
		ref, err := p.parseIndexRef()
		if err != nil {
			return tu, err
		}
		tu.Ref = &ref
		if _, err := p.expect(TokenRParen); err != nil {
			return tu, err
		}
	}
	params, results, err := p.parseParamsAndResults()
	if err != nil {
		return tu, err
	}
	tu.Params, tu.Results = params, results
	return tu, nil
}

func (p *parser) parseTypeField(m *UnresolvedModule) error {
	id := p.parseOptionalID()
	if _, err := p.expect(TokenLParen); err != nil {
		return err
	}
	if err := p.expectKeyword("func"); err != nil {
		return err
	}
	params, results, err := p.parseParamsAndResults()
	if err != nil {
		return err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return err
	}
	m.Types = append(m.Types, &UnresolvedType{ID: id, Params: params, Results: results})
	return nil
}

func (p *parser) parseLimits() (wasm.Limits, error) {
	t, err := p.expect(TokenNumber)
	if err != nil {
		return wasm.Limits{}, err
	}
	_, min, _, _, err := ParseNumber(t.Text)
	if err != nil {
		return wasm.Limits{}, err
	}
	lim := wasm.Limits{Min: uint32(min)}
	if p.cur().Kind == TokenNumber {
		t2 := p.advance()
		_, max, _, _, err := ParseNumber(t2.Text)
		if err != nil {
			return wasm.Limits{}, err
		}
		maxV := uint32(max)
		lim.Max = &maxV
	}
	return lim, nil
}

func (p *parser) parseFuncField(m *UnresolvedModule) error {
	line := p.cur().Line
	id := p.parseOptionalID()
	tu, err := p.parseTypeUse()
	if err != nil {
		return err
	}
	var locals []ParamDecl
	for p.cur().Kind == TokenLParen && p.peekKeywordAt(1) == "local" {
		p.advance()
		p.advance()
		if p.cur().Kind == TokenID {
			name := p.advance().Text
			vt, err := p.parseValueType()
			if err != nil {
				return err
			}
			locals = append(locals, ParamDecl{Name: name, Type: vt})
		} else {
			for p.cur().Kind == TokenKeyword {
				vt, err := p.parseValueType()
				if err != nil {
					return err
				}
				locals = append(locals, ParamDecl{Type: vt})
			}
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return err
		}
	}
	body, err := p.parseInstrSeq()
	if err != nil {
		return err
	}
	m.Funcs = append(m.Funcs, &UnresolvedFunc{ID: id, TypeUse: tu, Locals: locals, Body: body, Line: line})
	return nil
}

// parseInstrSeq parses instructions until the enclosing field's closing paren (or an `else`/`end` keyword used
// by block bodies) without consuming that terminator.
func (p *parser) parseInstrSeq() ([]TextInstr, error) {
	var out []TextInstr
	for {
		if p.cur().Kind == TokenRParen {
			return out, nil
		}
		if p.atKeyword("else") || p.atKeyword("end") {
			return out, nil
		}
		instr, err := p.parseInstr()
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
	}
}

func (p *parser) parseInstr() (TextInstr, error) {
	t := p.cur()
	if t.Kind != TokenKeyword {
		return TextInstr{}, wasmerr.Newf(wasmerr.KindParse, "line %d: expected instruction, got %q", t.Line, t.Text)
	}
	p.advance()
	switch t.Text {
	case "block", "loop", "if":
		return p.parseBlockInstr(t)
	case "call_indirect":
		return p.parseCallIndirect(t)
	default:
		instr := TextInstr{Op: t.Text, Line: t.Line}
		for {
			switch {
			case p.cur().Kind == TokenID, p.cur().Kind == TokenNumber:
				instr.Imm = append(instr.Imm, p.advance().Text)
			case p.cur().Kind == TokenKeyword && (isValueTypeKeyword(p.cur().Text) || isMemArgKeyword(p.cur().Text)):
				instr.Imm = append(instr.Imm, p.advance().Text)
			default:
				return instr, nil
			}
		}
	}
}

func isValueTypeKeyword(s string) bool {
	_, ok := valueTypeByName(s)
	return ok
}

func isMemArgKeyword(s string) bool {
	return len(s) > 7 && s[:7] == "offset=" || len(s) > 6 && s[:6] == "align="
}

// parseCallIndirect parses `call_indirect (type $t)` or `call_indirect $table (type $t)`, recording the type
// reference (and, if present, the table reference) as trailing immediates so resolveInstr's generic
// textImmToRef handling applies uniformly.
func (p *parser) parseCallIndirect(opTok Token) (TextInstr, error) {
	instr := TextInstr{Op: opTok.Text, Line: opTok.Line}
	var tableRef *IndexRef
	if p.cur().Kind == TokenID || p.cur().Kind == TokenNumber {
		ref, err := p.parseIndexRef()
		if err != nil {
			return TextInstr{}, err
		}
		tableRef = &ref
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return TextInstr{}, err
	}
	if err := p.expectKeyword("type"); err != nil {
		return TextInstr{}, err
	}
	typeRef, err := p.parseIndexRef()
	if err != nil {
		return TextInstr{}, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return TextInstr{}, err
	}
	instr.Imm = append(instr.Imm, indexRefToImm(typeRef))
	if tableRef != nil {
		instr.Imm = append(instr.Imm, indexRefToImm(*tableRef))
	}
	return instr, nil
}

func indexRefToImm(ref IndexRef) string {
	if ref.HasName {
		return ref.Name
	}
	return strconv.FormatUint(uint64(ref.Num), 10)
}

func (p *parser) parseBlockInstr(opTok Token) (TextInstr, error) {
	label := p.parseOptionalID()
	tu, err := p.parseTypeUse()
	if err != nil {
		return TextInstr{}, err
	}
	blk := &TextBlock{LabelName: label, Type: tu}
	if opTok.Text != "if" {
		then, err := p.parseInstrSeq()
		if err != nil {
			return TextInstr{}, err
		}
		blk.Then = then
		if err := p.expectEndLabel("end"); err != nil {
			return TextInstr{}, err
		}
	} else {
		then, err := p.parseInstrSeq()
		if err != nil {
			return TextInstr{}, err
		}
		blk.Then = then
		if p.atKeyword("else") {
			p.advance()
			p.parseOptionalID()
			els, err := p.parseInstrSeq()
			if err != nil {
				return TextInstr{}, err
			}
			blk.Else = els
		}
		if err := p.expectEndLabel("end"); err != nil {
			return TextInstr{}, err
		}
	}
	return TextInstr{Op: opTok.Text, Line: opTok.Line, Block: blk}, nil
}

func (p *parser) expectEndLabel(kw string) error {
	if err := p.expectKeyword(kw); err != nil {
		return err
	}
	p.parseOptionalID()
	return nil
}

func (p *parser) parseImportField(m *UnresolvedModule) error {
	line := p.cur().Line
	modTok, err := p.expect(TokenString)
	if err != nil {
		return err
	}
	nameTok, err := p.expect(TokenString)
	if err != nil {
		return err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return err
	}
	kindTok := p.cur()
	p.advance()
	imp := &UnresolvedImport{Module: modTok.Text, Name: nameTok.Text, Line: line}
	switch kindTok.Text {
	case "func":
		imp.FuncID = p.parseOptionalID()
		tu, err := p.parseTypeUse()
		if err != nil {
			return err
		}
		imp.FuncType = &tu
	case "table":
		imp.TableID = p.parseOptionalID()
		lim, err := p.parseLimits()
		if err != nil {
			return err
		}
		rt, err := p.parseValueType()
		if err != nil {
			return err
		}
		imp.TableType = &wasm.TableType{RefType: rt, Limits: lim}
	case "memory":
		imp.MemID = p.parseOptionalID()
		lim, err := p.parseLimits()
		if err != nil {
			return err
		}
		imp.MemType = &wasm.MemoryType{Limits: lim}
	case "global":
		imp.GlobalID = p.parseOptionalID()
		gt, err := p.parseGlobalType()
		if err != nil {
			return err
		}
		imp.GlobalType = &gt
	default:
		return wasmerr.Newf(wasmerr.KindParse, "line %d: unknown import kind %q", kindTok.Line, kindTok.Text)
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return err
	}
	m.Imports = append(m.Imports, imp)
	return nil
}

func (p *parser) parseGlobalType() (wasm.GlobalType, error) {
	if p.cur().Kind == TokenLParen && p.peekKeywordAt(1) == "mut" {
		p.advance()
		p.advance()
		vt, err := p.parseValueType()
		if err != nil {
			return wasm.GlobalType{}, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return wasm.GlobalType{}, err
		}
		return wasm.GlobalType{ValType: vt, Mutable: true}, nil
	}
	vt, err := p.parseValueType()
	return wasm.GlobalType{ValType: vt}, err
}

func (p *parser) parseTableField(m *UnresolvedModule) error {
	id := p.parseOptionalID()
	lim, err := p.parseLimits()
	if err != nil {
		return err
	}
	rt, err := p.parseValueType()
	if err != nil {
		return err
	}
	m.Tables = append(m.Tables, &UnresolvedTable{ID: id, Type: wasm.TableType{RefType: rt, Limits: lim}})
	return nil
}

func (p *parser) parseMemoryField(m *UnresolvedModule) error {
	id := p.parseOptionalID()
	lim, err := p.parseLimits()
	if err != nil {
		return err
	}
	m.Memories = append(m.Memories, &UnresolvedMemory{ID: id, Type: wasm.MemoryType{Limits: lim}})
	return nil
}

func (p *parser) parseGlobalField(m *UnresolvedModule) error {
	line := p.cur().Line
	id := p.parseOptionalID()
	gt, err := p.parseGlobalType()
	if err != nil {
		return err
	}
	init, err := p.parseInstrSeq()
	if err != nil {
		return err
	}
	m.Globals = append(m.Globals, &UnresolvedGlobal{ID: id, Type: gt, Init: init, Line: line})
	return nil
}

func (p *parser) parseExportField(m *UnresolvedModule) error {
	line := p.cur().Line
	nameTok, err := p.expect(TokenString)
	if err != nil {
		return err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return err
	}
	kindTok := p.cur()
	p.advance()
	ref, err := p.parseIndexRef()
	if err != nil {
		return err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return err
	}
	m.Exports = append(m.Exports, &UnresolvedExport{Name: nameTok.Text, Kind: kindTok.Text, Ref: ref, Line: line})
	return nil
}

func (p *parser) parseOffsetExpr() ([]TextInstr, error) {
	if p.cur().Kind == TokenLParen && p.peekKeywordAt(1) == "offset" {
		p.advance()
		p.advance()
		instrs, err := p.parseInstrSeq()
		if err != nil {
			return nil, err
		}
		_, err = p.expect(TokenRParen)
		return instrs, err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	instr, err := p.parseInstr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return []TextInstr{instr}, nil
}

func (p *parser) parseElemField(m *UnresolvedModule) error {
	line := p.cur().Line
	elem := &UnresolvedElem{RefType: wasm.ValueTypeFuncref, Line: line}
	if p.atKeyword("func") {
		p.advance()
		elem.Mode = wasm.ElementModePassive
	} else {
		off, err := p.parseOffsetExpr()
		if err != nil {
			return err
		}
		elem.Mode = wasm.ElementModeActive
		elem.Offset = off
	}
	for p.cur().Kind == TokenID || p.cur().Kind == TokenNumber {
		ref, err := p.parseIndexRef()
		if err != nil {
			return err
		}
		elem.FuncRefs = append(elem.FuncRefs, ref)
	}
	m.Elems = append(m.Elems, elem)
	return nil
}

func (p *parser) parseDataField(m *UnresolvedModule) error {
	line := p.cur().Line
	data := &UnresolvedData{Line: line}
	if p.cur().Kind == TokenLParen {
		off, err := p.parseOffsetExpr()
		if err != nil {
			return err
		}
		data.Mode = wasm.DataModeActive
		data.Offset = off
	} else {
		data.Mode = wasm.DataModePassive
	}
	for p.cur().Kind == TokenString {
		data.Bytes = append(data.Bytes, []byte(p.advance().Text)...)
	}
	m.Datas = append(m.Datas, data)
	return nil
}
