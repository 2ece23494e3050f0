// Package wasmtext parses the WebAssembly S-expression text format into an unresolved module tree, then
// resolves every named index against the module's index-spaces to produce a *wasm.Module identical in shape
// to one decoded from the binary format. Instructions are written flat (stack-machine style); folded operand
// expressions are not supported, but control constructs (block/loop/if) nest normally.
package wasmtext

import (
	"math"
	"strconv"
	"strings"

	"wrun/internal/wasmerr"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenLParen TokenKind = iota
	TokenRParen
	TokenKeyword // bare identifiers and reserved words: module, func, i32.add, param, ...
	TokenID      // $name
	TokenString
	TokenNumber
	TokenEOF
)

// Token is one lexical unit with its source line (1-based) for error messages.
type Token struct {
	Kind TokenKind
	Text string
	Line int
}

// Lex tokenizes src completely, stripping comments.
func Lex(src string) ([]Token, error) {
	l := &lexer{src: src, line: 1}
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokenEOF {
			return toks, nil
		}
	}
}

type lexer struct {
	src string
	pos int
	line int
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
	}
	return b
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		b := l.peekByte()
		if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
			l.advance()
			continue
		}
		if b == ';' && l.pos+1 < len(l.src) && l.src[l.pos+1] == ';' {
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
			continue
		}
		if b == '(' && l.pos+1 < len(l.src) && l.src[l.pos+1] == ';' {
			depth := 1
			l.advance()
			l.advance()
			for l.pos < len(l.src) && depth > 0 {
				if l.peekByte() == '(' && l.pos+1 < len(l.src) && l.src[l.pos+1] == ';' {
					depth++
					l.advance()
					l.advance()
				} else if l.peekByte() == ';' && l.pos+1 < len(l.src) && l.src[l.pos+1] == ')' {
					depth--
					l.advance()
					l.advance()
				} else {
					l.advance()
				}
			}
			if depth != 0 {
				return wasmerr.Newf(wasmerr.KindParse, "unterminated block comment")
			}
			continue
		}
		return nil
	}
	return nil
}

func isIDChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '/', ':', '<', '=', '>', '?', '@', '\\', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func (l *lexer) next() (Token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}
	line := l.line
	if l.pos >= len(l.src) {
		return Token{Kind: TokenEOF, Line: line}, nil
	}
	b := l.peekByte()
	switch b {
	case '(':
		l.advance()
		return Token{Kind: TokenLParen, Text: "(", Line: line}, nil
	case ')':
		l.advance()
		return Token{Kind: TokenRParen, Text: ")", Line: line}, nil
	case '"':
		return l.lexString(line)
	}
	start := l.pos
	for l.pos < len(l.src) && isIDChar(l.peekByte()) {
		l.advance()
	}
	if l.pos == start {
		return Token{}, wasmerr.Newf(wasmerr.KindParse, "unexpected character %q at line %d", b, line)
	}
	text := l.src[start:l.pos]
	if strings.HasPrefix(text, "$") {
		return Token{Kind: TokenID, Text: text, Line: line}, nil
	}
	if isNumberStart(text) {
		return Token{Kind: TokenNumber, Text: text, Line: line}, nil
	}
	return Token{Kind: TokenKeyword, Text: text, Line: line}, nil
}

func isNumberStart(text string) bool {
	t := text
	if strings.HasPrefix(t, "+") || strings.HasPrefix(t, "-") {
		t = t[1:]
	}
	if t == "" {
		return false
	}
	c := t[0]
	return c >= '0' && c <= '9'
}

func (l *lexer) lexString(line int) (Token, error) {
	l.advance() // opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, wasmerr.Newf(wasmerr.KindParse, "unterminated string at line %d", line)
		}
		c := l.advance()
		if c == '"' {
			return Token{Kind: TokenString, Text: b.String(), Line: line}, nil
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if l.pos >= len(l.src) {
			return Token{}, wasmerr.Newf(wasmerr.KindParse, "unterminated escape at line %d", line)
		}
		esc := l.advance()
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '"', '\'', '\\':
			b.WriteByte(esc)
		default:
			// \xx hex byte escape.
			if isHexDigit(esc) && l.pos < len(l.src) && isHexDigit(l.peekByte()) {
				hi := esc
				lo := l.advance()
				v, err := strconv.ParseUint(string([]byte{hi, lo}), 16, 8)
				if err != nil {
					return Token{}, wasmerr.New(wasmerr.KindParse, err)
				}
				b.WriteByte(byte(v))
			} else {
				return Token{}, wasmerr.Newf(wasmerr.KindParse, "invalid string escape at line %d", line)
			}
		}
	}
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// ParseNumber interprets a lexed number token's text as an integer or float literal, per the text format's
// grammar (optional sign, decimal or 0x-prefixed hex, underscores as digit separators, optional fractional
// part and exponent for floats, and the nan/inf keywords).
func ParseNumber(text string) (asInt64 int64, asUint64 uint64, asFloat64 float64, isFloat bool, err error) {
	clean := strings.ReplaceAll(text, "_", "")
	lower := strings.ToLower(clean)

	neg := strings.HasPrefix(clean, "-")
	bare := strings.TrimPrefix(strings.TrimPrefix(clean, "-"), "+")

	if strings.Contains(lower, "nan") {
		if strings.Contains(lower, "nan:0x") {
			idx := strings.Index(lower, "0x")
			payload, perr := strconv.ParseUint(lower[idx+2:], 16, 52)
			if perr != nil {
				return 0, 0, 0, false, wasmerr.New(wasmerr.KindParse, perr)
			}
			bits := uint64(0x7ff0000000000000) | payload
			if neg {
				bits |= 1 << 63
			}
			return 0, 0, fromBits(bits), true, nil
		}
		bits := uint64(0x7ff8000000000000)
		if neg {
			bits |= 1 << 63
		}
		return 0, 0, fromBits(bits), true, nil
	}
	if strings.Contains(lower, "inf") {
		f := float64(1)
		f /= 0 // +Inf
		if neg {
			f = -f
		}
		return 0, 0, f, true, nil
	}

	isFloatLit := strings.ContainsAny(bare, ".pP") && !strings.HasPrefix(bare, "0x") ||
		(strings.HasPrefix(bare, "0x") && strings.ContainsAny(bare[2:], ".pP"))
	if !strings.HasPrefix(bare, "0x") {
		isFloatLit = isFloatLit || strings.ContainsAny(bare, "eE") && !strings.HasPrefix(bare, "0x")
	}

	if isFloatLit {
		f, ferr := strconv.ParseFloat(clean, 64)
		if ferr != nil {
			return 0, 0, 0, false, wasmerr.New(wasmerr.KindParse, ferr)
		}
		return 0, 0, f, true, nil
	}

	if neg {
		v, ierr := strconv.ParseInt(clean, 0, 64)
		if ierr != nil {
			return 0, 0, 0, false, wasmerr.New(wasmerr.KindParse, ierr)
		}
		return v, uint64(v), 0, false, nil
	}
	v, uerr := strconv.ParseUint(bare, 0, 64)
	if uerr != nil {
		return 0, 0, 0, false, wasmerr.New(wasmerr.KindParse, uerr)
	}
	return int64(v), v, 0, false, nil
}

func fromBits(bits uint64) float64 {
	return math.Float64frombits(bits)
}
