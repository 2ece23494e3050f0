package wasmtext

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLex_ModuleSkeleton(t *testing.T) {
	toks, err := Lex(`(module ;; a comment
  (; nested (; comment ;) still going ;)
  (func $f (param $x i32) (result i32) local.get $x))`)
	require.NoError(t, err)
	require.NotEmpty(t, toks)
	require.Equal(t, TokenLParen, toks[0].Kind)
	require.Equal(t, TokenKeyword, toks[1].Kind)
	require.Equal(t, "module", toks[1].Text)
	require.Equal(t, TokenEOF, toks[len(toks)-1].Kind)
}

func TestLex_String_HexEscape(t *testing.T) {
	toks, err := Lex(`"\00\ff\"quote"`)
	require.NoError(t, err)
	require.Equal(t, TokenString, toks[0].Kind)
	require.Equal(t, []byte{0x00, 0xff, '"', 'q', 'u', 'o', 't', 'e'}, []byte(toks[0].Text))
}

func TestParseNumber_Decimal(t *testing.T) {
	i, u, _, isFloat, err := ParseNumber("42")
	require.NoError(t, err)
	require.False(t, isFloat)
	require.EqualValues(t, 42, i)
	require.EqualValues(t, 42, u)
}

func TestParseNumber_Hex(t *testing.T) {
	_, u, _, isFloat, err := ParseNumber("0x2a")
	require.NoError(t, err)
	require.False(t, isFloat)
	require.EqualValues(t, 0x2a, u)
}

func TestParseNumber_Float(t *testing.T) {
	_, _, f, isFloat, err := ParseNumber("3.5")
	require.NoError(t, err)
	require.True(t, isFloat)
	require.Equal(t, 3.5, f)
}

func TestParseNumber_NaN(t *testing.T) {
	_, _, f, isFloat, err := ParseNumber("nan")
	require.NoError(t, err)
	require.True(t, isFloat)
	require.True(t, math.IsNaN(f))
}

func TestParseNumber_NaNPayload(t *testing.T) {
	_, _, f, isFloat, err := ParseNumber("nan:0x1")
	require.NoError(t, err)
	require.True(t, isFloat)
	bits := math.Float64bits(f)
	require.Equal(t, uint64(1), bits&0xfffffffffffff)
}

func TestParseNumber_Inf(t *testing.T) {
	_, _, f, isFloat, err := ParseNumber("-inf")
	require.NoError(t, err)
	require.True(t, isFloat)
	require.True(t, math.IsInf(f, -1))
}

func TestParseNumber_Underscore(t *testing.T) {
	_, u, _, _, err := ParseNumber("1_000")
	require.NoError(t, err)
	require.EqualValues(t, 1000, u)
}
