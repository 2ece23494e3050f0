package wasmbin

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"wrun/api"
	"wrun/internal/wasm"
)

// addModule is the binary encoding of:
//
//	(module
//	  (type (func (param i32 i32) (result i32)))
//	  (func (type 0) local.get 0 local.get 1 i32.add)
//	  (export "add" (func 0)))
var addModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // type section
	0x03, 0x02, 0x01, 0x00, // function section
	0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00, // export section
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b, // code section
}

func TestDecode_AddModule(t *testing.T) {
	m, err := Decode(bytes.NewReader(addModule), wasm.Features20220419)
	require.NoError(t, err)

	require.Len(t, m.TypeSection, 1)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, m.TypeSection[0].Params)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, m.TypeSection[0].Results)

	require.Equal(t, []wasm.Index{0}, m.FunctionSection)

	exp, ok := m.ExportSection["add"]
	require.True(t, ok)
	require.Equal(t, api.ExternTypeFunc, exp.Type)
	require.Equal(t, wasm.Index(0), exp.Index)

	require.Len(t, m.CodeSection, 1)
	code := m.CodeSection[0]
	require.Empty(t, code.LocalTypes)
	require.Len(t, code.Uncompiled, 3)
	require.Equal(t, wasm.OpLocalGet, code.Uncompiled[0].Op)
	require.Equal(t, wasm.Index(0), code.Uncompiled[0].LocalIndex)
	require.Equal(t, wasm.OpLocalGet, code.Uncompiled[1].Op)
	require.Equal(t, wasm.Index(1), code.Uncompiled[1].LocalIndex)
	require.Equal(t, wasm.OpI32Add, code.Uncompiled[2].Op)
}

func TestDecode_NameSection(t *testing.T) {
	withNames := append(append([]byte{}, addModule...),
		0x00, 0x0d, // custom section, size 13
		0x04, 'n', 'a', 'm', 'e', // custom section name: "name"
		0x01, 0x06, // function-names subsection, size 6
		0x01,           // one entry
		0x00,           // function index 0
		0x03, 'a', 'd', 'd', // name "add"
	)

	m, err := Decode(bytes.NewReader(withNames), wasm.Features20220419)
	require.NoError(t, err)

	name, ok := m.FunctionName(0)
	require.True(t, ok)
	require.Equal(t, "add", name)
	require.Equal(t, "0 ($add)", m.FuncRef(0))
}

func TestDecode_InvalidMagic(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0, 1, 2, 3, 1, 0, 0, 0}), wasm.Features20220419)
	require.ErrorContains(t, err, "invalid magic number")
}

func TestDecode_TruncatedSection(t *testing.T) {
	truncated := append([]byte{}, addModule[:len(addModule)-3]...)
	_, err := Decode(bytes.NewReader(truncated), wasm.Features20220419)
	require.Error(t, err)
}
