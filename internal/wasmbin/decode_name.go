package wasmbin

import (
	"bytes"
	"io"

	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

// nameSubsectionFunctionNames is the subsection id for the function-names map within a "name" custom section,
// per the core spec's appendix on the name section: a vector of (funcidx, name) pairs sorted by index.
const nameSubsectionFunctionNames = 1

// decodeCustomSection reads a custom section's name and, when it is the well-known "name" section, decodes the
// function-names subsection into the module's FunctionNames map. Any other custom section, or any subsection of
// "name" besides function names (module name, local names), is skipped: nothing downstream needs them.
func (d *decoder) decodeCustomSection(r *bytes.Reader) error {
	name, err := readName(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading custom section name")
	}
	if name != "name" {
		return nil
	}
	return d.decodeNameSection(r)
}

func (d *decoder) decodeNameSection(r *bytes.Reader) error {
	for {
		subID, err := r.ReadByte()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading name subsection id")
		}
		size, err := readVarU32(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading name subsection size")
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading name subsection body")
		}
		if subID == nameSubsectionFunctionNames {
			if err := d.decodeFunctionNames(bytes.NewReader(body)); err != nil {
				return err
			}
		}
	}
}

func (d *decoder) decodeFunctionNames(r *bytes.Reader) error {
	count, err := readVarU32(r)
	if err != nil {
		return wasmerr.New(wasmerr.KindParse, err).Wrap("reading function names count")
	}
	names := make(map[wasm.Index]string, count)
	for i := uint32(0); i < count; i++ {
		idx, err := readVarU32(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading function name index")
		}
		name, err := readName(r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading function name")
		}
		names[idx] = name
	}
	d.m.FunctionNames = names
	return nil
}
