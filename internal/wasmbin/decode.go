// Package wasmbin decodes the WebAssembly binary format (the ".wasm" module structure): the
// magic/version preamble followed by an ordered sequence of sections. It produces a *wasm.Module whose indices
// are already numeric, so no separate resolution pass is needed for binary input (unlike the text format).
package wasmbin

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"wrun/internal/leb128"
	"wrun/internal/wasm"
	"wrun/internal/wasmerr"
)

var magic = []byte{0x00, 0x61, 0x73, 0x6d}

const version1 = uint32(1)

// Decode parses a complete binary module image into a *wasm.Module.
func Decode(r io.Reader, features wasm.Features) (*wasm.Module, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, wasmerr.New(wasmerr.KindParse, err).Wrap("reading module bytes")
	}
	if len(buf) < 8 {
		return nil, wasmerr.Newf(wasmerr.KindParse, "invalid magic number")
	}
	if !bytes.Equal(buf[:4], magic) {
		return nil, wasmerr.Newf(wasmerr.KindParse, "invalid magic number")
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != version1 {
		return nil, wasmerr.Newf(wasmerr.KindParse, "invalid version: %d", v)
	}

	br := bytes.NewReader(buf[8:])
	d := &decoder{r: br, features: features, m: &wasm.Module{ExportSection: map[string]*wasm.Export{}}}
	if err := d.decodeSections(); err != nil {
		return nil, err
	}
	d.m.ID = wasm.NewID(buf)
	return d.m, nil
}

type decoder struct {
	r        *bytes.Reader
	features wasm.Features
	m        *wasm.Module

	lastSection wasm.SectionID
	sawCode     bool
}

func (d *decoder) decodeSections() error {
	first := true
	for {
		id, err := d.r.ReadByte()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return wasmerr.New(wasmerr.KindParse, err)
		}
		size, err := leb128.DecodeUint32(d.r)
		if err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading section size")
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(d.r, body); err != nil {
			return wasmerr.New(wasmerr.KindParse, err).Wrap("reading section body")
		}
		sid := wasm.SectionID(id)
		if sid != wasm.SectionIDCustom {
			if !first && sid <= d.lastSection {
				return wasmerr.Newf(wasmerr.KindParse, "section out of order: %s", wasm.SectionIDName(sid))
			}
			d.lastSection = sid
		}
		first = false

		br := bytes.NewReader(body)
		var err2 error
		switch sid {
		case wasm.SectionIDCustom:
			err2 = d.decodeCustomSection(br)
		case wasm.SectionIDType:
			err2 = d.decodeTypeSection(br)
		case wasm.SectionIDImport:
			err2 = d.decodeImportSection(br)
		case wasm.SectionIDFunction:
			err2 = d.decodeFunctionSection(br)
		case wasm.SectionIDTable:
			err2 = d.decodeTableSection(br)
		case wasm.SectionIDMemory:
			err2 = d.decodeMemorySection(br)
		case wasm.SectionIDGlobal:
			err2 = d.decodeGlobalSection(br)
		case wasm.SectionIDExport:
			err2 = d.decodeExportSection(br)
		case wasm.SectionIDStart:
			err2 = d.decodeStartSection(br)
		case wasm.SectionIDElement:
			err2 = d.decodeElementSection(br)
		case wasm.SectionIDDataCount:
			err2 = d.decodeDataCountSection(br)
		case wasm.SectionIDCode:
			err2 = d.decodeCodeSection(br)
		case wasm.SectionIDData:
			err2 = d.decodeDataSection(br)
		default:
			return wasmerr.Newf(wasmerr.KindParse, "unknown section id: %d", id)
		}
		if err2 != nil {
			return err2
		}
	}
}

func readVarU32(r *bytes.Reader) (uint32, error) {
	return leb128.DecodeUint32(r)
}

func readVarI32(r *bytes.Reader) (int32, error) {
	return leb128.DecodeInt32(r)
}

func readVarI64(r *bytes.Reader) (int64, error) {
	return leb128.DecodeInt64(r)
}

func readF32(r *bytes.Reader) (float32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

func readF64(r *bytes.Reader) (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

func readName(r *bytes.Reader) (string, error) {
	n, err := readVarU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readValueType(r *bytes.Reader) (wasm.ValueType, error) {
	b, err := r.ReadByte()
	return b, err
}

func readLimits(r *bytes.Reader) (wasm.Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return wasm.Limits{}, err
	}
	min, err := readVarU32(r)
	if err != nil {
		return wasm.Limits{}, err
	}
	lim := wasm.Limits{Min: min}
	if flag == 1 {
		max, err := readVarU32(r)
		if err != nil {
			return wasm.Limits{}, err
		}
		lim.Max = &max
	}
	return lim, nil
}
