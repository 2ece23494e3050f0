package main

import (
	"fmt"
	"strconv"
	"strings"

	"wrun/api"
)

// parseInvokeArg parses one --invoke argument into its wasm value type and raw uint64 encoding. Arguments use
// a TYPE:VALUE grammar (i32:42, i64:-7, f32:3.5, f64:2.71828); a bare number with no TYPE: prefix defaults to
// i32, matching the common case of invoking functions over small integers.
func parseInvokeArg(arg string) (uint64, error) {
	typ, val, ok := strings.Cut(arg, ":")
	if !ok {
		typ, val = "i32", arg
	}

	switch typ {
	case "i32":
		n, err := strconv.ParseInt(val, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid i32 argument %q: %w", arg, err)
		}
		return uint64(uint32(n)), nil
	case "i64":
		n, err := strconv.ParseInt(val, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid i64 argument %q: %w", arg, err)
		}
		return uint64(n), nil
	case "f32":
		f, err := strconv.ParseFloat(val, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid f32 argument %q: %w", arg, err)
		}
		return api.EncodeF32(float32(f)), nil
	case "f64":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid f64 argument %q: %w", arg, err)
		}
		return api.EncodeF64(f), nil
	default:
		return 0, fmt.Errorf("invalid argument %q: unknown type %q, want i32, i64, f32, or f64", arg, typ)
	}
}

// parseInvokeArgs parses every element of args with parseInvokeArg, stopping at the first failure.
func parseInvokeArgs(args []string) ([]uint64, error) {
	params := make([]uint64, len(args))
	for i, arg := range args {
		v, err := parseInvokeArg(arg)
		if err != nil {
			return nil, err
		}
		params[i] = v
	}
	return params, nil
}

// formatResult renders a raw uint64 result according to its declared value type, for printing back to the
// user after a successful --invoke call.
func formatResult(t api.ValueType, v uint64) string {
	switch t {
	case api.ValueTypeI32:
		return strconv.FormatInt(int64(int32(v)), 10)
	case api.ValueTypeI64:
		return strconv.FormatInt(int64(v), 10)
	case api.ValueTypeF32:
		return strconv.FormatFloat(float64(api.DecodeF32(v)), 'g', -1, 32)
	case api.ValueTypeF64:
		return strconv.FormatFloat(api.DecodeF64(v), 'g', -1, 64)
	default:
		return fmt.Sprintf("0x%x", v)
	}
}
