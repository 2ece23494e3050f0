// Package reflectfn builds a wasm.FunctionInstance's HostFn from an arbitrary Go func, reflecting over its
// signature to bridge it to the uint64-only Wasm calling convention. It wraps the Go func so the interpreter
// can call it as a HostFn, since every host function here is invoked only from guest bytecode.
package reflectfn

import (
	"context"
	"fmt"
	"reflect"

	"wrun/api"
	"wrun/internal/wasm"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Bind inspects fn's signature and returns the wasm.FunctionType it implies plus a HostFn that marshals
// Wasm-encoded arguments into Go values, calls fn, and marshals the result back.
//
// fn's first parameter may optionally be a context.Context, which always receives context.Background():
// HostContext carries no Go context to pass through. Every remaining parameter and the
// first non-error result must be one of uint32, int32, uint64, int64, float32, float64. A trailing error
// result is supported and, if non-nil, is returned as the HostFn's error (surfacing as a host-function
// trap to the caller). fn must be a func; anything else is a binding error, not a runtime panic.
func Bind(fn interface{}) (*wasm.FunctionType, func(ctx *wasm.HostContext, params []uint64) ([]uint64, error), error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("reflectfn: %T is not a func", fn)
	}

	paramOffset := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		paramOffset = 1
	}

	paramTypes := make([]wasm.ValueType, 0, t.NumIn()-paramOffset)
	for i := paramOffset; i < t.NumIn(); i++ {
		vt, err := valueTypeOf(t.In(i))
		if err != nil {
			return nil, nil, fmt.Errorf("reflectfn: parameter %d: %w", i, err)
		}
		paramTypes = append(paramTypes, vt)
	}

	hasError := t.NumOut() > 0 && t.Out(t.NumOut()-1) == errorType
	numResults := t.NumOut()
	if hasError {
		numResults--
	}
	if numResults > 1 {
		return nil, nil, fmt.Errorf("reflectfn: at most one non-error result is supported, got %d", numResults)
	}
	resultTypes := make([]wasm.ValueType, 0, numResults)
	for i := 0; i < numResults; i++ {
		vt, err := valueTypeOf(t.Out(i))
		if err != nil {
			return nil, nil, fmt.Errorf("reflectfn: result %d: %w", i, err)
		}
		resultTypes = append(resultTypes, vt)
	}

	ft := &wasm.FunctionType{Params: paramTypes, Results: resultTypes}

	hostFn := func(hc *wasm.HostContext, params []uint64) ([]uint64, error) {
		args := make([]reflect.Value, t.NumIn())
		if paramOffset == 1 {
			args[0] = reflect.ValueOf(context.Background())
		}
		for i, vt := range paramTypes {
			args[i+paramOffset] = decodeArg(t.In(i+paramOffset), vt, params[i])
		}

		out := v.Call(args)

		if hasError {
			if errVal := out[len(out)-1]; !errVal.IsNil() {
				return nil, errVal.Interface().(error)
			}
			out = out[:len(out)-1]
		}
		if len(out) == 0 {
			return nil, nil
		}
		return []uint64{encodeResult(resultTypes[0], out[0])}, nil
	}

	return ft, hostFn, nil
}

func valueTypeOf(t reflect.Type) (wasm.ValueType, error) {
	switch t.Kind() {
	case reflect.Uint32, reflect.Int32:
		return wasm.ValueTypeI32, nil
	case reflect.Uint64, reflect.Int64:
		return wasm.ValueTypeI64, nil
	case reflect.Float32:
		return wasm.ValueTypeF32, nil
	case reflect.Float64:
		return wasm.ValueTypeF64, nil
	default:
		return 0, fmt.Errorf("unsupported Go type %s", t)
	}
}

func decodeArg(t reflect.Type, vt wasm.ValueType, raw uint64) reflect.Value {
	switch vt {
	case wasm.ValueTypeF32:
		return reflect.ValueOf(api.DecodeF32(raw)).Convert(t)
	case wasm.ValueTypeF64:
		return reflect.ValueOf(api.DecodeF64(raw)).Convert(t)
	default:
		switch t.Kind() {
		case reflect.Int32, reflect.Int64:
			return reflect.ValueOf(int64(raw)).Convert(t)
		default:
			return reflect.ValueOf(raw).Convert(t)
		}
	}
}

func encodeResult(vt wasm.ValueType, v reflect.Value) uint64 {
	switch vt {
	case wasm.ValueTypeF32:
		return api.EncodeF32(float32(v.Float()))
	case wasm.ValueTypeF64:
		return api.EncodeF64(v.Float())
	default:
		switch v.Kind() {
		case reflect.Int32, reflect.Int64:
			return uint64(v.Int())
		default:
			return v.Uint()
		}
	}
}
