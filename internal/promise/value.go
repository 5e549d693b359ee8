package promise

import (
	"reflect"

	"github.com/cryguy/rtcbridge/internal/core"
)

// MapValue converts a native success value into the closed script-side value
// set. First match wins:
//
//	nil                    -> nil
//	bool, string, int*     -> unchanged (narrow integers become int)
//	core.Coded             -> its integer code
//	other numbers          -> float64
//	slices and arrays      -> []any, element by element
//	maps                   -> map[string]any, entries with non-string keys dropped
//	anything else          -> InvalidResult error
func MapValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return x, nil
	case core.Coded:
		return int(x.ResultCode()), nil
	case int:
		return x, nil
	case int8:
		return int(x), nil
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case []byte:
		return nil, invalid(v)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			m, err := MapValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			m, err := MapValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = m
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			m, err := MapValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, ok := stringKey(iter.Key())
			if !ok {
				continue
			}
			m, err := MapValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[key] = m
		}
		return out, nil
	}
	return nil, invalid(v)
}

func stringKey(k reflect.Value) (string, bool) {
	if k.Kind() == reflect.Interface {
		if k.IsNil() {
			return "", false
		}
		k = k.Elem()
	}
	if k.Kind() != reflect.String {
		return "", false
	}
	return k.String(), true
}

func invalid(v any) error {
	return core.NewError(core.CodeInvalidResult, "could not convert %T", v)
}

// ResultCode extracts a result code from a mapped success value.
func ResultCode(v any) (core.ResultCode, error) {
	switch x := v.(type) {
	case int:
		return core.ResultCode(x), nil
	case float64:
		return core.ResultCode(int(x)), nil
	case core.ResultCode:
		return x, nil
	}
	return 0, core.NewError(core.CodeInvalidResult, "expected result code, got %T", v)
}
