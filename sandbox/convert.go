package sandbox

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"go.starlark.net/starlark"
)

// toStarlark converts a Go value into its Starlark representation.
// Values outside the JSON-ish data model degrade to their string form
// rather than failing; the sandbox never surfaces conversion panics to a
// script.
func toStarlark(v any) starlark.Value {
	switch v := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(v)
	case string:
		return starlark.String(v)
	case []byte:
		return starlark.Bytes(v)
	case int:
		return starlark.MakeInt(v)
	case int32:
		return starlark.MakeInt(int(v))
	case int64:
		return starlark.MakeInt64(v)
	case uint64:
		return starlark.MakeUint64(v)
	case float32:
		return starlark.Float(v)
	case float64:
		return starlark.Float(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return starlark.MakeInt64(i)
		}
		if f, err := v.Float64(); err == nil {
			return starlark.Float(f)
		}
		return starlark.String(v.String())
	case []any:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			elems[i] = toStarlark(e)
		}
		return starlark.NewList(elems)
	case map[string]any:
		d := starlark.NewDict(len(v))
		for k, val := range v {
			_ = d.SetKey(starlark.String(k), toStarlark(val))
		}
		return d
	}

	// Anything else goes through a JSON round trip first, then falls
	// back to its printed form. The round trip only produces JSON-native
	// types, so the recursion terminates.
	if out, ok := roundTripJSON(v); ok {
		return toStarlark(out)
	}
	return starlark.String(fmt.Sprint(v))
}

// fromStarlark converts a Starlark value back into plain Go data:
// dicts to map[string]any (keys stringified), lists and tuples to []any,
// ints to int64 (or string when out of range).
func fromStarlark(v starlark.Value) any {
	switch v := v.(type) {
	case nil, starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(v)
	case starlark.String:
		return string(v)
	case starlark.Bytes:
		return []byte(v)
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i
		}
		return v.String()
	case starlark.Float:
		return float64(v)
	case *starlark.List:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = fromStarlark(v.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = fromStarlark(e)
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := item[0].(starlark.String)
			if ok {
				out[string(key)] = fromStarlark(item[1])
			} else {
				out[item[0].String()] = fromStarlark(item[1])
			}
		}
		return out
	default:
		return v.String()
	}
}

// deepCopyArgs snapshots an args map so later mutation by the script or
// the capability cannot change what the trace recorded.
func deepCopyArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	result := make(map[string]any, len(args))
	for k, v := range args {
		result[k] = deepCopyValue(v)
	}
	return result
}

func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyArgs(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopyValue(e)
		}
		return out
	case string, bool, float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		json.Number:
		return val
	default:
		if out, ok := roundTripJSON(val); ok {
			return out
		}
		return fmt.Sprint(val)
	}
}

// sanitize passes a run's output through a structural round trip.
// Fields that fail individually are coerced to strings; a wholly
// unrepresentable value is replaced by a diagnostic object instead of
// raising.
func sanitize(v any) any {
	if v == nil {
		return nil
	}
	if out, ok := roundTripJSON(v); ok {
		return out
	}

	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, field := range val {
			if f, ok := roundTripJSON(field); ok {
				out[k] = f
			} else {
				out[k] = fmt.Sprint(field)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			if f, ok := roundTripJSON(item); ok {
				out[i] = f
			} else {
				out[i] = fmt.Sprint(item)
			}
		}
		return out
	}

	return map[string]any{
		"unserializable": fmt.Sprintf("%T", v),
		"keys":           valueKeys(v),
	}
}

// valueKeys lists the key or field names of an unrepresentable value for
// the diagnostic substitute.
func valueKeys(v any) []string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	var keys []string
	switch rv.Kind() {
	case reflect.Map:
		for _, k := range rv.MapKeys() {
			keys = append(keys, fmt.Sprint(k.Interface()))
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if rv.Type().Field(i).IsExported() {
				keys = append(keys, rv.Type().Field(i).Name)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func roundTripJSON(v any) (any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}
