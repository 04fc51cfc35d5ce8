package sandbox

import (
	"strconv"
	"strings"

	"go.starlark.net/starlark"
)

// helperBuiltins is the fixed library of defensive data-access helpers
// exposed to every script. Helpers never raise on malformed shapes; they
// return defaults so scripts stay short.
func helperBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"get_path":    starlark.NewBuiltin("get_path", getPathBuiltin),
		"as_list":     starlark.NewBuiltin("as_list", asListBuiltin),
		"safe_map":    starlark.NewBuiltin("safe_map", safeMapBuiltin),
		"safe_filter": starlark.NewBuiltin("safe_filter", safeFilterBuiltin),
		"ok":          starlark.NewBuiltin("ok", okBuiltin),
		"data":        starlark.NewBuiltin("data", dataBuiltin),
		"error_text":  starlark.NewBuiltin("error_text", errorTextBuiltin),
		"length_of":   starlark.NewBuiltin("length_of", lengthOfBuiltin),
	}
}

// getPathBuiltin implements get_path(value, "a.b.0", default=None):
// dotted traversal through dicts and lists, returning the default on any
// missing or mistyped segment.
func getPathBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	var path string
	var fallback starlark.Value = starlark.None
	if err := starlark.UnpackArgs("get_path", args, kwargs,
		"value", &value, "path", &path, "default?", &fallback); err != nil {
		return nil, err
	}

	current := value
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}
		switch v := current.(type) {
		case *starlark.Dict:
			item, found, err := v.Get(starlark.String(segment))
			if err != nil || !found {
				return fallback, nil
			}
			current = item
		case *starlark.List:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= v.Len() {
				return fallback, nil
			}
			current = v.Index(idx)
		case starlark.Tuple:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(v) {
				return fallback, nil
			}
			current = v[idx]
		default:
			return fallback, nil
		}
	}
	if current == nil {
		return fallback, nil
	}
	return current, nil
}

// asListBuiltin implements as_list(value): lists pass through, tuples
// become lists, None becomes [], anything else becomes a one-element list.
func asListBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs("as_list", args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	return coerceList(value), nil
}

func coerceList(value starlark.Value) *starlark.List {
	switch v := value.(type) {
	case *starlark.List:
		return v
	case starlark.Tuple:
		return starlark.NewList(append([]starlark.Value(nil), v...))
	case starlark.NoneType, nil:
		return starlark.NewList(nil)
	default:
		return starlark.NewList([]starlark.Value{value})
	}
}

// safeMapBuiltin implements safe_map(value, fn): coerces value to a list
// and applies fn per item; items whose fn raises are dropped instead of
// failing the run.
func safeMapBuiltin(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	var fn starlark.Callable
	if err := starlark.UnpackPositionalArgs("safe_map", args, kwargs, 2, &value, &fn); err != nil {
		return nil, err
	}

	items := coerceList(value)
	out := make([]starlark.Value, 0, items.Len())
	for i := 0; i < items.Len(); i++ {
		mapped, err := starlark.Call(thread, fn, starlark.Tuple{items.Index(i)}, nil)
		if err != nil {
			continue
		}
		out = append(out, mapped)
	}
	return starlark.NewList(out), nil
}

// safeFilterBuiltin implements safe_filter(value, fn): keeps items where
// fn is truthy; items whose fn raises are dropped.
func safeFilterBuiltin(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	var fn starlark.Callable
	if err := starlark.UnpackPositionalArgs("safe_filter", args, kwargs, 2, &value, &fn); err != nil {
		return nil, err
	}

	items := coerceList(value)
	out := make([]starlark.Value, 0, items.Len())
	for i := 0; i < items.Len(); i++ {
		item := items.Index(i)
		keep, err := starlark.Call(thread, fn, starlark.Tuple{item}, nil)
		if err != nil {
			continue
		}
		if bool(keep.Truth()) {
			out = append(out, item)
		}
	}
	return starlark.NewList(out), nil
}

// okBuiltin implements ok(value): True for a successful bridged outcome,
// False for a failed one or None, True for any plain value.
func okBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs("ok", args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	if _, isNone := value.(starlark.NoneType); isNone || value == nil {
		return starlark.False, nil
	}
	if d, isDict := value.(*starlark.Dict); isDict {
		if flag, found, _ := d.Get(starlark.String("ok")); found {
			return starlark.Bool(bool(flag.Truth())), nil
		}
	}
	return starlark.True, nil
}

// dataBuiltin implements data(value): unwraps a bridged outcome's data
// field; plain values pass through unchanged.
func dataBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs("data", args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	if d, isDict := value.(*starlark.Dict); isDict {
		if _, hasOK, _ := d.Get(starlark.String("ok")); hasOK {
			if payload, found, _ := d.Get(starlark.String("data")); found {
				return payload, nil
			}
			return starlark.None, nil
		}
	}
	return value, nil
}

// errorTextBuiltin implements error_text(value): the error field of a
// failed bridged outcome, "" otherwise.
func errorTextBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs("error_text", args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	if d, isDict := value.(*starlark.Dict); isDict {
		if msg, found, _ := d.Get(starlark.String("error")); found {
			if s, isStr := msg.(starlark.String); isStr {
				return s, nil
			}
			return starlark.String(msg.String()), nil
		}
	}
	return starlark.String(""), nil
}

// lengthOfBuiltin implements length_of(value): len() for anything with a
// length, 0 for everything else. Never raises.
func lengthOfBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs("length_of", args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	if n := starlark.Len(value); n >= 0 {
		return starlark.MakeInt(n), nil
	}
	return starlark.MakeInt(0), nil
}
