package sandbox

import (
	"reflect"
	"testing"

	"go.starlark.net/starlark"
)

func TestToStarlarkRoundTrip(t *testing.T) {
	in := map[string]any{
		"name":  "report",
		"count": int64(3),
		"ratio": 0.5,
		"flag":  true,
		"items": []any{"a", int64(1), nil},
		"inner": map[string]any{"deep": "value"},
	}

	out := fromStarlark(toStarlark(in))
	if !reflect.DeepEqual(out, in) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", out, in)
	}
}

func TestToStarlark_StructDegradesViaJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	v := toStarlark(payload{Name: "x", Count: 2})
	d, ok := v.(*starlark.Dict)
	if !ok {
		t.Fatalf("expected dict, got %s", v.Type())
	}
	name, found, _ := d.Get(starlark.String("name"))
	if !found || name != starlark.String("x") {
		t.Errorf("unexpected name: %v", name)
	}
}

func TestDeepCopyArgs_Isolation(t *testing.T) {
	args := map[string]any{
		"nested": map[string]any{"key": "before"},
		"list":   []any{int64(1)},
	}
	snapshot := deepCopyArgs(args)

	args["nested"].(map[string]any)["key"] = "after"
	args["list"].([]any)[0] = int64(99)

	if snapshot["nested"].(map[string]any)["key"] != "before" {
		t.Error("snapshot shares nested map with the original")
	}
	if snapshot["list"].([]any)[0] != int64(1) {
		t.Error("snapshot shares slice with the original")
	}
}

func TestSanitize_PassThrough(t *testing.T) {
	out := sanitize(map[string]any{"n": int64(7)})
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", out)
	}
	if m["n"] != float64(7) {
		t.Errorf("expected 7, got %v", m["n"])
	}
}

func TestSanitize_SalvagesFields(t *testing.T) {
	out := sanitize(map[string]any{
		"good": "value",
		"bad":  func() {},
	})
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", out)
	}
	if m["good"] != "value" {
		t.Errorf("expected salvaged field, got %v", m["good"])
	}
	if _, isString := m["bad"].(string); !isString {
		t.Errorf("expected coerced string for bad field, got %T", m["bad"])
	}
}

func TestSanitize_DiagnosticSubstitute(t *testing.T) {
	type opaque struct {
		Visible string
		Fn      func()
	}
	out := sanitize(opaque{Visible: "x"})
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected diagnostic map, got %T", out)
	}
	if m["unserializable"] == "" {
		t.Error("expected a type name in the diagnostic")
	}
	keys, ok := m["keys"].([]string)
	if !ok {
		t.Fatalf("expected key list, got %T", m["keys"])
	}
	if len(keys) != 2 || keys[0] != "Fn" || keys[1] != "Visible" {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestSanitize_Nil(t *testing.T) {
	if out := sanitize(nil); out != nil {
		t.Errorf("expected nil, got %v", out)
	}
}
