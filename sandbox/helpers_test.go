package sandbox

import (
	"context"
	"testing"
)

// runScript executes a script and returns the sanitized output. Helper
// behavior is observable entirely through __out.
func runScript(t *testing.T, script string) any {
	t.Helper()
	reg, _ := testRegistry(t)
	e := newTestEvaluator(t, Config{Registry: reg})
	res, err := e.Execute(context.Background(), script)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	return res.Output
}

func TestHelper_GetPath(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   any
	}{
		{
			name:   "nested dict",
			script: `__out = {"v": get_path({"a": {"b": {"c": 7}}}, "a.b.c")}`,
			want:   float64(7),
		},
		{
			name:   "list index",
			script: `__out = {"v": get_path({"items": ["x", "y"]}, "items.1")}`,
			want:   "y",
		},
		{
			name:   "missing key uses default",
			script: `__out = {"v": get_path({"a": 1}, "a.b.c", default="fallback")}`,
			want:   "fallback",
		},
		{
			name:   "bad index uses default",
			script: `__out = {"v": get_path({"items": []}, "items.5", default=-1)}`,
			want:   float64(-1),
		},
		{
			name:   "traversal through non-container uses default",
			script: `__out = {"v": get_path({"a": "leaf"}, "a.b", default=None)}`,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runScript(t, tt.script).(map[string]any)
			if out["v"] != tt.want {
				t.Errorf("got %v (%T), want %v", out["v"], out["v"], tt.want)
			}
		})
	}
}

func TestHelper_AsList(t *testing.T) {
	out := runScript(t, `
__out = {
    "from_list": as_list([1, 2]),
    "from_none": as_list(None),
    "from_scalar": as_list("x"),
}
`).(map[string]any)

	if got := out["from_list"].([]any); len(got) != 2 {
		t.Errorf("expected passthrough list, got %v", got)
	}
	if got := out["from_none"].([]any); len(got) != 0 {
		t.Errorf("expected empty list for None, got %v", got)
	}
	got := out["from_scalar"].([]any)
	if len(got) != 1 || got[0] != "x" {
		t.Errorf("expected one-element list, got %v", got)
	}
}

func TestHelper_SafeMapDropsFailures(t *testing.T) {
	out := runScript(t, `
items = [{"n": 1}, "broken", {"n": 3}]
__out = {"v": safe_map(items, lambda item: item["n"] * 10)}
`).(map[string]any)

	got := out["v"].([]any)
	if len(got) != 2 || got[0] != float64(10) || got[1] != float64(30) {
		t.Errorf("expected failing items dropped, got %v", got)
	}
}

func TestHelper_SafeFilter(t *testing.T) {
	out := runScript(t, `
items = [{"keep": True}, {"keep": False}, "broken", {"keep": True}]
__out = {"v": safe_filter(items, lambda item: item["keep"])}
`).(map[string]any)

	got := out["v"].([]any)
	if len(got) != 2 {
		t.Errorf("expected 2 kept items, got %v", got)
	}
}

func TestHelper_OutcomeAccessors(t *testing.T) {
	out := runScript(t, `
success = {"ok": True, "data": {"value": 5}}
failure = {"ok": False, "error": "boom"}
plain = {"value": 9}
__out = {
    "ok_success": ok(success),
    "ok_failure": ok(failure),
    "ok_plain": ok(plain),
    "ok_none": ok(None),
    "data_success": data(success),
    "data_failure": data(failure),
    "data_plain": data(plain),
    "err_failure": error_text(failure),
    "err_plain": error_text(plain),
}
`).(map[string]any)

	if out["ok_success"] != true || out["ok_failure"] != false {
		t.Errorf("unexpected ok() on outcomes: %v / %v", out["ok_success"], out["ok_failure"])
	}
	if out["ok_plain"] != true || out["ok_none"] != false {
		t.Errorf("unexpected ok() on plain values: %v / %v", out["ok_plain"], out["ok_none"])
	}
	if d := out["data_success"].(map[string]any); d["value"] != float64(5) {
		t.Errorf("unexpected data(): %v", d)
	}
	if out["data_failure"] != nil {
		t.Errorf("expected None for failed outcome data, got %v", out["data_failure"])
	}
	if d := out["data_plain"].(map[string]any); d["value"] != float64(9) {
		t.Errorf("expected plain value passthrough, got %v", d)
	}
	if out["err_failure"] != "boom" || out["err_plain"] != "" {
		t.Errorf("unexpected error_text: %v / %v", out["err_failure"], out["err_plain"])
	}
}

func TestHelper_LengthOf(t *testing.T) {
	out := runScript(t, `
__out = {
    "list": length_of([1, 2, 3]),
    "string": length_of("abcd"),
    "number": length_of(42),
    "none": length_of(None),
}
`).(map[string]any)

	if out["list"] != float64(3) || out["string"] != float64(4) {
		t.Errorf("unexpected lengths: %v / %v", out["list"], out["string"])
	}
	if out["number"] != float64(0) || out["none"] != float64(0) {
		t.Errorf("expected 0 for lengthless values, got %v / %v", out["number"], out["none"])
	}
}
