package sandbox

import (
	"sync"
	"time"

	"github.com/jonwraymond/codemode/capability"
)

// CallRecord captures one observed capability invocation and its outcome.
// Result and ErrorText are mutually exclusive.
type CallRecord struct {
	// ID uniquely identifies this record.
	ID string `json:"id"`

	// RunID is the owning run.
	RunID string `json:"runId"`

	// Tool is the registry name of the invoked capability.
	Tool string `json:"tool"`

	// Args is a deep-copied snapshot of the argument object.
	Args map[string]any `json:"args,omitempty"`

	// Result holds the capability's return value on success.
	Result any `json:"result,omitempty"`

	// ErrorText holds the failure message when the call errored.
	ErrorText string `json:"error,omitempty"`

	// Origin tags the capability as local or bridged.
	Origin capability.Origin `json:"origin"`

	// Source is the bridged source name, empty for local capabilities.
	Source string `json:"source,omitempty"`

	// Start and End bracket the call's execution.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// DurationMs is the call's execution time in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// OK reports whether the call succeeded.
func (r CallRecord) OK() bool {
	return r.ErrorText == ""
}

// trace is the append-only call log for one run. Records arrive in
// completion order; concurrent completions append safely.
type trace struct {
	mu      sync.Mutex
	records []CallRecord
}

func (t *trace) append(rec CallRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, rec)
}

func (t *trace) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// snapshot returns a caller-owned copy of the records so the trace can be
// read while abandoned calls may still be completing.
func (t *trace) snapshot() []CallRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]CallRecord(nil), t.records...)
}
