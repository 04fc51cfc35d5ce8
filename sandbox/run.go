package sandbox

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/codemode/capability"
)

// Status is the terminal state of a sandbox run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed-out"
)

// Result is the outcome of executing one orchestration script.
type Result struct {
	// RunID identifies the run; every trace record carries it.
	RunID string `json:"runId"`

	// Status is the run's terminal state.
	Status Status `json:"status"`

	// Output is the script's result after defensive serialization:
	// the __out global when set, otherwise a value derived from the
	// trace (see fallbackOutput).
	Output any `json:"output,omitempty"`

	// Trace lists every observed capability call in completion order.
	// Retained on failed and timed-out runs for diagnostics.
	Trace []CallRecord `json:"trace,omitempty"`

	// Stdout is the output captured from print().
	Stdout string `json:"stdout,omitempty"`

	// DurationMs is the total run time in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// runState is the mutable per-run state. A fresh runState is created for
// every Execute call and discarded when it returns, which is what clears
// the trace and counters between runs.
type runState struct {
	id       string
	registry *capability.Registry
	trace    *trace
	logger   Logger

	stdoutMu sync.Mutex
	stdout   strings.Builder
}

func newRunState(registry *capability.Registry, logger Logger) *runState {
	return &runState{
		id:       uuid.NewString(),
		registry: registry,
		trace:    &trace{},
		logger:   logger,
	}
}

// invoke is the interception point: it records start time and an argument
// snapshot before delegating, records the outcome after, appends exactly
// one CallRecord, then passes the result or error through unchanged.
func (r *runState) invoke(ctx context.Context, d capability.Descriptor, args map[string]any) (any, error) {
	rec := CallRecord{
		ID:     uuid.NewString(),
		RunID:  r.id,
		Tool:   d.Name(),
		Args:   deepCopyArgs(args),
		Origin: d.Origin,
		Source: d.Source,
		Start:  time.Now(),
	}

	value, err := d.Execute(ctx, args)

	rec.End = time.Now()
	rec.DurationMs = rec.End.Sub(rec.Start).Milliseconds()
	if err != nil {
		rec.ErrorText = err.Error()
	} else {
		rec.Result = deepCopyValue(value)
	}
	r.trace.append(rec)

	logf(r.logger, "call %s origin=%s ok=%v duration=%dms", rec.Tool, rec.Origin, rec.OK(), rec.DurationMs)
	return value, err
}

func (r *runState) printLine(msg string) {
	r.stdoutMu.Lock()
	defer r.stdoutMu.Unlock()
	r.stdout.WriteString(msg)
	r.stdout.WriteString("\n")
}

func (r *runState) stdoutString() string {
	r.stdoutMu.Lock()
	defer r.stdoutMu.Unlock()
	return r.stdout.String()
}

// fallbackOutput derives a best-effort output from the trace when the
// script omits __out: the single call's result when exactly one call
// occurred, otherwise a summary of every call plus the last completed
// call's result. Avoids returning an empty turn.
func fallbackOutput(records []CallRecord) any {
	switch len(records) {
	case 0:
		return nil
	case 1:
		return records[0].Result
	}

	results := make([]any, 0, len(records))
	for _, rec := range records {
		entry := map[string]any{
			"tool": rec.Tool,
			"ok":   rec.OK(),
		}
		if rec.OK() {
			entry["result"] = rec.Result
		} else {
			entry["error"] = rec.ErrorText
		}
		results = append(results, entry)
	}

	return map[string]any{
		"calls":      len(records),
		"results":    results,
		"lastResult": records[len(records)-1].Result,
	}
}
