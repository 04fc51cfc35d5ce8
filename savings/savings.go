// Package savings estimates the model-token cost avoided by batching
// capability calls into one orchestration script instead of one model
// turn per call. The figures are a documented heuristic, not measured
// truth; the formula lives here so it can be revised without touching
// the evaluator or the trace.
package savings

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonwraymond/codemode/sandbox"
)

// Heuristic constants. Payloads are counted at roughly four bytes per
// token; the per-turn constants approximate the framing a model turn
// costs beyond the payload itself.
const (
	bytesPerToken = 4

	// roundTripContextTokens approximates re-sending accumulated context
	// on each additional model turn.
	roundTripContextTokens = 150

	// toolCallOverheadTokens approximates the request/response framing
	// of a single tool call inside a model turn.
	toolCallOverheadTokens = 60

	// modelDecisionTokens approximates the reasoning the model spends
	// deciding each follow-up call.
	modelDecisionTokens = 80
)

// Estimate is the per-run savings breakdown. Total is always the sum of
// the four components; a zero-call run yields the zero value.
type Estimate struct {
	// IntermediateResultTokens counts the intermediate call results the
	// model never had to read back.
	IntermediateResultTokens int `json:"intermediateResultTokens"`

	// RoundTripContextTokens counts context that would have been resent
	// on each avoided model turn.
	RoundTripContextTokens int `json:"roundTripContextTokens"`

	// ToolCallOverheadTokens counts per-call request framing.
	ToolCallOverheadTokens int `json:"toolCallOverheadTokens"`

	// ModelDecisionTokens counts the avoided per-call decision turns.
	ModelDecisionTokens int `json:"modelDecisionTokens"`
}

// Total returns the sum of the four components.
func (e Estimate) Total() int {
	return e.IntermediateResultTokens +
		e.RoundTripContextTokens +
		e.ToolCallOverheadTokens +
		e.ModelDecisionTokens
}

// FromTrace derives the estimate from a completed run's trace.
//
// With n calls batched into one script turn, the single-call-per-turn
// alternative would have cost n-1 extra round trips and decisions, one
// framing block per call, and a read-back of every intermediate result
// (all but the last call's, which the model would read either way).
func FromTrace(records []sandbox.CallRecord) Estimate {
	n := len(records)
	if n == 0 {
		return Estimate{}
	}

	var intermediateBytes int
	for i, rec := range records {
		if i == n-1 {
			continue
		}
		intermediateBytes += payloadBytes(rec)
	}

	return Estimate{
		IntermediateResultTokens: intermediateBytes / bytesPerToken,
		RoundTripContextTokens:   (n - 1) * roundTripContextTokens,
		ToolCallOverheadTokens:   n * toolCallOverheadTokens,
		ModelDecisionTokens:      (n - 1) * modelDecisionTokens,
	}
}

// payloadBytes sizes a call's result (or error text) as serialized JSON.
func payloadBytes(rec sandbox.CallRecord) int {
	if !rec.OK() {
		return len(rec.ErrorText)
	}
	data, err := json.Marshal(rec.Result)
	if err != nil {
		return 0
	}
	return len(data)
}

// Breakdown renders the estimate as a human-readable multi-line string
// for the session metadata payload.
func (e Estimate) Breakdown() string {
	titler := cases.Title(language.English)
	var b strings.Builder
	for _, row := range []struct {
		label  string
		tokens int
	}{
		{"intermediate results", e.IntermediateResultTokens},
		{"round-trip context", e.RoundTripContextTokens},
		{"tool call overhead", e.ToolCallOverheadTokens},
		{"model decisions", e.ModelDecisionTokens},
	} {
		fmt.Fprintf(&b, "%s: ~%d tokens\n", titler.String(row.label), row.tokens)
	}
	fmt.Fprintf(&b, "Total: ~%d tokens saved", e.Total())
	return b.String()
}
