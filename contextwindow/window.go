// Package contextwindow trims prior-turn history before each model call
// and tracks the cumulative tokens saved by doing so. Only the trimming
// contract is relied upon by callers; the policy here (keep the leading
// system turn, then the most recent turns that fit) can change freely.
package contextwindow

import (
	"fmt"
	"sync"
)

// Turn is one message in the conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EstimateTokens approximates the token cost of a turn's content at four
// bytes per token, with a floor of one token per non-empty turn.
func EstimateTokens(t Turn) int {
	n := len(t.Content) / 4
	if n == 0 && t.Content != "" {
		return 1
	}
	return n
}

// Manager trims turn sequences to a token budget. Safe for concurrent
// use; the saved-tokens counter accumulates across Trim calls.
type Manager struct {
	maxTokens int

	mu    sync.Mutex
	saved int
}

// NewManager creates a Manager with the given per-call token budget.
func NewManager(maxTokens int) (*Manager, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("context window: max tokens must be positive, got %d", maxTokens)
	}
	return &Manager{maxTokens: maxTokens}, nil
}

// Trim returns the turns to send for the next model call: the leading
// system turn (when present) plus the longest recent suffix fitting the
// budget. The estimated cost of every dropped turn is added to the
// saved-tokens counter.
func (m *Manager) Trim(turns []Turn) []Turn {
	if len(turns) == 0 {
		return nil
	}

	var system *Turn
	rest := turns
	if turns[0].Role == "system" {
		system = &turns[0]
		rest = turns[1:]
	}

	budget := m.maxTokens
	if system != nil {
		budget -= EstimateTokens(*system)
	}

	// Walk backward so the most recent turns win.
	cut := len(rest)
	used := 0
	for i := len(rest) - 1; i >= 0; i-- {
		cost := EstimateTokens(rest[i])
		if used+cost > budget {
			break
		}
		used += cost
		cut = i
	}

	dropped := 0
	for _, t := range rest[:cut] {
		dropped += EstimateTokens(t)
	}
	if dropped > 0 {
		m.mu.Lock()
		m.saved += dropped
		m.mu.Unlock()
	}

	kept := make([]Turn, 0, len(rest)-cut+1)
	if system != nil {
		kept = append(kept, *system)
	}
	return append(kept, rest[cut:]...)
}

// SavedTokens reports the cumulative estimated tokens saved by trimming,
// read once at the end of a session for the final metadata payload.
func (m *Manager) SavedTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}
