package contextwindow

import (
	"strings"
	"testing"
)

func turn(role string, tokens int) Turn {
	return Turn{Role: role, Content: strings.Repeat("x", tokens*4)}
}

func TestNewManager_RejectsNonPositiveBudget(t *testing.T) {
	if _, err := NewManager(0); err == nil {
		t.Error("expected error for zero budget")
	}
	if _, err := NewManager(-5); err == nil {
		t.Error("expected error for negative budget")
	}
}

func TestTrim_EverythingFits(t *testing.T) {
	m, err := NewManager(100)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	turns := []Turn{
		turn("system", 10),
		turn("user", 20),
		turn("assistant", 20),
	}
	out := m.Trim(turns)
	if len(out) != 3 {
		t.Fatalf("expected all 3 turns kept, got %d", len(out))
	}
	if m.SavedTokens() != 0 {
		t.Errorf("expected 0 saved tokens, got %d", m.SavedTokens())
	}
}

func TestTrim_DropsOldestKeepsSystem(t *testing.T) {
	m, err := NewManager(50)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	turns := []Turn{
		turn("system", 10),
		turn("user", 30),      // dropped
		turn("assistant", 30), // dropped
		turn("user", 20),
		turn("assistant", 15),
	}
	out := m.Trim(turns)

	if len(out) != 3 {
		t.Fatalf("expected 3 turns kept, got %d", len(out))
	}
	if out[0].Role != "system" {
		t.Errorf("expected leading system turn, got %q", out[0].Role)
	}
	if out[1] != turns[3] || out[2] != turns[4] {
		t.Error("expected the most recent turns to be kept")
	}
	if m.SavedTokens() != 60 {
		t.Errorf("expected 60 saved tokens, got %d", m.SavedTokens())
	}
}

func TestTrim_SavedAccumulatesAcrossCalls(t *testing.T) {
	m, err := NewManager(25)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	turns := []Turn{
		turn("user", 20),
		turn("assistant", 20),
	}
	m.Trim(turns)
	m.Trim(turns)

	if m.SavedTokens() != 40 {
		t.Errorf("expected 40 saved tokens across calls, got %d", m.SavedTokens())
	}
}

func TestTrim_NoSystemTurn(t *testing.T) {
	m, err := NewManager(30)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	turns := []Turn{
		turn("user", 25),
		turn("assistant", 25),
	}
	out := m.Trim(turns)
	if len(out) != 1 || out[0] != turns[1] {
		t.Errorf("expected only the latest turn, got %v", out)
	}
}

func TestTrim_Empty(t *testing.T) {
	m, err := NewManager(10)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if out := m.Trim(nil); out != nil {
		t.Errorf("expected nil for empty history, got %v", out)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(Turn{Content: strings.Repeat("a", 40)}); got != 10 {
		t.Errorf("expected 10 tokens, got %d", got)
	}
	if got := EstimateTokens(Turn{Content: "ab"}); got != 1 {
		t.Errorf("expected floor of 1 token, got %d", got)
	}
	if got := EstimateTokens(Turn{}); got != 0 {
		t.Errorf("expected 0 tokens for empty turn, got %d", got)
	}
}
