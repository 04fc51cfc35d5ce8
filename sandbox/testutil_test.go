package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"

	"github.com/jonwraymond/codemode/capability"
)

// testRegistry builds a registry with the capabilities the evaluator
// tests exercise: arithmetic, a deliberate failure, and a slow call.
func testRegistry(t *testing.T) (*capability.Registry, *callCounter) {
	t.Helper()
	counter := &callCounter{}
	reg := capability.NewRegistry()

	caps := []capability.Descriptor{
		{
			Origin: capability.OriginLocal,
			Execute: func(_ context.Context, args map[string]any) (any, error) {
				counter.inc("double")
				v, err := numberArg(args, "value")
				if err != nil {
					return nil, err
				}
				return map[string]any{"value": v * 2}, nil
			},
		},
		{
			Origin: capability.OriginLocal,
			Execute: func(_ context.Context, args map[string]any) (any, error) {
				counter.inc("add")
				a, err := numberArg(args, "a")
				if err != nil {
					return nil, err
				}
				b, err := numberArg(args, "b")
				if err != nil {
					return nil, err
				}
				return map[string]any{"sum": a + b}, nil
			},
		},
		{
			Origin: capability.OriginLocal,
			Execute: func(_ context.Context, _ map[string]any) (any, error) {
				counter.inc("fail_always")
				return nil, errors.New("deliberate failure")
			},
		},
		{
			Origin: capability.OriginLocal,
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				counter.inc("sleepy")
				ms, err := numberArg(args, "ms")
				if err != nil {
					ms = 50
				}
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
					return map[string]any{"slept": ms}, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
	}
	names := []string{"double", "add", "fail_always", "sleepy"}
	for i, d := range caps {
		d.Tool.Name = names[i]
		if err := reg.Register(d); err != nil {
			t.Fatalf("register %s: %v", names[i], err)
		}
	}
	return reg, counter
}

func newTestEvaluator(t *testing.T, cfg Config) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(cfg)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return e
}

func numberArg(args map[string]any, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number, got %T", key, args[key])
	}
}

// callCounter tracks invocations per capability across goroutines.
type callCounter struct {
	mu     sync.Mutex
	counts map[string]int
	total  atomic.Int64
}

func (c *callCounter) inc(name string) {
	c.total.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[name]++
}

func (c *callCounter) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// mockIndex implements index.Index for testing.
type mockIndex struct {
	mu sync.Mutex

	searchResult []index.Summary
	searchErr    error

	searchCalls []searchCall
}

type searchCall struct {
	query string
	limit int
}

func (m *mockIndex) Search(query string, limit int) ([]index.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls = append(m.searchCalls, searchCall{query, limit})
	return m.searchResult, m.searchErr
}

func (m *mockIndex) SearchPage(query string, limit int, _ string) ([]index.Summary, string, error) {
	results, err := m.Search(query, limit)
	return results, "", err
}

func (m *mockIndex) ListNamespaces() ([]string, error) {
	return nil, nil
}

func (m *mockIndex) ListNamespacesPage(limit int, _ string) ([]string, string, error) {
	return nil, "", nil
}

func (m *mockIndex) GetTool(id string) (model.Tool, model.ToolBackend, error) {
	return model.Tool{}, model.ToolBackend{}, fmt.Errorf("not found: %s", id)
}

func (m *mockIndex) GetAllBackends(_ string) ([]model.ToolBackend, error) {
	return nil, nil
}

func (m *mockIndex) RegisterTool(_ model.Tool, _ model.ToolBackend) error {
	return nil
}

func (m *mockIndex) RegisterTools(_ []index.ToolRegistration) error {
	return nil
}

func (m *mockIndex) RegisterToolsFromMCP(_ string, _ []model.Tool) error {
	return nil
}

func (m *mockIndex) UnregisterBackend(_ string, _ model.BackendKind, _ string) error {
	return nil
}

// mockStore implements tooldoc.Store for testing.
type mockStore struct {
	mu sync.Mutex

	describeResult tooldoc.ToolDoc
	describeErr    error
	examplesResult []tooldoc.ToolExample

	describeCalls []describeCall
}

type describeCall struct {
	id    string
	level tooldoc.DetailLevel
}

func (m *mockStore) DescribeTool(id string, level tooldoc.DetailLevel) (tooldoc.ToolDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.describeCalls = append(m.describeCalls, describeCall{id, level})
	return m.describeResult, m.describeErr
}

func (m *mockStore) ListExamples(id string, maxExamples int) ([]tooldoc.ToolExample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.examplesResult, nil
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *mockLogger) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}
