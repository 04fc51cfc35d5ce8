// Package session is the composition root: it assembles the capability
// registry from local and bridged sets, wires the discovery layer, and
// runs orchestration scripts under a budget, returning output plus the
// metadata payload consumed by UI and telemetry layers.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/search"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/codemode/capability"
	"github.com/jonwraymond/codemode/capability/mcpbridge"
	"github.com/jonwraymond/codemode/contextwindow"
	"github.com/jonwraymond/codemode/sandbox"
	"github.com/jonwraymond/codemode/savings"
)

// localNamespace is the index namespace for in-process capabilities.
const localNamespace = "local"

// TraceEntry is the per-call trace shape exposed to UI and telemetry
// layers.
type TraceEntry struct {
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args,omitempty"`
	Result     any            `json:"result,omitempty"`
	ErrorText  string         `json:"errorText,omitempty"`
	IsBridged  bool           `json:"isBridged"`
	StartTime  time.Time      `json:"startTime"`
	DurationMs int64          `json:"durationMs"`
}

// Metadata accompanies every run result.
type Metadata struct {
	// ToolCallCount is the number of capability calls the run made.
	ToolCallCount int `json:"toolCallCount"`

	// LocalCount and BridgedCount split ToolCallCount by origin.
	LocalCount   int `json:"localCount"`
	BridgedCount int `json:"bridgedCount"`

	// TokenSavings is the heuristic estimate for this run.
	TokenSavings savings.Estimate `json:"tokenSavings"`

	// SavingsBreakdown is the human-readable rendering of TokenSavings.
	SavingsBreakdown string `json:"savingsBreakdown"`

	// ToolsUsed lists distinct capability names in first-use order.
	ToolsUsed []string `json:"toolsUsed"`

	// PerCallTrace is the full call trace in completion order.
	PerCallTrace []TraceEntry `json:"perCallTrace"`

	// ContextTokensSaved is the context window manager's cumulative
	// counter, present when a Window was configured.
	ContextTokensSaved int `json:"contextTokensSaved,omitempty"`
}

// Result is the final run result returned to the caller.
type Result struct {
	RunID    string         `json:"runId"`
	Status   sandbox.Status `json:"status"`
	Output   any            `json:"output,omitempty"`
	Stdout   string         `json:"stdout,omitempty"`
	Metadata Metadata       `json:"metadata"`
}

// Session owns a registry, its bridged source connections, and the
// governed evaluator. Create with New, release with Close.
type Session struct {
	registry *capability.Registry
	governor *sandbox.Governor
	sources  []*mcpbridge.Source
	window   *contextwindow.Manager
	logger   sandbox.Logger
}

// New assembles a session: locals are registered first, then each
// bridged source is dialed and its tools merged in. An unreachable
// source is logged and skipped so the rest of the registry stays usable.
func New(ctx context.Context, opts Options) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		registry: capability.NewRegistry(),
		window:   opts.Window,
		logger:   opts.Logger,
	}

	for _, l := range opts.Locals {
		d := capability.Descriptor{
			Tool: model.Tool{
				Tool: mcp.Tool{
					Name:        l.Name,
					Description: l.Description,
					InputSchema: l.InputSchema,
				},
				Namespace: localNamespace,
				Tags:      model.NormalizeTags(l.Tags),
			},
			Origin:  capability.OriginLocal,
			Execute: l.Handler,
		}
		if err := s.registry.Register(d); err != nil {
			return nil, err
		}
	}

	for _, cfg := range opts.Sources {
		src, err := mcpbridge.Connect(ctx, cfg)
		if err != nil {
			s.logf("source %s unavailable, skipping: %v", cfg.Name, err)
			continue
		}
		s.sources = append(s.sources, src)
		for _, d := range src.Descriptors() {
			if err := s.registry.Register(d); err != nil {
				s.logf("source %s: skipping tool %s: %v", src.Name(), d.Name(), err)
			}
		}
	}

	idx, docs := s.discovery(opts)

	evaluator, err := sandbox.NewEvaluator(sandbox.Config{
		Registry: s.registry,
		Index:    idx,
		Docs:     docs,
		Logger:   opts.Logger,
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.governor = sandbox.NewGovernor(evaluator, opts.Budget, opts.Logger)

	s.logf("session ready: %d capabilities (%d local, %d bridged), budget %s",
		s.registry.Len(),
		s.registry.CountByOrigin(capability.OriginLocal),
		s.registry.CountByOrigin(capability.OriginBridged),
		s.governor.Budget())
	return s, nil
}

// discovery returns the index and doc store for the evaluator, building
// session-owned in-memory ones when the caller supplied none.
func (s *Session) discovery(opts Options) (index.Index, tooldoc.Store) {
	idx := opts.Index
	docs := opts.Docs
	var owned *tooldoc.InMemoryStore
	if idx == nil {
		idx = index.NewInMemoryIndex(index.IndexOptions{
			Searcher: search.NewBM25Searcher(search.BM25Config{}),
		})
	}
	if docs == nil {
		owned = tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: idx})
		docs = owned
	}

	for _, d := range s.registry.List() {
		tool := d.Tool
		if d.Origin == capability.OriginBridged {
			// The registry key already carries the source prefix;
			// the index re-applies its namespace, so register the
			// bare remote name to keep IDs as "<source>:<tool>".
			tool.Name = strings.TrimPrefix(tool.Name, d.Source+":")
		}
		if err := idx.RegisterTool(tool, model.NewLocalBackend(tool.Namespace+"-"+tool.Name)); err != nil {
			s.logf("index: skipping %s: %v", d.Name(), err)
		}
	}

	if owned != nil {
		for _, l := range opts.Locals {
			if l.Doc.Summary == "" && len(l.Doc.Examples) == 0 {
				continue
			}
			id := localNamespace + ":" + l.Name
			if err := owned.RegisterDoc(id, l.Doc); err != nil {
				s.logf("docs: skipping %s: %v", id, err)
			}
		}
	}
	return idx, docs
}

// Run executes one orchestration script and derives the metadata payload
// from its trace. The Result is populated even when err is non-nil so
// callers can inspect partial traces from failed or timed-out runs.
func (s *Session) Run(ctx context.Context, script string) (Result, error) {
	run, err := s.governor.Run(ctx, script)

	res := Result{
		RunID:    run.RunID,
		Status:   run.Status,
		Output:   run.Output,
		Stdout:   run.Stdout,
		Metadata: s.metadata(run.Trace),
	}
	return res, err
}

func (s *Session) metadata(trace []sandbox.CallRecord) Metadata {
	est := savings.FromTrace(trace)
	md := Metadata{
		ToolCallCount:    len(trace),
		TokenSavings:     est,
		SavingsBreakdown: est.Breakdown(),
		PerCallTrace:     make([]TraceEntry, 0, len(trace)),
	}

	seen := map[string]bool{}
	for _, rec := range trace {
		if rec.Origin == capability.OriginBridged {
			md.BridgedCount++
		} else {
			md.LocalCount++
		}
		if !seen[rec.Tool] {
			seen[rec.Tool] = true
			md.ToolsUsed = append(md.ToolsUsed, rec.Tool)
		}
		md.PerCallTrace = append(md.PerCallTrace, TraceEntry{
			ToolName:   rec.Tool,
			Args:       rec.Args,
			Result:     rec.Result,
			ErrorText:  rec.ErrorText,
			IsBridged:  rec.Origin == capability.OriginBridged,
			StartTime:  rec.Start,
			DurationMs: rec.DurationMs,
		})
	}

	if s.window != nil {
		md.ContextTokensSaved = s.window.SavedTokens()
	}
	return md
}

// Capabilities lists the registry contents in registration order.
func (s *Session) Capabilities() []capability.Descriptor {
	return s.registry.List()
}

// Close releases every bridged source connection.
func (s *Session) Close() error {
	var errs []error
	for _, src := range s.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.sources = nil
	return errors.Join(errs...)
}

func (s *Session) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Logf(format, args...)
	}
}
