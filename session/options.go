package session

import (
	"fmt"
	"time"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/tooldoc"

	"github.com/jonwraymond/codemode/capability"
	"github.com/jonwraymond/codemode/capability/mcpbridge"
	"github.com/jonwraymond/codemode/contextwindow"
	"github.com/jonwraymond/codemode/sandbox"
)

// LocalCapability defines one in-process capability to expose to scripts.
type LocalCapability struct {
	// Name is the registry key and the script-visible callable name.
	Name string

	// Description is surfaced through discovery.
	Description string

	// InputSchema is the JSON-schema-shaped input contract.
	InputSchema map[string]any

	// Tags feed discovery search.
	Tags []string

	// Doc is the optional documentation entry registered alongside the
	// capability when the session owns the doc store.
	Doc tooldoc.DocEntry

	// Handler executes the capability.
	Handler capability.HandlerFunc
}

// Options configures a Session.
//
// Contract:
//   - At least one local capability or bridged source is required.
//   - Every local capability needs a Name and a Handler.
//   - Index, Docs, Window, and Logger are optional; nil Index/Docs make
//     the session build its own in-memory discovery layer.
type Options struct {
	// Locals are the in-process capabilities.
	Locals []LocalCapability

	// Sources are the external MCP servers to bridge. A source that
	// cannot be reached is logged and skipped; it never blocks the
	// locals or the other sources.
	Sources []mcpbridge.SourceConfig

	// Budget is the per-run wall-clock budget. Zero selects
	// sandbox.DefaultBudget.
	Budget time.Duration

	// Index overrides the session-owned in-memory search index.
	Index index.Index

	// Docs overrides the session-owned in-memory doc store.
	Docs tooldoc.Store

	// Window, when set, contributes its cumulative saved-tokens counter
	// to each run's metadata.
	Window *contextwindow.Manager

	// Logger receives session and per-call diagnostics. Optional.
	Logger sandbox.Logger
}

// Validate checks that the options describe a usable session.
func (o *Options) Validate() error {
	if len(o.Locals) == 0 && len(o.Sources) == 0 {
		return fmt.Errorf("%w: at least one capability or source is required", sandbox.ErrConfiguration)
	}
	for i, l := range o.Locals {
		if l.Name == "" {
			return fmt.Errorf("%w: local capability %d has no name", sandbox.ErrConfiguration, i)
		}
		if l.Handler == nil {
			return fmt.Errorf("%w: local capability %q has no handler", sandbox.ErrConfiguration, l.Name)
		}
	}
	for i, s := range o.Sources {
		if s.Name == "" {
			return fmt.Errorf("%w: source %d has no name", sandbox.ErrConfiguration, i)
		}
	}
	return nil
}
