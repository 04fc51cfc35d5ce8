package capability

import (
	"context"
	"errors"

	"github.com/jonwraymond/toolfoundation/model"
)

// Common errors for registry operations.
var (
	ErrNotFound          = errors.New("capability not found")
	ErrInvalidDescriptor = errors.New("invalid capability descriptor")
)

// Origin identifies where a capability came from.
type Origin string

const (
	// OriginLocal marks a capability backed by an in-process handler.
	OriginLocal Origin = "local"

	// OriginBridged marks a capability discovered from an external
	// MCP server and adapted to the local calling convention.
	OriginBridged Origin = "bridged"
)

// HandlerFunc is the function signature for capability implementations.
// It takes one argument object and returns any serializable value or an
// error.
//
// Contract:
// - Context: implementations should honor cancellation/deadlines; handlers
//   that ignore ctx are abandoned (not force-cancelled) on timeout.
// - Concurrency: implementations must be safe for concurrent use; a script
//   may fan out any number of calls at once.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Descriptor describes one registered capability.
type Descriptor struct {
	// Tool carries the name, description, and JSON-schema input contract,
	// using the MCP tool shape for both local and bridged capabilities.
	Tool model.Tool

	// Origin tags the capability as local or bridged.
	Origin Origin

	// Source is the bridged source name that provided this capability.
	// Empty for local capabilities. When two sources expose the same
	// namespaced name, Source identifies the winner in later traces.
	Source string

	// Execute invokes the capability.
	Execute HandlerFunc
}

// Name returns the capability's registry key.
func (d Descriptor) Name() string {
	return d.Tool.Name
}
