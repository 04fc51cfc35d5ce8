// Package capability defines the registry of operations reachable from an
// orchestration script.
//
// A capability is one invocable async operation taking a single argument
// object. Capabilities come from two sources: local handler functions
// registered directly, and bridged capabilities discovered from external
// MCP servers (see the mcpbridge subpackage). Both are normalized into the
// same [Descriptor] shape, so the sandbox evaluator dispatches them
// uniformly and tags every trace record with the capability's origin.
//
// A [Registry] is assembled once per session by a composition root and is
// read-only afterwards; it is safe to share across concurrent runs.
package capability
