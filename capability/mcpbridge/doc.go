// Package mcpbridge adapts tools discovered from MCP servers into
// capability descriptors.
//
// Each configured source is dialed once at session construction. Its tools
// are snapshotted, namespaced as "<source>:<tool>" to avoid collision with
// local capability names, and wrapped to the single-argument-object calling
// convention. Every bridged call resolves to an [Outcome] tagged variant
// ({ok, data, error}), so orchestration scripts use one set of defensive
// accessors regardless of the server's result shape.
//
// A source that cannot be dialed is reported to the caller, who treats it
// as non-fatal: its capabilities are simply absent from the registry.
package mcpbridge
