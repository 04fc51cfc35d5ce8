// Package sandbox executes model-authored orchestration scripts against a
// capability registry. Scripts are written in a Starlark dialect with
// while loops and top-level control flow enabled; every capability call
// made by a script is intercepted, timed, and recorded in a per-run trace.
//
// The Evaluator serializes runs and gives each one a fresh environment,
// so no globals, trace records, or futures survive between runs. The
// Governor layers a wall-clock budget on top; a run that exhausts it is
// stopped and reported, never retried.
package sandbox
