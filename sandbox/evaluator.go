package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/jonwraymond/codemode/capability"
)

// outputGlobal is the script global that carries the run's result back to
// the host. Scripts that never assign it fall back to trace-derived output.
const outputGlobal = "__out"

// scriptFileOptions enables the imperative dialect orchestration scripts
// are written in: set literals, while loops, top-level control flow, and
// reassignable globals.
var scriptFileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Config configures an Evaluator.
//
// Contract:
//   - Registry is required; it supplies every callable the script sees.
//   - Index and Docs are optional. When both are nil the discovery
//     builtins (search_tools, describe_tool, tool_examples) are absent
//     from the script environment.
//   - Logger may be nil to disable logging.
type Config struct {
	// Registry holds the capabilities exposed to scripts.
	Registry *capability.Registry

	// Index enables the search_tools builtin when non-nil.
	Index index.Index

	// Docs enables the describe_tool and tool_examples builtins when
	// non-nil.
	Docs tooldoc.Store

	// Logger receives per-call diagnostics. Optional.
	Logger Logger
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrConfiguration)
	}
	if c.Registry == nil {
		return fmt.Errorf("%w: registry is required", ErrConfiguration)
	}
	return nil
}

// Evaluator executes orchestration scripts against a capability registry.
// Runs are serialized; each run gets a fresh environment and trace, so no
// state leaks between consecutive Execute calls.
type Evaluator struct {
	mu  sync.Mutex
	cfg Config
}

// NewEvaluator creates an Evaluator from the given configuration.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{cfg: cfg}, nil
}

// Execute runs one script to completion under ctx. The returned Result
// carries the trace even when err is non-nil; callers distinguish script
// failures (ErrScript) from budget exhaustion (ErrTimeout) with errors.Is.
func (e *Evaluator) Execute(ctx context.Context, script string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := newRunState(e.cfg.Registry, e.cfg.Logger)

	thread := &starlark.Thread{
		Name: "run-" + r.id,
		Print: func(_ *starlark.Thread, msg string) {
			r.printLine(msg)
		},
	}

	// The watchdog turns context cancellation into a Starlark-level
	// cancellation so even a pure computation loop stops promptly.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("execution cancelled: " + ctx.Err().Error())
		case <-watchdogDone:
		}
	}()

	logf(e.cfg.Logger, "run %s starting (%d capabilities)", r.id, e.cfg.Registry.Len())

	start := time.Now()
	globals, execErr := starlark.ExecFileOptions(scriptFileOptions, thread, "orchestration.star", script, e.predeclared(ctx, r))

	res := Result{
		RunID:      r.id,
		Trace:      r.trace.snapshot(),
		Stdout:     r.stdoutString(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if execErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				res.Status = StatusTimedOut
				logf(e.cfg.Logger, "run %s timed out after %dms with %d calls traced", r.id, res.DurationMs, len(res.Trace))
				return res, fmt.Errorf("%w: run %s", ErrTimeout, r.id)
			}
			res.Status = StatusFailed
			return res, ctxErr
		}
		res.Status = StatusFailed
		logf(e.cfg.Logger, "run %s failed: %v", r.id, execErr)
		return res, scriptError(execErr)
	}

	res.Status = StatusCompleted
	output := fromStarlark(globals[outputGlobal])
	if output == nil {
		output = fallbackOutput(res.Trace)
	}
	res.Output = sanitize(output)
	logf(e.cfg.Logger, "run %s completed in %dms with %d calls", r.id, res.DurationMs, len(res.Trace))
	return res, nil
}

// predeclared builds the script environment for one run: the helper
// library, one builtin per identifier-safe capability, the generic
// call/try_call/spawn/wait/gather entry points, and the discovery
// builtins when an index or doc store is configured.
func (e *Evaluator) predeclared(ctx context.Context, r *runState) starlark.StringDict {
	env := helperBuiltins()

	env["call"] = starlark.NewBuiltin("call", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		name, callArgs, err := namedCallArgs("call", args, kwargs)
		if err != nil {
			return nil, err
		}
		d, ok := r.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return invokeBuiltin(ctx, r, d, callArgs)
	})

	env["try_call"] = starlark.NewBuiltin("try_call", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		name, callArgs, err := namedCallArgs("try_call", args, kwargs)
		if err != nil {
			return nil, err
		}
		d, ok := r.registry.Get(name)
		if !ok {
			return failureDict(fmt.Sprintf("capability not found: %s", name)), nil
		}
		value, callErr := r.invoke(ctx, d, callArgs)
		if callErr != nil {
			return failureDict(callErr.Error()), nil
		}
		return toStarlark(value), nil
	})

	env["spawn"] = starlark.NewBuiltin("spawn", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		name, callArgs, err := namedCallArgs("spawn", args, kwargs)
		if err != nil {
			return nil, err
		}
		f, err := r.spawn(ctx, name, callArgs)
		if err != nil {
			return nil, err
		}
		return f, nil
	})

	env["wait"] = starlark.NewBuiltin("wait", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var v starlark.Value
		if err := starlark.UnpackPositionalArgs("wait", args, kwargs, 1, &v); err != nil {
			return nil, err
		}
		f, ok := v.(*future)
		if !ok {
			return nil, fmt.Errorf("wait: got %s, want future", v.Type())
		}
		value, err := f.await(ctx)
		if err != nil {
			return nil, err
		}
		return toStarlark(value), nil
	})

	env["gather"] = starlark.NewBuiltin("gather", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("gather: unexpected keyword arguments")
		}
		futures := args
		if len(args) == 1 {
			if list, ok := args[0].(*starlark.List); ok {
				futures = make(starlark.Tuple, list.Len())
				for i := 0; i < list.Len(); i++ {
					futures[i] = list.Index(i)
				}
			}
		}
		out := make([]starlark.Value, 0, len(futures))
		for _, v := range futures {
			f, ok := v.(*future)
			if !ok {
				return nil, fmt.Errorf("gather: got %s, want future", v.Type())
			}
			value, err := f.await(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, toStarlark(value))
		}
		return starlark.NewList(out), nil
	})

	if e.cfg.Index != nil {
		env["search_tools"] = starlark.NewBuiltin("search_tools", e.searchToolsBuiltin())
	}
	if e.cfg.Docs != nil {
		env["describe_tool"] = starlark.NewBuiltin("describe_tool", e.describeToolBuiltin())
		env["tool_examples"] = starlark.NewBuiltin("tool_examples", e.toolExamplesBuiltin())
	}

	// Identifier-safe capability names become direct builtins and win
	// over any helper of the same name. Bridged names with a source
	// prefix stay reachable through call/try_call/spawn.
	for _, d := range e.cfg.Registry.List() {
		if !isIdentifier(d.Name()) {
			continue
		}
		d := d
		env[d.Name()] = starlark.NewBuiltin(d.Name(), func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			callArgs, err := callArgsFrom(d.Name(), args, kwargs)
			if err != nil {
				return nil, err
			}
			return invokeBuiltin(ctx, r, d, callArgs)
		})
	}

	return env
}

// invokeBuiltin runs a capability through the trace interception and
// raises its error into the script. An uncaught error fails the run.
func invokeBuiltin(ctx context.Context, r *runState, d capability.Descriptor, args map[string]any) (starlark.Value, error) {
	value, err := r.invoke(ctx, d, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name(), err)
	}
	return toStarlark(value), nil
}

func (e *Evaluator) searchToolsBuiltin() func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var query string
		limit := 10
		if err := starlark.UnpackArgs("search_tools", args, kwargs, "query", &query, "limit?", &limit); err != nil {
			return nil, err
		}
		summaries, err := e.cfg.Index.Search(query, limit)
		if err != nil {
			return nil, fmt.Errorf("search_tools: %w", err)
		}
		out := make([]starlark.Value, 0, len(summaries))
		for _, s := range summaries {
			entry := map[string]any{
				"id":          s.ID,
				"name":        s.Name,
				"namespace":   s.Namespace,
				"description": s.ShortDescription,
				"tags":        anySlice(s.Tags),
			}
			out = append(out, toStarlark(entry))
		}
		return starlark.NewList(out), nil
	}
}

func (e *Evaluator) describeToolBuiltin() func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var id string
		full := true
		if err := starlark.UnpackArgs("describe_tool", args, kwargs, "id", &id, "full?", &full); err != nil {
			return nil, err
		}
		level := tooldoc.DetailFull
		if !full {
			level = tooldoc.DetailSummary
		}
		doc, err := e.cfg.Docs.DescribeTool(id, level)
		if err != nil {
			return nil, fmt.Errorf("describe_tool: %w", err)
		}
		if out, ok := roundTripJSON(doc); ok {
			return toStarlark(out), nil
		}
		return toStarlark(map[string]any{"summary": doc.Summary}), nil
	}
}

func (e *Evaluator) toolExamplesBuiltin() func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var id string
		maxExamples := 3
		if err := starlark.UnpackArgs("tool_examples", args, kwargs, "id", &id, "max?", &maxExamples); err != nil {
			return nil, err
		}
		examples, err := e.cfg.Docs.ListExamples(id, maxExamples)
		if err != nil {
			return nil, fmt.Errorf("tool_examples: %w", err)
		}
		out := make([]starlark.Value, 0, len(examples))
		for _, ex := range examples {
			if v, ok := roundTripJSON(ex); ok {
				out = append(out, toStarlark(v))
			}
		}
		return starlark.NewList(out), nil
	}
}

// namedCallArgs unpacks (name, args_dict=None, **kwargs) for the generic
// call-by-name builtins.
func namedCallArgs(builtin string, args starlark.Tuple, kwargs []starlark.Tuple) (string, map[string]any, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", nil, fmt.Errorf("%s: want (name, args=None), got %d positional arguments", builtin, len(args))
	}
	name, ok := starlark.AsString(args[0])
	if !ok {
		return "", nil, fmt.Errorf("%s: name must be a string, got %s", builtin, args[0].Type())
	}
	callArgs, err := callArgsFrom(builtin, args[1:], kwargs)
	if err != nil {
		return "", nil, err
	}
	return name, callArgs, nil
}

// callArgsFrom merges an optional positional dict with keyword arguments
// into the plain-Go argument object handed to capabilities.
func callArgsFrom(builtin string, args starlark.Tuple, kwargs []starlark.Tuple) (map[string]any, error) {
	out := map[string]any{}
	switch len(args) {
	case 0:
	case 1:
		switch v := args[0].(type) {
		case starlark.NoneType:
		case *starlark.Dict:
			if m, ok := fromStarlark(v).(map[string]any); ok {
				out = m
			}
		default:
			return nil, fmt.Errorf("%s: arguments must be a dict, got %s", builtin, v.Type())
		}
	default:
		return nil, fmt.Errorf("%s: at most one positional argument object", builtin)
	}
	for _, kv := range kwargs {
		key, _ := starlark.AsString(kv[0])
		out[key] = fromStarlark(kv[1])
	}
	return out, nil
}

func failureDict(msg string) *starlark.Dict {
	d := starlark.NewDict(2)
	_ = d.SetKey(starlark.String("ok"), starlark.False)
	_ = d.SetKey(starlark.String("error"), starlark.String(msg))
	return d
}

func anySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

// isIdentifier reports whether name can be bound directly as a script
// global.
func isIdentifier(name string) bool {
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return name != ""
}

// scriptError maps the interpreter's error types onto ScriptError with
// the best available source position.
func scriptError(err error) error {
	switch e := err.(type) {
	case *starlark.EvalError:
		se := &ScriptError{Message: e.Msg, Err: err}
		if n := len(e.CallStack); n > 0 {
			pos := e.CallStack[n-1].Pos
			se.Line = int(pos.Line)
			se.Column = int(pos.Col)
		}
		return se
	case syntax.Error:
		return &ScriptError{Message: e.Msg, Line: int(e.Pos.Line), Column: int(e.Pos.Col), Err: err}
	case resolve.ErrorList:
		if len(e) > 0 {
			first := e[0]
			return &ScriptError{Message: first.Msg, Line: int(first.Pos.Line), Column: int(first.Pos.Col), Err: err}
		}
	}
	return &ScriptError{Message: err.Error(), Err: err}
}
