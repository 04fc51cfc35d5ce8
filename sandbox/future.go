package sandbox

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"
)

// future is the script-visible handle for an in-flight capability call
// started with spawn(). The call runs on its own goroutine; wait() and
// gather() are the script's suspension points. A future that is never
// waited on is abandoned with the run.
type future struct {
	tool  string
	done  chan struct{}
	value any
	err   error
}

var _ starlark.Value = (*future)(nil)

func (f *future) String() string        { return fmt.Sprintf("<future %s>", f.tool) }
func (f *future) Type() string          { return "future" }
func (f *future) Freeze()               {}
func (f *future) Truth() starlark.Bool  { return starlark.True }
func (f *future) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: future") }

// spawn starts the capability call and returns immediately.
func (r *runState) spawn(ctx context.Context, tool string, args map[string]any) (*future, error) {
	d, ok := r.registry.Get(tool)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tool)
	}

	f := &future{tool: tool, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = r.invoke(ctx, d, args)
	}()
	return f, nil
}

// await blocks until the future completes or the run is cancelled.
// Cancellation abandons the call; its record still lands in the trace if
// the goroutine finishes before the run is torn down.
func (f *future) await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
