package sandbox

import (
	"context"
	"errors"
	"time"
)

// DefaultBudget is the wall-clock budget applied when none is configured.
const DefaultBudget = 25 * time.Second

// Governor applies a wall-clock budget to every run. A run that exhausts
// its budget is stopped and reported as timed out; it is never retried.
type Governor struct {
	evaluator *Evaluator
	budget    time.Duration
	logger    Logger
}

// NewGovernor wraps an evaluator with a per-run budget. A non-positive
// budget selects DefaultBudget.
func NewGovernor(evaluator *Evaluator, budget time.Duration, logger Logger) *Governor {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Governor{evaluator: evaluator, budget: budget, logger: logger}
}

// Budget returns the per-run wall-clock budget.
func (g *Governor) Budget() time.Duration {
	return g.budget
}

// Run executes the script under the budget. The caller's ctx still
// applies; whichever deadline is nearer wins.
func (g *Governor) Run(ctx context.Context, script string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.budget)
	defer cancel()

	res, err := g.evaluator.Execute(ctx, script)
	if err != nil && errors.Is(err, ErrTimeout) {
		logf(g.logger, "run %s exceeded %s budget, %d calls traced", res.RunID, g.budget, len(res.Trace))
	}
	return res, err
}
