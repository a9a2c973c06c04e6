// Package executor performs the approved action of a work item. Executors
// never decide whether to act; by the time one runs, the approval gate has
// already passed.
package executor

import (
	"context"
)

// Result statuses. WouldExecute marks a dry run that was deliberately not
// performed, which is distinct from a failure.
const (
	StatusSuccess      = "success"
	StatusFailed       = "failed"
	StatusWouldExecute = "would_execute"
)

// Action is one approved action ready to perform.
type Action struct {
	Type       string
	ItemID     string
	Title      string
	Parameters map[string]string
}

// Result is the outcome of one execution attempt.
type Result struct {
	Status string
	Detail string
}

// Executor performs approved actions. Implementations must honor context
// cancellation; the orchestrator bounds every attempt with a deadline.
type Executor interface {
	Execute(ctx context.Context, a Action) (Result, error)
}

// DryRun is the executor used in dry-run mode. It performs nothing and
// reports every action as would_execute so the rest of the pipeline,
// including audit records and state transitions, behaves exactly as it
// would live.
type DryRun struct{}

func (DryRun) Execute(_ context.Context, a Action) (Result, error) {
	return Result{
		Status: StatusWouldExecute,
		Detail: "dry run: " + a.Type + " for " + a.ItemID,
	}, nil
}
