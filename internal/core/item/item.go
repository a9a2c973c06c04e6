// Package item defines the WorkItem domain model and its lifecycle state machine.
package item

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a work item does not exist in the store.
	ErrNotFound = errors.New("work item not found")
	// ErrInvalidTransition is returned when a state change violates the lifecycle graph.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Source identifies which watcher produced a work item.
type Source string

const (
	SourceFileDrop Source = "file_drop"
	SourceEmail    Source = "email"
	SourceSocial   Source = "social"
)

// Valid reports whether the source is one of the known values.
func (s Source) Valid() bool {
	switch s {
	case SourceFileDrop, SourceEmail, SourceSocial:
		return true
	}
	return false
}

// Priority is the processing priority of a work item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether the priority is one of the known values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank returns the sort rank of a priority. Lower ranks are processed first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// State is the lifecycle state of a work item.
type State string

const (
	StateNew             State = "new"
	StateNeedsAction     State = "needs_action"
	StatePlanned         State = "planned"
	StatePendingApproval State = "pending_approval"
	StateAutoApproved    State = "auto_approved"
	StateApproved        State = "approved"
	StateRejected        State = "rejected"
	StateExecuted        State = "executed"
	StateDone            State = "done"
)

// transitions is the lifecycle graph. A state may only advance to one of the
// listed successors; anything else is ErrInvalidTransition.
var transitions = map[State][]State{
	StateNew:             {StateNeedsAction},
	StateNeedsAction:     {StatePlanned},
	StatePlanned:         {StatePendingApproval, StateAutoApproved},
	StatePendingApproval: {StateApproved, StateRejected},
	StateAutoApproved:    {StateExecuted},
	StateApproved:        {StateExecuted},
	StateExecuted:        {StateDone},
	StateRejected:        {},
	StateDone:            {},
}

// Valid reports whether the state is part of the lifecycle graph.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether the state has no successors.
func (s State) Terminal() bool {
	succ, ok := transitions[s]
	return ok && len(succ) == 0
}

// CanTransition reports whether the state may advance to the given state.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// WorkItem represents one unit of inbound work tracked through the vault.
// Items are never deleted; they advance monotonically until a terminal state.
type WorkItem struct {
	ID          string
	Type        string // declared action type, e.g. "file_drop", "email_send"
	Source      Source
	Priority    Priority
	State       State
	Created     time.Time
	Title       string
	Body        string
	Metadata    map[string]string
	Attachments []string
}

// Validate checks the invariants every persisted work item must satisfy.
func (w *WorkItem) Validate() error {
	switch {
	case w.ID == "":
		return fmt.Errorf("work item: missing id")
	case w.Type == "":
		return fmt.Errorf("work item %s: missing type", w.ID)
	case !w.Source.Valid():
		return fmt.Errorf("work item %s: unknown source %q", w.ID, w.Source)
	case !w.Priority.Valid():
		return fmt.Errorf("work item %s: unknown priority %q", w.ID, w.Priority)
	case !w.State.Valid():
		return fmt.Errorf("work item %s: unknown state %q", w.ID, w.State)
	case w.Created.IsZero():
		return fmt.Errorf("work item %s: missing created timestamp", w.ID)
	}
	return nil
}

// Advance moves the item to the given state, enforcing the lifecycle graph.
func (w *WorkItem) Advance(to State) error {
	if !w.State.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.State, to)
	}
	w.State = to
	return nil
}
