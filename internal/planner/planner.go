// Package planner turns triaged work items into structured plan documents.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/steward/internal/core/item"
	"github.com/hay-kot/steward/internal/core/logging"
	"github.com/hay-kot/steward/internal/core/plan"
	"github.com/hay-kot/steward/internal/vault"
	"github.com/hay-kot/steward/pkg/randid"
)

// DraftContext is what a Drafter sees when asked to propose plan steps.
type DraftContext struct {
	Item     *item.WorkItem
	Template plan.Template
}

// Drafter is an optional capability that proposes richer step text than the
// built-in templates, typically backed by a reasoning service. Draft output
// is advisory: approval gating is decided by the policy table regardless of
// what a drafter writes.
type Drafter interface {
	Draft(ctx context.Context, dc DraftContext) ([]plan.Step, error)
}

// Planner creates at most one plan per work item and advances the item to
// planned. Re-planning an already planned item is a no-op.
type Planner struct {
	store   *vault.Store
	drafter Drafter
	now     func() time.Time
	log     zerolog.Logger
}

// Option customizes a Planner during construction.
type Option func(*Planner)

// WithDrafter installs a step drafter. Without one the planner uses the
// deterministic templates.
func WithDrafter(d Drafter) Option {
	return func(p *Planner) {
		p.drafter = d
	}
}

// WithClock overrides the planner's clock.
func WithClock(clock func() time.Time) Option {
	return func(p *Planner) {
		p.now = clock
	}
}

// New builds a planner over the item store.
func New(store *vault.Store, opts ...Option) *Planner {
	p := &Planner{
		store: store,
		now:   time.Now,
		log:   logging.Component("planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlanItem creates the plan document for a work item and advances the item
// from needs_action to planned. The two writes are recoverable in order: if
// a previous run crashed after writing the plan but before the transition,
// this call finishes the transition without writing a second plan.
func (p *Planner) PlanItem(ctx context.Context, w *item.WorkItem) (*plan.Plan, error) {
	if w.State != item.StateNeedsAction {
		return nil, fmt.Errorf("plan item %s: unexpected state %s", w.ID, w.State)
	}

	pl, err := p.build(ctx, w)
	if err != nil {
		return nil, err
	}

	switch err := p.store.CreatePlan(pl); {
	case err == nil:
	case errors.Is(err, plan.ErrAlreadyPlanned):
		p.log.Debug().Str("item", w.ID).Msg("plan already exists, resuming transition")
		if pl, err = p.store.GetPlan(w.ID); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := p.store.Transition(w, item.StatePlanned); err != nil {
		return nil, err
	}
	return pl, nil
}

// planActions maps an item's declared type to the action its plan will
// carry. A dropped file becomes an organize action; an inbound email
// becomes a send, since acting on mail means replying. Types with no
// mapping plan as themselves.
var planActions = map[string]string{
	"file_drop": "file_organize",
	"email":     "email_send",
}

func actionFor(itemType string) string {
	if mapped, ok := planActions[itemType]; ok {
		return mapped
	}
	return itemType
}

func (p *Planner) build(ctx context.Context, w *item.WorkItem) (*plan.Plan, error) {
	actionType := actionFor(w.Type)
	tmpl := plan.TemplateFor(actionType)

	steps := make([]plan.Step, 0, len(tmpl.Steps))
	for _, desc := range tmpl.Steps {
		steps = append(steps, plan.Step{Description: desc})
	}

	if p.drafter != nil {
		drafted, err := p.drafter.Draft(ctx, DraftContext{Item: w, Template: tmpl})
		switch {
		case err != nil:
			// Drafting is best effort. Fall through to the template.
			p.log.Warn().Err(err).Str("item", w.ID).Msg("drafter failed, using template steps")
		case len(drafted) > 0:
			steps = drafted
		}
	}

	gated := plan.RequiresApproval(actionType, w.Priority)
	if gated {
		// The checklist shows every step as gated until a human signs off.
		for i := range steps {
			steps[i].RequiresApproval = true
		}
	}

	return &plan.Plan{
		ID:               randid.Generate(8),
		ItemID:           w.ID,
		ActionType:       actionType,
		Priority:         w.Priority,
		Status:           plan.StatusPending,
		RequiresApproval: gated,
		Created:          p.now().UTC(),
		Steps:            steps,
	}, nil
}
