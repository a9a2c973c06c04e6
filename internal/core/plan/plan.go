// Package plan defines structured Plans for work items and the static
// action-classification policy that gates sensitive actions.
package plan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hay-kot/steward/internal/core/docfile"
	"github.com/hay-kot/steward/internal/core/item"
)

var (
	// ErrAlreadyPlanned is returned when a plan already exists for a work item.
	ErrAlreadyPlanned = errors.New("plan already exists for work item")
	// ErrNotFound is returned when no plan exists for a work item.
	ErrNotFound = errors.New("plan not found")
)

// SchemaVersion is the current plan document schema.
const SchemaVersion = 1

// Status is the lifecycle status of a plan.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Step is a single planned action step.
type Step struct {
	Description      string `yaml:"description"`
	RequiresApproval bool   `yaml:"requires_approval,omitempty"`
	Done             bool   `yaml:"done,omitempty"`
}

// Plan is the structured set of steps proposed for a single work item.
// At most one plan exists per work item.
type Plan struct {
	ID               string
	ItemID           string
	ActionType       string
	Priority         item.Priority
	Status           Status
	RequiresApproval bool
	Created          time.Time
	Steps            []Step
}

// Validate checks the invariants every persisted plan must satisfy.
func (p *Plan) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("plan: missing id")
	case p.ItemID == "":
		return fmt.Errorf("plan %s: missing item reference", p.ID)
	case p.ActionType == "":
		return fmt.Errorf("plan %s: missing action type", p.ID)
	case !p.Priority.Valid():
		return fmt.Errorf("plan %s: unknown priority %q", p.ID, p.Priority)
	case p.Status != StatusPending && p.Status != StatusInProgress && p.Status != StatusCompleted:
		return fmt.Errorf("plan %s: unknown status %q", p.ID, p.Status)
	case p.Created.IsZero():
		return fmt.Errorf("plan %s: missing created timestamp", p.ID)
	case len(p.Steps) == 0:
		return fmt.Errorf("plan %s: no steps", p.ID)
	}
	return nil
}

type header struct {
	Schema           int       `yaml:"schema"`
	PlanID           string    `yaml:"plan_id"`
	ItemID           string    `yaml:"item_id"`
	ActionType       string    `yaml:"action_type"`
	Priority         string    `yaml:"priority"`
	Status           string    `yaml:"status"`
	RequiresApproval bool      `yaml:"requires_approval"`
	Created          time.Time `yaml:"created"`
	Steps            []Step    `yaml:"steps"`
}

// Encode renders a plan as a vault document with a human-readable checklist body.
func Encode(p *Plan) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	h := header{
		Schema:           SchemaVersion,
		PlanID:           p.ID,
		ItemID:           p.ItemID,
		ActionType:       p.ActionType,
		Priority:         string(p.Priority),
		Status:           string(p.Status),
		RequiresApproval: p.RequiresApproval,
		Created:          p.Created.UTC(),
		Steps:            p.Steps,
	}
	return docfile.Render(h, renderBody(p))
}

// Decode parses a vault document into a plan. State is re-derived from the
// header only; the checklist body is presentation.
func Decode(content []byte) (*Plan, error) {
	raw, _, err := docfile.Split(content)
	if err != nil {
		return nil, err
	}

	var h header
	if err := docfile.DecodeHeader(raw, &h); err != nil {
		return nil, err
	}
	if h.Schema != SchemaVersion {
		return nil, fmt.Errorf("plan: unsupported schema version %d", h.Schema)
	}

	p := &Plan{
		ID:               h.PlanID,
		ItemID:           h.ItemID,
		ActionType:       h.ActionType,
		Priority:         item.Priority(h.Priority),
		Status:           Status(h.Status),
		RequiresApproval: h.RequiresApproval,
		Created:          h.Created,
		Steps:            h.Steps,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func renderBody(p *Plan) string {
	var b strings.Builder
	b.WriteString("\n# ")
	b.WriteString(TemplateFor(p.ActionType).Title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "**Item**: %s\n", p.ItemID)
	fmt.Fprintf(&b, "**Type**: %s\n", p.ActionType)
	fmt.Fprintf(&b, "**Priority**: %s\n\n", p.Priority)

	b.WriteString("## Steps\n")
	for _, s := range p.Steps {
		box := " "
		if s.Done {
			box = "x"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", box, s.Description)
	}

	b.WriteString("\n## Approval\n")
	if p.RequiresApproval {
		b.WriteString("Human approval required before execution. Respond to the request in Pending_Approval.\n")
	} else {
		b.WriteString("Auto-approved: no human sign-off needed for this action type.\n")
	}
	return b.String()
}
