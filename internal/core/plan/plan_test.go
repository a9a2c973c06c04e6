package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/steward/internal/core/item"
)

func validPlan() *Plan {
	return &Plan{
		ID:               "PLAN_20260115_093000_ab12cd",
		ItemID:           "20260115_092900_xy34ef",
		ActionType:       "email_send",
		Priority:         item.PriorityMedium,
		Status:           StatusPending,
		RequiresApproval: true,
		Created:          time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC),
		Steps: []Step{
			{Description: "Draft outgoing email"},
			{Description: "Send email", RequiresApproval: true},
			{Description: "Log action and move to Done"},
		},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := validPlan()

	doc, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(doc)
	require.NoError(t, err)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.ItemID, out.ItemID)
	assert.Equal(t, in.ActionType, out.ActionType)
	assert.Equal(t, in.RequiresApproval, out.RequiresApproval)
	assert.Equal(t, in.Steps, out.Steps)
	assert.True(t, in.Created.Equal(out.Created))
}

func TestEncode_BodyChecklist(t *testing.T) {
	p := validPlan()
	p.Steps[0].Done = true

	doc, err := Encode(p)
	require.NoError(t, err)

	assert.Contains(t, string(doc), "- [x] Draft outgoing email")
	assert.Contains(t, string(doc), "- [ ] Send email")
	assert.Contains(t, string(doc), "Human approval required")
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no frontmatter", "free text\n"},
		{"no steps", "---\nschema: 1\nplan_id: p\nitem_id: i\naction_type: email_send\npriority: low\nstatus: pending\nrequires_approval: true\ncreated: 2026-01-15T09:30:00Z\nsteps: []\n---\n"},
		{"bad status", "---\nschema: 1\nplan_id: p\nitem_id: i\naction_type: email_send\npriority: low\nstatus: paused\nrequires_approval: true\ncreated: 2026-01-15T09:30:00Z\nsteps:\n  - description: a\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	p := validPlan()
	require.NoError(t, p.Validate())

	p.Steps = nil
	assert.Error(t, p.Validate())
}
