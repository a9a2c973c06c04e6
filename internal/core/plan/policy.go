package plan

import "github.com/hay-kot/steward/internal/core/item"

// approvalPolicy is the static action-classification table. True means the
// action is sensitive and must be gated behind human approval.
var approvalPolicy = map[string]bool{
	"payment":           true,
	"email_send":        true,
	"linkedin_post":     true,
	"social_post":       true,
	"file_delete":       true,
	"external_api_call": true,
	"new_contact_email": true,

	"file_organize":    false,
	"log_create":       false,
	"dashboard_update": false,
	"plan_create":      false,
}

// KnownAction reports whether the action type appears in the policy table.
func KnownAction(actionType string) bool {
	_, ok := approvalPolicy[actionType]
	return ok
}

// RequiresApproval reports whether an action of the given type and priority
// must be gated behind human sign-off. Unknown action types require approval
// (fail safe), as do high-priority items regardless of type.
func RequiresApproval(actionType string, priority item.Priority) bool {
	if priority == item.PriorityHigh {
		return true
	}
	gated, ok := approvalPolicy[actionType]
	if !ok {
		return true
	}
	return gated
}

// Template provides the title and default step list for an action type.
// The Drafter capability may replace step text; these are the deterministic
// fallbacks the engine works with on its own.
type Template struct {
	Title string
	Steps []string
}

var templates = map[string]Template{
	"email": {
		Title: "Email Response Plan",
		Steps: []string{
			"Read and analyze email content",
			"Draft response",
			"Send response",
			"Log action and move to Done",
		},
	},
	"email_send": {
		Title: "Email Send Plan",
		Steps: []string{
			"Draft outgoing email",
			"Send email",
			"Log action and move to Done",
		},
	},
	"file_drop": {
		Title: "File Processing Plan",
		Steps: []string{
			"Review file contents and metadata",
			"Categorize file by type and priority",
			"Execute processing steps",
			"Move to Done",
		},
	},
	"file_organize": {
		Title: "File Organization Plan",
		Steps: []string{
			"Review file contents and metadata",
			"File under the correct area",
			"Move to Done",
		},
	},
	"social_post": {
		Title: "Social Post Plan",
		Steps: []string{
			"Draft post content",
			"Publish post",
			"Log action",
		},
	},
	"social_message": {
		Title: "Social Message Response Plan",
		Steps: []string{
			"Read message content",
			"Check if sender is a known contact",
			"Draft appropriate response",
			"Send response",
			"Log action",
		},
	},
	"social_connection": {
		Title: "Connection Request Plan",
		Steps: []string{
			"Review requester profile",
			"Accept or decline connection",
			"Log decision",
		},
	},
}

var defaultTemplate = Template{
	Title: "Action Plan",
	Steps: []string{
		"Analyze item details",
		"Determine required actions",
		"Execute actions",
		"Move to Done",
	},
}

// TemplateFor returns the plan template for an action type, falling back to
// a generic template for unmapped types.
func TemplateFor(actionType string) Template {
	if t, ok := templates[actionType]; ok {
		return t
	}
	return defaultTemplate
}
