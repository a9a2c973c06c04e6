// Package approval defines the ApprovalRequest model: a gated decision that
// only a human can resolve, by relocating the request document between the
// vault's pending, approved, and rejected areas.
package approval

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hay-kot/steward/internal/core/docfile"
	"github.com/hay-kot/steward/internal/core/item"
)

var (
	// ErrNotFound is returned when an approval request does not exist.
	ErrNotFound = errors.New("approval request not found")
	// ErrExpiryBeforeCreation is returned when a request expires at or before
	// its creation time.
	ErrExpiryBeforeCreation = errors.New("approval request expires before creation")
	// ErrAlreadyProcessed is returned when a resolved request is resolved again.
	ErrAlreadyProcessed = errors.New("approval request already processed")
)

// SchemaVersion is the current approval request document schema.
const SchemaVersion = 1

// Status is the decision status of an approval request. It transitions from
// pending to approved or rejected exactly once, and only on a human signal.
// Expiry never changes status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request represents a single gated decision awaiting human resolution.
type Request struct {
	ID          string
	Action      string
	ItemID      string
	Priority    item.Priority
	Description string
	Details     map[string]string
	Created     time.Time
	Expires     time.Time
	Status      Status
	Processed   bool
}

// Validate checks that all required fields are present and the expiry is
// strictly after creation.
func (r *Request) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("approval request: missing id")
	case r.Action == "":
		return fmt.Errorf("approval request %s: missing action", r.ID)
	case !r.Priority.Valid():
		return fmt.Errorf("approval request %s: unknown priority %q", r.ID, r.Priority)
	case r.Created.IsZero():
		return fmt.Errorf("approval request %s: missing created timestamp", r.ID)
	case r.Expires.IsZero():
		return fmt.Errorf("approval request %s: missing expiry timestamp", r.ID)
	case r.Status != StatusPending && r.Status != StatusApproved && r.Status != StatusRejected:
		return fmt.Errorf("approval request %s: unknown status %q", r.ID, r.Status)
	}
	if !r.Expires.After(r.Created) {
		return fmt.Errorf("approval request %s: %w", r.ID, ErrExpiryBeforeCreation)
	}
	return nil
}

// Expired reports whether the request's expiry has passed. Expiry is
// advisory reporting metadata; it never drives a status change.
func (r *Request) Expired(now time.Time) bool {
	return now.After(r.Expires)
}

type header struct {
	Schema    int               `yaml:"schema"`
	RequestID string            `yaml:"request_id"`
	Action    string            `yaml:"action"`
	ItemID    string            `yaml:"item_id,omitempty"`
	Priority  string            `yaml:"priority"`
	Created   time.Time         `yaml:"created"`
	Expires   time.Time         `yaml:"expires"`
	Status    string            `yaml:"status"`
	Processed bool              `yaml:"processed"`
	Details   map[string]string `yaml:"details,omitempty"`
}

// Encode renders an approval request as a vault document, including the
// human-facing instructions for responding.
func Encode(r *Request) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	h := header{
		Schema:    SchemaVersion,
		RequestID: r.ID,
		Action:    r.Action,
		ItemID:    r.ItemID,
		Priority:  string(r.Priority),
		Created:   r.Created.UTC(),
		Expires:   r.Expires.UTC(),
		Status:    string(r.Status),
		Processed: r.Processed,
		Details:   r.Details,
	}
	return docfile.Render(h, renderBody(r))
}

// Decode parses a vault document into an approval request. The header is
// validated eagerly; malformed documents are rejected.
func Decode(content []byte) (*Request, error) {
	raw, _, err := docfile.Split(content)
	if err != nil {
		return nil, err
	}

	var h header
	if err := docfile.DecodeHeader(raw, &h); err != nil {
		return nil, err
	}
	if h.Schema != SchemaVersion {
		return nil, fmt.Errorf("approval request: unsupported schema version %d", h.Schema)
	}

	r := &Request{
		ID:        h.RequestID,
		Action:    h.Action,
		ItemID:    h.ItemID,
		Priority:  item.Priority(h.Priority),
		Created:   h.Created,
		Expires:   h.Expires,
		Status:    Status(h.Status),
		Processed: h.Processed,
		Details:   h.Details,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func renderBody(r *Request) string {
	var b strings.Builder
	b.WriteString("\n# Approval Required: ")
	b.WriteString(actionTitle(r.Action))
	b.WriteString("\n\n")
	if r.Description != "" {
		b.WriteString(r.Description)
		b.WriteString("\n\n")
	}

	if len(r.Details) > 0 {
		b.WriteString("## Details\n")
		for _, k := range sortedKeys(r.Details) {
			fmt.Fprintf(&b, "- **%s**: %s\n", k, r.Details[k])
		}
		b.WriteString("\n")
	}

	b.WriteString("## How to Respond\n")
	b.WriteString("- **To Approve**: move this file to the `Approved` folder\n")
	b.WriteString("- **To Reject**: move this file to the `Rejected` folder\n\n")
	fmt.Fprintf(&b, "> Expires: %s\n", r.Expires.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "> Priority: %s\n", r.Priority)
	return b.String()
}

func actionTitle(action string) string {
	words := strings.Split(action, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
