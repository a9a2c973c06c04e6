// Package approvals manages the human approval gate. Requests are written
// into Pending_Approval; the human decision is expressed by relocating the
// document into Approved or Rejected, and nothing else. The manager reads
// decisions back from document location, never from memory.
package approvals

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/steward/internal/core/approval"
	"github.com/hay-kot/steward/internal/core/logging"
	"github.com/hay-kot/steward/internal/vault"
)

// Decision is one resolved approval observed during a resolution pass.
type Decision struct {
	RequestID string
	ItemID    string
	Status    approval.Status
	Expired   bool
}

// DecisionChannel is an optional side channel told about newly created
// requests, for example to ping a chat client. It can never decide; only a
// document move decides.
type DecisionChannel interface {
	Observe(ctx context.Context, r *approval.Request) error
}

// Manager owns approval request documents and the resolution pass.
type Manager struct {
	vault    *vault.Vault
	audit    *vault.AuditLog
	channels []DecisionChannel
	now      func() time.Time
	log      zerolog.Logger
}

// Option customizes a Manager during construction.
type Option func(*Manager)

// WithClock overrides the manager's clock.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.now = clock
	}
}

// WithChannel registers a side channel notified of new requests.
func WithChannel(ch DecisionChannel) Option {
	return func(m *Manager) {
		m.channels = append(m.channels, ch)
	}
}

// New builds an approval manager over the vault and audit log.
func New(v *vault.Vault, audit *vault.AuditLog, opts ...Option) *Manager {
	m := &Manager{
		vault: v,
		audit: audit,
		now:   time.Now,
		log:   logging.Component("approvals"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// requestFile returns the document name for an item's approval request.
func requestFile(itemID string) string {
	return "APPROVAL_" + itemID + ".md"
}

// Create writes a new pending request into Pending_Approval and notifies
// any side channels. Creating a request for an item that already has one is
// an error; the gate fires once per item.
func (m *Manager) Create(ctx context.Context, r *approval.Request) error {
	if err := r.Validate(); err != nil {
		return err
	}
	name := requestFile(r.ItemID)
	for _, area := range []string{vault.AreaPendingApproval, vault.AreaApproved, vault.AreaRejected} {
		if m.vault.DocExists(area, name) {
			return fmt.Errorf("approval request for item %s already exists in %s", r.ItemID, area)
		}
	}

	data, err := approval.Encode(r)
	if err != nil {
		return err
	}
	if err := m.vault.WriteDoc(vault.AreaPendingApproval, name, data); err != nil {
		return err
	}

	if err := m.audit.Append(vault.Entry{
		ActionType: "approval_requested",
		Actor:      "orchestrator",
		Target:     r.ItemID,
		Parameters: map[string]string{"request_id": r.ID, "action": r.Action},
	}); err != nil {
		return err
	}

	for _, ch := range m.channels {
		if err := ch.Observe(ctx, r); err != nil {
			m.log.Warn().Err(err).Str("request", r.ID).Msg("decision channel notify failed")
		}
	}
	return nil
}

// HasRequest reports whether any request document exists for the item, in
// any of the three decision areas.
func (m *Manager) HasRequest(itemID string) bool {
	name := requestFile(itemID)
	for _, area := range []string{vault.AreaPendingApproval, vault.AreaApproved, vault.AreaRejected} {
		if m.vault.DocExists(area, name) {
			return true
		}
	}
	return false
}

// Get loads an item's request from whichever area it currently sits in.
func (m *Manager) Get(itemID string) (*approval.Request, string, error) {
	name := requestFile(itemID)
	for _, area := range []string{vault.AreaPendingApproval, vault.AreaApproved, vault.AreaRejected} {
		if !m.vault.DocExists(area, name) {
			continue
		}
		data, err := m.vault.ReadDoc(area, name)
		if err != nil {
			return nil, "", err
		}
		r, err := approval.Decode(data)
		if err != nil {
			return nil, "", err
		}
		return r, area, nil
	}
	return nil, "", approval.ErrNotFound
}

// ListPending returns every request still awaiting a decision, sorted
// priority-major and creation-time-minor.
func (m *Manager) ListPending() ([]*approval.Request, error) {
	names, err := m.vault.ListDocs(vault.AreaPendingApproval)
	if err != nil {
		return nil, err
	}

	var out []*approval.Request
	for _, name := range names {
		data, err := m.vault.ReadDoc(vault.AreaPendingApproval, name)
		if err != nil {
			return nil, err
		}
		r, err := approval.Decode(data)
		if err != nil {
			m.log.Warn().Err(err).Str("doc", name).Msg("skipping malformed approval request")
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// Summaries projects the pending queue for the dashboard, stamping the
// advisory expired marker.
func (m *Manager) Summaries() ([]vault.ApprovalSummary, error) {
	pending, err := m.ListPending()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()

	out := make([]vault.ApprovalSummary, 0, len(pending))
	for _, r := range pending {
		out = append(out, vault.ApprovalSummary{
			ID:       r.ID,
			Action:   r.Action,
			Priority: r.Priority,
			Created:  r.Created,
			Expires:  r.Expires,
			Expired:  r.Expired(now),
		})
	}
	return out, nil
}

// CheckExpired returns the pending requests whose expiry has passed. They
// stay pending and stay in place; expiry only surfaces in reporting.
func (m *Manager) CheckExpired() ([]*approval.Request, error) {
	pending, err := m.ListPending()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()

	var expired []*approval.Request
	for _, r := range pending {
		if r.Expired(now) {
			expired = append(expired, r)
		}
	}
	return expired, nil
}

// ResolvePass scans Approved and Rejected for requests the human has moved
// since the last pass and finalizes each one exactly once: status is
// re-derived from the document's location, the processed flag is set, and a
// single audit record is written. Requests already processed are skipped,
// so repeated passes are idempotent.
func (m *Manager) ResolvePass() ([]Decision, error) {
	var decisions []Decision
	for _, pass := range []struct {
		area   string
		status approval.Status
	}{
		{vault.AreaApproved, approval.StatusApproved},
		{vault.AreaRejected, approval.StatusRejected},
	} {
		area, status := pass.area, pass.status
		names, err := m.vault.ListDocs(area)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			d, err := m.resolveOne(area, name, status)
			if err != nil {
				// One malformed or contested document must not block the
				// rest of the queue.
				m.log.Warn().Err(err).Str("area", area).Str("doc", name).Msg("skipping approval document")
				continue
			}
			if d != nil {
				decisions = append(decisions, *d)
			}
		}
	}
	return decisions, nil
}

func (m *Manager) resolveOne(area, name string, status approval.Status) (*Decision, error) {
	data, err := m.vault.ReadDoc(area, name)
	if err != nil {
		return nil, err
	}
	r, err := approval.Decode(data)
	if err != nil {
		return nil, err
	}
	if r.Processed {
		return nil, nil
	}

	now := m.now().UTC()
	expired := r.Expired(now)
	r.Status = status
	r.Processed = true

	updated, err := approval.Encode(r)
	if err != nil {
		return nil, err
	}
	if err := m.vault.WriteDoc(area, name, updated); err != nil {
		return nil, err
	}

	entry := vault.Entry{
		ActionType: "approval_" + string(status),
		Actor:      "human",
		Target:     r.ItemID,
		Parameters: map[string]string{"request_id": r.ID, "action": r.Action},
		ApprovedBy: "human",
	}
	if expired {
		// Late decisions still count; the lateness is recorded.
		entry.Parameters["expired"] = "true"
	}
	if err := m.audit.Append(entry); err != nil {
		return nil, err
	}

	return &Decision{
		RequestID: r.ID,
		ItemID:    r.ItemID,
		Status:    status,
		Expired:   expired,
	}, nil
}
