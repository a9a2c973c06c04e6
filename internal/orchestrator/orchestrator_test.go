package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/steward/internal/approvals"
	"github.com/hay-kot/steward/internal/core/approval"
	"github.com/hay-kot/steward/internal/core/item"
	"github.com/hay-kot/steward/internal/executor"
	"github.com/hay-kot/steward/internal/planner"
	"github.com/hay-kot/steward/internal/vault"
	"github.com/hay-kot/steward/internal/watch"
)

var testClock = func() time.Time {
	return time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
}

// stubWatcher replays a fixed candidate list, or fails.
type stubWatcher struct {
	name  string
	cands []watch.Candidate
	err   error
}

func (s *stubWatcher) Name() string { return s.name }

func (s *stubWatcher) Poll(_ context.Context) ([]watch.Candidate, error) {
	return s.cands, s.err
}

// recordingExecutor records what it was asked to do and can fail on demand.
type recordingExecutor struct {
	actions []executor.Action
	err     error
}

func (r *recordingExecutor) Execute(_ context.Context, a executor.Action) (executor.Result, error) {
	r.actions = append(r.actions, a)
	if r.err != nil {
		return executor.Result{Status: executor.StatusFailed}, r.err
	}
	return executor.Result{Status: executor.StatusSuccess}, nil
}

type fixture struct {
	store *vault.Store
	vault *vault.Vault
	audit *vault.AuditLog
	mgr   *approvals.Manager
	exec  *recordingExecutor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, vault.Scaffold(root))
	v := vault.New(root)
	s, err := vault.NewStore(v, vault.WithClock(testClock))
	require.NoError(t, err)
	audit := vault.NewAuditLog(v.Dir(vault.AreaLogs), vault.WithAuditClock(testClock))
	return &fixture{
		store: s,
		vault: v,
		audit: audit,
		mgr:   approvals.New(v, audit, approvals.WithClock(testClock)),
		exec:  &recordingExecutor{},
	}
}

func (f *fixture) orchestrator(t *testing.T, watchers ...watch.Watcher) *Orchestrator {
	t.Helper()
	pl := planner.New(f.store, planner.WithClock(testClock))
	return New(f.store, pl, f.mgr, f.exec, f.audit, watchers, WithClock(testClock))
}

func lowFileCand(key, title string) watch.Candidate {
	return watch.Candidate{
		Key:      key,
		Type:     "file_drop",
		Source:   item.SourceFileDrop,
		Priority: item.PriorityLow,
		Title:    title,
		Metadata: map[string]string{"filename": title},
	}
}

func gatedEmailCand(key string) watch.Candidate {
	return watch.Candidate{
		Key:      key,
		Type:     "email",
		Source:   item.SourceEmail,
		Priority: item.PriorityMedium,
		Title:    "Email: send the report",
	}
}

func auditTypes(t *testing.T, audit *vault.AuditLog) []string {
	t.Helper()
	entries, err := audit.ReadDay(testClock())
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ActionType)
	}
	return out
}

// A low-priority routine action runs end to end without a human.
func TestRunCycle_AutoApprovedFlow(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, &stubWatcher{name: "stub", cands: []watch.Candidate{lowFileCand("k1", "notes.txt")}})

	stats, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleStats{Detected: 1, Planned: 1, Executed: 1}, stats)

	// No approval request was raised and the item landed in Done.
	pending, err := f.mgr.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	done, err := f.vault.ListDocs(vault.AreaDone)
	require.NoError(t, err)
	require.Len(t, done, 1)

	require.Len(t, f.exec.actions, 1)
	assert.Equal(t, "file_organize", f.exec.actions[0].Type)

	types := auditTypes(t, f.audit)
	assert.Contains(t, types, "item_detected")
	assert.Contains(t, types, "plan_created")
	assert.Contains(t, types, "item_processed")
	assert.Equal(t, "cycle_complete", types[len(types)-1])

	// The processed record carries the approval provenance.
	entries, err := f.audit.ReadDay(testClock())
	require.NoError(t, err)
	for _, e := range entries {
		if e.ActionType == "item_processed" {
			assert.Equal(t, "auto_approved", e.ApprovalStatus)
			assert.Equal(t, "policy", e.ApprovedBy)
		}
	}
}

// A sensitive action waits for the human and executes after the document
// is moved to Approved.
func TestRunCycle_HumanApprovalFlow(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, &stubWatcher{name: "stub", cands: []watch.Candidate{gatedEmailCand("k1")}})

	stats, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Gated)
	assert.Zero(t, stats.Executed)
	assert.Empty(t, f.exec.actions)

	pending, err := f.mgr.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	itemID := pending[0].ItemID

	// More cycles without a decision change nothing.
	_, err = o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.exec.actions)

	// The human approves by moving the document.
	_, err = f.vault.MoveDoc(vault.AreaPendingApproval, "APPROVAL_"+itemID+".md", vault.AreaApproved, "")
	require.NoError(t, err)

	stats, err = o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 1, stats.Executed)

	require.Len(t, f.exec.actions, 1)
	assert.Equal(t, "email_send", f.exec.actions[0].Type)

	entries, err := f.audit.ReadDay(testClock())
	require.NoError(t, err)
	for _, e := range entries {
		if e.ActionType == "item_processed" {
			assert.Equal(t, "approved", e.ApprovalStatus)
			assert.Equal(t, "human", e.ApprovedBy)
		}
	}
}

// A crash after the resolution pass but before the item transition leaves
// the request processed while the item still sits in pending_approval. The
// next cycle must finish the move instead of skipping the processed request.
func TestRunCycle_ResumesAfterPartialResolution(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, &stubWatcher{name: "stub", cands: []watch.Candidate{gatedEmailCand("k1")}})

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	pending, err := f.mgr.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	itemID := pending[0].ItemID

	_, err = f.vault.MoveDoc(vault.AreaPendingApproval, "APPROVAL_"+itemID+".md", vault.AreaApproved, "")
	require.NoError(t, err)

	// The request gets processed but the run dies before the item moves.
	decisions, err := f.mgr.ResolvePass()
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	w, err := f.store.GetItem(itemID)
	require.NoError(t, err)
	assert.Equal(t, item.StatePendingApproval, w.State)

	stats, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 1, stats.Executed)

	require.Len(t, f.exec.actions, 1)
	assert.Equal(t, "email_send", f.exec.actions[0].Type)

	done, err := f.vault.ListDocs(vault.AreaDone)
	require.NoError(t, err)
	require.Len(t, done, 1)
}

// The same holds for a rejection stranded mid-resolution.
func TestRunCycle_ResumesAfterPartialRejection(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, &stubWatcher{name: "stub", cands: []watch.Candidate{gatedEmailCand("k1")}})

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	pending, err := f.mgr.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	itemID := pending[0].ItemID

	_, err = f.vault.MoveDoc(vault.AreaPendingApproval, "APPROVAL_"+itemID+".md", vault.AreaRejected, "")
	require.NoError(t, err)

	_, err = f.mgr.ResolvePass()
	require.NoError(t, err)

	stats, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)
	assert.Zero(t, stats.Executed)
	assert.Empty(t, f.exec.actions)

	done, err := f.vault.ListDocs(vault.AreaDone)
	require.NoError(t, err)
	require.Len(t, done, 1)

	entries, err := f.audit.ReadDay(testClock())
	require.NoError(t, err)
	seen := false
	for _, e := range entries {
		if e.ActionType == "item_processed" {
			seen = true
			assert.Equal(t, "rejected", e.Result)
		}
	}
	assert.True(t, seen)
}

// A rejected action never executes and the item terminates.
func TestRunCycle_RejectionFlow(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, &stubWatcher{name: "stub", cands: []watch.Candidate{gatedEmailCand("k1")}})

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	pending, err := f.mgr.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	itemID := pending[0].ItemID

	_, err = f.vault.MoveDoc(vault.AreaPendingApproval, "APPROVAL_"+itemID+".md", vault.AreaRejected, "")
	require.NoError(t, err)

	stats, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)
	assert.Zero(t, stats.Executed)
	assert.Empty(t, f.exec.actions)

	// The item document was retired to Done in its rejected state.
	done, err := f.vault.ListDocs(vault.AreaDone)
	require.NoError(t, err)
	require.Len(t, done, 1)

	entries, err := f.audit.ReadDay(testClock())
	require.NoError(t, err)
	seen := false
	for _, e := range entries {
		if e.ActionType == "item_processed" {
			seen = true
			assert.Equal(t, "rejected", e.Result)
		}
	}
	assert.True(t, seen)
}

// The same candidate across cycles and across restarts produces one item.
func TestRunCycle_Dedup(t *testing.T) {
	f := newFixture(t)
	w := &stubWatcher{name: "stub", cands: []watch.Candidate{lowFileCand("k1", "notes.txt")}}
	o := f.orchestrator(t, w)

	stats, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Detected)

	stats, err = o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Detected)

	// Fresh store over the same vault, same candidate: still a duplicate.
	reopened, err := vault.NewStore(f.vault, vault.WithClock(testClock))
	require.NoError(t, err)
	f.store = reopened
	o2 := f.orchestrator(t, w)

	stats, err = o2.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Detected)
}

// One failing watcher does not block the others.
func TestRunCycle_WatcherIsolation(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t,
		&stubWatcher{name: "broken", err: errors.New("spool corrupted")},
		&stubWatcher{name: "ok", cands: []watch.Candidate{lowFileCand("k1", "notes.txt")}},
	)

	stats, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Detected)
	assert.Equal(t, 1, stats.Executed)
}

// Items are planned in priority order within a cycle.
func TestRunCycle_PriorityOrder(t *testing.T) {
	f := newFixture(t)
	low := lowFileCand("k1", "low.txt")
	high := lowFileCand("k2", "high.txt")
	high.Priority = item.PriorityHigh
	o := f.orchestrator(t, &stubWatcher{name: "stub", cands: []watch.Candidate{low, high}})

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	// The high item gated (high priority always gates), the low executed.
	require.Len(t, f.exec.actions, 1)
	pending, err := f.mgr.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, item.PriorityHigh, pending[0].Priority)
}

// Execution failures retry across cycles, then flag the item.
func TestRunCycle_RetriesThenAttention(t *testing.T) {
	f := newFixture(t)
	f.exec.err = errors.New("effector down")
	o := f.orchestrator(t, &stubWatcher{name: "stub", cands: []watch.Candidate{lowFileCand("k1", "notes.txt")}})

	for i := 0; i < 3; i++ {
		stats, err := o.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Failed, "cycle %d", i)
	}

	// Attempt four never happens; the item is parked.
	stats, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Failed)
	assert.Len(t, f.exec.actions, 3)

	types := auditTypes(t, f.audit)
	assert.Contains(t, types, "item_attention")

	// Clearing the flag resumes execution.
	f.exec.err = nil
	items, _, err := f.store.Items(item.StateAutoApproved)
	require.NoError(t, err)
	require.Len(t, items, 1)
	delete(items[0].Metadata, "attention")
	items[0].Metadata["attempts"] = "0"
	require.NoError(t, f.store.SaveItem(items[0]))

	stats, err = o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Executed)
}

// A structurally broken vault aborts the cycle with a cycle_error record.
func TestRunCycle_StructureFailure(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)

	require.NoError(t, os.Remove(filepath.Join(f.vault.Root(), vault.AreaPlans)))

	_, err := o.RunCycle(context.Background())
	require.ErrorIs(t, err, vault.ErrIncompleteVault)
	assert.Contains(t, auditTypes(t, f.audit), "cycle_error")
}

// Malformed item documents are excluded and audited once.
func TestRunCycle_InvalidDocument(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vault.WriteDoc(vault.AreaNeedsAction, "ITEM_junk.md", []byte("no frontmatter")))
	o := f.orchestrator(t)

	stats, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Invalid)

	stats, err = o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Invalid)

	count := 0
	for _, typ := range auditTypes(t, f.audit) {
		if typ == "invalid_document" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

// The dashboard regenerates every cycle.
func TestRunCycle_DashboardRefresh(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, &stubWatcher{name: "stub", cands: []watch.Candidate{gatedEmailCand("k1")}})

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	data, err := f.vault.ReadDoc("", "Dashboard.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Steward Dashboard")
	assert.Contains(t, string(data), "pending_approval")
}

// Attachments follow the item into the vault and on to Done.
func TestRunCycle_Attachments(t *testing.T) {
	f := newFixture(t)

	src := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(src, []byte("pdf"), 0o644))

	cand := lowFileCand("k1", "report.pdf")
	cand.Attachments = []watch.Attachment{{SourcePath: src, Name: "report.pdf"}}
	o := f.orchestrator(t, &stubWatcher{name: "stub", cands: []watch.Candidate{cand}})

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	done, err := f.vault.ListDocs(vault.AreaDone)
	require.NoError(t, err)
	require.Len(t, done, 1)

	// The payload moved with it (attachments are non-markdown, so check
	// existence directly).
	entries, err := os.ReadDir(f.vault.Dir(vault.AreaDone))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunBriefing(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, &stubWatcher{name: "stub", cands: []watch.Candidate{gatedEmailCand("k1")}})

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.NoError(t, o.RunBriefing())

	data, err := f.vault.ReadDoc(vault.AreaBriefings, "2026-01-15_briefing.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Daily Briefing 2026-01-15")
	assert.Contains(t, string(data), "Awaiting Your Decision")

	types := auditTypes(t, f.audit)
	assert.Contains(t, types, "briefing_created")
}

// An expired request still honors a late human decision.
func TestRunCycle_LateDecisionAfterExpiry(t *testing.T) {
	f := newFixture(t)
	o := New(
		f.store,
		planner.New(f.store, planner.WithClock(testClock)),
		f.mgr,
		f.exec,
		f.audit,
		[]watch.Watcher{&stubWatcher{name: "stub", cands: []watch.Candidate{gatedEmailCand("k1")}}},
		WithClock(testClock),
		WithApprovalTTL(time.Minute),
	)

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	// Managers and clocks are fixed, so fake expiry by using a manager
	// whose clock sits past the TTL.
	lateClock := func() time.Time { return testClock().Add(time.Hour) }
	lateMgr := approvals.New(f.vault, f.audit, approvals.WithClock(lateClock))

	expired, err := lateMgr.CheckExpired()
	require.NoError(t, err)
	require.Len(t, expired, 1)
	itemID := expired[0].ItemID

	// The expired request is still pending; a late human approval is
	// honored by the next cycle like any other.
	_, err = f.vault.MoveDoc(vault.AreaPendingApproval, "APPROVAL_"+itemID+".md", vault.AreaApproved, "")
	require.NoError(t, err)

	stats, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 1, stats.Executed)

	r, area, err := f.mgr.Get(itemID)
	require.NoError(t, err)
	assert.Equal(t, vault.AreaApproved, area)
	assert.Equal(t, approval.StatusApproved, r.Status)
}
