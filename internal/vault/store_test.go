package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/steward/internal/core/item"
	"github.com/hay-kot/steward/internal/core/plan"
)

var testClock = func() time.Time {
	return time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(scaffolded(t), WithClock(testClock))
	require.NoError(t, err)
	return s
}

func testItem(id string, prio item.Priority, created time.Time) *item.WorkItem {
	return &item.WorkItem{
		ID:       id,
		Type:     "file_drop",
		Source:   item.SourceFileDrop,
		Priority: prio,
		State:    item.StateNeedsAction,
		Created:  created,
		Title:    "item " + id,
	}
}

func TestStoreCreateItem_Dedup(t *testing.T) {
	s := newTestStore(t)

	w := testItem("abc123", item.PriorityMedium, testClock())
	require.NoError(t, s.CreateItem(w, "sha256:deadbeef"))
	assert.True(t, s.Seen("sha256:deadbeef"))

	dup := testItem("other99", item.PriorityMedium, testClock())
	err := s.CreateItem(dup, "sha256:deadbeef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "abc123")
}

func TestStoreCreateItem_DedupSurvivesRestart(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateItem(testItem("abc123", item.PriorityLow, testClock()), "mail:msg-1"))

	// A fresh store over the same vault reloads the persisted index.
	reopened, err := NewStore(s.Vault(), WithClock(testClock))
	require.NoError(t, err)
	assert.True(t, reopened.Seen("mail:msg-1"))
	assert.False(t, reopened.Seen("mail:msg-2"))
}

func TestStoreItems_Ordering(t *testing.T) {
	s := newTestStore(t)
	base := testClock()

	require.NoError(t, s.CreateItem(testItem("low1", item.PriorityLow, base), "k1"))
	require.NoError(t, s.CreateItem(testItem("high2", item.PriorityHigh, base.Add(2*time.Minute)), "k2"))
	require.NoError(t, s.CreateItem(testItem("high1", item.PriorityHigh, base.Add(time.Minute)), "k3"))
	require.NoError(t, s.CreateItem(testItem("med1", item.PriorityMedium, base), "k4"))

	items, invalid, err := s.Items()
	require.NoError(t, err)
	assert.Empty(t, invalid)

	ids := make([]string, 0, len(items))
	for _, w := range items {
		ids = append(ids, w.ID)
	}
	assert.Equal(t, []string{"high1", "high2", "med1", "low1"}, ids)
}

func TestStoreItems_StateFilter(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateItem(testItem("aaa", item.PriorityLow, testClock()), "k1"))
	planned := testItem("bbb", item.PriorityLow, testClock())
	planned.State = item.StatePlanned
	require.NoError(t, s.CreateItem(planned, "k2"))

	items, _, err := s.Items(item.StatePlanned)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "bbb", items[0].ID)
}

func TestStoreItems_InvalidDocReportedOnce(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Vault().WriteDoc(AreaNeedsAction, "ITEM_broken.md", []byte("not a document")))

	_, invalid, err := s.Items()
	require.NoError(t, err)
	require.Len(t, invalid, 1)
	assert.Equal(t, "ITEM_broken.md", invalid[0].Name)

	// Second pass, and a pass after restart, stay quiet about the same file.
	_, invalid, err = s.Items()
	require.NoError(t, err)
	assert.Empty(t, invalid)

	reopened, err := NewStore(s.Vault(), WithClock(testClock))
	require.NoError(t, err)
	_, invalid, err = reopened.Items()
	require.NoError(t, err)
	assert.Empty(t, invalid)
}

func TestStoreTransition(t *testing.T) {
	s := newTestStore(t)
	w := testItem("abc123", item.PriorityMedium, testClock())
	require.NoError(t, s.CreateItem(w, "k1"))

	require.NoError(t, s.Transition(w, item.StatePlanned))

	got, err := s.GetItem("abc123")
	require.NoError(t, err)
	assert.Equal(t, item.StatePlanned, got.State)
}

func TestStoreTransition_RejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	w := testItem("abc123", item.PriorityMedium, testClock())
	require.NoError(t, s.CreateItem(w, "k1"))

	err := s.Transition(w, item.StateDone)
	require.ErrorIs(t, err, item.ErrInvalidTransition)

	// Failed transition leaves the document untouched.
	got, err := s.GetItem("abc123")
	require.NoError(t, err)
	assert.Equal(t, item.StateNeedsAction, got.State)
}

func TestStoreTransition_TerminalMovesToDone(t *testing.T) {
	s := newTestStore(t)
	w := testItem("abc123", item.PriorityMedium, testClock())
	w.Attachments = []string{"abc123_payload.pdf"}
	require.NoError(t, s.CreateItem(w, "k1"))
	require.NoError(t, s.Vault().WriteDoc(AreaNeedsAction, "abc123_payload.pdf", []byte("pdf")))

	for _, to := range []item.State{item.StatePlanned, item.StateAutoApproved, item.StateExecuted, item.StateDone} {
		require.NoError(t, s.Transition(w, to))
	}

	_, err := s.GetItem("abc123")
	require.ErrorIs(t, err, item.ErrNotFound)

	names, err := s.Vault().ListDocs(AreaDone)
	require.NoError(t, err)
	assert.Contains(t, names, "20260115_093000_ITEM_abc123.md")

	assert.True(t, s.Vault().DocExists(AreaDone, "20260115_093000_abc123_payload.pdf"))
	assert.False(t, s.Vault().DocExists(AreaNeedsAction, "abc123_payload.pdf"))
}

func TestStoreCreatePlan_Idempotent(t *testing.T) {
	s := newTestStore(t)

	p := &plan.Plan{
		ID:         "plan01",
		ItemID:     "abc123",
		ActionType: "file_organize",
		Priority:   item.PriorityLow,
		Status:     plan.StatusPending,
		Created:    testClock(),
		Steps:      []plan.Step{{Description: "file the document"}},
	}
	require.NoError(t, s.CreatePlan(p))
	assert.True(t, s.HasPlan("abc123"))

	err := s.CreatePlan(p)
	require.ErrorIs(t, err, plan.ErrAlreadyPlanned)

	got, err := s.GetPlan("abc123")
	require.NoError(t, err)
	assert.Equal(t, "plan01", got.ID)
	assert.Equal(t, "file_organize", got.ActionType)

	_, err = s.GetPlan("missing")
	require.ErrorIs(t, err, plan.ErrNotFound)
}
