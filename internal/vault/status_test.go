package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/steward/internal/core/item"
)

func TestBuildStatus(t *testing.T) {
	s := newTestStore(t)
	base := testClock()

	require.NoError(t, s.CreateItem(testItem("older1", item.PriorityLow, base.Add(-2*time.Hour)), "k1"))
	require.NoError(t, s.CreateItem(testItem("newer2", item.PriorityHigh, base.Add(-time.Hour)), "k2"))

	audit := NewAuditLog(s.Vault().Dir(AreaLogs), WithAuditClock(testClock))
	require.NoError(t, audit.Append(Entry{ActionType: "item_processed", Actor: "orchestrator", Target: "done1"}))

	st, err := s.BuildStatus(audit, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, st.StateCounts[item.StateNeedsAction])
	require.NotNil(t, st.OldestPending)
	assert.Equal(t, "older1", st.OldestPending.ID)
	assert.Equal(t, 1, st.DoneToday)
	assert.Equal(t, 1, st.DoneThisWeek)
}

func TestStatusRender(t *testing.T) {
	st := &Status{
		GeneratedAt: testClock(),
		StateCounts: map[item.State]int{item.StateNeedsAction: 3},
		InboxCount:  1,
		DoneToday:   2,
		PendingApprovals: []ApprovalSummary{
			{
				ID:       "req01",
				Action:   "email_send",
				Priority: item.PriorityHigh,
				Created:  testClock().Add(-time.Hour),
				Expires:  testClock().Add(-time.Minute),
				Expired:  true,
			},
		},
		Jobs: []JobHealth{
			{Name: "cycle", LastResult: "ok", ConsecutiveFailures: 0},
			{Name: "daily_briefing", LastResult: "error", ConsecutiveFailures: 3, Degraded: true},
		},
	}

	out := st.Render()
	assert.Contains(t, out, "last_updated: 2026-01-15T09:30:00Z")
	assert.Contains(t, out, "| needs_action | 3 |")
	assert.Contains(t, out, "| inbox files | 1 |")
	assert.Contains(t, out, "2 done today")
	assert.Contains(t, out, "req01 [high]")
	assert.Contains(t, out, "**(expired)**")
	assert.Contains(t, out, "daily_briefing (degraded)")
}

func TestWriteDashboard(t *testing.T) {
	s := newTestStore(t)

	audit := NewAuditLog(s.Vault().Dir(AreaLogs), WithAuditClock(testClock))
	st, err := s.BuildStatus(audit, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.WriteDashboard(st))

	data, err := s.Vault().ReadDoc("", "Dashboard.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Steward Dashboard")
}
