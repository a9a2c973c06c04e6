package vault

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hay-kot/steward/internal/core/item"
)

// JobHealth summarizes one scheduler job for the status projection.
type JobHealth struct {
	Name                string
	LastRun             time.Time
	LastResult          string
	NextRun             time.Time
	ConsecutiveFailures int
	Degraded            bool
}

// ApprovalSummary is the reporting view of one pending approval request.
type ApprovalSummary struct {
	ID       string
	Action   string
	Priority item.Priority
	Created  time.Time
	Expires  time.Time
	Expired  bool
}

// Status is the read-only projection of the vault regenerated each cycle.
// It is a pure function of store contents plus audit-log throughput; it is
// never authoritative state.
type Status struct {
	GeneratedAt      time.Time
	StateCounts      map[item.State]int
	InboxCount       int
	OldestPending    *item.WorkItem
	DoneToday        int
	DoneThisWeek     int
	PendingApprovals []ApprovalSummary
	Jobs             []JobHealth
}

// BuildStatus assembles the projection from current store contents and
// audit-log throughput. Scheduler health and approval summaries are supplied
// by the caller since they are owned by other components.
func (s *Store) BuildStatus(audit *AuditLog, approvals []ApprovalSummary, jobs []JobHealth) (*Status, error) {
	now := s.now().UTC()

	items, _, err := s.Items()
	if err != nil {
		return nil, err
	}

	counts := map[item.State]int{}
	var oldest *item.WorkItem
	for _, w := range items {
		counts[w.State]++
		if w.State.Terminal() {
			continue
		}
		if oldest == nil || w.Created.Before(oldest.Created) {
			oldest = w
		}
	}

	inbox := 0
	if entries, err := s.vault.ListDocs(AreaInbox); err == nil {
		inbox = len(entries)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	doneToday, err := audit.CountActionSince("item_processed", startOfDay)
	if err != nil {
		return nil, err
	}
	doneWeek, err := audit.CountActionSince("item_processed", startOfDay.AddDate(0, 0, -6))
	if err != nil {
		return nil, err
	}

	return &Status{
		GeneratedAt:      now,
		StateCounts:      counts,
		InboxCount:       inbox,
		OldestPending:    oldest,
		DoneToday:        doneToday,
		DoneThisWeek:     doneWeek,
		PendingApprovals: approvals,
		Jobs:             jobs,
	}, nil
}

// Render produces the Dashboard.md document text.
func (st *Status) Render() string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "last_updated: %s\n", st.GeneratedAt.Format(time.RFC3339))
	b.WriteString("---\n\n")
	b.WriteString("# Steward Dashboard\n\n")

	b.WriteString("## Queue\n")
	b.WriteString("| State | Count |\n|-------|-------|\n")
	states := make([]item.State, 0, len(st.StateCounts))
	for state := range st.StateCounts {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	for _, state := range states {
		fmt.Fprintf(&b, "| %s | %d |\n", state, st.StateCounts[state])
	}
	fmt.Fprintf(&b, "| inbox files | %d |\n", st.InboxCount)
	b.WriteString("\n")

	if st.OldestPending != nil {
		fmt.Fprintf(&b, "**Oldest pending item**: %s (%s, since %s)\n\n",
			st.OldestPending.ID, st.OldestPending.State,
			st.OldestPending.Created.UTC().Format("2006-01-02 15:04"))
	}

	fmt.Fprintf(&b, "**Throughput**: %d done today, %d this week\n\n", st.DoneToday, st.DoneThisWeek)

	b.WriteString("## Pending Approvals\n")
	if len(st.PendingApprovals) == 0 {
		b.WriteString("_None._\n")
	} else {
		for _, a := range st.PendingApprovals {
			marker := ""
			if a.Expired {
				marker = " **(expired)**"
			}
			fmt.Fprintf(&b, "- %s [%s] expires %s%s\n",
				a.ID, a.Priority, a.Expires.UTC().Format("2006-01-02 15:04"), marker)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Jobs\n")
	if len(st.Jobs) == 0 {
		b.WriteString("_No scheduled jobs._\n")
	} else {
		b.WriteString("| Job | Last Run | Last Result | Next Run | Failures |\n")
		b.WriteString("|-----|----------|-------------|----------|----------|\n")
		for _, j := range st.Jobs {
			name := j.Name
			if j.Degraded {
				name += " (degraded)"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n",
				name, fmtTime(j.LastRun), j.LastResult, fmtTime(j.NextRun), j.ConsecutiveFailures)
		}
	}
	return b.String()
}

// WriteDashboard renders the projection into Dashboard.md at the vault root.
func (s *Store) WriteDashboard(st *Status) error {
	return s.vault.WriteDoc("", "Dashboard.md", []byte(st.Render()))
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
