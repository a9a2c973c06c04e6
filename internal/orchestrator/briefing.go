package orchestrator

import (
	"fmt"
	"strings"

	"github.com/hay-kot/steward/internal/vault"
)

// RunBriefing writes the daily briefing document into Briefings. The
// briefing is a derived view like the dashboard: regenerating it for the
// same day overwrites the earlier copy rather than duplicating it.
func (o *Orchestrator) RunBriefing() error {
	summaries, err := o.mgr.Summaries()
	if err != nil {
		return err
	}
	var jobs []vault.JobHealth
	if o.jobsHealth != nil {
		jobs = o.jobsHealth()
	}
	st, err := o.store.BuildStatus(o.audit, summaries, jobs)
	if err != nil {
		return err
	}

	day := o.now().UTC().Format("2006-01-02")
	name := day + "_briefing.md"

	var b strings.Builder
	fmt.Fprintf(&b, "# Daily Briefing %s\n\n", day)
	fmt.Fprintf(&b, "Processed %d items yesterday and today, %d this week.\n\n", st.DoneToday, st.DoneThisWeek)

	open := 0
	for state, n := range st.StateCounts {
		if !state.Terminal() {
			open += n
		}
	}
	fmt.Fprintf(&b, "**Open items**: %d (%d new files in Inbox)\n\n", open, st.InboxCount)

	if st.OldestPending != nil {
		fmt.Fprintf(&b, "Oldest open item: %s, %q, waiting since %s.\n\n",
			st.OldestPending.ID, st.OldestPending.Title,
			st.OldestPending.Created.UTC().Format("2006-01-02 15:04"))
	}

	b.WriteString("## Awaiting Your Decision\n")
	if len(st.PendingApprovals) == 0 {
		b.WriteString("Nothing is waiting on you.\n")
	} else {
		for _, a := range st.PendingApprovals {
			line := fmt.Sprintf("- %s (%s, %s priority)", a.ID, a.Action, a.Priority)
			if a.Expired {
				line += " ** overdue **"
			}
			b.WriteString(line + "\n")
		}
	}

	if err := o.store.Vault().WriteDoc(vault.AreaBriefings, name, []byte(b.String())); err != nil {
		return err
	}
	return o.audit.Append(vault.Entry{
		ActionType: "briefing_created",
		Actor:      "orchestrator",
		Target:     name,
	})
}
