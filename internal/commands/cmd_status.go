package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/steward/internal/core/item"
)

type StatusCmd struct {
	flags *Flags
}

func NewStatusCmd(flags *Flags) *StatusCmd {
	return &StatusCmd{flags: flags}
}

func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show the current queue and pending approvals",
		UsageText: "steward status",
		Action:    cmd.run,
	})
	return app
}

func (cmd *StatusCmd) run(_ context.Context, c *cli.Command) error {
	eng, err := buildEngine(cmd.flags)
	if err != nil {
		return err
	}

	summaries, err := eng.mgr.Summaries()
	if err != nil {
		return err
	}
	st, err := eng.store.BuildStatus(eng.audit, summaries, nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tCOUNT")
	for _, state := range []item.State{
		item.StateNeedsAction, item.StatePlanned, item.StatePendingApproval,
		item.StateAutoApproved, item.StateApproved,
	} {
		if n := st.StateCounts[state]; n > 0 {
			fmt.Fprintf(w, "%s\t%d\n", state, n)
		}
	}
	fmt.Fprintf(w, "inbox files\t%d\n", st.InboxCount)
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.Writer, "\n%d done today, %d this week\n", st.DoneToday, st.DoneThisWeek)
	if st.OldestPending != nil {
		fmt.Fprintf(c.Writer, "oldest open item: %s (%s, since %s)\n",
			st.OldestPending.ID, st.OldestPending.State,
			st.OldestPending.Created.UTC().Format("2006-01-02 15:04"))
	}

	if len(summaries) > 0 {
		fmt.Fprintf(c.Writer, "\n%d approval(s) waiting on you:\n", len(summaries))
		aw := tabwriter.NewWriter(c.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(aw, "REQUEST\tACTION\tPRIORITY\tEXPIRES")
		for _, a := range summaries {
			expires := a.Expires.UTC().Format("2006-01-02 15:04")
			if a.Expired {
				expires += " (overdue)"
			}
			fmt.Fprintf(aw, "%s\t%s\t%s\t%s\n", a.ID, a.Action, a.Priority, expires)
		}
		return aw.Flush()
	}
	return nil
}
