package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/steward/internal/vault"
)

type ApprovalsCmd struct {
	flags        *Flags
	checkExpired bool
}

func NewApprovalsCmd(flags *Flags) *ApprovalsCmd {
	return &ApprovalsCmd{flags: flags}
}

func (cmd *ApprovalsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "approvals",
		Usage:     "List pending approval requests",
		UsageText: "steward approvals [options]",
		Description: fmt.Sprintf(
			"Approve or reject a request by moving its document from %s into %s or %s.",
			vault.AreaPendingApproval, vault.AreaApproved, vault.AreaRejected),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "check-expired",
				Usage:       "only report requests past their expiry",
				Destination: &cmd.checkExpired,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ApprovalsCmd) run(_ context.Context, c *cli.Command) error {
	eng, err := buildEngine(cmd.flags)
	if err != nil {
		return err
	}

	pending, err := eng.mgr.ListPending()
	if err != nil {
		return err
	}

	if cmd.checkExpired {
		expired, err := eng.mgr.CheckExpired()
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			fmt.Fprintln(c.Writer, "no expired requests")
			return nil
		}
		for _, r := range expired {
			fmt.Fprintf(c.Writer, "%s (%s) expired %s, still awaiting your decision\n",
				r.ID, r.Action, r.Expires.UTC().Format("2006-01-02 15:04"))
		}
		return nil
	}

	if len(pending) == 0 {
		fmt.Fprintln(c.Writer, "nothing waiting for approval")
		return nil
	}

	w := tabwriter.NewWriter(c.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REQUEST\tITEM\tACTION\tPRIORITY\tCREATED\tEXPIRES")
	for _, r := range pending {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.ItemID, r.Action, r.Priority,
			r.Created.UTC().Format("2006-01-02 15:04"),
			r.Expires.UTC().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
