package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type CycleCmd struct {
	flags    *Flags
	briefing bool
}

func NewCycleCmd(flags *Flags) *CycleCmd {
	return &CycleCmd{flags: flags}
}

func (cmd *CycleCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "cycle",
		Usage:       "Run one processing cycle and exit",
		UsageText:   "steward cycle [options]",
		Description: "Detects new work, plans it, applies human decisions, and executes approved actions. Suitable for cron.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "briefing",
				Usage:       "also write the daily briefing",
				Destination: &cmd.briefing,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *CycleCmd) run(ctx context.Context, c *cli.Command) error {
	eng, err := buildEngine(cmd.flags)
	if err != nil {
		return err
	}

	stats, err := eng.orch.RunCycle(ctx)
	if err != nil {
		return err
	}

	if cmd.briefing {
		if err := eng.orch.RunBriefing(); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.Writer, "cycle complete: %d detected, %d planned, %d resolved, %d executed, %d failed\n",
		stats.Detected, stats.Planned, stats.Resolved, stats.Executed, stats.Failed)
	return nil
}
