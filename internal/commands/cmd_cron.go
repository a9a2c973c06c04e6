package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/steward/internal/scheduler"
)

type CronCmd struct {
	flags *Flags
}

func NewCronCmd(flags *Flags) *CronCmd {
	return &CronCmd{flags: flags}
}

func (cmd *CronCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "cron",
		Usage:       "Print crontab lines for the configured schedule",
		UsageText:   "steward cron",
		Description: "Prints crontab entries equivalent to 'steward run', for setups that prefer cron over a long-running process. Nothing is installed.",
		Action:      cmd.run,
	})
	return app
}

func (cmd *CronCmd) run(_ context.Context, c *cli.Command) error {
	bin, err := os.Executable()
	if err != nil {
		bin = "steward"
	}

	cfg := cmd.flags.Config
	spec := scheduler.CrontabSpec{
		Binary:       bin,
		VaultPath:    cfg.Vault,
		CycleEvery:   cfg.Schedule.CycleEvery.Std(),
		BriefingAt:   cfg.Schedule.BriefingAt,
		ExpirySweep:  cfg.Schedule.ExpirySweep.Std(),
		IncludeNotes: true,
	}

	out, err := spec.Crontab()
	if err != nil {
		return err
	}
	fmt.Fprint(c.Writer, out)
	return nil
}
