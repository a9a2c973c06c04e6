package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/steward/internal/orchestrator"
	"github.com/hay-kot/steward/internal/scheduler"
)

type RunCmd struct {
	flags *Flags
}

func NewRunCmd(flags *Flags) *RunCmd {
	return &RunCmd{flags: flags}
}

func (cmd *RunCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "run",
		Usage:       "Run the engine until interrupted",
		UsageText:   "steward run",
		Description: "Starts the scheduler loop: periodic processing cycles, the daily briefing, and approval expiry sweeps.",
		Action:      cmd.run,
	})
	return app
}

func (cmd *RunCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New()
	eng, err := buildEngine(cmd.flags, orchestrator.WithJobsHealth(sched.Health))
	if err != nil {
		return err
	}

	cfg := cmd.flags.Config
	jobs := []scheduler.Job{
		{
			Name:     "cycle",
			Interval: cfg.Schedule.CycleEvery.Std(),
			Run: func(ctx context.Context) error {
				_, err := eng.orch.RunCycle(ctx)
				return err
			},
		},
		{
			Name: "daily_briefing",
			At:   cfg.Schedule.BriefingAt,
			Run: func(context.Context) error {
				return eng.orch.RunBriefing()
			},
		},
		{
			Name:     "expiry_check",
			Interval: cfg.Schedule.ExpirySweep.Std(),
			Run: func(context.Context) error {
				expired, err := eng.mgr.CheckExpired()
				if err != nil {
					return err
				}
				for _, r := range expired {
					log.Warn().Str("request", r.ID).Str("item", r.ItemID).
						Time("expired", r.Expires).Msg("approval request awaiting decision past expiry")
				}
				return nil
			},
		},
	}
	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			return err
		}
	}

	// File events shorten cycle latency when a folder watcher is configured.
	if eng.folder != nil {
		nudge, err := eng.folder.Notify(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("file notifications unavailable, relying on polling")
		} else {
			go func() {
				for range nudge {
					sched.Kick("cycle")
				}
			}()
		}
	}

	// One immediate cycle so startup does not wait a full interval.
	if _, err := eng.orch.RunCycle(ctx); err != nil {
		return err
	}

	fmt.Fprintf(c.Writer, "steward running against %s (cycle every %s)\n", cfg.Vault, cfg.Schedule.CycleEvery)
	sched.Run(ctx, time.Second)

	log.Info().Msg("shutting down")
	return nil
}
