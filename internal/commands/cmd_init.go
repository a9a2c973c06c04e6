package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/steward/internal/vault"
)

type InitCmd struct {
	flags *Flags
}

func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "init",
		Usage:       "Create the vault directory structure",
		UsageText:   "steward [--vault path] init",
		Description: "Creates every vault area. Safe to run on an existing vault; present areas are left alone.",
		Action:      cmd.run,
	})
	return app
}

func (cmd *InitCmd) run(_ context.Context, c *cli.Command) error {
	root := cmd.flags.Config.Vault
	if err := vault.Scaffold(root); err != nil {
		return fmt.Errorf("init vault: %w", err)
	}
	fmt.Fprintf(c.Writer, "vault ready at %s\n", root)
	return nil
}
