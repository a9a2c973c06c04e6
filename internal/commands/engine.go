package commands

import (
	"fmt"

	"github.com/hay-kot/steward/internal/approvals"
	"github.com/hay-kot/steward/internal/executor"
	"github.com/hay-kot/steward/internal/orchestrator"
	"github.com/hay-kot/steward/internal/planner"
	"github.com/hay-kot/steward/internal/vault"
	"github.com/hay-kot/steward/internal/watch"
)

// engine is the wired processing stack shared by the run, cycle, status,
// and approvals commands.
type engine struct {
	vault  *vault.Vault
	store  *vault.Store
	audit  *vault.AuditLog
	mgr    *approvals.Manager
	orch   *orchestrator.Orchestrator
	folder *watch.FolderWatcher
}

// buildEngine opens the vault and wires the full stack from loaded config.
// The vault must already exist and be structurally complete; a missing or
// incomplete vault is a startup failure, not something to silently repair.
func buildEngine(flags *Flags, orchOpts ...orchestrator.Option) (*engine, error) {
	cfg := flags.Config

	v := vault.New(cfg.Vault)
	if err := v.CheckStructure(); err != nil {
		return nil, fmt.Errorf("vault %s: %w (run 'steward init' to create one)", cfg.Vault, err)
	}

	store, err := vault.NewStore(v)
	if err != nil {
		return nil, err
	}
	audit := vault.NewAuditLog(v.Dir(vault.AreaLogs))
	mgr := approvals.New(v, audit)

	var (
		watchers []watch.Watcher
		folder   *watch.FolderWatcher
	)
	if cfg.Watch.Folder != "" {
		folder, err = watch.NewFolderWatcher(cfg.Watch.Folder, cfg.Watch.Include, cfg.Watch.Ignore)
		if err != nil {
			return nil, err
		}
		watchers = append(watchers, folder)
	}
	if cfg.Watch.EmailSpool != "" {
		watchers = append(watchers, watch.NewEmailWatcher(cfg.Watch.EmailSpool))
	}
	if cfg.Watch.SocialFeed != "" {
		watchers = append(watchers, watch.NewSocialWatcher(cfg.Watch.SocialFeed))
	}

	var exec executor.Executor = executor.DryRun{}
	if !cfg.Executor.DryRun {
		exec = executor.NewHTTP(cfg.Executor.Endpoint)
	}

	opts := append([]orchestrator.Option{
		orchestrator.WithApprovalTTL(cfg.Schedule.ApprovalTTL.Std()),
		orchestrator.WithExecTimeout(cfg.Executor.Timeout.Std()),
	}, orchOpts...)

	orch := orchestrator.New(
		store,
		planner.New(store),
		mgr,
		exec,
		audit,
		watchers,
		opts...,
	)

	return &engine{
		vault:  v,
		store:  store,
		audit:  audit,
		mgr:    mgr,
		orch:   orch,
		folder: folder,
	}, nil
}
