// Package orchestrator drives the processing cycle. It is the only
// component that moves work items between lifecycle states, and it derives
// every decision from persisted documents so a crash mid-cycle is always
// recoverable by running the next cycle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/steward/internal/approvals"
	"github.com/hay-kot/steward/internal/core/approval"
	"github.com/hay-kot/steward/internal/core/item"
	"github.com/hay-kot/steward/internal/core/logging"
	"github.com/hay-kot/steward/internal/executor"
	"github.com/hay-kot/steward/internal/planner"
	"github.com/hay-kot/steward/internal/vault"
	"github.com/hay-kot/steward/internal/watch"
	"github.com/hay-kot/steward/pkg/randid"
)

const (
	defaultApprovalTTL = 24 * time.Hour
	defaultExecTimeout = 60 * time.Second

	// maxAttempts bounds automatic execution retries. After this many
	// failures the item is flagged for a human instead of retried forever.
	maxAttempts = 3

	attemptsKey  = "attempts"
	attentionKey = "attention"
)

// CycleStats summarizes one cycle for logging and the cycle_complete record.
type CycleStats struct {
	Detected int
	Planned  int
	Gated    int
	Resolved int
	Executed int
	Failed   int
	Invalid  int
}

// Orchestrator wires the watchers, planner, approval manager, and executor
// into the processing cycle.
type Orchestrator struct {
	store    *vault.Store
	planner  *planner.Planner
	mgr      *approvals.Manager
	exec     executor.Executor
	audit    *vault.AuditLog
	watchers []watch.Watcher

	approvalTTL time.Duration
	execTimeout time.Duration
	jobsHealth  func() []vault.JobHealth
	now         func() time.Time
	log         zerolog.Logger
}

// Option customizes an Orchestrator during construction.
type Option func(*Orchestrator)

// WithClock overrides the orchestrator's clock.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.now = clock }
}

// WithApprovalTTL sets how long a new approval request is valid before it
// is reported as expired.
func WithApprovalTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.approvalTTL = ttl }
}

// WithExecTimeout bounds each execution attempt.
func WithExecTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.execTimeout = d }
}

// WithJobsHealth supplies scheduler health for the dashboard.
func WithJobsHealth(fn func() []vault.JobHealth) Option {
	return func(o *Orchestrator) { o.jobsHealth = fn }
}

// New wires an orchestrator over its collaborators.
func New(
	store *vault.Store,
	pl *planner.Planner,
	mgr *approvals.Manager,
	exec executor.Executor,
	audit *vault.AuditLog,
	watchers []watch.Watcher,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		planner:     pl,
		mgr:         mgr,
		exec:        exec,
		audit:       audit,
		watchers:    watchers,
		approvalTTL: defaultApprovalTTL,
		execTimeout: defaultExecTimeout,
		now:         time.Now,
		log:         logging.Component("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunCycle executes one full pass: detect, plan, gate, resolve, execute,
// refresh. Every phase is error-contained per item so one bad document or
// one failing watcher never stalls the queue; only infrastructure failures
// (an unreadable vault) abort the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	if err := o.store.Vault().CheckStructure(); err != nil {
		o.auditCycleError(err)
		return stats, err
	}

	stats.Detected = o.detect(ctx)
	planned, gated, err := o.planAndGate(ctx)
	if err != nil {
		o.auditCycleError(err)
		return stats, err
	}
	stats.Planned, stats.Gated = planned, gated

	resolved, err := o.resolve()
	if err != nil {
		o.auditCycleError(err)
		return stats, err
	}
	stats.Resolved = resolved

	executed, failed, err := o.execute(ctx)
	if err != nil {
		o.auditCycleError(err)
		return stats, err
	}
	stats.Executed, stats.Failed = executed, failed

	stats.Invalid = o.reportInvalid()

	if err := o.refreshDashboard(); err != nil {
		// The dashboard is a derived view; losing one refresh is not fatal.
		o.log.Warn().Err(err).Msg("dashboard refresh failed")
	}

	if err := o.audit.Append(vault.Entry{
		ActionType: "cycle_complete",
		Actor:      "orchestrator",
		Result:     "success",
		Parameters: map[string]string{
			"detected": strconv.Itoa(stats.Detected),
			"planned":  strconv.Itoa(stats.Planned),
			"resolved": strconv.Itoa(stats.Resolved),
			"executed": strconv.Itoa(stats.Executed),
		},
	}); err != nil {
		return stats, err
	}

	o.log.Info().
		Int("detected", stats.Detected).
		Int("planned", stats.Planned).
		Int("resolved", stats.Resolved).
		Int("executed", stats.Executed).
		Int("failed", stats.Failed).
		Msg("cycle complete")
	return stats, nil
}

func (o *Orchestrator) auditCycleError(cause error) {
	if err := o.audit.Append(vault.Entry{
		ActionType: "cycle_error",
		Actor:      "orchestrator",
		Result:     "error",
		Parameters: map[string]string{"error": cause.Error()},
	}); err != nil {
		o.log.Error().Err(err).Msg("failed to record cycle error")
	}
}

// detect polls every watcher concurrently and ingests unseen candidates.
// A failing watcher is logged and skipped; its events surface next cycle.
func (o *Orchestrator) detect(ctx context.Context) int {
	type pollResult struct {
		name  string
		cands []watch.Candidate
		err   error
	}

	results := make([]pollResult, len(o.watchers))
	var wg sync.WaitGroup
	for i, w := range o.watchers {
		wg.Add(1)
		go func(i int, w watch.Watcher) {
			defer wg.Done()
			cands, err := w.Poll(ctx)
			results[i] = pollResult{name: w.Name(), cands: cands, err: err}
		}(i, w)
	}
	wg.Wait()

	created := 0
	for _, res := range results {
		if res.err != nil {
			o.log.Error().Err(res.err).Str("watcher", res.name).Msg("watcher poll failed")
			continue
		}
		for _, c := range res.cands {
			if o.store.Seen(c.Key) {
				continue
			}
			if err := o.ingest(c); err != nil {
				o.log.Error().Err(err).Str("key", c.Key).Msg("failed to ingest candidate")
				continue
			}
			created++
		}
	}
	return created
}

func (o *Orchestrator) ingest(c watch.Candidate) error {
	id := randid.Generate(8)

	meta := map[string]string{}
	for k, v := range c.Metadata {
		if v != "" {
			meta[k] = v
		}
	}

	w := &item.WorkItem{
		ID:       id,
		Type:     c.Type,
		Source:   c.Source,
		Priority: c.Priority,
		State:    item.StateNeedsAction,
		Created:  o.now().UTC(),
		Title:    c.Title,
		Body:     c.Body,
		Metadata: meta,
	}

	// Payload files are copied in first so the item document never
	// references an attachment that is not there yet.
	for _, att := range c.Attachments {
		name := id + "_" + att.Name
		if err := o.store.Vault().CopyIn(att.SourcePath, vault.AreaNeedsAction, name); err != nil {
			return fmt.Errorf("ingest %s: %w", c.Key, err)
		}
		w.Attachments = append(w.Attachments, name)
	}

	if err := o.store.CreateItem(w, c.Key); err != nil {
		return err
	}

	return o.audit.Append(vault.Entry{
		ActionType: "item_detected",
		Actor:      string(c.Source),
		Target:     id,
		Parameters: map[string]string{"type": c.Type, "priority": string(c.Priority)},
	})
}

// planAndGate plans every triaged item in priority order, then routes each
// planned item through the approval gate or straight to auto approval.
func (o *Orchestrator) planAndGate(ctx context.Context) (planned, gated int, err error) {
	items, _, err := o.store.Items(item.StateNeedsAction)
	if err != nil {
		return 0, 0, err
	}
	for _, w := range items {
		if _, err := o.planner.PlanItem(ctx, w); err != nil {
			o.log.Error().Err(err).Str("item", w.ID).Msg("planning failed")
			continue
		}
		planned++
		if err := o.audit.Append(vault.Entry{
			ActionType: "plan_created",
			Actor:      "planner",
			Target:     w.ID,
			Parameters: map[string]string{"action": w.Type},
		}); err != nil {
			return planned, gated, err
		}
	}

	pending, _, err := o.store.Items(item.StatePlanned)
	if err != nil {
		return planned, gated, err
	}
	for _, w := range pending {
		g, err := o.gate(ctx, w)
		if err != nil {
			o.log.Error().Err(err).Str("item", w.ID).Msg("gating failed")
			continue
		}
		if g {
			gated++
		}
	}
	return planned, gated, nil
}

// gate routes one planned item. Returns true when a human gate was raised.
func (o *Orchestrator) gate(ctx context.Context, w *item.WorkItem) (bool, error) {
	pl, err := o.store.GetPlan(w.ID)
	if err != nil {
		return false, err
	}

	if !pl.RequiresApproval {
		return false, o.store.Transition(w, item.StateAutoApproved)
	}

	now := o.now().UTC()
	req := &approval.Request{
		ID:          randid.Generate(8),
		Action:      pl.ActionType,
		ItemID:      w.ID,
		Priority:    w.Priority,
		Description: w.Title,
		Details:     w.Metadata,
		Created:     now,
		Expires:     now.Add(o.approvalTTL),
		Status:      approval.StatusPending,
	}

	switch err := o.mgr.Create(ctx, req); {
	case err == nil:
	case o.mgr.HasRequest(w.ID):
		// A previous cycle crashed between the request write and the
		// transition. Finish the transition against the surviving request.
		o.log.Debug().Str("item", w.ID).Msg("approval request already present, resuming")
	default:
		return false, err
	}

	return true, o.store.Transition(w, item.StatePendingApproval)
}

// resolve folds human decisions back into item state.
func (o *Orchestrator) resolve() (int, error) {
	decisions, err := o.mgr.ResolvePass()
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, d := range decisions {
		w, err := o.store.GetItem(d.ItemID)
		if err != nil {
			o.log.Error().Err(err).Str("item", d.ItemID).Str("request", d.RequestID).Msg("decision references unknown item")
			continue
		}
		if err := o.applyDecision(w, d.Status); err != nil {
			o.log.Error().Err(err).Str("item", d.ItemID).Msg("failed to apply decision")
			continue
		}
		resolved++
	}

	swept, err := o.sweepDecided()
	if err != nil {
		return resolved, err
	}
	return resolved + swept, nil
}

// sweepDecided finishes items whose request document already sits in a
// decision area but whose state transition never landed, which happens when
// a crash falls between the resolution pass and the item move. Without the
// sweep such an item would wait in pending_approval forever, because the
// request is marked processed and yields no fresh decision.
func (o *Orchestrator) sweepDecided() (int, error) {
	pending, _, err := o.store.Items(item.StatePendingApproval)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, w := range pending {
		_, area, err := o.mgr.Get(w.ID)
		if err != nil {
			if errors.Is(err, approval.ErrNotFound) {
				continue
			}
			o.log.Error().Err(err).Str("item", w.ID).Msg("failed to load approval request")
			continue
		}

		var status approval.Status
		switch area {
		case vault.AreaApproved:
			status = approval.StatusApproved
		case vault.AreaRejected:
			status = approval.StatusRejected
		default:
			continue
		}

		if err := o.applyDecision(w, status); err != nil {
			o.log.Error().Err(err).Str("item", w.ID).Msg("failed to finish stale decision")
			continue
		}
		o.log.Info().Str("item", w.ID).Str("status", string(status)).Msg("finished stale decision")
		swept++
	}
	return swept, nil
}

// applyDecision moves an item out of pending_approval per the human's call.
func (o *Orchestrator) applyDecision(w *item.WorkItem, status approval.Status) error {
	to := item.StateApproved
	if status == approval.StatusRejected {
		to = item.StateRejected
	}
	if err := o.store.Transition(w, to); err != nil {
		return err
	}

	if to == item.StateRejected {
		// Rejection is terminal; record the outcome now since the item
		// will never reach execution.
		return o.audit.Append(vault.Entry{
			ActionType:     "item_processed",
			Actor:          "orchestrator",
			Target:         w.ID,
			Result:         "rejected",
			ApprovalStatus: string(approval.StatusRejected),
			ApprovedBy:     "human",
		})
	}
	return nil
}

// execute performs every approved action, bounded per attempt, with bounded
// retries across cycles.
func (o *Orchestrator) execute(ctx context.Context) (executed, failed int, err error) {
	ready, _, err := o.store.Items(item.StateApproved, item.StateAutoApproved)
	if err != nil {
		return 0, 0, err
	}

	for _, w := range ready {
		if w.Metadata[attentionKey] == "true" {
			continue
		}

		ok, execErr := o.executeOne(ctx, w)
		if execErr != nil {
			return executed, failed, execErr
		}
		if ok {
			executed++
		} else {
			failed++
		}
	}
	return executed, failed, nil
}

func (o *Orchestrator) executeOne(ctx context.Context, w *item.WorkItem) (bool, error) {
	approvalStatus := string(approval.StatusApproved)
	approvedBy := "human"
	if w.State == item.StateAutoApproved {
		approvalStatus = string(item.StateAutoApproved)
		approvedBy = "policy"
	}

	actionType := w.Type
	if pl, err := o.store.GetPlan(w.ID); err == nil {
		actionType = pl.ActionType
	}
	action := executor.Action{
		Type:       actionType,
		ItemID:     w.ID,
		Title:      w.Title,
		Parameters: w.Metadata,
	}

	attemptCtx, cancel := context.WithTimeout(ctx, o.execTimeout)
	res, execErr := o.exec.Execute(attemptCtx, action)
	cancel()

	if execErr != nil {
		attempts := 1
		if prev, err := strconv.Atoi(w.Metadata[attemptsKey]); err == nil {
			attempts = prev + 1
		}
		if w.Metadata == nil {
			w.Metadata = map[string]string{}
		}
		w.Metadata[attemptsKey] = strconv.Itoa(attempts)

		entry := vault.Entry{
			ActionType: "execution_failed",
			Actor:      "executor",
			Target:     w.ID,
			Result:     "error",
			Parameters: map[string]string{"error": execErr.Error(), attemptsKey: strconv.Itoa(attempts)},
		}
		if attempts >= maxAttempts {
			// Out of retries. Park the item and flag it for a human; it
			// stays approved so clearing the flag resumes it.
			w.Metadata[attentionKey] = "true"
			entry.ActionType = "item_attention"
		}
		o.log.Error().Err(execErr).Str("item", w.ID).Int(attemptsKey, attempts).Msg("execution failed")

		if err := o.store.SaveItem(w); err != nil {
			return false, err
		}
		return false, o.audit.Append(entry)
	}

	if err := o.store.Transition(w, item.StateExecuted); err != nil {
		return false, err
	}
	if err := o.store.Transition(w, item.StateDone); err != nil {
		return false, err
	}

	return true, o.audit.Append(vault.Entry{
		ActionType:     "item_processed",
		Actor:          "executor",
		Target:         w.ID,
		Result:         res.Status,
		ApprovalStatus: approvalStatus,
		ApprovedBy:     approvedBy,
		Parameters:     map[string]string{"action": actionType, "detail": res.Detail},
	})
}

// reportInvalid audits documents that failed validation. The store flags
// each document once, so re-running cycles does not repeat the noise.
func (o *Orchestrator) reportInvalid() int {
	_, invalid, err := o.store.Items()
	if err != nil {
		o.log.Error().Err(err).Msg("invalid-document sweep failed")
		return 0
	}
	for _, bad := range invalid {
		o.log.Warn().Str("doc", bad.Name).Str("area", bad.Area).Err(bad.Err).Msg("invalid document excluded")
		if err := o.audit.Append(vault.Entry{
			ActionType: "invalid_document",
			Actor:      "orchestrator",
			Target:     bad.Name,
			Result:     "excluded",
			Parameters: map[string]string{"error": bad.Err.Error()},
		}); err != nil {
			o.log.Error().Err(err).Msg("failed to audit invalid document")
		}
	}
	return len(invalid)
}

func (o *Orchestrator) refreshDashboard() error {
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
	return o.store.WriteDashboard(st)
}
