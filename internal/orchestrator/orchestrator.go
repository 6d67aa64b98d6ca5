// Package orchestrator ties the tower together: it owns the per-expert
// guarded operations (launch, relocate, kill), delegates their execution to
// the background coordinator, and exposes the poll surface the control loop
// reads every tick.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/bgtask"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/config"
	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/expert"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/history"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/logging"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/session"
)

// agentRunner is the slice of expert.Manager the orchestrator depends on.
type agentRunner interface {
	HasAgent(ctx context.Context, expertID int) bool
	Launch(ctx context.Context, expertID int, workDir, resumeToken string) error
	WaitForReady(ctx context.Context, expertID int, timeout time.Duration) (bool, error)
	SendInstruction(ctx context.Context, expertID int, instruction string) error
	RequestExit(ctx context.Context, expertID int, grace time.Duration) error
	Kill(expertID int)
	Sample(expertID int) expert.Status
}

// worktreeAttacher is the slice of worktree.Manager the orchestrator depends on.
type worktreeAttacher interface {
	Attach(branch string) (string, error)
}

// contextStore is the slice of session.ContextStore the orchestrator depends on.
type contextStore interface {
	LoadOrCreate(sessionHash string, expertID int) (*session.ExpertContext, error)
	Save(ctx *session.ExpertContext) error
	List() ([]*session.ExpertContext, error)
}

// aliasFunc places the session alias into a worktree.
type aliasFunc func(worktreePath, dataRoot string) error

// Orchestrator coordinates all guarded operations for one session.
type Orchestrator struct {
	cfg       *config.SessionConfig
	coord     *bgtask.Coordinator
	agents    agentRunner
	worktrees worktreeAttacher
	store     contextStore
	catalog   *expert.Catalog
	hist      *history.Store
	alias     aliasFunc
	logger    *logging.Logger
}

// LaunchOptions control one guarded launch.
type LaunchOptions struct {
	// Branch relocates the expert to this worktree branch. Empty keeps the
	// expert's current worktree, or assigns the default branch on first
	// launch.
	Branch string
	// Role selects the instruction sent once the agent is ready. Empty
	// keeps the expert's recorded role.
	Role string
}

// resourceKey is the coordinator key for one expert.
func resourceKey(expertID int) string {
	return fmt.Sprintf("expert-%d", expertID)
}

// defaultBranch is the branch an expert gets when nothing was ever assigned.
func defaultBranch(expertID int) string {
	return fmt.Sprintf("expert-%d", expertID)
}

// StartLaunch begins a guarded launch for the expert in the background.
// Returns errors.ErrOperationInProgress if the expert already has an
// operation in flight. The result is delivered through Poll.
func (o *Orchestrator) StartLaunch(expertID int, opts LaunchOptions) error {
	name := "launch"
	if opts.Branch != "" {
		name = "relocate"
	}
	return o.coord.Start(resourceKey(expertID), name, func(ctx context.Context) bgtask.Result {
		return o.runGuardedLaunch(ctx, expertID, opts, name)
	})
}

// StartKill begins a background kill of the expert's agent. The worktree and
// context record survive; only the process goes away.
func (o *Orchestrator) StartKill(expertID int) error {
	return o.coord.Start(resourceKey(expertID), "kill", func(ctx context.Context) bgtask.Result {
		started := time.Now()
		o.agents.Kill(expertID)
		o.record(history.Record{
			ExpertID:  expertID,
			Operation: "kill",
			Outcome:   history.OutcomeOK,
			Started:   started,
			Finished:  time.Now(),
		})
		return bgtask.Result{Message: fmt.Sprintf("expert %d killed", expertID)}
	})
}

// runGuardedLaunch is the full launch sequence. It runs inside the
// coordinator's slot for the expert, so nothing else touches this expert
// until the result is delivered.
func (o *Orchestrator) runGuardedLaunch(ctx context.Context, expertID int, opts LaunchOptions, opName string) bgtask.Result {
	started := time.Now()
	log := o.logger.WithExpert(expertID).WithOperation(opName)

	fail := func(err error) bgtask.Result {
		log.Error("operation failed", "error", err, "severity", towererrors.SeverityOf(err).String())
		o.record(history.Record{
			ExpertID:  expertID,
			Operation: opName,
			Branch:    opts.Branch,
			Outcome:   history.OutcomeError,
			Detail:    err.Error(),
			Started:   started,
			Finished:  time.Now(),
		})
		return bgtask.Result{Err: err}
	}

	// A live agent exits politely before anything moves underneath it. The
	// grace period gives it time to flush conversation state.
	if o.agents.HasAgent(ctx, expertID) {
		if err := o.agents.RequestExit(ctx, expertID, o.cfg.GracePeriod); err != nil {
			return fail(err)
		}
	}

	record, err := o.store.LoadOrCreate(o.cfg.Hash, expertID)
	if err != nil {
		return fail(err)
	}

	branch := opts.Branch
	if branch == "" {
		branch = record.WorktreeBranch
	}
	if branch == "" {
		branch = defaultBranch(expertID)
	}

	path, err := o.worktrees.Attach(branch)
	if err != nil {
		return fail(err)
	}
	if err := o.alias(path, o.cfg.DataRoot); err != nil {
		return fail(err)
	}

	// Changing worktree invalidates the resume token; both land in one
	// save so a crash between them cannot leave a token pointing into the
	// wrong worktree.
	if record.WorktreePath != path || record.WorktreeBranch != branch {
		record.AssignWorktree(branch, path)
	}
	if opts.Role != "" {
		record.SetRole(opts.Role)
	}
	if err := o.store.Save(record); err != nil {
		return fail(err)
	}

	if err := o.agents.Launch(ctx, expertID, path, record.ResumeToken); err != nil {
		return fail(err)
	}

	ready, err := o.agents.WaitForReady(ctx, expertID, o.cfg.ReadinessTimeout)
	if err != nil {
		return fail(err)
	}
	if !ready {
		log.Warn("agent not ready within window", "branch", branch)
		o.record(history.Record{
			ExpertID:  expertID,
			Operation: opName,
			Branch:    branch,
			Outcome:   history.OutcomeNotReady,
			Started:   started,
			Finished:  time.Now(),
		})
		return bgtask.Result{
			Message: fmt.Sprintf("expert %d launched on %s (not ready yet)", expertID, branch),
			Ready:   false,
		}
	}

	role := o.catalog.Lookup(record.Role)
	if err := o.agents.SendInstruction(ctx, expertID, role.Instruction); err != nil {
		return fail(err)
	}

	log.Info("operation complete", "branch", branch, "ready", true)
	o.record(history.Record{
		ExpertID:  expertID,
		Operation: opName,
		Branch:    branch,
		Outcome:   history.OutcomeOK,
		Started:   started,
		Finished:  time.Now(),
	})
	return bgtask.Result{
		Message: fmt.Sprintf("expert %d ready on %s", expertID, branch),
		Ready:   true,
	}
}

// record appends to history, tolerating a nil store (tests) and logging
// append failures instead of surfacing them: history must never fail an
// operation that already succeeded.
func (o *Orchestrator) record(r history.Record) {
	if o.hist == nil {
		return
	}
	if err := o.hist.Append(r); err != nil {
		o.logger.Warn("history append failed", "error", err)
	}
}

// Poll observes one expert's operation slot. Delivered results free the slot.
func (o *Orchestrator) Poll(expertID int) bgtask.Poll {
	return o.coord.PollOne(resourceKey(expertID))
}

// Busy reports whether the expert has an operation in flight.
func (o *Orchestrator) Busy(expertID int) bool {
	return o.coord.Busy(resourceKey(expertID))
}

// Status returns the expert's status as last observed by the background
// capture loop; it never blocks on external commands. Experts with an
// operation in flight report starting, since the pane is mid-transition.
func (o *Orchestrator) Status(expertID int) expert.Status {
	if o.coord.Busy(resourceKey(expertID)) {
		return expert.StatusStarting
	}
	return o.agents.Sample(expertID)
}

// Contexts returns the persisted context records of all experts.
func (o *Orchestrator) Contexts() ([]*session.ExpertContext, error) {
	return o.store.List()
}

// Experts returns the session's expert roster: stable ids and names from
// configuration, current roles from the persisted context records.
func (o *Orchestrator) Experts() []expert.Expert {
	roles := make(map[int]string)
	if contexts, err := o.store.List(); err == nil {
		for _, c := range contexts {
			roles[c.ExpertID] = c.Role
		}
	}

	experts := make([]expert.Expert, o.cfg.ExpertCount)
	for i := range experts {
		id := i + 1
		experts[i] = expert.Expert{
			ID:   id,
			Name: o.cfg.ExpertName(id),
			Role: roles[id],
		}
	}
	return experts
}

// ExpertCount returns the configured number of experts.
func (o *Orchestrator) ExpertCount() int {
	return o.cfg.ExpertCount
}

// Roles returns the role catalog.
func (o *Orchestrator) Roles() *expert.Catalog {
	return o.catalog
}

// Abandon drops all operation slots without cancelling the operations. The
// supervised agents keep running; this is the quit path.
func (o *Orchestrator) Abandon() {
	o.coord.Abandon()
}
