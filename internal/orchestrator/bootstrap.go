package orchestrator

import (
	"path/filepath"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/bgtask"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/config"
	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/expert"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/history"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/logging"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/session"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/tmux"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/worktree"
)

// Tower is a fully bootstrapped session: the orchestrator plus the resources
// whose lifetime matches the tower process.
type Tower struct {
	*Orchestrator

	SessionCfg *config.SessionConfig
	Logger     *logging.Logger

	lock    *session.Lock
	agents  *expert.Manager
	markers *expert.MarkerCache
	hist    *history.Store
}

// Bootstrap builds a Tower from configuration. Every failure here means the
// tower cannot run at all, so each is wrapped as an infrastructure error
// naming the step that failed.
func Bootstrap(cfg *config.Config) (*Tower, error) {
	sessionCfg, err := config.NewSessionConfig(cfg)
	if err != nil {
		return nil, towererrors.NewInfrastructureError("resolving session", err)
	}

	layout := session.NewLayout(sessionCfg.DataRoot)
	if err := layout.Ensure(); err != nil {
		return nil, towererrors.NewInfrastructureError("preparing session directories", err)
	}

	logger, err := newLogger(cfg, sessionCfg)
	if err != nil {
		return nil, towererrors.NewInfrastructureError("opening debug log", err)
	}
	logger = logger.WithSession(sessionCfg.Hash)

	lock, err := session.AcquireLock(sessionCfg.DataRoot, sessionCfg.Hash, logger)
	if err != nil {
		logger.Close()
		return nil, err
	}

	fail := func(op string, cause error) (*Tower, error) {
		_ = lock.Release()
		logger.Close()
		return nil, towererrors.NewInfrastructureError(op, cause)
	}

	wtManager, err := worktree.New(sessionCfg.ProjectRoot, layout.Worktrees)
	if err != nil {
		_ = lock.Release()
		logger.Close()
		// Not-a-repo keeps its sentinel so callers can special-case it.
		return nil, err
	}

	markers, err := expert.NewMarkerCache(layout.Queue, logger)
	if err != nil {
		return fail("watching readiness markers", err)
	}

	catalog, err := expert.LoadCatalog(sessionCfg.RolesFile)
	if err != nil {
		markers.Close()
		return fail("loading role catalog", err)
	}

	hist, err := history.Open(filepath.Join(sessionCfg.DataRoot, "history.db"))
	if err != nil {
		markers.Close()
		return fail("opening operation history", err)
	}

	classifier := expert.NewClassifier(sessionCfg.StuckAfter)
	client := tmux.NewClient(tmux.SessionSocketName(sessionCfg.Hash), sessionCfg.ExecTimeout)
	agents := expert.NewManager(client, markers, classifier, sessionCfg, logger)
	agents.StartCaptureLoop(sessionCfg.ExpertCount)

	orch := &Orchestrator{
		cfg:       sessionCfg,
		coord:     bgtask.New(logger),
		agents:    agents,
		worktrees: wtManager,
		store:     session.NewContextStore(layout),
		catalog:   catalog,
		hist:      hist,
		alias:     worktree.EstablishAlias,
		logger:    logger,
	}

	logger.Info("tower bootstrapped",
		"project", sessionCfg.ProjectRoot,
		"experts", sessionCfg.ExpertCount,
		"socket", client.Socket(),
	)

	return &Tower{
		Orchestrator: orch,
		SessionCfg:   sessionCfg,
		Logger:       logger,
		lock:         lock,
		agents:       agents,
		markers:      markers,
		hist:         hist,
	}, nil
}

func newLogger(cfg *config.Config, sessionCfg *config.SessionConfig) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.Nop(), nil
	}
	return logging.New(sessionCfg.DataRoot, cfg.Logging.Level)
}

// History exposes the operation history store.
func (t *Tower) History() *history.Store {
	return t.hist
}

// Close releases the tower's resources: capture loop, lock, marker watcher,
// history database and log file. The supervised agents are left running;
// closing the tower is detaching, not stopping.
func (t *Tower) Close() error {
	t.Abandon()
	if t.agents != nil {
		t.agents.StopCaptureLoop()
	}
	if t.markers != nil {
		_ = t.markers.Close()
	}
	if t.hist != nil {
		_ = t.hist.Close()
	}
	err := t.lock.Release()
	t.Logger.Info("tower closed")
	t.Logger.Close()
	return err
}
