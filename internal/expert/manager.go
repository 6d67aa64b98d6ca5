package expert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/config"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/logging"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/tmux"
)

// readyPollInterval is how often WaitForReady re-checks markers and pane
// output.
const readyPollInterval = 250 * time.Millisecond

// exitCommand is the polite stop request typed into an agent during
// relocation. The agent flushes its conversation state before exiting, which
// a kill would lose.
const exitCommand = "/exit"

// Manager launches, instructs and stops agents in their tmux sessions. One
// Manager serves all experts of a session; per-expert serialization is the
// coordinator's job, not the Manager's.
//
// Pane observation runs on a background capture loop so that Sample is a pure
// in-memory read the control loop can call every tick.
type Manager struct {
	client     *tmux.Client
	markers    *MarkerCache
	classifier *Classifier
	cfg        *config.SessionConfig
	logger     *logging.Logger

	mu       sync.Mutex
	statuses map[int]Status

	done chan struct{}
	wg   sync.WaitGroup
}

// NewManager wires a Manager over an existing tmux client and marker cache.
func NewManager(client *tmux.Client, markers *MarkerCache, classifier *Classifier, cfg *config.SessionConfig, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		client:     client,
		markers:    markers,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
		statuses:   make(map[int]Status),
	}
}

// StartCaptureLoop begins periodic pane observation for all experts. Each
// pass captures every expert's pane, feeds the classifier and refreshes the
// status cache Sample reads from.
func (m *Manager) StartCaptureLoop(expertCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	m.done = make(chan struct{})
	m.wg.Add(1)
	go m.captureLoop(expertCount)
}

// StopCaptureLoop stops the capture loop and waits for the in-flight pass to
// finish. Safe to call when the loop was never started.
func (m *Manager) StopCaptureLoop() {
	m.mu.Lock()
	done := m.done
	m.done = nil
	m.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	m.wg.Wait()
}

func (m *Manager) captureLoop(expertCount int) {
	defer m.wg.Done()

	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	interval := m.cfg.CaptureInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ExecTimeout)
			for id := 1; id <= expertCount; id++ {
				m.setStatus(id, m.observe(ctx, id))
			}
			cancel()
		}
	}
}

// observe captures and classifies one expert's pane. This is the only path
// that talks to tmux for status; everything else reads the cache.
func (m *Manager) observe(ctx context.Context, expertID int) Status {
	sessionName := tmux.ExpertSessionName(expertID)
	if !m.client.HasSession(ctx, sessionName) {
		return StatusPending
	}
	capture, err := m.client.CapturePane(ctx, sessionName, 0)
	if err != nil {
		return StatusUnknown
	}
	m.classifier.Observe(expertID, capture)
	return m.classifier.Classify(expertID, m.markers.Ready(expertID))
}

func (m *Manager) setStatus(expertID int, status Status) {
	m.mu.Lock()
	m.statuses[expertID] = status
	m.mu.Unlock()
}

// HasAgent reports whether the expert currently has a tmux session.
func (m *Manager) HasAgent(ctx context.Context, expertID int) bool {
	return m.client.HasSession(ctx, tmux.ExpertSessionName(expertID))
}

// Launch starts an agent for the expert in the given working directory.
// A non-empty resumeToken reattaches the agent to its previous conversation.
// Any existing tmux session for the expert is replaced.
func (m *Manager) Launch(ctx context.Context, expertID int, workDir, resumeToken string) error {
	sessionName := tmux.ExpertSessionName(expertID)
	log := m.logger.WithExpert(expertID)

	if m.client.HasSession(ctx, sessionName) {
		log.Debug("replacing existing tmux session")
		if err := m.client.KillSession(ctx, sessionName); err != nil {
			return fmt.Errorf("replacing session for expert %d: %w", expertID, err)
		}
	}

	if err := m.markers.Clear(expertID); err != nil {
		return fmt.Errorf("clearing stale readiness marker: %w", err)
	}
	m.classifier.Forget(expertID)

	if err := m.client.CreateSession(ctx, sessionName, workDir,
		m.cfg.PaneWidth, m.cfg.PaneHeight, m.cfg.HistoryLimit); err != nil {
		return fmt.Errorf("creating tmux session for expert %d: %w", expertID, err)
	}
	if err := m.client.SetPaneTitle(ctx, sessionName, m.cfg.ExpertName(expertID)); err != nil {
		log.Debug("setting pane title failed", "error", err)
	}

	command := m.cfg.AgentCommand
	if resumeToken != "" {
		command = command + " " + m.cfg.ResumeFlag + " " + resumeToken
	}
	if err := m.client.SendLine(ctx, sessionName, command); err != nil {
		return fmt.Errorf("starting agent for expert %d: %w", expertID, err)
	}

	m.setStatus(expertID, StatusStarting)
	log.Info("agent launched", "workdir", workDir, "resumed", resumeToken != "")
	return nil
}

// WaitForReady blocks until the expert's agent reports ready or the timeout
// expires. Expiry is an observation, not a failure: it returns (false, nil)
// and the agent keeps starting in the background. Only infrastructure
// problems produce an error.
func (m *Manager) WaitForReady(ctx context.Context, expertID int, timeout time.Duration) (bool, error) {
	sessionName := tmux.ExpertSessionName(expertID)
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if m.markers.Ready(expertID) {
			m.setStatus(expertID, StatusReady)
			return true, nil
		}
		if capture, err := m.client.CapturePane(ctx, sessionName, 0); err == nil {
			m.classifier.Observe(expertID, capture)
			if m.classifier.Classify(expertID, false) == StatusReady {
				m.setStatus(expertID, StatusReady)
				return true, nil
			}
		}

		if time.Now().After(deadline) {
			m.logger.WithExpert(expertID).Warn("readiness window expired", "timeout", timeout)
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SendInstruction types an instruction into the expert's agent. An empty
// instruction is a silent no-op so roleless launches skip this step without
// special-casing.
func (m *Manager) SendInstruction(ctx context.Context, expertID int, instruction string) error {
	if instruction == "" {
		return nil
	}
	sessionName := tmux.ExpertSessionName(expertID)
	if err := m.client.SendText(ctx, sessionName, instruction); err != nil {
		return fmt.Errorf("typing instruction for expert %d: %w", expertID, err)
	}
	if err := m.client.SendKeys(ctx, sessionName, "Enter"); err != nil {
		return fmt.Errorf("submitting instruction for expert %d: %w", expertID, err)
	}
	m.logger.WithExpert(expertID).Debug("instruction sent", "bytes", len(instruction))
	return nil
}

// RequestExit asks the expert's agent to exit politely and waits out the
// grace period. Missing sessions are fine: there is nothing to stop.
func (m *Manager) RequestExit(ctx context.Context, expertID int, grace time.Duration) error {
	sessionName := tmux.ExpertSessionName(expertID)
	if !m.client.HasSession(ctx, sessionName) {
		return nil
	}

	pid := m.client.PanePID(ctx, sessionName)
	if err := m.client.SendLine(ctx, sessionName, exitCommand); err != nil {
		return fmt.Errorf("requesting exit for expert %d: %w", expertID, err)
	}

	if pid > 0 {
		tmux.WaitForProcessExit(pid, grace)
	} else {
		time.Sleep(grace)
	}

	// The session may have closed itself when the agent exited; remove it
	// if it lingers so the relaunch starts clean.
	if m.client.HasSession(ctx, sessionName) {
		_ = m.client.KillSession(ctx, sessionName)
	}
	m.logger.WithExpert(expertID).Info("agent exit requested", "grace", grace)
	return nil
}

// Kill terminates the expert's agent outright: Ctrl+C, a short wait, then
// session teardown and force-kill of survivors.
func (m *Manager) Kill(expertID int) {
	sessionName := tmux.ExpertSessionName(expertID)
	tmux.GracefulShutdown(m.client.Socket(), sessionName, tmux.DefaultGracefulStopTimeout)
	m.classifier.Forget(expertID)
	_ = m.markers.Clear(expertID)
	m.setStatus(expertID, StatusPending)
	m.logger.WithExpert(expertID).Info("agent killed")
}

// Sample returns the expert's status as last observed by the capture loop.
// It never touches tmux, so the control loop can call it every tick without
// blocking. Experts never observed report pending.
func (m *Manager) Sample(expertID int) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.statuses[expertID]; ok {
		return status
	}
	return StatusPending
}
