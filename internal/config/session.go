package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// hashLen is the number of hex characters kept from the project root digest.
// 12 characters (48 bits) is plenty for distinguishing projects on one
// machine while staying readable in tmux session names and paths.
const hashLen = 12

// SessionHash derives the stable session identifier for a project root.
// The same root always produces the same hash, so restarting the tower
// reattaches to the existing session state.
func SessionHash(projectRoot string) string {
	sum := sha256.Sum256([]byte(projectRoot))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// SessionConfig is the resolved, immutable description of one tower session.
// It is derived from Config plus the canonical project root and passed to
// every component at bootstrap.
type SessionConfig struct {
	// ProjectRoot is the canonical (symlink-resolved, absolute) project root.
	ProjectRoot string
	// Hash identifies this session; derived from ProjectRoot.
	Hash string
	// DataRoot is the session data directory: <ProjectRoot>/.tower/sessions/<Hash>
	DataRoot string
	// TmuxSession is the tmux session name for this tower.
	TmuxSession string

	ExpertCount  int
	ExpertNames  []string
	AgentCommand string
	ResumeFlag   string
	RolesFile    string
	DefaultRole  string

	ReadinessTimeout time.Duration
	GracePeriod      time.Duration
	ExecTimeout      time.Duration
	StuckAfter       time.Duration
	CaptureInterval  time.Duration

	PaneWidth    int
	PaneHeight   int
	HistoryLimit int
}

// NewSessionConfig resolves the project root and derives the session
// configuration. The root is made absolute and symlink-resolved first so
// that aliased paths to the same project map to the same session.
func NewSessionConfig(cfg *Config) (*SessionConfig, error) {
	root := cfg.Project.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining working directory: %w", err)
		}
		root = wd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root %q: %w", root, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving project root %q: %w", abs, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("checking project root %q: %w", canonical, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %q is not a directory", canonical)
	}

	hash := SessionHash(canonical)

	return &SessionConfig{
		ProjectRoot: canonical,
		Hash:        hash,
		DataRoot:    filepath.Join(canonical, ".tower", "sessions", hash),
		TmuxSession: "tower-" + hash,

		ExpertCount:  cfg.Experts.Count,
		ExpertNames:  cfg.Experts.Names,
		AgentCommand: cfg.Experts.Command,
		ResumeFlag:   cfg.Experts.ResumeFlag,
		RolesFile:    cfg.ResolveRolesFile(canonical),
		DefaultRole:  cfg.Experts.DefaultRole,

		ReadinessTimeout: cfg.Timeouts.Readiness(),
		GracePeriod:      cfg.Timeouts.Grace(),
		ExecTimeout:      cfg.Timeouts.Exec(),
		StuckAfter:       cfg.Timeouts.Stuck(),
		CaptureInterval:  cfg.Tmux.CaptureInterval(),

		PaneWidth:    cfg.Tmux.Width,
		PaneHeight:   cfg.Tmux.Height,
		HistoryLimit: cfg.Tmux.HistoryLimit,
	}, nil
}

// ExpertName returns the configured name for an expert, or a generated
// "expert-N" name when the slot has none. Experts are numbered from 1.
func (c *SessionConfig) ExpertName(expertID int) string {
	if idx := expertID - 1; idx >= 0 && idx < len(c.ExpertNames) && c.ExpertNames[idx] != "" {
		return c.ExpertNames[idx]
	}
	return fmt.Sprintf("expert-%d", expertID)
}
