// Package session manages the durable on-disk state of one tower session:
// the directory layout under <projectRoot>/.tower/sessions/<hash>/, the
// per-expert context records, and the session lock that keeps two towers
// from supervising the same project at once.
package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// AliasName is the symlink placed at each worktree root pointing back to the
// canonical session data root. Agents working inside a worktree follow it to
// reach the shared queue and context files without knowing the session hash.
const AliasName = ".tower-session"

// Layout describes the directory structure of one session's data root.
type Layout struct {
	// Root is <projectRoot>/.tower/sessions/<hash>
	Root string
	// Queue holds readiness markers and task files polled by the control loop.
	Queue string
	// Contexts holds one JSON record per expert.
	Contexts string
	// Shared holds files visible to every expert (role instructions, notes).
	Shared string
	// Reports holds completion reports written by experts.
	Reports string
	// Worktrees is where expert git worktrees are created.
	Worktrees string
}

// NewLayout derives the layout for a session data root without touching disk.
func NewLayout(dataRoot string) Layout {
	return Layout{
		Root:      dataRoot,
		Queue:     filepath.Join(dataRoot, "queue"),
		Contexts:  filepath.Join(dataRoot, "contexts"),
		Shared:    filepath.Join(dataRoot, "shared"),
		Reports:   filepath.Join(dataRoot, "reports"),
		Worktrees: filepath.Join(dataRoot, "worktrees"),
	}
}

// Ensure creates every directory in the layout. It is idempotent; existing
// directories are left untouched.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Root, l.Queue, l.Contexts, l.Shared, l.Reports, l.Worktrees} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating session directory %s: %w", dir, err)
		}
	}
	return nil
}

// ContextFile returns the path of the context record for one expert.
func (l Layout) ContextFile(expertID int) string {
	return filepath.Join(l.Contexts, fmt.Sprintf("expert-%d.json", expertID))
}

// ReadyMarker returns the path of the readiness marker an agent drops into
// the queue directory once its startup hook has run.
func (l Layout) ReadyMarker(expertID int) string {
	return filepath.Join(l.Queue, fmt.Sprintf("ready-%d", expertID))
}
