// Package worktree manages the git worktrees experts work in. Each expert
// gets one worktree under the session's worktrees directory, isolating its
// changes from every other expert and from the main checkout.
package worktree

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
)

// Manager handles git worktree operations for one session.
type Manager struct {
	repoDir      string
	worktreesDir string
}

// FindGitRoot finds the root of the git repository by traversing up from
// startDir. It returns the directory containing .git (either a directory or
// a file for worktrees). Returns errors.ErrNotGitRepository if no repository
// is found.
func FindGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			// .git can be a directory (normal repo) or a file (worktree)
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: searched from %s", towererrors.ErrNotGitRepository, startDir)
		}
		dir = parent
	}
}

// New creates a worktree Manager rooted at the repository containing
// startDir. Worktrees are created under worktreesDir.
func New(startDir, worktreesDir string) (*Manager, error) {
	gitRoot, err := FindGitRoot(startDir)
	if err != nil {
		return nil, err
	}
	return &Manager{repoDir: gitRoot, worktreesDir: worktreesDir}, nil
}

// RepoDir returns the repository root this manager operates on.
func (m *Manager) RepoDir() string {
	return m.repoDir
}

// PathFor returns the worktree path for a branch without touching disk.
// Slashes in branch names are flattened so the path stays a single level
// below the worktrees directory.
func (m *Manager) PathFor(branch string) string {
	return filepath.Join(m.worktreesDir, strings.ReplaceAll(branch, "/", "-"))
}

// Attach ensures a worktree exists for the given branch and returns its
// path. The operation is idempotent:
//
//   - If a worktree for the branch already exists, its path is returned
//     unchanged and git is not invoked further.
//   - If the branch exists but has no worktree, a worktree is attached to it,
//     preserving the branch's history.
//   - Otherwise a new branch is created from the current HEAD together with
//     its worktree.
//
// When git reports the branch as already checked out or the target path as
// already registered despite the checks above, the repository's worktree
// metadata is stale and a StaleWorktreeError is returned; the user resolves
// it with `tower prune` and retries. Recovery stays a user action.
func (m *Manager) Attach(branch string) (string, error) {
	if existing, err := m.findWorktreeForBranch(branch); err == nil && existing != "" {
		return existing, nil
	}

	path := m.PathFor(branch)
	if err := os.MkdirAll(m.worktreesDir, 0o755); err != nil {
		return "", fmt.Errorf("creating worktrees directory: %w", err)
	}

	if m.branchExists(branch) {
		if err := m.git("worktree", "add", path, branch); err != nil {
			return "", classifyAddError(err, branch, path)
		}
		return path, nil
	}

	if err := m.git("worktree", "add", "-b", branch, path); err != nil {
		return "", classifyAddError(err, branch, path)
	}
	return path, nil
}

// classifyAddError converts git's "already checked out" and "already exists"
// failures into StaleWorktreeError; everything else passes through.
func classifyAddError(err error, branch, path string) error {
	var cmdErr *towererrors.CommandError
	if towererrors.As(err, &cmdErr) {
		out := strings.ToLower(cmdErr.Output)
		if strings.Contains(out, "already checked out") ||
			strings.Contains(out, "already registered") ||
			strings.Contains(out, "already exists") {
			return &towererrors.StaleWorktreeError{
				Branch: branch,
				Path:   path,
				Detail: strings.TrimSpace(cmdErr.Output),
			}
		}
	}
	return err
}

// Remove removes a worktree, falling back to manual cleanup plus prune when
// git cannot remove it cleanly.
func (m *Manager) Remove(path string) error {
	if err := m.git("worktree", "remove", "--force", path); err != nil {
		_ = os.RemoveAll(path)
		_ = m.git("worktree", "prune")
		return fmt.Errorf("failed to remove worktree cleanly: %w", err)
	}
	return nil
}

// Prune drops stale worktree metadata for paths that no longer exist.
func (m *Manager) Prune() error {
	return m.git("worktree", "prune")
}

// Entry describes one registered worktree.
type Entry struct {
	Path   string
	Branch string
}

// List returns all worktrees registered in the repository, including the
// main checkout.
func (m *Manager) List() ([]Entry, error) {
	output, err := m.gitOutput("worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var entries []Entry
	var current Entry
	for _, line := range strings.Split(string(output), "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current.Path != "" {
				entries = append(entries, current)
			}
			current = Entry{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch refs/heads/"):
			current.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		}
	}
	if current.Path != "" {
		entries = append(entries, current)
	}
	return entries, nil
}

// findWorktreeForBranch returns the path of the worktree checked out on the
// given branch, or "" if none is.
func (m *Manager) findWorktreeForBranch(branch string) (string, error) {
	entries, err := m.List()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Branch == branch {
			// Ignore registrations whose directory is gone; Attach will
			// surface those as stale.
			if _, statErr := os.Stat(e.Path); statErr == nil {
				return e.Path, nil
			}
		}
	}
	return "", nil
}

// Branch returns the branch checked out in a worktree.
func (m *Manager) Branch(path string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = path
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get branch: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// branchExists reports whether a local branch exists.
func (m *Manager) branchExists(branch string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "refs/heads/"+branch)
	cmd.Dir = m.repoDir
	return cmd.Run() == nil
}

// HasUncommittedChanges checks if a worktree has uncommitted changes.
func (m *Manager) HasUncommittedChanges(path string) (bool, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = path
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to check status: %w", err)
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

func (m *Manager) git(args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = m.repoDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return towererrors.NewCommandError("git", args, output, err)
	}
	return nil
}

func (m *Manager) gitOutput(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = m.repoDir
	output, err := cmd.Output()
	if err != nil {
		return nil, towererrors.NewCommandError("git", args, output, err)
	}
	return output, nil
}
