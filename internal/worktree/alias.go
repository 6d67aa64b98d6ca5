package worktree

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/session"
)

// EstablishAlias places the session alias symlink at the root of a worktree,
// pointing at the canonical session data root. Agents inside the worktree
// follow the alias to reach the shared queue, context and report directories
// without knowing where the session lives.
//
// Whatever occupies the alias path is replaced: a symlink left by a previous
// assignment, a stale regular file, or a directory some tool created by
// accident. The canonical target is resolved through symlinks first so the
// alias never points at another alias.
func EstablishAlias(worktreePath, dataRoot string) error {
	target, err := filepath.EvalSymlinks(dataRoot)
	if err != nil {
		return fmt.Errorf("resolving session data root %s: %w", dataRoot, err)
	}

	aliasPath := filepath.Join(worktreePath, session.AliasName)

	// Remove handles files and symlinks; RemoveAll covers the directory case.
	if err := os.Remove(aliasPath); err != nil && !os.IsNotExist(err) {
		if err := os.RemoveAll(aliasPath); err != nil {
			return fmt.Errorf("clearing alias path %s: %w", aliasPath, err)
		}
	}

	if err := os.Symlink(target, aliasPath); err != nil {
		return fmt.Errorf("creating session alias %s: %w", aliasPath, err)
	}
	return nil
}

// ResolveAlias returns the session data root an alias points at, or an error
// if the alias is missing or not a symlink.
func ResolveAlias(worktreePath string) (string, error) {
	aliasPath := filepath.Join(worktreePath, session.AliasName)
	info, err := os.Lstat(aliasPath)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return "", fmt.Errorf("%s is not a symlink", aliasPath)
	}
	return os.Readlink(aliasPath)
}
