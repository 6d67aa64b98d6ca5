package worktree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/session"
)

func TestEstablishAlias(t *testing.T) {
	worktree := t.TempDir()
	dataRoot := t.TempDir()

	if err := EstablishAlias(worktree, dataRoot); err != nil {
		t.Fatalf("EstablishAlias: %v", err)
	}

	target, err := ResolveAlias(worktree)
	if err != nil {
		t.Fatalf("ResolveAlias: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(dataRoot)
	if err != nil {
		t.Fatal(err)
	}
	if target != resolved {
		t.Errorf("alias points at %q, want %q", target, resolved)
	}
}

func TestEstablishAliasReplacesExistingSymlink(t *testing.T) {
	worktree := t.TempDir()
	oldRoot := t.TempDir()
	newRoot := t.TempDir()

	if err := EstablishAlias(worktree, oldRoot); err != nil {
		t.Fatalf("first EstablishAlias: %v", err)
	}
	if err := EstablishAlias(worktree, newRoot); err != nil {
		t.Fatalf("second EstablishAlias: %v", err)
	}

	target, err := ResolveAlias(worktree)
	if err != nil {
		t.Fatalf("ResolveAlias: %v", err)
	}
	resolved, _ := filepath.EvalSymlinks(newRoot)
	if target != resolved {
		t.Errorf("alias points at %q, want %q", target, resolved)
	}
}

func TestEstablishAliasReplacesStaleFile(t *testing.T) {
	worktree := t.TempDir()
	dataRoot := t.TempDir()

	aliasPath := filepath.Join(worktree, session.AliasName)
	if err := os.WriteFile(aliasPath, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := EstablishAlias(worktree, dataRoot); err != nil {
		t.Fatalf("EstablishAlias over file: %v", err)
	}
	if _, err := ResolveAlias(worktree); err != nil {
		t.Errorf("alias should be a symlink after replacement: %v", err)
	}
}

func TestEstablishAliasReplacesDirectory(t *testing.T) {
	worktree := t.TempDir()
	dataRoot := t.TempDir()

	aliasPath := filepath.Join(worktree, session.AliasName)
	if err := os.MkdirAll(filepath.Join(aliasPath, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := EstablishAlias(worktree, dataRoot); err != nil {
		t.Fatalf("EstablishAlias over directory: %v", err)
	}
	if _, err := ResolveAlias(worktree); err != nil {
		t.Errorf("alias should be a symlink after replacement: %v", err)
	}
}

func TestEstablishAliasMissingDataRoot(t *testing.T) {
	worktree := t.TempDir()
	missing := filepath.Join(t.TempDir(), "gone")

	if err := EstablishAlias(worktree, missing); err == nil {
		t.Error("expected error for missing data root")
	}
}
