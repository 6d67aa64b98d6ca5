package session

import (
	"os"
	"path/filepath"
	"testing"

	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
)

func testLayout(t *testing.T) Layout {
	t.Helper()
	layout := NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	return layout
}

func TestLayoutEnsureIdempotent(t *testing.T) {
	layout := testLayout(t)
	if err := layout.Ensure(); err != nil {
		t.Errorf("second Ensure should succeed: %v", err)
	}
	for _, dir := range []string{layout.Queue, layout.Contexts, layout.Shared, layout.Reports, layout.Worktrees} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("expected directory %s: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestContextFileNaming(t *testing.T) {
	layout := NewLayout("/data")
	if got := layout.ContextFile(3); got != filepath.Join("/data", "contexts", "expert-3.json") {
		t.Errorf("ContextFile(3) = %q", got)
	}
	if got := layout.ReadyMarker(1); got != filepath.Join("/data", "queue", "ready-1") {
		t.Errorf("ReadyMarker(1) = %q", got)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewContextStore(testLayout(t))

	ctx := NewExpertContext("abc123", 2)
	ctx.SetRole("reviewer")
	ctx.SetResumeToken("tok-1")
	if err := store.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SessionHash != "abc123" || loaded.ExpertID != 2 {
		t.Errorf("identity mismatch: %+v", loaded)
	}
	if loaded.Role != "reviewer" || loaded.ResumeToken != "tok-1" {
		t.Errorf("fields not persisted: %+v", loaded)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewContextStore(testLayout(t))
	if _, err := store.Load(7); !towererrors.Is(err, towererrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreLoadCorrupted(t *testing.T) {
	layout := testLayout(t)
	store := NewContextStore(layout)

	if err := os.WriteFile(layout.ContextFile(1), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(1); !towererrors.Is(err, towererrors.ErrContextCorrupted) {
		t.Errorf("expected ErrContextCorrupted, got %v", err)
	}
}

func TestStoreLoadOrCreate(t *testing.T) {
	layout := testLayout(t)
	store := NewContextStore(layout)

	ctx, err := store.LoadOrCreate("hash", 4)
	if err != nil {
		t.Fatalf("LoadOrCreate fresh: %v", err)
	}
	if ctx.ExpertID != 4 || ctx.HasWorktree() {
		t.Errorf("fresh context should be empty: %+v", ctx)
	}

	// A corrupted record must not be silently replaced.
	if err := os.WriteFile(layout.ContextFile(4), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadOrCreate("hash", 4); err == nil {
		t.Error("expected error for corrupted record")
	}
}

func TestAssignWorktreeClearsResumeToken(t *testing.T) {
	ctx := NewExpertContext("hash", 1)
	ctx.SetResumeToken("old-conversation")
	ctx.AssignWorktree("feature-x", "/data/worktrees/feature-x")

	if ctx.ResumeToken != "" {
		t.Errorf("resume token must be cleared on worktree change, got %q", ctx.ResumeToken)
	}
	if ctx.WorktreeBranch != "feature-x" || ctx.WorktreePath != "/data/worktrees/feature-x" {
		t.Errorf("worktree not assigned: %+v", ctx)
	}
}

func TestStoreList(t *testing.T) {
	store := NewContextStore(testLayout(t))
	for i := 0; i < 3; i++ {
		if err := store.Save(NewExpertContext("hash", i)); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	contexts, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(contexts) != 3 {
		t.Errorf("expected 3 contexts, got %d", len(contexts))
	}
}

func TestStoreListEmptyDir(t *testing.T) {
	store := NewContextStore(NewLayout(filepath.Join(t.TempDir(), "nonexistent")))
	contexts, err := store.List()
	if err != nil {
		t.Fatalf("List on missing dir: %v", err)
	}
	if contexts != nil {
		t.Errorf("expected nil for missing dir, got %v", contexts)
	}
}

func TestAtomicWriteReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.json")

	if err := atomicWriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := atomicWriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("expected %q, got %q", "second", string(data))
	}

	// No temp files should be left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}
