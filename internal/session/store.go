package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
)

// ContextStore persists ExpertContext records as one JSON file per expert.
//
// Each record has its own file and every save is an atomic temp-and-rename,
// so concurrent operations on different experts never contend with each
// other. Operations on the same expert are serialized by the coordinator's
// one-in-flight guarantee, not by the store.
type ContextStore struct {
	layout Layout
}

// NewContextStore returns a store over the given session layout. The layout
// must have been ensured before the first save.
func NewContextStore(layout Layout) *ContextStore {
	return &ContextStore{layout: layout}
}

// Load reads the context record for one expert.
// Returns errors.ErrNotFound if the expert has no record yet, and
// errors.ErrContextCorrupted if the file exists but cannot be parsed.
func (s *ContextStore) Load(expertID int) (*ExpertContext, error) {
	path := s.layout.ContextFile(expertID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("expert %d: %w", expertID, towererrors.ErrNotFound)
		}
		return nil, fmt.Errorf("reading context for expert %d: %w", expertID, err)
	}

	var ctx ExpertContext
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("%w: expert %d: %v", towererrors.ErrContextCorrupted, expertID, err)
	}
	return &ctx, nil
}

// LoadOrCreate reads the context record for one expert, creating a fresh
// record if none exists. A corrupted record is still an error; it is never
// silently replaced.
func (s *ContextStore) LoadOrCreate(sessionHash string, expertID int) (*ExpertContext, error) {
	ctx, err := s.Load(expertID)
	if err == nil {
		return ctx, nil
	}
	if towererrors.Is(err, towererrors.ErrNotFound) {
		return NewExpertContext(sessionHash, expertID), nil
	}
	return nil, err
}

// Save persists one expert's context record atomically.
func (s *ContextStore) Save(ctx *ExpertContext) error {
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling context for expert %d: %w", ctx.ExpertID, err)
	}

	if err := os.MkdirAll(s.layout.Contexts, 0o755); err != nil {
		return fmt.Errorf("creating contexts directory: %w", err)
	}
	return atomicWriteFile(s.layout.ContextFile(ctx.ExpertID), data, 0o644)
}

// List returns the context records of every expert that has one, ordered by
// file name. Corrupted records are skipped; callers that need to surface
// corruption should Load the specific expert.
func (s *ContextStore) List() ([]*ExpertContext, error) {
	entries, err := os.ReadDir(s.layout.Contexts)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading contexts directory: %w", err)
	}

	var contexts []*ExpertContext
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.layout.Contexts, entry.Name()))
		if err != nil {
			continue
		}
		var ctx ExpertContext
		if err := json.Unmarshal(data, &ctx); err != nil {
			continue
		}
		contexts = append(contexts, &ctx)
	}
	return contexts, nil
}

// atomicWriteFile writes data to path via a temp file in the same directory
// followed by a rename, so readers never observe a partial record.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
