package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/logging"
)

// LockFileName is the name of the lock file within a session data root.
const LockFileName = "session.lock"

// Lock represents an acquired session lock.
type Lock struct {
	SessionHash string    `json:"session_hash"`
	PID         int       `json:"pid"`
	Hostname    string    `json:"hostname"`
	StartedAt   time.Time `json:"started_at"`

	// Internal fields (not serialized)
	lockFile string
	logger   *logging.Logger
}

// AcquireLock attempts to acquire an exclusive lock on the session data root.
// Returns errors.ErrSessionLocked if another live tower already holds it; a
// lock left behind by a dead process is cleaned up and acquisition proceeds.
// The logger parameter is optional and can be nil (useful when the lock is
// acquired before the logger is fully initialized).
func AcquireLock(dataRoot, sessionHash string, logger *logging.Logger) (*Lock, error) {
	lockPath := filepath.Join(dataRoot, LockFileName)

	if existing, err := ReadLock(lockPath); err == nil {
		if isProcessAlive(existing.PID) {
			if logger != nil {
				logger.Error("failed to acquire session lock",
					"session", sessionHash,
					"holder_pid", existing.PID,
					"holder_host", existing.Hostname,
				)
			}
			return nil, fmt.Errorf("%w: PID %d on %s", towererrors.ErrSessionLocked, existing.PID, existing.Hostname)
		}
		oldPID := existing.PID
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		if logger != nil {
			logger.Warn("stale session lock cleaned", "session", sessionHash, "old_pid", oldPID)
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	lock := &Lock{
		SessionHash: sessionHash,
		PID:         os.Getpid(),
		Hostname:    hostname,
		StartedAt:   time.Now(),
		lockFile:    lockPath,
		logger:      logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	// O_EXCL fails if the file already exists, closing the race between the
	// stale check above and this create.
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			if existing, readErr := ReadLock(lockPath); readErr == nil {
				return nil, fmt.Errorf("%w: PID %d on %s", towererrors.ErrSessionLocked, existing.PID, existing.Hostname)
			}
			return nil, towererrors.ErrSessionLocked
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	if logger != nil {
		logger.Info("session lock acquired", "session", sessionHash, "pid", lock.PID)
	}
	return lock, nil
}

// Release releases the session lock by removing the lock file.
// Safe to call multiple times.
func (l *Lock) Release() error {
	if l == nil || l.lockFile == "" {
		return nil
	}

	existing, err := ReadLock(l.lockFile)
	if err != nil {
		return nil
	}
	if existing.PID != l.PID {
		// Not our lock, leave it alone.
		return nil
	}

	if err := os.Remove(l.lockFile); err != nil {
		return err
	}
	if l.logger != nil {
		l.logger.Info("session lock released", "session", l.SessionHash)
	}
	return nil
}

// ReadLock reads a lock file and returns the Lock info.
func ReadLock(lockPath string) (*Lock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}

	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.lockFile = lockPath
	return &lock, nil
}

// IsLocked checks if a session data root is currently locked by a live
// process. Returns the lock info if locked, nil otherwise.
func IsLocked(dataRoot string) (*Lock, bool) {
	lock, err := ReadLock(filepath.Join(dataRoot, LockFileName))
	if err != nil {
		return nil, false
	}
	if !isProcessAlive(lock.PID) {
		return lock, false
	}
	return lock, true
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
