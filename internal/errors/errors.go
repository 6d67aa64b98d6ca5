// Package errors provides centralized error definitions and error handling
// utilities for the tower codebase. It defines domain-specific errors,
// sentinel errors, constructors with context wrapping, and classification
// helpers.
//
// The package distinguishes three broad outcome classes that the rest of the
// system relies on:
//
//   - InfrastructureError: bootstrap-time failures. Fatal - the session must
//     not proceed.
//   - ErrOperationInProgress: a guarded background operation was requested
//     for a resource that already has one in flight. Recoverable, surfaced
//     to the user as a notice.
//   - CommandError: an external command (git, tmux, agent CLI) exited
//     non-zero. Carries the captured output so the failure is actionable.
//
// A readiness timeout is deliberately NOT an error anywhere in this package:
// it is a valid terminal outcome carried as a boolean by the operation
// result.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo Severity = iota
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that abort the session.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Coordination-related sentinel errors
var (
	// ErrOperationInProgress indicates that a guarded operation was requested
	// for a resource key that already has one in flight.
	ErrOperationInProgress = New("operation already in progress")
	// ErrNotFound indicates that a stored record could not be found.
	ErrNotFound = New("not found")
	// ErrContextCorrupted indicates that a persisted expert context record
	// could not be decoded.
	ErrContextCorrupted = New("expert context corrupted")
)

// Session-related sentinel errors
var (
	// ErrSessionLocked indicates that the session is held by another live process.
	ErrSessionLocked = New("session is locked")
	// ErrLockNotHeld indicates a release of a lock this process no longer owns.
	ErrLockNotHeld = New("lock not held")
)

// Git-related sentinel errors
var (
	// ErrNotGitRepository indicates that the project root is not inside a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrStaleWorktree indicates that on-disk worktree state is inconsistent
	// with what git knows about, usually from a prior partial failure.
	ErrStaleWorktree = New("stale worktree state")
)

// -----------------------------------------------------------------------------
// InfrastructureError
// -----------------------------------------------------------------------------

// InfrastructureError represents a bootstrap-time failure. The session must
// not proceed past one of these; no background task exists yet when it is
// raised.
type InfrastructureError struct {
	Op    string // the bootstrap step that failed, e.g. "acquire session lock"
	cause error
}

// NewInfrastructureError creates an InfrastructureError for the named
// bootstrap step.
func NewInfrastructureError(op string, cause error) *InfrastructureError {
	return &InfrastructureError{Op: op, cause: cause}
}

// Error returns the formatted error message.
func (e *InfrastructureError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("bootstrap failed [%s]: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("bootstrap failed [%s]", e.Op)
}

// Unwrap returns the underlying error.
func (e *InfrastructureError) Unwrap() error { return e.cause }

// Severity returns the error severity. Infrastructure errors are always critical.
func (e *InfrastructureError) Severity() Severity { return SeverityCritical }

// -----------------------------------------------------------------------------
// CommandError
// -----------------------------------------------------------------------------

// CommandError represents an external command (git, tmux, agent CLI) exiting
// non-zero. The captured output is preserved so the failure can be shown to
// the user verbatim rather than swallowed.
type CommandError struct {
	Name   string   // binary name, e.g. "git"
	Args   []string // arguments as invoked
	Output string   // captured combined output, trimmed
	cause  error
}

// NewCommandError creates a CommandError from a failed invocation.
func NewCommandError(name string, args []string, output []byte, cause error) *CommandError {
	return &CommandError{
		Name:   name,
		Args:   args,
		Output: strings.TrimSpace(string(output)),
		cause:  cause,
	}
}

// Error returns the formatted error message including captured output.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.cause)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error { return e.cause }

// Severity returns the error severity.
func (e *CommandError) Severity() Severity { return SeverityError }

// -----------------------------------------------------------------------------
// StaleWorktreeError
// -----------------------------------------------------------------------------

// StaleWorktreeError reports inconsistent on-disk worktree state left behind
// by a prior partial failure. It carries an actionable recovery hint; the
// system never auto-repairs this condition without user action.
type StaleWorktreeError struct {
	Branch string
	Path   string
	Detail string
}

// NewStaleWorktreeError creates a StaleWorktreeError for the given branch and path.
func NewStaleWorktreeError(branch, path, detail string) *StaleWorktreeError {
	return &StaleWorktreeError{Branch: branch, Path: path, Detail: detail}
}

// Error returns the formatted error message with a recovery suggestion.
func (e *StaleWorktreeError) Error() string {
	return fmt.Sprintf("stale worktree for branch %q at %s: %s (run 'tower prune' and retry)",
		e.Branch, e.Path, e.Detail)
}

// Is reports whether this error matches ErrStaleWorktree.
func (e *StaleWorktreeError) Is(target error) bool { return target == ErrStaleWorktree }

// Severity returns the error severity.
func (e *StaleWorktreeError) Severity() Severity { return SeverityWarning }

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsGuardRejected reports whether err is a guard rejection: a second guarded
// operation requested while one is in flight for the same resource key.
func IsGuardRejected(err error) bool {
	return Is(err, ErrOperationInProgress)
}

// IsFatal reports whether err must abort the session rather than be folded
// into an operation result.
func IsFatal(err error) bool {
	var infra *InfrastructureError
	return As(err, &infra)
}

// SeverityOf returns the severity of err, defaulting to SeverityError for
// errors that don't carry one.
func SeverityOf(err error) Severity {
	type graded interface{ Severity() Severity }
	var g graded
	if As(err, &g) {
		return g.Severity()
	}
	return SeverityError
}
