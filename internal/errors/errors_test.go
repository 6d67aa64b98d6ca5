package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestInfrastructureErrorWraps(t *testing.T) {
	cause := New("disk full")
	err := NewInfrastructureError("create session directories", cause)

	if !Is(err, cause) {
		return
	}
	if !strings.Contains(err.Error(), "create session directories") {
		t.Errorf("expected op name in message, got %q", err.Error())
	}
	if !IsFatal(err) {
		t.Error("infrastructure errors must be fatal")
	}
	if !IsFatal(fmt.Errorf("wrapped: %w", err)) {
		t.Error("fatal classification must survive wrapping")
	}
}

func TestCommandErrorIncludesOutput(t *testing.T) {
	err := NewCommandError("git", []string{"worktree", "add", "/tmp/x"},
		[]byte("fatal: invalid reference\n"), New("exit status 128"))

	msg := err.Error()
	for _, want := range []string{"git", "worktree add", "fatal: invalid reference"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestGuardRejectedClassification(t *testing.T) {
	if !IsGuardRejected(ErrOperationInProgress) {
		t.Error("sentinel itself must classify as guard rejection")
	}
	wrapped := fmt.Errorf("expert 3: %w", ErrOperationInProgress)
	if !IsGuardRejected(wrapped) {
		t.Error("wrapped sentinel must classify as guard rejection")
	}
	if IsGuardRejected(New("something else")) {
		t.Error("unrelated error must not classify as guard rejection")
	}
	if IsFatal(wrapped) {
		t.Error("guard rejection is recoverable, not fatal")
	}
}

func TestStaleWorktreeErrorMatchesSentinel(t *testing.T) {
	err := NewStaleWorktreeError("feature-x", "/tmp/wt/feature-x", "directory exists but is not a worktree")
	if !Is(err, ErrStaleWorktree) {
		t.Error("StaleWorktreeError must match ErrStaleWorktree")
	}
	if !strings.Contains(err.Error(), "tower prune") {
		t.Errorf("expected actionable advice in %q", err.Error())
	}
	if SeverityOf(err) != SeverityWarning {
		t.Errorf("got severity %v, want warning", SeverityOf(err))
	}
}

func TestSeverityOfDefaultsToError(t *testing.T) {
	if got := SeverityOf(New("plain")); got != SeverityError {
		t.Errorf("got %v, want error", got)
	}
}

func TestSeverityString(t *testing.T) {
	cases := map[Severity]string{
		SeverityInfo:     "info",
		SeverityWarning:  "warning",
		SeverityError:    "error",
		SeverityCritical: "critical",
		Severity(99):     "unknown",
	}
	for sev, want := range cases {
		if got := sev.String(); got != want {
			t.Errorf("Severity(%d).String() = %q, want %q", sev, got, want)
		}
	}
}
