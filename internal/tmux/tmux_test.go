package tmux

import (
	"strings"
	"testing"
)

func TestSocketName(t *testing.T) {
	if SocketName == "" {
		t.Error("SocketName should not be empty")
	}
	if SocketName != "tower" {
		t.Errorf("SocketName = %q, want %q", SocketName, "tower")
	}
}

func TestCommandWithSocket(t *testing.T) {
	cmd := CommandWithSocket("tower-abc123", "list-sessions")
	args := cmd.Args

	if len(args) < 4 {
		t.Fatalf("Expected at least 4 args, got %d: %v", len(args), args)
	}

	if args[0] != "tmux" {
		t.Errorf("args[0] = %q, want %q", args[0], "tmux")
	}
	if args[1] != "-L" {
		t.Errorf("args[1] = %q, want %q", args[1], "-L")
	}
	if args[2] != "tower-abc123" {
		t.Errorf("args[2] = %q, want %q", args[2], "tower-abc123")
	}
	if args[3] != "list-sessions" {
		t.Errorf("args[3] = %q, want %q", args[3], "list-sessions")
	}
}

func TestSessionSocketName(t *testing.T) {
	socket := SessionSocketName("abc123def456")
	if socket != "tower-abc123def456" {
		t.Errorf("SessionSocketName = %q, want %q", socket, "tower-abc123def456")
	}
	if !IsSessionSocket(socket) {
		t.Errorf("IsSessionSocket(%q) = false, want true", socket)
	}
	if IsSessionSocket(SocketName) {
		t.Errorf("IsSessionSocket(%q) = true, want false", SocketName)
	}
}

func TestExtractSessionHash(t *testing.T) {
	if hash := ExtractSessionHash("tower-abc123"); hash != "abc123" {
		t.Errorf("ExtractSessionHash = %q, want %q", hash, "abc123")
	}
	if hash := ExtractSessionHash("other-abc123"); hash != "" {
		t.Errorf("ExtractSessionHash = %q, want empty", hash)
	}
}

func TestExpertSessionName(t *testing.T) {
	if name := ExpertSessionName(2); name != "expert-2" {
		t.Errorf("ExpertSessionName(2) = %q, want %q", name, "expert-2")
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("/plain/path"); got != "'/plain/path'" {
		t.Errorf("shellQuote = %q", got)
	}
	quoted := shellQuote("it's here")
	if !strings.HasPrefix(quoted, "'") || !strings.HasSuffix(quoted, "'") {
		t.Errorf("quoted string should be wrapped in single quotes: %q", quoted)
	}
	if !strings.Contains(quoted, `'\''`) {
		t.Errorf("embedded quote should be escaped: %q", quoted)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("tower-test", 0)
	if c.execTimeout <= 0 {
		t.Error("zero timeout should be replaced with a default")
	}
	if c.Socket() != "tower-test" {
		t.Errorf("Socket() = %q, want %q", c.Socket(), "tower-test")
	}
}

func TestParsePID(t *testing.T) {
	if pid := parsePID("1234"); pid != 1234 {
		t.Errorf("parsePID(\"1234\") = %d, want 1234", pid)
	}
	if pid := parsePID("not-a-pid"); pid != 0 {
		t.Errorf("parsePID garbage = %d, want 0", pid)
	}
}
