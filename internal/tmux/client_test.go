package tmux

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/testutil"
)

// newTestClient returns a client on a throwaway socket and tears the whole
// server down afterwards so test sessions never leak.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	testutil.SkipIfNoTmux(t)

	socket := fmt.Sprintf("tower-test-%d-%d", os.Getpid(), time.Now().UnixNano())
	t.Cleanup(func() { _ = KillServer(socket) })
	return NewClient(socket, 10*time.Second)
}

func TestClientSessionLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if client.HasSession(ctx, "expert-1") {
		t.Fatal("fresh socket should have no sessions")
	}

	if err := client.CreateSession(ctx, "expert-1", t.TempDir(), 80, 24, 500); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !client.HasSession(ctx, "expert-1") {
		t.Error("session should exist after creation")
	}

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	found := false
	for _, s := range sessions {
		if s == "expert-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected expert-1 in %v", sessions)
	}

	if pid := client.PanePID(ctx, "expert-1"); pid <= 0 {
		t.Errorf("PanePID = %d, want a live PID", pid)
	}

	if err := client.KillSession(ctx, "expert-1"); err != nil {
		t.Fatalf("KillSession: %v", err)
	}
	if client.HasSession(ctx, "expert-1") {
		t.Error("session should be gone after kill")
	}
}

func TestClientSendAndCapture(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.CreateSession(ctx, "expert-1", t.TempDir(), 80, 24, 500); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := client.SendLine(ctx, "expert-1", "echo tower-ping"); err != nil {
		t.Fatalf("SendLine: %v", err)
	}

	// The shell needs a moment to echo; poll rather than assume.
	deadline := time.Now().Add(5 * time.Second)
	for {
		capture, err := client.CapturePane(ctx, "expert-1", 0)
		if err != nil {
			t.Fatalf("CapturePane: %v", err)
		}
		if strings.Contains(capture, "tower-ping") {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("echoed text never appeared in pane:\n%s", capture)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
