package bgtask

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
)

func TestStartRejectsSecondOperation(t *testing.T) {
	c := New(nil)

	release := make(chan struct{})
	err := c.Start("expert-1", "launch", func(ctx context.Context) Result {
		<-release
		return Result{Message: "ok"}
	})
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	err = c.Start("expert-1", "relocate", func(ctx context.Context) Result {
		t.Error("second operation must not run")
		return Result{}
	})
	if !towererrors.Is(err, towererrors.ErrOperationInProgress) {
		t.Errorf("expected ErrOperationInProgress, got %v", err)
	}

	close(release)
	c.Wait()
}

func TestPollDeliversResultExactlyOnce(t *testing.T) {
	c := New(nil)

	done := make(chan struct{})
	err := c.Start("expert-1", "launch", func(ctx context.Context) Result {
		defer close(done)
		return Result{Message: "launched", Ready: true}
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-done
	c.Wait()

	poll := c.PollOne("expert-1")
	if poll.Status != StatusDone {
		t.Fatalf("first poll status = %v, want done", poll.Status)
	}
	if poll.Result.Message != "launched" || !poll.Result.Ready {
		t.Errorf("unexpected result: %+v", poll.Result)
	}

	// Second poll observes an empty slot.
	if poll := c.PollOne("expert-1"); poll.Status != StatusIdle {
		t.Errorf("second poll status = %v, want idle", poll.Status)
	}

	// And the slot is free for the next operation.
	if err := c.Start("expert-1", "again", func(ctx context.Context) Result { return Result{} }); err != nil {
		t.Errorf("Start after delivery: %v", err)
	}
	c.Wait()
}

func TestPollWhileRunning(t *testing.T) {
	c := New(nil)

	release := make(chan struct{})
	if err := c.Start("expert-1", "launch", func(ctx context.Context) Result {
		<-release
		return Result{}
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	poll := c.PollOne("expert-1")
	if poll.Status != StatusRunning {
		t.Errorf("status = %v, want running", poll.Status)
	}
	if poll.Name != "launch" {
		t.Errorf("name = %q, want %q", poll.Name, "launch")
	}
	if poll.Started.IsZero() {
		t.Error("running poll should carry a start time")
	}

	close(release)
	c.Wait()
}

func TestPollIdleKey(t *testing.T) {
	c := New(nil)
	if poll := c.PollOne("never-used"); poll.Status != StatusIdle {
		t.Errorf("status = %v, want idle", poll.Status)
	}
}

func TestDifferentKeysDoNotContend(t *testing.T) {
	c := New(nil)

	release := make(chan struct{})
	if err := c.Start("expert-1", "launch", func(ctx context.Context) Result {
		<-release
		return Result{}
	}); err != nil {
		t.Fatalf("Start expert-1: %v", err)
	}

	if err := c.Start("expert-2", "launch", func(ctx context.Context) Result {
		return Result{}
	}); err != nil {
		t.Errorf("operation on a different key should start: %v", err)
	}

	close(release)
	c.Wait()
}

func TestConcurrentStartsOnlyOneWins(t *testing.T) {
	c := New(nil)

	release := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.Start("expert-1", "launch", func(ctx context.Context) Result {
				<-release
				return Result{}
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !towererrors.Is(err, towererrors.ErrOperationInProgress) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("exactly one Start should win, got %d", accepted)
	}

	close(release)
	c.Wait()
}

func TestPanicBecomesFailedResult(t *testing.T) {
	c := New(nil)

	if err := c.Start("expert-1", "launch", func(ctx context.Context) Result {
		panic("agent exploded")
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()

	poll := c.PollOne("expert-1")
	if poll.Status != StatusDone {
		t.Fatalf("status = %v, want done", poll.Status)
	}
	if poll.Result.Err == nil {
		t.Fatal("panicking operation should deliver an error result")
	}

	// The slot recovers for future operations.
	if err := c.Start("expert-1", "again", func(ctx context.Context) Result { return Result{} }); err != nil {
		t.Errorf("Start after panic: %v", err)
	}
	c.Wait()
}

func TestAbandonDiscardsResults(t *testing.T) {
	c := New(nil)

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	if err := c.Start("expert-1", "launch", func(ctx context.Context) Result {
		close(started)
		<-release
		defer close(finished)
		return Result{Message: "too late"}
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started

	c.Abandon()

	// The operation keeps running after Abandon; no cancellation.
	select {
	case <-finished:
		t.Fatal("operation should still be running after Abandon")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	c.Wait()

	// Its late result is discarded, not delivered.
	if poll := c.PollOne("expert-1"); poll.Status != StatusIdle {
		t.Errorf("status after abandon = %v, want idle", poll.Status)
	}
	if c.Busy("expert-1") {
		t.Error("key should be free after abandon")
	}
}

func TestBusy(t *testing.T) {
	c := New(nil)

	if c.Busy("expert-1") {
		t.Error("fresh key should not be busy")
	}

	release := make(chan struct{})
	if err := c.Start("expert-1", "launch", func(ctx context.Context) Result {
		<-release
		return Result{}
	}); err != nil {
		t.Fatal(err)
	}
	if !c.Busy("expert-1") {
		t.Error("running key should be busy")
	}

	close(release)
	c.Wait()

	// Completed but undelivered still counts as busy.
	if !c.Busy("expert-1") {
		t.Error("undelivered result should keep the key busy")
	}
	c.PollOne("expert-1")
	if c.Busy("expert-1") {
		t.Error("delivered key should be free")
	}
}

func TestResultErrorDelivery(t *testing.T) {
	c := New(nil)

	opErr := errors.New("tmux failed")
	if err := c.Start("expert-1", "launch", func(ctx context.Context) Result {
		return Result{Err: opErr}
	}); err != nil {
		t.Fatal(err)
	}
	c.Wait()

	poll := c.PollOne("expert-1")
	if poll.Status != StatusDone {
		t.Fatalf("status = %v, want done", poll.Status)
	}
	if !errors.Is(poll.Result.Err, opErr) {
		t.Errorf("expected wrapped operation error, got %v", poll.Result.Err)
	}
}
