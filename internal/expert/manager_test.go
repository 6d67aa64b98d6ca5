package expert

import (
	"testing"
	"time"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/config"
)

func newCacheOnlyManager(t *testing.T) *Manager {
	t.Helper()

	markers, err := NewMarkerCache(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { markers.Close() })

	cfg := &config.SessionConfig{
		CaptureInterval: 10 * time.Millisecond,
		ExecTimeout:     time.Second,
	}
	// A nil tmux client makes any external invocation on the read path blow
	// up immediately instead of silently blocking the control loop.
	return NewManager(nil, markers, NewClassifier(0), cfg, nil)
}

func TestSampleReadsOnlyCachedState(t *testing.T) {
	m := newCacheOnlyManager(t)

	if got := m.Sample(1); got != StatusPending {
		t.Errorf("unobserved expert = %v, want pending", got)
	}

	m.setStatus(2, StatusBusy)
	m.setStatus(3, StatusReady)

	if got := m.Sample(2); got != StatusBusy {
		t.Errorf("Sample(2) = %v, want busy", got)
	}
	if got := m.Sample(3); got != StatusReady {
		t.Errorf("Sample(3) = %v, want ready", got)
	}
}

func TestSampleIsFastEnoughForTickLoop(t *testing.T) {
	m := newCacheOnlyManager(t)
	for id := 1; id <= 16; id++ {
		m.setStatus(id, StatusReady)
	}

	start := time.Now()
	for range 1000 {
		for id := 1; id <= 16; id++ {
			m.Sample(id)
		}
	}
	// 16000 reads well under one tick proves nothing on this path waits on
	// an external process.
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("16000 cached samples took %v", elapsed)
	}
}

func TestCaptureLoopStartStop(t *testing.T) {
	m := newCacheOnlyManager(t)

	// Zero experts: the loop ticks but observes nothing, so the nil client
	// is never touched.
	m.StartCaptureLoop(0)
	m.StartCaptureLoop(0) // second start is a no-op
	time.Sleep(30 * time.Millisecond)
	m.StopCaptureLoop()
	m.StopCaptureLoop() // stop after stop is safe
}

func TestStopCaptureLoopWithoutStart(t *testing.T) {
	m := newCacheOnlyManager(t)
	m.StopCaptureLoop()
}
