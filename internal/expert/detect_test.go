package expert

import (
	"testing"
	"time"
)

func TestClassifyUnobservedExpert(t *testing.T) {
	c := NewClassifier(0)
	if got := c.Classify(1, false); got != StatusUnknown {
		t.Errorf("status = %v, want unknown", got)
	}
}

func TestClassifyReadyPrompt(t *testing.T) {
	c := NewClassifier(0)
	c.Observe(1, "some earlier output\n\n> \n")
	if got := c.Classify(1, false); got != StatusReady {
		t.Errorf("status = %v, want ready", got)
	}
}

func TestClassifyMarkerOverridesOutput(t *testing.T) {
	c := NewClassifier(0)
	c.Observe(1, "unrecognizable output with no prompt")
	if got := c.Classify(1, true); got != StatusReady {
		t.Errorf("marker-ready expert = %v, want ready", got)
	}
}

func TestClassifyBusySpinner(t *testing.T) {
	c := NewClassifier(0)
	c.Observe(1, "⠙ Running tests... (esc to interrupt)")
	if got := c.Classify(1, false); got != StatusBusy {
		t.Errorf("status = %v, want busy", got)
	}
}

func TestClassifyBusyWinsOverStaleMarker(t *testing.T) {
	// A spinner in fresh output means the agent took work after dropping
	// its marker; busy is the truthful answer.
	c := NewClassifier(0)
	c.Observe(1, "⠸ Editing main.go...")
	if got := c.Classify(1, true); got != StatusBusy {
		t.Errorf("status = %v, want busy", got)
	}
}

func TestClassifyStuck(t *testing.T) {
	c := NewClassifier(30 * time.Millisecond)
	c.Observe(1, "⠙ Running...")
	time.Sleep(60 * time.Millisecond)
	// Same content again: the change timestamp must not advance.
	c.Observe(1, "⠙ Running...")
	if got := c.Classify(1, false); got != StatusStuck {
		t.Errorf("status = %v, want stuck", got)
	}
}

func TestObserveNewContentResetsStuckClock(t *testing.T) {
	c := NewClassifier(50 * time.Millisecond)
	c.Observe(1, "⠙ Running step 1...")
	time.Sleep(60 * time.Millisecond)
	c.Observe(1, "⠙ Running step 2...")
	if got := c.Classify(1, false); got != StatusBusy {
		t.Errorf("status = %v, want busy after new output", got)
	}
}

func TestForget(t *testing.T) {
	c := NewClassifier(0)
	c.Observe(1, "> ")
	c.Forget(1)
	if got := c.Classify(1, false); got != StatusUnknown {
		t.Errorf("status after Forget = %v, want unknown", got)
	}
}

func TestStripAnsi(t *testing.T) {
	in := "\x1b[32mgreen\x1b[0m plain \x1b]0;title\x07end"
	if got := StripAnsi(in); got != "green plain end" {
		t.Errorf("StripAnsi = %q", got)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusPending:  "pending",
		StatusStarting: "starting",
		StatusReady:    "ready",
		StatusBusy:     "busy",
		StatusStuck:    "stuck",
		StatusUnknown:  "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", status, got, want)
		}
	}
}

func TestStatusActive(t *testing.T) {
	for _, s := range []Status{StatusReady, StatusBusy, StatusStuck} {
		if !s.Active() {
			t.Errorf("%v should be active", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusStarting, StatusUnknown} {
		if s.Active() {
			t.Errorf("%v should not be active", s)
		}
	}
}
