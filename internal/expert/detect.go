package expert

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Pattern categories for classifying an agent's pane output. Classification
// looks only at the most recent output; anything older is history.
var (
	// ReadyPatterns detect the agent idle at its input prompt.
	ReadyPatterns = []string{
		`↵\s*send`,            // send indicator at end of input line
		`⏵⏵\s*bypass`,         // bypass mode status line
		`\(shift\+tab to cycle\)`,
		`>\s*$`,               // bare prompt on the last line
	}

	// BusyPatterns detect the agent actively producing work.
	BusyPatterns = []string{
		`⠋|⠙|⠹|⠸|⠼|⠴|⠦|⠧|⠇|⠏`, // spinner characters
		`(?i)(?:reading|writing|editing|creating|running|executing|searching|analyzing)\.{3}`,
		`(?i)esc to interrupt`,
	}
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\][^\x07]*\x07`)

// StripAnsi removes ANSI escape codes from text. Handles CSI sequences
// (ESC[...letter) and OSC sequences (ESC]...BEL).
func StripAnsi(text string) string {
	return ansiRegex.ReplaceAllString(text, "")
}

// paneSample is the last observed pane content for one expert and when it
// last changed.
type paneSample struct {
	content   string
	changedAt time.Time
}

// Classifier turns pane captures into Status observations. Captures are fed
// in by the pane sampler; Classify itself never does I/O, so the control
// loop can call it every tick.
type Classifier struct {
	readyPatterns []*regexp.Regexp
	busyPatterns  []*regexp.Regexp
	stuckAfter    time.Duration

	mu      sync.RWMutex
	samples map[int]*paneSample
}

// NewClassifier creates a Classifier. stuckAfter of 0 disables stuck
// detection.
func NewClassifier(stuckAfter time.Duration) *Classifier {
	return &Classifier{
		readyPatterns: compilePatterns(ReadyPatterns),
		busyPatterns:  compilePatterns(BusyPatterns),
		stuckAfter:    stuckAfter,
		samples:       make(map[int]*paneSample),
	}
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}

// Observe records a fresh pane capture for an expert. The change timestamp
// only advances when the content actually differs, which is what stuck
// detection keys off.
func (c *Classifier) Observe(expertID int, capture string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sample, ok := c.samples[expertID]
	if !ok {
		c.samples[expertID] = &paneSample{content: capture, changedAt: time.Now()}
		return
	}
	if sample.content != capture {
		sample.content = capture
		sample.changedAt = time.Now()
	}
}

// Forget drops the recorded sample for an expert, e.g. after its agent is
// killed, so a stale capture cannot influence the next launch.
func (c *Classifier) Forget(expertID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.samples, expertID)
}

// Classify returns the status of an expert from its last observed capture.
// markerReady is the readiness-marker signal from the queue directory; it
// takes precedence over prompt heuristics for deciding ready-ness because
// the marker is dropped by the agent itself.
func (c *Classifier) Classify(expertID int, markerReady bool) Status {
	c.mu.RLock()
	sample, ok := c.samples[expertID]
	c.mu.RUnlock()

	if !ok {
		return StatusUnknown
	}

	text := StripAnsi(sample.content)
	recent := lastNonEmptyLines(text, 10)

	if matchesAny(recent, c.busyPatterns) {
		if c.stuckAfter > 0 && time.Since(sample.changedAt) > c.stuckAfter {
			return StatusStuck
		}
		return StatusBusy
	}

	if markerReady || matchesAny(recent, c.readyPatterns) {
		return StatusReady
	}

	// Output exists but matches nothing we know; the agent is doing
	// something we cannot name.
	if c.stuckAfter > 0 && time.Since(sample.changedAt) > c.stuckAfter {
		return StatusStuck
	}
	return StatusBusy
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// lastNonEmptyLines returns the last n non-empty lines of text joined by
// newlines.
func lastNonEmptyLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	result := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(result) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			result = append([]string{line}, result...)
		}
	}
	return strings.Join(result, "\n")
}
