package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors aggregates all validation failures found in one pass so
// the user can fix them together.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return "invalid configuration: " + e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = "  - " + v.Error()
	}
	return fmt.Sprintf("invalid configuration (%d errors):\n%s", len(e), strings.Join(msgs, "\n"))
}

// Validate checks the configuration for invalid values and returns all
// problems found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Experts.Count < 1 || c.Experts.Count > 16 {
		errs = append(errs, ValidationError{
			Field:   "experts.count",
			Value:   c.Experts.Count,
			Message: "must be between 1 and 16",
		})
	}
	if len(c.Experts.Names) > c.Experts.Count {
		errs = append(errs, ValidationError{
			Field:   "experts.names",
			Value:   len(c.Experts.Names),
			Message: fmt.Sprintf("more names than experts (count is %d)", c.Experts.Count),
		})
	}
	if strings.TrimSpace(c.Experts.Command) == "" {
		errs = append(errs, ValidationError{
			Field:   "experts.command",
			Value:   c.Experts.Command,
			Message: "must not be empty",
		})
	}

	if c.Timeouts.ReadinessSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "timeouts.readiness_seconds",
			Value:   c.Timeouts.ReadinessSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Timeouts.GraceSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeouts.grace_seconds",
			Value:   c.Timeouts.GraceSeconds,
			Message: "must not be negative",
		})
	}
	if c.Timeouts.ExecSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "timeouts.exec_seconds",
			Value:   c.Timeouts.ExecSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Timeouts.StuckMinutes < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeouts.stuck_minutes",
			Value:   c.Timeouts.StuckMinutes,
			Message: "must not be negative",
		})
	}

	if c.Tmux.Width < 20 {
		errs = append(errs, ValidationError{
			Field:   "tmux.width",
			Value:   c.Tmux.Width,
			Message: "must be at least 20",
		})
	}
	if c.Tmux.Height < 5 {
		errs = append(errs, ValidationError{
			Field:   "tmux.height",
			Value:   c.Tmux.Height,
			Message: "must be at least 5",
		})
	}
	if c.Tmux.HistoryLimit < 100 {
		errs = append(errs, ValidationError{
			Field:   "tmux.history_limit",
			Value:   c.Tmux.HistoryLimit,
			Message: "must be at least 100",
		})
	}
	if c.Tmux.CaptureIntervalMs < 50 {
		errs = append(errs, ValidationError{
			Field:   "tmux.capture_interval_ms",
			Value:   c.Tmux.CaptureIntervalMs,
			Message: "must be at least 50",
		})
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be one of: debug, info, warn, error",
		})
	}

	return errs
}
