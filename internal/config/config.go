package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete tower configuration. It is loaded once at
// startup and treated as read-only afterwards; no component may mutate it
// after bootstrap.
type Config struct {
	Project  ProjectConfig  `mapstructure:"project"`
	Experts  ExpertsConfig  `mapstructure:"experts"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Tmux     TmuxConfig     `mapstructure:"tmux"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProjectConfig identifies the supervised project.
type ProjectConfig struct {
	// Root is the project root directory. Empty means the current working
	// directory at startup.
	Root string `mapstructure:"root"`
}

// ExpertsConfig controls the supervised expert fleet.
type ExpertsConfig struct {
	// Count is the number of experts in the session (default: 3)
	Count int `mapstructure:"count"`
	// Names optionally labels experts in order; experts beyond the list get
	// a generated "expert-N" name
	Names []string `mapstructure:"names"`
	// Command is the agent CLI launched inside each pane (default: "claude")
	Command string `mapstructure:"command"`
	// ResumeFlag is the flag used to reattach an agent to a prior
	// conversation (default: "--resume")
	ResumeFlag string `mapstructure:"resume_flag"`
	// RolesFile is the path to the role catalog, relative to the project
	// root unless absolute (default: "roles.yaml")
	RolesFile string `mapstructure:"roles_file"`
	// DefaultRole is assigned to experts with no explicit role (default: "worker")
	DefaultRole string `mapstructure:"default_role"`
}

// TimeoutsConfig holds the per-operation timeouts shared by all guarded
// operations.
type TimeoutsConfig struct {
	// ReadinessSeconds is how long a launch waits for the agent to become
	// ready before reporting "not ready" (default: 90). Expiry is a valid
	// outcome, not an error.
	ReadinessSeconds int `mapstructure:"readiness_seconds"`
	// GraceSeconds is the fixed grace period after requesting an agent exit
	// during relocation (default: 3)
	GraceSeconds int `mapstructure:"grace_seconds"`
	// ExecSeconds bounds each synchronous external command (default: 30)
	ExecSeconds int `mapstructure:"exec_seconds"`
	// StuckMinutes is the no-output window after which a busy expert is
	// classified as stuck, 0 disables (default: 15)
	StuckMinutes int `mapstructure:"stuck_minutes"`
}

// TmuxConfig controls pane geometry for expert sessions.
type TmuxConfig struct {
	// Width is the pane width in columns (default: 200)
	Width int `mapstructure:"width"`
	// Height is the pane height in rows (default: 50)
	Height int `mapstructure:"height"`
	// HistoryLimit is the scrollback kept per pane (default: 10000)
	HistoryLimit int `mapstructure:"history_limit"`
	// CaptureIntervalMs is how often pane content is snapshotted into the
	// in-memory cache the state detector reads (default: 500)
	CaptureIntervalMs int `mapstructure:"capture_interval_ms"`
}

// LoggingConfig controls debug logging behavior.
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// Readiness returns the readiness timeout as a time.Duration.
func (t *TimeoutsConfig) Readiness() time.Duration {
	return time.Duration(t.ReadinessSeconds) * time.Second
}

// Grace returns the relocation grace period as a time.Duration.
func (t *TimeoutsConfig) Grace() time.Duration {
	return time.Duration(t.GraceSeconds) * time.Second
}

// Exec returns the synchronous command timeout as a time.Duration.
func (t *TimeoutsConfig) Exec() time.Duration {
	return time.Duration(t.ExecSeconds) * time.Second
}

// Stuck returns the stuck-detection window as a time.Duration (0 = disabled).
func (t *TimeoutsConfig) Stuck() time.Duration {
	return time.Duration(t.StuckMinutes) * time.Minute
}

// CaptureInterval returns the pane capture interval as a time.Duration.
func (t *TmuxConfig) CaptureInterval() time.Duration {
	return time.Duration(t.CaptureIntervalMs) * time.Millisecond
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Root: "",
		},
		Experts: ExpertsConfig{
			Count:       3,
			Command:     "claude",
			ResumeFlag:  "--resume",
			RolesFile:   "roles.yaml",
			DefaultRole: "worker",
		},
		Timeouts: TimeoutsConfig{
			ReadinessSeconds: 90,
			GraceSeconds:     3,
			ExecSeconds:      30,
			StuckMinutes:     15,
		},
		Tmux: TmuxConfig{
			Width:             200,
			Height:            50,
			HistoryLimit:      10000,
			CaptureIntervalMs: 500,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("project.root", defaults.Project.Root)

	viper.SetDefault("experts.count", defaults.Experts.Count)
	viper.SetDefault("experts.names", defaults.Experts.Names)
	viper.SetDefault("experts.command", defaults.Experts.Command)
	viper.SetDefault("experts.resume_flag", defaults.Experts.ResumeFlag)
	viper.SetDefault("experts.roles_file", defaults.Experts.RolesFile)
	viper.SetDefault("experts.default_role", defaults.Experts.DefaultRole)

	viper.SetDefault("timeouts.readiness_seconds", defaults.Timeouts.ReadinessSeconds)
	viper.SetDefault("timeouts.grace_seconds", defaults.Timeouts.GraceSeconds)
	viper.SetDefault("timeouts.exec_seconds", defaults.Timeouts.ExecSeconds)
	viper.SetDefault("timeouts.stuck_minutes", defaults.Timeouts.StuckMinutes)

	viper.SetDefault("tmux.width", defaults.Tmux.Width)
	viper.SetDefault("tmux.height", defaults.Tmux.Height)
	viper.SetDefault("tmux.history_limit", defaults.Tmux.HistoryLimit)
	viper.SetDefault("tmux.capture_interval_ms", defaults.Tmux.CaptureIntervalMs)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tower")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tower"
	}
	return filepath.Join(home, ".config", "tower")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ResolveRolesFile returns the absolute path of the role catalog for the
// given project root.
func (c *Config) ResolveRolesFile(projectRoot string) string {
	path := c.Experts.RolesFile
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(projectRoot, path)
	}
	return path
}
