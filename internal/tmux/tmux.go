// Package tmux provides centralized configuration and helpers for tmux operations.
//
// The tower uses a per-project tmux socket to isolate each supervised session.
// This prevents a crash in one project's tmux server from affecting towers
// running against other projects. Each tower uses a socket named
// "tower-{sessionHash}"; inside it every expert gets its own tmux session.
//
// The default "tower" socket is used for global operations like listing all
// sockets or cleanup that needs to work across projects.
package tmux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
)

// SocketName is the base tmux socket name for global tower operations.
// Individual towers use sockets named "tower-{sessionHash}" for isolation.
const SocketName = "tower"

// SocketPrefix is the prefix used for all tower tmux sockets.
const SocketPrefix = "tower"

// CommandWithSocket creates an exec.Cmd for tmux scoped to the given socket.
func CommandWithSocket(socket string, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-L", socket}, args...)
	return exec.Command("tmux", fullArgs...)
}

// CommandContextWithSocket creates a context-aware exec.Cmd with a custom socket.
func CommandContextWithSocket(ctx context.Context, socket string, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-L", socket}, args...)
	return exec.CommandContext(ctx, "tmux", fullArgs...)
}

// SessionSocketName returns the socket name for a specific tower session.
// Socket names follow the format "tower-{sessionHash}".
func SessionSocketName(sessionHash string) string {
	return SocketPrefix + "-" + sessionHash
}

// ExpertSessionName returns the tmux session name for one expert inside a
// tower socket.
func ExpertSessionName(expertID int) string {
	return fmt.Sprintf("expert-%d", expertID)
}

// ListTowerSockets returns all tmux sockets that belong to tower sessions.
// It searches the tmux socket directory for sockets matching "tower-*".
func ListTowerSockets() ([]string, error) {
	socketDir, err := getSocketDir()
	if err != nil {
		return nil, err
	}

	pattern := filepath.Join(socketDir, SocketPrefix+"-*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(socketDir, SocketName)); err == nil {
		matches = append(matches, filepath.Join(socketDir, SocketName))
	}

	sockets := make([]string, 0, len(matches))
	for _, match := range matches {
		sockets = append(sockets, filepath.Base(match))
	}
	return sockets, nil
}

// getSocketDir returns the tmux socket directory for the current user.
func getSocketDir() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	// tmux uses /tmp/tmux-{uid}/ for sockets
	return filepath.Join("/tmp", "tmux-"+u.Uid), nil
}

// IsSessionSocket returns true if the socket name is a session-specific socket.
func IsSessionSocket(socket string) bool {
	return strings.HasPrefix(socket, SocketPrefix+"-") && socket != SocketName
}

// ExtractSessionHash extracts the session hash from a tower socket name.
// Returns empty string if the socket is not a session socket.
func ExtractSessionHash(socket string) string {
	prefix := SocketPrefix + "-"
	if hash, found := strings.CutPrefix(socket, prefix); found {
		return hash
	}
	return ""
}

// Client runs tmux operations against one tower socket. All synchronous
// commands are bounded by execTimeout; failures carry the tmux output so
// callers can surface what tmux actually said.
type Client struct {
	socket      string
	execTimeout time.Duration
}

// NewClient returns a Client scoped to the given tower socket.
func NewClient(socket string, execTimeout time.Duration) *Client {
	if execTimeout <= 0 {
		execTimeout = 30 * time.Second
	}
	return &Client{socket: socket, execTimeout: execTimeout}
}

// Socket returns the socket name this client operates on.
func (c *Client) Socket() string {
	return c.socket
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.execTimeout)
	defer cancel()

	cmd := CommandContextWithSocket(ctx, c.socket, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, towererrors.NewCommandError("tmux", args, output, err)
	}
	return output, nil
}

// HasSession reports whether the named tmux session exists on this socket.
func (c *Client) HasSession(ctx context.Context, session string) bool {
	_, err := c.run(ctx, "has-session", "-t", session)
	return err == nil
}

// CreateSession creates a detached tmux session with the given name, working
// directory and geometry. Creating a session that already exists is an error;
// check HasSession first when reattachment is intended.
func (c *Client) CreateSession(ctx context.Context, session, workDir string, width, height, historyLimit int) error {
	_, err := c.run(ctx,
		"new-session", "-d",
		"-s", session,
		"-c", workDir,
		"-x", fmt.Sprintf("%d", width),
		"-y", fmt.Sprintf("%d", height))
	if err != nil {
		return err
	}
	if historyLimit > 0 {
		_, err = c.run(ctx, "set-option", "-t", session, "history-limit", fmt.Sprintf("%d", historyLimit))
	}
	return err
}

// KillSession terminates the named tmux session.
func (c *Client) KillSession(ctx context.Context, session string) error {
	_, err := c.run(ctx, "kill-session", "-t", session)
	return err
}

// SetPaneTitle sets the title of the session's active pane, shown in the
// pane border when borders are enabled.
func (c *Client) SetPaneTitle(ctx context.Context, session, title string) error {
	_, err := c.run(ctx, "select-pane", "-t", session, "-T", title)
	return err
}

// ChangeDirectory sends a cd command to the session's active pane. The pane
// must be at a shell prompt for this to take effect.
func (c *Client) ChangeDirectory(ctx context.Context, session, dir string) error {
	return c.SendLine(ctx, session, "cd "+shellQuote(dir))
}

// SendLine types the given text into the session's pane followed by Enter.
func (c *Client) SendLine(ctx context.Context, session, line string) error {
	if err := c.SendKeys(ctx, session, line); err != nil {
		return err
	}
	return c.SendKeys(ctx, session, "Enter")
}

// SendKeys sends raw keys to the session's pane without appending Enter.
// Key names follow tmux conventions ("Enter", "C-c", "Escape").
func (c *Client) SendKeys(ctx context.Context, session string, keys ...string) error {
	args := append([]string{"send-keys", "-t", session}, keys...)
	_, err := c.run(ctx, args...)
	return err
}

// SendText types literal text into the pane, suppressing tmux key-name
// interpretation so strings like "Enter" arrive as characters.
func (c *Client) SendText(ctx context.Context, session, text string) error {
	_, err := c.run(ctx, "send-keys", "-t", session, "-l", text)
	return err
}

// CapturePane returns the visible content of the session's pane. A negative
// scrollback captures that many lines of history above the visible area.
func (c *Client) CapturePane(ctx context.Context, session string, scrollback int) (string, error) {
	args := []string{"capture-pane", "-t", session, "-p"}
	if scrollback < 0 {
		args = append(args, "-S", fmt.Sprintf("%d", scrollback))
	}
	output, err := c.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// ListSessions returns the names of all sessions on this socket. A missing
// server (no sessions yet) is reported as an empty list, not an error.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	output, err := c.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		// tmux exits nonzero when the server is not running; that just
		// means there are no sessions.
		if strings.Contains(strings.ToLower(string(output)), "no server") ||
			strings.Contains(strings.ToLower(string(output)), "error connecting") {
			return nil, nil
		}
		return nil, err
	}

	var sessions []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			sessions = append(sessions, line)
		}
	}
	return sessions, nil
}

// PanePID returns the PID of the process running in the session's pane.
// Returns 0 if the PID cannot be determined.
func (c *Client) PanePID(ctx context.Context, session string) int {
	output, err := c.run(ctx, "display-message", "-t", session, "-p", "#{pane_pid}")
	if err != nil {
		return 0
	}
	return parsePID(strings.TrimSpace(string(output)))
}

// shellQuote wraps a path in single quotes for safe interpolation into a
// shell line typed through send-keys.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
