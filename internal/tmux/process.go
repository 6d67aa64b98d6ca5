package tmux

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DefaultGracefulStopTimeout is the default time to wait after sending Ctrl+C
// before force-killing processes during shutdown.
const DefaultGracefulStopTimeout = 500 * time.Millisecond

func parsePID(s string) int {
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return pid
}

// GetDescendantPIDs returns all descendant PIDs of the given PID (recursive).
// Uses pgrep -P to find child processes.
func GetDescendantPIDs(pid int) []int {
	if pid <= 0 {
		return nil
	}
	return getDescendantPIDs(pid)
}

func getDescendantPIDs(pid int) []int {
	cmd := exec.Command("pgrep", "-P", strconv.Itoa(pid))
	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	var descendants []int
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		childPID, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		descendants = append(descendants, childPID)
		// Recursively get grandchildren
		descendants = append(descendants, getDescendantPIDs(childPID)...)
	}
	return descendants
}

// IsProcessAlive checks if a process with the given PID exists.
// Uses kill(pid, 0) which checks for process existence without sending a signal.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil
}

// KillProcessTree sends SIGKILL to a process and all its descendants.
// Descendants are killed first (bottom-up) to prevent orphaning.
func KillProcessTree(pid int) {
	if pid <= 0 {
		return
	}

	descendants := GetDescendantPIDs(pid)

	for i := len(descendants) - 1; i >= 0; i-- {
		if IsProcessAlive(descendants[i]) {
			_ = syscall.Kill(descendants[i], syscall.SIGKILL)
		}
	}

	if IsProcessAlive(pid) {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}

// KillServer kills the tmux server for the given socket name. This is more
// thorough than kill-session: it terminates the server and every session
// within it.
func KillServer(socketName string) error {
	return CommandWithSocket(socketName, "kill-server").Run()
}

// CollectProcessTree returns the pane PID and all its descendants for the
// given session. Call this before initiating a shutdown so the full tree is
// captured while the session is still alive.
func CollectProcessTree(socketName, sessionName string) []int {
	cmd := CommandWithSocket(socketName, "display-message", "-t", sessionName, "-p", "#{pane_pid}")
	output, err := cmd.Output()
	if err != nil {
		return nil
	}
	panePID := parsePID(strings.TrimSpace(string(output)))
	if panePID <= 0 {
		return nil
	}

	pids := []int{panePID}
	pids = append(pids, GetDescendantPIDs(panePID)...)
	return pids
}

// EnsureProcessesKilled checks if any of the given PIDs are still alive
// and force-kills them along with any new descendants they may have spawned.
func EnsureProcessesKilled(pids []int) {
	for _, pid := range pids {
		if IsProcessAlive(pid) {
			KillProcessTree(pid)
		}
	}
}

// GracefulShutdown performs a defense-in-depth shutdown of one expert's tmux
// session. It captures the process tree, sends Ctrl+C for a graceful stop,
// polls for process exit, kills the session, then force-kills any survivors.
//
// This is the canonical kill sequence used when an expert is terminated
// outright (as opposed to the polite /exit used during relocation).
func GracefulShutdown(socketName, sessionName string, gracefulTimeout time.Duration) {
	processPIDs := CollectProcessTree(socketName, sessionName)
	panePID := 0
	if len(processPIDs) > 0 {
		panePID = processPIDs[0]
	}

	_ = CommandWithSocket(socketName, "send-keys", "-t", sessionName, "C-c").Run()

	WaitForProcessExit(panePID, gracefulTimeout)

	_ = CommandWithSocket(socketName, "kill-session", "-t", sessionName).Run()

	EnsureProcessesKilled(processPIDs)
}

// WaitForProcessExit polls until the given PID exits or the timeout is reached.
// Returns true if the process exited within the timeout, false if it's still alive.
func WaitForProcessExit(pid int, timeout time.Duration) bool {
	if pid <= 0 || !IsProcessAlive(pid) {
		return true
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return !IsProcessAlive(pid)
		case <-ticker.C:
			if !IsProcessAlive(pid) {
				return true
			}
		}
	}
}
