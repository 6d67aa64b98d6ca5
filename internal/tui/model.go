// Package tui is the tower's terminal dashboard: one row per expert with its
// live status, worktree and last operation outcome, driven by a periodic
// tick that polls the orchestrator without ever blocking on it.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/bgtask"
	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/expert"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/orchestrator"
)

// tickMsg drives the control loop; sent every pollInterval.
type tickMsg time.Time

const pollInterval = 100 * time.Millisecond

// maxMessages is how many recent operation outcomes the footer keeps.
const maxMessages = 5

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// inputMode says what the text input at the bottom is collecting.
type inputMode int

const (
	inputNone inputMode = iota
	inputBranch
	inputRole
)

// row is the rendered state of one expert. The name is fixed at startup;
// everything else refreshes each tick.
type row struct {
	name     string
	status   expert.Status
	branch   string
	role     string
	inFlight string
}

// Model is the bubbletea model for the tower dashboard.
type Model struct {
	tower *orchestrator.Tower

	rows     []row
	selected int

	mode  inputMode
	input textinput.Model

	spin     spinner.Model
	messages []string
	width    int
	quitting bool

	// cached context rows, reloaded only when a delivery invalidates them
	branches      map[int]string
	roles         map[int]string
	contextsFresh bool
}

// New creates the dashboard model over a bootstrapped tower.
func New(tower *orchestrator.Tower) Model {
	input := textinput.New()
	input.CharLimit = 120
	input.Width = 40

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	rows := make([]row, tower.ExpertCount())
	for i, e := range tower.Experts() {
		rows[i].name = e.Name
	}

	return Model{
		tower: tower,
		rows:  rows,
		input: input,
		spin:  spin,
	}
}

// Init starts the tick loop and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spin.Tick)
}

// Update handles ticks, key presses and spinner frames.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh()
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

// updateKeys handles navigation and operation keys outside input mode.
func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		// Quit detaches: agents keep running, in-flight operations are
		// abandoned, nothing is stopped.
		m.quitting = true
		m.tower.Abandon()
		return m, tea.Quit

	case "j", "down":
		if m.selected < len(m.rows)-1 {
			m.selected++
		}

	case "k", "up":
		if m.selected > 0 {
			m.selected--
		}

	case "l", "enter":
		m.startOperation(func(id int) error {
			return m.tower.StartLaunch(id, orchestrator.LaunchOptions{})
		})

	case "r":
		m.mode = inputBranch
		m.input.Placeholder = "branch name"
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case "a":
		m.mode = inputRole
		m.input.Placeholder = "role name"
		m.input.SetValue("")
		m.input.Focus()
		if names := m.tower.Roles().Names(); len(names) > 0 {
			m.pushMessage("roles: " + strings.Join(names, ", "))
		}
		return m, textinput.Blink

	case "x":
		if !m.rows[m.selected].status.Active() {
			m.pushMessage(fmt.Sprintf("expert %d has no agent to kill", expertID(m.selected)))
			return m, nil
		}
		m.startOperation(func(id int) error {
			return m.tower.StartKill(id)
		})
	}

	return m, nil
}

// updateInput handles keys while the branch/role prompt is open.
func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = inputNone
		m.input.Blur()
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.mode = inputNone
		m.input.Blur()
		if value == "" {
			return m, nil
		}
		switch mode {
		case inputBranch:
			m.startOperation(func(id int) error {
				return m.tower.StartLaunch(id, orchestrator.LaunchOptions{Branch: value})
			})
		case inputRole:
			m.startOperation(func(id int) error {
				return m.tower.StartLaunch(id, orchestrator.LaunchOptions{Role: value})
			})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// expertID maps a row index to the expert's id. Experts are numbered from 1.
func expertID(rowIdx int) int {
	return rowIdx + 1
}

// startOperation runs op against the selected expert and reports a guard
// rejection as a message instead of an error.
func (m *Model) startOperation(op func(expertID int) error) {
	id := expertID(m.selected)
	if err := op(id); err != nil {
		if towererrors.IsGuardRejected(err) {
			m.pushMessage(fmt.Sprintf("expert %d is busy; operation skipped", id))
			return
		}
		m.pushMessage("error: " + err.Error())
	}
}

// refresh polls every expert slot and reads cached statuses. Runs once per
// tick, so nothing here may block: statuses come from the background capture
// loop and context records are re-read only after a delivery changed them.
func (m *Model) refresh() {
	for i := range m.rows {
		id := expertID(i)
		poll := m.tower.Poll(id)
		switch poll.Status {
		case bgtask.StatusDone:
			m.rows[i].inFlight = ""
			m.deliver(id, poll)
		case bgtask.StatusRunning:
			m.rows[i].inFlight = poll.Name
		default:
			m.rows[i].inFlight = ""
		}

		m.rows[i].status = m.tower.Status(id)
	}

	if !m.contextsFresh {
		m.reloadContexts()
	}
	for i := range m.rows {
		id := expertID(i)
		m.rows[i].branch = m.branches[id]
		m.rows[i].role = m.roles[id]
	}
}

// reloadContexts re-reads the persisted context records. On error the last
// known rows stay up and the next tick retries.
func (m *Model) reloadContexts() {
	contexts, err := m.tower.Contexts()
	if err != nil {
		return
	}
	m.branches = make(map[int]string, len(contexts))
	m.roles = make(map[int]string, len(contexts))
	for _, c := range contexts {
		m.branches[c.ExpertID] = c.WorktreeBranch
		m.roles[c.ExpertID] = c.Role
	}
	m.contextsFresh = true
}

// deliver folds a completed operation's result into the message footer.
// Deliveries are the only point where context records can have changed, so
// they also invalidate the cached rows.
func (m *Model) deliver(id int, poll bgtask.Poll) {
	m.contextsFresh = false
	result := poll.Result
	switch {
	case result.Err != nil:
		m.pushMessage(fmt.Sprintf("%s expert %d failed: %v", poll.Name, id, result.Err))
	case result.Message != "":
		m.pushMessage(result.Message)
	default:
		m.pushMessage(fmt.Sprintf("%s expert %d done", poll.Name, id))
	}
}

func (m *Model) pushMessage(msg string) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}
