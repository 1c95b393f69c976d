// Package tui is the terminal front end of a trial simulation: it shows the
// live transcript, the coaching panel, objection alerts and the microphone
// level, and starts or stops sessions from the keyboard.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-trial/core/trial"
	"github.com/koscakluka/ema-trial/core/uistate"
)

// Controls starts and stops sessions on behalf of the keyboard.
type Controls interface {
	StartSession(ctx context.Context, setup trial.Setup) error
	StopSession()
}

type Model struct {
	controls Controls
	store    *uistate.Store
	setup    trial.Setup
	title    string

	updates <-chan struct{}

	snapshot   uistate.Snapshot
	startErr   string
	transcript viewport.Model
	volume     progress.Model
	spinner    spinner.Model
	styles     styles

	width  int
	height int

	quitting bool
}

// snapshotMsg carries a fresh copy of the store after a change.
type snapshotMsg uistate.Snapshot

type startResultMsg struct{ err error }

type stoppedMsg struct{}

// New creates the model. title is shown in the header, usually the case
// title.
func New(controls Controls, store *uistate.Store, setup trial.Setup, title string) Model {
	updates, _ := store.Subscribe()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		controls:   controls,
		store:      store,
		setup:      setup,
		title:      title,
		updates:    updates,
		snapshot:   store.Snapshot(),
		transcript: viewport.New(80, 10),
		volume:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(30)),
		spinner:    s,
		styles:     defaultStyles(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listenStore(), m.spinner.Tick)
}

func (m Model) listenStore() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-m.updates; !ok {
			return nil
		}
		return snapshotMsg(m.store.Snapshot())
	}
}

func (m Model) start() tea.Cmd {
	setup := m.setup
	return func() tea.Msg {
		return startResultMsg{err: m.controls.StartSession(context.Background(), setup)}
	}
}

func (m Model) stop() tea.Cmd {
	return func() tea.Msg {
		m.controls.StopSession()
		return stoppedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case snapshotMsg:
		m.snapshot = uistate.Snapshot(msg)
		m.refreshTranscript()
		cmds = append(cmds, m.listenStore())

	case startResultMsg:
		if msg.err != nil {
			m.startErr = msg.err.Error()
		}

	case stoppedMsg:
		if m.quitting {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		if m.snapshot.Status == uistate.StatusIdle {
			return m, tea.Quit
		}
		return m, m.stop()

	case "enter", " ":
		switch m.snapshot.Status {
		case uistate.StatusIdle:
			m.startErr = ""
			return m, m.start()
		case uistate.StatusLive, uistate.StatusConnecting:
			return m, m.stop()
		}

	case "p":
		if m.snapshot.Status == uistate.StatusIdle {
			m.setup.Phase = next(trial.Phases, m.setup.Phase)
		}

	case "m":
		if m.snapshot.Status == uistate.StatusIdle {
			m.setup.Mode = next(trial.Modes, m.setup.Mode)
		}

	default:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}

	return m, nil
}

// next cycles through values, starting over after the last one.
func next[T comparable](values []T, current T) T {
	for i, value := range values {
		if value == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}

func (m *Model) resize() {
	width := max(m.width-4, 20)
	// Header, status, volume, coaching and help take roughly half.
	height := max(m.height/2-4, 3)

	m.transcript.Width = width
	m.transcript.Height = height
	m.volume.Width = min(40, width)
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	var lines []string
	for _, message := range m.snapshot.Transcript {
		lines = append(lines, m.styles.message(message, m.transcript.Width))
	}
	m.transcript.SetContent(strings.Join(lines, "\n"))
	m.transcript.GotoBottom()
}

func (m Model) View() string {
	if m.quitting && m.snapshot.Status == uistate.StatusIdle {
		return "Session closed.\n"
	}

	sections := []string{
		m.styles.header(m.title, m.setup),
		m.statusLine(),
	}
	if m.snapshot.Objection != nil {
		sections = append(sections, m.styles.objection(*m.snapshot.Objection, m.contentWidth()))
	}
	sections = append(sections, m.styles.panel.Width(m.contentWidth()).Render(m.transcript.View()))
	if m.snapshot.Coaching != nil {
		sections = append(sections, m.styles.coaching(*m.snapshot.Coaching, m.contentWidth()))
	}
	sections = append(sections, m.styles.help.Render(m.helpLine()))

	return strings.Join(sections, "\n")
}

func (m Model) contentWidth() int {
	if m.width == 0 {
		return 80
	}
	return max(m.width-2, 20)
}

func (m Model) statusLine() string {
	var status string
	switch m.snapshot.Status {
	case uistate.StatusConnecting:
		status = m.spinner.View() + " Connecting to opposing counsel..."
	case uistate.StatusLive:
		status = m.styles.live.Render("● LIVE") + "  mic " + m.volume.ViewAs(m.snapshot.Volume/100)
	case uistate.StatusClosing:
		status = m.spinner.View() + " Ending session..."
	default:
		status = m.styles.idle.Render("○ Ready")
	}

	notice := m.snapshot.Error
	if notice == "" {
		notice = m.startErr
	}
	if notice != "" {
		status += "\n" + m.styles.failure.Render(notice)
	}
	return status
}

func (m Model) helpLine() string {
	switch m.snapshot.Status {
	case uistate.StatusIdle:
		return "enter start • p phase • m mode • q quit"
	default:
		return "enter stop • ↑/↓ scroll • q quit"
	}
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04:05")
}
