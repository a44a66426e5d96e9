// Package ui is the terminal interface: a live camera preview, the session
// log and the controls of the narration assistant.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/avashx/itark/assistant"
	"github.com/avashx/itark/logger"
)

const (
	refreshInterval = 100 * time.Millisecond
	thumbCols       = 40
	thumbRows       = 15
	logLines        = 12
	defaultWidth    = 100
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFCC00"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")).Bold(true)
	aiStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	systemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

type (
	eventMsg assistant.Event
	tickMsg  time.Time
	doneMsg  struct{ err error }
)

// Model is the bubbletea model of the assistant UI.
type Model struct {
	ctrl    Controller
	input   textinput.Model
	spinner spinner.Model

	width  int
	status assistant.Status
	log    []assistant.Entry

	frameSeq uint64
	thumb    string
	lastErr  string
}

// NewModel creates the UI over ctrl.
func NewModel(ctrl Controller) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask a question about what the camera sees"
	ti.CharLimit = 500
	ti.Width = 60
	ti.Prompt = "? "

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	m := Model{ctrl: ctrl, input: ti, spinner: s, width: defaultWidth}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvents(), tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-10)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case eventMsg:
		m.handleEvent(assistant.Event(msg))
		cmds = append(cmds, m.listenForEvents())

	case tickMsg:
		m.refresh()
		cmds = append(cmds, tick())

	case doneMsg:
		if msg.err != nil {
			m.lastErr = assistant.StatusMessage(msg.err)
		}
		m.refresh()
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			m.input.Blur()
			return m, m.run(Action{Kind: ActionAsk, Text: q})
		case tea.KeyEsc:
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "s":
		return m, m.run(Action{Kind: ActionToggleRun})
	case " ":
		return m, m.run(Action{Kind: ActionListen})
	case "a":
		return m, m.run(Action{Kind: ActionToggleAuto})
	case "+", "=":
		return m, m.run(Action{Kind: ActionInterval, Delta: IntervalStep})
	case "-", "_":
		return m, m.run(Action{Kind: ActionInterval, Delta: -IntervalStep})
	case "l":
		return m, m.run(Action{Kind: ActionToggleLanguage})
	case "]", ">":
		return m, m.run(Action{Kind: ActionSpeed, Speed: SpeedStep})
	case "[", "<":
		return m, m.run(Action{Kind: ActionSpeed, Speed: -SpeedStep})
	case "v":
		return m, m.run(Action{Kind: ActionCycleAccent})
	case "h":
		return m, m.run(Action{Kind: ActionToggleHD})
	case "enter", "/":
		m.lastErr = ""
		cmd := m.input.Focus()
		return m, cmd
	}
	return m, nil
}

// run executes the command for a off the UI goroutine.
func (m Model) run(a Action) tea.Cmd {
	c := OnUserAction(m.ctrl, a)
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		return doneMsg{err: c()}
	}
}

func (m *Model) handleEvent(ev assistant.Event) {
	switch ev.Type {
	case assistant.EventLogAppended:
		m.log = m.ctrl.Log().Tail(logLines)
	case assistant.EventStatus:
		m.status.Message = ev.Status
	case assistant.EventRunningChanged:
		m.status.Running = ev.Running
		if !ev.Running {
			m.thumb = ""
			m.frameSeq = 0
		}
	case assistant.EventVoiceState:
		m.status.Voice = ev.Voice
	}
}

// refresh pulls the status, log tail and preview from the controller.
func (m *Model) refresh() {
	m.status = m.ctrl.Snapshot()
	m.log = m.ctrl.Log().Tail(logLines)
	if !m.status.Running {
		return
	}

	f := m.ctrl.LatestFrame()
	if f == nil || f.Seq == m.frameSeq {
		return
	}
	thumb, err := renderThumbnail(f, thumbCols, thumbRows)
	if err != nil {
		logger.Debug("Preview render failed", "error", err)
		return
	}
	m.thumb = thumb
	m.frameSeq = f.Seq
}

func (m Model) listenForEvents() tea.Cmd {
	events := m.ctrl.Events()
	return func() tea.Msg {
		return eventMsg(<-events)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("itark · camera narration"))
	b.WriteString("\n\n")

	preview := m.thumb
	if preview == "" {
		preview = statusStyle.Render(centered("no camera preview", thumbCols, thumbRows))
	}
	logWidth := max(30, m.width-thumbCols-8)
	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(preview),
		boxStyle.Width(logWidth).Render(m.renderLog(logWidth-4)),
	)
	b.WriteString(panels)
	b.WriteString("\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	if m.status.Message != "" {
		b.WriteString(statusStyle.Render(m.status.Message))
		b.WriteString("\n")
	}
	if m.lastErr != "" {
		b.WriteString(errorStyle.Render("⚠ " + m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) renderStatus() string {
	var parts []string

	if m.status.Running {
		parts = append(parts, activeStyle.Render("● Running"))
	} else {
		parts = append(parts, warningStyle.Render("○ Stopped"))
	}

	auto := "off"
	if m.status.AutoDescribe {
		auto = "on"
	}
	parts = append(parts,
		statusStyle.Render(fmt.Sprintf("Auto: %s", auto)),
		statusStyle.Render(fmt.Sprintf("Interval: %ds", int(m.status.Interval.Seconds()))),
	)

	if m.status.VoiceAvailable {
		voice := m.status.Voice
		if voice != "" && voice != "idle" {
			voice = m.spinner.View() + " " + activeStyle.Render(voice)
		}
		parts = append(parts, statusStyle.Render("Voice: ")+voice)
	}
	if m.status.AutoBusy || m.status.QuestionBusy {
		parts = append(parts, m.spinner.View()+" "+activeStyle.Render("analyzing"))
	}
	if m.status.Language != "" {
		parts = append(parts, statusStyle.Render("Lang: "+m.status.Language))
	}
	if m.status.SpeechControls {
		sp := m.status.Speech
		hd := "off"
		if sp.HD {
			hd = "on"
		}
		parts = append(parts, statusStyle.Render(fmt.Sprintf("Speech: %gx %s HD %s", sp.Speed, sp.Accent, hd)))
	}
	parts = append(parts, statusStyle.Render(fmt.Sprintf("API calls: %d", m.status.Calls)))

	return strings.Join(parts, "  │  ")
}

func (m Model) renderLog(width int) string {
	if len(m.log) == 0 {
		return statusStyle.Render("Press s to start the assistant.")
	}
	lines := make([]string, 0, len(m.log))
	for _, e := range m.log {
		ts := statusStyle.Render(e.Time.Format("15:04:05"))
		var text string
		switch e.Role {
		case assistant.RoleUser:
			text = userStyle.Render("YOU: ") + e.Text
		case assistant.RoleAssistant:
			text = aiStyle.Render("AI: " + e.Text)
		case assistant.RoleError:
			text = errorStyle.Render(e.Text)
		default:
			text = systemStyle.Render(e.Text)
		}
		lines = append(lines, lipgloss.NewStyle().Width(width).Render(ts+" "+text))
	}
	return strings.Join(lines, "\n")
}

func (m Model) help() string {
	if m.input.Focused() {
		return "enter ask • esc cancel • ctrl+c quit"
	}
	run := "start"
	if m.status.Running {
		run = "stop"
	}
	help := []string{"s " + run}
	if m.status.VoiceAvailable {
		help = append(help, "space listen")
	}
	help = append(help, "enter type question", "a auto", "+/- interval", "l language")
	if m.status.SpeechControls {
		help = append(help, "[/] speed", "v accent", "h hd voice")
	}
	help = append(help, "q quit")
	return strings.Join(help, " • ")
}

func centered(s string, cols, rows int) string {
	return lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center, s)
}

// RunUI runs the terminal UI until the user quits.
func RunUI(ctrl Controller) error {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
