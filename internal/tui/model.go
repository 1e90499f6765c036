package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfqa/internal/domain"
	"pdfqa/internal/session"
)

// ServicePort is the TUI-facing subset of the application service.
type ServicePort interface {
	Upload(ctx context.Context, path string) (int, error)
	Ask(ctx context.Context, sess *session.Session, question string) (string, error)
	Sources() ([]domain.Segment, []domain.WebResult)
	Ready() bool
}

// ReindexedMsg reports a background re-upload, e.g. from watch mode.
type ReindexedMsg struct {
	Path     string
	Segments int
	Err      error
}

type answerMsg struct {
	answer string
	err    error
}

type uploadMsg struct {
	path     string
	segments int
	err      error
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryInfo
	entryError
)

type entry struct {
	kind entryKind
	text string
}

// Model is the Bubble Tea model for the chat shell.
type Model struct {
	ctx      context.Context
	service  ServicePort
	session  *session.Session
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	entries  []entry
	status   string
	busy     bool
	ready    bool
	width    int
}

// New creates a new TUI model instance.
func New(ctx context.Context, service ServicePort, sess *session.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /upload <file>"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := Model{ctx: ctx, service: service, session: sess, input: ti, viewport: vp, spinner: sp}
	if service.Ready() {
		m.status = "Index loaded. Ask away."
	} else {
		m.status = "No document yet. Use /upload <file>."
	}
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyTab:
			m.toggleMode()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			return m.submit(line)
		}
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.fail(msg.err)
		} else {
			m.push(entryAssistant, msg.answer)
			m.status = "Answered in " + m.session.Mode().Label() + " mode."
		}
		m.refresh()
		return m, nil
	case uploadMsg:
		m.busy = false
		if msg.err != nil {
			m.fail(msg.err)
		} else {
			m.push(entryInfo, fmt.Sprintf("Indexed %s (%d segments).", msg.path, msg.segments))
			m.status = "Document ready."
		}
		m.refresh()
		return m, nil
	case ReindexedMsg:
		if msg.Err != nil {
			m.fail(msg.Err)
		} else {
			m.push(entryInfo, fmt.Sprintf("Re-indexed %s after change (%d segments).", msg.Path, msg.Segments))
		}
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	if !strings.HasPrefix(line, "/") {
		m.push(entryUser, line)
		m.busy = true
		m.status = "Thinking..."
		m.refresh()
		return m, tea.Batch(m.spinner.Tick, m.askCmd(line))
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/upload":
		if arg == "" {
			m.status = "Usage: /upload <file>"
			return m, nil
		}
		m.busy = true
		m.status = "Ingesting " + arg + "..."
		return m, tea.Batch(m.spinner.Tick, m.uploadCmd(arg))
	case "/mode":
		if arg == "" {
			m.toggleMode()
			return m, nil
		}
		mode, err := domain.ParseMode(arg)
		if err == nil {
			err = m.session.SetMode(mode)
		}
		if err != nil {
			m.status = err.Error()
		} else {
			m.status = "Mode: " + mode.Label()
		}
		return m, nil
	case "/sources":
		m.push(entryInfo, m.renderSources())
	case "/help":
		m.push(entryInfo, helpText)
	default:
		m.status = "Unknown command " + cmd + ", try /help"
		return m, nil
	}
	m.refresh()
	return m, nil
}

func (m Model) askCmd(q string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.service.Ask(m.ctx, m.session, q)
		return answerMsg{answer: answer, err: err}
	}
}

func (m Model) uploadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		n, err := m.service.Upload(m.ctx, path)
		return uploadMsg{path: path, segments: n, err: err}
	}
}

func (m *Model) toggleMode() {
	mode, err := m.session.ToggleMode()
	if err != nil {
		m.status = "PDF + Web is unavailable: set TAVILY_API_KEY to enable it."
		return
	}
	m.status = "Mode: " + mode.Label()
}

func (m *Model) push(kind entryKind, text string) {
	m.entries = append(m.entries, entry{kind: kind, text: text})
}

func (m *Model) fail(err error) {
	msg := domain.UserMessage(err)
	m.push(entryError, msg)
	m.status = msg
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("PDF Q&A") + "  " + modeStyle.Render("["+m.session.Mode().Label()+"]")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return mutedStyle.Render("No messages yet. Type /help for commands.")
	}
	wrap := lipgloss.NewStyle().Width(max(20, m.viewport.Width-2))
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.kind {
		case entryUser:
			b.WriteString(userStyle.Render("You: ") + wrap.Render(e.text))
		case entryAssistant:
			b.WriteString(assistantStyle.Render("Assistant:") + "\n" + wrap.Render(e.text))
		case entryError:
			b.WriteString(errorStyle.Render(e.text))
		default:
			b.WriteString(mutedStyle.Render(wrap.Render(e.text)))
		}
	}
	return b.String()
}

func (m Model) renderSources() string {
	segs, web := m.service.Sources()
	if len(segs) == 0 && len(web) == 0 {
		return "No sources yet."
	}
	var b strings.Builder
	for i, s := range segs {
		fmt.Fprintf(&b, "[%d] page %d, offset %d: %s\n", i+1, s.Page, s.SourceOffset, snippet(s.Text, 80))
	}
	for _, w := range web {
		fmt.Fprintf(&b, "[web] %s %s\n", w.Title, w.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

const helpText = `Commands:
  /upload <file>   index a PDF (or .txt/.md), replacing the current document
  /mode [pdf|web]  switch mode; Tab toggles
  /sources         show the context behind the last answer
  /quit            exit`

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle        = lipgloss.NewStyle().Bold(true)
	modeStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
