// Package tui is an interactive question and answer front end.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/specrag/internal/answer"
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string, k int) (*answer.Answer, error)
}

// Options tune the REPL.
type Options struct {
	// TopK is passed to every Ask. Zero lets the Asker pick.
	TopK int
	// Timeout bounds one question. Default: 2m.
	Timeout time.Duration
	// Summary is shown under the header, e.g. the index generation.
	Summary string
}

type exchange struct {
	question string
	answer   *answer.Answer
	err      error
}

type answerMsg struct {
	answer *answer.Answer
	err    error
}

// Model is the bubbletea model of the REPL.
type Model struct {
	asker    Asker
	opts     Options
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	history  []exchange
	pending  string
	busy     bool
	ready    bool
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true)
	refusedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	citeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// New creates a REPL model.
func New(asker Asker, opts Options) Model {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}

	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "Ask about WCAG 2.2 and press Enter"
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		asker:    asker,
		opts:     opts,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, resize and answer messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := inputBoxStyle.GetFrameSize()
		// header, summary, input line, status
		reserved := 3 + frame + 1
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.input.Width = max(10, msg.Width-frame-len(m.input.Prompt)-2)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.pending = q
			m.input.Reset()
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		}

	case answerMsg:
		m.history = append(m.history, exchange{question: m.pending, answer: msg.answer, err: msg.err})
		m.pending = ""
		m.busy = false
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	asker, k, timeout := m.asker, m.opts.TopK, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ans, err := asker.Ask(ctx, question, k)
		return answerMsg{answer: ans, err: err}
	}
}

// View renders the transcript, the input line and a status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("specrag"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.opts.Summary))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.status())
	return b.String()
}

func (m Model) status() string {
	if m.busy {
		return m.spinner.View() + dimStyle.Render(" retrieving…")
	}
	return dimStyle.Render("enter ask • pgup/pgdn scroll • esc quit")
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	if len(m.history) == 0 && m.pending == "" {
		return dimStyle.Render("No questions yet.")
	}

	width := max(20, m.viewport.Width)
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for _, ex := range m.history {
		b.WriteString(questionStyle.Render("? " + ex.question))
		b.WriteString("\n")
		switch {
		case ex.err != nil:
			b.WriteString(errorStyle.Render("error: " + ex.err.Error()))
		case ex.answer.Refused:
			b.WriteString(refusedStyle.Render(wrap.Render(ex.answer.Text)))
		default:
			b.WriteString(wrap.Render(ex.answer.Text))
			for _, c := range ex.answer.Citations {
				b.WriteString("\n")
				b.WriteString(citeStyle.Render(formatCitation(c)))
			}
		}
		b.WriteString("\n\n")
	}
	if m.pending != "" {
		b.WriteString(questionStyle.Render("? " + m.pending))
		b.WriteString("\n")
	}
	return b.String()
}

func formatCitation(c answer.Citation) string {
	s := fmt.Sprintf("[%s] %s", c.ID, c.Title)
	if c.Level != "" {
		s += " (Level " + c.Level + ")"
	}
	return fmt.Sprintf("%s %s d=%.3f", s, c.URL, c.Distance)
}
