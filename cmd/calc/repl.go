package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stone39035605/calc/internal/config"
	"github.com/stone39035605/calc/internal/session"
	"github.com/stone39035605/calc/internal/vm"
)

// RunREPL starts the interactive top-level driver's terminal UI: a
// bubbletea program that accumulates lines until brackets/braces/parens
// balance
// (calc statements may span several physical lines inside a `{... }`
// function body or `mat`/`obj` initializer), then feeds the whole chunk
// to one Session.Feed call and prints whatever the VM wrote.
func RunREPL(cfg *config.Config, quiet bool) error {
	m := newReplModel(cfg, quiet)
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}

var (
	promptStyle = lipgloss.NewStyle().Bold(true)
	contStyle = lipgloss.NewStyle().Faint(true)
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	bannerStyle = lipgloss.NewStyle().Faint(true)
	primaryPrompt = "> "
	contPrompt = " "
)

// replModel is the bubbletea Model driving one REPL session: a single
// line buffer plus a pending multi-line accumulation. Editing is
// single-line only -- calc's continuation rule (bracket balance) needs
// append/backspace and history, not a full cursor-navigation surface.
type replModel struct {
	sess *session.Session
	out *bytes.Buffer
	quiet bool
	line []rune
	col int
	pending strings.Builder
	depth int // unbalanced {, (, [ count across pending lines
	history []string
	histIdx int
	quitting bool
	lastErr error
}

func newReplModel(cfg *config.Config, quiet bool) *replModel {
	out := &bytes.Buffer{}
	return &replModel{
		sess: session.New(out, cfg),
		out: out,
		quiet: quiet,
	}
}

func (m *replModel) Init() tea.Cmd { return nil }

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlD:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEnter:
		m.submitLine()
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyBackspace:
		if m.col > 0 {
			m.line = append(m.line[:m.col-1], m.line[m.col:]...)
			m.col--
		}
		return m, nil

	case tea.KeyLeft:
		if m.col > 0 {
			m.col--
		}
		return m, nil

	case tea.KeyRight:
		if m.col < len(m.line) {
			m.col++
		}
		return m, nil

	case tea.KeyUp:
		m.historyUp()
		return m, nil

	case tea.KeyDown:
		m.historyDown()
		return m, nil

	case tea.KeyRunes, tea.KeySpace:
		r := keyMsg.Runes
		m.line = append(m.line[:m.col], append(append([]rune{}, r...), m.line[m.col:]...)...)
		m.col += len(r)
		return m, nil
	}
	return m, nil
}

// submitLine appends the current line to the pending chunk and, once
// brackets balance, feeds the whole chunk to the Session -- the
// continuation rule lives in the host, since the compiler core only ever
// sees complete top-level input per Feed call.
func (m *replModel) submitLine() {
	text := string(m.line)
	m.depth += bracketDelta(text)
	m.pending.WriteString(text)
	m.pending.WriteByte('\n')
	m.history = append(m.history, text)
	m.histIdx = len(m.history)
	m.line = nil
	m.col = 0

	if m.depth > 0 {
		return
	}
	m.depth = 0
	chunk := m.pending.String()
	m.pending.Reset()

	m.out.Reset()
	err := m.sess.Feed("(repl)", []byte(chunk))
	var quit *vm.QuitError
	if errors.As(err, &quit) {
		m.quitting = true
		m.lastErr = nil
		return
	}
	m.lastErr = err
}

func (m *replModel) historyUp() {
	if m.histIdx > 0 {
		m.histIdx--
		m.line = []rune(m.history[m.histIdx])
		m.col = len(m.line)
	}
}

func (m *replModel) historyDown() {
	if m.histIdx < len(m.history)-1 {
		m.histIdx++
		m.line = []rune(m.history[m.histIdx])
		m.col = len(m.line)
	} else {
		m.histIdx = len(m.history)
		m.line = nil
		m.col = 0
	}
}

// bracketDelta counts the net change in open-bracket depth a line of
// source contributes, ignoring brackets inside string literals -- a
// simplified lexer-agnostic version of the real tokenizer's bracket
// tracking, good enough to decide when to keep prompting for more input.
func bracketDelta(s string) int {
	delta := 0
	inStr := false
	var quote rune
	for _, r := range s {
		switch {
		case inStr:
			if r == quote {
				inStr = false
			}
		case r == '"' || r == '\'':
			inStr, quote = true, r
		case r == '{' || r == '(' || r == '[':
			delta++
		case r == '}' || r == ')' || r == ']':
			delta--
		}
	}
	return delta
}

func (m *replModel) View() string {
	var b strings.Builder
	if !m.quiet {
		fmt.Fprintln(&b, bannerStyle.Render("calc -- arbitrary-precision calculator (ctrl-d to quit)"))
	}
	if m.out.Len() > 0 {
		b.WriteString(m.out.String())
	}
	if m.lastErr != nil {
		fmt.Fprintln(&b, errStyle.Render(m.lastErr.Error()))
	}

	prompt := primaryPrompt
	if m.depth > 0 {
		prompt = contPrompt
	}
	b.WriteString(promptStyle.Render(prompt))
	b.WriteString(renderLineWithCursor(m.line, m.col))
	return b.String()
}

func renderLineWithCursor(line []rune, col int) string {
	var b strings.Builder
	for i, r := range line {
		if i == col {
			b.WriteString(cursorStyle.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	if col == len(line) {
		b.WriteString(cursorStyle.Render(" "))
	}
	return b.String()
}
