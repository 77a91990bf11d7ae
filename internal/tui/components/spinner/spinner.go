// Package spinner shows a one-line progress indicator on stderr for the
// non-interactive commands.
package spinner

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Spinner wraps a bubbles spinner in its own tea.Program.
type Spinner struct {
	model model
	prog  *tea.Program
	done  chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

type model struct {
	spinner  spinner.Model
	message  string
	quitting bool
}

type quitMsg struct{}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case quitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), m.message)
}

func NewSpinner(message string) *Spinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return newSpinner(message, s)
}

// NewThemedSpinner creates a spinner drawn in color.
func NewThemedSpinner(message string, color lipgloss.TerminalColor) *Spinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = s.Style.Foreground(color)
	return newSpinner(message, s)
}

func newSpinner(message string, s spinner.Model) *Spinner {
	m := model{spinner: s, message: message}
	return &Spinner{
		model: m,
		prog:  tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil)),
		done:  make(chan struct{}),
	}
}

// Start runs the spinner in the background.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	go func() {
		defer close(s.done)
		if _, err := s.prog.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error running spinner: %v\n", err)
		}
	}()
}

// Stop halts the spinner and waits for it to clear its line. It is safe
// to call more than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if !s.started {
		return
	}
	s.prog.Send(quitMsg{})
	<-s.done
}
