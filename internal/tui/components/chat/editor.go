package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/medibot/medibot-cli/internal/tui/styles"
	"github.com/medibot/medibot-cli/internal/tui/util"
)

type EditorCmp interface {
	tea.Model
	SetSize(width, height int) tea.Cmd
	Reset()
	Focus() tea.Cmd
	Blur()
}

type editorCmp struct {
	width    int
	textarea textinput.Model
}

type EditorKeyMaps struct {
	Send key.Binding
}

var editorMaps = EditorKeyMaps{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send message"),
	),
}

func (m *editorCmp) Init() tea.Cmd {
	return textinput.Blink
}

func (m *editorCmp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && m.textarea.Focused() && key.Matches(msg, editorMaps.Send) {
		value := m.textarea.Value()
		if strings.TrimSpace(value) == "" {
			return m, nil
		}
		return m, util.CmdHandler(SendMsg{Text: value})
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *editorCmp) View() string {
	prompt := styles.Title().Render("> ")
	input := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Border).
		Width(max(m.width-2, 0)).
		Render(prompt + m.textarea.View())
	return lipgloss.JoinVertical(lipgloss.Left,
		input,
		styles.Muted().Italic(true).Render(DisclaimerText),
	)
}

// Reset clears the input after a question was accepted.
func (m *editorCmp) Reset() {
	m.textarea.Reset()
}

func (m *editorCmp) Focus() tea.Cmd {
	return m.textarea.Focus()
}

func (m *editorCmp) Blur() {
	m.textarea.Blur()
}

func (m *editorCmp) SetSize(width, height int) tea.Cmd {
	m.width = width
	m.textarea.Width = max(width-8, 10)
	return nil
}

func NewEditorCmp() EditorCmp {
	ti := textinput.New()
	ti.Placeholder = "Escribe tu consulta médica aquí..."
	ti.Prompt = ""
	ti.CharLimit = 4000
	ti.Focus()
	return &editorCmp{textarea: ti}
}
