package chat

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/medibot/medibot-cli/internal/conversation"
	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/internal/tui/styles"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

// markdownStyle picks the glamour style once per process. NO_COLOR and
// dumb terminals get the plain style.
var markdownStyle = sync.OnceValue(func() string {
	if termenv.EnvColorProfile() == termenv.Ascii {
		return "notty"
	}
	if !lipgloss.HasDarkBackground() {
		return "light"
	}
	return "dark"
})

// Transcript is the read side of a conversation the list renders.
type Transcript interface {
	History() []conversation.Message
	Pending() bool
}

type MessagesCmp interface {
	tea.Model
	SetSize(width, height int) tea.Cmd
	LastAnswer() (string, bool)
}

type messagesCmp struct {
	transcript    Transcript
	markdown      bool
	width, height int
	viewport      viewport.Model
	spinner       spinner.Model
	messages      []conversation.Message
	pending       bool
	renderer      *glamour.TermRenderer
	rendererWidth int
}

type MessageKeys struct {
	PageDown     key.Binding
	PageUp       key.Binding
	HalfPageUp   key.Binding
	HalfPageDown key.Binding
}

var messageKeys = MessageKeys{
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("f/pgdn", "page down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("b/pgup", "page up"),
	),
	HalfPageUp: key.NewBinding(
		key.WithKeys("ctrl+u"),
		key.WithHelp("ctrl+u", "½ page up"),
	),
	HalfPageDown: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("ctrl+d", "½ page down"),
	),
}

func (m *messagesCmp) Init() tea.Cmd {
	m.reload()
	return tea.Batch(m.viewport.Init(), m.spinner.Tick)
}

func (m *messagesCmp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case HistoryChangedMsg:
		m.reload()
	case pubsub.Event[conversation.Message]:
		if msg.Type == pubsub.EventTypeCreated {
			m.reload()
		}
	case tea.KeyMsg:
		if key.Matches(msg, messageKeys.PageUp) || key.Matches(msg, messageKeys.PageDown) ||
			key.Matches(msg, messageKeys.HalfPageUp) || key.Matches(msg, messageKeys.HalfPageDown) {
			u, cmd := m.viewport.Update(msg)
			m.viewport = u
			cmds = append(cmds, cmd)
		}
	case tea.MouseMsg:
		u, cmd := m.viewport.Update(msg)
		m.viewport = u
		cmds = append(cmds, cmd)
	}

	s, cmd := m.spinner.Update(msg)
	m.spinner = s
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// reload re-reads the transcript. Messages are append-only so a length
// check is enough to detect changes.
func (m *messagesCmp) reload() {
	history := m.transcript.History()
	pending := m.transcript.Pending()
	if len(history) == len(m.messages) && pending == m.pending {
		return
	}
	m.messages = history
	m.pending = pending
	m.renderView()
	m.viewport.GotoBottom()
}

func (m *messagesCmp) renderView() {
	if m.width == 0 {
		return
	}
	parts := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		if msg.IsUser() {
			parts = append(parts, m.renderUser(msg))
		} else {
			parts = append(parts, m.renderAssistant(msg))
		}
	}
	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m *messagesCmp) renderUser(msg conversation.Message) string {
	header := styles.Bold().Foreground(styles.Secondary).Render("Tú")
	body := wordwrap.String(msg.Content, max(m.width-4, 10))
	return lipgloss.NewStyle().
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(styles.Secondary).
		PaddingLeft(1).
		MarginBottom(1).
		Render(header + "\n" + body)
}

func (m *messagesCmp) renderAssistant(msg conversation.Message) string {
	header := styles.Title().Render("MediBot")
	var body string
	switch {
	case msg.Failed:
		body = styles.ErrorText().Render(wordwrap.String(msg.Content, max(m.width-4, 10)))
	case m.markdown:
		body = m.renderMarkdown(msg.Content)
	default:
		body = wordwrap.String(msg.Content, max(m.width-4, 10))
	}
	border := styles.Primary
	if msg.Failed {
		border = styles.Error
	}
	return lipgloss.NewStyle().
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(border).
		PaddingLeft(1).
		MarginBottom(1).
		Render(header + "\n" + body)
}

func (m *messagesCmp) renderMarkdown(content string) string {
	width := max(m.width-4, 10)
	if m.renderer == nil || m.rendererWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(markdownStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			slog.Warn("Failed to create markdown renderer", "error", err)
			return wordwrap.String(content, width)
		}
		m.renderer, m.rendererWidth = r, width
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		slog.Warn("Failed to render markdown", "error", err)
		return wordwrap.String(content, width)
	}
	return strings.Trim(out, "\n")
}

func (m *messagesCmp) View() string {
	if len(m.messages) == 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, welcome(m.width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.working())
}

func (m *messagesCmp) working() string {
	if !m.pending {
		return ""
	}
	return styles.Title().Render(m.spinner.View() + " " + PendingText)
}

func welcome(width int) string {
	text := wordwrap.String(
		"Tu asistente para consultas rápidas sobre protocolos y guías médicas. Sube tus documentos para empezar.",
		min(max(width-4, 20), 60),
	)
	return lipgloss.JoinVertical(lipgloss.Center,
		styles.Title().Render(styles.MediBotIcon+" ¡Bienvenido a MediBot AI!"),
		"",
		styles.Muted().Render(text),
		"",
		styles.Box().Render(styles.Bold().Render("Ingesta de Datos")+"\n"+styles.Muted().Render("Soporte para PDF y TXT")),
		styles.Box().Render(styles.Bold().Render("Seguridad")+"\n"+styles.Muted().Render("Ejecución 100% Local")),
	)
}

// LastAnswer returns the newest assistant reply that did not fail.
func (m *messagesCmp) LastAnswer() (string, bool) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if !msg.IsUser() && !msg.Failed {
			return msg.Content, true
		}
	}
	return "", false
}

func (m *messagesCmp) SetSize(width, height int) tea.Cmd {
	if m.width == width && m.height == height {
		return nil
	}
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-1, 0)
	m.renderView()
	return nil
}

func NewMessagesCmp(transcript Transcript, markdown bool) MessagesCmp {
	s := spinner.New(spinner.WithSpinner(spinner.Spinner{
		Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		FPS:    time.Second / 10,
	}))
	vp := viewport.New(0, 0)
	vp.KeyMap.PageUp = messageKeys.PageUp
	vp.KeyMap.PageDown = messageKeys.PageDown
	vp.KeyMap.HalfPageUp = messageKeys.HalfPageUp
	vp.KeyMap.HalfPageDown = messageKeys.HalfPageDown
	return &messagesCmp{
		transcript: transcript,
		markdown:   markdown,
		viewport:   vp,
		spinner:    s,
	}
}
