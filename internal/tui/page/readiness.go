package page

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/internal/readiness"
	"github.com/medibot/medibot-cli/internal/tui/styles"
	"github.com/muesli/reflow/wordwrap"
)

var ReadinessPage PageID = "readiness"

const (
	retryZone = "readiness-retry"

	defaultDetails = "Por favor espere mientras verificamos el estado del sistema."
)

var possibleCauses = []string{
	"El servidor backend no se está ejecutando.",
	"Ollama no está instalado o no se está ejecutando.",
	"Problemas de conexión de red.",
}

type readinessKeyMap struct {
	Retry key.Binding
}

var readinessKeys = readinessKeyMap{
	Retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reintentar"),
	),
}

// RetryStartedMsg is sent once a manual retry restarted polling.
type RetryStartedMsg struct{}

type readinessPage struct {
	width, height int
	snapshot      readiness.Snapshot
	spinner       spinner.Model
	retry         func()
	retrying      bool
}

func (p *readinessPage) Init() tea.Cmd {
	return p.spinner.Tick
}

func (p *readinessPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
		return p, nil
	case pubsub.Event[readiness.Snapshot]:
		p.snapshot = msg.Payload
		return p, nil
	case RetryStartedMsg:
		p.retrying = false
		return p, nil
	case tea.KeyMsg:
		if key.Matches(msg, readinessKeys.Retry) {
			return p, p.retryCmd()
		}
	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft &&
			zone.Get(retryZone).InBounds(msg) {
			return p, p.retryCmd()
		}
	}

	var cmd tea.Cmd
	p.spinner, cmd = p.spinner.Update(msg)
	return p, cmd
}

// retryCmd restarts polling from scratch. Only offered while unavailable.
func (p *readinessPage) retryCmd() tea.Cmd {
	if p.snapshot.State != readiness.StateUnavailable || p.retrying {
		return nil
	}
	p.retrying = true
	p.snapshot = readiness.Snapshot{State: readiness.StateChecking}
	retry := p.retry
	return func() tea.Msg {
		retry()
		return RetryStartedMsg{}
	}
}

func (p *readinessPage) title() string {
	switch p.snapshot.State {
	case readiness.StateInstalling:
		return "Instalando Modelos de IA..."
	case readiness.StateUnavailable:
		return "Sistema No Disponible"
	}
	return "Conectando con MediBot..."
}

func (p *readinessPage) icon() string {
	switch p.snapshot.State {
	case readiness.StateInstalling:
		return styles.Title().Render(styles.UploadIcon)
	case readiness.StateUnavailable:
		return styles.ErrorText().Bold(true).Render(styles.ErrorIcon)
	}
	return styles.Title().Render(p.spinner.View())
}

func (p *readinessPage) View() string {
	width := min(max(p.width-4, 20), 60)
	details := p.snapshot.Details
	if details == "" {
		details = defaultDetails
	}

	parts := []string{
		p.icon(),
		"",
		styles.Bold().Render(p.title()),
		styles.Muted().Render(wordwrap.String(details, width)),
	}

	if p.snapshot.State == readiness.StateUnavailable {
		causes := styles.ErrorText().Bold(true).Render("Posibles causas:")
		for _, c := range possibleCauses {
			causes += "\n" + styles.ErrorText().Render("• "+wordwrap.String(c, width-4))
		}
		button := zone.Mark(retryZone, styles.Button(true).Render("Reintentar"))
		parts = append(parts, "",
			lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(styles.Error).
				Padding(0, 1).
				Render(lipgloss.JoinVertical(lipgloss.Left, causes, "", button)),
			styles.Muted().Render("r reintentar"),
		)
	}

	return lipgloss.Place(p.width, p.height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, parts...))
}

// NewReadinessPage shows the connection screen. retry must restart polling
// and may block until the previous loop is gone.
func NewReadinessPage(initial readiness.Snapshot, retry func()) tea.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return &readinessPage{
		snapshot: initial,
		spinner:  s,
		retry:    retry,
	}
}
