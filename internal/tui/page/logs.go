package page

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/medibot/medibot-cli/internal/logging"
	"github.com/medibot/medibot-cli/internal/tui/components/logs"
	"github.com/medibot/medibot-cli/internal/tui/styles"
)

var LogsPage PageID = "logs"

type logsPage struct {
	width, height int
	table         logs.TableComponent
}

func (p *logsPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, p.table.SetSize(msg.Width, max(msg.Height-3, 1))
	}

	table, cmd := p.table.Update(msg)
	p.table = table.(logs.TableComponent)
	return p, cmd
}

func (p *logsPage) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		styles.Bold().Render(" esc")+styles.Muted().Render(" to go back"),
		"",
		p.table.View(),
		"",
	)
}

func (p *logsPage) Init() tea.Cmd {
	return p.table.Init()
}

func NewLogsPage(service logging.Service) tea.Model {
	return &logsPage{
		table: logs.NewLogsTable(service),
	}
}
