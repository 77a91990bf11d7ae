package logs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/medibot/medibot-cli/internal/logging"
	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/internal/tui/styles"
	"github.com/muesli/reflow/wordwrap"
)

const logLimit = 100

type TableComponent interface {
	tea.Model
	SetSize(width, height int) tea.Cmd
	BindingKeys() []key.Binding
}

type tableCmp struct {
	service       logging.Service
	table         table.Model
	logs          []logging.Log
	width, height int
}

type logsLoadedMsg struct {
	logs []logging.Log
}

func (i *tableCmp) Init() tea.Cmd {
	return i.fetchLogs()
}

func (i *tableCmp) fetchLogs() tea.Cmd {
	return func() tea.Msg {
		if i.service == nil {
			return nil
		}
		logs := i.service.List(logLimit)
		// newest first
		for l, r := 0, len(logs)-1; l < r; l, r = l+1, r-1 {
			logs[l], logs[r] = logs[r], logs[l]
		}
		return logsLoadedMsg{logs: logs}
	}
}

func (i *tableCmp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case logsLoadedMsg:
		i.logs = msg.logs
		i.updateRows()
		return i, nil

	case pubsub.Event[logging.Log]:
		if msg.Type == logging.EventLogCreated {
			i.logs = append([]logging.Log{msg.Payload}, i.logs...)
			if len(i.logs) > logLimit {
				i.logs = i.logs[:logLimit]
			}
			i.updateRows()
		}
		return i, nil
	}

	t, cmd := i.table.Update(msg)
	i.table = t
	return i, cmd
}

func (i *tableCmp) View() string {
	defaultStyles := table.DefaultStyles()
	defaultStyles.Selected = defaultStyles.Selected.Foreground(styles.Primary)
	i.table.SetStyles(defaultStyles)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().PaddingRight(3).Render(i.table.View()),
		i.details(),
	)
}

// details renders the attributes of the selected record.
func (i *tableCmp) details() string {
	cursor := i.table.Cursor()
	if cursor < 0 || cursor >= len(i.logs) {
		return ""
	}
	log := i.logs[cursor]
	width := max(i.width/2-3, 10)

	lines := []string{
		styles.Bold().Render(log.Timestamp.Local().Format("2006-01-02 15:04:05")),
		levelStyle(log.Level).Render(strings.ToUpper(log.Level)),
		"",
		wordwrap.String(log.Message, width),
	}

	keys := make([]string, 0, len(log.Attributes))
	for k := range log.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		lines = append(lines, "")
	}
	for _, k := range keys {
		lines = append(lines, wordwrap.String(fmt.Sprintf("%s %s", styles.Muted().Render(k+":"), log.Attributes[k]), width))
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func levelStyle(level string) lipgloss.Style {
	switch strings.ToLower(level) {
	case "error":
		return styles.Bold().Foreground(styles.Error)
	case "warn", "warning":
		return styles.Bold().Foreground(styles.Warning)
	case "debug":
		return styles.Bold().Foreground(styles.TextMuted)
	}
	return styles.Bold().Foreground(styles.Info)
}

func (i *tableCmp) SetSize(width int, height int) tea.Cmd {
	i.width, i.height = width, height
	half := width / 2
	i.table.SetWidth(half)
	i.table.SetHeight(height)
	columns := i.table.Columns()

	timeWidth := 8
	levelWidth := 7
	messageWidth := max(half-timeWidth-levelWidth-5, 10)

	columns[0].Width = timeWidth
	columns[1].Width = levelWidth
	columns[2].Width = messageWidth

	i.table.SetColumns(columns)
	return nil
}

func (i *tableCmp) BindingKeys() []key.Binding {
	return []key.Binding{i.table.KeyMap.LineUp, i.table.KeyMap.LineDown, i.table.KeyMap.PageUp, i.table.KeyMap.PageDown}
}

func (i *tableCmp) updateRows() {
	rows := make([]table.Row, 0, len(i.logs))
	for _, log := range i.logs {
		rows = append(rows, table.Row{
			log.Timestamp.Local().Format("15:04:05"),
			log.Level,
			ansi.Strip(log.Message),
		})
	}
	i.table.SetRows(rows)
}

func NewLogsTable(service logging.Service) TableComponent {
	columns := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Level", Width: 7},
		{Title: "Message", Width: 30},
	}

	tableModel := table.New(
		table.WithColumns(columns),
	)
	tableModel.Focus()
	return &tableCmp{
		service: service,
		table:   tableModel,
	}
}
