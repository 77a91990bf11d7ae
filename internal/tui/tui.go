package tui

import (
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/medibot/medibot-cli/internal/app"
	"github.com/medibot/medibot-cli/internal/conversation"
	"github.com/medibot/medibot-cli/internal/ingest"
	"github.com/medibot/medibot-cli/internal/logging"
	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/internal/readiness"
	"github.com/medibot/medibot-cli/internal/status"
	"github.com/medibot/medibot-cli/internal/tui/components/core"
	"github.com/medibot/medibot-cli/internal/tui/page"
)

type keyMap struct {
	Logs key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Logs: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "logs"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "salir"),
	),
}

var logsKeyReturnKey = key.NewBinding(
	key.WithKeys("esc", "backspace", "q"),
	key.WithHelp("esc/q", "go back"),
)

var helpTexts = map[page.PageID]string{
	page.ReadinessPage: "r reintentar · ctrl+l logs · ctrl+c salir",
	page.ChatPage:      "ctrl+o subir · ctrl+y copiar · ctrl+l logs · ctrl+c salir",
	page.LogsPage:      "esc volver · ctrl+c salir",
}

type appModel struct {
	width, height int
	currentPage   page.PageID
	previousPage  page.PageID
	pages         map[page.PageID]tea.Model
	loadedPages   map[page.PageID]bool
	status        core.StatusCmp
	app           *app.App
}

func (a appModel) Init() tea.Cmd {
	var cmds []tea.Cmd
	cmd := a.pages[a.currentPage].Init()
	a.loadedPages[a.currentPage] = true
	cmds = append(cmds, cmd)
	cmd = a.status.Init()
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (a appModel) updateAllPages(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	for id := range a.pages {
		a.pages[id], cmd = a.pages[id].Update(msg)
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

func (a appModel) updatePage(id page.PageID, msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	a.pages[id], cmd = a.pages[id].Update(msg)
	return cmd
}

func (a appModel) updateStatus(msg tea.Msg) tea.Cmd {
	s, cmd := a.status.Update(msg)
	a.status = s.(core.StatusCmp)
	return cmd
}

func (a appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case cursor.BlinkMsg:
		return a.updateAllPages(msg)
	case spinner.TickMsg:
		return a.updateAllPages(msg)

	case tea.WindowSizeMsg:
		a.updateStatus(msg)
		msg.Height -= 1 // status bar
		a.width, a.height = msg.Width, msg.Height
		return a.updateAllPages(msg)

	case pubsub.Event[readiness.Snapshot]:
		cmds = append(cmds, a.updateStatus(msg), a.updatePage(page.ReadinessPage, msg))
		if msg.Payload.Ready() && a.currentPage == page.ReadinessPage {
			status.Info("Conectado con MediBot.")
			cmds = append(cmds, a.moveToPage(page.ChatPage))
		}
		return a, tea.Batch(cmds...)

	case pubsub.Event[status.StatusMessage]:
		return a, a.updateStatus(msg)

	case pubsub.Event[ingest.State]:
		return a, a.updateStatus(msg)

	case pubsub.Event[logging.Log]:
		return a, a.updatePage(page.LogsPage, msg)

	case pubsub.Event[conversation.Message]:
		return a, a.updatePage(page.ChatPage, msg)

	case page.PageChangeMsg:
		return a, a.moveToPage(msg.ID)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Logs) && a.currentPage != page.LogsPage:
			return a, a.moveToPage(page.LogsPage)
		case key.Matches(msg, logsKeyReturnKey) && a.currentPage == page.LogsPage:
			return a, a.moveToPage(a.previousPage)
		}
	}

	return a, a.updatePage(a.currentPage, msg)
}

func (a *appModel) moveToPage(pageID page.PageID) tea.Cmd {
	var cmds []tea.Cmd
	if _, ok := a.loadedPages[pageID]; !ok {
		cmds = append(cmds, a.pages[pageID].Init())
		a.loadedPages[pageID] = true
	}
	a.previousPage = a.currentPage
	a.currentPage = pageID
	a.status.SetHelpWidgetMsg(helpTexts[pageID])
	if a.width > 0 {
		cmds = append(cmds, a.updatePage(pageID, tea.WindowSizeMsg{Width: a.width, Height: a.height}))
	}
	return tea.Batch(cmds...)
}

func (a appModel) View() string {
	appView := lipgloss.JoinVertical(lipgloss.Top,
		a.pages[a.currentPage].View(),
		a.status.View(),
	)
	return zone.Scan(appView)
}

// New builds the root model. It opens on the readiness screen unless the
// backend is already known to be ready.
func New(app *app.App) tea.Model {
	snapshot := app.Readiness.State()
	startPage := page.ReadinessPage
	if snapshot.Ready() {
		startPage = page.ChatPage
	}

	model := &appModel{
		currentPage: startPage,
		loadedPages: make(map[page.PageID]bool),
		status:      core.NewStatusCmp(snapshot),
		app:         app,
		pages: map[page.PageID]tea.Model{
			page.ReadinessPage: page.NewReadinessPage(snapshot, app.Retry),
			page.ChatPage:      page.NewChatPage(app.Context(), app.Conversation, app.Uploader, app.Accept(), app.Config().TUI.Markdown),
			page.LogsPage:      page.NewLogsPage(app.Logs),
		},
	}
	model.status.SetHelpWidgetMsg(helpTexts[startPage])
	return model
}
