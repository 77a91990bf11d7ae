package core

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/medibot/medibot-cli/internal/ingest"
	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/internal/readiness"
	"github.com/medibot/medibot-cli/internal/status"
	"github.com/medibot/medibot-cli/internal/tui/styles"
	"github.com/muesli/reflow/truncate"
)

type StatusCmp interface {
	tea.Model
	SetHelpWidgetMsg(string)
}

type statusCmp struct {
	statusMessages []statusMessage
	width          int
	messageTTL     time.Duration
	helpText       string
	readiness      readiness.Snapshot
	upload         ingest.State
}

type statusMessage struct {
	Level     status.Level
	Message   string
	Timestamp time.Time
	ExpiresAt time.Time
}

// clearMessageCmd is a command that clears status messages after a timeout
func (m statusCmp) clearMessageCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return statusCleanupMsg{time: t}
	})
}

// statusCleanupMsg is a message that triggers cleanup of expired status messages
type statusCleanupMsg struct {
	time time.Time
}

func (m *statusCmp) Init() tea.Cmd {
	return m.clearMessageCmd()
}

func (m *statusCmp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case pubsub.Event[readiness.Snapshot]:
		m.readiness = msg.Payload
	case pubsub.Event[ingest.State]:
		m.upload = msg.Payload
	case pubsub.Event[status.StatusMessage]:
		if msg.Type == status.EventStatusPublished {
			statusMsg := statusMessage{
				Level:     msg.Payload.Level,
				Message:   msg.Payload.Message,
				Timestamp: msg.Payload.Timestamp,
				ExpiresAt: msg.Payload.Timestamp.Add(m.messageTTL),
			}
			m.statusMessages = append(m.statusMessages, statusMsg)
		}
	case statusCleanupMsg:
		// Remove expired messages
		var activeMessages []statusMessage
		for _, sm := range m.statusMessages {
			if sm.ExpiresAt.After(msg.time) {
				activeMessages = append(activeMessages, sm)
			}
		}
		m.statusMessages = activeMessages
		return m, m.clearMessageCmd()
	}
	return m, nil
}

func (m *statusCmp) helpWidget() string {
	text := m.helpText
	if text == "" {
		text = "ctrl+c salir"
	}
	return styles.Padded().
		Background(styles.TextMuted).
		Foreground(styles.Background).
		Bold(true).
		Render(text)
}

func (m *statusCmp) View() string {
	bar := m.helpWidget()
	upload := m.uploadWidget()
	ready := m.readinessWidget()

	statusWidth := max(
		0,
		m.width-
			lipgloss.Width(bar)-
			lipgloss.Width(upload)-
			lipgloss.Width(ready),
	)

	// Display the newest status message if available
	if len(m.statusMessages) > 0 {
		sm := m.statusMessages[len(m.statusMessages)-1]
		infoStyle := styles.Padded().
			Foreground(styles.Background).
			Width(statusWidth)

		switch sm.Level {
		case status.LevelInfo:
			infoStyle = infoStyle.Background(styles.Info)
		case status.LevelWarn:
			infoStyle = infoStyle.Background(styles.Warning)
		case status.LevelError:
			infoStyle = infoStyle.Background(styles.Error)
		case status.LevelDebug:
			infoStyle = infoStyle.Background(styles.TextMuted)
		}

		bar += infoStyle.Render(truncate.StringWithTail(sm.Message, uint(max(statusWidth-2, 0)), "..."))
	} else {
		bar += styles.Padded().Width(statusWidth).Render("")
	}

	return bar + upload + ready
}

func (m *statusCmp) uploadWidget() string {
	switch {
	case m.upload.InFlight:
		return styles.Padded().Foreground(styles.Warning).Render(styles.LoadingIcon + " Subiendo")
	case m.upload.LastResult != nil && m.upload.LastResult.Failed:
		return styles.Padded().Foreground(styles.Error).Render(styles.ErrorIcon + " " + m.upload.LastResult.Message)
	case m.upload.LastResult != nil:
		return styles.Padded().Foreground(styles.Success).Render(styles.CheckIcon + " " + m.upload.LastResult.Message)
	}
	return ""
}

func (m *statusCmp) readinessWidget() string {
	style := styles.Padded().Foreground(styles.Background)
	switch m.readiness.State {
	case readiness.StateReady:
		return style.Background(styles.Success).Render(styles.CheckIcon + " listo")
	case readiness.StateUnavailable:
		return style.Background(styles.Error).Render(styles.ErrorIcon + " sin conexión")
	case readiness.StateInstalling:
		return style.Background(styles.Warning).Render(styles.LoadingIcon + " instalando")
	}
	return style.Background(styles.TextMuted).Render(styles.LoadingIcon + " conectando")
}

func (m *statusCmp) SetHelpWidgetMsg(s string) {
	m.helpText = s
}

func NewStatusCmp(initial readiness.Snapshot) StatusCmp {
	return &statusCmp{
		messageTTL: 4 * time.Second,
		readiness:  initial,
	}
}
