package page

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/medibot/medibot-cli/internal/conversation"
	"github.com/medibot/medibot-cli/internal/ingest"
	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/internal/status"
	"github.com/medibot/medibot-cli/internal/tui/components/chat"
	"github.com/medibot/medibot-cli/internal/tui/styles"
	"github.com/medibot/medibot-cli/internal/tui/util"
)

var ChatPage PageID = "chat"

// Conversation is the part of conversation.Session the chat page drives.
type Conversation interface {
	chat.Transcript
	Begin(question string) (conversation.Request, error)
	Dispatch(ctx context.Context, req conversation.Request) (string, error)
	Resolve(id, answer string, err error) (conversation.Message, bool)
}

// Uploads is the part of ingest.Uploader the chat page drives.
type Uploads interface {
	Begin(batch ingest.Batch) (ingest.Upload, error)
	Dispatch(ctx context.Context, up ingest.Upload) (string, error)
	Resolve(id, message string, err error) (ingest.Result, bool)
	State() ingest.State
}

type chatPage struct {
	ctx           context.Context
	conversation  Conversation
	uploads       Uploads
	accept        []string
	width, height int
	messages      chat.MessagesCmp
	editor        chat.EditorCmp
	upload        chat.UploadCmp
	copy          func(string) error
}

type answerMsg struct {
	id     string
	answer string
	err    error
}

type batchLoadedMsg struct {
	batch ingest.Batch
	err   error
}

type uploadDoneMsg struct {
	id      string
	message string
	err     error
}

type ChatKeyMap struct {
	Upload     key.Binding
	CopyAnswer key.Binding
}

var keyMap = ChatKeyMap{
	Upload: key.NewBinding(
		key.WithKeys("ctrl+o"),
		key.WithHelp("ctrl+o", "subir guías"),
	),
	CopyAnswer: key.NewBinding(
		key.WithKeys("ctrl+y"),
		key.WithHelp("ctrl+y", "copiar respuesta"),
	),
}

func (p *chatPage) Init() tea.Cmd {
	return tea.Batch(
		p.messages.Init(),
		p.editor.Init(),
		p.upload.Init(),
	)
}

func (p *chatPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return p, p.SetSize(msg.Width, msg.Height)

	case chat.SendMsg:
		return p, p.sendMessage(msg.Text)

	case answerMsg:
		if _, ok := p.conversation.Resolve(msg.id, msg.answer, msg.err); ok && msg.err != nil {
			status.Error(conversation.FallbackAnswer)
		}
		return p, util.CmdHandler(chat.HistoryChangedMsg{})

	case chat.UploadMsg:
		accept := p.accept
		return p, func() tea.Msg {
			batch, err := ingest.LoadBatch(p.ctx, accept, msg.Paths...)
			return batchLoadedMsg{batch: batch, err: err}
		}

	case batchLoadedMsg:
		return p, p.startUpload(msg)

	case uploadDoneMsg:
		res, ok := p.uploads.Resolve(msg.id, msg.message, msg.err)
		if ok {
			if res.Failed {
				status.Error(res.Message)
			} else {
				status.Info(res.Message)
			}
		}
		// the selection is cleared whatever the outcome
		u, cmd := p.upload.Update(chat.UploadFinishedMsg{})
		p.upload = u.(chat.UploadCmp)
		return p, tea.Batch(cmd, p.editor.Focus())

	case pubsub.Event[conversation.Message]:
		m, cmd := p.messages.Update(msg)
		p.messages = m.(chat.MessagesCmp)
		return p, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyMap.Upload) && !p.upload.Active():
			p.editor.Blur()
			return p, p.upload.Open()
		case key.Matches(msg, keyMap.CopyAnswer):
			p.copyLastAnswer()
			return p, nil
		}
		if p.upload.Active() {
			u, cmd := p.upload.Update(msg)
			p.upload = u.(chat.UploadCmp)
			cmds = append(cmds, cmd)
			if !p.upload.Active() {
				// cancelled
				cmds = append(cmds, p.editor.Focus())
			}
			return p, tea.Batch(cmds...)
		}
	}

	m, cmd := p.messages.Update(msg)
	p.messages = m.(chat.MessagesCmp)
	cmds = append(cmds, cmd)

	e, cmd := p.editor.Update(msg)
	p.editor = e.(chat.EditorCmp)
	cmds = append(cmds, cmd)

	u, cmd := p.upload.Update(msg)
	p.upload = u.(chat.UploadCmp)
	cmds = append(cmds, cmd)

	return p, tea.Batch(cmds...)
}

// sendMessage appends the question right away and dispatches it as a
// command. The answer comes back as an answerMsg.
func (p *chatPage) sendMessage(text string) tea.Cmd {
	req, err := p.conversation.Begin(text)
	switch {
	case errors.Is(err, conversation.ErrEmptyQuestion):
		return nil
	case errors.Is(err, conversation.ErrPending):
		status.Warn("Espera a que MediBot responda la consulta anterior.")
		return nil
	case errors.Is(err, conversation.ErrNotReady):
		status.Warn("El sistema todavía no está listo.")
		return nil
	case err != nil:
		status.Error(err.Error())
		return nil
	}

	p.editor.Reset()
	ctx := p.ctx
	return tea.Batch(
		util.CmdHandler(chat.HistoryChangedMsg{}),
		func() tea.Msg {
			answer, err := p.conversation.Dispatch(ctx, req)
			return answerMsg{id: req.ID, answer: answer, err: err}
		},
	)
}

func (p *chatPage) startUpload(msg batchLoadedMsg) tea.Cmd {
	if msg.err != nil {
		status.Error(msg.err.Error())
		return util.CmdHandler(chat.UploadRejectedMsg{})
	}
	up, err := p.uploads.Begin(msg.batch)
	switch {
	case errors.Is(err, ingest.ErrInFlight):
		status.Warn("Ya hay una subida en curso.")
		return util.CmdHandler(chat.UploadRejectedMsg{})
	case errors.Is(err, ingest.ErrNotReady):
		status.Warn("El sistema todavía no está listo.")
		return util.CmdHandler(chat.UploadRejectedMsg{})
	case err != nil:
		status.Warn(err.Error())
		return util.CmdHandler(chat.UploadRejectedMsg{})
	}

	status.Info(fmt.Sprintf("Subiendo %d archivo(s)...", msg.batch.Len()))
	ctx := p.ctx
	return func() tea.Msg {
		message, err := p.uploads.Dispatch(ctx, up)
		return uploadDoneMsg{id: up.ID, message: message, err: err}
	}
}

func (p *chatPage) copyLastAnswer() {
	answer, ok := p.messages.LastAnswer()
	if !ok {
		status.Warn("No hay respuestas para copiar.")
		return
	}
	if err := p.copy(answer); err != nil {
		status.Error(fmt.Sprintf("No se pudo copiar: %v", err))
		return
	}
	status.Info("Respuesta copiada al portapapeles.")
}

func (p *chatPage) header() string {
	title := lipgloss.JoinHorizontal(lipgloss.Left,
		styles.Title().Render(styles.MediBotIcon+" MediBot"),
		styles.Bold().Render(" AI"),
		styles.Muted().Render("  Asistente Médico Inteligente"),
	)

	var badge string
	state := p.uploads.State()
	switch {
	case state.InFlight:
		badge = styles.Muted().Render(styles.LoadingIcon + " Subiendo...")
	case state.LastResult != nil && state.LastResult.Failed:
		badge = styles.ErrorText().Render(state.LastResult.Message)
	case state.LastResult != nil:
		badge = lipgloss.NewStyle().Foreground(styles.Success).Render(state.LastResult.Message)
	}
	hint := styles.Muted().Render(keyMap.Upload.Help().Key + " " + keyMap.Upload.Help().Desc)

	right := lipgloss.JoinHorizontal(lipgloss.Left, badge, "  ", hint)
	gap := max(p.width-lipgloss.Width(title)-lipgloss.Width(right), 1)
	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Border).
		Render(title + lipgloss.NewStyle().Width(gap).Render("") + right)
}

func (p *chatPage) View() string {
	parts := []string{p.header(), p.messages.View()}
	if p.upload.Active() {
		parts = append(parts, p.upload.View())
	}
	parts = append(parts, p.editor.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

const (
	headerHeight = 2
	editorHeight = 4
	uploadHeight = 5
)

func (p *chatPage) SetSize(width, height int) tea.Cmd {
	p.width, p.height = width, height
	body := max(height-headerHeight-editorHeight-uploadHeight, 1)
	return tea.Batch(
		p.messages.SetSize(width, body),
		p.editor.SetSize(width, editorHeight),
		p.upload.SetSize(width, uploadHeight),
	)
}

func newChatPage(ctx context.Context, conv Conversation, uploads Uploads, accept []string, markdown bool) *chatPage {
	return &chatPage{
		ctx:          ctx,
		conversation: conv,
		uploads:      uploads,
		accept:       accept,
		messages:     chat.NewMessagesCmp(conv, markdown),
		editor:       chat.NewEditorCmp(),
		upload:       chat.NewUploadCmp(),
		copy:         clipboard.WriteAll,
	}
}

func NewChatPage(ctx context.Context, conv Conversation, uploads Uploads, accept []string, markdown bool) tea.Model {
	return newChatPage(ctx, conv, uploads, accept, markdown)
}
