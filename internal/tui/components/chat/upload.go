package chat

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-shellwords"
	"github.com/medibot/medibot-cli/internal/tui/styles"
	"github.com/medibot/medibot-cli/internal/tui/util"
)

// UploadCmp is the prompt where the user lists files or globs to upload.
type UploadCmp interface {
	tea.Model
	SetSize(width, height int) tea.Cmd
	Open() tea.Cmd
	Active() bool
}

type uploadCmp struct {
	width  int
	active bool
	busy   bool
	err    error
	input  textinput.Model
}

type uploadKeyMap struct {
	Submit key.Binding
	Cancel key.Binding
}

var uploadKeys = uploadKeyMap{
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "upload"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}

func (u *uploadCmp) Init() tea.Cmd {
	return nil
}

func (u *uploadCmp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case UploadFinishedMsg:
		u.reset()
		return u, nil
	case UploadRejectedMsg:
		u.busy = false
		return u, nil
	case tea.KeyMsg:
		if !u.active || u.busy {
			return u, nil
		}
		switch {
		case key.Matches(msg, uploadKeys.Cancel):
			u.reset()
			return u, nil
		case key.Matches(msg, uploadKeys.Submit):
			paths, err := splitPaths(u.input.Value())
			u.err = err
			if err != nil || len(paths) == 0 {
				return u, nil
			}
			u.busy = true
			return u, util.CmdHandler(UploadMsg{Paths: paths})
		}
	}
	if !u.active {
		return u, nil
	}

	var cmd tea.Cmd
	u.input, cmd = u.input.Update(msg)
	return u, cmd
}

func (u *uploadCmp) reset() {
	u.active = false
	u.busy = false
	u.err = nil
	u.input.Reset()
	u.input.Blur()
}

func (u *uploadCmp) View() string {
	if !u.active {
		return ""
	}
	title := styles.Bold().Render(styles.UploadIcon + " Subir Guías")
	hint := styles.Muted().Render(`rutas o patrones (*.pdf, guias/**/*.txt) separados por espacios, entre comillas si llevan espacios ("Guía clínica.pdf") · enter subir · esc cancelar`)
	if u.err != nil {
		hint = styles.ErrorText().Render(u.err.Error())
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary).
		Width(max(u.width-2, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, u.input.View(), hint))
}

func (u *uploadCmp) Open() tea.Cmd {
	u.active = true
	return u.input.Focus()
}

func (u *uploadCmp) Active() bool {
	return u.active
}

func (u *uploadCmp) SetSize(width, height int) tea.Cmd {
	u.width = width
	u.input.Width = max(width-6, 10)
	return nil
}

// splitPaths splits the prompt into paths the way a shell would, so
// quoted or backslash-escaped paths may contain spaces.
func splitPaths(line string) ([]string, error) {
	p := shellwords.NewParser()
	p.ParseBacktick = false
	p.ParseEnv = false
	return p.Parse(line)
}

func NewUploadCmp() UploadCmp {
	ti := textinput.New()
	ti.Placeholder = "guias/*.pdf notas.txt"
	return &uploadCmp{input: ti}
}
