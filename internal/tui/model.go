// Package tui is the full-screen terminal front-end: a scrollable message
// list, one input row and a spinner while a request is outstanding.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"DocChat/internal/chatclient"
	"DocChat/internal/command"
	"DocChat/internal/session"
	"DocChat/internal/watch"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

const placeholder = "Type your question... (Enter to send, /help for commands)"

type (
	// logChangedMsg is sent by the client observer after a message is appended.
	logChangedMsg struct{}

	// loadingMsg is sent by the client observer when a request starts or ends.
	loadingMsg struct {
		loading bool
	}

	// actionDoneMsg ends an upload or ask started from the input row.
	actionDoneMsg struct {
		ask bool
		err error
	}
)

// Model is the bubbletea model over one chat client.
type Model struct {
	ctx    context.Context
	client *chatclient.ChatClient
	logger *slog.Logger

	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer

	ready     bool
	pending   bool // an action was dispatched and has not reported back
	width     int
	height    int
	status    string
	watching  bool
	stopWatch func()
}

// New creates the model.
func New(ctx context.Context, client *chatclient.ChatClient, logger *slog.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:       ctx,
		client:    client,
		logger:    logger,
		textinput: ti,
		spinner:   sp,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.shutdown()
			return m, tea.Quit

		case tea.KeyEnter:
			// Input is disabled while a request is outstanding.
			if m.busy() {
				return m, nil
			}
			return m.handleSubmit()

		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			if m.ready {
				m.viewport, vpCmd = m.viewport.Update(msg)
			}
			return m, vpCmd
		}

		if !m.busy() {
			m.textinput, tiCmd = m.textinput.Update(msg)
			m.client.SetDraft(m.textinput.Value())
		}
		return m, tiCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 4
		vpHeight := msg.Height - headerHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.textinput.Width = msg.Width - 4

		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(msg.Width-4),
		)
		if err != nil {
			m.logger.Warn("markdown renderer unavailable", "error", err)
		} else {
			m.renderer = renderer
		}
		m.refresh()

	case spinner.TickMsg:
		if m.busy() {
			var spCmd tea.Cmd
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}
		return m, nil

	case logChangedMsg:
		m.refresh()

	case loadingMsg:
		// Restarts the tick chain if it lapsed before the request began.
		if msg.loading {
			return m, m.spinner.Tick
		}
		return m, nil

	case actionDoneMsg:
		m.pending = false
		// A rejected question stays in the input row.
		if msg.ask && !errors.Is(msg.err, chatclient.ErrBusy) {
			m.textinput.Reset()
		}
		if msg.err != nil {
			m.status = noticeText(msg.err)
		}
		m.refresh()
	}

	if m.ready {
		m.viewport, vpCmd = m.viewport.Update(msg)
	}
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}
	m.status = ""

	if cmd, ok := command.Parse(input); ok {
		m.textinput.Reset()
		m.client.SetDraft("")
		return m.handleCommand(cmd)
	}

	m.pending = true
	client, ctx := m.client, m.ctx
	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			return actionDoneMsg{ask: true, err: client.SubmitQuestion(ctx, input)}
		},
	)
}

func (m Model) handleCommand(cmd command.Command) (tea.Model, tea.Cmd) {
	switch cmd.Name {
	case command.Quit:
		m.shutdown()
		return m, tea.Quit

	case command.File:
		if cmd.Arg == "" {
			m.status = "usage: /file <path>"
			return m, nil
		}
		doc, err := m.client.SelectFile(cmd.Arg)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Selected %s (%d bytes). /upload to send it.", doc.Name, doc.Size)
		return m, nil

	case command.Upload:
		if _, ok := m.client.File(); !ok {
			m.status = noticeText(chatclient.ErrNoFileSelected)
			return m, nil
		}
		m.pending = true
		client, ctx := m.client, m.ctx
		return m, tea.Batch(
			m.spinner.Tick,
			func() tea.Msg {
				return actionDoneMsg{err: client.Upload(ctx)}
			},
		)

	case command.Watch:
		doc, ok := m.client.File()
		if !ok {
			m.status = noticeText(chatclient.ErrNoFileSelected)
			return m, nil
		}
		m.unwatch()
		stop, err := watch.Follow(m.ctx, doc.Path, m.client, chatclient.ErrBusy, m.logger)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.stopWatch = stop
		m.watching = true
		m.status = "Watching " + doc.Name + " for changes"
		return m, nil

	case command.Unwatch:
		m.unwatch()
		m.status = "Stopped watching"
		return m, nil

	case command.ClearDraft:
		return m, nil

	case command.Help:
		m.status = command.HelpText()
		return m, nil

	default:
		m.status = "unknown command: " + string(cmd.Name)
		return m, nil
	}
}

// busy reports whether input must be held back: a request is in flight or
// one has been dispatched but not yet started.
func (m Model) busy() bool {
	return m.pending || m.client.Loading()
}

func (m *Model) unwatch() {
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	m.watching = false
}

func (m *Model) shutdown() {
	m.unwatch()
}

// refresh re-renders the log and scrolls to the latest message.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	msgs := m.client.Messages()
	if len(msgs) == 0 {
		return "Select a document with /file <path>, /upload it, then ask questions."
	}

	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(fmt.Sprintf("[%s] %s\n", msg.Timestamp(), label(msg.Sender)))
		b.WriteString(m.renderText(msg))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderText(msg session.Message) string {
	if msg.Sender == session.SenderBot && m.renderer != nil {
		out, err := m.renderer.Render(msg.Text)
		if err == nil {
			return strings.TrimRight(out, "\n") + "\n"
		}
	}
	return msg.Text + "\n"
}

func label(s session.Sender) string {
	switch s {
	case session.SenderUser:
		return "You"
	case session.SenderBot:
		return "Bot"
	default:
		return "System"
	}
}

func noticeText(err error) string {
	switch {
	case errors.Is(err, chatclient.ErrNoFileSelected):
		return "Please select a file! Use /file <path>."
	case errors.Is(err, chatclient.ErrBusy):
		return "Please wait for the current request to finish."
	default:
		return err.Error()
	}
}

// View renders the screen.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString("Chat with Your Document")
	if doc, ok := m.client.File(); ok {
		b.WriteString(" | " + doc.Name)
		if m.watching {
			b.WriteString(" (watching)")
		}
	}
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.busy() {
		b.WriteString(m.spinner.View() + " Typing...")
	}
	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(m.textinput.View())
	return b.String()
}

// Run starts the interactive program and blocks until the user quits.
func Run(ctx context.Context, client *chatclient.ChatClient, logger *slog.Logger) error {
	p := tea.NewProgram(New(ctx, client, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	client.OnChange(func(ev chatclient.Event) {
		switch ev.Kind {
		case chatclient.LoadingChanged:
			p.Send(loadingMsg{loading: ev.Loading})
		default:
			p.Send(logChangedMsg{})
		}
	})
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
