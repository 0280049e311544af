package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix-go/internal/client"
	"github.com/raphaelgruber/helix-go/internal/models"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive analysis chat",
	Long: `Open an interactive chat that streams analysis from the server.

Thinking fragments appear dimmed while the backend works, the answer
streams in as it is generated, and mined charts are announced as they
arrive. The whole conversation shares one session, so every question is
grounded in the answers before it.

Examples:
  helix chat
  helix chat --session 2f6c1b0a
  helix chat --endpoint http://helix.lab:8000`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "session ID to continue")
}

func runChat(cmd *cobra.Command, args []string) error {
	program := tea.NewProgram(newChatModel(api, chatSession), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if m, ok := final.(chatModel); ok && m.session != "" {
		fmt.Printf("Session: %s\n", m.session)
	}
	return nil
}

var (
	chatHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFD7"))
	chatHintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	chatQueryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00D787"))
	chatThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")).Italic(true)
	chatChartStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFD7"))
	chatErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF005F"))
	chatInputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// chatEvent carries one stream event from the pump goroutine into the
// Update loop. ok is false once the stream has ended; err then holds the
// failure, if any.
type chatEvent struct {
	ev  models.StreamEvent
	err error
	ok  bool
}

type chatModel struct {
	api     *client.Client
	session string

	input    textinput.Model
	viewport viewport.Model
	ready    bool

	transcript string
	thinking   string
	status     string
	streaming  bool
	charts     int

	events chan chatEvent
	cancel context.CancelFunc
}

func newChatModel(api *client.Client, session string) chatModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your research"
	ti.Focus()
	ti.CharLimit = 0
	return chatModel{
		api:      api,
		session:  session,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Type a question and press Enter. ctrl+c quits.",
	}
}

func (m chatModel) Init() tea.Cmd { return textinput.Blink }

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// header, spacer, thinking line, input text line, status
		_, ih := chatInputBoxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-5-ih)
		m.syncViewport()
		return m, nil

	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case msg.Type == tea.KeyEnter:
			if m.streaming {
				return m, nil
			}
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			m.input.Reset()
			return m.startStream(query)
		}

	case chatEvent:
		return m.handleEvent(msg)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// startStream launches one streaming analysis. The client callback runs
// on its own goroutine and hands events over a channel; waitForEvent
// feeds them back into Update one at a time.
func (m chatModel) startStream(query string) (chatModel, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan chatEvent, 1)

	req := models.AnalyzeRequest{Query: query, SessionID: m.session}
	go func() {
		err := m.api.AnalyzeStream(ctx, req, func(ev models.StreamEvent) error {
			select {
			case events <- chatEvent{ev: ev, ok: true}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		select {
		case events <- chatEvent{err: err}:
		case <-ctx.Done():
		}
	}()

	m.cancel = cancel
	m.events = events
	m.streaming = true
	m.thinking = ""
	m.charts = 0
	m.status = "Analyzing..."
	m.appendLine("")
	m.appendLine(chatQueryStyle.Render("You: " + query))
	m.appendLine("")
	m.syncViewport()
	return m, waitForEvent(events)
}

// waitForEvent delivers the next stream event to the Update loop.
func waitForEvent(events chan chatEvent) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func (m chatModel) handleEvent(ev chatEvent) (chatModel, tea.Cmd) {
	if !ev.ok {
		m.streaming = false
		m.cancel = nil
		m.thinking = ""
		if ev.err != nil {
			m.appendLine(chatErrorStyle.Render("Error: " + ev.err.Error()))
			m.status = "Stream failed. Ask again, or ctrl+c to quit."
		} else {
			m.status = "Done. Ask a follow-up, or ctrl+c to quit."
		}
		m.syncViewport()
		return m, nil
	}

	switch ev.ev.Type {
	case models.EventThinking:
		m.thinking = ev.ev.Content
		m.status = "Thinking..."
	case models.EventResponse:
		m.thinking = ""
		m.appendText(ev.ev.Content)
		m.status = "Answering..."
	case models.EventChart:
		m.charts++
		title := ""
		if ev.ev.Chart != nil {
			title = ev.ev.Chart.Title
		}
		m.appendLine("")
		m.appendLine(chatChartStyle.Render(fmt.Sprintf("[chart %d] %s", m.charts, title)))
	case models.EventComplete:
		if ev.ev.SessionID != "" {
			m.session = ev.ev.SessionID
		}
		m.appendLine("")
	}
	m.syncViewport()
	return m, waitForEvent(m.events)
}

func (m *chatModel) appendText(s string) {
	m.transcript += s
}

func (m *chatModel) appendLine(s string) {
	if m.transcript != "" && !strings.HasSuffix(m.transcript, "\n") {
		m.transcript += "\n"
	}
	m.transcript += s + "\n"
}

func (m *chatModel) syncViewport() {
	content := m.transcript
	if m.viewport.Width > 0 {
		content = lipgloss.NewStyle().Width(m.viewport.Width).Render(content)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	if !m.ready {
		return "Connecting..."
	}

	header := chatHeaderStyle.Render("Helix Chat")
	if m.session != "" {
		header += "  " + chatHintStyle.Render("session "+m.session)
	}

	thinking := ""
	if m.streaming && m.thinking != "" {
		thinking = chatThinkingStyle.Render("· " + snippet(m.thinking, 80))
	}

	var b strings.Builder
	b.WriteString(header + "\n\n")
	b.WriteString(m.viewport.View() + "\n")
	b.WriteString(thinking + "\n")
	b.WriteString(chatInputBoxStyle.Render(m.input.View()) + "\n")
	b.WriteString(chatHintStyle.Render(m.status))
	return b.String()
}
