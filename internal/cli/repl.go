package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yashward001/finchat/internal/agent"
)

type lineKind int

const (
	lineSystem lineKind = iota
	lineUser
	lineAssistant
	lineTool
	lineError
)

// transcriptLine is one entry in the visible chat transcript.
type transcriptLine struct {
	kind lineKind
	text string
}

var replStyles = struct {
	title     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	tool      lipgloss.Style
	fail      lipgloss.Style
	dim       lipgloss.Style
}{
	title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45")),
	user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
	assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("35")),
	tool:      lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
	fail:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
}

const replWelcome = "Welcome to finchat! Ask me about stocks, charts, news or market movers.\nUse /help for commands, /quit to exit."

// agentReplyMsg carries the outcome of one agent exchange back into Update.
type agentReplyMsg struct {
	events []agent.ChatEvent
	err    error
}

type replModel struct {
	agent      *agent.Agent
	timeout    time.Duration
	textarea   textarea.Model
	viewport   viewport.Model
	spinner    spinner.Model
	transcript []transcriptLine
	busy       bool
	width      int
	height     int
	ready      bool
	quitting   bool
}

func newREPLModel(ag *agent.Agent, timeout time.Duration) replModel {
	ta := textarea.New()
	ta.Placeholder = "Ask about a stock, the market, or request a chart..."
	ta.Focus()
	ta.CharLimit = 500
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = replStyles.title

	m := replModel{
		agent:    ag,
		timeout:  timeout,
		textarea: ta,
		spinner:  sp,
	}
	m.transcript = append(m.transcript, transcriptLine{lineSystem, replWelcome})
	return m
}

func (m replModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// say appends a line to the transcript and refreshes the viewport.
func (m *replModel) say(kind lineKind, text string) {
	m.transcript = append(m.transcript, transcriptLine{kind, text})
	m.refreshViewport()
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-8)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 8
		}
		m.textarea.SetWidth(msg.Width - 4)
		m.refreshViewport()

	case agentReplyMsg:
		m.busy = false
		if msg.err != nil {
			m.say(lineError, msg.err.Error())
		} else {
			m.showEvents(msg.events)
		}
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd)
}

// submit reads the textarea and either runs a slash command or starts an
// agent exchange. Input is ignored while a previous exchange is in flight.
func (m replModel) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}
	m.textarea.Reset()

	if strings.HasPrefix(input, "/") {
		return m.runCommand(input)
	}

	m.say(lineUser, input)
	m.busy = true
	return m, m.queryAgent(input)
}

// showEvents maps agent events onto transcript lines, rendering tool
// observation markers into terminal form along the way.
func (m *replModel) showEvents(events []agent.ChatEvent) {
	width := m.width
	if width == 0 {
		width = 80
	}
	for _, e := range events {
		switch e.Type {
		case "tool_call":
			m.say(lineTool, fmt.Sprintf("calling %s %s", e.Tool, e.Args))
		case "tool_result":
			kind := lineTool
			if e.IsError {
				kind = lineError
			}
			m.say(kind, RenderObservation(width, e.Content))
		case "content":
			m.say(lineAssistant, e.Content)
		}
	}
}

func (m replModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if !m.ready {
		return "Initializing...\n"
	}

	var b strings.Builder
	b.WriteString(replStyles.title.Render("  finchat - Market Analysis Agent"))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.busy {
		fmt.Fprintf(&b, "\n  %s Thinking...\n\n", m.spinner.View())
	} else {
		b.WriteString("\n")
	}
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(replStyles.dim.Render("  /help • /model • /tools • /clear • /quit • Ctrl+C to exit"))
	return b.String()
}

func (m *replModel) refreshViewport() {
	var b strings.Builder
	for _, line := range m.transcript {
		switch line.kind {
		case lineUser:
			b.WriteString(replStyles.user.Render("You: ") + line.text)
		case lineAssistant:
			b.WriteString(replStyles.assistant.Render("finchat: ") + line.text)
		case lineTool:
			b.WriteString(replStyles.tool.Render(line.text))
		case lineError:
			b.WriteString(replStyles.fail.Render("Error: ") + line.text)
		case lineSystem:
			b.WriteString(replStyles.dim.Render(line.text))
		}
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(b.String())
}

const replHelp = `Commands:
  /help, /?       show this help
  /model          list models for the active provider
  /model <id>     switch models (clears history)
  /tools          list the agent's tools
  /clear          clear chat history
  /quit, /exit    leave finchat

Try:
  "How has AAPL traded over the last month?"
  "Chart NVDA with moving averages"
  "What's the news sentiment on TSLA?"
  "What are today's biggest gainers?"`

func (m replModel) runCommand(input string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		m.quitting = true
		return m, tea.Quit

	case "/clear":
		m.transcript = m.transcript[:0]
		m.agent.Reset()
		m.say(lineSystem, "Chat cleared. What would you like to look at?")

	case "/model":
		if arg == "" {
			m.say(lineSystem, m.modelListing())
		} else if err := m.agent.SetModel(arg); err != nil {
			m.say(lineError, fmt.Sprintf("Failed to switch model: %v", err))
		} else {
			m.say(lineSystem, fmt.Sprintf("Switched to %s. Conversation history cleared.", arg))
		}

	case "/tools":
		m.say(lineSystem, "Available tools:\n  "+strings.Join(m.agent.ToolNames(), "\n  "))

	case "/help", "/?":
		m.say(lineSystem, replHelp)

	default:
		m.say(lineError, fmt.Sprintf("Unknown command: %s. Type /help for available commands.", name))
	}
	return m, nil
}

func (m *replModel) modelListing() string {
	current := m.agent.CurrentModel()

	var b strings.Builder
	fmt.Fprintf(&b, "Models for %s:\n", m.agent.ProviderName())
	for _, md := range m.agent.ListModels() {
		marker := "  "
		if md.ID == current {
			marker = "▸ "
		}
		fmt.Fprintf(&b, "  %s%-30s %s\n", marker, md.ID, md.Name)
	}
	fmt.Fprintf(&b, "\nActive: %s\nUsage: /model <id>", current)
	return b.String()
}

func (m replModel) queryAgent(input string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		events, err := m.agent.ChatWithEvents(ctx, input)
		return agentReplyMsg{events: events, err: err}
	}
}

// RunREPL starts the interactive chat loop and blocks until the user quits.
func RunREPL(ag *agent.Agent, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	p := tea.NewProgram(newREPLModel(ag, timeout), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
