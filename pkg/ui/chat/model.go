package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatat/pkg/bus"
	"chatat/pkg/irc"
	"chatat/pkg/twitch"
)

const maxLines = 1000

type lineKind int

const (
	lineChat lineKind = iota
	lineSelf
	lineSystem
	lineError
)

type chatLine struct {
	kind    lineKind
	at      time.Time
	channel string
	author  string
	body    string
}

// feedMsg carries one payload read from a bus watch channel.
type feedMsg struct {
	feed    <-chan any
	payload any
}

type feedClosedMsg struct{}

type publishedMsg struct {
	topic string
	ok    bool
}

// Publisher is the part of the event bus the UI writes to.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) bool
}

type model struct {
	ctx       context.Context
	publisher Publisher
	channels  *twitch.Registry
	current   *twitch.Channel
	nick      string
	feeds     []<-chan any
	now       func() time.Time

	theme     theme
	spinner   spinner.Model
	input     textinput.Model
	viewport  viewport.Model
	lines     []chatLine
	width     int
	height    int
	isReady   bool
	followLog bool
	state     irc.State
	lastErr   string
}

func newModel(ctx context.Context, publisher Publisher, opts Options) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Say something, or /join <channel>"
	in.Focus()
	in.CharLimit = 500

	channels := opts.Channels
	if channels == nil {
		channels = twitch.NewRegistry()
	}

	return &model{
		ctx:       ctx,
		publisher: publisher,
		channels:  channels,
		current:   opts.Current,
		nick:      opts.Nick,
		now:       time.Now,
		theme:     defaultTheme(),
		spinner:   spin,
		input:     in,
		viewport:  viewport.New(80, 12),
		width:     100,
		height:    28,
		followLog: true,
		state:     irc.StateDisconnected,
	}
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	for _, feed := range m.feeds {
		cmds = append(cmds, listen(feed))
	}

	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case tea.MouseMsg:
		m.handleViewportMouse(typed)
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m, m.submit(m.input.Value())
		}

		if m.handleViewportKey(typed) {
			return m, nil
		}
	case feedMsg:
		if tick := m.handlePayload(typed.payload); tick != nil {
			return m, tea.Batch(listen(typed.feed), tick)
		}
		return m, listen(typed.feed)
	case feedClosedMsg:
		return m, nil
	case publishedMsg:
		if !typed.ok {
			m.appendLine(chatLine{kind: lineError, body: "event bus is closed, " + typed.topic + " was not delivered"})
		}
		return m, nil
	case spinner.TickMsg:
		if !m.connecting() {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles one line of input. Commands start with a slash; anything
// else is sent to the current channel.
func (m *model) submit(raw string) tea.Cmd {
	text := strings.TrimSpace(raw)
	m.input.SetValue("")
	if text == "" {
		return nil
	}

	if command, arg, ok := parseCommand(text); ok {
		switch command {
		case "quit", "exit", "q":
			return tea.Quit
		case "join":
			return m.join(arg)
		case "help":
			m.appendLine(chatLine{kind: lineSystem, body: helpText})
			return nil
		default:
			m.appendLine(chatLine{kind: lineError, body: fmt.Sprintf("unknown command /%s, try /help", command)})
			return nil
		}
	}

	if m.current == nil {
		m.appendLine(chatLine{kind: lineError, body: "no channel selected, use /join <channel>"})
		return nil
	}

	msg := twitch.FromLocal(m.current, m.nick, text)
	m.followLog = true
	m.appendLine(chatLine{kind: lineSelf, channel: m.current.Name(), author: m.nick, body: text})

	return m.publish(bus.TopicSend, msg)
}

func (m *model) join(name string) tea.Cmd {
	channel := m.channels.Intern(name)
	if channel == nil {
		m.appendLine(chatLine{kind: lineError, body: "usage: /join <channel>"})
		return nil
	}

	m.current = channel
	m.appendLine(chatLine{kind: lineSystem, body: "now chatting in " + channel.String()})

	return m.publish(bus.TopicJoin, channel)
}

// publish runs off the UI goroutine since subscribers write to the network.
func (m *model) publish(topic string, payload any) tea.Cmd {
	if m.publisher == nil {
		return nil
	}

	publisher, ctx := m.publisher, m.ctx
	return func() tea.Msg {
		return publishedMsg{topic: topic, ok: publisher.Publish(ctx, topic, payload)}
	}
}

// handlePayload renders one bus payload. It returns a spinner tick when the
// connection enters its busy phase, since the initial tick chain stops while
// idle.
func (m *model) handlePayload(payload any) tea.Cmd {
	switch typed := payload.(type) {
	case twitch.Message:
		m.appendLine(chatLine{kind: lineChat, channel: typed.Channel.Name(), author: typed.Author, body: typed.Body})
	case irc.StateChange:
		wasBusy := m.connecting()
		m.state = typed.To
		if typed.Err != nil {
			m.lastErr = typed.Err.Error()
		}
		switch typed.To {
		case irc.StateActive:
			m.appendLine(chatLine{kind: lineSystem, body: "connected"})
		case irc.StateClosed:
			if typed.Err != nil {
				m.appendLine(chatLine{kind: lineError, body: "disconnected: " + typed.Err.Error()})
			} else {
				m.appendLine(chatLine{kind: lineSystem, body: "disconnected"})
			}
		}
		if !wasBusy && m.connecting() {
			return m.spinner.Tick
		}
	}

	return nil
}

func (m *model) appendLine(line chatLine) {
	if line.at.IsZero() {
		line.at = m.now()
	}
	m.lines = append(m.lines, line)
	if overflow := len(m.lines) - maxLines; overflow > 0 {
		m.lines = append(m.lines[:0], m.lines[overflow:]...)
	}
	m.refreshViewport(false)
}

func (m *model) connecting() bool {
	switch m.state {
	case irc.StateConnecting, irc.StateAuthenticating, irc.StateJoining:
		return true
	default:
		return false
	}
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}

	header := m.theme.header.Width(m.width - 2).Render("chatat")
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"nick:%s · channel:%s · state:%s · lines:%d",
		displayOrNA(m.nick),
		displayOrNA(m.current.Name()),
		m.state,
		len(m.lines),
	))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.status.Render("Enter send · /join <channel> · PgUp/PgDn scroll · End jump latest · Ctrl+C/Esc quit")
	switch {
	case m.connecting():
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s %s...", m.spinner.View(), m.state))
	case m.state == irc.StateClosed && m.lastErr != "":
		status = m.theme.statusErr.Render("connection lost: " + m.lastErr)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render(displayOrNA(m.nick))+" "+m.theme.hint.Render("(/help for commands)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) resizeComponents() {
	w := max(40, m.width-6)
	h := max(6, m.height-10)

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset

	rendered := make([]string, 0, len(m.lines))
	for _, item := range m.lines {
		rendered = append(rendered, m.renderLine(item))
	}

	m.viewport.SetContent(strings.Join(rendered, "\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) renderLine(item chatLine) string {
	stamp := m.theme.timestamp.Render(item.at.Format("15:04"))

	switch item.kind {
	case lineSystem:
		return stamp + " " + m.theme.system.Render("* "+item.body)
	case lineError:
		return stamp + " " + m.theme.errorLine.Render("! "+item.body)
	case lineSelf:
		return fmt.Sprintf("%s %s %s %s", stamp, m.theme.channel.Render("#"+item.channel), m.theme.self.Render(item.author+":"), item.body)
	default:
		return fmt.Sprintf("%s %s %s %s", stamp, m.theme.channel.Render("#"+item.channel), m.theme.authorStyle(item.author).Render(item.author+":"), item.body)
	}
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(3)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(3)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

// listen waits for the next payload on feed.
func listen(feed <-chan any) tea.Cmd {
	return func() tea.Msg {
		payload, ok := <-feed
		if !ok {
			return feedClosedMsg{}
		}
		return feedMsg{feed: feed, payload: payload}
	}
}

const helpText = "/join <channel> switch channel · /quit leave · anything else is sent to the current channel"

// parseCommand splits "/verb arg" input.
func parseCommand(text string) (command, arg string, ok bool) {
	rest, found := strings.CutPrefix(text, "/")
	if !found || rest == "" {
		return "", "", false
	}

	command, arg, _ = strings.Cut(rest, " ")
	return strings.ToLower(command), strings.TrimSpace(arg), true
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}
