// Package ui is the Bubble Tea front end of a chat session.
package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"github.com/mattn/go-runewidth"

	"folio/pkg/chat"
	"folio/pkg/ui/components/statusbar"
	"folio/pkg/ui/components/suggestions"
	"folio/pkg/ui/components/transcript"
	"folio/pkg/ui/components/utils"
	"folio/pkg/ui/styles"
)

const (
	// DefaultStreamThrottle bounds how often partial replies repaint.
	DefaultStreamThrottle = 50 * time.Millisecond

	inputHeight  = 3
	headerHeight = 2 // title line + divider
	footerHeight = 2 // divider + status bar

	// failureBanner stays in the status bar from a failed reply until the
	// next send or reset.
	failureBanner = "Unable to reach the assistant. Is the Flowise instance running?"
)

// Options configures the chat view.
type Options struct {
	BotName     string
	BotSubtitle string
	Suggestions []string

	// Context parents every turn. Defaults to context.Background.
	Context context.Context
	// StreamThrottle defaults to DefaultStreamThrottle.
	StreamThrottle time.Duration
	// Clipboard receives OSC 52 sequences. Defaults to os.Stdout.
	Clipboard io.Writer
	Logger    *slog.Logger
}

// Model renders a chat.Session and turns key presses into session calls.
type Model struct {
	session     *chat.Session
	ctx         context.Context
	logger      *slog.Logger
	clipboard   io.Writer
	botName     string
	botSubtitle string

	transcript  *transcript.Transcript
	suggestions *suggestions.Suggestions
	statusBar   *statusbar.StatusBarView
	input       textarea.Model

	width   int
	height  int
	notice  string
	failure string

	// events is the channel of the running turn; messages from older
	// channels are dropped.
	events <-chan chat.Event

	streamThrottleDelay   time.Duration
	streamThrottlePending bool
	streamThrottleDirty   bool

	quitting bool
}

type turnEventMsg struct {
	events <-chan chat.Event
	event  chat.Event
}

type turnClosedMsg struct {
	events <-chan chat.Event
}

type streamThrottleFlushMsg struct{}

type clipboardMsg struct {
	err error
}

// NewModel builds the chat view for session.
func NewModel(session *chat.Session, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.StreamThrottle <= 0 {
		opts.StreamThrottle = DefaultStreamThrottle
	}
	if opts.Clipboard == nil {
		opts.Clipboard = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	input := textarea.New()
	input.Placeholder = "Ask me anything..."
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.Focus()

	m := Model{
		session:             session,
		ctx:                 opts.Context,
		logger:              opts.Logger,
		clipboard:           opts.Clipboard,
		botName:             opts.BotName,
		botSubtitle:         opts.BotSubtitle,
		transcript:          transcript.New(opts.BotName),
		suggestions:         suggestions.New(opts.Suggestions),
		statusBar:           statusbar.NewStatusBarView(),
		input:               input,
		streamThrottleDelay: opts.StreamThrottle,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.PasteMsg:
		m.input.InsertString(msg.Content)
		return m, nil

	case turnEventMsg:
		return m.handleTurnEvent(msg)

	case turnClosedMsg:
		if msg.events == m.events {
			m.events = nil
			m.resetThrottle()
			m.refresh()
		}
		return m, nil

	case streamThrottleFlushMsg:
		m.streamThrottlePending = false
		if m.streamThrottleDirty {
			m.streamThrottleDirty = false
			m.refresh()
		}
		return m, nil

	case clipboardMsg:
		if msg.err != nil {
			m.logger.Warn("clipboard_copy_failed", "error", msg.err)
			m.notice = "Copy failed"
		} else {
			m.notice = "Copied last answer"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "esc", "ctrl+c":
		m.session.Close()
		m.quitting = true
		return m, tea.Quit

	case "enter":
		return m.submit()

	case "shift+enter":
		m.input.InsertRune('\n')
		return m, nil

	case "tab":
		if m.showSuggestions() {
			m.suggestions.Next()
		}
		return m, nil

	case "ctrl+r":
		m.session.Reset()
		m.events = nil
		m.resetThrottle()
		m.suggestions.Rewind()
		m.input.Reset()
		m.transcript.FollowTail()
		m.failure = ""
		m.notice = "Conversation reset"
		m.refresh()
		m.layout()
		return m, nil

	case "ctrl+y":
		return m, m.copyLastAnswer()

	case "up", "down", "pgup", "pgdown":
		m.transcript.Scroll(key)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" && m.showSuggestions() {
		question, _ = m.suggestions.Selected()
	}
	if question == "" {
		return m, nil
	}

	events, err := m.session.Send(m.ctx, question)
	switch {
	case errors.Is(err, chat.ErrBusy):
		m.notice = "Still answering, please wait"
		return m, nil
	case err != nil:
		m.logger.Error("chat_send_failed", "error", err)
		m.notice = err.Error()
		return m, nil
	}

	m.input.Reset()
	m.notice = ""
	m.failure = ""
	m.events = events
	m.transcript.FollowTail()
	m.refresh()
	m.layout()
	return m, waitForEvent(events)
}

func (m Model) handleTurnEvent(msg turnEventMsg) (tea.Model, tea.Cmd) {
	if msg.events != m.events {
		return m, nil
	}
	next := waitForEvent(msg.events)

	if msg.event.Kind == chat.EventFailed {
		m.failure = failureBanner
	}
	if msg.event.Kind != chat.EventPartial {
		m.resetThrottle()
		m.refresh()
		return m, next
	}

	// First partial paints immediately; later ones wait for the flush.
	if m.streamThrottlePending {
		m.streamThrottleDirty = true
		return m, next
	}
	m.refresh()
	m.streamThrottlePending = true
	return m, tea.Batch(next, streamThrottleTick(m.streamThrottleDelay))
}

func (m *Model) resetThrottle() {
	m.streamThrottlePending = false
	m.streamThrottleDirty = false
}

func (m Model) copyLastAnswer() tea.Cmd {
	text, ok := m.session.LastAnswer()
	if !ok {
		return nil
	}
	w := m.clipboard
	return func() tea.Msg {
		_, err := osc52.New(text).WriteTo(w)
		return clipboardMsg{err: err}
	}
}

func waitForEvent(events <-chan chat.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return turnClosedMsg{events: events}
		}
		return turnEventMsg{events: events, event: ev}
	}
}

func streamThrottleTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return streamThrottleFlushMsg{}
	})
}

// showSuggestions reports whether a suggestion can be picked: nothing is
// running and the conversation is empty or ends in a finished reply.
func (m Model) showSuggestions() bool {
	if m.suggestions.Len() == 0 || m.session.Busy() {
		return false
	}
	last, ok := m.session.Last()
	if !ok {
		return true
	}
	return last.Role == chat.RoleAssistant && last.State == chat.StateComplete
}

// refresh re-renders the transcript from the session snapshot.
func (m *Model) refresh() {
	m.transcript.SetMessages(m.session.Messages())
}

func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.input.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)

	body := m.height - headerHeight - footerHeight - inputHeight
	if m.showSuggestions() {
		body -= m.suggestions.Height()
	}
	m.transcript.SetSize(m.width, max(body, 1))
}

// View implements tea.Model.
func (m Model) View() tea.View {
	if m.quitting {
		return tea.NewView("")
	}
	if m.width <= 0 || m.height <= 0 {
		return tea.NewView("Loading...")
	}

	// Suggestions disappear with the first question; keep the body in sync.
	m.layout()

	divider := styles.DividerStyle.Render(strings.Repeat("─", m.width))
	parts := []string{m.headerView(), divider, m.transcript.View()}
	if m.showSuggestions() {
		parts = append(parts, m.suggestions.View(m.width))
	}
	parts = append(parts, divider, m.input.View(), m.footerView())

	v := tea.NewView(strings.Join(parts, "\n"))
	v.AltScreen = true
	return v
}

func (m Model) headerView() string {
	title := styles.TitleStyle.Render(utils.TruncateToWidth(m.botName, m.width))
	room := m.width - runewidth.StringWidth(m.botName) - 3
	if m.botSubtitle == "" || room <= 0 {
		return title
	}
	return title + " · " + styles.SubtitleStyle.Render(utils.TruncateToWidth(m.botSubtitle, room))
}

func (m Model) footerView() string {
	m.statusBar.SetError(m.failure)
	m.statusBar.SetMessage(m.notice)
	m.statusBar.SetBusy(m.session.Busy())
	return m.statusBar.Render()
}
