// Package transcript renders the conversation as a scrollable list of lines.
package transcript

import (
	"strings"

	"folio/pkg/chat"
	"folio/pkg/ui/components/utils"
	"folio/pkg/ui/styles"
)

const (
	// TypingIndicator stands in for a reply that has no text yet.
	TypingIndicator = "..."

	userLabel     = "You"
	errorPrefix   = "! "
	maxTurnRule   = 24
	minPageScroll = 1
)

// Transcript holds the rendered conversation and the scroll position.
type Transcript struct {
	botName  string
	width    int
	height   int
	messages []chat.Message
	lines    []string
	scrollY  int
	follow   bool
}

// New creates a transcript that labels assistant messages with botName.
func New(botName string) *Transcript {
	if strings.TrimSpace(botName) == "" {
		botName = "Assistant"
	}
	return &Transcript{botName: botName, follow: true}
}

// SetSize sets the visible area in cells.
func (t *Transcript) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.reflow()
}

// SetMessages replaces the rendered conversation.
func (t *Transcript) SetMessages(messages []chat.Message) {
	t.messages = messages
	t.reflow()
}

// FollowTail pins the view to the newest line until the user scrolls up.
func (t *Transcript) FollowTail() {
	t.follow = true
	t.scrollY = t.maxScroll()
}

// Following reports whether the view tracks the newest line.
func (t *Transcript) Following() bool {
	return t.follow
}

// ScrollOffset returns the index of the first visible line.
func (t *Transcript) ScrollOffset() int {
	return t.scrollY
}

// Lines returns every rendered line, visible or not.
func (t *Transcript) Lines() []string {
	return t.lines
}

// Scroll handles up, down, pgup and pgdown. It reports whether the key
// was one of those.
func (t *Transcript) Scroll(key string) bool {
	maxScroll := t.maxScroll()
	page := t.height - 1
	if page < minPageScroll {
		page = minPageScroll
	}

	switch key {
	case "up":
		t.scrollY--
	case "down":
		t.scrollY++
	case "pgup":
		t.scrollY -= page
	case "pgdown":
		t.scrollY += page
	default:
		return false
	}

	t.scrollY = max(0, min(t.scrollY, maxScroll))
	t.follow = t.scrollY >= maxScroll
	return true
}

// View renders exactly height lines, each padded to width.
func (t *Transcript) View() string {
	if t.height <= 0 || t.width <= 0 {
		return ""
	}

	out := make([]string, 0, t.height)
	end := min(t.scrollY+t.height, len(t.lines))
	for i := t.scrollY; i < end; i++ {
		out = append(out, utils.PadStyled(t.lines[i], t.width))
	}
	for len(out) < t.height {
		out = append(out, strings.Repeat(" ", t.width))
	}
	return strings.Join(out, "\n")
}

func (t *Transcript) reflow() {
	t.lines = t.render()
	if t.follow {
		t.scrollY = t.maxScroll()
	}
	t.scrollY = max(0, min(t.scrollY, t.maxScroll()))
}

func (t *Transcript) maxScroll() int {
	return max(0, len(t.lines)-max(t.height, 1))
}

func (t *Transcript) render() []string {
	if t.width <= 0 {
		return nil
	}

	var lines []string
	for i, msg := range t.messages {
		if i > 0 {
			lines = append(lines, "")
			if msg.Role == chat.RoleUser {
				rule := strings.Repeat("─", min(t.width, maxTurnRule))
				lines = append(lines, styles.DividerStyle.Render(rule), "")
			}
		}
		lines = append(lines, t.renderMessage(msg)...)
	}
	return lines
}

func (t *Transcript) renderMessage(msg chat.Message) []string {
	var header string
	if msg.Role == chat.RoleUser {
		header = styles.UserPrefixStyle.Render(userLabel)
	} else {
		header = styles.AssistantPrefixStyle.Render(utils.TruncateToWidth(t.botName, t.width))
	}

	var body []string
	switch {
	case msg.Failed():
		body = wrapStyled(styles.ErrorStyle.Render(errorPrefix+sanitize(msg.Content)), t.width)
	case msg.Pending() && strings.TrimSpace(msg.Content) == "":
		body = []string{styles.TypingStyle.Render(TypingIndicator)}
	default:
		body = renderMarkdown(msg.Content, t.width, styles.TextStyle)
	}
	return append([]string{header}, body...)
}
