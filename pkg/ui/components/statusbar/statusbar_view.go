// Package statusbar renders the one-line footer under the chat input.
package statusbar

import (
	"strings"

	"github.com/charmbracelet/x/ansi"

	"folio/pkg/ui/styles"
	"folio/pkg/version"
)

// DefaultHint lists the chat key bindings.
const DefaultHint = "Enter send | Tab suggestion | Ctrl+R reset | Ctrl+Y copy | Esc quit"

// BusyText is shown while a reply is in flight.
const BusyText = "Thinking..."

// StatusBarView shows an error, a notice, the busy state or the key hint
// on the left and the build version on the right.
type StatusBarView struct {
	hint    string
	err     string
	message string
	version string
	busy    bool
	width   int
}

// NewStatusBarView creates a status bar with the default hint.
func NewStatusBarView() *StatusBarView {
	return &StatusBarView{
		hint:    DefaultHint,
		version: version.Summary(),
		width:   80,
	}
}

// SetError sets an error line that wins over everything else. An empty
// text clears it.
func (s *StatusBarView) SetError(text string) {
	s.err = strings.TrimSpace(text)
}

// SetMessage sets a notice that wins over the busy state and the hint.
// An empty message clears it.
func (s *StatusBarView) SetMessage(msg string) {
	s.message = strings.TrimSpace(msg)
}

func (s *StatusBarView) SetBusy(busy bool) {
	s.busy = busy
}

func (s *StatusBarView) SetWidth(width int) {
	s.width = width
}

// Render returns the styled bar, exactly width cells wide.
func (s *StatusBarView) Render() string {
	if s.width <= 0 {
		return ""
	}

	left, style := s.hint, styles.FooterStyle
	switch {
	case s.err != "":
		left, style = s.err, styles.ErrorStyle
	case s.message != "":
		left, style = s.message, styles.NoticeStyle
	case s.busy:
		left, style = BusyText, styles.WarningStyle
	}

	// The version is dropped first when space runs out.
	right := s.version
	if ansi.StringWidth(left)+ansi.StringWidth(right)+1 > s.width {
		right = ""
	}
	if ansi.StringWidth(left) > s.width {
		left = ansi.Truncate(left, s.width, "…")
	}

	gap := s.width - ansi.StringWidth(left) - ansi.StringWidth(right)
	return style.Render(left) + strings.Repeat(" ", gap) + styles.PlaceholderStyle.Render(right)
}
