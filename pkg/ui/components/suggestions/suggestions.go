// Package suggestions shows the canned questions offered before the first
// user message.
package suggestions

import (
	"strings"

	"folio/pkg/ui/components/utils"
	"folio/pkg/ui/styles"
)

const header = "Try asking:"

// Suggestions is a fixed list with one highlighted entry.
type Suggestions struct {
	items    []string
	selected int
}

// New keeps the non-blank items in order.
func New(items []string) *Suggestions {
	s := &Suggestions{}
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			s.items = append(s.items, item)
		}
	}
	return s
}

func (s *Suggestions) Len() int {
	return len(s.items)
}

// Next moves the highlight, wrapping after the last item.
func (s *Suggestions) Next() {
	if len(s.items) == 0 {
		return
	}
	s.selected = (s.selected + 1) % len(s.items)
}

// Selected returns the highlighted question.
func (s *Suggestions) Selected() (string, bool) {
	if len(s.items) == 0 {
		return "", false
	}
	return s.items[s.selected], true
}

// Rewind highlights the first item again.
func (s *Suggestions) Rewind() {
	s.selected = 0
}

// Height is the number of lines View renders.
func (s *Suggestions) Height() int {
	if len(s.items) == 0 {
		return 0
	}
	return len(s.items) + 1
}

// View renders the header and one line per item, truncated to width.
func (s *Suggestions) View(width int) string {
	if len(s.items) == 0 || width <= 0 {
		return ""
	}

	lines := make([]string, 0, s.Height())
	lines = append(lines, styles.SuggestionHeaderStyle.Render(utils.TruncateToWidth(header, width)))
	for i, item := range s.items {
		if i == s.selected {
			lines = append(lines, styles.SelectedStyle.Render(utils.TruncateToWidth("› "+item, width)))
			continue
		}
		lines = append(lines, styles.SuggestionStyle.Render(utils.TruncateToWidth("  "+item, width)))
	}
	return strings.Join(lines, "\n")
}
