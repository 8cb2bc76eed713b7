// Package utils holds cell-width helpers shared by the chat components.
package utils

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/mattn/go-runewidth"
)

// Ellipsis marks text cut short by TruncateToWidth.
const Ellipsis = "…"

// TruncateToWidth cuts plain text to width cells, ending in Ellipsis when
// anything was dropped.
func TruncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(text, width, Ellipsis)
}

// PadPlain pads unstyled text with spaces to width cells.
func PadPlain(text string, width int) string {
	if w := runewidth.StringWidth(text); w < width {
		return text + strings.Repeat(" ", width-w)
	}
	return text
}

// PadStyled pads text that may carry ANSI styling to width cells.
func PadStyled(text string, width int) string {
	if w := lipgloss.Width(text); w < width {
		return text + strings.Repeat(" ", width-w)
	}
	return text
}
