// Package styles provides the shared palette and styles for the folio UI.
package styles

import (
	"charm.land/lipgloss/v2"
)

// Color palette - ANSI 256 colors used throughout the application
var (
	// Primary accent color (purple)
	ColorAccent = lipgloss.Color("141")

	// Text colors
	ColorText       = lipgloss.Color("252") // Primary text
	ColorTextMuted  = lipgloss.Color("245") // Secondary/muted text
	ColorTextBright = lipgloss.Color("15")  // Bright/highlighted text

	// Semantic colors
	ColorError   = lipgloss.Color("196")
	ColorWarning = lipgloss.Color("214")
	ColorSuccess = lipgloss.Color("42")

	// Role colors
	ColorUser      = lipgloss.Color("222")
	ColorAssistant = lipgloss.Color("141")

	ColorCode        = lipgloss.Color("213")
	ColorCodeBg      = lipgloss.Color("235")
	ColorPlaceholder = lipgloss.Color("240")

	ColorBorder      = lipgloss.Color("141")
	ColorBorderMuted = lipgloss.Color("62")
)

// Header styles
var (
	// TitleStyle renders the bot name.
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	// SubtitleStyle renders the line under the bot name.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorBorderMuted)
)

// Text styles
var (
	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	CodeStyle = lipgloss.NewStyle().
			Foreground(ColorCode).
			Background(ColorCodeBg)
)

// Message styles
var (
	UserPrefixStyle = lipgloss.NewStyle().
			Foreground(ColorUser).
			Bold(true)

	AssistantPrefixStyle = lipgloss.NewStyle().
				Foreground(ColorAssistant).
				Bold(true)

	// TypingStyle renders the indicator shown while a reply is empty.
	TypingStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)
)

// Suggestion styles
var (
	SuggestionHeaderStyle = lipgloss.NewStyle().
				Foreground(ColorTextMuted)

	SuggestionStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	// SelectedStyle highlights the suggestion that enter would send.
	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorTextBright).
			Background(ColorAccent).
			Bold(true)
)

// Footer styles
var (
	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	// PlaceholderStyle dims secondary footer text such as the version.
	PlaceholderStyle = lipgloss.NewStyle().
				Foreground(ColorPlaceholder).
				Italic(true)
)
