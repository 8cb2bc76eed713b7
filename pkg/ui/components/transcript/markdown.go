package transcript

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"folio/pkg/ui/components/utils"
	"folio/pkg/ui/styles"
)

const codeFence = "```"

var lineBreakTags = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n")

// renderMarkdown lays out message text as styled lines no wider than width.
// Only **bold** spans and fenced code blocks are interpreted.
func renderMarkdown(content string, width int, base lipgloss.Style) []string {
	if width <= 0 {
		return []string{""}
	}

	var out []string
	inCode := false
	for _, line := range strings.Split(normalize(content), "\n") {
		line = strings.ReplaceAll(line, "\t", "    ")
		if strings.HasPrefix(strings.TrimSpace(line), codeFence) {
			inCode = !inCode
			continue
		}
		switch {
		case inCode:
			out = append(out, renderCodeLine(line, width)...)
		case strings.TrimSpace(line) == "":
			out = append(out, "")
		default:
			out = append(out, wrapStyled(styleInline(line, base), width)...)
		}
	}

	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// styleInline renders **bold** spans. An unmatched marker stays literal.
func styleInline(line string, base lipgloss.Style) string {
	bold := base.Bold(true)
	parts := strings.Split(line, "**")

	var sb strings.Builder
	for i, part := range parts {
		closed := i < len(parts)-1
		switch {
		case i%2 == 0:
			if part != "" {
				sb.WriteString(base.Render(part))
			}
		case closed:
			if part != "" {
				sb.WriteString(bold.Render(part))
			}
		default:
			sb.WriteString(base.Render("**" + part))
		}
	}
	return sb.String()
}

func wrapStyled(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	return strings.Split(ansi.Wrap(text, width, ""), "\n")
}

func renderCodeLine(line string, width int) []string {
	if line == "" {
		return []string{styles.CodeStyle.Render(utils.PadPlain("", width))}
	}
	parts := strings.Split(ansi.Hardwrap(line, width, true), "\n")
	lines := make([]string, 0, len(parts))
	for _, part := range parts {
		lines = append(lines, styles.CodeStyle.Render(utils.PadPlain(part, width)))
	}
	return lines
}

func normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = lineBreakTags.Replace(content)
	return sanitize(content)
}

// sanitize drops control characters that would corrupt the terminal,
// including ESC, so replies cannot inject their own escape sequences.
func sanitize(content string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, content)
}
