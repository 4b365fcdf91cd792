// Package textutil holds ANSI-aware text helpers for terminal output.
package textutil

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"
)

// WrapText word-wraps to width, preserving embedded ANSI styling.
func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}

// TruncateWithEllipsis shortens a styled line to the given display
// width.
func TruncateWithEllipsis(line string, width int) string {
	if ansi.StringWidth(line) <= width {
		return line
	}
	if width <= 3 {
		return strings.Repeat(".", width)
	}
	return ansi.Cut(line, 0, width-3) + "..."
}

// StringWidth is the display width of a styled string.
func StringWidth(s string) int {
	return ansi.StringWidth(s)
}
