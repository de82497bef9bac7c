// Package goldmark renders bot responses, which are markdown, to
// ANSI-styled terminal output. Parsing is done by goldmark with the GitHub
// flavoured extensions; styling by lipgloss.
package goldmark

import "github.com/fwojciec/chatstream"

// Render parses markdown source and returns ANSI-styled terminal output
// wrapped to width. A non-positive width means 80 columns.
func Render(source string, width int, theme chatstream.Theme) string {
	return New(theme).Render(source, width)
}
