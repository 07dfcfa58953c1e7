package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const (
	maxRenderWidth     = 120
	defaultRenderWidth = 100
)

// renderMarkdown renders markdown for the terminal, falling back to the raw
// text when rendering fails so output is never swallowed.
func renderMarkdown(content string) string {
	width := defaultRenderWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w - 4
		if width > maxRenderWidth {
			width = maxRenderWidth
		}
	}

	style := "dark"
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		style = "notty"
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return content
	}

	out, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

func printMarkdown(content string) {
	fmt.Print(renderMarkdown(content))
}
