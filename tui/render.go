package tui

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/charmbracelet/glamour"
)

// renderer turns the HTML of a Bot message back into terminal output:
// the fragment markup is converted to Markdown and drawn with glamour.
// A TermRenderer is not safe for concurrent use; the model only renders
// from Update.
type renderer struct {
	converter *md.Converter
	term      *glamour.TermRenderer
	width     int
}

func newRenderer(width int) *renderer {
	r := &renderer{converter: md.NewConverter("", true, nil)}
	r.resize(width)
	return r
}

// resize rebuilds the glamour renderer for a new wrap width. On failure the
// previous renderer (or none) is kept and output falls back to Markdown.
func (r *renderer) resize(width int) {
	if width < 20 {
		width = 20
	}
	if r.term != nil && width == r.width {
		return
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	r.term = term
	r.width = width
}

// markdown converts fragment HTML to Markdown.
func (r *renderer) markdown(html string) string {
	out, err := r.converter.ConvertString(html)
	if err != nil {
		return html
	}
	return out
}

// render converts fragment HTML to styled terminal text.
func (r *renderer) render(html string) string {
	text := r.markdown(html)
	if r.term == nil {
		return text
	}
	out, err := r.term.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
