package insight

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders the record as labelled paragraphs.
func (r Record) Markdown() string {
	var b strings.Builder
	for _, l := range Labels {
		text := r.Get(l)
		if text == "" {
			text = "_No insight returned._"
		}
		fmt.Fprintf(&b, "**%s Insight**\n\n%s\n\n", l.Title(), text)
	}
	return b.String()
}

// RenderHTML converts the record to an HTML fragment. Raw HTML in model text is dropped.
func RenderHTML(r Record) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return string(markdown.ToHTML([]byte(r.Markdown()), p, renderer))
}
