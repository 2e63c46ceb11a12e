// Package render turns entry bodies into HTML for display.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

// The goldmark instance is immutable after construction and safe to share.
func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Footnote,
				extension.DefinitionList,
			),
		)
	})
	return markdown
}

// Markdown renders src with GitHub flavoured tables, footnotes and definition
// lists. Raw HTML in src is omitted.
func Markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := getMarkdown().Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Plain escapes src and keeps its line breaks.
func Plain(src string) string {
	if src == "" {
		return ""
	}
	lines := strings.Split(html.EscapeString(src), "\n")
	return "<p>" + strings.Join(lines, "<br>\n") + "</p>\n"
}

// Entry renders e according to its content kind.
func Entry(e models.Entry) (string, error) {
	switch e.Kind {
	case models.KindMarkdown:
		return Markdown(e.Body)
	case models.KindPlain, "":
		return Plain(e.Body), nil
	default:
		return "", fmt.Errorf("render: unknown content kind %q", e.Kind)
	}
}
