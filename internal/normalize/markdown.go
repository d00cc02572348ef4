package normalize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// Markdown renders Markdown notes with goldmark and keeps the visible text
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates the Markdown normalizer
func NewMarkdown() *Markdown {
	return &Markdown{md: goldmark.New()}
}

// Name returns the format name
func (m *Markdown) Name() string {
	return "markdown"
}

// CanHandle checks for Markdown extensions or content type
func (m *Markdown) CanHandle(path string, contentType string) bool {
	return hasExt(path, ".md", ".markdown") || hasContentType(contentType, "text/markdown", "text/x-markdown")
}

// Normalize implements Normalizer
func (m *Markdown) Normalize(data []byte) (string, error) {
	var rendered bytes.Buffer
	if err := m.md.Convert([]byte(cleanText(data)), &rendered); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(rendered.String()))
	if err != nil {
		return "", err
	}
	return visibleText(doc), nil
}
