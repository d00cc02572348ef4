package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// HTML extracts visible text from HTML notes, one block element per line
type HTML struct{}

// NewHTML creates the HTML normalizer
func NewHTML() *HTML {
	return &HTML{}
}

// Name returns the format name
func (h *HTML) Name() string {
	return "html"
}

// CanHandle checks for .html/.htm files or an HTML content type
func (h *HTML) CanHandle(path string, contentType string) bool {
	return hasExt(path, ".html", ".htm") || hasContentType(contentType, "text/html", "application/xhtml+xml")
}

// Normalize implements Normalizer
func (h *HTML) Normalize(data []byte) (string, error) {
	doc, err := html.Parse(strings.NewReader(cleanText(data)))
	if err != nil {
		return "", err
	}
	return visibleText(doc), nil
}

// blockElements start a new line so section headers stay line-anchored
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"table": true, "ul": true, "ol": true, "blockquote": true, "pre": true,
	"dt": true, "dd": true, "hr": true,
}

// visibleText extracts text nodes, skipping scripts/styles
func visibleText(n *html.Node) string {
	var lines []string
	var cur strings.Builder
	pendingSpace := false

	newline := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		pendingSpace = false
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head", "template":
				return
			}
		}

		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			newline()
		}

		if n.Type == html.TextNode {
			words := strings.Fields(n.Data)
			if len(words) == 0 {
				pendingSpace = pendingSpace || n.Data != ""
			} else {
				leading := strings.TrimLeftFunc(n.Data, unicode.IsSpace) != n.Data
				if cur.Len() > 0 && (pendingSpace || leading) {
					cur.WriteByte(' ')
				}
				cur.WriteString(strings.Join(words, " "))
				pendingSpace = strings.TrimRightFunc(n.Data, unicode.IsSpace) != n.Data
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if block {
			newline()
		}
	}

	walk(n)
	newline()
	return strings.Join(lines, "\n")
}
