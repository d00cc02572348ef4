// Package normalize turns note files into plain text for analysis.
package normalize

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Normalizer converts one input format to plain text
type Normalizer interface {
	// Name returns the format name
	Name() string

	// CanHandle checks if this normalizer accepts the given path/content type
	CanHandle(path string, contentType string) bool

	// Normalize returns the analyzable text of data
	Normalize(data []byte) (string, error)
}

// Registry picks a normalizer per input
type Registry struct {
	normalizers []Normalizer
	plain       Normalizer
}

// NewRegistry creates a registry with the built-in formats
func NewRegistry() *Registry {
	registry := &Registry{}

	registry.Register(NewHTML())
	registry.Register(NewMarkdown())

	// Plain text is the fallback
	registry.plain = NewPlain()

	return registry
}

// Register adds n ahead of previously registered normalizers
func (r *Registry) Register(n Normalizer) {
	r.normalizers = append([]Normalizer{n}, r.normalizers...)
}

// Find returns the normalizer for path and contentType
func (r *Registry) Find(path string, contentType string) Normalizer {
	for _, n := range r.normalizers {
		if n.CanHandle(path, contentType) {
			return n
		}
	}
	return r.plain
}

// Normalize converts data using the matching normalizer
func (r *Registry) Normalize(path, contentType string, data []byte) (string, error) {
	n := r.Find(path, contentType)
	text, err := n.Normalize(data)
	if err != nil {
		return "", fmt.Errorf("normalize %s as %s: %w", displayName(path), n.Name(), err)
	}
	return text, nil
}

// ReadFile reads and normalizes a note file by extension
func (r *Registry) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return r.Normalize(path, "", data)
}

func displayName(path string) string {
	if path == "" {
		return "input"
	}
	return path
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func hasContentType(contentType string, types ...string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, t := range types {
		if ct == t {
			return true
		}
	}
	return false
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cleanText strips a byte order mark and normalizes line endings
func cleanText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	text := string(data)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
