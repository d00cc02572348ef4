// Package chunker splits document text into bounded, overlapping segments
// that respect paragraph, sentence and word boundaries.
//
// Chunks are computed as byte spans over the source, with separators kept
// attached to the preceding unit, so consecutive chunks always cover the
// source without gaps.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/chartrisk/internal/model"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int  // Maximum chunk size in Unit.
	ChunkOverlap int  // Trailing context carried into the next chunk, in Unit.
	Unit         Unit // Size measure, chars by default.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 100,
		Unit:         UnitChars,
	}
}

// ChunkConfigError reports an invalid chunking configuration.
// It is only ever returned by New.
type ChunkConfigError struct {
	ChunkSize    int
	ChunkOverlap int
	Reason       string
}

func (e *ChunkConfigError) Error() string {
	return fmt.Sprintf("invalid chunk config (size=%d, overlap=%d): %s", e.ChunkSize, e.ChunkOverlap, e.Reason)
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return &ChunkConfigError{ChunkSize: c.ChunkSize, ChunkOverlap: c.ChunkOverlap, Reason: "chunk size must be positive"}
	}
	if c.ChunkOverlap < 0 {
		return &ChunkConfigError{ChunkSize: c.ChunkSize, ChunkOverlap: c.ChunkOverlap, Reason: "chunk overlap must not be negative"}
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return &ChunkConfigError{ChunkSize: c.ChunkSize, ChunkOverlap: c.ChunkOverlap, Reason: "chunk overlap must be smaller than chunk size"}
	}
	if _, err := measureFor(c.Unit); err != nil {
		return &ChunkConfigError{ChunkSize: c.ChunkSize, ChunkOverlap: c.ChunkOverlap, Reason: err.Error()}
	}
	return nil
}

// separators are tried in priority order; "" means hard slicing by rune.
var separators = []string{"\n\n", "\n", ". ", "? ", "! ", " ", ""}

// Chunker splits text into chunks. It is immutable and safe for concurrent use.
type Chunker struct {
	config  Config
	measure func(string) int
}

// New creates a Chunker, rejecting invalid configurations.
func New(cfg Config) (*Chunker, error) {
	if cfg.Unit == "" {
		cfg.Unit = UnitChars
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	measure, _ := measureFor(cfg.Unit)
	return &Chunker{config: cfg, measure: measure}, nil
}

// MustNew creates a Chunker, panicking on invalid config.
// Use for known-good configurations.
func MustNew(cfg Config) *Chunker {
	c, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.config
}

// Measure returns the size of text in the configured unit.
func (c *Chunker) Measure(text string) int {
	return c.measure(text)
}

// Split breaks text into chunks. Empty text yields no chunks.
func (c *Chunker) Split(text string) []model.Chunk {
	spans := c.splitRange(text, 0, len(text))
	chunks := make([]model.Chunk, 0, len(spans))
	for _, s := range spans {
		chunks = append(chunks, c.newChunk(text, s, "", 0))
	}
	return number(chunks)
}

type span struct {
	start, end int
}

// splitRange chunks text[start:end], returning absolute spans.
func (c *Chunker) splitRange(text string, start, end int) []span {
	if start >= end {
		return nil
	}
	if c.measure(text[start:end]) <= c.config.ChunkSize {
		return []span{{start, end}}
	}
	return c.merge(text, c.units(text, start, end, 0))
}

// units recursively splits a range until every unit fits the budget,
// descending a separator level only for units that are still too large.
func (c *Chunker) units(text string, start, end, level int) []span {
	sep := separators[level]

	var pieces []span
	if sep == "" {
		pieces = runeSpans(text, start, end)
	} else {
		pieces = splitKeep(text, start, end, sep)
	}

	out := make([]span, 0, len(pieces))
	for _, p := range pieces {
		if sep != "" && c.measure(text[p.start:p.end]) > c.config.ChunkSize {
			out = append(out, c.units(text, p.start, p.end, level+1)...)
			continue
		}
		out = append(out, p)
	}
	return out
}

// merge packs contiguous units into chunks of at most ChunkSize. When the next
// unit would overflow, the current chunk is closed and the next one starts
// with the trailing ChunkOverlap of the closed chunk.
func (c *Chunker) merge(text string, units []span) []span {
	if len(units) == 0 {
		return nil
	}

	var out []span
	cur := span{units[0].start, units[0].start}

	for _, u := range units {
		if c.measure(text[cur.start:u.end]) <= c.config.ChunkSize {
			cur.end = u.end
			continue
		}

		if cur.end > cur.start {
			out = append(out, cur)
		}

		next := c.overlapStart(text, cur)
		for next < u.start && c.measure(text[next:u.end]) > c.config.ChunkSize {
			_, w := utf8.DecodeRuneInString(text[next:])
			next += w
		}
		cur = span{next, u.end}
	}

	if cur.end > cur.start {
		out = append(out, cur)
	}
	return out
}

// overlapStart returns the start of the longest suffix of s whose size
// does not exceed ChunkOverlap.
func (c *Chunker) overlapStart(text string, s span) int {
	if c.config.ChunkOverlap == 0 {
		return s.end
	}
	pos := s.end
	for pos > s.start {
		_, w := utf8.DecodeLastRuneInString(text[s.start:pos])
		if c.measure(text[pos-w:s.end]) > c.config.ChunkOverlap {
			break
		}
		pos -= w
	}
	return pos
}

func (c *Chunker) newChunk(text string, s span, label string, sectionIndex int) model.Chunk {
	body := text[s.start:s.end]
	return model.Chunk{
		Text:          body,
		EstimatedSize: c.measure(body),
		StartOffset:   s.start,
		EndOffset:     s.end,
		SectionLabel:  label,
		SectionIndex:  sectionIndex,
	}
}

// number assigns Index and TotalChunks.
func number(chunks []model.Chunk) []model.Chunk {
	for i := range chunks {
		chunks[i].Index = i
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

// splitKeep splits text[start:end] on sep, keeping each separator attached
// to the piece before it.
func splitKeep(text string, start, end int, sep string) []span {
	var pieces []span
	pos := start
	for pos < end {
		idx := strings.Index(text[pos:end], sep)
		if idx < 0 {
			break
		}
		cut := pos + idx + len(sep)
		pieces = append(pieces, span{pos, cut})
		pos = cut
	}
	if pos < end {
		pieces = append(pieces, span{pos, end})
	}
	return pieces
}

func runeSpans(text string, start, end int) []span {
	pieces := make([]span, 0, end-start)
	for pos := start; pos < end; {
		_, w := utf8.DecodeRuneInString(text[pos:end])
		pieces = append(pieces, span{pos, pos + w})
		pos += w
	}
	return pieces
}
