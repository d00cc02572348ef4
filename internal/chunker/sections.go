package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/chartrisk/internal/model"
)

const (
	PreambleLabel     = "Preamble"
	FullDocumentLabel = "Full Document"
)

// DefaultHeaders are the clinical note headers recognized when none are configured.
var DefaultHeaders = []string{
	"Subjective", "Objective", "Assessment", "Plan",
	"History", "Goals", "Treatment", "Interventions",
	"Evaluation", "Progress", "Discharge", "Precautions",
}

// Section is a labeled byte range of a document.
type Section struct {
	Label string
	Index int
	Start int
	End   int
}

// DetectSections partitions text into sections at header lines.
// Headers match case-insensitively at the start of a line, optionally
// preceded by whitespace or markdown '#' markers, and must not continue
// into a longer word ("Plans" is not "Plan").
// The returned sections cover text exactly, in order.
func DetectSections(text string, headers []string) []Section {
	if text == "" {
		return nil
	}
	if len(headers) == 0 {
		headers = DefaultHeaders
	}

	type mark struct {
		label string
		start int
	}
	var marks []mark
	for lineStart := 0; lineStart < len(text); {
		lineEnd := strings.IndexByte(text[lineStart:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd += lineStart
		}
		if label, ok := matchHeader(text[lineStart:lineEnd], headers); ok {
			marks = append(marks, mark{label, lineStart})
		}
		lineStart = lineEnd + 1
	}

	if len(marks) == 0 {
		return []Section{{Label: FullDocumentLabel, Index: 0, Start: 0, End: len(text)}}
	}

	var sections []Section
	if marks[0].start > 0 {
		if strings.TrimSpace(text[:marks[0].start]) == "" {
			marks[0].start = 0
		} else {
			sections = append(sections, Section{Label: PreambleLabel, Start: 0, End: marks[0].start})
		}
	}
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		sections = append(sections, Section{Label: m.label, Start: m.start, End: end})
	}
	for i := range sections {
		sections[i].Index = i
	}
	return sections
}

// matchHeader returns the longest configured header that opens line.
func matchHeader(line string, headers []string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t#")
	best := ""
	for _, h := range headers {
		if len(h) == 0 || len(h) > len(trimmed) || len(h) <= len(best) {
			continue
		}
		if !strings.EqualFold(trimmed[:len(h)], h) {
			continue
		}
		if rest := trimmed[len(h):]; rest != "" {
			r, _ := utf8.DecodeRuneInString(rest)
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		best = h
	}
	return best, best != ""
}

// SplitBySections detects sections and chunks each one independently.
// Offsets stay absolute and chunk indexes run across the whole document.
func (c *Chunker) SplitBySections(text string, headers []string) []model.Chunk {
	var chunks []model.Chunk
	for _, sec := range DetectSections(text, headers) {
		for _, s := range c.splitRange(text, sec.Start, sec.End) {
			chunks = append(chunks, c.newChunk(text, s, sec.Label, sec.Index))
		}
	}
	return number(chunks)
}
