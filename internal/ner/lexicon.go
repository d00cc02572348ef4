package ner

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/textutil"
)

// LexiconLabel tags entities found by the lexicon
const LexiconLabel = "KEYWORD"

// Lexicon is a deterministic extractor that reports every catalog keyword
// phrase present in the text. It is the default when no NER endpoint is set.
type Lexicon struct {
	phrases []string // Folded, longest first
}

// NewLexicon builds a lexicon from the positive keywords of rules.
func NewLexicon(rules []model.ComplianceRule) *Lexicon {
	var phrases []string
	for _, r := range rules {
		for _, kw := range r.PositiveKeywords {
			if f := textutil.Fold(kw); f != "" {
				phrases = append(phrases, f)
			}
		}
	}
	phrases = textutil.Dedupe(phrases)

	// Longer phrases win over the words they contain
	sort.SliceStable(phrases, func(i, j int) bool {
		return len(phrases[i]) > len(phrases[j])
	})
	return &Lexicon{phrases: phrases}
}

// Len returns the number of distinct phrases
func (l *Lexicon) Len() int {
	return len(l.phrases)
}

// Extract implements Extractor. Entities are ordered by position; a phrase
// overlapping an already claimed span is not reported.
func (l *Lexicon) Extract(ctx context.Context, text string) ([]model.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folded, offsets := textutil.FoldOffsets(text)
	if folded == "" {
		return nil, nil
	}

	type claim struct{ start, end int }
	var claimed []claim
	overlaps := func(s, e int) bool {
		for _, c := range claimed {
			if s < c.end && c.start < e {
				return true
			}
		}
		return false
	}

	var entities []model.Entity
	for _, phrase := range l.phrases {
		start := textutil.IndexPhrase(folded, phrase)
		if start < 0 {
			continue
		}
		end := start + len(phrase)
		if overlaps(start, end) {
			continue
		}
		claimed = append(claimed, claim{start, end})

		origStart, origEnd := offsets[start], trimSpaceEnd(text, offsets[start], offsets[end])
		entities = append(entities, model.Entity{
			Text:  text[origStart:origEnd],
			Label: LexiconLabel,
			Score: 1,
			Start: origStart,
			End:   origEnd,
		})
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Start < entities[j].Start
	})
	return entities, nil
}

func trimSpaceEnd(text string, start, end int) int {
	for end > start {
		r, w := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= w
	}
	return end
}

// Static is an Extractor over a fixed phrase list, useful when no catalog is loaded
func Static(phrases ...string) *Lexicon {
	rule := model.ComplianceRule{PositiveKeywords: make([]string, 0, len(phrases))}
	for _, p := range phrases {
		rule.PositiveKeywords = append(rule.PositiveKeywords, strings.TrimSpace(p))
	}
	return NewLexicon([]model.ComplianceRule{rule})
}
