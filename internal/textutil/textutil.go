// Package textutil holds the shared text primitives used by retrieval and
// rule evaluation: case folding, word tokenization, phrase matching and
// sentence splitting.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fold lower-cases text and collapses whitespace runs to a single space.
func Fold(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func isWord(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokenize splits text into lower-cased word tokens at non-alphanumeric boundaries.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !isWord(r) })
}

// Terms tokenizes text and drops stopwords.
func Terms(text string) []string {
	tokens := Tokenize(text)
	out := tokens[:0]
	for _, t := range tokens {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}

// ContainsPhrase reports whether folded contains phrase at word boundaries.
// folded must already be Fold-ed; phrase is folded here.
// Boundaries are only enforced on phrase edges that are word characters,
// so "objective" never matches inside "subjective" while "%" still matches "80%".
func ContainsPhrase(folded, phrase string) bool {
	return IndexPhrase(folded, phrase) >= 0
}

// IndexPhrase returns the byte offset of the first boundary-respecting
// occurrence of phrase in folded, or -1.
func IndexPhrase(folded, phrase string) int {
	phrase = Fold(phrase)
	if phrase == "" {
		return -1
	}
	first, _ := utf8.DecodeRuneInString(phrase)
	last, _ := utf8.DecodeLastRuneInString(phrase)

	for from := 0; from <= len(folded)-len(phrase); {
		idx := strings.Index(folded[from:], phrase)
		if idx < 0 {
			return -1
		}
		start := from + idx
		end := start + len(phrase)

		ok := true
		if isWord(first) && start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(folded[:start])
			ok = !isWord(prev)
		}
		if ok && isWord(last) && end < len(folded) {
			next, _ := utf8.DecodeRuneInString(folded[end:])
			ok = !isWord(next)
		}
		if ok {
			return start
		}
		_, w := utf8.DecodeRuneInString(folded[start:])
		from = start + w
	}
	return -1
}

// FoldOffsets folds text like Fold and also returns, for every byte of the
// folded string plus one past the end, the byte offset in text it came from.
func FoldOffsets(text string) (string, []int) {
	var b strings.Builder
	b.Grow(len(text))
	offsets := make([]int, 0, len(text)+1)
	space := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
			offsets = append(offsets, i)
		}
		space = false
		lower := unicode.ToLower(r)
		for n := utf8.RuneLen(lower); n > 0; n-- {
			offsets = append(offsets, i)
		}
		b.WriteRune(lower)
	}
	offsets = append(offsets, len(text))
	return b.String(), offsets
}

// ContainsAny returns the first phrase found in folded, if any.
func ContainsAny(folded string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if ContainsPhrase(folded, p) {
			return p, true
		}
	}
	return "", false
}

// Sentences splits text into trimmed sentences. Line breaks and
// '.', '!' or '?' followed by whitespace end a sentence.
func Sentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i, r := range text {
		if r == '\n' || r == '\r' {
			flush()
			continue
		}
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t' || text[i+1] == '\n' || text[i+1] == '\r') {
				flush()
			}
		}
	}
	flush()

	return sentences
}

// Dedupe returns strs without repeats, keeping the first occurrence.
func Dedupe(strs []string) []string {
	seen := make(map[string]bool, len(strs))
	var out []string
	for _, s := range strs {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
