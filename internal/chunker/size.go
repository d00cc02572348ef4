package chunker

import (
	"fmt"
	"unicode/utf8"
)

// Unit selects how chunk sizes are measured.
type Unit string

const (
	UnitChars  Unit = "chars"  // Rune count.
	UnitTokens Unit = "tokens" // Estimated model tokens.
)

// charsPerToken is the approximate average characters per token for GPT tokenizers.
const charsPerToken = 4

// EstimateTokens gives a rough token count using the ~4 chars/token heuristic.
// It is monotonic in text length, which the overlap computation relies on.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// CountChars returns the rune count of text.
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

func measureFor(u Unit) (func(string) int, error) {
	switch u {
	case UnitChars, "":
		return CountChars, nil
	case UnitTokens:
		return EstimateTokens, nil
	default:
		return nil, fmt.Errorf("unknown size unit %q", u)
	}
}
