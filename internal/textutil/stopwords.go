package textutil

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "been": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "he": true, "her": true, "his": true, "if": true,
	"in": true, "into": true, "is": true, "it": true, "its": true, "no": true,
	"not": true, "of": true, "on": true, "or": true, "she": true, "such": true,
	"that": true, "the": true, "their": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "to": true, "was": true,
	"were": true, "will": true, "with": true, "without": true, "which": true,
	"who": true, "any": true, "all": true, "than": true, "so": true,
}

// IsStopword reports whether a lower-cased token carries no retrieval signal.
func IsStopword(token string) bool {
	return stopwords[token]
}
