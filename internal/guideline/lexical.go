package guideline

import (
	"context"
	"math"

	"github.com/ppiankov/chartrisk/internal/textutil"
)

// BM25 parameters
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Lexical scores passages with Okapi BM25. It is immutable after construction.
type Lexical struct {
	passages []Passage
	termFreq []map[string]int
	docLen   []int
	avgLen   float64
	docFreq  map[string]int
}

// NewLexical indexes corpus
func NewLexical(corpus *Corpus) *Lexical {
	l := &Lexical{docFreq: make(map[string]int)}
	if corpus == nil {
		return l
	}

	total := 0
	for _, p := range corpus.Passages {
		terms := textutil.Terms(p.Text)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			l.docFreq[t]++
		}
		l.passages = append(l.passages, p)
		l.termFreq = append(l.termFreq, tf)
		l.docLen = append(l.docLen, len(terms))
		total += len(terms)
	}
	if len(l.passages) > 0 {
		l.avgLen = float64(total) / float64(len(l.passages))
	}
	return l
}

// Retrieve implements Retriever. Passages sharing no term with query are omitted.
func (l *Lexical) Retrieve(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := textutil.Dedupe(textutil.Terms(query))
	if len(queryTerms) == 0 || len(l.passages) == 0 {
		return nil, nil
	}

	n := float64(len(l.passages))
	var out []Snippet
	for i, p := range l.passages {
		score := 0.0
		matches := 0
		for _, t := range queryTerms {
			tf := l.termFreq[i][t]
			if tf == 0 {
				continue
			}
			matches++
			df := float64(l.docFreq[t])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - bm25B + bm25B*float64(l.docLen[i])/l.avgLen
			score += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
		if matches == 0 {
			continue
		}
		out = append(out, Snippet{
			Snippet:    p.Text,
			SourceID:   p.ID,
			Score:      score,
			MatchCount: matches,
		})
	}
	return rank(out, topK), nil
}
