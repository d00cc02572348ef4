package guideline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Hybrid fuses a lexical and a semantic ranking.
//
// Each list is min-max normalized to [0,1] and combined as a weighted sum
// per SourceID. Ties fall back to lexical match count, then SourceID.
// A nil retriever is simply left out.
type Hybrid struct {
	lexical        Retriever
	semantic       Retriever
	lexicalWeight  float64
	semanticWeight float64
}

// NewHybrid creates a fused retriever. Non-positive weights on both sides
// fall back to 0.5 each.
func NewHybrid(lexical, semantic Retriever, lexicalWeight, semanticWeight float64) *Hybrid {
	if lexicalWeight < 0 {
		lexicalWeight = 0
	}
	if semanticWeight < 0 {
		semanticWeight = 0
	}
	if lexicalWeight == 0 && semanticWeight == 0 {
		lexicalWeight, semanticWeight = 0.5, 0.5
	}
	return &Hybrid{
		lexical:        lexical,
		semantic:       semantic,
		lexicalWeight:  lexicalWeight,
		semanticWeight: semanticWeight,
	}
}

type sideResult struct {
	snippets []Snippet
	err      error
}

// Retrieve implements Retriever. When one side fails the other side's
// ranking is returned with an error wrapping ErrPartial; when both fail
// the result is nil.
func (h *Hybrid) Retrieve(ctx context.Context, query string, topK int) ([]Snippet, error) {
	var lex, sem sideResult
	var wg sync.WaitGroup

	run := func(r Retriever, out *sideResult) {
		defer wg.Done()
		// Deeper per-side lists; fusion cuts to topK
		out.snippets, out.err = r.Retrieve(ctx, query, fusionDepth(topK))
	}
	if h.lexical != nil {
		wg.Add(1)
		go run(h.lexical, &lex)
	}
	if h.semantic != nil {
		wg.Add(1)
		go run(h.semantic, &sem)
	}
	wg.Wait()

	lexOK := h.lexical != nil && lex.err == nil
	semOK := h.semantic != nil && sem.err == nil

	switch {
	case lexOK && semOK:
		return fuse(lex.snippets, sem.snippets, h.lexicalWeight, h.semanticWeight, topK), nil
	case lexOK:
		result := fuse(lex.snippets, nil, 1, 0, topK)
		if h.semantic == nil {
			return result, nil
		}
		return result, fmt.Errorf("%w: semantic: %w", ErrPartial, sem.err)
	case semOK:
		result := fuse(nil, sem.snippets, 0, 1, topK)
		if h.lexical == nil {
			return result, nil
		}
		return result, fmt.Errorf("%w: lexical: %w", ErrPartial, lex.err)
	case h.lexical == nil && h.semantic == nil:
		return nil, nil
	default:
		return nil, errors.Join(lex.err, sem.err)
	}
}

func fusionDepth(topK int) int {
	if topK <= 0 {
		return 0
	}
	return topK * 3
}

// fuse merges normalized lists keyed by SourceID
func fuse(lexical, semantic []Snippet, lw, sw float64, topK int) []Snippet {
	byID := make(map[string]*Snippet)
	var order []string

	add := func(list []Snippet, weight float64, lexicalSide bool) {
		norm := normalize(list)
		seen := make(map[string]bool, len(list))
		for i, s := range list {
			if seen[s.SourceID] {
				continue
			}
			seen[s.SourceID] = true
			entry, ok := byID[s.SourceID]
			if !ok {
				entry = &Snippet{Snippet: s.Snippet, SourceID: s.SourceID}
				byID[s.SourceID] = entry
				order = append(order, s.SourceID)
			}
			entry.Score += weight * norm[i]
			if lexicalSide && s.MatchCount > entry.MatchCount {
				entry.MatchCount = s.MatchCount
			}
		}
	}
	add(lexical, lw, true)
	add(semantic, sw, false)

	out := make([]Snippet, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return rank(out, topK)
}

// normalize maps scores to [0,1]; a constant list maps to 1
func normalize(list []Snippet) []float64 {
	out := make([]float64, len(list))
	if len(list) == 0 {
		return out
	}
	lo, hi := list[0].Score, list[0].Score
	for _, s := range list[1:] {
		lo = min(lo, s.Score)
		hi = max(hi, s.Score)
	}
	for i, s := range list {
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = (s.Score - lo) / (hi - lo)
	}
	return out
}
