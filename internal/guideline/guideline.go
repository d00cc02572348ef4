// Package guideline retrieves policy guideline passages that back a finding.
//
// Two retrievers score a YAML corpus independently: Lexical (BM25 over
// stopword-filtered terms) and Semantic (cosine similarity of embeddings).
// Hybrid fuses both lists into one ranking.
package guideline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrPartial marks a hybrid result built from only one retriever
var ErrPartial = errors.New("partial guideline retrieval")

// Snippet is one scored guideline passage
type Snippet struct {
	Snippet    string  `json:"snippet"`
	SourceID   string  `json:"source_id"`
	Score      float64 `json:"score"`
	MatchCount int     `json:"match_count"` // Distinct query terms found lexically
}

// Retriever returns up to topK passages for query, best first
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Snippet, error)
}

// Passage is one corpus entry
type Passage struct {
	ID     string   `yaml:"id"`
	Source string   `yaml:"source"`
	Text   string   `yaml:"text"`
	Tags   []string `yaml:"tags,omitempty"`
}

// Corpus is an ordered, ID-unique passage set
type Corpus struct {
	Name     string    `yaml:"name"`
	Passages []Passage `yaml:"passages"`
}

// LoadCorpus reads a YAML guideline corpus
func LoadCorpus(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guideline corpus: %w", err)
	}
	corpus, err := ParseCorpus(data)
	if err != nil {
		return nil, fmt.Errorf("guideline corpus %s: %w", path, err)
	}
	return corpus, nil
}

// ParseCorpus decodes and validates a YAML corpus
func ParseCorpus(data []byte) (*Corpus, error) {
	var corpus Corpus
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	seen := make(map[string]bool, len(corpus.Passages))
	kept := corpus.Passages[:0]
	for i, p := range corpus.Passages {
		p.ID = strings.TrimSpace(p.ID)
		p.Text = strings.TrimSpace(p.Text)
		if p.ID == "" {
			return nil, fmt.Errorf("passage %d: missing id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("passage %d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.Text == "" {
			continue
		}
		kept = append(kept, p)
	}
	corpus.Passages = kept
	return &corpus, nil
}

// Len returns the number of passages
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Passages)
}

// rank sorts snippets by score desc, match count desc, source asc and cuts to topK
func rank(snippets []Snippet, topK int) []Snippet {
	sort.SliceStable(snippets, func(i, j int) bool {
		a, b := snippets[i], snippets[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.MatchCount != b.MatchCount {
			return a.MatchCount > b.MatchCount
		}
		return a.SourceID < b.SourceID
	})
	if topK > 0 && len(snippets) > topK {
		snippets = snippets[:topK]
	}
	return snippets
}
