// Package index maps entity text to candidate compliance rules by token overlap.
package index

import (
	"sort"

	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/textutil"
)

// Index is an inverted token index over a rule set.
// It is read-only after Build and safe for concurrent use.
type Index struct {
	rules    map[string]model.ComplianceRule
	postings map[string][]string // token -> rule URIs in rule order
}

// Match is a candidate rule and the distinct query tokens that hit it.
type Match struct {
	Rule   model.ComplianceRule
	Tokens []string // Sorted
}

// Build indexes the title, detail and positive keywords of every rule.
func Build(rules []model.ComplianceRule) *Index {
	idx := &Index{
		rules:    make(map[string]model.ComplianceRule, len(rules)),
		postings: make(map[string][]string),
	}
	for _, r := range rules {
		if _, dup := idx.rules[r.URI]; dup {
			continue
		}
		idx.rules[r.URI] = r

		seen := make(map[string]bool)
		for _, field := range indexedFields(r) {
			for _, tok := range textutil.Terms(field) {
				if seen[tok] {
					continue
				}
				seen[tok] = true
				idx.postings[tok] = append(idx.postings[tok], r.URI)
			}
		}
	}
	return idx
}

func indexedFields(r model.ComplianceRule) []string {
	fields := make([]string, 0, 2+len(r.PositiveKeywords))
	fields = append(fields, r.IssueTitle, r.IssueDetail)
	return append(fields, r.PositiveKeywords...)
}

// Len returns the number of indexed rules.
func (idx *Index) Len() int {
	return len(idx.rules)
}

// Vocabulary returns the number of distinct indexed tokens.
func (idx *Index) Vocabulary() int {
	return len(idx.postings)
}

// SearchMatches resolves entities to candidate rules, ordered by number of
// distinct matched tokens (descending) and then rule URI (ascending).
func (idx *Index) SearchMatches(entities []string) []Match {
	if len(entities) == 0 {
		return nil
	}

	hits := make(map[string]map[string]bool)
	for _, entity := range entities {
		for _, tok := range textutil.Terms(entity) {
			for _, uri := range idx.postings[tok] {
				if hits[uri] == nil {
					hits[uri] = make(map[string]bool)
				}
				hits[uri][tok] = true
			}
		}
	}

	matches := make([]Match, 0, len(hits))
	for uri, toks := range hits {
		tokens := make([]string, 0, len(toks))
		for t := range toks {
			tokens = append(tokens, t)
		}
		sort.Strings(tokens)
		matches = append(matches, Match{Rule: idx.rules[uri], Tokens: tokens})
	}

	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i].Tokens) != len(matches[j].Tokens) {
			return len(matches[i].Tokens) > len(matches[j].Tokens)
		}
		return matches[i].Rule.URI < matches[j].Rule.URI
	})
	return matches
}

// Search is SearchMatches without the match detail.
func (idx *Index) Search(entities []string) []model.ComplianceRule {
	matches := idx.SearchMatches(entities)
	if len(matches) == 0 {
		return nil
	}
	out := make([]model.ComplianceRule, len(matches))
	for i, m := range matches {
		out[i] = m.Rule
	}
	return out
}
