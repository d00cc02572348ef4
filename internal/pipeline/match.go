package pipeline

import (
	"sync"

	"github.com/ppiankov/chartrisk/internal/index"
	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/ner"
	"github.com/ppiankov/chartrisk/internal/rules"
	"github.com/ppiankov/chartrisk/internal/textutil"
)

// saturationTokens is the number of matched tokens at which a rule-based
// finding reaches full confidence
const saturationTokens = 4

// catalogView is the derived, read-only state of one catalog
type catalogView struct {
	catalog *rules.Catalog
	index   *index.Index
	lexicon *ner.Lexicon
}

// viewCache rebuilds a catalog's index and lexicon only when the store
// swaps in a different catalog value.
type viewCache struct {
	mu    sync.Mutex
	views map[string]*catalogView
}

func newViewCache() *viewCache {
	return &viewCache{views: make(map[string]*catalogView)}
}

func (c *viewCache) get(cat *rules.Catalog) *catalogView {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.views[cat.Name]; ok && v.catalog == cat {
		return v
	}
	all := cat.Rules()
	v := &catalogView{
		catalog: cat,
		index:   index.Build(all),
		lexicon: ner.NewLexicon(all),
	}
	c.views[cat.Name] = v
	return v
}

// ruleFindings turns the entities of one chunk into rule-based findings.
// Candidates come from the index; rules for other disciplines and rules with
// a negative keyword anywhere in the document are dropped. folded is the
// case-folded document text.
func ruleFindings(idx *index.Index, folded string, entities []model.Entity, discipline model.Discipline, strict bool) []model.Finding {
	texts := ner.Texts(entities)
	matches := idx.SearchMatches(texts)
	if len(matches) == 0 {
		return nil
	}

	var findings []model.Finding
	for _, m := range matches {
		r := m.Rule
		if discipline != "" && r.Discipline != discipline {
			continue
		}
		if _, negated := textutil.ContainsAny(folded, r.NegativeKeywords); negated {
			continue
		}

		findings = append(findings, model.Finding{
			Source:          model.SourceRuleBased,
			ReferenceID:     r.URI,
			Title:           r.IssueTitle,
			Severity:        r.EffectiveSeverity(strict),
			Evidence:        matchedEntities(texts, m.Tokens),
			Suggestion:      r.IssueDetail,
			Confidence:      ruleConfidence(len(m.Tokens)),
			FinancialImpact: r.FinancialImpact,
		})
	}
	return findings
}

// matchedEntities returns the entity texts sharing a term with tokens
func matchedEntities(texts, tokens []string) []string {
	want := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		want[t] = true
	}
	var out []string
	for _, text := range texts {
		for _, term := range textutil.Terms(text) {
			if want[term] {
				out = append(out, text)
				break
			}
		}
	}
	return textutil.Dedupe(out)
}

func ruleConfidence(matched int) float64 {
	if matched > saturationTokens {
		matched = saturationTokens
	}
	return 0.5 + 0.5*float64(matched)/saturationTokens
}
