// Package fallback is a deterministic backstop risk detector that needs no
// external services. It evaluates a fixed catalog of declarative trigger
// predicates against the whole document.
package fallback

import (
	"errors"
	"fmt"

	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/textutil"
)

// Confidence assigned to fallback findings.
const Confidence = 0.7

// Engine evaluates trigger nodes. It holds no mutable state.
type Engine struct {
	nodes []TriggerNode
}

// New returns an engine over the built-in catalog.
func New() *Engine {
	e, err := NewWithCatalog(DefaultCatalog())
	if err != nil {
		panic(fmt.Sprintf("fallback: built-in catalog invalid: %v", err))
	}
	return e
}

// NewWithCatalog returns an engine over nodes after validating them.
func NewWithCatalog(nodes []TriggerNode) (*Engine, error) {
	e := &Engine{nodes: append([]TriggerNode(nil), nodes...)}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate statically checks the catalog.
func (e *Engine) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(e.nodes))
	for i, n := range e.nodes {
		switch {
		case n.ID == "":
			errs = append(errs, fmt.Errorf("node %d: empty id", i))
		case seen[n.ID]:
			errs = append(errs, fmt.Errorf("node %d: duplicate id %q", i, n.ID))
		}
		seen[n.ID] = true

		if n.Name == "" {
			errs = append(errs, fmt.Errorf("node %q: empty name", n.ID))
		}
		if n.RiskLevel != model.SeverityHigh && n.RiskLevel != model.SeverityModerate {
			errs = append(errs, fmt.Errorf("node %q: risk level must be High or Moderate, got %s", n.ID, n.RiskLevel))
		}
		if err := n.Predicate.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", n.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Catalog returns the nodes in evaluation order.
func (e *Engine) Catalog() []TriggerNode {
	return append([]TriggerNode(nil), e.nodes...)
}

// AnalyzeText evaluates every node against text and returns one finding per
// triggered node, in catalog order.
func (e *Engine) AnalyzeText(text string) []model.Finding {
	folded := textutil.Fold(text)
	if folded == "" {
		return nil
	}

	var sentences []string
	var findings []model.Finding
	for _, n := range e.nodes {
		hit, phrases := n.Predicate.Eval(folded)
		if !hit {
			continue
		}
		if len(phrases) > 0 && sentences == nil {
			sentences = textutil.Sentences(text)
		}
		findings = append(findings, model.Finding{
			Source:      model.SourceFallback,
			ReferenceID: n.ID,
			Title:       n.Name,
			Severity:    n.RiskLevel,
			Evidence:    evidence(sentences, phrases),
			Suggestion:  n.ImprovementPrompt,
			Confidence:  Confidence,
		})
	}
	return findings
}

// evidence returns the sentences mentioning any of phrases.
func evidence(sentences, phrases []string) []string {
	if len(phrases) == 0 {
		return nil
	}
	var out []string
	for _, s := range sentences {
		folded := textutil.Fold(s)
		if _, ok := textutil.ContainsAny(folded, phrases); ok {
			out = append(out, s)
		}
	}
	return textutil.Dedupe(out)
}
