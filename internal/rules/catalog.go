// Package rules loads declarative compliance-rule catalogs and serves them
// as immutable snapshots.
package rules

import (
	"github.com/ppiankov/chartrisk/internal/model"
)

// Catalog is a validated, immutable set of rules loaded from one source.
// A catalog is also called a rubric.
type Catalog struct {
	Name        string
	Version     string
	Description string
	Source      string

	// Rejected lists rules that failed validation and were skipped.
	Rejected []Rejection

	rules []model.ComplianceRule
	byURI map[string]int
}

// Rejection records a single rule dropped during load.
type Rejection struct {
	Position int    `json:"position"` // Zero-based position in the source
	URI      string `json:"uri,omitempty"`
	Reason   string `json:"reason"`
}

// Empty returns a catalog with no rules.
func Empty(name string) *Catalog {
	return &Catalog{Name: name, byURI: map[string]int{}}
}

// Rules returns all rules in source order.
func (c *Catalog) Rules() []model.ComplianceRule {
	out := make([]model.ComplianceRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// RulesByDiscipline returns the rules scoped to d, in source order.
func (c *Catalog) RulesByDiscipline(d model.Discipline) []model.ComplianceRule {
	var out []model.ComplianceRule
	for _, r := range c.rules {
		if r.Discipline == d {
			out = append(out, r)
		}
	}
	return out
}

// Rule looks up a rule by URI.
func (c *Catalog) Rule(uri string) (model.ComplianceRule, bool) {
	i, ok := c.byURI[uri]
	if !ok {
		return model.ComplianceRule{}, false
	}
	return c.rules[i], true
}

// Len returns the number of accepted rules.
func (c *Catalog) Len() int {
	return len(c.rules)
}
