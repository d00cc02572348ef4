package fallback

import (
	"fmt"

	"github.com/ppiankov/chartrisk/internal/textutil"
)

// Kind names a predicate shape.
type Kind string

const (
	// KeywordAbsentAny fires when none of Keywords occur.
	KeywordAbsentAny Kind = "keyword_absent_any"
	// KeywordPresentWithoutAny fires when a keyword occurs and none of Required do.
	KeywordPresentWithoutAny Kind = "keyword_present_without_any"
	// KeywordPresentWithDisqualifier fires when a keyword and a disqualifier both occur.
	KeywordPresentWithDisqualifier Kind = "keyword_present_with_disqualifier"
)

// Predicate is a declarative test over case-folded document text.
type Predicate struct {
	Kind          Kind     `json:"kind" yaml:"kind"`
	Keywords      []string `json:"keywords" yaml:"keywords"`
	Required      []string `json:"required,omitempty" yaml:"required,omitempty"`
	Disqualifiers []string `json:"disqualifiers,omitempty" yaml:"disqualifiers,omitempty"`
}

// Validate checks the predicate is well formed for its kind.
func (p Predicate) Validate() error {
	if len(p.Keywords) == 0 {
		return fmt.Errorf("%s: keywords must not be empty", p.Kind)
	}
	switch p.Kind {
	case KeywordAbsentAny:
		if len(p.Required) > 0 || len(p.Disqualifiers) > 0 {
			return fmt.Errorf("%s: takes keywords only", p.Kind)
		}
	case KeywordPresentWithoutAny:
		if len(p.Required) == 0 {
			return fmt.Errorf("%s: required must not be empty", p.Kind)
		}
	case KeywordPresentWithDisqualifier:
		if len(p.Disqualifiers) == 0 {
			return fmt.Errorf("%s: disqualifiers must not be empty", p.Kind)
		}
	default:
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	for _, list := range [][]string{p.Keywords, p.Required, p.Disqualifiers} {
		for _, kw := range list {
			if textutil.Fold(kw) == "" {
				return fmt.Errorf("%s: blank keyword", p.Kind)
			}
		}
	}
	return nil
}

// Eval tests folded text and returns the phrases that caused a match.
// Absence predicates report no phrases.
func (p Predicate) Eval(folded string) (bool, []string) {
	switch p.Kind {
	case KeywordAbsentAny:
		_, found := textutil.ContainsAny(folded, p.Keywords)
		return !found, nil

	case KeywordPresentWithoutAny:
		present := presentIn(folded, p.Keywords)
		if len(present) == 0 {
			return false, nil
		}
		if _, ok := textutil.ContainsAny(folded, p.Required); ok {
			return false, nil
		}
		return true, present

	case KeywordPresentWithDisqualifier:
		present := presentIn(folded, p.Keywords)
		if len(present) == 0 {
			return false, nil
		}
		disq := presentIn(folded, p.Disqualifiers)
		if len(disq) == 0 {
			return false, nil
		}
		return true, append(present, disq...)
	}
	return false, nil
}

func presentIn(folded string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if textutil.ContainsPhrase(folded, p) {
			out = append(out, p)
		}
	}
	return out
}
