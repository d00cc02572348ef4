package rules

import "fmt"

// OntologyLoadError reports a catalog that could not be loaded cleanly.
//
// When Partial is false the source was unusable and no rules were loaded.
// When Partial is true the returned catalog is valid but some rules were
// rejected; callers should treat the result as degraded.
type OntologyLoadError struct {
	Source   string
	Partial  bool
	Rejected int
	Err      error
}

func (e *OntologyLoadError) Error() string {
	if e.Partial {
		return fmt.Sprintf("rule catalog %s loaded partially: %d rule(s) rejected", e.Source, e.Rejected)
	}
	return fmt.Sprintf("rule catalog %s: %v", e.Source, e.Err)
}

func (e *OntologyLoadError) Unwrap() error {
	return e.Err
}
