package model

// FindingSource identifies which evaluator produced a finding
type FindingSource string

const (
	SourceRuleBased FindingSource = "rule_based" // Catalog rule matched through the index
	SourceFallback  FindingSource = "fallback"   // Deterministic trigger node
	SourceNarrative FindingSource = "narrative"  // Narrative-generation collaborator
)

// Finding is a single compliance risk detected in a document
type Finding struct {
	Source          FindingSource `json:"source"`
	ReferenceID     string        `json:"reference_id"` // Rule URI or trigger node ID
	Title           string        `json:"title,omitempty"`
	Severity        Severity      `json:"severity"`
	Evidence        []string      `json:"evidence"`
	Suggestion      string        `json:"suggestion,omitempty"`
	Confidence      float64       `json:"confidence"`
	FinancialImpact int           `json:"financial_impact,omitempty"`
}

// Entity is a span produced by an entity-extraction collaborator.
// Only Text takes part in rule retrieval.
type Entity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// GuidelineSnippet is a fused guideline passage attached to a finding
type GuidelineSnippet struct {
	ReferenceID string  `json:"reference_id"`
	Snippet     string  `json:"snippet"`
	SourceID    string  `json:"source_id"`
	Score       float64 `json:"score"`
}
