package model

import "time"

// AnalysisResult is the complete output of one analysis request.
// Ownership passes to the caller once returned.
type AnalysisResult struct {
	AnalysisID      string     `json:"analysis_id"`
	DocumentType    string     `json:"document_type"`
	ComplianceScore int        `json:"compliance_score"`
	Findings        []Finding  `json:"findings"`
	ChunkCount      int        `json:"chunk_count"`
	Degraded        bool       `json:"degraded"`
	Empty           bool       `json:"empty,omitempty"` // Empty or non-text input

	Status     PipelineState `json:"status"`
	Mode       AnalysisMode  `json:"mode"`
	Discipline Discipline    `json:"discipline,omitempty"`
	Rubric     string        `json:"rubric,omitempty"`
	Strict     bool          `json:"strict,omitempty"`
	Stages     []StageRecord `json:"stages"`

	Score      Score              `json:"score"`
	Guidelines []GuidelineSnippet `json:"guidelines,omitempty"`
	Narrative  *Narrative         `json:"narrative,omitempty"` // Never affects the score
	Warnings   []string           `json:"warnings,omitempty"`

	AnalyzedAt time.Time `json:"analyzed_at"`
}

// AnalysisMode selects which optional collaborators take part
type AnalysisMode string

const (
	ModeRubric AnalysisMode = "rubric" // Catalog rules and fallback triggers only
	ModeHybrid AnalysisMode = "hybrid" // Adds guideline retrieval
	ModeAI     AnalysisMode = "ai"     // Adds guideline retrieval and narrative generation
)

// Valid reports whether m is a known mode
func (m AnalysisMode) Valid() bool {
	switch m {
	case ModeRubric, ModeHybrid, ModeAI:
		return true
	}
	return false
}

// PipelineState is a stage of the analysis state machine
type PipelineState string

const (
	StatePending             PipelineState = "pending"
	StateChunking            PipelineState = "chunking"
	StateEntityExtraction    PipelineState = "entity_extraction"
	StateRuleRetrieval       PipelineState = "rule_retrieval"
	StateFallbackEvaluation  PipelineState = "fallback_evaluation"
	StateGuidelineRetrieval  PipelineState = "guideline_retrieval"
	StateNarrativeGeneration PipelineState = "narrative_generation"
	StateMerging             PipelineState = "merging"
	StateCompleted           PipelineState = "completed"
	StateFailed              PipelineState = "failed"
	StateCancelled           PipelineState = "cancelled"
)

// Terminal reports whether no further transitions are possible
func (s PipelineState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// StageRecord is one entry of the state trace
type StageRecord struct {
	State      PipelineState `json:"state"`
	DurationMS int64         `json:"duration_ms"`
	Skipped    bool          `json:"skipped,omitempty"`
	Degraded   bool          `json:"degraded,omitempty"`
}

// Score is the transparent scoring breakdown
type Score struct {
	Index      int      `json:"index"`      // Compliance score (0-100)
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Signals    []Signal `json:"signals"`
}

// Signal explains one contribution to the score
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies a scoring signal
type SignalType string

const (
	SignalSeverityPenalty SignalType = "severity_penalty" // Weighted penalty per severity
	SignalFinancialRisk   SignalType = "financial_risk"   // Summed financial impact of rule findings
	SignalSourceCoverage  SignalType = "source_coverage"  // Which evaluators contributed
	SignalDegraded        SignalType = "degraded"         // Optional collaborators unavailable
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SignalInfo     SignalSeverity = "info"
	SignalWarning  SignalSeverity = "warning"
	SignalCritical SignalSeverity = "critical"
)

// Narrative holds optional generated prose.
// It is kept apart from findings and never changes the score.
type Narrative struct {
	Enabled  bool     `json:"enabled"`
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
