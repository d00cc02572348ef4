package model

import (
	"fmt"
	"strings"
)

// Severity is the closed risk scale shared by rules, trigger nodes and findings
type Severity int

const (
	SeverityUnknown  Severity = 0
	SeverityLow      Severity = 1
	SeverityModerate Severity = 2
	SeverityHigh     Severity = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityModerate:
		return "Moderate"
	case SeverityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is a member of the closed enum
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityHigh
}

// ParseSeverity parses a severity name case-insensitively.
// "Medium" is accepted as an alias of Moderate.
func ParseSeverity(raw string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return SeverityLow, nil
	case "moderate", "medium":
		return SeverityModerate, nil
	case "high":
		return SeverityHigh, nil
	default:
		return SeverityUnknown, fmt.Errorf("invalid severity %q (expected Low, Moderate or High)", raw)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Discipline is the clinical specialty a rule or document belongs to
type Discipline string

const (
	DisciplinePT  Discipline = "PT"  // Physical therapy
	DisciplineOT  Discipline = "OT"  // Occupational therapy
	DisciplineSLP Discipline = "SLP" // Speech-language pathology
)

// ParseDiscipline parses a discipline name case-insensitively
func ParseDiscipline(raw string) (Discipline, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PT":
		return DisciplinePT, nil
	case "OT":
		return DisciplineOT, nil
	case "SLP", "ST":
		return DisciplineSLP, nil
	default:
		return "", fmt.Errorf("invalid discipline %q (expected PT, OT or SLP)", raw)
	}
}

// ComplianceRule is one validated entry of the rule catalog.
// Rules are immutable once loaded; a changed source produces a new catalog.
type ComplianceRule struct {
	URI              string     `json:"uri"`
	Severity         Severity   `json:"severity"`
	StrictSeverity   Severity   `json:"strict_severity"`
	IssueTitle       string     `json:"issue_title"`
	IssueDetail      string     `json:"issue_detail"`
	IssueCategory    string     `json:"issue_category"`
	Discipline       Discipline `json:"discipline"`
	FinancialImpact  int        `json:"financial_impact"`
	PositiveKeywords []string   `json:"positive_keywords,omitempty"`
	NegativeKeywords []string   `json:"negative_keywords,omitempty"`
}

// EffectiveSeverity returns the severity that applies under the given review mode
func (r ComplianceRule) EffectiveSeverity(strict bool) Severity {
	if strict && r.StrictSeverity.Valid() {
		return r.StrictSeverity
	}
	return r.Severity
}
