// Package doctype classifies clinical documents by keyword scoring.
package doctype

import "github.com/ppiankov/chartrisk/internal/textutil"

const (
	Evaluation       = "Evaluation"
	ProgressReport   = "Progress Report"
	DischargeSummary = "Discharge Summary"
	PlanOfCare       = "Plan of Care"
	DailyNote        = "Daily Note"
	Unknown          = "Unknown"
)

type profile struct {
	name       string
	indicators []string
}

// Profiles in priority order; ties go to the earlier entry.
var profiles = []profile{
	{Evaluation, []string{"initial evaluation", "evaluation", "eval", "prior level of function", "plof", "history of present illness", "hpi", "reason for referral"}},
	{ProgressReport, []string{"progress report", "progress note", "reporting period", "re-evaluation", "reevaluation", "recertification", "goal status", "goals status"}},
	{DischargeSummary, []string{"discharge summary", "discharged", "discharge", "d/c summary", "final visit", "discharge plan"}},
	{PlanOfCare, []string{"plan of care", "poc", "frequency", "duration", "certification period", "physician signature"}},
	{DailyNote, []string{"daily note", "treatment note", "visit note", "session", "today", "tx"}},
}

// Classify returns the best-scoring document type, or Unknown.
func Classify(text string) string {
	folded := textutil.Fold(text)
	best, bestScore := Unknown, 0
	for _, p := range profiles {
		score := 0
		for _, ind := range p.indicators {
			if textutil.ContainsPhrase(folded, ind) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = p.name, score
		}
	}
	return best
}

// Types lists every type Classify can return.
func Types() []string {
	out := make([]string, 0, len(profiles)+1)
	for _, p := range profiles {
		out = append(out, p.name)
	}
	return append(out, Unknown)
}
