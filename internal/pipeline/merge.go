package pipeline

import (
	"sort"

	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/textutil"
)

// mergeFindings collapses findings sharing a ReferenceID. The merged finding
// keeps the first occurrence's source and text, the highest severity, the
// largest confidence and financial impact, and the union of evidence in
// first-seen order. Output is sorted by severity (descending) then
// ReferenceID.
func mergeFindings(findings []model.Finding) []model.Finding {
	byRef := make(map[string]int, len(findings))
	merged := make([]model.Finding, 0, len(findings))

	for _, f := range findings {
		i, ok := byRef[f.ReferenceID]
		if !ok {
			f.Evidence = textutil.Dedupe(append([]string(nil), f.Evidence...))
			byRef[f.ReferenceID] = len(merged)
			merged = append(merged, f)
			continue
		}

		m := &merged[i]
		if f.Severity > m.Severity {
			m.Severity = f.Severity
		}
		if f.Confidence > m.Confidence {
			m.Confidence = f.Confidence
		}
		if f.FinancialImpact > m.FinancialImpact {
			m.FinancialImpact = f.FinancialImpact
		}
		m.Evidence = textutil.Dedupe(append(m.Evidence, f.Evidence...))
	}

	for i := range merged {
		if merged[i].Evidence == nil {
			merged[i].Evidence = []string{}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Severity != merged[j].Severity {
			return merged[i].Severity > merged[j].Severity
		}
		return merged[i].ReferenceID < merged[j].ReferenceID
	})
	return merged
}
