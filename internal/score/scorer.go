package score

import (
	"fmt"
	"sort"

	"github.com/ppiankov/chartrisk/internal/model"
)

// Weights are the per-severity penalties subtracted from 100
type Weights struct {
	High     int
	Moderate int
	Low      int
}

// DefaultWeights returns High 20, Moderate 10, Low 3
func DefaultWeights() Weights {
	return Weights{High: 20, Moderate: 10, Low: 3}
}

// Validate rejects negative weights, which would break monotonicity
func (w Weights) Validate() error {
	if w.High < 0 || w.Moderate < 0 || w.Low < 0 {
		return fmt.Errorf("severity weights must be non-negative: %+v", w)
	}
	return nil
}

func (w Weights) weight(s model.Severity) int {
	switch s {
	case model.SeverityHigh:
		return w.High
	case model.SeverityModerate:
		return w.Moderate
	case model.SeverityLow:
		return w.Low
	default:
		return 0
	}
}

// Scorer calculates the compliance score and generates signals
type Scorer struct {
	weights Weights
}

// NewScorer creates a new scorer
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Weights returns the configured weights
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Calculate scores merged findings and explains the result with signals.
// Index is 100 minus the summed severity weights, clamped to [0, 100].
func (s *Scorer) Calculate(findings []model.Finding, degraded bool) model.Score {
	var signals []model.Signal

	// 1. Severity penalty
	penalty, penaltySignal := s.calculatePenalty(findings)
	signals = append(signals, penaltySignal)

	// 2. Financial exposure (informational, no score effect)
	if sig, ok := s.calculateFinancialRisk(findings); ok {
		signals = append(signals, sig)
	}

	// 3. Which evaluators contributed
	sources, coverageSignal := s.calculateCoverage(findings)
	signals = append(signals, coverageSignal)

	// 4. Degraded collaborators
	if degraded {
		signals = append(signals, model.Signal{
			Type:        model.SignalDegraded,
			Severity:    model.SignalWarning,
			Description: "One or more optional collaborators were unavailable; result relies on deterministic sources",
		})
	}

	index := 100 - penalty
	if index < 0 {
		index = 0
	}

	return model.Score{
		Index:      index,
		Confidence: s.determineConfidence(len(findings), sources, degraded),
		Signals:    signals,
	}
}

// calculatePenalty sums severity weights
func (s *Scorer) calculatePenalty(findings []model.Finding) (int, model.Signal) {
	counts := map[model.Severity]int{}
	penalty := 0
	for _, f := range findings {
		counts[f.Severity]++
		penalty += s.weights.weight(f.Severity)
	}

	severity := model.SignalInfo
	if counts[model.SeverityHigh] > 0 {
		severity = model.SignalCritical
	} else if counts[model.SeverityModerate] > 0 {
		severity = model.SignalWarning
	}

	return penalty, model.Signal{
		Type:     model.SignalSeverityPenalty,
		Severity: severity,
		Description: fmt.Sprintf("%d high, %d moderate, %d low finding(s): -%d",
			counts[model.SeverityHigh], counts[model.SeverityModerate], counts[model.SeverityLow], penalty),
		Data: map[string]interface{}{
			"high":     counts[model.SeverityHigh],
			"moderate": counts[model.SeverityModerate],
			"low":      counts[model.SeverityLow],
			"penalty":  penalty,
			"formula":  fmt.Sprintf("max(0, 100 - (high*%d + moderate*%d + low*%d))", s.weights.High, s.weights.Moderate, s.weights.Low),
		},
	}
}

// calculateFinancialRisk totals the financial impact carried by rule findings
func (s *Scorer) calculateFinancialRisk(findings []model.Finding) (model.Signal, bool) {
	total := 0
	rules := 0
	for _, f := range findings {
		if f.FinancialImpact > 0 {
			total += f.FinancialImpact
			rules++
		}
	}
	if rules == 0 {
		return model.Signal{}, false
	}

	severity := model.SignalInfo
	if total >= 100 {
		severity = model.SignalWarning
	}

	return model.Signal{
		Type:        model.SignalFinancialRisk,
		Severity:    severity,
		Description: fmt.Sprintf("Estimated financial impact: %d across %d finding(s)", total, rules),
		Data: map[string]interface{}{
			"total":    total,
			"findings": rules,
		},
	}, true
}

// calculateCoverage reports finding counts per source
func (s *Scorer) calculateCoverage(findings []model.Finding) (int, model.Signal) {
	bySource := map[string]int{}
	for _, f := range findings {
		bySource[string(f.Source)]++
	}

	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	sort.Strings(names)

	data := map[string]interface{}{}
	for _, name := range names {
		data[name] = bySource[name]
	}

	return len(names), model.Signal{
		Type:        model.SignalSourceCoverage,
		Severity:    model.SignalInfo,
		Description: fmt.Sprintf("Findings from %d source(s): %v", len(names), names),
		Data:        data,
	}
}

// determineConfidence grades how much the score can be trusted
func (s *Scorer) determineConfidence(findingCount, sources int, degraded bool) string {
	if degraded {
		return "low"
	}
	if findingCount == 0 || sources >= 2 {
		return "high"
	}
	return "medium"
}
