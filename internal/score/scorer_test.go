package score

import (
	"testing"

	"github.com/ppiankov/chartrisk/internal/model"
)

func finding(ref string, sev model.Severity, src model.FindingSource) model.Finding {
	return model.Finding{Source: src, ReferenceID: ref, Severity: sev, Confidence: 0.7}
}

func TestScorer_Calculate_NoFindings(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	result := scorer.Calculate(nil, false)

	if result.Index != 100 {
		t.Errorf("Expected index 100, got %d", result.Index)
	}
	if result.Confidence != "high" {
		t.Errorf("Expected high confidence, got %s", result.Confidence)
	}
	if len(result.Signals) == 0 {
		t.Error("Expected at least one signal")
	}
}

func TestScorer_Calculate_Weights(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	findings := []model.Finding{
		finding("a", model.SeverityHigh, model.SourceFallback),
		finding("b", model.SeverityModerate, model.SourceFallback),
		finding("c", model.SeverityLow, model.SourceRuleBased),
	}

	result := scorer.Calculate(findings, false)

	// 100 - (20 + 10 + 3)
	if result.Index != 67 {
		t.Errorf("Expected index 67, got %d", result.Index)
	}

	var penalty *model.Signal
	for i := range result.Signals {
		if result.Signals[i].Type == model.SignalSeverityPenalty {
			penalty = &result.Signals[i]
		}
	}
	if penalty == nil {
		t.Fatal("Expected severity penalty signal")
	}
	if penalty.Severity != model.SignalCritical {
		t.Errorf("Expected critical penalty signal, got %s", penalty.Severity)
	}
	if penalty.Data["penalty"] != 33 {
		t.Errorf("Expected penalty 33, got %v", penalty.Data["penalty"])
	}
}

func TestScorer_Calculate_ClampsAtZero(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	var findings []model.Finding
	for i := 0; i < 8; i++ {
		findings = append(findings, finding(string(rune('a'+i)), model.SeverityHigh, model.SourceRuleBased))
	}

	result := scorer.Calculate(findings, false)
	if result.Index != 0 {
		t.Errorf("Expected index 0, got %d", result.Index)
	}
}

func TestScorer_Calculate_Monotone(t *testing.T) {
	scorer := NewScorer(Weights{High: 7, Moderate: 2, Low: 0})

	var findings []model.Finding
	prev := scorer.Calculate(findings, false).Index
	for i := 0; i < 30; i++ {
		sev := model.SeverityModerate
		if i%3 == 0 {
			sev = model.SeverityHigh
		}
		findings = append(findings, finding(string(rune('a'+i)), sev, model.SourceFallback))
		cur := scorer.Calculate(findings, false).Index
		if cur > prev {
			t.Fatalf("score increased from %d to %d after adding finding %d", prev, cur, i)
		}
		prev = cur
	}
}

func TestScorer_Calculate_Degraded(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	result := scorer.Calculate([]model.Finding{finding("a", model.SeverityModerate, model.SourceFallback)}, true)

	if result.Confidence != "low" {
		t.Errorf("Expected low confidence when degraded, got %s", result.Confidence)
	}

	found := false
	for _, s := range result.Signals {
		if s.Type == model.SignalDegraded {
			found = true
		}
	}
	if !found {
		t.Error("Expected degraded signal")
	}
}

func TestScorer_Calculate_FinancialRisk(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	a := finding("a", model.SeverityModerate, model.SourceRuleBased)
	a.FinancialImpact = 60
	b := finding("b", model.SeverityLow, model.SourceRuleBased)
	b.FinancialImpact = 45

	result := scorer.Calculate([]model.Finding{a, b}, false)

	for _, s := range result.Signals {
		if s.Type == model.SignalFinancialRisk {
			if s.Data["total"] != 105 {
				t.Errorf("Expected total 105, got %v", s.Data["total"])
			}
			if s.Severity != model.SignalWarning {
				t.Errorf("Expected warning severity, got %s", s.Severity)
			}
			return
		}
	}
	t.Error("Expected financial risk signal")
}

func TestScorer_Confidence(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	single := scorer.Calculate([]model.Finding{finding("a", model.SeverityLow, model.SourceFallback)}, false)
	if single.Confidence != "medium" {
		t.Errorf("Expected medium confidence for one source, got %s", single.Confidence)
	}

	mixed := scorer.Calculate([]model.Finding{
		finding("a", model.SeverityLow, model.SourceFallback),
		finding("b", model.SeverityLow, model.SourceRuleBased),
	}, false)
	if mixed.Confidence != "high" {
		t.Errorf("Expected high confidence for two sources, got %s", mixed.Confidence)
	}
}

func TestWeights_Validate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
	if err := (Weights{High: -1}).Validate(); err == nil {
		t.Error("Expected error for negative weight")
	}
}
