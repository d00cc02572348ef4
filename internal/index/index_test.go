package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chartrisk/internal/model"
)

func testRules() []model.ComplianceRule {
	return []model.ComplianceRule{
		{
			URI:              "urn:r:gait",
			IssueTitle:       "Gait training without distance",
			IssueDetail:      "Ambulation lacks measured distance.",
			Discipline:       model.DisciplinePT,
			PositiveKeywords: []string{"gait", "walking"},
		},
		{
			URI:              "urn:r:balance",
			IssueTitle:       "Balance without standardized test",
			IssueDetail:      "Balance deficit lacks a Berg score.",
			Discipline:       model.DisciplinePT,
			PositiveKeywords: []string{"balance"},
		},
		{
			URI:              "urn:r:adl",
			IssueTitle:       "ADL training without baseline",
			IssueDetail:      "Dressing training lacks a baseline.",
			Discipline:       model.DisciplineOT,
			PositiveKeywords: []string{"dressing", "adl"},
		},
	}
}

func TestSearch_Empty(t *testing.T) {
	idx := Build(testRules())
	assert.Empty(t, idx.Search(nil))
	assert.Empty(t, idx.Search([]string{}))
	assert.Empty(t, idx.Search([]string{"unrelated words"}))
}

func TestSearch_OrdersByMatchCountThenURI(t *testing.T) {
	idx := Build(testRules())

	// "training" hits gait and adl; "gait" and "walking" only hit gait.
	matches := idx.SearchMatches([]string{"Gait training", "walking"})
	require.Len(t, matches, 2)
	assert.Equal(t, "urn:r:gait", matches[0].Rule.URI)
	assert.Equal(t, []string{"gait", "training", "walking"}, matches[0].Tokens)
	assert.Equal(t, "urn:r:adl", matches[1].Rule.URI)
	assert.Equal(t, []string{"training"}, matches[1].Tokens)

	// One token each: ties break by URI.
	rules := idx.Search([]string{"lacks"})
	require.Len(t, rules, 3)
	assert.Equal(t, "urn:r:adl", rules[0].URI)
	assert.Equal(t, "urn:r:balance", rules[1].URI)
	assert.Equal(t, "urn:r:gait", rules[2].URI)
}

func TestSearch_CaseFoldedAndStopwordsIgnored(t *testing.T) {
	idx := Build(testRules())
	assert.Empty(t, idx.Search([]string{"the", "without", "a"}))

	rules := idx.Search([]string{"BALANCE"})
	require.Len(t, rules, 1)
	assert.Equal(t, "urn:r:balance", rules[0].URI)
}

func TestSearch_DistinctTokens(t *testing.T) {
	idx := Build(testRules())
	matches := idx.SearchMatches([]string{"balance", "Balance", "balance balance"})
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"balance"}, matches[0].Tokens)
}

func TestSearch_Deterministic(t *testing.T) {
	idx := Build(testRules())
	entities := []string{"training", "lacks", "distance", "dressing"}
	first := idx.SearchMatches(entities)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, idx.SearchMatches(entities))
	}
	assert.Equal(t, first, Build(testRules()).SearchMatches(entities))
}

func TestBuild_Stats(t *testing.T) {
	idx := Build(testRules())
	assert.Equal(t, 3, idx.Len())
	assert.Positive(t, idx.Vocabulary())
}
