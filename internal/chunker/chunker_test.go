package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chartrisk/internal/model"
)

func assertCovers(t *testing.T, text string, chunks []model.Chunk) {
	t.Helper()
	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
	for i, c := range chunks {
		assert.Equal(t, text[c.StartOffset:c.EndOffset], c.Text, "chunk %d text", i)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, len(chunks), c.TotalChunks)
		if i > 0 {
			assert.LessOrEqual(t, c.StartOffset, chunks[i-1].EndOffset, "gap before chunk %d", i)
			assert.Greater(t, c.EndOffset, chunks[i-1].EndOffset, "chunk %d does not advance", i)
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero size", Config{ChunkSize: 0, ChunkOverlap: 0}},
		{"negative overlap", Config{ChunkSize: 100, ChunkOverlap: -1}},
		{"overlap equals size", Config{ChunkSize: 100, ChunkOverlap: 100}},
		{"overlap exceeds size", Config{ChunkSize: 100, ChunkOverlap: 150}},
		{"unknown unit", Config{ChunkSize: 100, ChunkOverlap: 10, Unit: "words"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			assert.Nil(t, c)
			var cfgErr *ChunkConfigError
			require.True(t, errors.As(err, &cfgErr), "want *ChunkConfigError, got %v", err)
			assert.Equal(t, tt.cfg.ChunkSize, cfgErr.ChunkSize)
		})
	}
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() { MustNew(Config{ChunkSize: 10, ChunkOverlap: 10}) })
}

func TestSplit_Empty(t *testing.T) {
	c := MustNew(DefaultConfig())
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.SplitBySections("", nil))
}

func TestSplit_FitsInOneChunk(t *testing.T) {
	c := MustNew(DefaultConfig())
	text := "Patient tolerated treatment well."
	chunks := c.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 1, chunks[0].TotalChunks)
	assert.Equal(t, len([]rune(text)), chunks[0].EstimatedSize)
}

func TestSplit_OverlapScenario(t *testing.T) {
	c := MustNew(Config{ChunkSize: 1000, ChunkOverlap: 100})
	text := strings.Repeat("a", 4000)

	chunks := c.Split(text)
	assertCovers(t, text, chunks)

	want := [][2]int{{0, 1000}, {900, 1900}, {1800, 2800}, {2700, 3700}, {3600, 4000}}
	require.Len(t, chunks, len(want))
	for i, w := range want {
		assert.Equal(t, w[0], chunks[i].StartOffset, "chunk %d start", i)
		assert.Equal(t, w[1], chunks[i].EndOffset, "chunk %d end", i)
		assert.LessOrEqual(t, chunks[i].EstimatedSize, 1000)
	}
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, 100, chunks[i-1].EndOffset-chunks[i].StartOffset)
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	c := MustNew(Config{ChunkSize: 60, ChunkOverlap: 0})
	p1 := strings.Repeat("x", 40) + "\n\n"
	p2 := strings.Repeat("y", 40) + "\n\n"
	p3 := strings.Repeat("z", 40)
	text := p1 + p2 + p3

	chunks := c.Split(text)
	assertCovers(t, text, chunks)
	require.Len(t, chunks, 3)
	assert.Equal(t, p1, chunks[0].Text)
	assert.Equal(t, p2, chunks[1].Text)
	assert.Equal(t, p3, chunks[2].Text)
}

func TestSplit_BoundedSize(t *testing.T) {
	sentence := "The patient performed gait training with moderate assistance. "
	text := strings.Repeat(sentence, 80) + "\n\n" + strings.Repeat("Ther ex x 3 sets! ", 50)

	for _, cfg := range []Config{
		{ChunkSize: 200, ChunkOverlap: 20},
		{ChunkSize: 57, ChunkOverlap: 11},
		{ChunkSize: 50, ChunkOverlap: 10, Unit: UnitTokens},
	} {
		c := MustNew(cfg)
		chunks := c.Split(text)
		assertCovers(t, text, chunks)
		for _, ch := range chunks {
			assert.LessOrEqual(t, c.Measure(ch.Text), cfg.ChunkSize)
			assert.Equal(t, c.Measure(ch.Text), ch.EstimatedSize)
		}
	}
}

func TestSplit_MultibyteRunes(t *testing.T) {
	c := MustNew(Config{ChunkSize: 10, ChunkOverlap: 3})
	text := strings.Repeat("é", 35)
	chunks := c.Split(text)
	assertCovers(t, text, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, CountChars(ch.Text), 10)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c := MustNew(Config{ChunkSize: 80, ChunkOverlap: 15})
	text := strings.Repeat("Pain 4/10 reported. Plan: continue POC.\n", 20)
	assert.Equal(t, c.Split(text), c.Split(text))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func TestDetectSections(t *testing.T) {
	text := "Patient: J. Doe\nDOS: 01/02\nSubjective: reports pain\nObjective:\nROM WNL\n## Plan\ncontinue\nPlans change often\n"
	sections := DetectSections(text, nil)

	require.Len(t, sections, 4)
	labels := []string{PreambleLabel, "Subjective", "Objective", "Plan"}
	for i, s := range sections {
		assert.Equal(t, labels[i], s.Label)
		assert.Equal(t, i, s.Index)
	}
	assert.Equal(t, 0, sections[0].Start)
	assert.Equal(t, len(text), sections[3].End)
	assert.Contains(t, text[sections[3].Start:sections[3].End], "Plans change often")
}

func TestDetectSections_CaseInsensitive(t *testing.T) {
	sections := DetectSections("ASSESSMENT - improving\nplan: d/c", []string{"Assessment", "Plan"})
	require.Len(t, sections, 2)
	assert.Equal(t, "Assessment", sections[0].Label)
	assert.Equal(t, "Plan", sections[1].Label)
}

func TestDetectSections_NoHeaders(t *testing.T) {
	sections := DetectSections("free text note", nil)
	require.Len(t, sections, 1)
	assert.Equal(t, FullDocumentLabel, sections[0].Label)
}

func TestDetectSections_WhitespacePreambleMerged(t *testing.T) {
	sections := DetectSections("\n  \nGoals: walk 100ft", nil)
	require.Len(t, sections, 1)
	assert.Equal(t, "Goals", sections[0].Label)
	assert.Equal(t, 0, sections[0].Start)
}

func TestSplitBySections(t *testing.T) {
	c := MustNew(Config{ChunkSize: 40, ChunkOverlap: 5})
	text := "Subjective: " + strings.Repeat("reports pain ", 8) + "\nAssessment: good progress\nPlan: continue"

	chunks := c.SplitBySections(text, nil)
	assertCovers(t, text, chunks)

	seen := map[string]bool{}
	for _, ch := range chunks {
		seen[ch.SectionLabel] = true
		assert.LessOrEqual(t, ch.EstimatedSize, 40)
	}
	assert.True(t, seen["Subjective"])
	assert.True(t, seen["Assessment"])
	assert.True(t, seen["Plan"])

	last := chunks[len(chunks)-1]
	assert.Equal(t, "Plan", last.SectionLabel)
	assert.Equal(t, 2, last.SectionIndex)
}
