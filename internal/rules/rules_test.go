package rules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chartrisk/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_YAML(t *testing.T) {
	cat, err := Load("testdata/valid.yaml", quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "test-rubric", cat.Name)
	require.Equal(t, 2, cat.Len())

	rules := cat.Rules()
	assert.Equal(t, "urn:test:gait", rules[0].URI)
	assert.Equal(t, "urn:test:adl", rules[1].URI)

	gait := rules[0]
	assert.Equal(t, model.SeverityModerate, gait.Severity)
	assert.Equal(t, model.SeverityHigh, gait.StrictSeverity)
	assert.Equal(t, model.DisciplinePT, gait.Discipline)
	assert.Equal(t, 45, gait.FinancialImpact)
	assert.Equal(t, []string{"walking", "gait", "ambulation"}, gait.PositiveKeywords)
	assert.Equal(t, []string{"feet"}, gait.NegativeKeywords)

	assert.Equal(t, 0, rules[1].FinancialImpact)
}

func TestLoad_TOMLAndJSON(t *testing.T) {
	toml, err := Load("testdata/valid.toml", quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "toml-rubric", toml.Name)
	rule, ok := toml.Rule("urn:test:swallow")
	require.True(t, ok)
	assert.Equal(t, model.DisciplineSLP, rule.Discipline)
	assert.Equal(t, []string{"dysphagia", "swallow"}, rule.PositiveKeywords)

	js, err := Load("testdata/valid.json", quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "valid", js.Name, "name falls back to the file stem")
	assert.Equal(t, 1, js.Len())
}

func TestLoad_PartialRejectsIndividualRules(t *testing.T) {
	cat, err := Load("testdata/partial.yaml", quietLogger())
	require.NotNil(t, cat)

	var loadErr *OntologyLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.True(t, loadErr.Partial)
	assert.Equal(t, 6, loadErr.Rejected)

	require.Equal(t, 1, cat.Len())
	rule, _ := cat.Rule("urn:test:ok")
	assert.Equal(t, "Valid rule", rule.IssueTitle)

	require.Len(t, cat.Rejected, 6)
	assert.Contains(t, cat.Rejected[0].Reason, "issue_title")
	assert.Contains(t, cat.Rejected[1].Reason, "severity")
	assert.Contains(t, cat.Rejected[2].Reason, "unknown keyword set")
	assert.Equal(t, "duplicate uri", cat.Rejected[3].Reason)
	assert.Equal(t, 4, cat.Rejected[3].Position)

	assert.Equal(t, 5, cat.Rejected[4].Position)
	assert.Equal(t, "urn:test:bad-impact", cat.Rejected[4].URI)
	assert.Contains(t, cat.Rejected[4].Reason, "decode")
	assert.Equal(t, 6, cat.Rejected[5].Position)
	assert.Contains(t, cat.Rejected[5].Reason, "decode")
}

func TestParse_MistypedFieldRejectsRuleAlone(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"yaml", FormatYAML, `name: mixed
rules:
  - uri: urn:ok
    severity: Low
    strict_severity: Low
    issue_title: Fine
    issue_detail: Fine.
    issue_category: Progress
    discipline: PT
  - uri: urn:bad
    severity: Low
    strict_severity: Low
    issue_title: Bad
    issue_detail: Bad.
    issue_category: Progress
    discipline: PT
    financial_impact: unknown
`},
		{"json", FormatJSON, `{"name": "mixed", "rules": [
  {"uri": "urn:ok", "severity": "Low", "strict_severity": "Low", "issue_title": "Fine",
   "issue_detail": "Fine.", "issue_category": "Progress", "discipline": "PT"},
  {"uri": "urn:bad", "severity": "Low", "strict_severity": "Low", "issue_title": "Bad",
   "issue_detail": "Bad.", "issue_category": "Progress", "discipline": "PT", "positive_keywords": "gait"}
]}`},
		{"toml", FormatTOML, `name = "mixed"

[[rules]]
uri = "urn:ok"
severity = "Low"
strict_severity = "Low"
issue_title = "Fine"
issue_detail = "Fine."
issue_category = "Progress"
discipline = "PT"

[[rules]]
uri = "urn:bad"
severity = "Low"
strict_severity = "Low"
issue_title = "Bad"
issue_detail = "Bad."
issue_category = "Progress"
discipline = "PT"
financial_impact = "unknown"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := Parse([]byte(tt.data), tt.format, "mixed."+tt.name, quietLogger())
			require.NotNil(t, cat)

			var loadErr *OntologyLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.True(t, loadErr.Partial)

			assert.Equal(t, 1, cat.Len())
			_, ok := cat.Rule("urn:ok")
			assert.True(t, ok)
			require.Len(t, cat.Rejected, 1)
			assert.Equal(t, 1, cat.Rejected[0].Position)
			assert.Contains(t, cat.Rejected[0].Reason, "decode")
		})
	}
}

func TestLoad_StructuralFailures(t *testing.T) {
	for _, path := range []string{"testdata/broken.yaml", "testdata/missing.yaml", "testdata/catalog.ini"} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			cat, err := Load(path, quietLogger())
			assert.Nil(t, cat)
			var loadErr *OntologyLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.False(t, loadErr.Partial)
			assert.Equal(t, path, loadErr.Source)
		})
	}

	_, err := Load("testdata/catalog.ini", quietLogger())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRulesByDiscipline(t *testing.T) {
	cat, err := Load("testdata/valid.yaml", quietLogger())
	require.NoError(t, err)

	ot := cat.RulesByDiscipline(model.DisciplineOT)
	require.Len(t, ot, 1)
	assert.Equal(t, "urn:test:adl", ot[0].URI)
	assert.Empty(t, cat.RulesByDiscipline(model.DisciplineSLP))
}

func TestRules_ReturnsCopy(t *testing.T) {
	cat, err := Load("testdata/valid.yaml", quietLogger())
	require.NoError(t, err)

	rules := cat.Rules()
	rules[0].IssueTitle = "mutated"
	assert.Equal(t, "Gait without distance", cat.Rules()[0].IssueTitle)
}

func TestExampleCatalogLoads(t *testing.T) {
	cat, err := Load("../../rules/example.yaml", quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "medicare-part-b", cat.Name)
	assert.Equal(t, 6, cat.Len())
}

func TestStore_Reload(t *testing.T) {
	store := NewStore([]string{"testdata/valid.yaml", "testdata/valid.toml", "testdata/broken.yaml"}, "", quietLogger())

	initial := store.Snapshot()
	require.NotNil(t, initial)
	_, ok := initial.Catalog("")
	assert.False(t, ok)

	snap, err := store.Reload()
	require.Error(t, err)
	assert.True(t, snap.Degraded)
	assert.Len(t, snap.Errors, 1)
	assert.Equal(t, []string{"test-rubric", "toml-rubric"}, snap.Names())
	assert.Equal(t, "test-rubric", snap.Default())

	def, ok := snap.Catalog("")
	require.True(t, ok)
	assert.Equal(t, "test-rubric", def.Name)

	_, ok = snap.Catalog("toml-rubric")
	assert.True(t, ok)

	assert.Same(t, snap, store.Snapshot())
	assert.Equal(t, int64(1), store.Reloads())
}

func TestStore_ExplicitDefault(t *testing.T) {
	store := NewStore([]string{"testdata/valid.yaml", "testdata/valid.toml"}, "toml-rubric", quietLogger())
	snap, err := store.Reload()
	require.NoError(t, err)
	assert.False(t, snap.Degraded)

	def, ok := snap.Catalog("")
	require.True(t, ok)
	assert.Equal(t, "toml-rubric", def.Name)
}

func TestStore_ReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rubric.yaml")
	data, err := os.ReadFile("testdata/valid.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	store := NewStore([]string{path}, "", quietLogger())
	first, err := store.Reload()
	require.NoError(t, err)
	old, _ := first.Catalog("")
	require.Equal(t, 2, old.Len())

	require.NoError(t, os.WriteFile(path, []byte("name: test-rubric\nrules: []\n"), 0o644))

	second, err := store.Reload()
	require.NoError(t, err)
	cur, _ := second.Catalog("")
	assert.Equal(t, 0, cur.Len())
	assert.Equal(t, 2, old.Len(), "previous snapshot is untouched")
	assert.NotSame(t, first, second)
}

func TestStore_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rubric.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: watched\nrules: []\n"), 0o644))

	store := NewStore([]string{path}, "", quietLogger())
	_, err := store.Reload()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Snapshot, 4)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, 20*time.Millisecond, func(s *Snapshot, _ error) { reloaded <- s })
	}()

	data, err := os.ReadFile("testdata/valid.yaml")
	require.NoError(t, err)

	// The watcher registers asynchronously; keep rewriting until it notices.
	deadline := time.After(5 * time.Second)
	for {
		require.NoError(t, os.WriteFile(path, data, 0o644))
		select {
		case snap := <-reloaded:
			cat, ok := snap.Catalog("")
			require.True(t, ok)
			assert.Equal(t, 2, cat.Len())
			cancel()
			assert.NoError(t, <-done)
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("watcher did not reload")
		}
	}
}
