package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/worker"
)

func TestFileAnalyzer_AnalyzeFile(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	a := NewFileAnalyzer(o, nil, Request{Discipline: model.DisciplinePT, Mode: model.ModeRubric})

	dir := t.TempDir()
	path := filepath.Join(dir, "note.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>Pt performed <b>gait</b> training in parallel bars.</p>"), 0o644))

	result, err := a.AnalyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, result.Status)
	assert.Len(t, bySource(result.Findings, model.SourceRuleBased), 1)

	_, err = a.AnalyzeFile(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestFileAnalyzer_Batch(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	a := NewFileAnalyzer(o, nil, Request{Discipline: model.DisciplinePT})

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.md", "c.txt"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(fallbackScenario), 0o644))
		paths = append(paths, p)
	}
	paths = append(paths, filepath.Join(dir, "missing.txt"))

	results := worker.NewBatchProcessor(a, 2).ProcessFiles(context.Background(), paths)

	require.Len(t, results, 4)
	for i, r := range results[:3] {
		assert.Equal(t, paths[i], r.Path)
		require.NoError(t, r.Error)
		assert.Equal(t, results[0].Result.ComplianceScore, r.Result.ComplianceScore)
	}
	assert.Error(t, results[3].Error)
}
