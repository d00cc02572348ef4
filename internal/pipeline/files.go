package pipeline

import (
	"context"

	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/normalize"
)

// FileAnalyzer analyzes note files, implementing worker.Analyzer for batch runs
type FileAnalyzer struct {
	orchestrator *Orchestrator
	registry     *normalize.Registry
	template     Request
}

// NewFileAnalyzer creates a file analyzer. Every file is analyzed with the
// settings of template; its Text is replaced by the file content.
func NewFileAnalyzer(o *Orchestrator, registry *normalize.Registry, template Request) *FileAnalyzer {
	if registry == nil {
		registry = normalize.NewRegistry()
	}
	return &FileAnalyzer{orchestrator: o, registry: registry, template: template}
}

// AnalyzeFile reads, normalizes and analyzes path. Only an unreadable or
// unparseable file is an error.
func (a *FileAnalyzer) AnalyzeFile(ctx context.Context, path string) (*model.AnalysisResult, error) {
	text, err := a.registry.ReadFile(path)
	if err != nil {
		return nil, err
	}
	req := a.template
	req.Text = text
	return a.orchestrator.Analyze(ctx, req), nil
}
