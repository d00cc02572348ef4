package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/chartrisk/internal/model"
)

// Analyzer defines the interface for analyzing one document file
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path string) (*model.AnalysisResult, error)
}

// DocumentJob represents a document analysis job
type DocumentJob struct {
	Index    int
	Path     string
	Analyzer Analyzer
}

// Execute executes the analysis job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	result, err := j.Analyzer.AnalyzeFile(ctx, j.Path)
	return &DocumentResult{
		Index:  j.Index,
		Path:   j.Path,
		Result: result,
		Error:  err,
	}
}

// DocumentResult represents the result of a document job
type DocumentResult struct {
	Index  int                   `json:"-"`
	Path   string                `json:"path"`
	Result *model.AnalysisResult `json:"result,omitempty"`
	Error  error                 `json:"-"`
}

// GetError returns the error from the document result
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes multiple documents concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessFiles analyzes files concurrently; results keep input order.
// Files not analyzed because ctx was cancelled carry ctx.Err().
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*DocumentResult {
	out := make([]*DocumentResult, len(paths))
	if len(paths) == 0 {
		return out
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()
	for i, path := range paths {
		if !pool.Submit(&DocumentJob{Index: i, Path: path, Analyzer: b.analyzer}) {
			break
		}
	}

	for _, result := range pool.Wait() {
		dr := result.(*DocumentResult)
		out[dr.Index] = dr
	}

	for i, path := range paths {
		if out[i] != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out[i] = &DocumentResult{Index: i, Path: path, Error: err}
	}
	return out
}

// ProcessListFile reads paths from a list file and analyzes them concurrently
func (b *BatchProcessor) ProcessListFile(ctx context.Context, listPath string) ([]*DocumentResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessFiles(ctx, paths), nil
}

// ReadPathsFromFile reads document paths from a file (one per line)
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Deduplicate paths
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
