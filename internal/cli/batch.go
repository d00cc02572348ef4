package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/ppiankov/chartrisk/internal/pipeline"
	"github.com/ppiankov/chartrisk/internal/report"
	"github.com/ppiankov/chartrisk/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	listFile     string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [file|glob...]",
	Short: "Analyze many notes in parallel",
	Long: `Batch analyzes many notes concurrently:
- Expand file arguments and ** glob patterns
- Read additional paths from a list file (one per line, # comments)
- Analyze documents in parallel with a bounded worker count
- Write a JSON and Markdown report per document

Example:
  chartrisk batch 'notes/**/*.txt'
  chartrisk batch --list notes.txt --concurrency 8 --output-dir ./reports
  chartrisk batch a.md b.html --discipline SLP --strict`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent documents (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./chartrisk-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&listFile, "list", "", "file listing note paths, one per line")

	addRequestFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths, err := collectPaths(args, listFile)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no input files (pass files, globs or --list)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	template, err := a.request()
	if err != nil {
		return err
	}
	if err := applyRequestFlags(cmd, &template); err != nil {
		return err
	}

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.BatchWorkers
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  chartrisk Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Documents:    %d\n", len(paths))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Mode:         %s\n", template.Mode)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	analyzer := pipeline.NewFileAnalyzer(a.orchestrator, nil, template)
	processor := worker.NewBatchProcessor(analyzer, workers)
	results := processor.ProcessFiles(ctx, paths)

	renderer := report.NewRenderer(cfg.Output.Pretty)
	successCount := 0
	failureCount := 0
	used := make(map[string]int)

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		slug := uniqueSlug(sanitizeFilename(result.Path), used)
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(result.Result, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Result, mdPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Path, err)
			continue
		}

		successCount++
		status := ""
		if result.Result.Degraded {
			status = ", degraded"
		}
		fmt.Fprintf(os.Stderr, "✓ %s (score: %d/100, findings: %d%s)\n",
			result.Path, result.Result.ComplianceScore, len(result.Result.Findings), status)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d documents failed", failureCount)
	}
	return nil
}

// collectPaths expands args (plain paths or doublestar globs) and the
// optional list file into a deduplicated list in input order
func collectPaths(args []string, list string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			add(arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", arg, err)
		}
		for _, m := range matches {
			add(m)
		}
	}

	if list != "" {
		listed, err := worker.ReadPathsFromFile(list)
		if err != nil {
			return nil, err
		}
		for _, p := range listed {
			add(p)
		}
	}
	return paths, nil
}

// sanitizeFilename turns a note path into a report file stem
func sanitizeFilename(s string) string {
	s = filepath.Base(s)
	s = strings.TrimSuffix(s, filepath.Ext(s))

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" || s == "." {
		s = "note"
	}
	return s
}

// uniqueSlug suffixes repeated stems so notes with the same base name
// in different directories do not overwrite each other's reports
func uniqueSlug(slug string, used map[string]int) string {
	n := used[slug]
	used[slug] = n + 1
	if n == 0 {
		return slug
	}
	return fmt.Sprintf("%s-%d", slug, n+1)
}
