package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/normalize"
	"github.com/ppiankov/chartrisk/internal/pipeline"
	"github.com/ppiankov/chartrisk/internal/report"
)

var (
	outJSON     string
	outMD       string
	timeout     time.Duration
	mode        string
	discipline  string
	rubric      string
	strict      bool
	sections    bool
	stdinFormat string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|->",
	Short: "Analyze a single clinical note for compliance risk",
	Long: `Analyze reads one note (.txt, .md or .html, or stdin with "-") and:
- Splits it into overlapping chunks
- Matches chunk entities against the selected rubric
- Runs the built-in fallback heuristics on the full text
- Optionally retrieves guideline passages (hybrid) and a narrative (ai)
- Merges, scores and reports all findings

Example:
  chartrisk analyze note.txt
  chartrisk analyze note.md --discipline OT --strict --json report.json
  cat note.txt | chartrisk analyze - --mode hybrid --md report.md`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (\"-\" for stdout)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall analysis timeout")

	addRequestFlags(analyzeCmd)
	analyzeCmd.Flags().StringVar(&stdinFormat, "format", "txt", "input format when reading stdin (txt, md, html)")
}

// addRequestFlags registers the per-request overrides shared by analyze and batch
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&mode, "mode", "", "analysis mode: rubric, hybrid or ai (default from config)")
	cmd.Flags().StringVar(&discipline, "discipline", "", "discipline filter: PT, OT or SLP (default from config)")
	cmd.Flags().StringVar(&rubric, "rubric", "", "rubric (catalog) name (default from config)")
	cmd.Flags().BoolVar(&strict, "strict", false, "use strict severities")
	cmd.Flags().BoolVar(&sections, "sections", false, "chunk within detected note sections")
}

// applyRequestFlags overlays explicitly set flags on req
func applyRequestFlags(cmd *cobra.Command, req *pipeline.Request) error {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		m := model.AnalysisMode(strings.ToLower(mode))
		if !m.Valid() {
			return fmt.Errorf("invalid --mode %q (expected rubric, hybrid or ai)", mode)
		}
		req.Mode = m
	}
	if flags.Changed("discipline") {
		d, err := model.ParseDiscipline(discipline)
		if err != nil {
			return err
		}
		req.Discipline = d
	}
	if flags.Changed("rubric") {
		req.Rubric = rubric
	}
	if flags.Changed("strict") {
		req.Strict = strict
	}
	if flags.Changed("sections") {
		req.Sections = sections
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	input := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	req, err := a.request()
	if err != nil {
		return err
	}
	if err := applyRequestFlags(cmd, &req); err != nil {
		return err
	}

	text, err := readNote(input)
	if err != nil {
		return err
	}
	req.Text = text

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", input)
		fmt.Fprintf(os.Stderr, "Mode: %s, discipline: %s, strict: %v\n", req.Mode, req.Discipline, req.Strict)
		fmt.Fprintln(os.Stderr)
	}

	result := a.orchestrator.Analyze(ctx, req)

	renderer := report.NewRenderer(cfg.Output.Pretty)
	switch outJSON {
	case "":
	case "-":
		if err := renderer.WriteJSON(os.Stdout, result); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
	default:
		if err := renderer.RenderJSON(result, outJSON); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(result, outMD); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
	}
	if outJSON != "-" {
		renderer.RenderSummary(os.Stdout, result)
	}

	if result.Status == model.StateFailed {
		return fmt.Errorf("analysis failed: %s", strings.Join(result.Warnings, "; "))
	}
	return nil
}

// readNote normalizes a note file, or stdin when input is "-"
func readNote(input string) (string, error) {
	registry := normalize.NewRegistry()
	if input != "-" {
		return registry.ReadFile(input)
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return registry.Normalize("stdin."+stdinFormat, "", data)
}
