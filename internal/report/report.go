// Package report renders analysis results as JSON, Markdown and a
// terminal summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/chartrisk/internal/model"
)

// Renderer writes analysis results
type Renderer struct {
	pretty bool
}

// NewRenderer creates a renderer. pretty indents JSON output.
func NewRenderer(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// WriteJSON encodes result to w
func (r *Renderer) WriteJSON(w io.Writer, result *model.AnalysisResult) error {
	enc := json.NewEncoder(w)
	if r.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

// RenderJSON writes result to path as JSON
func (r *Renderer) RenderJSON(result *model.AnalysisResult, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteJSON(w, result) })
}

// RenderMarkdown writes result to path as Markdown
func (r *Renderer) RenderMarkdown(result *model.AnalysisResult, path string) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, Markdown(result))
		return err
	})
}

// RenderSummary prints a short human-readable summary
func (r *Renderer) RenderSummary(w io.Writer, result *model.AnalysisResult) {
	fmt.Fprintf(w, "Compliance score: %d/100 (confidence: %s)\n", result.ComplianceScore, result.Score.Confidence)
	fmt.Fprintf(w, "Document type:    %s\n", result.DocumentType)
	fmt.Fprintf(w, "Status:           %s\n", result.Status)
	if result.Degraded {
		fmt.Fprintf(w, "Degraded:         yes\n")
	}
	fmt.Fprintf(w, "Findings:         %d\n", len(result.Findings))
	for _, f := range result.Findings {
		fmt.Fprintf(w, "  [%-8s] %s (%s)\n", f.Severity, title(f), f.ReferenceID)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn)
	}
}

// Markdown renders result as a Markdown document
func Markdown(result *model.AnalysisResult) string {
	var b strings.Builder

	b.WriteString("# Documentation Compliance Report\n\n")
	fmt.Fprintf(&b, "- **Compliance score:** %d/100\n", result.ComplianceScore)
	fmt.Fprintf(&b, "- **Confidence:** %s\n", result.Score.Confidence)
	fmt.Fprintf(&b, "- **Document type:** %s\n", result.DocumentType)
	if result.Discipline != "" {
		fmt.Fprintf(&b, "- **Discipline:** %s\n", result.Discipline)
	}
	if result.Rubric != "" {
		fmt.Fprintf(&b, "- **Rubric:** %s\n", result.Rubric)
	}
	fmt.Fprintf(&b, "- **Mode:** %s\n", result.Mode)
	fmt.Fprintf(&b, "- **Status:** %s\n", result.Status)
	if result.Degraded {
		b.WriteString("- **Degraded:** yes, optional collaborators were unavailable\n")
	}
	b.WriteString("\n")

	b.WriteString("## Findings\n\n")
	if len(result.Findings) == 0 {
		b.WriteString("No compliance risks detected.\n\n")
	}

	guidelines := make(map[string][]model.GuidelineSnippet)
	for _, g := range result.Guidelines {
		guidelines[g.ReferenceID] = append(guidelines[g.ReferenceID], g)
	}

	for _, f := range result.Findings {
		fmt.Fprintf(&b, "### %s: %s\n\n", f.Severity, title(f))
		fmt.Fprintf(&b, "- Reference: `%s`\n", f.ReferenceID)
		fmt.Fprintf(&b, "- Source: %s, confidence %.2f\n", f.Source, f.Confidence)
		if f.FinancialImpact > 0 {
			fmt.Fprintf(&b, "- Financial impact: %d\n", f.FinancialImpact)
		}
		if f.Suggestion != "" {
			fmt.Fprintf(&b, "- Suggestion: %s\n", f.Suggestion)
		}
		if len(f.Evidence) > 0 {
			b.WriteString("\nEvidence:\n\n")
			for _, e := range f.Evidence {
				fmt.Fprintf(&b, "> %s\n", e)
			}
		}
		if gs := guidelines[f.ReferenceID]; len(gs) > 0 {
			b.WriteString("\nGuidelines:\n\n")
			for _, g := range gs {
				fmt.Fprintf(&b, "- %s (`%s`)\n", g.Snippet, g.SourceID)
			}
		}
		b.WriteString("\n")
	}

	if n := result.Narrative; n != nil && n.Enabled && n.Summary != "" {
		b.WriteString("## Narrative\n\n")
		if n.Provider != "" {
			fmt.Fprintf(&b, "_Generated by %s", n.Provider)
			if n.Model != "" {
				fmt.Fprintf(&b, "/%s", n.Model)
			}
			b.WriteString(". Does not affect the score._\n\n")
		}
		b.WriteString(n.Summary)
		b.WriteString("\n\n")
	}

	if len(result.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func title(f model.Finding) string {
	if f.Title != "" {
		return f.Title
	}
	return f.ReferenceID
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	return write(f)
}
