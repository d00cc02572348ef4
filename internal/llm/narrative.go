package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/textutil"
)

// NarrativeConfidence is the fixed confidence of generated findings,
// below both rule-based and fallback findings.
const NarrativeConfidence = 0.5

// narrativeRefPrefix namespaces generated reference IDs away from rule URIs and trigger IDs
const narrativeRefPrefix = "narrative:"

// maxPromptFindings caps how many deterministic findings are echoed into the prompt
const maxPromptFindings = 10

// NarrativeInput is the context for one narrative request
type NarrativeInput struct {
	Text         string
	SectionLabel string
	Discipline   model.Discipline
	DocumentType string
	Findings     []model.Finding // Deterministic findings already detected
}

// NarrativeResult is the parsed narrative response
type NarrativeResult struct {
	Findings []model.Finding
	Summary  string
	Dropped  int // Entries rejected during parsing
}

// BuildNarrativePrompt constructs the prompt for one chunk of a note
func BuildNarrativePrompt(in NarrativeInput) string {
	var b strings.Builder

	b.WriteString("Review the following excerpt of a therapy note for Medicare documentation compliance risks.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. Only report gaps that are visible in the excerpt. Quote the excerpt as evidence.\n")
	b.WriteString("2. Severity must be one of Low, Moderate, High.\n")
	b.WriteString("3. Do not repeat the issues already detected below.\n")
	b.WriteString("4. Respond with JSON only, shaped as:\n")
	b.WriteString(`{"summary": "...", "findings": [{"title": "...", "severity": "Moderate", "evidence": ["..."], "suggestion": "..."}]}`)
	b.WriteString("\n\n")

	if in.Discipline != "" {
		fmt.Fprintf(&b, "Discipline: %s\n", in.Discipline)
	}
	if in.DocumentType != "" {
		fmt.Fprintf(&b, "Document type: %s\n", in.DocumentType)
	}
	if in.SectionLabel != "" {
		fmt.Fprintf(&b, "Section: %s\n", in.SectionLabel)
	}

	if len(in.Findings) > 0 {
		b.WriteString("\nAlready detected:\n")
		for i, f := range in.Findings {
			if i >= maxPromptFindings {
				fmt.Fprintf(&b, "... and %d more\n", len(in.Findings)-maxPromptFindings)
				break
			}
			fmt.Fprintf(&b, "- [%s] %s\n", f.Severity, f.Title)
		}
	}

	b.WriteString("\nExcerpt:\n\"\"\"\n")
	b.WriteString(in.Text)
	b.WriteString("\n\"\"\"\n")

	return b.String()
}

type narrativeEnvelope struct {
	Summary  string             `json:"summary"`
	Findings []narrativeFinding `json:"findings"`
}

type narrativeFinding struct {
	ReferenceID string      `json:"reference_id"`
	Title       string      `json:"title"`
	Severity    string      `json:"severity"`
	Evidence    flexStrings `json:"evidence"`
	Suggestion  string      `json:"suggestion"`
}

// flexStrings accepts either a JSON string or an array of strings
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*f = []string{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*f = many
	return nil
}

// ParseNarrative extracts findings from a model response.
// It accepts an envelope object or a bare array, tolerating code fences,
// comments and trailing commas. Entries without a title or with an
// unknown severity are dropped. Text with no JSON becomes the summary.
func ParseNarrative(text string) NarrativeResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return NarrativeResult{}
	}

	var env narrativeEnvelope
	parsed := false

	arrayAt := strings.IndexByte(text, '[')
	objectAt := strings.IndexByte(text, '{')

	if objectAt >= 0 && (arrayAt < 0 || objectAt < arrayAt) {
		if raw := ExtractJSONObject(text); raw != "" {
			parsed = json.Unmarshal([]byte(raw), &env) == nil
		}
	}
	if !parsed && arrayAt >= 0 {
		if raw := ExtractJSONArray(text); raw != "" {
			var entries []narrativeFinding
			if json.Unmarshal([]byte(raw), &entries) == nil {
				env = narrativeEnvelope{Findings: entries}
				parsed = true
			}
		}
	}
	if !parsed {
		return NarrativeResult{Summary: text}
	}

	result := NarrativeResult{Summary: strings.TrimSpace(env.Summary)}
	for _, entry := range env.Findings {
		finding, ok := entry.toFinding()
		if !ok {
			result.Dropped++
			continue
		}
		result.Findings = append(result.Findings, finding)
	}
	return result
}

func (n narrativeFinding) toFinding() (model.Finding, bool) {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return model.Finding{}, false
	}
	severity, err := model.ParseSeverity(n.Severity)
	if err != nil {
		return model.Finding{}, false
	}

	ref := strings.TrimSpace(n.ReferenceID)
	if ref == "" {
		ref = strings.Join(textutil.Tokenize(title), "-")
	}
	if !strings.HasPrefix(ref, narrativeRefPrefix) {
		ref = narrativeRefPrefix + ref
	}

	var evidence []string
	for _, e := range n.Evidence {
		if e = strings.TrimSpace(e); e != "" {
			evidence = append(evidence, e)
		}
	}

	return model.Finding{
		Source:      model.SourceNarrative,
		ReferenceID: ref,
		Title:       title,
		Severity:    severity,
		Evidence:    textutil.Dedupe(evidence),
		Suggestion:  strings.TrimSpace(n.Suggestion),
		Confidence:  NarrativeConfidence,
	}, true
}
