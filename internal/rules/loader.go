package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/chartrisk/internal/model"
)

// Format is a catalog serialization.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// ErrUnsupportedFormat is returned for catalog files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// catalogFile is the catalog header. Rules are decoded record by record.
type catalogFile struct {
	Name        string              `yaml:"name" toml:"name" json:"name"`
	Version     string              `yaml:"version" toml:"version" json:"version"`
	Description string              `yaml:"description" toml:"description" json:"description"`
	KeywordSets map[string][]string `yaml:"keyword_sets" toml:"keyword_sets" json:"keyword_sets"`
}

// recordDecoder decodes one rule record. Records decode independently so a
// mistyped field rejects that rule alone.
type recordDecoder func(*ruleRecord) error

type ruleRecord struct {
	URI                 string   `yaml:"uri" toml:"uri" json:"uri"`
	Severity            string   `yaml:"severity" toml:"severity" json:"severity"`
	StrictSeverity      string   `yaml:"strict_severity" toml:"strict_severity" json:"strict_severity"`
	IssueTitle          string   `yaml:"issue_title" toml:"issue_title" json:"issue_title"`
	IssueDetail         string   `yaml:"issue_detail" toml:"issue_detail" json:"issue_detail"`
	IssueCategory       string   `yaml:"issue_category" toml:"issue_category" json:"issue_category"`
	Discipline          string   `yaml:"discipline" toml:"discipline" json:"discipline"`
	FinancialImpact     int      `yaml:"financial_impact" toml:"financial_impact" json:"financial_impact"`
	PositiveKeywords    []string `yaml:"positive_keywords" toml:"positive_keywords" json:"positive_keywords"`
	NegativeKeywords    []string `yaml:"negative_keywords" toml:"negative_keywords" json:"negative_keywords"`
	PositiveKeywordSets []string `yaml:"positive_keyword_sets" toml:"positive_keyword_sets" json:"positive_keyword_sets"`
	NegativeKeywordSets []string `yaml:"negative_keyword_sets" toml:"negative_keyword_sets" json:"negative_keyword_sets"`
}

// Load reads and validates the catalog at path.
//
// On a structural failure it returns a nil catalog and a *OntologyLoadError.
// When individual rules are rejected it returns the valid remainder together
// with a *OntologyLoadError whose Partial field is set.
func Load(path string, log *slog.Logger) (*Catalog, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, &OntologyLoadError{Source: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &OntologyLoadError{Source: path, Err: fmt.Errorf("read: %w", err)}
	}

	cat, err := Parse(data, format, path, log)
	if cat != nil && cat.Name == "" {
		cat.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return cat, err
}

// Parse decodes and validates catalog bytes. source labels errors and logs.
func Parse(data []byte, format Format, source string, log *slog.Logger) (*Catalog, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("catalog", source)

	file, records, err := decode(data, format)
	if err != nil {
		return nil, &OntologyLoadError{Source: source, Err: fmt.Errorf("decode %s: %w", format, err)}
	}

	cat := &Catalog{
		Name:        strings.TrimSpace(file.Name),
		Version:     file.Version,
		Description: file.Description,
		Source:      source,
		byURI:       make(map[string]int, len(records)),
	}

	for i, decodeRecord := range records {
		var rec ruleRecord
		var rule model.ComplianceRule
		err := decodeRecord(&rec)
		if err != nil {
			err = fmt.Errorf("decode: %w", err)
		} else {
			rule, err = rec.build(file.KeywordSets)
		}
		if err == nil {
			if _, dup := cat.byURI[rule.URI]; dup {
				err = fmt.Errorf("duplicate uri")
			}
		}
		if err != nil {
			cat.Rejected = append(cat.Rejected, Rejection{Position: i, URI: rec.URI, Reason: err.Error()})
			log.Warn("Rule rejected", "position", i, "uri", rec.URI, "reason", err)
			continue
		}
		cat.byURI[rule.URI] = len(cat.rules)
		cat.rules = append(cat.rules, rule)
	}

	log.Debug("Catalog loaded", "rules", len(cat.rules), "rejected", len(cat.Rejected))

	if len(cat.Rejected) > 0 {
		return cat, &OntologyLoadError{Source: source, Partial: true, Rejected: len(cat.Rejected)}
	}
	return cat, nil
}

// decode reads the catalog header, then splits the rules into per-record
// decoders. Only a document that cannot be decoded at all fails here.
func decode(data []byte, format Format) (catalogFile, []recordDecoder, error) {
	var file catalogFile
	var records []recordDecoder

	switch format {
	case FormatYAML:
		var doc struct {
			Rules []yaml.Node `yaml:"rules"`
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return file, nil, err
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return file, nil, err
		}
		for i := range doc.Rules {
			node := &doc.Rules[i]
			records = append(records, func(rec *ruleRecord) error { return node.Decode(rec) })
		}

	case FormatTOML:
		var doc struct {
			Rules []map[string]any `toml:"rules"`
		}
		if err := toml.Unmarshal(data, &file); err != nil {
			return file, nil, err
		}
		if err := toml.Unmarshal(data, &doc); err != nil {
			return file, nil, err
		}
		for _, table := range doc.Rules {
			table := table
			records = append(records, func(rec *ruleRecord) error {
				raw, err := toml.Marshal(table)
				if err != nil {
					return err
				}
				return toml.Unmarshal(raw, rec)
			})
		}

	case FormatJSON:
		var doc struct {
			Rules []json.RawMessage `json:"rules"`
		}
		if err := json.Unmarshal(data, &file); err != nil {
			return file, nil, err
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return file, nil, err
		}
		for _, raw := range doc.Rules {
			raw := raw
			records = append(records, func(rec *ruleRecord) error { return json.Unmarshal(raw, rec) })
		}

	default:
		return file, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return file, records, nil
}

// build validates one record and resolves its keyword-set references.
func (r ruleRecord) build(sets map[string][]string) (model.ComplianceRule, error) {
	var missing []string
	required := []struct{ name, value string }{
		{"uri", r.URI},
		{"severity", r.Severity},
		{"strict_severity", r.StrictSeverity},
		{"issue_title", r.IssueTitle},
		{"issue_detail", r.IssueDetail},
		{"issue_category", r.IssueCategory},
		{"discipline", r.Discipline},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return model.ComplianceRule{}, fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}

	severity, err := model.ParseSeverity(r.Severity)
	if err != nil {
		return model.ComplianceRule{}, fmt.Errorf("severity: %w", err)
	}
	strict, err := model.ParseSeverity(r.StrictSeverity)
	if err != nil {
		return model.ComplianceRule{}, fmt.Errorf("strict_severity: %w", err)
	}
	discipline, err := model.ParseDiscipline(r.Discipline)
	if err != nil {
		return model.ComplianceRule{}, fmt.Errorf("discipline: %w", err)
	}
	if r.FinancialImpact < 0 {
		return model.ComplianceRule{}, fmt.Errorf("financial_impact must not be negative")
	}

	positive, err := resolveKeywords(r.PositiveKeywords, r.PositiveKeywordSets, sets)
	if err != nil {
		return model.ComplianceRule{}, fmt.Errorf("positive keywords: %w", err)
	}
	negative, err := resolveKeywords(r.NegativeKeywords, r.NegativeKeywordSets, sets)
	if err != nil {
		return model.ComplianceRule{}, fmt.Errorf("negative keywords: %w", err)
	}

	return model.ComplianceRule{
		URI:              strings.TrimSpace(r.URI),
		Severity:         severity,
		StrictSeverity:   strict,
		IssueTitle:       strings.TrimSpace(r.IssueTitle),
		IssueDetail:      strings.TrimSpace(r.IssueDetail),
		IssueCategory:    strings.TrimSpace(r.IssueCategory),
		Discipline:       discipline,
		FinancialImpact:  r.FinancialImpact,
		PositiveKeywords: positive,
		NegativeKeywords: negative,
	}, nil
}

// resolveKeywords expands set references and merges them with inline literals,
// lower-cased and deduplicated in first-seen order.
func resolveKeywords(literals, refs []string, sets map[string][]string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(kw string) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			return
		}
		seen[kw] = true
		out = append(out, kw)
	}

	for _, kw := range literals {
		add(kw)
	}
	for _, ref := range refs {
		set, ok := sets[ref]
		if !ok {
			return nil, fmt.Errorf("unknown keyword set %q", ref)
		}
		for _, kw := range set {
			add(kw)
		}
	}
	return out, nil
}
