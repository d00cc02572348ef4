package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/pipeline"
)

const defaultMaxBodyBytes = 5 << 20

// analyzeParams is the JSON body of POST /api/analyze. For non-JSON bodies
// the same fields (except text) come from the query string.
type analyzeParams struct {
	Text       string `json:"text"`
	Discipline string `json:"discipline"`
	Rubric     string `json:"rubric"`
	Mode       string `json:"mode"`
	Strict     *bool  `json:"strict"`
	Sections   *bool  `json:"sections"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.jsonError(w, fmt.Sprintf("request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.jsonError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	params, err := s.parseParams(r, data)
	if err != nil {
		s.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	req, err := s.buildRequest(params)
	if err != nil {
		s.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := s.analyzer.Analyze(r.Context(), req)
	s.writeJSON(w, http.StatusOK, result)
}

// parseParams reads a JSON request, or treats any other body as a note
// whose format follows the Content-Type header.
func (s *Server) parseParams(r *http.Request, data []byte) (analyzeParams, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if mediaType == "application/json" {
		var p analyzeParams
		if err := json.Unmarshal(data, &p); err != nil {
			return analyzeParams{}, fmt.Errorf("invalid JSON body: %w", err)
		}
		return p, nil
	}

	text, err := s.registry.Normalize("", contentType, data)
	if err != nil {
		return analyzeParams{}, err
	}

	q := r.URL.Query()
	p := analyzeParams{
		Text:       text,
		Discipline: q.Get("discipline"),
		Rubric:     q.Get("rubric"),
		Mode:       q.Get("mode"),
	}
	if p.Strict, err = queryBool(q.Get("strict")); err != nil {
		return analyzeParams{}, fmt.Errorf("strict: %w", err)
	}
	if p.Sections, err = queryBool(q.Get("sections")); err != nil {
		return analyzeParams{}, fmt.Errorf("sections: %w", err)
	}
	return p, nil
}

func queryBool(v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Server) buildRequest(p analyzeParams) (pipeline.Request, error) {
	req := pipeline.Request{
		Text:       p.Text,
		Rubric:     strings.TrimSpace(p.Rubric),
		Mode:       s.defaults.Mode,
		Discipline: s.defaults.Discipline,
		Strict:     s.defaults.Strict,
		Sections:   s.defaults.Sections,
	}

	if p.Discipline != "" {
		d, err := model.ParseDiscipline(p.Discipline)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Discipline = d
	}
	if p.Mode != "" {
		mode := model.AnalysisMode(strings.ToLower(strings.TrimSpace(p.Mode)))
		if !mode.Valid() {
			return pipeline.Request{}, fmt.Errorf("invalid mode %q (expected rubric, hybrid or ai)", p.Mode)
		}
		req.Mode = mode
	}
	if p.Strict != nil {
		req.Strict = *p.Strict
	}
	if p.Sections != nil {
		req.Sections = *p.Sections
	}
	return req, nil
}

type rubricInfo struct {
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Rules    int    `json:"rules"`
	Rejected int    `json:"rejected,omitempty"`
}

func (s *Server) handleRubrics(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.jsonError(w, "rule store unavailable", http.StatusServiceUnavailable)
		return
	}

	snap := s.store.Snapshot()
	rubrics := make([]rubricInfo, 0, len(snap.Names()))
	for _, name := range snap.Names() {
		cat, _ := snap.Catalog(name)
		rubrics = append(rubrics, rubricInfo{
			Name:     cat.Name,
			Version:  cat.Version,
			Rules:    cat.Len(),
			Rejected: len(cat.Rejected),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"default":  snap.Default(),
		"degraded": snap.Degraded,
		"rubrics":  rubrics,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Response encoding failed", "status", code, "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, msg string, code int) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
