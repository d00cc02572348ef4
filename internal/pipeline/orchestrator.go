// Package pipeline runs the analysis state machine: chunking, entity
// extraction, rule retrieval, fallback evaluation, optional guideline
// retrieval and narrative generation, then merging and scoring.
//
// External collaborators are optional ports. A failing or missing
// collaborator degrades the result but never fails it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ppiankov/chartrisk/internal/chunker"
	"github.com/ppiankov/chartrisk/internal/doctype"
	"github.com/ppiankov/chartrisk/internal/fallback"
	"github.com/ppiankov/chartrisk/internal/guideline"
	"github.com/ppiankov/chartrisk/internal/llm"
	"github.com/ppiankov/chartrisk/internal/metrics"
	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/ner"
	"github.com/ppiankov/chartrisk/internal/rules"
	"github.com/ppiankov/chartrisk/internal/score"
	"github.com/ppiankov/chartrisk/internal/textutil"
	"github.com/ppiankov/chartrisk/internal/worker"
)

// DefaultWorkers caps concurrent collaborator calls per request
const DefaultWorkers = 4

// DefaultGuidelineTopK is the number of guideline passages per finding
const DefaultGuidelineTopK = 3

// Request is one analysis request
type Request struct {
	Text       string
	Discipline model.Discipline // Empty matches every discipline
	Rubric     string           // Empty selects the default rubric
	Mode       model.AnalysisMode
	Strict     bool // Use strict severities
	Sections   bool // Section-aware chunking
}

// Timeouts bound each collaborator call
type Timeouts struct {
	NER       time.Duration
	Guideline time.Duration
	Narrative time.Duration
}

// Options wires an Orchestrator. Only Store is required; nil collaborators
// fall back to defaults or are treated as unavailable.
type Options struct {
	Store    *rules.Store
	Chunker  *chunker.Chunker
	Headers  []string // Section headers for section-aware chunking
	Fallback *fallback.Engine
	Scorer   *score.Scorer

	// NER extracts entities per chunk. Nil uses a lexicon built from the
	// selected catalog.
	NER ner.Extractor

	Guidelines    guideline.Retriever
	GuidelineTopK int

	Narrator          llm.Generator
	NarrativeProvider string
	NarrativeModel    string

	Workers    int
	Limiter    *worker.Limiter
	MaxRetries int
	Timeouts   Timeouts

	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Orchestrator is safe for concurrent use
type Orchestrator struct {
	store    *rules.Store
	chunker  *chunker.Chunker
	headers  []string
	fallback *fallback.Engine
	scorer   *score.Scorer

	ner        ner.Extractor
	guidelines guideline.Retriever
	topK       int

	narrator          llm.Generator
	narrativeProvider string
	narrativeModel    string

	workers  int
	timeouts Timeouts
	guard    *guard
	views    *viewCache
	metrics  *metrics.Recorder
	log      *slog.Logger
}

// New creates an orchestrator from opts
func New(opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "pipeline")

	o := &Orchestrator{
		store:             opts.Store,
		chunker:           opts.Chunker,
		headers:           opts.Headers,
		fallback:          opts.Fallback,
		scorer:            opts.Scorer,
		ner:               opts.NER,
		guidelines:        opts.Guidelines,
		topK:              opts.GuidelineTopK,
		narrator:          opts.Narrator,
		narrativeProvider: opts.NarrativeProvider,
		narrativeModel:    opts.NarrativeModel,
		workers:           opts.Workers,
		timeouts:          opts.Timeouts,
		guard:             newGuard(opts.Limiter, opts.MaxRetries, opts.Metrics, log),
		views:             newViewCache(),
		metrics:           opts.Metrics,
		log:               log,
	}

	if o.store == nil {
		o.store = rules.NewStore(nil, "", log)
	}
	if o.chunker == nil {
		o.chunker = chunker.MustNew(chunker.DefaultConfig())
	}
	if o.fallback == nil {
		o.fallback = fallback.New()
	}
	if o.scorer == nil {
		o.scorer = score.NewScorer(score.DefaultWeights())
	}
	if o.topK <= 0 {
		o.topK = DefaultGuidelineTopK
	}
	if o.workers <= 0 {
		o.workers = DefaultWorkers
	}
	return o
}

// Store returns the rule store the orchestrator reads from
func (o *Orchestrator) Store() *rules.Store {
	return o.store
}

// Analyze runs the full pipeline. It never returns nil and never panics:
// collaborator failures degrade the result, cancellation yields status
// cancelled and an internal fault yields status failed.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (result *model.AnalysisResult) {
	start := time.Now()
	r := o.newRun(ctx, req)

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Analysis failed", "panic", p, "stack", string(debug.Stack()))
			r.abort(model.StateFailed, fmt.Sprintf("internal error: %v", p))
		}
		result = r.result
		o.metrics.ObserveAnalysis(result, time.Since(start))
		r.log.Debug("Analysis finished",
			"status", result.Status,
			"findings", len(result.Findings),
			"score", result.ComplianceScore,
			"degraded", result.Degraded,
			"duration_ms", time.Since(start).Milliseconds())
	}()

	r.execute()
	return r.result
}

// run is the mutable state of one Analyze call
type run struct {
	o      *Orchestrator
	ctx    context.Context
	req    Request
	log    *slog.Logger
	result *model.AnalysisResult

	view     *catalogView
	chunks   []model.Chunk
	entities [][]model.Entity // By chunk; nil when extraction failed
	findings []model.Finding  // Unmerged, in source order
}

func (o *Orchestrator) newRun(ctx context.Context, req Request) *run {
	if req.Mode == "" {
		req.Mode = model.ModeRubric
	}
	id := uuid.NewString()
	return &run{
		o:   o,
		ctx: ctx,
		req: req,
		log: o.log.With("analysis_id", id),
		result: &model.AnalysisResult{
			AnalysisID: id,
			Findings:   []model.Finding{},
			Status:     model.StatePending,
			Mode:       req.Mode,
			Discipline: req.Discipline,
			Rubric:     req.Rubric,
			Strict:     req.Strict,
			Stages:     []model.StageRecord{},
			AnalyzedAt: time.Now().UTC(),
		},
	}
}

func (r *run) execute() {
	if !r.req.Mode.Valid() {
		r.abort(model.StateFailed, fmt.Sprintf("unknown analysis mode %q", r.req.Mode))
		return
	}
	if isEmptyInput(r.req.Text) {
		r.finishEmpty()
		return
	}

	r.selectCatalog()

	steps := []struct {
		state model.PipelineState
		fn    func() stageOutcome
	}{
		{model.StateChunking, r.chunk},
		{model.StateEntityExtraction, r.extractEntities},
		{model.StateRuleRetrieval, r.retrieveRules},
		{model.StateFallbackEvaluation, r.evaluateFallback},
		{model.StateGuidelineRetrieval, r.retrieveGuidelines},
		{model.StateNarrativeGeneration, r.generateNarrative},
		{model.StateMerging, r.merge},
	}

	for _, step := range steps {
		if !r.stage(step.state, step.fn) {
			return
		}
	}
	r.result.Status = model.StateCompleted
}

// stageOutcome describes how a stage ended
type stageOutcome struct {
	skipped   bool
	degraded  bool
	cancelled bool
	omitted   bool // Not part of this mode; no trace entry
}

// stage runs fn as state. It returns false when the run must stop.
func (r *run) stage(state model.PipelineState, fn func() stageOutcome) bool {
	if err := r.ctx.Err(); err != nil {
		r.abort(model.StateCancelled, fmt.Sprintf("cancelled before %s: %v", state, err))
		return false
	}

	r.result.Status = state
	start := time.Now()
	out := fn()
	elapsed := time.Since(start)

	if out.omitted {
		return true
	}

	r.result.Stages = append(r.result.Stages, model.StageRecord{
		State:      state,
		DurationMS: elapsed.Milliseconds(),
		Skipped:    out.skipped,
		Degraded:   out.degraded,
	})
	r.o.metrics.ObserveStage(state, elapsed)
	if out.degraded {
		r.result.Degraded = true
	}

	if out.cancelled {
		r.abort(model.StateCancelled, fmt.Sprintf("cancelled during %s", state))
		return false
	}
	return true
}

// abort ends the run without a verdict
func (r *run) abort(state model.PipelineState, reason string) {
	r.result.Status = state
	r.result.Findings = []model.Finding{}
	r.result.Guidelines = nil
	r.result.Narrative = nil
	r.result.ComplianceScore = 0
	r.result.Score = model.Score{Index: 0, Confidence: "low", Signals: []model.Signal{}}
	if state == model.StateFailed {
		r.result.Degraded = true
	}
	r.warn(reason)
}

func (r *run) warn(msg string) {
	r.result.Warnings = append(r.result.Warnings, msg)
}

// isEmptyInput reports text with nothing to analyze: blank, not valid
// UTF-8, or containing NUL bytes
func isEmptyInput(text string) bool {
	return strings.TrimSpace(text) == "" || !utf8.ValidString(text) || strings.IndexByte(text, 0) >= 0
}

func (r *run) finishEmpty() {
	r.result.Empty = true
	r.result.DocumentType = doctype.Unknown
	r.result.Score = r.o.scorer.Calculate(nil, false)
	r.result.ComplianceScore = r.result.Score.Index
	r.result.Status = model.StateCompleted
	r.warn("no analyzable text")
}

// selectCatalog resolves the requested rubric against the current snapshot.
// A missing rubric or a degraded load analyzes with what is available.
func (r *run) selectCatalog() {
	snap := r.o.store.Snapshot()

	cat, ok := snap.Catalog(r.req.Rubric)
	if !ok {
		name := r.req.Rubric
		if name == "" {
			name = snap.Default()
		}
		r.warn(fmt.Sprintf("rubric %q is not loaded; no catalog rules applied", name))
		r.result.Degraded = true
		cat = rules.Empty(name)
	}
	if snap.Degraded {
		r.result.Degraded = true
		for _, err := range snap.Errors {
			r.warn(fmt.Sprintf("rule catalog: %v", err))
		}
	}

	r.result.Rubric = cat.Name
	r.view = r.o.views.get(cat)
}

func (r *run) chunk() stageOutcome {
	if r.req.Sections {
		r.chunks = r.o.chunker.SplitBySections(r.req.Text, r.o.headers)
	} else {
		r.chunks = r.o.chunker.Split(r.req.Text)
	}
	r.result.ChunkCount = len(r.chunks)
	r.result.DocumentType = doctype.Classify(r.req.Text)
	return stageOutcome{}
}

func (r *run) extractEntities() stageOutcome {
	extractor := r.o.ner
	if extractor == nil {
		extractor = r.view.lexicon
	}

	values, errs, cancelled := fanOut(r.ctx, r.o.workers, len(r.chunks), func(i int) ([]model.Entity, error) {
		return call(r.ctx, r.o.guard, CollaboratorNER, r.o.timeouts.NER, func(ctx context.Context) ([]model.Entity, error) {
			return extractor.Extract(ctx, r.chunks[i].Text)
		})
	})
	if cancelled {
		return stageOutcome{cancelled: true}
	}

	out := stageOutcome{}
	r.entities = values
	for i, err := range errs {
		if err == nil {
			continue
		}
		r.entities[i] = nil
		out.degraded = true
		r.log.Warn("Entity extraction failed", "chunk", i, "error", err)
		r.warn(fmt.Sprintf("entity extraction skipped for chunk %d: %v", i, err))
	}
	return out
}

func (r *run) retrieveRules() stageOutcome {
	folded := textutil.Fold(r.req.Text)
	for i := range r.chunks {
		if r.entities[i] == nil {
			continue
		}
		r.findings = append(r.findings, ruleFindings(r.view.index, folded, r.entities[i], r.req.Discipline, r.req.Strict)...)
	}
	return stageOutcome{}
}

func (r *run) evaluateFallback() stageOutcome {
	r.findings = append(r.findings, r.o.fallback.AnalyzeText(r.req.Text)...)
	return stageOutcome{}
}

// guidelineReply keeps the snippets of a partial hybrid retrieval
type guidelineReply struct {
	snippets []guideline.Snippet
	partial  error
}

func (r *run) retrieveGuidelines() stageOutcome {
	if r.req.Mode == model.ModeRubric {
		return stageOutcome{omitted: true}
	}
	if r.o.guidelines == nil {
		r.warn("guideline retrieval unavailable: no retriever configured")
		return stageOutcome{skipped: true, degraded: true}
	}

	targets := mergeFindings(r.findings)
	values, errs, cancelled := fanOut(r.ctx, r.o.workers, len(targets), func(i int) (guidelineReply, error) {
		query := strings.TrimSpace(targets[i].Title + " " + targets[i].Suggestion)
		return call(r.ctx, r.o.guard, CollaboratorGuideline, r.o.timeouts.Guideline, func(ctx context.Context) (guidelineReply, error) {
			snippets, err := r.o.guidelines.Retrieve(ctx, query, r.o.topK)
			if err != nil && errors.Is(err, guideline.ErrPartial) {
				return guidelineReply{snippets: snippets, partial: err}, nil
			}
			return guidelineReply{snippets: snippets}, err
		})
	})
	if cancelled {
		return stageOutcome{cancelled: true}
	}

	out := stageOutcome{}
	for i, f := range targets {
		if errs[i] != nil {
			out.degraded = true
			r.log.Warn("Guideline retrieval failed", "reference_id", f.ReferenceID, "error", errs[i])
			r.warn(fmt.Sprintf("guideline retrieval skipped for %s: %v", f.ReferenceID, errs[i]))
			continue
		}
		if values[i].partial != nil {
			out.degraded = true
			r.warn(fmt.Sprintf("guideline retrieval for %s: %v", f.ReferenceID, values[i].partial))
		}
		for _, s := range values[i].snippets {
			r.result.Guidelines = append(r.result.Guidelines, model.GuidelineSnippet{
				ReferenceID: f.ReferenceID,
				Snippet:     s.Snippet,
				SourceID:    s.SourceID,
				Score:       s.Score,
			})
		}
	}
	return out
}

func (r *run) generateNarrative() stageOutcome {
	if r.req.Mode != model.ModeAI {
		return stageOutcome{omitted: true}
	}
	if r.o.narrator == nil {
		r.warn("narrative generation unavailable: no LLM provider configured")
		return stageOutcome{skipped: true, degraded: true}
	}

	known := mergeFindings(r.findings)
	values, errs, cancelled := fanOut(r.ctx, r.o.workers, len(r.chunks), func(i int) (string, error) {
		prompt := llm.BuildNarrativePrompt(llm.NarrativeInput{
			Text:         r.chunks[i].Text,
			SectionLabel: r.chunks[i].SectionLabel,
			Discipline:   r.req.Discipline,
			DocumentType: r.result.DocumentType,
			Findings:     known,
		})
		return call(r.ctx, r.o.guard, CollaboratorNarrative, r.o.timeouts.Narrative, func(ctx context.Context) (string, error) {
			return r.o.narrator.Generate(ctx, prompt)
		})
	})
	if cancelled {
		return stageOutcome{cancelled: true}
	}

	narrative := &model.Narrative{
		Enabled:  true,
		Provider: r.o.narrativeProvider,
		Model:    r.o.narrativeModel,
	}
	out := stageOutcome{}
	var summaries []string
	for i, text := range values {
		if errs[i] != nil {
			out.degraded = true
			r.log.Warn("Narrative generation failed", "chunk", i, "error", errs[i])
			narrative.Warnings = append(narrative.Warnings, fmt.Sprintf("chunk %d: %v", i, errs[i]))
			continue
		}
		parsed := llm.ParseNarrative(text)
		if parsed.Dropped > 0 {
			narrative.Warnings = append(narrative.Warnings, fmt.Sprintf("chunk %d: %d malformed finding(s) dropped", i, parsed.Dropped))
		}
		if parsed.Summary != "" {
			summaries = append(summaries, parsed.Summary)
		}
		r.findings = append(r.findings, parsed.Findings...)
	}
	narrative.Summary = strings.Join(summaries, "\n\n")
	r.result.Narrative = narrative
	if out.degraded {
		r.warn("narrative generation degraded; see narrative warnings")
	}
	return out
}

func (r *run) merge() stageOutcome {
	r.result.Findings = mergeFindings(r.findings)
	r.result.Score = r.o.scorer.Calculate(r.result.Findings, r.result.Degraded)
	r.result.ComplianceScore = r.result.Score.Index
	return stageOutcome{}
}
