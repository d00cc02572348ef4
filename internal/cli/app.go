package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/chartrisk/internal/cache"
	"github.com/ppiankov/chartrisk/internal/chunker"
	"github.com/ppiankov/chartrisk/internal/fallback"
	"github.com/ppiankov/chartrisk/internal/guideline"
	"github.com/ppiankov/chartrisk/internal/llm"
	"github.com/ppiankov/chartrisk/internal/metrics"
	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/ner"
	"github.com/ppiankov/chartrisk/internal/pipeline"
	"github.com/ppiankov/chartrisk/internal/rules"
	"github.com/ppiankov/chartrisk/internal/score"
	"github.com/ppiankov/chartrisk/internal/worker"
)

// app holds the components built from one resolved configuration
type app struct {
	cfg          *model.Config
	log          *slog.Logger
	store        *rules.Store
	metrics      *metrics.Recorder
	orchestrator *pipeline.Orchestrator
}

// newApp wires the analysis stack. Unavailable optional collaborators
// (guideline corpus, narrative provider) are logged and left out; the
// pipeline then reports the corresponding stages as degraded.
func newApp(cfg *model.Config, log *slog.Logger) (*app, error) {
	rec := metrics.New()

	ch, err := chunker.New(chunker.Config{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
		Unit:         chunker.Unit(cfg.Chunking.Unit),
	})
	if err != nil {
		return nil, err
	}

	weights := score.Weights{
		High:     cfg.Scoring.HighWeight,
		Moderate: cfg.Scoring.ModerateWeight,
		Low:      cfg.Scoring.LowWeight,
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	store := rules.NewStore(cfg.Rules.Paths, cfg.Rules.DefaultRubric, log)
	snap, err := store.Reload()
	rec.CatalogReload(snap != nil && snap.Degraded, err)
	if err != nil {
		log.Warn("Catalog load failed", "error", err)
	}

	c := cache.WithObserver(cache.New(cfg.Cache), rec)

	extractor, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}

	narrator, provider, modelName := newNarrator(cfg, c, log)

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	limiter.Configure(cfg.RateLimiting.Overrides)

	var headers []string
	if cfg.Chunking.Sections {
		headers = cfg.Chunking.Headers
	}

	o := pipeline.New(pipeline.Options{
		Store:             store,
		Chunker:           ch,
		Headers:           headers,
		Fallback:          fallback.New(),
		Scorer:            score.NewScorer(weights),
		NER:               extractor,
		Guidelines:        newGuidelines(cfg, c, log),
		GuidelineTopK:     cfg.Guidelines.TopK,
		Narrator:          narrator,
		NarrativeProvider: provider,
		NarrativeModel:    modelName,
		Workers:           cfg.Concurrency.ChunkWorkers,
		Limiter:           limiter,
		MaxRetries:        cfg.RateLimiting.MaxRetries,
		Timeouts: pipeline.Timeouts{
			NER:       seconds(cfg.NER.Timeout),
			Guideline: seconds(cfg.Guidelines.Timeout),
			Narrative: seconds(cfg.LLM.Timeout),
		},
		Metrics: rec,
		Logger:  log,
	})

	return &app{cfg: cfg, log: log, store: store, metrics: rec, orchestrator: o}, nil
}

// request builds the default analysis request from configuration
func (a *app) request() (pipeline.Request, error) {
	req := pipeline.Request{
		Rubric:   a.cfg.Rules.DefaultRubric,
		Mode:     model.AnalysisMode(strings.ToLower(a.cfg.Analysis.Mode)),
		Strict:   a.cfg.Analysis.Strict,
		Sections: a.cfg.Chunking.Sections,
	}
	if a.cfg.Analysis.Discipline != "" {
		d, err := model.ParseDiscipline(a.cfg.Analysis.Discipline)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Discipline = d
	}
	return req, nil
}

// newExtractor returns the HTTP NER client, or nil to use the catalog lexicon
func newExtractor(cfg *model.Config) (ner.Extractor, error) {
	if cfg.NER.Endpoint == "" {
		return nil, nil
	}
	client, err := ner.NewHTTPClient(cfg.NER.Endpoint, seconds(cfg.NER.Timeout))
	if err != nil {
		return nil, fmt.Errorf("ner: %w", err)
	}
	return client, nil
}

// newGuidelines builds the hybrid retriever. The semantic side needs an
// OpenAI key; without one only lexical retrieval contributes.
func newGuidelines(cfg *model.Config, c cache.Cache, log *slog.Logger) guideline.Retriever {
	if cfg.Guidelines.Path == "" {
		return nil
	}
	corpus, err := guideline.LoadCorpus(cfg.Guidelines.Path)
	if err != nil {
		log.Warn("Guideline corpus unavailable", "path", cfg.Guidelines.Path, "error", err)
		return nil
	}

	var semantic guideline.Retriever
	apiKey, baseURL := embeddingCredentials(cfg)
	if apiKey != "" {
		emb, err := guideline.NewOpenAIEmbedder(apiKey, baseURL, cfg.Guidelines.EmbeddingModel)
		if err != nil {
			log.Warn("Semantic guideline retrieval disabled", "error", err)
		} else {
			cached := guideline.NewCachedEmbedder(emb, c, cfg.Cache.TTL, emb.Model())
			semantic = guideline.NewSemantic(corpus, cached)
		}
	} else {
		log.Debug("No OpenAI key, guideline retrieval is lexical only")
	}

	log.Debug("Guideline corpus loaded", "name", corpus.Name, "passages", corpus.Len())
	return guideline.NewHybrid(guideline.NewLexical(corpus), semantic,
		cfg.Guidelines.LexicalWeight, cfg.Guidelines.SemanticWeight)
}

func embeddingCredentials(cfg *model.Config) (apiKey, baseURL string) {
	if strings.EqualFold(cfg.LLM.Provider, "openai") && cfg.LLM.APIKey != "" {
		return cfg.LLM.APIKey, cfg.LLM.BaseURL
	}
	return os.Getenv("OPENAI_API_KEY"), ""
}

// newNarrator builds the cached narrative generator, or nil when no
// provider is configured or it cannot be constructed
func newNarrator(cfg *model.Config, c cache.Cache, log *slog.Logger) (llm.Generator, string, string) {
	llmCfg := llm.ConfigFromModel(cfg.LLM)
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		log.Warn("Narrative generation disabled", "error", err)
		return nil, "", ""
	}
	if provider == nil {
		return nil, "", ""
	}

	gen := llm.NewGenerator(provider, llmCfg)
	scope := gen.Name() + "/" + gen.Model()
	log.Debug("Narrative generation enabled", "provider", gen.Name(), "model", gen.Model())
	return llm.NewCachedGenerator(gen, c, cfg.Cache.TTL, scope), gen.Name(), gen.Model()
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
