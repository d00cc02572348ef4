package model

import (
	"fmt"
	"time"
)

// Config is the complete chartrisk configuration.
// Field tags serve both yaml.v3 rendering and viper unmarshalling.
type Config struct {
	Rules        RulesConfig        `yaml:"rules" mapstructure:"rules"`
	Chunking     ChunkingConfig     `yaml:"chunking" mapstructure:"chunking"`
	Analysis     AnalysisConfig     `yaml:"analysis" mapstructure:"analysis"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	NER          NERConfig          `yaml:"ner" mapstructure:"ner"`
	Guidelines   GuidelinesConfig   `yaml:"guidelines" mapstructure:"guidelines"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// RulesConfig locates the rule catalogs (one file per rubric)
type RulesConfig struct {
	Paths          []string `yaml:"paths" mapstructure:"paths"`
	DefaultRubric  string   `yaml:"default_rubric" mapstructure:"default_rubric"`
	Watch          bool     `yaml:"watch" mapstructure:"watch"`
	DebounceMillis int      `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// ChunkingConfig controls the chunker
type ChunkingConfig struct {
	ChunkSize    int      `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	Unit         string   `yaml:"unit" mapstructure:"unit"` // chars or tokens
	Sections     bool     `yaml:"sections" mapstructure:"sections"`
	Headers      []string `yaml:"headers,omitempty" mapstructure:"headers"`
}

// AnalysisConfig holds request defaults
type AnalysisConfig struct {
	Mode       string `yaml:"mode" mapstructure:"mode"`
	Discipline string `yaml:"discipline" mapstructure:"discipline"`
	Strict     bool   `yaml:"strict" mapstructure:"strict"`
}

// ScoringConfig holds per-severity penalty weights
type ScoringConfig struct {
	HighWeight     int `yaml:"high_weight" mapstructure:"high_weight"`
	ModerateWeight int `yaml:"moderate_weight" mapstructure:"moderate_weight"`
	LowWeight      int `yaml:"low_weight" mapstructure:"low_weight"`
}

// NERConfig configures the entity-extraction collaborator.
// An empty endpoint selects the built-in catalog lexicon.
type NERConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// GuidelinesConfig configures hybrid guideline retrieval
type GuidelinesConfig struct {
	Path           string  `yaml:"path" mapstructure:"path"`
	TopK           int     `yaml:"top_k" mapstructure:"top_k"`
	LexicalWeight  float64 `yaml:"lexical_weight" mapstructure:"lexical_weight"`
	SemanticWeight float64 `yaml:"semantic_weight" mapstructure:"semantic_weight"`
	EmbeddingModel string  `yaml:"embedding_model" mapstructure:"embedding_model"`
	Timeout        int     `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// LLMConfig configures the narrative-generation collaborator
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`

	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig configures collaborator response caching
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	ChunkWorkers int `yaml:"chunk_workers" mapstructure:"chunk_workers"` // Per-request collaborator calls
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"` // Documents in batch mode
}

// RateLimitingConfig throttles calls to each external collaborator
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`

	// Per-collaborator requests per second (ner, guideline, narrative); <= 0 is unlimited
	Overrides map[string]float64 `yaml:"overrides,omitempty" mapstructure:"overrides"`
}

// ServerConfig configures the HTTP transport
type ServerConfig struct {
	Addr          string `yaml:"addr" mapstructure:"addr"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	EnableMetrics bool   `yaml:"enable_metrics" mapstructure:"enable_metrics"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	Pretty  bool `yaml:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Rules: RulesConfig{
			Paths:          []string{"rules/example.yaml"},
			DebounceMillis: 500,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    1000,
			ChunkOverlap: 100,
			Unit:         "chars",
			Sections:     true,
		},
		Analysis: AnalysisConfig{
			Mode:       string(ModeRubric),
			Discipline: string(DisciplinePT),
		},
		Scoring: ScoringConfig{
			HighWeight:     20,
			ModerateWeight: 10,
			LowWeight:      3,
		},
		NER: NERConfig{
			Timeout: 10,
		},
		Guidelines: GuidelinesConfig{
			TopK:           3,
			LexicalWeight:  0.5,
			SemanticWeight: 0.5,
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        10,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 1000,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "",
			TTL:     24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			ChunkWorkers: 4,
			BatchWorkers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
			MaxRetries:        2,
		},
		Server: ServerConfig{
			Addr:          ":8085",
			MaxBodyBytes:  5 << 20,
			EnableMetrics: true,
		},
		Output: OutputConfig{
			Pretty: true,
		},
	}
}

// Validate rejects configurations that would fail at construction time
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap (%d) must be in [0, chunk_size=%d)", c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	if !AnalysisMode(c.Analysis.Mode).Valid() {
		return fmt.Errorf("analysis.mode %q is not one of rubric, hybrid, ai", c.Analysis.Mode)
	}
	if c.Analysis.Discipline != "" {
		if _, err := ParseDiscipline(c.Analysis.Discipline); err != nil {
			return fmt.Errorf("analysis.discipline: %w", err)
		}
	}
	if c.Scoring.HighWeight < 0 || c.Scoring.ModerateWeight < 0 || c.Scoring.LowWeight < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if c.Guidelines.LexicalWeight < 0 || c.Guidelines.SemanticWeight < 0 {
		return fmt.Errorf("guideline fusion weights must be non-negative")
	}
	return nil
}
