package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// OllamaProvider calls a local Ollama daemon. Local models are slow, so
// the default timeout is longer than for hosted providers.
type OllamaProvider struct {
	api    *apiClient
	config Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`

	// Only present when done
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	api := newAPIClient("Ollama", config, "http://localhost:11434", 60*time.Second)
	api.errorMessage = func(body []byte) string {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) != nil {
			return ""
		}
		return e.Error
	}
	return &OllamaProvider{api: api, config: config}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks that the daemon answers
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	if err := p.api.do(ctx, http.MethodGet, "/api/tags", nil, nil); err != nil {
		slog.Debug("Ollama availability check failed", "base_url", p.api.baseURL, "error", err)
		return false
	}
	return true
}

// Generate runs one non-streaming /api/generate request
func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := resolveModel(req.Model, p.config.Model, "")
	if model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	system := req.System
	if system == "" {
		system = systemPrompt
	}

	var resp ollamaResponse
	err := p.api.do(ctx, http.MethodPost, "/api/generate", ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: system,
		Options: ollamaOptions{
			Temperature: 0.2,
			NumPredict:  resolveMaxTokens(req.MaxTokens, p.config.MaxTokens),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	// Some models report zero counts; estimate at ~4 chars per token
	tokensUsed := resp.PromptEvalCount + resp.EvalCount
	if tokensUsed == 0 {
		tokensUsed = (len(req.Prompt) + len(resp.Response)) / 4
	}

	return &GenerateResponse{
		Text:       resp.Response,
		Model:      resp.Model,
		TokensUsed: tokensUsed,
	}, nil
}
