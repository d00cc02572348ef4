package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate returns a completion for a single prompt
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for one completion
type GenerateRequest struct {
	Prompt string

	// System is an optional system prompt (if empty, use default)
	System string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// GenerateResponse contains the completion output
type GenerateResponse struct {
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Generator is the narrative port used by the orchestrator.
// Implementations are best-effort; callers treat any error as a degraded stage.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 1000,
	}
}

// systemPrompt frames every narrative request
const systemPrompt = "You are a clinical documentation compliance reviewer for PT, OT and SLP notes. " +
	"You describe documentation gaps and never give clinical advice."

// ProviderGenerator adapts a Provider to the Generator port
type ProviderGenerator struct {
	provider  Provider
	model     string
	maxTokens int
}

// NewGenerator wraps provider with the configured model and token limit
func NewGenerator(provider Provider, config Config) *ProviderGenerator {
	return &ProviderGenerator{
		provider:  provider,
		model:     config.Model,
		maxTokens: config.MaxTokens,
	}
}

// Name returns the underlying provider name
func (g *ProviderGenerator) Name() string {
	return g.provider.Name()
}

// Model returns the configured model, possibly empty for provider default
func (g *ProviderGenerator) Model() string {
	return g.model
}

// Generate implements Generator
func (g *ProviderGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.provider.Generate(ctx, GenerateRequest{
		Prompt:    prompt,
		Model:     g.model,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%s returned an empty completion", g.provider.Name())
	}
	return text, nil
}

// newProxyFunc picks explicit proxies when configured, falling back to the environment
func newProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

func resolveModel(reqModel, configModel, fallback string) string {
	if reqModel != "" {
		return reqModel
	}
	if configModel != "" {
		return configModel
	}
	return fallback
}

func resolveMaxTokens(reqMax, configMax int) int {
	if reqMax > 0 {
		return reqMax
	}
	if configMax > 0 {
		return configMax
	}
	return 1000
}
