package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/chartrisk/internal/cache"
	"github.com/ppiankov/chartrisk/internal/model"
)

// mockProvider is a mock implementation of Provider
type mockProvider struct {
	name      string
	text      string
	err       error
	available bool
	lastReq   GenerateRequest
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &GenerateResponse{Text: m.text, Model: req.Model}, nil
}

func (m *mockProvider) IsAvailable(context.Context) bool { return m.available }

// countingGenerator counts calls through the Generator port
type countingGenerator struct {
	calls int
	text  string
	err   error
}

func (g *countingGenerator) Generate(context.Context, string) (string, error) {
	g.calls++
	return g.text, g.err
}

func TestProviderGenerator_Generate(t *testing.T) {
	provider := &mockProvider{name: "mock", text: "  summary text \n"}
	gen := NewGenerator(provider, Config{Model: "m1", MaxTokens: 321})

	text, err := gen.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "summary text" {
		t.Errorf("text = %q", text)
	}
	if provider.lastReq.Model != "m1" || provider.lastReq.MaxTokens != 321 || provider.lastReq.Prompt != "prompt" {
		t.Errorf("Unexpected request: %+v", provider.lastReq)
	}
	if gen.Name() != "mock" || gen.Model() != "m1" {
		t.Errorf("Name/Model = %s/%s", gen.Name(), gen.Model())
	}
}

func TestProviderGenerator_EmptyCompletion(t *testing.T) {
	gen := NewGenerator(&mockProvider{name: "mock", text: "   "}, Config{})

	if _, err := gen.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("Expected error for empty completion")
	}
}

func TestProviderGenerator_PropagatesRetryable(t *testing.T) {
	gen := NewGenerator(&mockProvider{name: "mock", err: &RetryableError{StatusCode: 503, Message: "down"}}, Config{})

	_, err := gen.Generate(context.Background(), "prompt")
	if !IsRetryable(err) {
		t.Errorf("Expected retryable error, got %v", err)
	}
}

func TestCachedGenerator(t *testing.T) {
	next := &countingGenerator{text: "narrative"}
	gen := NewCachedGenerator(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, "openai/gpt-4o-mini")

	for i := 0; i < 3; i++ {
		text, err := gen.Generate(context.Background(), "same prompt")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if text != "narrative" {
			t.Errorf("text = %q", text)
		}
	}
	if next.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", next.calls)
	}

	if _, err := gen.Generate(context.Background(), "other prompt"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if next.calls != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", next.calls)
	}
}

func TestCachedGenerator_DoesNotCacheErrors(t *testing.T) {
	next := &countingGenerator{err: errors.New("boom")}
	gen := NewCachedGenerator(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, "scope")

	for i := 0; i < 2; i++ {
		if _, err := gen.Generate(context.Background(), "p"); err == nil {
			t.Fatal("Expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", next.calls)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantNil  bool
		wantName string
		wantErr  bool
	}{
		{name: "disabled", config: Config{}, wantNil: true},
		{name: "openai", config: Config{Provider: "openai", APIKey: "k"}, wantName: "openai"},
		{name: "claude alias", config: Config{Provider: "Claude", APIKey: "k"}, wantName: "anthropic"},
		{name: "ollama", config: Config{Provider: "ollama"}, wantName: "ollama"},
		{name: "openai without key", config: Config{Provider: "openai"}, wantErr: true},
		{name: "unknown", config: Config{Provider: "bard"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.wantNil {
				if provider != nil {
					t.Errorf("Expected nil provider, got %v", provider)
				}
				return
			}
			if provider.Name() != tt.wantName {
				t.Errorf("Name = %s, want %s", provider.Name(), tt.wantName)
			}
		})
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(model.LLMConfig{
		Provider:   "ollama",
		Model:      "llama3.1",
		BaseURL:    "http://gpu:11434",
		Timeout:    12,
		MaxTokens:  500,
		HTTPSProxy: "http://proxy:3128",
	})

	if cfg.Provider != "ollama" || cfg.Model != "llama3.1" || cfg.Timeout != 12 || cfg.MaxTokens != 500 {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.HTTPSProxy != "http://proxy:3128" || cfg.BaseURL != "http://gpu:11434" {
		t.Errorf("Unexpected endpoints: %+v", cfg)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != "" {
		t.Errorf("Expected disabled provider by default, got %q", cfg.Provider)
	}
	if cfg.Timeout != 30 || cfg.MaxTokens != 1000 {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestRetryHelpers(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 529} {
		if !RetryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
		if !IsRetryable(StatusError("svc", code, "x")) {
			t.Errorf("StatusError(%d) should be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 403, 404, 422} {
		if RetryableStatus(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}

	wrapped := errors.Join(errors.New("outer"), &RetryableError{StatusCode: 503})
	if !IsRetryable(wrapped) {
		t.Error("IsRetryable must see through wrapping")
	}

	for attempt := 0; attempt < 8; attempt++ {
		d := Backoff(attempt)
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		if d < base || d >= base+base/2 {
			t.Errorf("Backoff(%d) = %v, outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}
