package guideline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/chartrisk/internal/cache"
	"github.com/ppiankov/chartrisk/internal/llm"
)

// embedBatchSize bounds inputs per embedding request
const embedBatchSize = 64

// Embedder turns texts into dense vectors, one per input, in order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder. model defaults to text-embedding-3-small.
func NewOpenAIEmbedder(apiKey, baseURL, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for embeddings")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Model returns the embedding model name
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Embed implements Embedder
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch := texts[start:end]

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, llm.OpenAIError(err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(batch))
		}

		sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
		for _, d := range resp.Data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}

// CachedEmbedder memoizes vectors per text
type CachedEmbedder struct {
	next  Embedder
	cache cache.Cache
	ttl   time.Duration
	scope string
}

// NewCachedEmbedder wraps next; scope is usually the embedding model name
func NewCachedEmbedder(next Embedder, c cache.Cache, ttl time.Duration, scope string) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: c, ttl: ttl, scope: scope}
}

// Embed implements Embedder, calling next only for cache misses
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if data, ok := e.cache.Get(cache.CacheKey("embedding", e.scope, t)); ok {
			var vec []float32
			if err := json.Unmarshal(data, &vec); err == nil {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := e.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(vectors), len(missTexts))
	}
	for k, i := range missIdx {
		out[i] = vectors[k]
		if data, err := json.Marshal(vectors[k]); err == nil {
			_ = e.cache.Set(cache.CacheKey("embedding", e.scope, texts[i]), data, e.ttl)
		}
	}
	return out, nil
}

// Semantic ranks passages by cosine similarity to the query.
// Corpus vectors are computed on first use; a failed attempt is retried on the next call.
type Semantic struct {
	passages []Passage
	embedder Embedder

	mu      sync.Mutex
	vectors [][]float32
}

// NewSemantic creates a semantic retriever over corpus
func NewSemantic(corpus *Corpus, embedder Embedder) *Semantic {
	s := &Semantic{embedder: embedder}
	if corpus != nil {
		s.passages = corpus.Passages
	}
	return s
}

func (s *Semantic) corpusVectors(ctx context.Context) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vectors != nil {
		return s.vectors, nil
	}

	texts := make([]string, len(s.passages))
	for i, p := range s.passages {
		texts[i] = p.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed corpus: got %d vectors for %d passages", len(vectors), len(texts))
	}
	s.vectors = vectors
	return vectors, nil
}

// Retrieve implements Retriever
func (s *Semantic) Retrieve(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if len(s.passages) == 0 {
		return nil, nil
	}

	vectors, err := s.corpusVectors(ctx)
	if err != nil {
		return nil, err
	}

	q, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(q) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(q))
	}

	out := make([]Snippet, 0, len(s.passages))
	for i, p := range s.passages {
		out = append(out, Snippet{
			Snippet:  p.Text,
			SourceID: p.ID,
			Score:    cosine(q[0], vectors[i]),
		})
	}
	return rank(out, topK), nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
