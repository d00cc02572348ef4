package guideline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chartrisk/internal/cache"
	"github.com/ppiankov/chartrisk/internal/llm"
)

const testCorpus = `
name: test
passages:
  - id: goals
    text: Goals must be measurable and functional with a baseline.
  - id: safety
    text: Document fall risk, balance and safety awareness during gait.
  - id: units
    text: Record total treatment minutes and billed units.
  - id: empty
    text: "   "
`

func corpus(t *testing.T) *Corpus {
	t.Helper()
	c, err := ParseCorpus([]byte(testCorpus))
	require.NoError(t, err)
	return c
}

// fakeRetriever returns canned snippets or an error
type fakeRetriever struct {
	snippets []Snippet
	err      error
}

func (f fakeRetriever) Retrieve(context.Context, string, int) ([]Snippet, error) {
	return f.snippets, f.err
}

// fakeEmbedder maps texts to fixed vectors and counts calls
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
	inputs  int
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.inputs += len(texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func TestParseCorpus(t *testing.T) {
	c := corpus(t)
	assert.Equal(t, "test", c.Name)
	assert.Equal(t, 3, c.Len(), "blank passages are dropped")

	_, err := ParseCorpus([]byte("passages:\n  - id: a\n    text: x\n  - id: a\n    text: y\n"))
	assert.ErrorContains(t, err, "duplicate id")

	_, err = ParseCorpus([]byte("passages:\n  - text: x\n"))
	assert.ErrorContains(t, err, "missing id")

	_, err = ParseCorpus([]byte("passages: [oops"))
	assert.Error(t, err)
}

func TestLoadCorpus_Example(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	path := filepath.Join(filepath.Dir(file), "..", "..", "guidelines", "medicare.yaml")

	c, err := LoadCorpus(path)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Len())

	_, err = LoadCorpus(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLexical_Retrieve(t *testing.T) {
	lex := NewLexical(corpus(t))

	got, err := lex.Retrieve(context.Background(), "measurable functional goals", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "goals", got[0].SourceID)
	assert.Equal(t, 3, got[0].MatchCount)
	assert.Len(t, got, 1, "passages without shared terms are omitted")

	got, err = lex.Retrieve(context.Background(), "balance minutes", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, s := range got {
		assert.Greater(t, s.Score, 0.0)
	}

	got, err = lex.Retrieve(context.Background(), "the and of", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLexical_TopKAndTies(t *testing.T) {
	c, err := ParseCorpus([]byte("passages:\n  - id: b\n    text: gait\n  - id: a\n    text: gait\n  - id: c\n    text: gait\n"))
	require.NoError(t, err)

	got, err := NewLexical(c).Retrieve(context.Background(), "gait", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SourceID)
	assert.Equal(t, "b", got[1].SourceID)
}

func TestSemantic_Retrieve(t *testing.T) {
	c := corpus(t)
	emb := &fakeEmbedder{vectors: map[string][]float32{
		c.Passages[0].Text: {1, 0, 0},
		c.Passages[1].Text: {0, 1, 0},
		c.Passages[2].Text: {0.7, 0.7, 0},
		"measurable goals":  {1, 0.1, 0},
	}}
	sem := NewSemantic(c, emb)

	got, err := sem.Retrieve(context.Background(), "measurable goals", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "goals", got[0].SourceID)
	assert.Equal(t, "units", got[1].SourceID)
	assert.Zero(t, got[0].MatchCount)

	_, err = sem.Retrieve(context.Background(), "measurable goals", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, emb.calls, "corpus is embedded once")
}

func TestSemantic_RetriesCorpusAfterFailure(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("down")}
	sem := NewSemantic(corpus(t), emb)

	_, err := sem.Retrieve(context.Background(), "q", 1)
	require.Error(t, err)

	emb.err = nil
	got, err := sem.Retrieve(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCachedEmbedder(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"a": {1, 2}, "b": {3, 4}}}
	cached := NewCachedEmbedder(emb, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, "m")

	first, err := cached.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), []string{"b", "a", "c"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, first)
	assert.Equal(t, [][]float32{{3, 4}, {1, 2}, {0, 0, 1}}, second)
	assert.Equal(t, 2, emb.calls)
	assert.Equal(t, 3, emb.inputs, "only misses reach the embedder")
}

func TestHybrid_Fusion(t *testing.T) {
	lex := fakeRetriever{snippets: []Snippet{
		{SourceID: "a", Score: 10, MatchCount: 3},
		{SourceID: "b", Score: 5, MatchCount: 2},
		{SourceID: "c", Score: 0, MatchCount: 1},
	}}
	sem := fakeRetriever{snippets: []Snippet{
		{SourceID: "c", Score: 1},
		{SourceID: "b", Score: 0.5},
		{SourceID: "d", Score: 0},
	}}

	got, err := NewHybrid(lex, sem, 0.5, 0.5).Retrieve(context.Background(), "q", 10)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, s := range got {
		ids[i] = s.SourceID
	}
	// a: 0.5*1 + 0 = 0.5, b: 0.5*0.5 + 0.5*0.5 = 0.5, c: 0 + 0.5*1 = 0.5, d: 0
	// ties broken by match count desc
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.InDelta(t, 0.5, got[0].Score, 1e-9)
	assert.Equal(t, 3, got[0].MatchCount)
	assert.Equal(t, 0, got[3].MatchCount)
	for _, s := range got {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}
}

func TestHybrid_TopKAndDedupe(t *testing.T) {
	lex := fakeRetriever{snippets: []Snippet{{SourceID: "a", Score: 2}, {SourceID: "a", Score: 1}, {SourceID: "b", Score: 1}}}
	sem := fakeRetriever{snippets: []Snippet{{SourceID: "a", Score: 1}}}

	got, err := NewHybrid(lex, sem, 0.5, 0.5).Retrieve(context.Background(), "q", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].SourceID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestHybrid_Partial(t *testing.T) {
	ok := fakeRetriever{snippets: []Snippet{{SourceID: "x", Score: 3}, {SourceID: "y", Score: 1}}}
	bad := fakeRetriever{err: errors.New("embedding service down")}

	got, err := NewHybrid(ok, bad, 0.5, 0.5).Retrieve(context.Background(), "q", 5)
	require.ErrorIs(t, err, ErrPartial)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].SourceID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)

	got, err = NewHybrid(bad, ok, 0.5, 0.5).Retrieve(context.Background(), "q", 5)
	require.ErrorIs(t, err, ErrPartial)
	assert.Len(t, got, 2)

	got, err = NewHybrid(bad, bad, 0.5, 0.5).Retrieve(context.Background(), "q", 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPartial)
	assert.Nil(t, got)
}

func TestHybrid_MissingSideIsNotPartial(t *testing.T) {
	lex := fakeRetriever{snippets: []Snippet{{SourceID: "x", Score: 3}}}

	got, err := NewHybrid(lex, nil, 0.5, 0.5).Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = NewHybrid(nil, nil, 0, 0).Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHybrid_Deterministic(t *testing.T) {
	h := NewHybrid(NewLexical(corpus(t)), nil, 0.5, 0.5)
	first, err := h.Retrieve(context.Background(), "gait safety minutes goals", 3)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := h.Retrieve(context.Background(), "gait safety minutes goals", 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		resp := openai.EmbeddingResponse{Object: "list", Model: openai.SmallEmbedding3}
		// Reverse order to check the embedder sorts by index
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, openai.Embedding{Object: "embedding", Index: i, Embedding: []float32{float32(i), 1}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	emb, err := NewOpenAIEmbedder("test-key", server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", emb.Model())

	got, err := emb.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, got)
}

func TestOpenAIEmbedder_RateLimitIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	emb, err := NewOpenAIEmbedder("test-key", server.URL, "text-embedding-3-small")
	require.NoError(t, err)

	_, err = emb.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, llm.IsRetryable(err))
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "", "")
	assert.Error(t, err)
}
