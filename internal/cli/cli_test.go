package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/chartrisk/internal/model"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfig_Hierarchy(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  default_rubric: medicare-part-b\nchunking:\n  chunk_size: 800\n"), 0o644))

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })
	t.Setenv("CHARTRISK_CHUNKING_CHUNK_SIZE", "600")
	t.Setenv("CHARTRISK_ANALYSIS_DISCIPLINE", "OT")

	initConfig()
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 600, cfg.Chunking.ChunkSize, "env beats file")
	assert.Equal(t, "medicare-part-b", cfg.Rules.DefaultRubric, "file beats default")
	assert.Equal(t, "OT", cfg.Analysis.Discipline)
	assert.Equal(t, 100, cfg.Chunking.ChunkOverlap, "default kept")
	assert.Equal(t, model.DefaultConfig().Cache.TTL, cfg.Cache.TTL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  mode: deep\n"), 0o644))
	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	initConfig()
	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.mode")
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "anthropic"
	resolveAPIKey(cfg)
	assert.Equal(t, "sk-ant-test", cfg.LLM.APIKey)

	cfg.LLM.APIKey = "explicit"
	resolveAPIKey(cfg)
	assert.Equal(t, "explicit", cfg.LLM.APIKey)
}

func TestNewApp_AnalyzesWithExampleCatalog(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Rules.Paths = []string{filepath.Join("..", "..", "rules", "example.yaml")}
	cfg.Guidelines.Path = filepath.Join("..", "..", "guidelines", "medicare.yaml")
	cfg.Cache.Enabled = false
	t.Setenv("OPENAI_API_KEY", "")

	a, err := newApp(cfg, discard())
	require.NoError(t, err)

	req, err := a.request()
	require.NoError(t, err)
	assert.Equal(t, model.ModeRubric, req.Mode)
	assert.Equal(t, model.DisciplinePT, req.Discipline)

	req.Text = "Pt performed gait training with rolling walker. Pt tolerated session well."
	result := a.orchestrator.Analyze(context.Background(), req)

	assert.Equal(t, model.StateCompleted, result.Status)
	assert.Equal(t, "medicare-part-b", result.Rubric)
	assert.NotEmpty(t, result.Findings)

	var refs []string
	for _, f := range result.Findings {
		refs = append(refs, f.ReferenceID)
	}
	assert.Contains(t, refs, "urn:chartrisk:medicare-part-b:pt-gait-distance")
}

func TestNewApp_RejectsBadChunking(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Chunking.Unit = "words"
	_, err := newApp(cfg, discard())
	assert.Error(t, err)
}

func TestNewApp_MissingCatalogDegrades(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Rules.Paths = []string{filepath.Join(t.TempDir(), "missing.yaml")}
	cfg.Cache.Enabled = false

	a, err := newApp(cfg, discard())
	require.NoError(t, err)
	assert.True(t, a.store.Snapshot().Degraded)
}

func TestCollectPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "sub/b.txt", "sub/c.md"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("note"), 0o644))
	}
	list := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(list, []byte("# notes\n"+filepath.Join(dir, "sub", "c.md")+"\n"+filepath.Join(dir, "a.txt")+"\n"), 0o644))

	paths, err := collectPaths([]string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "**", "*.txt")}, list)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "a.txt"), paths[0])
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "sub", "b.txt"),
		filepath.Join(dir, "sub", "c.md"),
	}, paths)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"notes/pt daily.txt", "pt-daily"},
		{"eval:1?.md", "eval_1_"},
		{"", "note"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}

func TestUniqueSlug(t *testing.T) {
	used := map[string]int{}
	assert.Equal(t, "note", uniqueSlug("note", used))
	assert.Equal(t, "note-2", uniqueSlug("note", used))
	assert.Equal(t, "other", uniqueSlug("other", used))
}

func TestTriggersCommand(t *testing.T) {
	var buf bytes.Buffer
	triggersCmd.SetOut(&buf)
	t.Cleanup(func() { triggersCmd.SetOut(nil) })

	require.NoError(t, triggersCmd.RunE(triggersCmd, nil))
	assert.Contains(t, buf.String(), "skilled-need")
	assert.Contains(t, buf.String(), "Skilled Need Not Justified")
}

func TestRunChecks_Healthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models": []}`))
	}))
	defer server.Close()

	cfg := model.DefaultConfig()
	cfg.Rules.Paths = []string{filepath.Join("..", "..", "rules", "example.yaml")}
	cfg.Guidelines.Path = filepath.Join("..", "..", "guidelines", "medicare.yaml")
	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = server.URL

	var buf bytes.Buffer
	require.NoError(t, runChecks(context.Background(), cfg, &buf, discard()))

	out := buf.String()
	assert.Contains(t, out, "✓ Catalogs: 1 loaded")
	assert.Contains(t, out, "✓ Guidelines:")
	assert.Contains(t, out, "✓ NER: catalog lexicon")
	assert.Contains(t, out, "✓ Narrative: ollama available")
}

func TestRunChecks_NoCatalog(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Rules.Paths = []string{filepath.Join(t.TempDir(), "missing.yaml")}
	cfg.Guidelines.Path = ""
	cfg.LLM.Provider = ""

	var buf bytes.Buffer
	err := runChecks(context.Background(), cfg, &buf, discard())
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ Catalogs: none loaded")
	assert.Contains(t, buf.String(), "⚠ Narrative: no provider configured")
}

func TestShowConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "sk-secret"

	var yamlOut bytes.Buffer
	require.NoError(t, showConfig(&yamlOut, cfg, "yaml"))
	assert.Contains(t, yamlOut.String(), "chunk_size:")
	assert.Contains(t, yamlOut.String(), "llm.api_key: (set)")
	assert.NotContains(t, yamlOut.String(), "sk-secret")

	var jsonOut bytes.Buffer
	require.NoError(t, showConfig(&jsonOut, cfg, "json"))
	assert.Contains(t, jsonOut.String(), `"chunk_size"`)
	assert.NotContains(t, jsonOut.String(), "sk-secret")

	assert.Error(t, showConfig(io.Discard, cfg, "toml"))
}

func TestWriteConfigTemplate_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeConfigTemplate(&buf, model.DefaultConfig()))
	assert.Contains(t, buf.String(), "# chartrisk configuration file")

	var got model.Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, model.DefaultConfig().Chunking, got.Chunking)
	assert.Equal(t, model.DefaultConfig().Rules.Paths, got.Rules.Paths)
}
