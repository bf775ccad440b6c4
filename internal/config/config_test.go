package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 2000, cfg.Index.MaxTracked)
	assert.True(t, cfg.Index.SkipBinary)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clai.yaml")
	content := []byte("index:\n  max_tracked: 50\ncontext:\n  top_k: 3\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Index.MaxTracked)
	assert.Equal(t, 3, cfg.Context.TopK)
	// Untouched sections keep defaults.
	assert.Equal(t, "2m", cfg.Process.Retention)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CLAI_API_KEY", "test-key")
	t.Setenv("CLAI_EMBEDDING_PROVIDER", "genai")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.Model.APIKey)
	assert.Equal(t, "test-key", cfg.Embedding.GenAIAPIKey)
	assert.Equal(t, "genai", cfg.Embedding.Provider)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, v := range []string{"GEMINI_API_KEY", "CLAI_API_KEY", "CLAI_MODEL", "CLAI_EMBEDDING_PROVIDER", "CLAI_OLLAMA_ENDPOINT", "CLAI_DB"} {
		t.Setenv(v, "")
	}

	path := filepath.Join(t.TempDir(), "sub", "clai.yaml")
	cfg := DefaultConfig()
	cfg.Context.TopK = 9
	cfg.Index.SkipDirs = append(cfg.Index.SkipDirs, "vendor")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config changed across save/load (-saved +loaded):\n%s", diff)
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Process.Retention = "garbage"
	cfg.Process.KillGrace = ""
	cfg.Model.Timeout = "bad"
	assert.Equal(t, "2m0s", cfg.ProcessRetention().String())
	assert.Equal(t, "3s", cfg.KillGrace().String())
	assert.Equal(t, "2m0s", cfg.ModelTimeout().String())
}
