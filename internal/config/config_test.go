package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "section", cfg.Chunking.Strategy)
	assert.Equal(t, 512, cfg.Chunking.MaxTokens)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, 30*time.Second, cfg.Embeddings.IdleDelay)
	assert.False(t, cfg.Embeddings.Enabled)
	assert.True(t, cfg.Proximity.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(cfg.Vault.Root, ".notesearch"), cfg.Vault.StateDir)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
chunking:
  strategy: paragraph
  max_tokens: 256
vault:
  exclude_folders: [templates, archive]
proximity:
  boost_factor: 0.8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".notesearch.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "paragraph", cfg.Chunking.Strategy)
	assert.Equal(t, 256, cfg.Chunking.MaxTokens)
	assert.Equal(t, []string{"templates", "archive"}, cfg.Vault.ExcludeFolders)
	assert.Equal(t, 0.8, cfg.Proximity.BoostFactor)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "logging:\n  level: warn\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".notesearch.yaml"), []byte(yaml), 0o644))

	t.Setenv("NOTESEARCH_LOG_LEVEL", "debug")
	t.Setenv("NOTESEARCH_EMBEDDINGS_MODEL", "custom-model")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "custom-model", cfg.Embeddings.Model)
}

func TestEmbeddingsRequireAPIKey(t *testing.T) {
	dir := t.TempDir()
	yaml := "embeddings:\n  enabled: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".notesearch.yaml"), []byte(yaml), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "API key")

	t.Setenv("NOTESEARCH_API_KEY", "sk-test")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad strategy", func(c *Config) { c.Chunking.Strategy = "word" }},
		{"bad max tokens", func(c *Config) { c.Chunking.MaxTokens = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"negative boost", func(c *Config) { c.Proximity.BoostFactor = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".notesearch.yaml"), []byte("chunking: ["), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
