package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/errors"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "ja", cfg.Language)
	assert.Equal(t, "http://localhost:11434/api/chat", cfg.Ollama.APIURL)
	assert.Equal(t, "gpt-oss:20b", cfg.Ollama.Model)
	assert.Equal(t, 3, cfg.Search.QueryCount)
	assert.Equal(t, 3600, cfg.Search.CacheTTLSec)
	assert.Equal(t, 0.7, cfg.Validation.QualityThreshold)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
language: en
ollama:
  model: llama3:8b
search:
  query_count: 5
validation:
  max_validation: 2
`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, "llama3:8b", cfg.Ollama.Model)
	assert.Equal(t, 5, cfg.Search.QueryCount)
	assert.Equal(t, 2, cfg.Validation.MaxValidation)
	// Untouched sections keep their defaults.
	assert.Equal(t, "http://localhost:8080", cfg.Search.SearxNGBaseURL)
}

func TestLoadRejectsInvalidBounds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
validation:
  min_validation: 3
  max_validation: 1
`), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errors.IsInput(err))
}

func TestApplyOverrides(t *testing.T) {
	lang := "en"
	maxVal := 2
	cfg, err := Default().Apply(Overrides{Language: &lang, MaxValidation: &maxVal})
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, 2, cfg.Validation.MaxValidation)
	assert.Equal(t, "gpt-oss:20b", cfg.Ollama.Model)
}

func TestApplyRejectsInvalidOverride(t *testing.T) {
	lang := "fr"
	_, err := Default().Apply(Overrides{Language: &lang})
	require.Error(t, err)
	assert.True(t, errors.IsInput(err))
}

func TestOverridesFromOptions(t *testing.T) {
	o, err := OverridesFromOptions(map[string]any{
		"language":    "en",
		"query_count": 4,
		"max_sources": int64(6),
	})
	require.NoError(t, err)
	require.NotNil(t, o.Language)
	assert.Equal(t, "en", *o.Language)
	assert.Equal(t, 4, *o.QueryCount)
	assert.Equal(t, 6, *o.MaxSources)
}

func TestOverridesFromOptionsRejectsUnknownKey(t *testing.T) {
	_, err := OverridesFromOptions(map[string]any{"parallel": 8})
	require.Error(t, err)
	assert.True(t, errors.IsInput(err))
}

func TestSaveDefaultDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveDefault(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("language: en\n"), 0o644))
	again, err := SaveDefault(dir)
	require.NoError(t, err)
	assert.Equal(t, path, again)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "language: en\n", string(data))
}
