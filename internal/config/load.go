package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"hermes/internal/errors"
)

// Load resolves the effective configuration for workDir. Missing config
// files are not an error; defaults apply. Precedence is defaults, then
// config.yaml, then HERMES_* environment variables.
func Load(workDir string) (Config, error) {
	if workDir == "" {
		workDir = DefaultWorkDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(workDir)

	v.SetEnvPrefix("HERMES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.NewInputError("malformed config: %v", err)
	}
	cfg.WorkDir = workDir

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("language", d.Language)
	v.SetDefault("ollama.api_url", d.Ollama.APIURL)
	v.SetDefault("ollama.model", d.Ollama.Model)
	v.SetDefault("ollama.timeout", d.Ollama.TimeoutSec)
	v.SetDefault("ollama.retry", d.Ollama.Retry)
	v.SetDefault("ollama.temperature", d.Ollama.Temperature)
	v.SetDefault("search.searxng_base_url", d.Search.SearxNGBaseURL)
	v.SetDefault("search.redis_url", d.Search.RedisURL)
	v.SetDefault("search.min_search", d.Search.MinSources)
	v.SetDefault("search.max_search", d.Search.MaxSources)
	v.SetDefault("search.query_count", d.Search.QueryCount)
	v.SetDefault("search.cache_ttl", d.Search.CacheTTLSec)
	v.SetDefault("search.parallelism", d.Search.Parallelism)
	v.SetDefault("search.retry", d.Search.Retry)
	v.SetDefault("validation.min_validation", d.Validation.MinValidation)
	v.SetDefault("validation.max_validation", d.Validation.MaxValidation)
	v.SetDefault("validation.quality_threshold", d.Validation.QualityThreshold)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("sandbox.enabled", d.Sandbox.Enabled)
	v.SetDefault("sandbox.image", d.Sandbox.Image)
}

// SaveDefault writes the built-in configuration to <workDir>/config.yaml.
// An existing file is left untouched.
func SaveDefault(workDir string) (string, error) {
	path := filepath.Join(workDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	cfg := Default()
	cfg.WorkDir = ""

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}
