// Package config loads the immutable run configuration from
// <workdir>/config.yaml with HERMES_* environment overrides. Services
// receive a Config value at construction; there is no process-wide
// singleton.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hermes/internal/errors"
)

// OllamaConfig configures the local LLM endpoint.
type OllamaConfig struct {
	APIURL      string  `yaml:"api_url" mapstructure:"api_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	TimeoutSec  int     `yaml:"timeout" mapstructure:"timeout"`
	Retry       int     `yaml:"retry" mapstructure:"retry"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// Timeout returns the per-call LLM timeout.
func (c OllamaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// SearchConfig configures the SearxNG backend and the hit cache.
type SearchConfig struct {
	SearxNGBaseURL string `yaml:"searxng_base_url" mapstructure:"searxng_base_url"`
	RedisURL       string `yaml:"redis_url" mapstructure:"redis_url"`
	MinSources     int    `yaml:"min_search" mapstructure:"min_search"`
	MaxSources     int    `yaml:"max_search" mapstructure:"max_search"`
	QueryCount     int    `yaml:"query_count" mapstructure:"query_count"`
	CacheTTLSec    int    `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	Parallelism    int    `yaml:"parallelism" mapstructure:"parallelism"`
	Retry          int    `yaml:"retry" mapstructure:"retry"`
}

// CacheTTL returns the search cache TTL.
func (c SearchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// ValidationConfig bounds the validation loop.
type ValidationConfig struct {
	MinValidation    int     `yaml:"min_validation" mapstructure:"min_validation"`
	MaxValidation    int     `yaml:"max_validation" mapstructure:"max_validation"`
	QualityThreshold float64 `yaml:"quality_threshold" mapstructure:"quality_threshold"`
}

// LoggingConfig selects the minimum level written to the log files.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// SandboxConfig configures the optional containerized content normalizer.
type SandboxConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Image   string `yaml:"image" mapstructure:"image"`
}

// Config is the effective, immutable configuration for a run.
type Config struct {
	WorkDir    string           `yaml:"work_dir,omitempty" mapstructure:"work_dir"`
	Language   string           `yaml:"language" mapstructure:"language"`
	Ollama     OllamaConfig     `yaml:"ollama" mapstructure:"ollama"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Sandbox    SandboxConfig    `yaml:"sandbox" mapstructure:"sandbox"`
}

// DefaultWorkDir returns ~/.hermes, or a relative fallback when the home
// directory cannot be resolved.
func DefaultWorkDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hermes"
	}
	return filepath.Join(home, ".hermes")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		WorkDir:  DefaultWorkDir(),
		Language: "ja",
		Ollama: OllamaConfig{
			APIURL:      "http://localhost:11434/api/chat",
			Model:       "gpt-oss:20b",
			TimeoutSec:  60,
			Retry:       3,
			Temperature: 0.7,
		},
		Search: SearchConfig{
			SearxNGBaseURL: "http://localhost:8080",
			RedisURL:       "redis://localhost:6379/0",
			MinSources:     3,
			MaxSources:     8,
			QueryCount:     3,
			CacheTTLSec:    3600,
			Parallelism:    4,
			Retry:          3,
		},
		Validation: ValidationConfig{
			MinValidation:    1,
			MaxValidation:    3,
			QualityThreshold: 0.7,
		},
		Logging: LoggingConfig{Level: "INFO"},
		Sandbox: SandboxConfig{Enabled: true, Image: "python:3.11-slim"},
	}
}

// Validate checks the cross-field constraints the pipeline relies on.
func (c Config) Validate() error {
	if c.Language != "ja" && c.Language != "en" {
		return errors.NewInputError("language must be ja or en, got %q", c.Language)
	}
	if c.Search.QueryCount < 1 {
		return errors.NewInputError("query_count must be >= 1, got %d", c.Search.QueryCount)
	}
	if c.Search.MinSources < 0 {
		return errors.NewInputError("min_search must be >= 0, got %d", c.Search.MinSources)
	}
	if c.Search.MaxSources < c.Search.MinSources {
		return errors.NewInputError("max_search (%d) must be >= min_search (%d)",
			c.Search.MaxSources, c.Search.MinSources)
	}
	if c.Validation.MinValidation < 0 {
		return errors.NewInputError("min_validation must be >= 0, got %d", c.Validation.MinValidation)
	}
	if c.Validation.MaxValidation < c.Validation.MinValidation {
		return errors.NewInputError("max_validation (%d) must be >= min_validation (%d)",
			c.Validation.MaxValidation, c.Validation.MinValidation)
	}
	if c.Validation.QualityThreshold < 0 || c.Validation.QualityThreshold > 1 {
		return errors.NewInputError("quality_threshold must be within [0,1], got %v",
			c.Validation.QualityThreshold)
	}
	return nil
}

// Overrides carries per-run option overrides from CLI flags or task files.
// Nil fields leave the base configuration untouched.
type Overrides struct {
	Language      *string
	Model         *string
	MinValidation *int
	MaxValidation *int
	QueryCount    *int
	MinSources    *int
	MaxSources    *int
}

// Apply returns a copy of c with the overrides applied and validated.
func (c Config) Apply(o Overrides) (Config, error) {
	if o.Language != nil {
		c.Language = *o.Language
	}
	if o.Model != nil {
		c.Ollama.Model = *o.Model
	}
	if o.MinValidation != nil {
		c.Validation.MinValidation = *o.MinValidation
	}
	if o.MaxValidation != nil {
		c.Validation.MaxValidation = *o.MaxValidation
	}
	if o.QueryCount != nil {
		c.Search.QueryCount = *o.QueryCount
	}
	if o.MinSources != nil {
		c.Search.MinSources = *o.MinSources
	}
	if o.MaxSources != nil {
		c.Search.MaxSources = *o.MaxSources
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// OverridesFromOptions converts a task file options map into Overrides.
// Unknown keys are rejected so malformed task files surface early.
func OverridesFromOptions(options map[string]any) (Overrides, error) {
	var o Overrides
	for key, value := range options {
		switch key {
		case "language":
			s, ok := value.(string)
			if !ok {
				return Overrides{}, errors.NewInputError("option language must be a string")
			}
			o.Language = &s
		case "model":
			s, ok := value.(string)
			if !ok {
				return Overrides{}, errors.NewInputError("option model must be a string")
			}
			o.Model = &s
		case "min_validation", "max_validation", "query_count", "min_sources", "max_sources":
			n, err := asInt(value)
			if err != nil {
				return Overrides{}, errors.NewInputError("option %s must be an integer", key)
			}
			switch key {
			case "min_validation":
				o.MinValidation = &n
			case "max_validation":
				o.MaxValidation = &n
			case "query_count":
				o.QueryCount = &n
			case "min_sources":
				o.MinSources = &n
			case "max_sources":
				o.MaxSources = &n
			}
		default:
			return Overrides{}, errors.NewInputError("unknown task option %q", key)
		}
	}
	return o, nil
}

func asInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", value)
	}
}
