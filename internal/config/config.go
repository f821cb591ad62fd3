package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
)

// Config holds all application configuration.
// It is read-only after Load returns.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Expansion  ExpansionConfig  `yaml:"expansion"`
	Suggest    SuggestConfig    `yaml:"suggest"`
}

type ServerConfig struct {
	Port            string   `yaml:"port"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path    string `yaml:"path"`
	Migrate bool   `yaml:"migrate"` // apply embedded migrations on open (local catalogs only)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SimilarityConfig struct {
	StatsTTL        Duration           `yaml:"stats_ttl"`
	VectorCacheSize int                `yaml:"vector_cache_size"`
	Weights         map[string]float64 `yaml:"weights"` // overrides by feature name
}

type ExpansionConfig struct {
	DefaultThreshold   float64  `yaml:"default_threshold"`
	MaxAttempts        int      `yaml:"max_attempts"`
	ContextWindow      int      `yaml:"context_window"`
	CandidatesPerRound int      `yaml:"candidates_per_round"`
	SuggestionTimeout  Duration `yaml:"suggestion_timeout"`
	MaxConcurrentJobs  int      `yaml:"max_concurrent_jobs"`
	JobRetention       int      `yaml:"job_retention"`
}

type SuggestConfig struct {
	Provider string        `yaml:"provider"` // ollama or openai
	Ollama   OllamaConfig  `yaml:"ollama"`
	OpenAI   OpenAIConfig  `yaml:"openai"`
	Breaker  BreakerConfig `yaml:"breaker"`
}

type OllamaConfig struct {
	URL           string `yaml:"url"`
	Model         string `yaml:"model"` // "auto" picks from /api/tags
	ContextWindow int    `yaml:"context_window"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"` // env-only
	Model   string `yaml:"model"`
}

type BreakerConfig struct {
	MaxFailures uint32   `yaml:"max_failures"`
	Timeout     Duration `yaml:"timeout"`
}

// Duration is a time.Duration that parses from YAML strings like "300s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration: defaults, then the YAML file named by
// TUNEFORGE_CONFIG (a missing file is not an error), then env overrides.
func Load() (*Config, error) {
	cfg := Defaults()

	path := getEnv("TUNEFORGE_CONFIG", constants.DefaultConfigPath)
	if err := loadYAMLFile(cfg, path, false); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path, which must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := loadYAMLFile(cfg, path, true); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            constants.DefaultPort,
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Database: DatabaseConfig{
			Path: constants.DefaultDBPath,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Similarity: SimilarityConfig{
			StatsTTL:        Duration(constants.DefaultStatsTTL),
			VectorCacheSize: constants.DefaultVectorCacheSize,
		},
		Expansion: ExpansionConfig{
			DefaultThreshold:   constants.DefaultThreshold,
			MaxAttempts:        constants.DefaultMaxAttempts,
			ContextWindow:      constants.DefaultContextWindow,
			CandidatesPerRound: constants.DefaultCandidatesPerRound,
			SuggestionTimeout:  Duration(constants.DefaultSuggestionTimeout),
			MaxConcurrentJobs:  constants.DefaultMaxConcurrentJobs,
			JobRetention:       constants.DefaultJobRetention,
		},
		Suggest: SuggestConfig{
			Provider: constants.ProviderOllama,
			Ollama: OllamaConfig{
				URL:           constants.DefaultOllamaURL,
				Model:         constants.DefaultOllamaModel,
				ContextWindow: 4096,
			},
			OpenAI: OpenAIConfig{
				Model: constants.DefaultOpenAIModel,
			},
			Breaker: BreakerConfig{
				MaxFailures: constants.DefaultBreakerFailures,
				Timeout:     Duration(constants.DefaultBreakerTimeout),
			},
		},
	}
}

func loadYAMLFile(cfg *Config, path string, mustExist bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Only set vars override.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("PORT"); ok {
		cfg.Server.Port = v
	}
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		cfg.Database.Path = v
	}
	if v, ok := os.LookupEnv("DB_MIGRATE"); ok {
		cfg.Database.Migrate = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	if v, ok := os.LookupEnv("SIMILARITY_STATS_TTL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Similarity.StatsTTL = Duration(d)
		}
	}
	if v, ok := os.LookupEnv("EXPANSION_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Expansion.DefaultThreshold = f
		}
	}
	if v, ok := os.LookupEnv("EXPANSION_MAX_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Expansion.MaxAttempts = n
		}
	}
	if v, ok := os.LookupEnv("SUGGEST_PROVIDER"); ok {
		cfg.Suggest.Provider = v
	}
	if v, ok := os.LookupEnv("OLLAMA_URL"); ok {
		cfg.Suggest.Ollama.URL = v
	}
	if v, ok := os.LookupEnv("OLLAMA_MODEL"); ok {
		cfg.Suggest.Ollama.Model = v
	}
	if v, ok := os.LookupEnv("OPENAI_BASE_URL"); ok {
		cfg.Suggest.OpenAI.BaseURL = v
	}
	if v, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		cfg.Suggest.OpenAI.APIKey = v
	}
	if v, ok := os.LookupEnv("OPENAI_MODEL"); ok {
		cfg.Suggest.OpenAI.Model = v
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Server.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Server.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.Database.Path == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.Log.Level))
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.Log.Format] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.Log.Format))
	}

	if c.Similarity.StatsTTL <= 0 {
		errors = append(errors, "similarity.stats_ttl must be positive")
	}
	if c.Similarity.VectorCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("similarity.vector_cache_size must be at least 1, got: %d", c.Similarity.VectorCacheSize))
	}
	for name, w := range c.Similarity.Weights {
		if _, ok := domain.FeatureByName(name); !ok {
			errors = append(errors, fmt.Sprintf("similarity.weights has unknown feature: %s", name))
		} else if w < 0 {
			errors = append(errors, fmt.Sprintf("similarity.weights.%s must be >= 0, got: %g", name, w))
		}
	}

	if c.Expansion.DefaultThreshold < 0 {
		errors = append(errors, fmt.Sprintf("expansion.default_threshold must be >= 0, got: %g", c.Expansion.DefaultThreshold))
	}
	if c.Expansion.MaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("expansion.max_attempts must be at least 1, got: %d", c.Expansion.MaxAttempts))
	}
	if c.Expansion.ContextWindow < 0 {
		errors = append(errors, "expansion.context_window cannot be negative")
	}
	if c.Expansion.SuggestionTimeout <= 0 {
		errors = append(errors, "expansion.suggestion_timeout must be positive")
	}
	if c.Expansion.MaxConcurrentJobs < 1 {
		errors = append(errors, fmt.Sprintf("expansion.max_concurrent_jobs must be at least 1, got: %d", c.Expansion.MaxConcurrentJobs))
	}

	switch c.Suggest.Provider {
	case constants.ProviderOllama:
		if c.Suggest.Ollama.URL == "" {
			errors = append(errors, "OLLAMA_URL cannot be empty")
		} else if _, err := url.ParseRequestURI(c.Suggest.Ollama.URL); err != nil {
			errors = append(errors, fmt.Sprintf("OLLAMA_URL is not a valid URL: %s", c.Suggest.Ollama.URL))
		}
	case constants.ProviderOpenAI:
		if c.Suggest.OpenAI.APIKey == "" && c.Suggest.OpenAI.BaseURL == "" {
			errors = append(errors, "OPENAI_API_KEY is required unless OPENAI_BASE_URL points at a compatible server")
		}
		if c.Suggest.OpenAI.Model == "" {
			errors = append(errors, "OPENAI_MODEL cannot be empty")
		}
	default:
		errors = append(errors, fmt.Sprintf("SUGGEST_PROVIDER must be one of: ollama, openai, got: %s", c.Suggest.Provider))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
