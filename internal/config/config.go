package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gamesub/gamesub/internal/domain"
)

// Config holds the gamesub configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Batch     BatchConfig     `yaml:"batch"`
	Cache     CacheConfig     `yaml:"cache"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Embedding providers.
const (
	ProviderOpenAI    = "openai"
	ProviderLangchain = "langchain"
)

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // openai (default) | langchain
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	Algorithm           string `yaml:"algorithm"` // hnsw | flat
	DistanceMetric      string `yaml:"distance_metric"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	MaxAPIBatch         int    `yaml:"max_api_batch"`
	HNSWM               int    `yaml:"hnsw_m"`
	HNSWEFConstruction  int    `yaml:"hnsw_ef_construction"`
	HNSWEFRuntime       int    `yaml:"hnsw_ef_runtime"`

	// RequestDimensions is sent to providers that can shorten vectors; 0 leaves the model default.
	RequestDimensions int `yaml:"request_dimensions"`
}

// SearchConfig holds ranking knobs.
type SearchConfig struct {
	SemanticShare float64 `yaml:"semantic_share"`
	HybridFloor   float64 `yaml:"hybrid_floor"`
	AdaptiveFloor float64 `yaml:"adaptive_floor"`
	Oversample    int     `yaml:"oversample"`
	OversampleCap int     `yaml:"oversample_cap"`
	MinMultiplier float64 `yaml:"min_multiplier"`
	MaxMultiplier float64 `yaml:"max_multiplier"`
}

// BatchConfig holds bulk embedding settings.
type BatchConfig struct {
	Size    int `yaml:"size"`
	Workers int `yaml:"workers"`
}

// CacheConfig holds caching settings.
type CacheConfig struct {
	ResultTTLSec      int  `yaml:"result_ttl_sec"`
	Embeddings        bool `yaml:"embeddings"`
	EmbeddingTTLHours int  `yaml:"embedding_ttl_hours"` // 0 = forever
	// RevisionPollSec is how often the server checks whether the catalog changed.
	RevisionPollSec int `yaml:"revision_poll_sec"`
}

// HistoryConfig holds search history settings.
type HistoryConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	vc := domain.DefaultVectorConfig()
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = vc.Model
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = vc.Dimensions
	}
	if c.Embedding.Algorithm == "" {
		c.Embedding.Algorithm = vc.Algorithm
	}
	if c.Embedding.DistanceMetric == "" {
		c.Embedding.DistanceMetric = vc.DistanceMetric
	}
	if c.Embedding.MaxAPIBatch <= 0 {
		c.Embedding.MaxAPIBatch = 256
	}

	if c.Search.SemanticShare <= 0 {
		c.Search.SemanticShare = 0.7
	}
	if c.Search.HybridFloor <= 0 {
		c.Search.HybridFloor = 0.2
	}
	if c.Search.AdaptiveFloor <= 0 {
		c.Search.AdaptiveFloor = 0.2
	}
	if c.Search.Oversample <= 0 {
		c.Search.Oversample = 3
	}
	if c.Search.OversampleCap <= 0 {
		c.Search.OversampleCap = 60
	}
	if c.Search.MinMultiplier <= 0 {
		c.Search.MinMultiplier = 0.1
	}
	if c.Search.MaxMultiplier <= 0 {
		c.Search.MaxMultiplier = 3.0
	}

	if c.Batch.Size <= 0 {
		c.Batch.Size = 100
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = 4
	}
	if c.Cache.ResultTTLSec <= 0 {
		c.Cache.ResultTTLSec = 300
	}
	if c.Cache.RevisionPollSec <= 0 {
		c.Cache.RevisionPollSec = 15
	}
	if c.History.MaxEntries <= 0 {
		c.History.MaxEntries = 1000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderLangchain:
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderLangchain, c.Embedding.Provider)
	}
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required")
	}
	switch c.Embedding.Algorithm {
	case "hnsw", "flat":
	default:
		return fmt.Errorf("embedding.algorithm must be \"hnsw\" or \"flat\", got %q", c.Embedding.Algorithm)
	}
	switch c.Embedding.DistanceMetric {
	case "cosine", "l2", "ip":
	default:
		return fmt.Errorf("embedding.distance_metric must be cosine, l2 or ip, got %q", c.Embedding.DistanceMetric)
	}
	if d := c.Embedding.RequestDimensions; d > 0 && d != c.Embedding.Dimensions {
		return fmt.Errorf("embedding.request_dimensions (%d) must match embedding.dimensions (%d)",
			d, c.Embedding.Dimensions)
	}
	if c.Search.SemanticShare > 1 {
		return fmt.Errorf("search.semantic_share must be in (0, 1], got %g", c.Search.SemanticShare)
	}
	if c.Search.HybridFloor > 1 || c.Search.AdaptiveFloor > 1 {
		return fmt.Errorf("search floors must be in (0, 1]")
	}
	if c.Search.MinMultiplier > c.Search.MaxMultiplier {
		return fmt.Errorf("search.min_multiplier (%g) exceeds search.max_multiplier (%g)",
			c.Search.MinMultiplier, c.Search.MaxMultiplier)
	}
	return nil
}

// Vector returns the vectorization settings derived from the embedding section.
func (c *Config) Vector() domain.VectorConfig {
	return domain.VectorConfig{
		Model:               c.Embedding.Model,
		Dimensions:          c.Embedding.Dimensions,
		DistanceMetric:      c.Embedding.DistanceMetric,
		Algorithm:           c.Embedding.Algorithm,
		DocumentInstruction: c.Embedding.DocumentInstruction,
		QueryInstruction:    c.Embedding.QueryInstruction,
		HNSWM:               c.Embedding.HNSWM,
		HNSWEFConstruction:  c.Embedding.HNSWEFConstruction,
		HNSWEFRuntime:       c.Embedding.HNSWEFRuntime,
	}
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
