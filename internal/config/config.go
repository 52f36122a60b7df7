package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/storyrag/internal/domain"
)

// Config holds the storyrag service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Retry    RetryConfig    `yaml:"retry"`
	Session  SessionConfig  `yaml:"session"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the redis connection used for the embedding cache and
// budget counters. No addrs runs without redis.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a redis server is configured.
func (d DatabaseConfig) Enabled() bool { return len(d.Addrs) > 0 }

// LLMConfig holds the model provider settings for embeddings and completions.
type LLMConfig struct {
	Provider          string       `yaml:"provider"`
	APIKey            string       `yaml:"api_key"`
	BaseURL           string       `yaml:"base_url"`
	EmbeddingModel    string       `yaml:"embedding_model"`
	Dimensions        int          `yaml:"dimensions"`
	CompletionModel   string       `yaml:"completion_model"`
	Temperature       float32      `yaml:"temperature"`
	MaxTokens         int          `yaml:"max_tokens"`
	TimeoutSec        int          `yaml:"timeout_sec"`
	RequestsPerSecond float64      `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int          `yaml:"burst"`
	MaxConcurrency    int64        `yaml:"max_concurrency"` // 0 = unlimited
	CacheTTLHours     int          `yaml:"cache_ttl_hours"`
	Budget            BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds embedding token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// RAGConfig holds chunking and retrieval settings.
type RAGConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	TopK          int    `yaml:"top_k"`
	ContextBudget int    `yaml:"context_budget"`
	MaxBatchSize  int    `yaml:"max_batch_size"`
	Metric        string `yaml:"metric"`
}

// RetryConfig holds the retry policy for provider calls.
type RetryConfig struct {
	MaxAttempts   int  `yaml:"max_attempts"`
	BaseDelayMs   int  `yaml:"base_delay_ms"`
	MaxDelayMs    int  `yaml:"max_delay_ms"`
	DisableJitter bool `yaml:"disable_jitter"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	TTLMin          int   `yaml:"ttl_min"` // 0 keeps sessions until deleted
	ReapIntervalSec int   `yaml:"reap_interval_sec"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML with ${VAR:-default} expansion, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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
		panic(err)
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
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if c.LLM.Dimensions <= 0 {
		c.LLM.Dimensions = 1536
	}
	if c.LLM.CompletionModel == "" {
		c.LLM.CompletionModel = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.LLM.CacheTTLHours <= 0 {
		c.LLM.CacheTTLHours = 24 * 30
	}

	d := domain.DefaultRAGConfig()
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = d.ChunkSize
		if c.RAG.ChunkOverlap == 0 {
			c.RAG.ChunkOverlap = d.ChunkOverlap
		}
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = d.TopK
	}
	if c.RAG.ContextBudget == 0 {
		c.RAG.ContextBudget = d.ContextBudget
	}
	if c.RAG.MaxBatchSize == 0 {
		c.RAG.MaxBatchSize = d.MaxBatchSize
	}
	if c.RAG.Metric == "" {
		c.RAG.Metric = string(d.Metric)
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = 500
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = 10000
	}

	if c.Session.ReapIntervalSec <= 0 {
		c.Session.ReapIntervalSec = 60
	}
	if c.Session.MaxUploadBytes <= 0 {
		c.Session.MaxUploadBytes = 20 << 20
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "storyrag:"
	}
}

// Validate checks the configuration for correctness.
// Bad chunking settings are reported as domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	switch c.LLM.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf("llm.budget.action must be \"warn\" or \"reject\", got %q", c.LLM.Budget.Action)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}
	if err := c.RAGSettings().Validate(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	return nil
}

// RAGSettings converts the rag and llm sections into pipeline settings.
func (c *Config) RAGSettings() domain.RAGConfig {
	return domain.RAGConfig{
		ChunkSize:     c.RAG.ChunkSize,
		ChunkOverlap:  c.RAG.ChunkOverlap,
		TopK:          c.RAG.TopK,
		ContextBudget: c.RAG.ContextBudget,
		MaxBatchSize:  c.RAG.MaxBatchSize,
		Dimensions:    c.LLM.Dimensions,
		Metric:        domain.Metric(c.RAG.Metric),
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
