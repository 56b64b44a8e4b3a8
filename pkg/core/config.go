package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oceanbase/powermem-mcp/pkg/intelligence"
	"github.com/oceanbase/powermem-mcp/pkg/llm"
)

// Default values applied by LoadConfigFromEnv and Config.withDefaults.
const (
	DefaultSearchLimit      = 10
	DefaultEmbedRetries     = 2
	DefaultEmbedRetryDelay  = 200 // milliseconds
	DefaultVectorStore      = "chromem"
	DefaultEmbedderProvider = "openai"
)

// Config contains the complete configuration for a powermem-mcp client.
//
// It includes settings for:
//   - Embedding provider (for vector generation) and its cache
//   - Vector store (for memory persistence)
//   - LLM provider (optional, for generalized memories)
//   - Retrieval, consolidation and logging
//
// Example:
//
//	config := &core.Config{
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-3-small",
//	        Dimensions: 1536,
//	    },
//	    VectorStore: core.VectorStoreConfig{
//	        Provider: "chromem",
//	        Chromem:  core.ChromemConfig{Path: "./data/memories"},
//	    },
//	}
type Config struct {
	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder" yaml:"embedder"`

	// VectorStore contains vector store configuration.
	VectorStore VectorStoreConfig `json:"vector_store" yaml:"vector_store"`

	// LLM contains LLM provider configuration (optional).
	LLM *LLMConfig `json:"llm,omitempty" yaml:"llm,omitempty"`

	// Cache configures the embedding cache.
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Retrieval configures search and the embedding retry policy.
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`

	// Consolidation holds the consolidation thresholds.
	Consolidation intelligence.Policy `json:"consolidation" yaml:"consolidation"`

	// Log configures the logger.
	Log LogConfig `json:"log" yaml:"log"`

	// ProjectName is the project used when a call names no memory level.
	// Empty means the base name of the working directory.
	ProjectName string `json:"project_name,omitempty" yaml:"project_name,omitempty"`
}

// LLMConfig contains configuration for the LLM provider.
//
// Supported providers: openai, anthropic, deepseek, qwen, ollama
type LLMConfig struct {
	// Provider is the LLM provider name.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the LLM provider.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the model name to use (e.g., "gpt-4o-mini", "deepseek-chat").
	Model string `json:"model" yaml:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, qwen, mock
type EmbedderConfig struct {
	// Provider is the embedding provider name.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-3-small", "text-embedding-v4").
	Model string `json:"model" yaml:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536, 1024).
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// VectorStoreConfig contains configuration for the vector store.
//
// Supported providers: chromem, sqlite, postgres, oceanbase. Only the section
// matching Provider is read.
type VectorStoreConfig struct {
	Provider  string         `json:"provider" yaml:"provider"`
	Chromem   ChromemConfig  `json:"chromem,omitempty" yaml:"chromem,omitempty"`
	SQLite    SQLiteConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres  DatabaseConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
	OceanBase DatabaseConfig `json:"oceanbase,omitempty" yaml:"oceanbase,omitempty"`
}

// ChromemConfig configures the embedded chromem store.
type ChromemConfig struct {
	// Path is the persistence directory; empty keeps memories in process memory.
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Compress bool   `json:"compress,omitempty" yaml:"compress,omitempty"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path string `json:"path" yaml:"path"`
}

// DatabaseConfig configures a networked SQL store.
type DatabaseConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	SSLMode  string `json:"ssl_mode,omitempty" yaml:"ssl_mode,omitempty"`
}

// CacheConfig configures the embedding cache.
type CacheConfig struct {
	// Size is the maximum number of cached vectors; <= 0 selects the default.
	Size int `json:"size" yaml:"size"`
}

// RetrievalConfig configures search defaults and embedding retries.
type RetrievalConfig struct {
	// DefaultLimit is the search limit used when a call passes none.
	DefaultLimit int `json:"default_limit" yaml:"default_limit"`

	// EmbedRetries is how many times a failed embedding call is retried.
	EmbedRetries int `json:"embed_retries" yaml:"embed_retries"`

	// EmbedRetryDelayMs is the linear backoff step in milliseconds.
	EmbedRetryDelayMs int `json:"embed_retry_delay_ms" yaml:"embed_retry_delay_ms"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Format is console or json.
	Format string `json:"format" yaml:"format"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (chromem, sqlite, postgres, oceanbase)
//   - CHROMEM_PATH, CHROMEM_COMPRESS, SQLITE_PATH
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD, OCEANBASE_DATABASE
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMS
//   - EMBEDDING_CACHE_SIZE, EMBEDDING_RETRIES, EMBEDDING_RETRY_DELAY_MS
//   - LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL (all optional)
//   - CONSOLIDATION_MERGE_THRESHOLD, CONSOLIDATION_UPDATE_THRESHOLD,
//     CONSOLIDATION_CLUSTER_SIZE, CONSOLIDATION_CANDIDATES
//   - SEARCH_DEFAULT_LIMIT, LOG_LEVEL, LOG_FORMAT, PROJECT_NAME
//
// Returns a Config instance, or an error if a numeric variable does not parse.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	p := &envParser{}

	config := &Config{
		Embedder: EmbedderConfig{
			Provider:   getEnvOrDefault("EMBEDDING_PROVIDER", DefaultEmbedderProvider),
			APIKey:     getEnvOrDefault("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions: p.int("EMBEDDING_DIMS", 0),
		},
		VectorStore: VectorStoreConfig{
			Provider: getEnvOrDefault("DATABASE_PROVIDER", DefaultVectorStore),
			Chromem: ChromemConfig{
				Path:     os.Getenv("CHROMEM_PATH"),
				Compress: os.Getenv("CHROMEM_COMPRESS") == "true",
			},
			SQLite: SQLiteConfig{
				Path: getEnvOrDefault("SQLITE_PATH", "./powermem.db"),
			},
			Postgres: DatabaseConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     p.int("POSTGRES_PORT", 5432),
				User:     getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: os.Getenv("POSTGRES_PASSWORD"),
				DBName:   getEnvOrDefault("POSTGRES_DATABASE", "powermem"),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
			},
			OceanBase: DatabaseConfig{
				Host:     getEnvOrDefault("OCEANBASE_HOST", "127.0.0.1"),
				Port:     p.int("OCEANBASE_PORT", 2881),
				User:     getEnvOrDefault("OCEANBASE_USER", "root@sys"),
				Password: os.Getenv("OCEANBASE_PASSWORD"),
				DBName:   getEnvOrDefault("OCEANBASE_DATABASE", "powermem"),
			},
		},
		Cache: CacheConfig{
			Size: p.int("EMBEDDING_CACHE_SIZE", 0),
		},
		Retrieval: RetrievalConfig{
			DefaultLimit:      p.int("SEARCH_DEFAULT_LIMIT", DefaultSearchLimit),
			EmbedRetries:      p.int("EMBEDDING_RETRIES", DefaultEmbedRetries),
			EmbedRetryDelayMs: p.int("EMBEDDING_RETRY_DELAY_MS", DefaultEmbedRetryDelay),
		},
		Consolidation: intelligence.Policy{
			MergeThreshold:  p.float("CONSOLIDATION_MERGE_THRESHOLD", intelligence.DefaultMergeThreshold),
			UpdateThreshold: p.float("CONSOLIDATION_UPDATE_THRESHOLD", intelligence.DefaultUpdateThreshold),
			ClusterSize:     p.int("CONSOLIDATION_CLUSTER_SIZE", intelligence.DefaultClusterSize),
			Candidates:      p.int("CONSOLIDATION_CANDIDATES", intelligence.DefaultCandidates),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
		ProjectName: os.Getenv("PROJECT_NAME"),
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM = &LLMConfig{
			Provider: provider,
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    os.Getenv("LLM_MODEL"),
			BaseURL:  getEnvOrDefault("LLM_BASE_URL", llm.OpenAICompatibleBaseURLs[provider]),
		}
	}

	if p.err != nil {
		return nil, NewMemoryError("LoadConfigFromEnv", p.err)
	}
	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	return config.withDefaults(), nil
}

// LoadConfigFromYAML loads configuration from a YAML file.
func LoadConfigFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromYAML", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromYAML", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	return config.withDefaults(), nil
}

// LoadConfigFromFile picks the JSON or YAML loader by file extension.
func LoadConfigFromFile(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadConfigFromYAML(path)
	case ".json":
		return LoadConfigFromJSON(path)
	default:
		return nil, NewMemoryError("LoadConfigFromFile", fmt.Errorf("%w: unsupported config file %q", ErrInvalidConfig, path))
	}
}

// withDefaults fills the zero values that file-based configs usually omit.
func (c *Config) withDefaults() *Config {
	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = DefaultVectorStore
	}
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = DefaultEmbedderProvider
	}
	if c.Retrieval.DefaultLimit <= 0 {
		c.Retrieval.DefaultLimit = DefaultSearchLimit
	}
	if c.Retrieval.EmbedRetryDelayMs <= 0 {
		c.Retrieval.EmbedRetryDelayMs = DefaultEmbedRetryDelay
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	return c
}

// Validate validates the configuration.
//
// Checks that:
//   - the embedder and vector store providers are known
//   - remote embedders have an API key
//   - an LLM section, when present, names a known provider
//   - consolidation thresholds are ordered
//
// Returns an error wrapping ErrInvalidConfig if validation fails, nil otherwise.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return NewMemoryError("Validate", fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	switch c.Embedder.Provider {
	case "openai", "qwen":
		if c.Embedder.APIKey == "" {
			return invalid("embedder %q requires an API key", c.Embedder.Provider)
		}
	case "mock":
	default:
		return invalid("unknown embedder provider %q", c.Embedder.Provider)
	}

	switch c.VectorStore.Provider {
	case "chromem", "postgres", "oceanbase":
	case "sqlite":
		if c.VectorStore.SQLite.Path == "" {
			return invalid("sqlite requires a path")
		}
	default:
		return invalid("unknown vector store provider %q", c.VectorStore.Provider)
	}

	if c.LLM != nil {
		switch c.LLM.Provider {
		case llm.ProviderOpenAI, llm.ProviderDeepSeek, llm.ProviderQwen, llm.ProviderOllama, llm.ProviderAnthropic:
		default:
			return invalid("unknown llm provider %q", c.LLM.Provider)
		}
	}

	if c.Retrieval.EmbedRetries < 0 {
		return invalid("embed retries must not be negative")
	}
	if err := c.Consolidation.Validate(); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads numeric variables and keeps the first parse error.
type envParser struct {
	err error
}

func (p *envParser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		}
		return def
	}
	return v
}

func (p *envParser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		}
		return def
	}
	return v
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
