package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	powermem "github.com/oceanbase/powermem-mcp/pkg/core"
	"github.com/oceanbase/powermem-mcp/pkg/intelligence"
)

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *powermem.Config)
		wantErr bool
	}{
		{
			name: "sqlite with openai",
			envVars: map[string]string{
				"DATABASE_PROVIDER":  "sqlite",
				"SQLITE_PATH":        "./test.db",
				"EMBEDDING_PROVIDER": "openai",
				"EMBEDDING_API_KEY":  "test-key",
				"EMBEDDING_MODEL":    "text-embedding-3-small",
			},
			check: func(t *testing.T, cfg *powermem.Config) {
				assert.Equal(t, "sqlite", cfg.VectorStore.Provider)
				assert.Equal(t, "./test.db", cfg.VectorStore.SQLite.Path)
				assert.Equal(t, "openai", cfg.Embedder.Provider)
				assert.Equal(t, "test-key", cfg.Embedder.APIKey)
				assert.Nil(t, cfg.LLM)
			},
		},
		{
			name: "qwen llm gets compatible base url",
			envVars: map[string]string{
				"EMBEDDING_PROVIDER": "qwen",
				"EMBEDDING_API_KEY":  "test-key",
				"LLM_PROVIDER":       "qwen",
				"LLM_API_KEY":        "test-key",
				"LLM_MODEL":          "qwen-plus",
			},
			check: func(t *testing.T, cfg *powermem.Config) {
				require.NotNil(t, cfg.LLM)
				assert.Equal(t, "qwen", cfg.LLM.Provider)
				assert.Equal(t, "https://dashscope.aliyuncs.com/compatible-mode/v1", cfg.LLM.BaseURL)
			},
		},
		{
			name: "defaults",
			envVars: map[string]string{
				"EMBEDDING_PROVIDER": "mock",
			},
			check: func(t *testing.T, cfg *powermem.Config) {
				assert.Equal(t, powermem.DefaultVectorStore, cfg.VectorStore.Provider)
				assert.Equal(t, powermem.DefaultSearchLimit, cfg.Retrieval.DefaultLimit)
				assert.Equal(t, powermem.DefaultEmbedRetries, cfg.Retrieval.EmbedRetries)
				assert.Equal(t, intelligence.DefaultPolicy(), cfg.Consolidation)
				assert.Equal(t, 5432, cfg.VectorStore.Postgres.Port)
			},
		},
		{
			name: "thresholds and cache",
			envVars: map[string]string{
				"EMBEDDING_PROVIDER":             "mock",
				"EMBEDDING_CACHE_SIZE":           "50",
				"CONSOLIDATION_MERGE_THRESHOLD":  "0.9",
				"CONSOLIDATION_UPDATE_THRESHOLD": "0.7",
			},
			check: func(t *testing.T, cfg *powermem.Config) {
				assert.Equal(t, 50, cfg.Cache.Size)
				assert.Equal(t, 0.9, cfg.Consolidation.MergeThreshold)
				assert.Equal(t, 0.7, cfg.Consolidation.UpdateThreshold)
			},
		},
		{
			name: "bad number",
			envVars: map[string]string{
				"EMBEDDING_DIMS": "many",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			config, err := powermem.LoadConfigFromEnv()
			if tt.wantErr {
				assert.ErrorIs(t, err, powermem.ErrInvalidConfig)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *powermem.Config {
		return &powermem.Config{
			Embedder: powermem.EmbedderConfig{
				Provider: "openai",
				APIKey:   "test-key",
			},
			VectorStore: powermem.VectorStoreConfig{
				Provider: "sqlite",
				SQLite:   powermem.SQLiteConfig{Path: "./test.db"},
			},
			Consolidation: intelligence.DefaultPolicy(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *powermem.Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *powermem.Config) {}},
		{name: "mock embedder needs no key", mutate: func(c *powermem.Config) {
			c.Embedder = powermem.EmbedderConfig{Provider: "mock"}
		}},
		{name: "missing api key", wantErr: true, mutate: func(c *powermem.Config) {
			c.Embedder.APIKey = ""
		}},
		{name: "unknown embedder", wantErr: true, mutate: func(c *powermem.Config) {
			c.Embedder.Provider = "word2vec"
		}},
		{name: "unknown vector store", wantErr: true, mutate: func(c *powermem.Config) {
			c.VectorStore.Provider = "qdrant"
		}},
		{name: "sqlite without path", wantErr: true, mutate: func(c *powermem.Config) {
			c.VectorStore.SQLite.Path = ""
		}},
		{name: "unknown llm", wantErr: true, mutate: func(c *powermem.Config) {
			c.LLM = &powermem.LLMConfig{Provider: "gemini"}
		}},
		{name: "anthropic llm", mutate: func(c *powermem.Config) {
			c.LLM = &powermem.LLMConfig{Provider: "anthropic", APIKey: "k"}
		}},
		{name: "negative retries", wantErr: true, mutate: func(c *powermem.Config) {
			c.Retrieval.EmbedRetries = -1
		}},
		{name: "inverted thresholds", wantErr: true, mutate: func(c *powermem.Config) {
			c.Consolidation.UpdateThreshold = 0.95
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, powermem.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "powermem.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
embedder:
  provider: mock
  dimensions: 64
vector_store:
  provider: chromem
  chromem:
    path: ./data
consolidation:
  merge_threshold: 0.9
log:
  format: json
`), 0o600))

	cfg, err := powermem.LoadConfigFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Embedder.Provider)
	assert.Equal(t, 64, cfg.Embedder.Dimensions)
	assert.Equal(t, "./data", cfg.VectorStore.Chromem.Path)
	assert.Equal(t, 0.9, cfg.Consolidation.MergeThreshold)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, powermem.DefaultSearchLimit, cfg.Retrieval.DefaultLimit)
	require.NoError(t, cfg.Validate())

	jsonPath := filepath.Join(dir, "powermem.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"embedder": {"provider": "mock"}, "vector_store": {"provider": "sqlite", "sqlite": {"path": "m.db"}}}`), 0o600))

	cfg, err = powermem.LoadConfigFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.VectorStore.Provider)
	assert.Equal(t, "m.db", cfg.VectorStore.SQLite.Path)

	_, err = powermem.LoadConfigFromFile(filepath.Join(dir, "powermem.toml"))
	assert.ErrorIs(t, err, powermem.ErrInvalidConfig)
}

func TestFindEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o600))
	t.Chdir(dir)

	path, found := powermem.FindEnvFile()
	assert.True(t, found)
	assert.Equal(t, ".env", path)
}
