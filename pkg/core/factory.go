package core

import (
	"fmt"

	"github.com/oceanbase/powermem-mcp/pkg/embedder"
	"github.com/oceanbase/powermem-mcp/pkg/embedder/mock"
	openaiEmbedder "github.com/oceanbase/powermem-mcp/pkg/embedder/openai"
	qwenEmbedder "github.com/oceanbase/powermem-mcp/pkg/embedder/qwen"
	"github.com/oceanbase/powermem-mcp/pkg/llm"
	anthropicLLM "github.com/oceanbase/powermem-mcp/pkg/llm/anthropic"
	openaiLLM "github.com/oceanbase/powermem-mcp/pkg/llm/openai"
	"github.com/oceanbase/powermem-mcp/pkg/storage"
	chromemStore "github.com/oceanbase/powermem-mcp/pkg/storage/chromem"
	"github.com/oceanbase/powermem-mcp/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/powermem-mcp/pkg/storage/postgres"
	sqliteStore "github.com/oceanbase/powermem-mcp/pkg/storage/sqlite"
)

// initStorage initializes the storage backend.
func initStorage(cfg VectorStoreConfig) (storage.VectorStore, error) {
	switch cfg.Provider {
	case "", "chromem":
		return chromemStore.NewClient(&chromemStore.Config{
			Path:     cfg.Chromem.Path,
			Compress: cfg.Chromem.Compress,
		})
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath: cfg.SQLite.Path,
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		})
	case "oceanbase":
		return oceanbase.NewClient(&oceanbase.Config{
			Host:     cfg.OceanBase.Host,
			Port:     cfg.OceanBase.Port,
			User:     cfg.OceanBase.User,
			Password: cfg.OceanBase.Password,
			DBName:   cfg.OceanBase.DBName,
		})
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", ErrInvalidConfig, cfg.Provider)
	}
}

// initLLM initializes the LLM provider. A nil config means no LLM.
func initLLM(cfg *LLMConfig) (llm.Provider, error) {
	if cfg == nil {
		return nil, nil
	}

	switch cfg.Provider {
	case llm.ProviderOpenAI, llm.ProviderDeepSeek, llm.ProviderQwen, llm.ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = llm.OpenAICompatibleBaseURLs[cfg.Provider]
		}
		return openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: baseURL,
		})
	case llm.ProviderAnthropic:
		return anthropicLLM.NewClient(&anthropicLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// initEmbedder initializes the embedder provider.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "qwen":
		return qwenEmbedder.NewClient(&qwenEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "mock":
		return mock.NewClient(&mock.Config{Dimensions: cfg.Dimensions}), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
