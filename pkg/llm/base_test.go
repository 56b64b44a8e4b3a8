package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/powermem-mcp/pkg/llm"
)

func TestApplyGenerateOptions(t *testing.T) {
	tests := []struct {
		name        string
		opts        []llm.GenerateOption
		temperature float64
		maxTokens   int
	}{
		{name: "defaults", temperature: 0.7, maxTokens: 1000},
		{
			name:        "overrides",
			opts:        []llm.GenerateOption{llm.WithTemperature(0.2), llm.WithMaxTokens(64)},
			temperature: 0.2,
			maxTokens:   64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := llm.ApplyGenerateOptions(tt.opts)
			assert.Equal(t, tt.temperature, opts.Temperature)
			assert.Equal(t, tt.maxTokens, opts.MaxTokens)
		})
	}
}

func TestOpenAICompatibleBaseURLs(t *testing.T) {
	for _, p := range []string{llm.ProviderDeepSeek, llm.ProviderQwen, llm.ProviderOllama} {
		assert.NotEmpty(t, llm.OpenAICompatibleBaseURLs[p], p)
	}
	assert.Empty(t, llm.OpenAICompatibleBaseURLs[llm.ProviderOpenAI])
}
