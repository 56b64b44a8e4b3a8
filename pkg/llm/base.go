// Package llm defines the chat completion providers used to write
// generalized memories during consolidation. An LLM is optional: without
// one, generalization falls back to a deterministic summary.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider names accepted by the factory in pkg/core.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderDeepSeek  = "deepseek"
	ProviderQwen      = "qwen"
	ProviderOllama    = "ollama"
)

// OpenAICompatibleBaseURLs lists the chat endpoints of providers that speak
// the OpenAI chat completions protocol.
var OpenAICompatibleBaseURLs = map[string]string{
	ProviderDeepSeek: "https://api.deepseek.com",
	ProviderQwen:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
	ProviderOllama:   "http://localhost:11434/v1",
}

// Provider completes a conversation.
//
// OpenAI-compatible services (OpenAI, DeepSeek, Qwen, Ollama) share one
// implementation; Anthropic has its own.
type Provider interface {
	// GenerateWithMessages returns the assistant reply to messages.
	// An empty reply is reported as ErrEmptyResponse.
	GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	Close() error
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateOptions holds sampling settings.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// GenerateOption configures GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets the sampling temperature.
//
// Example:
//
//	text, _ := provider.GenerateWithMessages(ctx, msgs, llm.WithTemperature(0.2))
func WithTemperature(temp float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens caps the length of the reply.
func WithMaxTokens(max int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxTokens = max
	}
}

// ApplyGenerateOptions resolves opts over the defaults
// (Temperature=0.7, MaxTokens=1000).
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	options := &GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
