// Package llm holds the transports used to reach the external harm judge.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("empty response from model")

// GenerationParams tunes a single completion
type GenerationParams struct {
	Temperature *float32
	MaxTokens   *int
	System      string
}

// Client is a single-shot text completion backend
type Client interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Model() string
}

// Config selects and configures a provider
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderDisabled  = "disabled"
)

// NewClient builds the client for cfg.Provider. A disabled provider yields a nil client.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderAnthropic, "":
		c, err := NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOpenAI:
		c, err := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOllama:
		return NewOllamaClient(cfg.BaseURL, cfg.Model), nil
	case ProviderDisabled:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown judge provider %q", cfg.Provider)
	}
}

// Float32 returns a pointer to v
func Float32(v float32) *float32 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }
