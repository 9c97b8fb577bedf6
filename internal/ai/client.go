package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat/internal/config"
)

var ErrEmptyCompletion = errors.New("llm returned no choices")

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Completer is the single call the chat service makes to a language model.
// Implementations make exactly one attempt per call.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

func ChatConfigFrom(cfg config.LLMConfig) ChatConfig {
	return ChatConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// NewCompleter builds the client for the configured provider.
func NewCompleter(cfg config.LLMConfig) (Completer, error) {
	chatCfg := ChatConfigFrom(cfg)
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAICompatibleClient(chatCfg), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(chatCfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
