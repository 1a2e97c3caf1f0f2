package llm

import (
	"context"
	"encoding/json"
)

type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolSpec describes one callable tool in the provider request.
type ToolSpec struct {
	Name        string
	Description string
}

// ToolCall is one structured invocation request from the provider.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// Completion is one assistant turn: text content, tool-call requests, or both.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
	Model     string
}

type Provider interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	GenerateWithTools(ctx context.Context, messages []Message, tools []ToolSpec) (*Completion, error)
}

type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "local":
		return LocalProvider{}, nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
		}), nil
	case "openrouter":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     defaultIfEmpty(cfg.BaseURL, "https://openrouter.ai/api/v1"),
			Temperature: cfg.Temperature,
		}), nil
	default:
		return nil, ErrUnsupportedProvider{Provider: cfg.Provider}
	}
}

func defaultIfEmpty(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
