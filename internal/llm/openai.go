package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}

type OpenAIProvider struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	client      *http.Client
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	completion, err := p.GenerateWithTools(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(completion.Content)
	if content == "" {
		return "", errors.New("LLM response was empty")
	}
	return content, nil
}

func (p *OpenAIProvider) GenerateWithTools(ctx context.Context, messages []Message, tools []ToolSpec) (*Completion, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrNotReady)
	}
	if p.model == "" {
		return nil, fmt.Errorf("%w: missing model", ErrNotReady)
	}
	payload := map[string]any{
		"model":    p.model,
		"messages": messages,
	}
	if p.temperature > 0 {
		payload["temperature"] = p.temperature
	}
	if len(tools) > 0 {
		payload["tools"] = encodeToolSpecs(tools)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("LLM request failed: %s", resp.Status)
	}

	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content   string     `json:"content"`
				ToolCalls []ToolCall `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("LLM response had no choices")
	}
	choice := parsed.Choices[0].Message
	model := parsed.Model
	if model == "" {
		model = p.model
	}
	return &Completion{
		Content:   choice.Content,
		ToolCalls: choice.ToolCalls,
		Model:     model,
	}, nil
}

// The engine's tools all take one free-text argument; the schema is fixed.
func encodeToolSpecs(tools []ToolSpec) []map[string]any {
	encoded := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		encoded = append(encoded, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"input": map[string]any{
							"type":        "string",
							"description": "Free-text input for the tool.",
						},
					},
					"required": []string{"input"},
				},
			},
		})
	}
	return encoded
}
