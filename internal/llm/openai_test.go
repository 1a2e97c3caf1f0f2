package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIProvider_DefaultBaseURL(t *testing.T) {
	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "test-api-key", Model: "gpt-4o"})
	if provider.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default baseURL, got %s", provider.baseURL)
	}
}

func TestNewOpenAIProvider_TrimTrailingSlash(t *testing.T) {
	provider := NewOpenAIProvider(OpenAIConfig{
		APIKey:  "test-api-key",
		Model:   "gpt-4o",
		BaseURL: "https://api.openai.com/v1/",
	})
	if provider.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected trailing slash trimmed, got %s", provider.baseURL)
	}
}

func TestOpenAIProvider_MissingKeyIsNotReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called when API key is missing")
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o", BaseURL: server.URL})
	_, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hello"}})
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got: %v", err)
	}
}

func TestOpenAIProvider_MissingModelIsNotReady(t *testing.T) {
	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "test-api-key"})
	_, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hello"}})
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got: %v", err)
	}
}

func TestOpenAIProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path '/chat/completions', got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-api-key" {
			t.Errorf("expected bearer auth header, got %s", auth)
		}

		var reqBody map[string]any
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if reqBody["model"] != "gpt-4o" {
			t.Errorf("expected model 'gpt-4o', got %v", reqBody["model"])
		}
		if reqBody["temperature"] != 0.7 {
			t.Errorf("expected temperature 0.7, got %v", reqBody["temperature"])
		}

		response := map[string]any{
			"model": "gpt-4o-2024",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Hello! How can I help you today?"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{
		APIKey:      "test-api-key",
		Model:       "gpt-4o",
		BaseURL:     server.URL,
		Temperature: 0.7,
	})
	result, err := provider.Generate(context.Background(), []Message{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: "Hello"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != "Hello! How can I help you today?" {
		t.Errorf("unexpected content: %s", result)
	}
}

func TestOpenAIProvider_GenerateWithTools_ToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		tools, ok := reqBody["tools"].([]any)
		if !ok || len(tools) != 1 {
			t.Errorf("expected one tool spec in payload, got %v", reqBody["tools"])
		}

		response := map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]any{
									"name":      "deep_search",
									"arguments": `{"input":"latest AI news"}`,
								},
							},
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "test-api-key", Model: "gpt-4o", BaseURL: server.URL})
	completion, err := provider.GenerateWithTools(
		context.Background(),
		[]Message{{Role: "user", Content: "search it"}},
		[]ToolSpec{{Name: "deep_search", Description: "Research the web."}},
	)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(completion.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(completion.ToolCalls))
	}
	if completion.ToolCalls[0].Function.Name != "deep_search" {
		t.Errorf("unexpected tool call name: %s", completion.ToolCalls[0].Function.Name)
	}
	if completion.Model != "gpt-4o" {
		t.Errorf("expected request model when response omits one, got %s", completion.Model)
	}
}

func TestOpenAIProvider_Generate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "Invalid API key"}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "invalid-key", Model: "gpt-4o", BaseURL: server.URL})
	_, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hello"}})
	if err == nil {
		t.Fatal("expected error for HTTP error, got nil")
	}
	if err.Error() != "LLM request failed: 401 Unauthorized" {
		t.Errorf("expected HTTP error message, got: %s", err.Error())
	}
}

func TestOpenAIProvider_Generate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{}})
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "test-api-key", Model: "gpt-4o", BaseURL: server.URL})
	_, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hello"}})
	if err == nil || err.Error() != "LLM response had no choices" {
		t.Errorf("expected 'LLM response had no choices', got: %v", err)
	}
}

func TestOpenAIProvider_Generate_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "   "}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "test-api-key", Model: "gpt-4o", BaseURL: server.URL})
	_, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hello"}})
	if err == nil || err.Error() != "LLM response was empty" {
		t.Errorf("expected 'LLM response was empty', got: %v", err)
	}
}

func TestOpenAIProvider_Generate_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "test-api-key", Model: "gpt-4o", BaseURL: server.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := provider.Generate(ctx, []Message{{Role: "user", Content: "Hello"}}); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

func TestNewProvider_Unsupported(t *testing.T) {
	_, err := NewProvider(Config{Provider: "mystery"})
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
	var unsupported ErrUnsupportedProvider
	if !errors.As(err, &unsupported) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestNewProvider_Local(t *testing.T) {
	provider, err := NewProvider(Config{Provider: "local"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := provider.Generate(context.Background(), nil)
	if err != nil || result == "" {
		t.Errorf("expected canned local response, got %q err=%v", result, err)
	}
}
