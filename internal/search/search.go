package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/glimmerchat/engine/internal/cache"
	"github.com/glimmerchat/engine/internal/llm"
)

const (
	minQueryWords     = 3
	bodySnippetMax    = 200
	comprehensiveTail = " - please provide comprehensive information about this topic"
)

var interrogativeLeads = []string{
	"what", "who", "where", "when", "why", "how", "which",
	"is", "are", "can", "could", "should", "would", "do", "does", "did",
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	TTL     time.Duration
}

type Result struct {
	Content   string `json:"content"`
	Model     string `json:"model"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Cached    bool   `json:"cached"`
}

type Client struct {
	apiKey  string
	baseURL string
	model   string
	ttl     time.Duration
	cache   cache.Cache
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

func NewClient(cfg Config, resultCache cache.Cache, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		ttl:     ttl,
		cache:   resultCache,
		client:  &http.Client{Timeout: 90 * time.Second},
		logger:  logger,
		now:     time.Now,
	}
}

// Ready reports whether the client is configured to reach the provider.
func (c *Client) Ready() bool {
	return c.apiKey != "" && c.model != ""
}

// Search answers the query, consulting the cache before the provider. The
// cache key is the trimmed original query, not the reformatted one.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	cacheKey := "search:" + strings.TrimSpace(query)

	if cached, ok, err := c.cache.Get(ctx, cacheKey); err == nil && ok {
		result := Result{}
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			result.Cached = true
			c.logger.Debug("search cache hit", "query", query)
			return &result, nil
		}
	}

	if !c.Ready() {
		return nil, fmt.Errorf("search %w", llm.ErrNotReady)
	}

	started := c.now()
	content, model, err := c.call(ctx, reformatQuery(query))
	if err != nil {
		return nil, err
	}
	result := &Result{
		Content:   content,
		Model:     model,
		ElapsedMS: c.now().Sub(started).Milliseconds(),
	}
	if encoded, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, cacheKey, string(encoded), c.ttl); err != nil {
			c.logger.Warn("search cache write failed", "error", err)
		}
	}
	return result, nil
}

// SafeSearch is the tool-facing boundary: failures come back as readable
// sentences, never as errors, so the conversation continues.
func (c *Client) SafeSearch(ctx context.Context, query string) string {
	result, err := c.Search(ctx, query)
	if err != nil {
		c.logger.Error("deep search failed", "query", query, "error", err)
		if errors.Is(err, llm.ErrNotReady) {
			return "Deep search is not available right now because the research provider is not configured."
		}
		return "Deep search could not complete this request. " + err.Error()
	}
	return result.Content
}

type searchRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
}

type searchResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) call(ctx context.Context, query string) (string, string, error) {
	payload := searchRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: "system", Content: "You are a research assistant. Answer with well-sourced, current information."},
			{Role: "user", Content: query},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("search provider returned %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), bodySnippet(raw))
	}

	parsed := searchResponse{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", "", fmt.Errorf("search response was not valid JSON: %s", bodySnippet(raw))
	}
	if parsed.Success != nil && !*parsed.Success {
		message := parsed.Error
		if message == "" {
			message = "provider reported failure without a message"
		}
		return "", "", fmt.Errorf("search provider reported failure: %s", message)
	}
	if len(parsed.Choices) == 0 {
		return "", "", errors.New("search response had no choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", "", errors.New("search response was empty")
	}
	model := parsed.Model
	if model == "" {
		model = c.model
	}
	return content, model, nil
}

func bodySnippet(raw []byte) string {
	snippet := strings.TrimSpace(string(raw))
	if len(snippet) > bodySnippetMax {
		snippet = snippet[:bodySnippetMax]
	}
	return snippet
}

// reformatQuery nudges terse or question-shaped queries into a form the
// research provider answers well. Already well-formed queries pass through.
func reformatQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}
	words := strings.Fields(query)
	if len(words) < minQueryWords {
		return query + comprehensiveTail
	}
	if isQuestion(words[0]) && !hasTerminalPunctuation(query) {
		return query + "?"
	}
	return query
}

func isQuestion(lead string) bool {
	lead = strings.ToLower(lead)
	for _, candidate := range interrogativeLeads {
		if lead == candidate {
			return true
		}
	}
	return false
}

func hasTerminalPunctuation(query string) bool {
	return strings.HasSuffix(query, "?") || strings.HasSuffix(query, ".") || strings.HasSuffix(query, "!")
}
