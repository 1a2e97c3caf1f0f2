package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/glimmerchat/engine/internal/search"
)

const DeepSearchName = "deep_search"

type DeepSearchTool struct {
	client *search.Client
}

func NewDeepSearchTool(client *search.Client) *DeepSearchTool {
	return &DeepSearchTool{client: client}
}

func (t *DeepSearchTool) Name() string { return DeepSearchName }

func (t *DeepSearchTool) Description() string {
	return "Research a topic using a live web research service. Input is the question or topic to investigate."
}

func (t *DeepSearchTool) Invoke(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(decodeToolInput(input))
	if query == "" {
		return "", errors.New("a search query is required")
	}
	// SafeSearch already converts provider failures to readable text.
	return t.client.SafeSearch(ctx, query), nil
}
