package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glimmerchat/engine/internal/store"
)

const KnowledgeBaseName = "knowledge_base"

const knowledgeScanLimit = 200

// KnowledgeBaseTool answers from previously stored conversation content.
type KnowledgeBaseTool struct {
	store store.Store
}

func NewKnowledgeBaseTool(st store.Store) *KnowledgeBaseTool {
	return &KnowledgeBaseTool{store: st}
}

func (t *KnowledgeBaseTool) Name() string { return KnowledgeBaseName }

func (t *KnowledgeBaseTool) Description() string {
	return "Look up snippets from earlier conversations in this workspace. Input is a topic or phrase to find."
}

func (t *KnowledgeBaseTool) Invoke(ctx context.Context, input string) (string, error) {
	query := strings.ToLower(strings.TrimSpace(decodeToolInput(input)))
	if query == "" {
		return "", errors.New("a lookup phrase is required")
	}
	if t.store == nil {
		return "", errors.New("knowledge base is not available")
	}

	sessions, err := t.store.ListSessions(ctx, "")
	if err != nil {
		return "", fmt.Errorf("knowledge lookup failed: %w", err)
	}

	var matches []string
	scanned := 0
	for _, session := range sessions {
		if scanned >= knowledgeScanLimit || len(matches) >= 5 {
			break
		}
		msgs, err := t.store.ListMessages(ctx, session.ID, 50)
		if err != nil {
			continue
		}
		for _, msg := range msgs {
			scanned++
			if strings.Contains(strings.ToLower(msg.Content), query) {
				matches = append(matches, snippet(msg.Content, 240))
				if len(matches) >= 5 {
					break
				}
			}
		}
	}

	if len(matches) == 0 {
		return "No stored conversations mention that topic.", nil
	}
	return "Found in earlier conversations:\n- " + strings.Join(matches, "\n- "), nil
}

func snippet(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}
