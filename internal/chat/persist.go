package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/glimmerchat/engine/internal/llm"
	"github.com/glimmerchat/engine/internal/store"
)

type SaveRequest struct {
	SessionID string
	UserID    string
	Role      string
	Content   any
	MessageID string
	Tools     *store.ToolsUsed
}

type SaveResult struct {
	Success   bool
	MessageID string
	Message   string
	Error     string
}

// Persister is the durable write path for conversation turns. A disabled
// instance (widget surface) accepts every save without touching storage.
type Persister struct {
	store    store.Store
	disabled bool
	logger   *slog.Logger
}

func NewPersister(st store.Store, logger *slog.Logger) *Persister {
	return &Persister{store: st, logger: logger}
}

// NewDisabledPersister returns a persister whose saves short-circuit to
// success without any I/O.
func NewDisabledPersister(logger *slog.Logger) *Persister {
	return &Persister{disabled: true, logger: logger}
}

// SaveMessage writes one turn. The primary path is the atomic
// save-and-touch procedure; any primary failure falls back to exactly one
// direct insert, which keeps the message at the cost of session freshness.
func (p *Persister) SaveMessage(ctx context.Context, req SaveRequest) SaveResult {
	if p.disabled {
		return SaveResult{Success: true, Message: "persistence disabled"}
	}
	if req.SessionID == "" {
		return SaveResult{Error: "session id is required"}
	}
	if req.Role == "" {
		return SaveResult{Error: "role is required"}
	}
	content := normalizeContent(req.Content)
	if content == "" {
		return SaveResult{Error: "content is required"}
	}
	if req.MessageID == "" {
		req.MessageID = shortuuid.New()
	}

	msg := store.Message{
		ID:        req.MessageID,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Role:      req.Role,
		Content:   content,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Tools:     req.Tools,
	}

	primaryErr := p.store.SaveMessageWithTouch(ctx, msg)
	if primaryErr == nil {
		return SaveResult{Success: true, MessageID: msg.ID}
	}

	p.logger.Warn("atomic save failed, falling back to direct insert",
		"message_id", msg.ID, "session_id", msg.SessionID, "error", primaryErr)

	if fallbackErr := p.store.InsertMessage(ctx, msg); fallbackErr != nil {
		p.logger.Error("message save failed on both paths",
			"message_id", msg.ID, "session_id", msg.SessionID,
			"primary_error", primaryErr.Error(), "fallback_error", fallbackErr.Error())
		return SaveResult{Error: fmt.Sprintf("save failed: %s", fallbackErr)}
	}
	return SaveResult{Success: true, MessageID: msg.ID, Message: "saved without session touch"}
}

// SaveUserMessage requires a user id; anonymous user turns are rejected
// before any write is attempted.
func (p *Persister) SaveUserMessage(ctx context.Context, sessionID string, userID string, content any) SaveResult {
	if p.disabled {
		return SaveResult{Success: true, Message: "persistence disabled"}
	}
	if userID == "" {
		return SaveResult{Error: "user id is required"}
	}
	return p.SaveMessage(ctx, SaveRequest{
		SessionID: sessionID,
		UserID:    userID,
		Role:      "user",
		Content:   content,
	})
}

// SaveAssistantMessage extracts tool-call metadata from the provider
// completion and merges it with explicitly supplied tools. Both lists are
// kept as-is; nothing is deduplicated.
func (p *Persister) SaveAssistantMessage(ctx context.Context, sessionID string, userID string, completion *llm.Completion, explicit *store.ToolsUsed) SaveResult {
	if p.disabled {
		return SaveResult{Success: true, Message: "persistence disabled"}
	}
	var content any
	if completion != nil {
		content = completion.Content
	}

	tools := mergeTools(extractToolCalls(completion), explicit)

	return p.SaveMessage(ctx, SaveRequest{
		SessionID: sessionID,
		UserID:    userID,
		Role:      "assistant",
		Content:   content,
		Tools:     tools,
	})
}

// extractToolCalls pulls structured invocation records out of the provider
// envelope. Any internal failure degrades to no metadata, never to a failed
// save.
func extractToolCalls(completion *llm.Completion) (calls []store.ToolCall) {
	defer func() {
		if r := recover(); r != nil {
			calls = nil
		}
	}()
	if completion == nil {
		return nil
	}
	for _, call := range completion.ToolCalls {
		calls = append(calls, store.ToolCall{
			ID:   call.ID,
			Type: call.Type,
			Name: call.Function.Name,
		})
	}
	return calls
}

func mergeTools(extracted []store.ToolCall, explicit *store.ToolsUsed) *store.ToolsUsed {
	merged := &store.ToolsUsed{}
	if explicit != nil {
		merged.Names = append(merged.Names, explicit.Names...)
		merged.Calls = append(merged.Calls, explicit.Calls...)
	}
	merged.Calls = append(merged.Calls, extracted...)
	if merged.Empty() {
		return nil
	}
	return merged
}

// normalizeContent serializes structured content to JSON for storage. Plain
// strings pass through untouched.
func normalizeContent(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
