package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/glimmerchat/engine/internal/events"
	"github.com/glimmerchat/engine/internal/llm"
	"github.com/glimmerchat/engine/internal/store"
)

// maxToolRounds bounds the model's tool-call loop within one turn.
const maxToolRounds = 6

// TitleTrigger starts title generation for a session. Implementations may
// run it on a workflow engine or a plain goroutine.
type TitleTrigger interface {
	TriggerTitle(ctx context.Context, sessionID string, content string, userID string) error
}

type TurnInput struct {
	SessionID string
	UserID    string
	Content   string
}

type TurnResult struct {
	Content            string
	Model              string
	Tools              *store.ToolsUsed
	UserMessageID      string
	AssistantMessageID string
}

// Runner executes one conversation turn end to end: persist the user
// message, generate with tools, persist the assistant message, emit events,
// and kick off title generation.
type Runner struct {
	provider llm.Provider
	store    store.Store
	broker   *events.Broker
	titles   TitleTrigger
	logger   *slog.Logger
}

func NewRunner(provider llm.Provider, st store.Store, broker *events.Broker, titles TitleTrigger, logger *slog.Logger) *Runner {
	return &Runner{provider: provider, store: st, broker: broker, titles: titles, logger: logger}
}

func (r *Runner) ExecuteTurn(ctx context.Context, cfg *EngineConfig, persister *Persister, input TurnInput) (*TurnResult, error) {
	// The user turn is durably attempted before generation consumes it.
	userSave := persister.SaveUserMessage(ctx, input.SessionID, input.UserID, input.Content)
	if !userSave.Success {
		return nil, fmt.Errorf("user message save failed: %s", userSave.Error)
	}
	r.publish(input.SessionID, events.TypeMessageSaved, map[string]any{
		"message_id": userSave.MessageID, "role": "user",
	})

	messages, err := r.buildContext(ctx, cfg, input)
	if err != nil {
		return nil, err
	}

	completion, used, err := r.generate(ctx, cfg, messages)
	if err != nil {
		return nil, err
	}

	// Client cancellation after generation must not unpersist the turn.
	saveCtx := context.WithoutCancel(ctx)
	assistantSave := persister.SaveAssistantMessage(saveCtx, input.SessionID, input.UserID, completion, used)
	if !assistantSave.Success {
		return nil, fmt.Errorf("assistant message save failed: %s", assistantSave.Error)
	}
	r.publish(input.SessionID, events.TypeMessageSaved, map[string]any{
		"message_id": assistantSave.MessageID, "role": "assistant",
	})
	r.publish(input.SessionID, events.TypeTurnCompleted, map[string]any{
		"model": completion.Model,
	})

	if r.titles != nil && cfg.PersistenceEnabled && input.UserID != "" {
		r.triggerTitle(saveCtx, input)
	}

	return &TurnResult{
		Content:            completion.Content,
		Model:              completion.Model,
		Tools:              used,
		UserMessageID:      userSave.MessageID,
		AssistantMessageID: assistantSave.MessageID,
	}, nil
}

// buildContext assembles the provider message list: system prompt, bounded
// history, and the current user turn when history does not already carry it.
func (r *Runner) buildContext(ctx context.Context, cfg *EngineConfig, input TurnInput) ([]llm.Message, error) {
	messages := []llm.Message{{Role: "system", Content: cfg.SystemPrompt}}

	if cfg.PersistenceEnabled && r.store != nil {
		history, err := r.store.ListMessages(ctx, input.SessionID, cfg.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		for _, msg := range history {
			messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
		}
	}

	last := messages[len(messages)-1]
	if last.Role != "user" || last.Content != input.Content {
		messages = append(messages, llm.Message{Role: "user", Content: input.Content})
	}
	return messages, nil
}

// generate runs the tool loop: the model may request tool invocations for up
// to maxToolRounds rounds before it must answer in text.
func (r *Runner) generate(ctx context.Context, cfg *EngineConfig, messages []llm.Message) (*llm.Completion, *store.ToolsUsed, error) {
	specs := cfg.Tools.Specs()
	used := &store.ToolsUsed{}

	for round := 0; round < maxToolRounds; round++ {
		completion, err := r.provider.GenerateWithTools(ctx, messages, specs)
		if err != nil {
			return nil, nil, fmt.Errorf("generation failed: %w", err)
		}
		if len(completion.ToolCalls) == 0 {
			if used.Empty() {
				return completion, nil, nil
			}
			return completion, used, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for _, call := range completion.ToolCalls {
			name := call.Function.Name
			output := cfg.Tools.Invoke(ctx, name, string(call.Function.Arguments))
			used.Names = append(used.Names, name)
			used.Calls = append(used.Calls, store.ToolCall{ID: call.ID, Type: call.Type, Name: name})
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}
	return nil, nil, errors.New("generation exceeded the tool round limit")
}

// triggerTitle is fire-and-forget: a title failure never surfaces as a turn
// failure.
func (r *Runner) triggerTitle(ctx context.Context, input TurnInput) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := r.titles.TriggerTitle(ctx, input.SessionID, input.Content, input.UserID); err != nil {
			r.logger.Warn("title trigger failed", "session_id", input.SessionID, "error", err)
		}
	}()
}

func (r *Runner) publish(sessionID string, eventType string, payload map[string]any) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(events.SessionEvent{
		SessionID: sessionID,
		Type:      eventType,
		Ts:        time.Now().UTC().Format(time.RFC3339),
		TraceID:   uuid.New().String(),
		Payload:   payload,
	})
}
