package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/glimmerchat/engine/internal/agents"
	"github.com/glimmerchat/engine/internal/tools"
)

// ChatRequest is the inbound body for both the main and widget chat routes.
type ChatRequest struct {
	SessionID  string           `json:"session_id" validate:"required"`
	Message    string           `json:"message" validate:"required_without=Messages"`
	Messages   []InboundMessage `json:"messages,omitempty"`
	AgentID    string           `json:"agent_id,omitempty"`
	DeepSearch bool             `json:"deep_search,omitempty"`
}

type InboundMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EngineConfig is the fully resolved per-request descriptor. Nothing in it is
// recomputed downstream; it is built once and read until the request ends.
type EngineConfig struct {
	AgentType          agents.Type
	Model              string
	Temperature        float64
	SystemPrompt       string
	HistoryLimit       int
	MaxTokens          int
	Tools              *tools.Registry
	UseDeepSearch      bool
	RequiresAuth       bool
	PersistenceEnabled bool
	CORSEnabled        bool
	IsWidget           bool
}

type PrepareInput struct {
	Request  ChatRequest
	UserID   string
	IsWidget bool
}

// Setup resolves an inbound chat request into an EngineConfig.
type Setup struct {
	detector    *agents.Detector
	toolDeps    tools.Deps
	widgetModel string
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewSetup(detector *agents.Detector, toolDeps tools.Deps, widgetModel string, logger *slog.Logger) *Setup {
	if widgetModel == "" {
		widgetModel = "gpt-4o-mini"
	}
	return &Setup{
		detector:    detector,
		toolDeps:    toolDeps,
		widgetModel: widgetModel,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Prepare validates the request and produces the engine configuration for
// this turn. Agent detection failures inside the detector fall back to the
// default agent and are never fatal.
func (s *Setup) Prepare(ctx context.Context, input PrepareInput) (*EngineConfig, error) {
	if err := s.validate.Struct(input.Request); err != nil {
		return nil, fmt.Errorf("invalid chat request: %w", err)
	}

	if input.IsWidget {
		return s.widgetConfig(), nil
	}

	agent := s.detector.Detect(ctx, LatestMessage(input.Request), input.Request.AgentID)

	// Deep search requires both the caller asking for it and the agent
	// declaring support. Requested-but-unsupported silently disables.
	deepSearch := input.Request.DeepSearch && agent.Capabilities.DeepSearch

	registry := tools.BuildRegistry(s.toolDeps, tools.Capabilities{
		UseKnowledgeBase: agent.Capabilities.KnowledgeBase,
		UseWebScraper:    agent.Capabilities.WebScraper,
		UseDeepSearch:    deepSearch,
	})

	return &EngineConfig{
		AgentType:          agent.Type,
		Model:              agent.Model,
		Temperature:        agent.Temperature,
		SystemPrompt:       agents.SystemPrompt(agent.Type, deepSearch),
		HistoryLimit:       agent.HistoryLimit,
		MaxTokens:          agent.MaxTokens,
		Tools:              registry,
		UseDeepSearch:      deepSearch,
		RequiresAuth:       true,
		PersistenceEnabled: true,
	}, nil
}

// widgetConfig is the fixed reduced-capability surface for embedded callers.
// No detection runs and no per-request knob changes it.
func (s *Setup) widgetConfig() *EngineConfig {
	return &EngineConfig{
		AgentType:          agents.DefaultType,
		Model:              s.widgetModel,
		Temperature:        0.5,
		SystemPrompt:       agents.SystemPrompt(agents.DefaultType, false),
		HistoryLimit:       6,
		MaxTokens:          1024,
		Tools:              tools.WidgetRegistry(s.toolDeps),
		RequiresAuth:       false,
		PersistenceEnabled: false,
		CORSEnabled:        true,
		IsWidget:           true,
	}
}

// LatestMessage picks the text a turn acts on: the single message field, or
// the last user entry of a message list.
func LatestMessage(req ChatRequest) string {
	if req.Message != "" {
		return req.Message
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	if len(req.Messages) > 0 {
		return req.Messages[len(req.Messages)-1].Content
	}
	return ""
}
