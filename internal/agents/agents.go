package agents

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/glimmerchat/engine/internal/llm"
)

type Type string

const (
	TypeGeneral  Type = "general"
	TypeResearch Type = "research"
	TypeCoding   Type = "coding"
	TypeCreative Type = "creative"
)

// DefaultType absorbs every detection failure; selection must never be fatal.
const DefaultType = TypeGeneral

type Capabilities struct {
	KnowledgeBase bool
	WebScraper    bool
	DeepSearch    bool
}

// Agent is a named configuration bundle selected per request.
type Agent struct {
	Type         Type
	Model        string
	Temperature  float64
	HistoryLimit int
	MaxTokens    int
	Capabilities Capabilities
}

var registry = map[Type]Agent{
	TypeGeneral: {
		Type:         TypeGeneral,
		Model:        "gpt-4o",
		Temperature:  0.7,
		HistoryLimit: 20,
		MaxTokens:    4096,
		Capabilities: Capabilities{KnowledgeBase: true, WebScraper: true, DeepSearch: true},
	},
	TypeResearch: {
		Type:         TypeResearch,
		Model:        "gpt-4o",
		Temperature:  0.3,
		HistoryLimit: 30,
		MaxTokens:    8192,
		Capabilities: Capabilities{KnowledgeBase: true, WebScraper: true, DeepSearch: true},
	},
	TypeCoding: {
		Type:         TypeCoding,
		Model:        "gpt-4o",
		Temperature:  0.2,
		HistoryLimit: 30,
		MaxTokens:    8192,
		Capabilities: Capabilities{KnowledgeBase: true, WebScraper: true, DeepSearch: false},
	},
	TypeCreative: {
		Type:         TypeCreative,
		Model:        "gpt-4o",
		Temperature:  0.9,
		HistoryLimit: 20,
		MaxTokens:    4096,
		Capabilities: Capabilities{KnowledgeBase: true, WebScraper: false, DeepSearch: false},
	},
}

func Get(agentType Type) Agent {
	if agent, ok := registry[agentType]; ok {
		return agent
	}
	return registry[DefaultType]
}

func Valid(agentType Type) bool {
	_, ok := registry[agentType]
	return ok
}

const classifierInstruction = `Classify the user message into exactly one category.
Categories: general, research, coding, creative.
- research: questions needing current facts, sources, or investigation
- coding: programming, debugging, software architecture
- creative: writing, brainstorming, naming, storytelling
- general: everything else
Reply with the single category word only.`

// Detector picks an agent for a message. An explicitly requested agent wins;
// otherwise a one-shot classifier call decides, and every failure mode falls
// back to the default agent.
type Detector struct {
	provider llm.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

func NewDetector(provider llm.Provider, timeout time.Duration, logger *slog.Logger) *Detector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Detector{provider: provider, timeout: timeout, logger: logger}
}

func (d *Detector) Detect(ctx context.Context, message string, requested string) Agent {
	if requested != "" {
		requestedType := Type(strings.ToLower(strings.TrimSpace(requested)))
		if Valid(requestedType) {
			return Get(requestedType)
		}
		d.logger.Warn("requested agent is unknown, classifying instead", "requested", requested)
	}

	if strings.TrimSpace(message) == "" || d.provider == nil {
		return Get(DefaultType)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	label, err := d.provider.Generate(ctx, []llm.Message{
		{Role: "system", Content: classifierInstruction},
		{Role: "user", Content: message},
	})
	if err != nil {
		d.logger.Warn("agent detection failed, using default agent", "error", err)
		return Get(DefaultType)
	}

	detected := Type(strings.ToLower(strings.TrimSpace(strings.Trim(label, `"'.`))))
	if !Valid(detected) {
		d.logger.Warn("classifier returned unknown agent type", "label", label)
		return Get(DefaultType)
	}
	return Get(detected)
}
