package titles

import (
	"context"
	"log/slog"
	"strings"

	"github.com/glimmerchat/engine/internal/cache"
	"github.com/glimmerchat/engine/internal/llm"
	"github.com/glimmerchat/engine/internal/store"
)

// Status of one generation attempt.
const (
	StatusPersisted = "persisted"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Skip reasons. Each ineligible input maps to exactly one of these.
const (
	ReasonEmptyContent  = "empty_content"
	ReasonAlreadyTitled = "already_titled"
	ReasonTooManyTurns  = "too_many_turns"
	ReasonLookupFailed  = "lookup_failed"
)

// Failed operations.
const (
	OpGenerate = "generate"
	OpPersist  = "persist"
)

const (
	maxTitleRunes = 50
	fallbackTitle = "Chat Summary"

	// Sessions past their second user turn keep whatever title they have.
	maxMessagesForTitle = 4
)

var placeholderTitles = map[string]bool{
	"":         true,
	"New Chat": true,
}

const titleInstruction = "Generate a concise title, at most six words, for a conversation " +
	"that starts with the following message. Reply with the title only, no quotes, " +
	"no punctuation at the end."

type GenerateInput struct {
	SessionID string
	UserID    string
	Content   string
}

type GenerateResult struct {
	Status string
	Title  string
	Reason string
	Op     string
}

// Service derives a short session title from the opening user message.
type Service struct {
	store    store.Store
	provider llm.Provider
	cache    cache.Cache
	logger   *slog.Logger
}

func NewService(st store.Store, provider llm.Provider, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{store: st, provider: provider, cache: c, logger: logger}
}

// Generate runs the full pipeline: eligibility, model call, clean, persist,
// cache invalidation. It never returns an error; every outcome is a result.
func (s *Service) Generate(ctx context.Context, input GenerateInput) GenerateResult {
	if reason, ok := s.eligible(ctx, input); !ok {
		return GenerateResult{Status: StatusSkipped, Reason: reason}
	}

	raw, err := s.provider.Generate(ctx, []llm.Message{
		{Role: "system", Content: titleInstruction},
		{Role: "user", Content: input.Content},
	})
	if err != nil {
		s.logger.Error("title generation failed", "session_id", input.SessionID, "error", err)
		return GenerateResult{Status: StatusFailed, Op: OpGenerate}
	}
	title := CleanTitle(raw)

	if err := s.store.UpdateSessionTitle(ctx, input.SessionID, input.UserID, title); err != nil {
		s.logger.Error("title persist failed", "session_id", input.SessionID, "error", err)
		return GenerateResult{Status: StatusFailed, Title: title, Op: OpPersist}
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, "title:"+input.SessionID); err != nil {
			s.logger.Warn("title cache invalidation failed", "session_id", input.SessionID, "error", err)
		}
	}

	return GenerateResult{Status: StatusPersisted, Title: title}
}

// eligible reports whether this session should get a generated title, and if
// not, why.
func (s *Service) eligible(ctx context.Context, input GenerateInput) (string, bool) {
	if strings.TrimSpace(input.Content) == "" {
		return ReasonEmptyContent, false
	}

	session, err := s.store.GetSession(ctx, input.SessionID)
	if err != nil {
		s.logger.Warn("title eligibility lookup failed", "session_id", input.SessionID, "error", err)
		return ReasonLookupFailed, false
	}
	if !placeholderTitles[session.Title] {
		return ReasonAlreadyTitled, false
	}

	count, err := s.store.CountSessionMessages(ctx, input.SessionID)
	if err != nil {
		s.logger.Warn("title eligibility count failed", "session_id", input.SessionID, "error", err)
		return ReasonLookupFailed, false
	}
	if count > maxMessagesForTitle {
		return ReasonTooManyTurns, false
	}

	return "", true
}

// CleanTitle normalizes raw model output into a storable title: wrapping
// quotes removed, whitespace trimmed, truncated to 50 runes with an ellipsis.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	for len(title) >= 2 {
		first, last := title[0], title[len(title)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			title = strings.TrimSpace(title[1 : len(title)-1])
			continue
		}
		break
	}
	if title == "" {
		return fallbackTitle
	}
	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		// The ellipsis counts toward the limit, keeping the result at
		// exactly maxTitleRunes.
		title = string(runes[:maxTitleRunes-3]) + "..."
	}
	return title
}
