package store

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by session reads when no row matches.
var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	ID           string
	UserID       string
	Title        string
	CreatedAt    string
	UpdatedAt    string
	MessageCount int64
}

type Message struct {
	ID        string
	SessionID string
	UserID    string
	Role      string
	Content   string
	CreatedAt string
	Tools     *ToolsUsed
}

// ToolsUsed carries both tool-metadata shapes a turn may accumulate: the
// human-readable name list and the structured invocation records. Both may be
// present on one message and are persisted independently, without merging.
type ToolsUsed struct {
	Names []string   `json:"tools,omitempty"`
	Calls []ToolCall `json:"api_tool_calls,omitempty"`
}

type ToolCall struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

func (t *ToolsUsed) Empty() bool {
	return t == nil || (len(t.Names) == 0 && len(t.Calls) == 0)
}

type Store interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context, userID string) ([]Session, error)
	UpdateSessionTitle(ctx context.Context, sessionID string, userID string, title string) error
	CountSessionMessages(ctx context.Context, sessionID string) (int64, error)

	// SaveMessageWithTouch inserts the message and advances the owning
	// session's updated_at in one transaction. Re-submitting an existing
	// message id is a no-op.
	SaveMessageWithTouch(ctx context.Context, msg Message) error

	// InsertMessage is the degraded write path: the message row only, no
	// session touch. Also idempotent on message id.
	InsertMessage(ctx context.Context, msg Message) error

	GetMessage(ctx context.Context, messageID string) (*Message, error)
	ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
}
