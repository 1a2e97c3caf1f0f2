package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/glimmerchat/engine/internal/store"
)

// MemoryStore is the in-process store used by tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]store.Session
	messages map[string][]store.Message
	byID     map[string]store.Message
}

func New() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]store.Session{},
		messages: map[string][]store.Message{},
		byID:     map[string]store.Message{},
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, session store.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; ok {
		return nil
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	session.MessageCount = int64(len(m.messages[sessionID]))
	return &session, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, userID string) ([]store.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		if userID != "" && session.UserID != userID {
			continue
		}
		session.MessageCount = int64(len(m.messages[session.ID]))
		results = append(results, session)
	}
	sort.Slice(results, func(i, j int) bool {
		return parseTime(results[i].UpdatedAt).After(parseTime(results[j].UpdatedAt))
	})
	return results, nil
}

func (m *MemoryStore) UpdateSessionTitle(ctx context.Context, sessionID string, userID string, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return store.ErrSessionNotFound
	}
	if userID != "" && session.UserID != "" && session.UserID != userID {
		return store.ErrSessionNotFound
	}
	session.Title = title
	session.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	m.sessions[sessionID] = session
	return nil
}

func (m *MemoryStore) CountSessionMessages(ctx context.Context, sessionID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.messages[sessionID])), nil
}

func (m *MemoryStore) SaveMessageWithTouch(ctx context.Context, msg store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[msg.ID]; ok {
		return nil
	}
	m.appendLocked(msg)
	if session, ok := m.sessions[msg.SessionID]; ok {
		session.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
		m.sessions[msg.SessionID] = session
	}
	return nil
}

func (m *MemoryStore) InsertMessage(ctx context.Context, msg store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[msg.ID]; ok {
		return nil
	}
	m.appendLocked(msg)
	return nil
}

func (m *MemoryStore) appendLocked(msg store.Message) {
	cloned := msg
	cloned.Tools = cloneTools(msg.Tools)
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], cloned)
	m.byID[msg.ID] = cloned
}

func (m *MemoryStore) GetMessage(ctx context.Context, messageID string) (*store.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.byID[messageID]
	if !ok {
		return nil, nil
	}
	msg.Tools = cloneTools(msg.Tools)
	return &msg, nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]store.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[sessionID]
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}
	results := make([]store.Message, 0, len(msgs)-start)
	for _, msg := range msgs[start:] {
		cloned := msg
		cloned.Tools = cloneTools(msg.Tools)
		results = append(results, cloned)
	}
	return results, nil
}

func cloneTools(tools *store.ToolsUsed) *store.ToolsUsed {
	if tools == nil {
		return nil
	}
	cloned := &store.ToolsUsed{}
	cloned.Names = append([]string{}, tools.Names...)
	cloned.Calls = append([]store.ToolCall{}, tools.Calls...)
	return cloned
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
