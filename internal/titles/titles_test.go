package titles

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimmerchat/engine/internal/cache"
	"github.com/glimmerchat/engine/internal/llm"
	"github.com/glimmerchat/engine/internal/store"
	"github.com/glimmerchat/engine/internal/store/memory"
)

type fakeProvider struct {
	response string
	err      error
	calls    int
}

func (p *fakeProvider) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

func (p *fakeProvider) GenerateWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (*llm.Completion, error) {
	return nil, errors.New("not used")
}

type failingTitleStore struct {
	store.Store
}

func (f failingTitleStore) UpdateSessionTitle(ctx context.Context, sessionID string, userID string, title string) error {
	return errors.New("connection reset")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedSession(t *testing.T, st store.Store, title string, messageCount int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, store.Session{ID: "s1", UserID: "user-1", Title: title}))
	for i := 0; i < messageCount; i++ {
		require.NoError(t, st.InsertMessage(ctx, store.Message{
			ID: string(rune('a'+i)), SessionID: "s1", UserID: "user-1",
			Role: "user", Content: "hello",
		}))
	}
}

func TestGeneratePersistsCleanedTitle(t *testing.T) {
	st := memory.New()
	seedSession(t, st, "", 2)
	provider := &fakeProvider{response: `"Go Concurrency Basics"`}
	svc := NewService(st, provider, nil, discardLogger())

	result := svc.Generate(context.Background(), GenerateInput{
		SessionID: "s1", UserID: "user-1", Content: "Explain goroutines to me",
	})

	assert.Equal(t, StatusPersisted, result.Status)
	assert.Equal(t, "Go Concurrency Basics", result.Title)
	session, err := st.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency Basics", session.Title)
}

func TestGenerateSkipReasons(t *testing.T) {
	tests := []struct {
		name         string
		title        string
		messageCount int
		content      string
		reason       string
	}{
		{"empty content", "", 1, "   ", ReasonEmptyContent},
		{"already titled", "Budget Planning", 1, "hello", ReasonAlreadyTitled},
		{"too many turns", "", 5, "hello", ReasonTooManyTurns},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.New()
			seedSession(t, st, tt.title, tt.messageCount)
			provider := &fakeProvider{response: "A Title"}
			svc := NewService(st, provider, nil, discardLogger())

			result := svc.Generate(context.Background(), GenerateInput{
				SessionID: "s1", UserID: "user-1", Content: tt.content,
			})

			assert.Equal(t, StatusSkipped, result.Status)
			assert.Equal(t, tt.reason, result.Reason)
			assert.Zero(t, provider.calls)
		})
	}
}

type brokenSessionStore struct {
	store.Store
}

func (b brokenSessionStore) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	return nil, errors.New("connection reset")
}

type brokenCountStore struct {
	store.Store
}

func (b brokenCountStore) CountSessionMessages(ctx context.Context, sessionID string) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestGenerateSkipsWhenStoreLookupFails(t *testing.T) {
	tests := []struct {
		name  string
		store store.Store
	}{
		{"session lookup fails", brokenSessionStore{memory.New()}},
		{"message count fails", func() store.Store {
			st := memory.New()
			seedSession(t, st, "", 1)
			return brokenCountStore{st}
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{response: "A Title"}
			svc := NewService(tt.store, provider, nil, discardLogger())

			result := svc.Generate(context.Background(), GenerateInput{
				SessionID: "s1", UserID: "user-1", Content: "hello",
			})

			assert.Equal(t, StatusSkipped, result.Status)
			assert.Equal(t, ReasonLookupFailed, result.Reason)
			assert.Zero(t, provider.calls)
		})
	}
}

func TestGeneratePlaceholderTitleIsEligible(t *testing.T) {
	st := memory.New()
	seedSession(t, st, "New Chat", 2)
	svc := NewService(st, &fakeProvider{response: "Trip Ideas"}, nil, discardLogger())

	result := svc.Generate(context.Background(), GenerateInput{
		SessionID: "s1", UserID: "user-1", Content: "Where should I travel in May?",
	})

	assert.Equal(t, StatusPersisted, result.Status)
	assert.Equal(t, "Trip Ideas", result.Title)
}

func TestGenerateFailureOps(t *testing.T) {
	t.Run("generate", func(t *testing.T) {
		st := memory.New()
		seedSession(t, st, "", 1)
		svc := NewService(st, &fakeProvider{err: errors.New("model offline")}, nil, discardLogger())

		result := svc.Generate(context.Background(), GenerateInput{
			SessionID: "s1", UserID: "user-1", Content: "hello",
		})
		assert.Equal(t, StatusFailed, result.Status)
		assert.Equal(t, OpGenerate, result.Op)
	})

	t.Run("persist", func(t *testing.T) {
		st := memory.New()
		seedSession(t, st, "", 1)
		svc := NewService(failingTitleStore{st}, &fakeProvider{response: "A Title"}, nil, discardLogger())

		result := svc.Generate(context.Background(), GenerateInput{
			SessionID: "s1", UserID: "user-1", Content: "hello",
		})
		assert.Equal(t, StatusFailed, result.Status)
		assert.Equal(t, OpPersist, result.Op)
	})
}

func TestGenerateInvalidatesCachedTitle(t *testing.T) {
	st := memory.New()
	seedSession(t, st, "", 1)
	c := cache.NewMemory()
	require.NoError(t, c.Set(context.Background(), "title:s1", "stale", time.Minute))
	svc := NewService(st, &fakeProvider{response: "Fresh Title"}, c, discardLogger())

	result := svc.Generate(context.Background(), GenerateInput{
		SessionID: "s1", UserID: "user-1", Content: "hello",
	})

	require.Equal(t, StatusPersisted, result.Status)
	_, ok, err := c.Get(context.Background(), "title:s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"wrapping double quotes", `"Test Title"`, "Test Title"},
		{"wrapping single quotes", "'Test Title'", "Test Title"},
		{"nested quotes", `"'Test Title'"`, "Test Title"},
		{"whitespace", "  Morning Standup Notes  ", "Morning Standup Notes"},
		{"empty", "", "Chat Summary"},
		{"only quotes", `""`, "Chat Summary"},
		{"only whitespace", "   ", "Chat Summary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitle(tt.input))
		})
	}
}

func TestCleanTitleTruncates(t *testing.T) {
	long := strings.Repeat("abcdefghi ", 9) // 90 characters

	got := CleanTitle(long)

	assert.Len(t, []rune(got), 50)
	assert.True(t, strings.HasSuffix(got, "..."))
}
