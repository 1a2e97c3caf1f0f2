package events

import (
	"context"
	"strings"
	"sync"
)

const (
	TypeMessageSaved  = "message.saved"
	TypeTurnCompleted = "turn.completed"
	TypeTitleUpdated  = "title.updated"
)

type SessionEvent struct {
	SessionID string         `json:"session_id"`
	Seq       int64          `json:"seq"`
	Type      string         `json:"type"`
	Ts        string         `json:"ts"`
	TraceID   string         `json:"trace_id,omitempty"`
	Payload   map[string]any `json:"payload"`
}

// Broker fans session events out to SSE subscribers. Publishing never blocks;
// a slow subscriber drops events rather than stalling the turn.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan SessionEvent]struct{}
	seq         map[string]int64
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[chan SessionEvent]struct{}{},
		seq:         map[string]int64{},
	}
}

func (b *Broker) Subscribe(ctx context.Context, sessionID string) <-chan SessionEvent {
	ch := make(chan SessionEvent, 16)

	b.mu.Lock()
	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = map[chan SessionEvent]struct{}{}
	}
	b.subscribers[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	// The channel is deliberately never closed. Publish sends outside the
	// lock, so a concurrent publisher may still hold a reference after the
	// subscriber is removed; the buffered send just gets dropped. Readers
	// exit on ctx.Done instead of channel close.
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[sessionID] != nil {
			delete(b.subscribers[sessionID], ch)
			if len(b.subscribers[sessionID]) == 0 {
				delete(b.subscribers, sessionID)
			}
		}
		b.mu.Unlock()
	}()

	return ch
}

func (b *Broker) Publish(event SessionEvent) {
	event.Type = NormalizeType(event.Type)

	b.mu.Lock()
	b.seq[event.SessionID]++
	event.Seq = b.seq[event.SessionID]
	subscribers := b.subscribers[event.SessionID]
	chans := make([]chan SessionEvent, 0, len(subscribers))
	for ch := range subscribers {
		chans = append(chans, ch)
	}
	b.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
		}
	}
}
