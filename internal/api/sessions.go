package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/glimmerchat/engine/internal/auth"
	"github.com/glimmerchat/engine/internal/events"
	"github.com/glimmerchat/engine/internal/titles"
)

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authChain.Resolve(r.Context(), auth.FromHTTP(r, r.Header.Get(userIDHeader), ""))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sessions, err := s.store.ListSessions(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, map[string]any{"sessions": sessions}, http.StatusOK)
}

func (s *Server) listSessionMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if _, err := s.authChain.Resolve(r.Context(), auth.FromHTTP(r, r.Header.Get(userIDHeader), sessionID)); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	messages, err := s.store.ListMessages(r.Context(), sessionID, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, map[string]any{"messages": messages}, http.StatusOK)
}

type titleRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// generateTitle is the server-to-server title endpoint behind the full auth
// chain: internal secret, then cookie, then session ownership.
func (s *Server) generateTitle(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req titleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	userID, err := s.authChain.Resolve(r.Context(), auth.FromHTTP(r, req.UserID, sessionID))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := s.titles.Generate(r.Context(), titles.GenerateInput{
		SessionID: sessionID,
		UserID:    userID,
		Content:   req.Content,
	})
	if result.Status == titles.StatusPersisted {
		s.broker.Publish(events.SessionEvent{
			SessionID: sessionID,
			Type:      events.TypeTitleUpdated,
			Ts:        time.Now().UTC().Format(time.RFC3339),
			TraceID:   uuid.New().String(),
			Payload:   map[string]any{"title": result.Title},
		})
	}
	writeJSONStatus(w, result, http.StatusOK)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	eventsChan := s.broker.Subscribe(ctx, sessionID)
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			sendSSE(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.SessionEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.SessionID, event.Seq)
	fmt.Fprint(w, "event: session_event\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
