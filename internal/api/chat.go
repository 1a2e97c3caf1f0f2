package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/glimmerchat/engine/internal/auth"
	"github.com/glimmerchat/engine/internal/chat"
	"github.com/glimmerchat/engine/internal/store"
)

const userIDHeader = "X-User-ID"

type chatResponse struct {
	Content            string           `json:"content"`
	Model              string           `json:"model"`
	Agent              string           `json:"agent"`
	Tools              *store.ToolsUsed `json:"tools_used,omitempty"`
	UserMessageID      string           `json:"user_message_id,omitempty"`
	AssistantMessageID string           `json:"assistant_message_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	userID, err := s.authChain.Resolve(r.Context(), auth.FromHTTP(r, r.Header.Get(userIDHeader), req.SessionID))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	cfg, err := s.setup.Prepare(r.Context(), chat.PrepareInput{
		Request: req,
		UserID:  userID,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.ensureSession(r, req.SessionID, userID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result, err := s.runner.ExecuteTurn(r.Context(), cfg, s.persister, chat.TurnInput{
		SessionID: req.SessionID,
		UserID:    userID,
		Content:   chat.LatestMessage(req),
	})
	if err != nil {
		s.logger.Error("chat turn failed", "session_id", req.SessionID, "error", err)
		http.Error(w, "chat turn failed", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, chatResponse{
		Content:            result.Content,
		Model:              result.Model,
		Agent:              string(cfg.AgentType),
		Tools:              result.Tools,
		UserMessageID:      result.UserMessageID,
		AssistantMessageID: result.AssistantMessageID,
	}, http.StatusOK)
}

func (s *Server) handleWidgetChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	cfg, err := s.setup.Prepare(r.Context(), chat.PrepareInput{
		Request:  req,
		IsWidget: true,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.runner.ExecuteTurn(r.Context(), cfg, s.widget, chat.TurnInput{
		SessionID: req.SessionID,
		Content:   chat.LatestMessage(req),
	})
	if err != nil {
		s.logger.Error("widget turn failed", "session_id", req.SessionID, "error", err)
		http.Error(w, "chat turn failed", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, chatResponse{
		Content: result.Content,
		Model:   result.Model,
		Agent:   string(cfg.AgentType),
	}, http.StatusOK)
}

// ensureSession creates the session row on first contact. An existing row is
// left untouched.
func (s *Server) ensureSession(r *http.Request, sessionID string, userID string) error {
	_, err := s.store.GetSession(r.Context(), sessionID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrSessionNotFound) {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.store.CreateSession(r.Context(), store.Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}
