package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/glimmerchat/engine/internal/auth"
	"github.com/glimmerchat/engine/internal/chat"
	"github.com/glimmerchat/engine/internal/config"
	"github.com/glimmerchat/engine/internal/events"
	"github.com/glimmerchat/engine/internal/store"
	"github.com/glimmerchat/engine/internal/titles"
)

type Server struct {
	store     store.Store
	broker    Broker
	setup     *chat.Setup
	runner    *chat.Runner
	persister *chat.Persister
	widget    *chat.Persister
	titles    *titles.Service
	authChain AuthChain
	searchOK  func() bool
	cfg       config.Config
	logger    *slog.Logger
}

type Broker interface {
	Publish(event events.SessionEvent)
	Subscribe(ctx context.Context, sessionID string) <-chan events.SessionEvent
}

type AuthChain interface {
	Resolve(ctx context.Context, req auth.Request) (string, error)
}

type Deps struct {
	Store     store.Store
	Broker    Broker
	Setup     *chat.Setup
	Runner    *chat.Runner
	Titles    *titles.Service
	AuthChain AuthChain
	SearchOK  func() bool
	Config    config.Config
	Logger    *slog.Logger
}

func NewServer(deps Deps) *Server {
	return &Server{
		store:     deps.Store,
		broker:    deps.Broker,
		setup:     deps.Setup,
		runner:    deps.Runner,
		persister: chat.NewPersister(deps.Store, deps.Logger),
		widget:    chat.NewDisabledPersister(deps.Logger),
		titles:    deps.Titles,
		authChain: deps.AuthChain,
		searchOK:  deps.SearchOK,
		cfg:       deps.Config,
		logger:    deps.Logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/chat", s.handleChat)
	r.Get("/sessions", s.listSessions)
	r.Get("/sessions/{id}/messages", s.listSessionMessages)
	r.Post("/sessions/{id}/title", s.generateTitle)
	r.Get("/sessions/{id}/events", s.streamEvents)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	// The widget surface is the only CORS-open route group.
	r.Route("/widget", func(r chi.Router) {
		r.Use(corsMiddleware)
		r.Post("/chat", s.handleWidgetChat)
	})

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodGet && strings.HasSuffix(cleanPath, "/events") {
		return true
	}
	if method == http.MethodGet && (cleanPath == "/health" || cleanPath == "/ready") {
		return true
	}
	if method == http.MethodOptions {
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.store.ListSessions(ctx, ""); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	if s.searchOK == nil || !s.searchOK() {
		subsystems["search"] = subsystemStatus{Status: "skipped"}
	} else {
		subsystems["search"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}
