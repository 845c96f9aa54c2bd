// ABOUTME: HTTP server wiring: routes, auth middleware, and shared JSON helpers.
// ABOUTME: Maps chat/session/store sentinel errors onto HTTP status codes.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/agentchat/internal/chat"
	"github.com/2389/agentchat/internal/dispatch"
	"github.com/2389/agentchat/internal/export"
	"github.com/2389/agentchat/internal/session"
	"github.com/2389/agentchat/internal/store"
)

type contextKey string

const ownerKey contextKey = "owner"

// Server holds the HTTP handler dependencies.
type Server struct {
	sessions *session.Manager
	registry *Registry
	renderer *export.Renderer
	logger   *slog.Logger
}

// NewServer creates the HTTP API server.
func NewServer(sessions *session.Manager, registry *Registry, renderer *export.Renderer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sessions: sessions,
		registry: registry,
		renderer: renderer,
		logger:   logger.With("component", "api"),
	}
}

// Routes returns the full route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/signin", s.handleSignIn)

	mux.Handle("GET /api/agents", s.requireAuth(s.handleListAgents))
	mux.Handle("PUT /api/agents/selected", s.requireAuth(s.handleSelectAgent))
	mux.Handle("GET /api/state", s.requireAuth(s.handleState))

	mux.Handle("GET /api/conversations", s.requireAuth(s.handleListConversations))
	mux.Handle("POST /api/conversations", s.requireAuth(s.handleCreateConversation))
	mux.Handle("GET /api/conversations/{id}", s.requireAuth(s.handleGetConversation))
	mux.Handle("DELETE /api/conversations/{id}", s.requireAuth(s.handleDeleteConversation))
	mux.Handle("PUT /api/conversations/{id}/title", s.requireAuth(s.handleUpdateTitle))
	mux.Handle("POST /api/conversations/{id}/messages", s.requireAuth(s.handleSendMessage))
	mux.Handle("GET /api/conversations/{id}/export", s.requireAuth(s.handleExport))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAuth verifies the Bearer token and stashes the owner ID in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.sendJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		ownerID, err := s.sessions.Verify(token)
		if err != nil {
			s.sendJSONError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, ownerID)
		next(w, r.WithContext(ctx))
	})
}

// ownerFromContext returns the authenticated owner ID set by requireAuth.
func ownerFromContext(ctx context.Context) string {
	ownerID, _ := ctx.Value(ownerKey).(string)
	return ownerID
}

// service resolves the caller's chat service, writing the error response
// itself when that fails.
func (s *Server) service(w http.ResponseWriter, r *http.Request) (*chat.Service, bool) {
	ownerID := ownerFromContext(r.Context())
	svc, err := s.registry.For(r.Context(), ownerID)
	if err != nil {
		s.sendChatError(w, err)
		return nil, false
	}
	return svc, true
}

// sendChatError maps domain errors onto HTTP status codes.
func (s *Server) sendChatError(w http.ResponseWriter, err error) {
	var dispatchErr *dispatch.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, chat.ErrBusy):
		s.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrDuplicateSend):
		s.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrNoSelection):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotConfigured):
		s.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &dispatchErr):
		s.sendJSONError(w, http.StatusBadGateway, dispatchErr.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
