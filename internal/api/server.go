// ABOUTME: HTTP server wiring for the /api/v1 surface
// ABOUTME: Builds the mux, mounts middleware, and holds shared helpers

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lunarch/parley/internal/auth"
	"github.com/lunarch/parley/internal/chat"
	"github.com/lunarch/parley/internal/store"
)

// Server holds the dependencies shared by all HTTP handlers.
type Server struct {
	store       store.Store
	chat        *chat.Service
	verifier    *auth.JWTVerifier
	tokenExpiry time.Duration
	logger      *slog.Logger
}

// NewServer creates the API server.
func NewServer(st store.Store, chatSvc *chat.Service, verifier *auth.JWTVerifier, tokenExpiry time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:       st,
		chat:        chatSvc,
		verifier:    verifier,
		tokenExpiry: tokenExpiry,
		logger:      logger.With("component", "api"),
	}
}

// Routes builds the full handler tree. Login, signup, and the health
// check are public; everything else sits behind the bearer middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/login/access-token", s.handleLoginAccessToken)
	mux.HandleFunc("POST /api/v1/users/signup", s.handleSignup)

	authed := http.NewServeMux()
	authed.HandleFunc("POST /api/v1/login/test-token", s.handleTestToken)

	authed.HandleFunc("GET /api/v1/users/me", s.handleGetMe)
	authed.HandleFunc("PATCH /api/v1/users/me", s.handleUpdateMe)
	authed.HandleFunc("PATCH /api/v1/users/me/password", s.handleUpdateMyPassword)

	authed.HandleFunc("GET /api/v1/threads/", s.handleListThreads)
	authed.HandleFunc("POST /api/v1/threads/", s.handleCreateThread)
	authed.HandleFunc("GET /api/v1/threads/{id}", s.handleGetThread)
	authed.HandleFunc("PUT /api/v1/threads/{id}", s.handleUpdateThread)
	authed.HandleFunc("DELETE /api/v1/threads/{id}", s.handleDeleteThread)

	authed.HandleFunc("POST /api/v1/chatbot/chat", s.handleChat)
	authed.HandleFunc("POST /api/v1/chatbot/chat-history", s.handleChatHistory)

	admin := http.NewServeMux()
	admin.HandleFunc("GET /api/v1/users/", s.handleListUsers)
	admin.HandleFunc("POST /api/v1/users/", s.handleCreateUser)
	admin.HandleFunc("GET /api/v1/users/{id}", s.handleGetUser)
	admin.HandleFunc("PATCH /api/v1/users/{id}", s.handleAdminUpdateUser)
	admin.HandleFunc("DELETE /api/v1/users/{id}", s.handleDeleteUser)

	requireAuth := auth.Middleware(s.store, s.verifier, s.logger)
	requireAdmin := auth.RequireSuperuser()

	authed.Handle("/api/v1/users/", requireAdmin(admin))
	mux.Handle("/api/v1/", requireAuth(authed))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sendJSON writes a JSON response with the given status code.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendError writes a JSON error body in the `{"detail": ...}` shape the
// frontend expects.
func (s *Server) sendError(w http.ResponseWriter, status int, detail string) {
	s.sendJSON(w, status, map[string]string{"detail": detail})
}

// decodeJSON decodes a request body, answering malformed JSON with a
// 422. Unknown fields are ignored.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.sendError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return false
	}
	return true
}
