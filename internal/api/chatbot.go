// ABOUTME: Chatbot endpoints bridging HTTP to the conversation gateway
// ABOUTME: POST chat runs one agent turn, POST chat-history reads the transcript

package api

import (
	"errors"
	"net/http"

	"github.com/lunarch/parley/internal/auth"
	"github.com/lunarch/parley/internal/chat"
	"github.com/lunarch/parley/internal/store"
)

// ChatRequest is the JSON request body for POST /chatbot/chat.
type ChatRequest struct {
	Content  string `json:"content"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ChatResponse is the JSON response for POST /chatbot/chat. Response is
// the assistant reply rendered as HTML.
type ChatResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
}

// ChatHistoryRequest is the JSON request body for POST /chatbot/chat-history.
type ChatHistoryRequest struct {
	ThreadID string `json:"thread_id"`
}

// ChatHistoryResponse is the JSON response for POST /chatbot/chat-history.
type ChatHistoryResponse struct {
	ThreadID string         `json:"thread_id"`
	Messages []chat.Message `json:"messages"`
}

// handleChat handles POST /api/v1/chatbot/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	var req ChatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.chat.SendMessage(r.Context(), user, req.ThreadID, req.Content)
	if err != nil {
		s.sendChatError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, ChatResponse{
		Response: result.Response,
		ThreadID: result.ThreadID,
	})
}

// handleChatHistory handles POST /api/v1/chatbot/chat-history.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	var req ChatHistoryRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ThreadID == "" {
		s.sendError(w, http.StatusUnprocessableEntity, "thread_id is required")
		return
	}

	messages, err := s.chat.GetHistory(r.Context(), user, req.ThreadID)
	if err != nil {
		s.sendChatError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, ChatHistoryResponse{
		ThreadID: req.ThreadID,
		Messages: messages,
	})
}

// sendChatError maps chat service errors onto HTTP statuses. Upstream
// failures stay opaque; the real cause is already logged below.
func (s *Server) sendChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrBlankContent):
		s.sendError(w, http.StatusUnprocessableEntity, "content must not be blank")
	case errors.Is(err, store.ErrNotFound):
		s.sendError(w, http.StatusNotFound, "Thread not found")
	case errors.Is(err, chat.ErrForbidden):
		s.sendError(w, http.StatusForbidden, "Not enough permissions")
	case errors.Is(err, chat.ErrUpstream):
		s.sendError(w, http.StatusInternalServerError, "Failed to process message")
	default:
		s.logger.Error("chat request failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
	}
}
