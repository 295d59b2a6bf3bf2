// ABOUTME: Thread CRUD endpoints over the identity store
// ABOUTME: Owners see their threads, superusers see everything

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lunarch/parley/internal/auth"
	"github.com/lunarch/parley/internal/store"
)

const titleMaxLen = 255

// ThreadPublic is the wire shape of a thread record.
type ThreadPublic struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ThreadsPublic is the paginated list response for GET /threads/.
type ThreadsPublic struct {
	Data  []ThreadPublic `json:"data"`
	Count int            `json:"count"`
}

// CreateThreadRequest is the JSON request body for POST /threads/.
type CreateThreadRequest struct {
	Title string `json:"title"`
}

// UpdateThreadRequest is the JSON request body for PUT /threads/{id}.
type UpdateThreadRequest struct {
	Title string `json:"title"`
}

func toThreadPublic(thread *store.Thread) ThreadPublic {
	return ThreadPublic{
		ID:        thread.ID,
		Title:     thread.Title,
		UserID:    thread.UserID,
		CreatedAt: thread.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: thread.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func validTitle(title string) bool {
	return strings.TrimSpace(title) != "" && len(title) <= titleMaxLen
}

// loadOwnedThread fetches a thread and enforces the owner-or-superuser
// rule, writing the error response itself on failure.
func (s *Server) loadOwnedThread(w http.ResponseWriter, r *http.Request, user *store.User, id string) (*store.Thread, bool) {
	thread, err := s.store.GetThread(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "Thread not found")
			return nil, false
		}
		s.logger.Error("thread lookup failed", "error", err, "thread_id", id)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if !user.IsSuperuser && thread.UserID != user.ID {
		s.sendError(w, http.StatusForbidden, "Not enough permissions")
		return nil, false
	}
	return thread, true
}

// handleListThreads handles GET /api/v1/threads/.
func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	skip, limit := pagination(r)

	var (
		threads []*store.Thread
		count   int
		err     error
	)
	if user.IsSuperuser {
		threads, err = s.store.ListAllThreads(r.Context(), skip, limit)
		if err == nil {
			count, err = s.store.CountAllThreads(r.Context())
		}
	} else {
		threads, err = s.store.ListThreads(r.Context(), user.ID, skip, limit)
		if err == nil {
			count, err = s.store.CountThreads(r.Context(), user.ID)
		}
	}
	if err != nil {
		s.logger.Error("thread list failed", "error", err, "user_id", user.ID)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ThreadsPublic{Data: make([]ThreadPublic, 0, len(threads)), Count: count}
	for _, t := range threads {
		resp.Data = append(resp.Data, toThreadPublic(t))
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleCreateThread handles POST /api/v1/threads/.
func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	var req CreateThreadRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if !validTitle(req.Title) {
		s.sendError(w, http.StatusUnprocessableEntity, "title must be between 1 and 255 characters")
		return
	}

	now := time.Now()
	thread := &store.Thread{
		ID:        uuid.New().String(),
		Title:     req.Title,
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateThread(r.Context(), thread); err != nil {
		s.logger.Error("thread creation failed", "error", err, "user_id", user.ID)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.sendJSON(w, http.StatusOK, toThreadPublic(thread))
}

// handleGetThread handles GET /api/v1/threads/{id}.
func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	thread, ok := s.loadOwnedThread(w, r, user, r.PathValue("id"))
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, toThreadPublic(thread))
}

// handleUpdateThread handles PUT /api/v1/threads/{id}.
func (s *Server) handleUpdateThread(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	thread, ok := s.loadOwnedThread(w, r, user, r.PathValue("id"))
	if !ok {
		return
	}

	var req UpdateThreadRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if !validTitle(req.Title) {
		s.sendError(w, http.StatusUnprocessableEntity, "title must be between 1 and 255 characters")
		return
	}

	if err := s.store.UpdateThreadTitle(r.Context(), thread.ID, req.Title); err != nil {
		s.logger.Error("thread update failed", "error", err, "thread_id", thread.ID)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	updated, err := s.store.GetThread(r.Context(), thread.ID)
	if err != nil {
		s.logger.Error("thread reload failed", "error", err, "thread_id", thread.ID)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.sendJSON(w, http.StatusOK, toThreadPublic(updated))
}

// handleDeleteThread handles DELETE /api/v1/threads/{id}. The checkpoint
// sequence keyed by this id is left behind; with the thread row gone no
// request can reach it again.
func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	thread, ok := s.loadOwnedThread(w, r, user, r.PathValue("id"))
	if !ok {
		return
	}

	if err := s.store.DeleteThread(r.Context(), thread.ID); err != nil {
		s.logger.Error("thread delete failed", "error", err, "thread_id", thread.ID)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.sendJSON(w, http.StatusOK, MessageResponse{Message: "Thread deleted successfully"})
}
