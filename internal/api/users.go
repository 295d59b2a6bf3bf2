// ABOUTME: User endpoints covering signup, self-service, and admin management
// ABOUTME: Admin routes are mounted behind the superuser middleware

package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lunarch/parley/internal/auth"
	"github.com/lunarch/parley/internal/store"
)

const (
	passwordMinLen = 8
	passwordMaxLen = 40
)

// UserPublic is the wire shape of a user record.
type UserPublic struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	FullName    string `json:"full_name,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// UsersPublic is the paginated list response for GET /users/.
type UsersPublic struct {
	Data  []UserPublic `json:"data"`
	Count int          `json:"count"`
}

// SignupRequest is the JSON request body for POST /users/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// CreateUserRequest is the JSON request body for the admin POST /users/.
type CreateUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name,omitempty"`
	IsActive    *bool  `json:"is_active,omitempty"`
	IsSuperuser bool   `json:"is_superuser,omitempty"`
}

// UpdateMeRequest is the JSON request body for PATCH /users/me.
type UpdateMeRequest struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

// UpdatePasswordRequest is the JSON request body for PATCH /users/me/password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AdminUpdateUserRequest is the JSON request body for the admin PATCH /users/{id}.
type AdminUpdateUserRequest struct {
	Email       *string `json:"email,omitempty"`
	Password    *string `json:"password,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

// MessageResponse is the generic `{"message": ...}` success body.
type MessageResponse struct {
	Message string `json:"message"`
}

func toUserPublic(user *store.User) UserPublic {
	return UserPublic{
		ID:          user.ID,
		Email:       user.Email,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		FullName:    user.FullName,
		CreatedAt:   user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   user.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// validateCredentials checks email and password shape, writing a 422 and
// returning false on failure.
func (s *Server) validateCredentials(w http.ResponseWriter, email, password string) bool {
	if _, err := mail.ParseAddress(email); err != nil {
		s.sendError(w, http.StatusUnprocessableEntity, "invalid email address")
		return false
	}
	if len(password) < passwordMinLen || len(password) > passwordMaxLen {
		s.sendError(w, http.StatusUnprocessableEntity, "password must be between 8 and 40 characters")
		return false
	}
	return true
}

// createUser hashes the password and inserts the user, translating the
// duplicate-email sentinel to a 409.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request, email, password, fullName string, isActive, isSuperuser bool) (*store.User, bool) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}

	now := time.Now()
	user := &store.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		IsActive:     isActive,
		IsSuperuser:  isSuperuser,
		FullName:     fullName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			s.sendError(w, http.StatusConflict, "A user with this email already exists")
			return nil, false
		}
		s.logger.Error("user creation failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	return user, true
}

// handleSignup handles POST /api/v1/users/signup (open registration).
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if !s.validateCredentials(w, req.Email, req.Password) {
		return
	}

	user, ok := s.createUser(w, r, req.Email, req.Password, req.FullName, true, false)
	if !ok {
		return
	}
	s.logger.Info("user signed up", "user_id", user.ID)
	s.sendJSON(w, http.StatusOK, toUserPublic(user))
}

// handleGetMe handles GET /api/v1/users/me.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	s.sendJSON(w, http.StatusOK, toUserPublic(user))
}

// handleUpdateMe handles PATCH /api/v1/users/me.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	var req UpdateMeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Email != nil {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			s.sendError(w, http.StatusUnprocessableEntity, "invalid email address")
			return
		}
	}

	update := &store.UserUpdate{Email: req.Email, FullName: req.FullName}
	if err := s.store.UpdateUser(r.Context(), user.ID, update); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			s.sendError(w, http.StatusConflict, "A user with this email already exists")
			return
		}
		s.logger.Error("user update failed", "error", err, "user_id", user.ID)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	updated, err := s.store.GetUser(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("user reload failed", "error", err, "user_id", user.ID)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.sendJSON(w, http.StatusOK, toUserPublic(updated))
}

// handleUpdateMyPassword handles PATCH /api/v1/users/me/password.
func (s *Server) handleUpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	var req UpdatePasswordRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.NewPassword) < passwordMinLen || len(req.NewPassword) > passwordMaxLen {
		s.sendError(w, http.StatusUnprocessableEntity, "password must be between 8 and 40 characters")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		s.sendError(w, http.StatusBadRequest, "Incorrect password")
		return
	}
	if req.CurrentPassword == req.NewPassword {
		s.sendError(w, http.StatusBadRequest, "New password cannot be the same as the current one")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := s.store.UpdateUser(r.Context(), user.ID, &store.UserUpdate{PasswordHash: &hash}); err != nil {
		s.logger.Error("password update failed", "error", err, "user_id", user.ID)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.sendJSON(w, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}

// pagination reads skip/limit query parameters with the usual defaults.
func pagination(r *http.Request) (skip, limit int) {
	skip, limit = 0, 100
	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			skip = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			limit = n
		}
	}
	return skip, limit
}

// handleListUsers handles the admin GET /api/v1/users/.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	users, err := s.store.ListUsers(r.Context(), skip, limit)
	if err != nil {
		s.logger.Error("user list failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	count, err := s.store.CountUsers(r.Context())
	if err != nil {
		s.logger.Error("user count failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := UsersPublic{Data: make([]UserPublic, 0, len(users)), Count: count}
	for _, u := range users {
		resp.Data = append(resp.Data, toUserPublic(u))
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleCreateUser handles the admin POST /api/v1/users/.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if !s.validateCredentials(w, req.Email, req.Password) {
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	user, ok := s.createUser(w, r, req.Email, req.Password, req.FullName, isActive, req.IsSuperuser)
	if !ok {
		return
	}
	s.logger.Info("user created", "user_id", user.ID, "superuser", user.IsSuperuser)
	s.sendJSON(w, http.StatusOK, toUserPublic(user))
}

// handleGetUser handles the admin GET /api/v1/users/{id}.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("user lookup failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.sendJSON(w, http.StatusOK, toUserPublic(user))
}

// handleAdminUpdateUser handles the admin PATCH /api/v1/users/{id}.
func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req AdminUpdateUserRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Email != nil {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			s.sendError(w, http.StatusUnprocessableEntity, "invalid email address")
			return
		}
	}

	update := &store.UserUpdate{
		Email:       req.Email,
		FullName:    req.FullName,
		IsActive:    req.IsActive,
		IsSuperuser: req.IsSuperuser,
	}
	if req.Password != nil {
		if len(*req.Password) < passwordMinLen || len(*req.Password) > passwordMaxLen {
			s.sendError(w, http.StatusUnprocessableEntity, "password must be between 8 and 40 characters")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.logger.Error("password hashing failed", "error", err)
			s.sendError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		update.PasswordHash = &hash
	}

	if err := s.store.UpdateUser(r.Context(), id, update); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.sendError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, store.ErrEmailExists):
			s.sendError(w, http.StatusConflict, "A user with this email already exists")
		default:
			s.logger.Error("user update failed", "error", err, "user_id", id)
			s.sendError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	updated, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.logger.Error("user reload failed", "error", err, "user_id", id)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.sendJSON(w, http.StatusOK, toUserPublic(updated))
}

// handleDeleteUser handles the admin DELETE /api/v1/users/{id}. Threads
// cascade in the identity store; the checkpoint sequences are orphaned
// and unreachable once ownership is gone.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	actor := auth.MustUserFromContext(r.Context())
	if actor.ID == id {
		s.sendError(w, http.StatusForbidden, "Super users are not allowed to delete themselves")
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("user delete failed", "error", err, "user_id", id)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.logger.Info("user deleted", "user_id", id, "deleted_by", actor.ID)
	s.sendJSON(w, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}
