// ABOUTME: Login endpoints issuing and probing bearer tokens
// ABOUTME: Form-encoded credentials in, JWT access token out

package api

import (
	"errors"
	"net/http"

	"github.com/lunarch/parley/internal/auth"
	"github.com/lunarch/parley/internal/store"
)

// TokenResponse is the JSON response for POST /login/access-token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleLoginAccessToken handles POST /api/v1/login/access-token.
// Credentials arrive form-encoded under username/password; username is
// the account email. Bad credentials, unknown accounts, and inactive
// accounts all produce the same 401.
func (s *Server) handleLoginAccessToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.sendError(w, http.StatusUnprocessableEntity, "invalid form body")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		s.sendError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			auth.BurnPasswordCheck(password)
			s.sendError(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		s.logger.Error("login lookup failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		s.sendError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if !user.IsActive {
		s.sendError(w, http.StatusUnauthorized, "Inactive user")
		return
	}

	token, err := s.verifier.Generate(user.ID, s.tokenExpiry)
	if err != nil {
		s.logger.Error("token generation failed", "error", err, "user_id", user.ID)
		s.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sendJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// handleTestToken handles POST /api/v1/login/test-token. Reaching the
// handler at all means the middleware accepted the token; echo the user.
func (s *Server) handleTestToken(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	s.sendJSON(w, http.StatusOK, toUserPublic(user))
}
