// ABOUTME: Account signup and signin HTTP handlers.
// ABOUTME: Both return a session token so clients can start chatting immediately.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2389/agentchat/internal/session"
	"github.com/2389/agentchat/internal/store"
)

// CredentialsRequest is the JSON request body for POST /api/signup and
// POST /api/signin.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is the JSON response for successful signup or signin.
type SessionResponse struct {
	AccountID string `json:"account_id,omitempty"`
	Token     string `json:"token"`
}

// handleSignUp handles POST /api/signup.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	account, err := s.sessions.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateAccount) {
			s.sendJSONError(w, http.StatusConflict, "account already exists")
			return
		}
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Error("post-signup signin failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusCreated, SessionResponse{
		AccountID: account.ID,
		Token:     token,
	})
}

// handleSignIn handles POST /api/signin.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, err := s.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			s.sendJSONError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		s.logger.Error("signin failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, SessionResponse{Token: token})
}
