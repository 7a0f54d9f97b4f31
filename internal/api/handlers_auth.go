package api

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/apperr"
	"github.com/justin13888/beam/internal/httputil"
	"github.com/justin13888/beam/internal/models"
)

const sessionCookieName = "session_id"

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

type refreshRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "username, email, and password are required")
		return
	}

	resp, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password, deviceHash(r), clientIP(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.setSessionCookie(w, resp.SessionID)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}
	if req.UsernameOrEmail == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "credentials are required")
		return
	}

	resp, err := s.auth.Login(r.Context(), req.UsernameOrEmail, req.Password, deviceHash(r), clientIP(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.setSessionCookie(w, resp.SessionID)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleRefresh accepts the session id from the cookie or the body.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if c, err := r.Cookie(sessionCookieName); err == nil {
		sessionID = c.Value
	}
	if sessionID == "" {
		var req refreshRequest
		if err := httputil.ReadJSON(r, &req); err == nil {
			sessionID = req.SessionID
		}
	}
	if sessionID == "" {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "no session")
		return
	}

	resp, err := s.auth.Refresh(r.Context(), sessionID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	s.setSessionCookie(w, resp.SessionID)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleLogout always succeeds, even for an unknown or missing session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if c, err := r.Cookie(sessionCookieName); err == nil {
		sessionID = c.Value
	}
	if sessionID == "" {
		var req refreshRequest
		if err := httputil.ReadJSON(r, &req); err == nil {
			sessionID = req.SessionID
		}
	}
	if sessionID != "" {
		// Logout succeeds from the client's perspective no matter what the
		// store says; a failed delete is the server's problem.
		if err := s.auth.Logout(r.Context(), sessionID); err != nil {
			log.Printf("[api] logout %s: %v", sessionID, err)
		}
	}

	s.clearSessionCookie(w)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(s.config.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// userID reads the id stamped by requireUser.
func userID(r *http.Request) uuid.UUID {
	id, _ := uuid.Parse(r.Header.Get("X-User-ID"))
	return id
}

func (s *Server) lookupUser(r *http.Request) (*models.User, error) {
	id := userID(r)
	if id == uuid.Nil {
		return nil, fmt.Errorf("no authenticated user: %w", apperr.ErrUnauthorized)
	}
	return s.users.FindByID(id)
}

// deviceHash fingerprints the client from its user agent; sessions listed
// for a user carry it so devices can be told apart.
func deviceHash(r *http.Request) string {
	sum := sha256.Sum256([]byte(r.UserAgent()))
	return hex.EncodeToString(sum[:8])
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
