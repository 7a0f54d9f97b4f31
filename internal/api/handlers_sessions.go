package api

import (
	"net/http"

	"github.com/justin13888/beam/internal/httputil"
)

type sessionView struct {
	SessionID  string `json:"session_id"`
	DeviceHash string `json:"device_hash"`
	IP         string `json:"ip"`
	CreatedAt  int64  `json:"created_at"`
	LastActive int64  `json:"last_active"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.auth.ListSessions(r.Context(), userID(r).String())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	views := make([]sessionView, 0, len(entries))
	for _, e := range entries {
		views = append(views, sessionView{
			SessionID:  e.SessionID,
			DeviceHash: e.Data.DeviceHash,
			IP:         e.Data.IP,
			CreatedAt:  e.Data.CreatedAt,
			LastActive: e.Data.LastActive,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// handleLogoutAll revokes every session the user has, on every device.
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	count, err := s.auth.LogoutAll(r.Context(), userID(r).String())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.clearSessionCookie(w)
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"revoked": count})
}
