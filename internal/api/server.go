// Package api is the HTTP surface: auth, sessions, libraries, admin events,
// and the stream data path endpoints.
package api

import (
	"net/http"
	"strings"

	"github.com/justin13888/beam/internal/auth"
	"github.com/justin13888/beam/internal/config"
	"github.com/justin13888/beam/internal/httputil"
	"github.com/justin13888/beam/internal/indexer"
	"github.com/justin13888/beam/internal/jobs"
	"github.com/justin13888/beam/internal/notifications"
	"github.com/justin13888/beam/internal/repository"
	"github.com/justin13888/beam/internal/stream"
	"github.com/justin13888/beam/internal/version"
)

type Server struct {
	config    *config.Config
	auth      *auth.Service
	users     auth.UserRepository
	libraries repository.LibraryRepository
	files     repository.FileRepository
	cache     *stream.Cache
	indexer   *indexer.Indexer
	queue     *jobs.Queue
	notifier  notifications.Service
	adminLog  notifications.AdminLogService
	router    *http.ServeMux
}

// NewServer wires the route table. queue may be nil, in which case scan
// requests run synchronously instead of being enqueued.
func NewServer(
	cfg *config.Config,
	authService *auth.Service,
	users auth.UserRepository,
	libraries repository.LibraryRepository,
	files repository.FileRepository,
	cache *stream.Cache,
	ix *indexer.Indexer,
	queue *jobs.Queue,
	notifier notifications.Service,
	adminLog notifications.AdminLogService,
) *Server {
	s := &Server{
		config:    cfg,
		auth:      authService,
		users:     users,
		libraries: libraries,
		files:     files,
		cache:     cache,
		indexer:   ix,
		queue:     queue,
		notifier:  notifier,
		adminLog:  adminLog,
		router:    http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)

	s.router.HandleFunc("POST /v1/auth/register", s.handleRegister)
	s.router.HandleFunc("POST /v1/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /v1/auth/refresh", s.handleRefresh)
	s.router.HandleFunc("POST /v1/auth/logout", s.handleLogout)

	s.router.HandleFunc("GET /v1/sessions", s.requireUser(s.handleListSessions))
	s.router.HandleFunc("DELETE /v1/sessions", s.requireUser(s.handleLogoutAll))

	s.router.HandleFunc("GET /v1/libraries", s.requireUser(s.handleListLibraries))
	s.router.HandleFunc("POST /v1/libraries", s.requireAdmin(s.handleCreateLibrary))
	s.router.HandleFunc("GET /v1/libraries/{id}", s.requireUser(s.handleGetLibrary))
	s.router.HandleFunc("DELETE /v1/libraries/{id}", s.requireAdmin(s.handleDeleteLibrary))
	s.router.HandleFunc("POST /v1/libraries/{id}/scan", s.requireAdmin(s.handleScanLibrary))

	s.router.HandleFunc("POST /v1/stream/{id}/token", s.requireUser(s.handleCreateStreamToken))
	s.router.HandleFunc("GET /v1/stream/mp4/{id}", s.handleStream)

	s.router.HandleFunc("GET /v1/admin/events", s.requireAdmin(s.handleListAdminEvents))
	s.router.HandleFunc("GET /v1/admin/events/ws", s.requireAdmin(s.handleAdminEventSocket))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Get().Version,
	})
}

// bearerToken pulls the credential from the Authorization header, falling
// back to a token query param for endpoints video elements hit directly.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// requireUser verifies the bearer credential and stamps the user id onto
// the request for the handler.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing authorization")
			return
		}
		user, err := s.auth.VerifyToken(r.Context(), token)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		r.Header.Set("X-User-ID", user.UserID)
		next(w, r)
	}
}

// requireAdmin is requireUser plus an is_admin check on the user row.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.lookupUser(r)
		if err != nil || !user.IsAdmin {
			httputil.WriteError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next(w, r)
	})
}

func (s *Server) Start() error {
	handler := s.securityHeaders(s.router)
	return http.ListenAndServe(s.config.Server.Address(), handler)
}

// Handler exposes the routed mux, used by tests via httptest.
func (s *Server) Handler() http.Handler {
	return s.securityHeaders(s.router)
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}
