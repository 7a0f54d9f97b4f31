package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/httputil"
	"github.com/justin13888/beam/internal/indexer"
	"github.com/justin13888/beam/internal/models"
)

type createLibraryRequest struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Description *string `json:"description,omitempty"`
}

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := s.libraries.List()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, libs)
}

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req createLibraryRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}
	if req.Name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	// The requested root must canonicalize to a descendant of VIDEO_DIR.
	rootPath, err := indexer.ValidateLibraryPath(s.config.VideoDir, req.Path)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	lib := &models.Library{
		ID:          uuid.New(),
		Name:        req.Name,
		RootPath:    rootPath,
		Description: req.Description,
	}
	if err := s.libraries.Create(lib); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lib)
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid library id")
		return
	}
	lib, err := s.libraries.GetByID(id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lib)
}

func (s *Server) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid library id")
		return
	}
	if err := s.libraries.Delete(id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "library deleted"})
}

// handleScanLibrary enqueues a scan when a job queue is wired, otherwise
// runs it inline and returns the result.
func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid library id")
		return
	}
	if _, err := s.libraries.GetByID(id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	if s.queue != nil {
		if err := s.queue.EnqueueScan(id.String()); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "could not enqueue scan")
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"message": "scan enqueued"})
		return
	}

	result, err := s.indexer.ScanLibrary(r.Context(), id.String())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
