package api

import (
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/httputil"
	"github.com/justin13888/beam/internal/stream"
)

// handleCreateStreamToken mints a short-lived capability for one file. The
// caller must hold a valid session bearer; the file must exist.
func (s *Server) handleCreateStreamToken(w http.ResponseWriter, r *http.Request) {
	streamID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid stream id")
		return
	}

	token, err := s.auth.CreateStreamToken(userID(r), streamID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleStream serves the remuxed artifact for a file, materializing it on
// first request. The capability's embedded stream id must match the URL id;
// a mismatch is unauthorized, not forbidden.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing stream token")
		return
	}
	grantedID, err := s.auth.VerifyStreamToken(token)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid stream token")
		return
	}

	streamID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid stream id")
		return
	}
	if grantedID != streamID.String() {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "token does not grant this stream")
		return
	}

	file, err := s.files.FindByID(streamID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if _, err := os.Stat(file.Path); err != nil {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "source file missing on disk")
		return
	}

	cachePath, err := s.cache.Ensure(r.Context(), file.ID, file.Path)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "could not materialize stream")
		return
	}

	stream.ServeFile(w, r, cachePath)
}
