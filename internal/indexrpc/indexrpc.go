// Package indexrpc exposes the indexer's single operation over the wire so
// the scan engine can run as its own process. One method, scan_library;
// transport is JSON over HTTP with the documented status mapping.
package indexrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/justin13888/beam/internal/apperr"
	"github.com/justin13888/beam/internal/indexer"
)

const scanPath = "/rpc/v1/scan_library"

// ScanRequest is the wire form of a scan_library call.
type ScanRequest struct {
	LibraryID string `json:"library_id"`
}

// ScanResponse is the wire form of a successful scan_library result.
type ScanResponse struct {
	FilesAdded uint32 `json:"files_added"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the indexer RPC endpoint.
type Server struct {
	indexer *indexer.Indexer
	addr    string
}

func NewServer(ix *indexer.Indexer, addr string) *Server {
	return &Server{indexer: ix, addr: addr}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+scanPath, s.handleScan)
	return mux
}

func (s *Server) ListenAndServe() error {
	log.Printf("[indexrpc] listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.indexer.ScanLibrary(r.Context(), req.LibraryID)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidID):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrPathNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ScanResponse{FilesAdded: uint32(result.Added)})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// Client dials a remote indexer RPC endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// Scans of large libraries take a while; the call blocks until done.
		http: &http.Client{Timeout: 4 * time.Hour},
	}
}

func (c *Client) ScanLibrary(libraryID string) (*ScanResponse, error) {
	body, err := json.Marshal(ScanRequest{LibraryID: libraryID})
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Post(c.baseURL+scanPath, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dial indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("scan failed (%d): %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("scan failed: status %d", resp.StatusCode)
	}

	var out ScanResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
