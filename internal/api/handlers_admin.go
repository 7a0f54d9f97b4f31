package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/justin13888/beam/internal/httputil"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// handleListAdminEvents pages the durable admin log, newest first.
func (s *Server) handleListAdminEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	events, err := s.adminLog.List(limit, offset)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	total, err := s.adminLog.Count()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// handleAdminEventSocket tails the live event stream over a websocket.
// A slow client misses events rather than backpressuring the publisher.
func (s *Server) handleAdminEventSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[api] websocket accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events, cancel := s.notifier.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}
