package stream

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/justin13888/beam/internal/apperr"
)

// chunkSize is the unit of body emission; a range is never buffered whole.
const chunkSize = 128 * 1024

// ServeFile serves a cached artifact with byte-range support. Successful
// responses are video/mp4; partial requests get 206 + Content-Range, full requests
// 200. Headers follow the range rules exactly, so error bodies here are
// plain text rather than the JSON envelope.
func ServeFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		http.Error(w, "cannot stat file", http.StatusInternalServerError)
		return
	}
	size := stat.Size()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(size, 10)))
	w.Header().Set("Cache-Control", "public, max-age=3600")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		emit(w, f, size)
		return
	}

	rng, err := parseByteRange(rangeHeader, size)
	if err != nil {
		if errors.Is(err, apperr.ErrRangeNotSatisfiable) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		http.Error(w, "malformed range header", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, size))
	w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		log.Printf("[stream] seek %s: %v", path, err)
		return
	}
	emit(w, f, rng.Length())
}

// emit copies n bytes in fixed-size chunks. A mid-stream error terminates
// the response; headers are already on the wire and are not rewritten.
func emit(w http.ResponseWriter, f *os.File, n int64) {
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(w, io.LimitReader(f, n), buf); err != nil {
		log.Printf("[stream] write: %v", err)
	}
}
