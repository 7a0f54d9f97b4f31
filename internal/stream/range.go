// Package stream is the capability-checked data path: on-demand cache
// materialization of remuxed artifacts and byte-range serving of the result.
package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/justin13888/beam/internal/apperr"
)

// byteRange is an inclusive [Start, End] slice of a file.
type byteRange struct {
	Start int64
	End   int64
}

func (r byteRange) Length() int64 { return r.End - r.Start + 1 }

// parseByteRange interprets a Range header value against a known file size.
//
// Malformed headers (missing "bytes=" prefix, no dash, non-numeric bounds)
// fail with ErrValidation; syntactically valid but unsatisfiable ranges
// (start past EOF, start > end, any range against an empty file) fail with
// ErrRangeNotSatisfiable.
func parseByteRange(header string, size int64) (byteRange, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return byteRange{}, fmt.Errorf("range %q: missing bytes= prefix: %w", header, apperr.ErrValidation)
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return byteRange{}, fmt.Errorf("range %q: missing dash: %w", header, apperr.ErrValidation)
	}

	if size <= 0 {
		return byteRange{}, fmt.Errorf("range against empty file: %w", apperr.ErrRangeNotSatisfiable)
	}

	var start, end int64
	if startStr == "" {
		// Suffix form: bytes=-N means the final N bytes. N = 0 asks for
		// nothing and falls through to the unsatisfiable check below.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return byteRange{}, fmt.Errorf("range %q: bad suffix length: %w", header, apperr.ErrValidation)
		}
		start = size - n
		if start < 0 {
			start = 0
		}
		end = size - 1
	} else {
		var err error
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return byteRange{}, fmt.Errorf("range %q: bad start: %w", header, apperr.ErrValidation)
		}

		end = size - 1
		if endStr != "" {
			end, err = strconv.ParseInt(endStr, 10, 64)
			if err != nil {
				return byteRange{}, fmt.Errorf("range %q: bad end: %w", header, apperr.ErrValidation)
			}
			if end >= size {
				end = size - 1
			}
		}
	}

	if start > end || start >= size {
		return byteRange{}, fmt.Errorf("range %q unsatisfiable for size %d: %w", header, size, apperr.ErrRangeNotSatisfiable)
	}
	return byteRange{Start: start, End: end}, nil
}
