package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/apperr"
	"golang.org/x/sync/singleflight"
)

// Cache maps file ids to materialized artifacts under the cache directory.
// Materialization is single-flighted per artifact: concurrent requests for
// the same id share one transcoder invocation and its outcome.
type Cache struct {
	dir        string
	transcoder Transcoder
	group      singleflight.Group
}

func NewCache(dir string, transcoder Transcoder) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, transcoder: transcoder}, nil
}

// ArtifactPath is where the remuxed output for a file id lives.
func (c *Cache) ArtifactPath(id uuid.UUID) string {
	return filepath.Join(c.dir, id.String()+".mp4")
}

// Ensure returns the artifact path, materializing it from source on first
// use. After the first success, the transcoder is never re-invoked for the
// same id unless the cache file is removed.
func (c *Cache) Ensure(ctx context.Context, id uuid.UUID, source string) (string, error) {
	dest := c.ArtifactPath(id)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	_, err, _ := c.group.Do(id.String(), func() (interface{}, error) {
		// A waiter may have been queued behind a flight that just finished;
		// re-check before paying for another remux.
		if _, err := os.Stat(dest); err == nil {
			return nil, nil
		}
		return nil, c.transcoder.Materialize(ctx, source, dest)
	})
	if err != nil {
		return "", fmt.Errorf("materialize %s: %w", id, apperr.ErrInternal)
	}
	return dest, nil
}
