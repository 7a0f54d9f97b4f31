package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/justin13888/beam/internal/indexer"
)

// ScanPayload identifies the library a queued scan targets.
type ScanPayload struct {
	LibraryID string `json:"library_id"`
}

// RegisterHandlers wires every task type to its handler.
func RegisterHandlers(q *Queue, ix *indexer.Indexer) {
	q.RegisterHandler(TaskScanLibrary, asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		var payload ScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal scan payload: %w", err)
		}

		result, err := ix.ScanLibrary(ctx, payload.LibraryID)
		if err != nil {
			log.Printf("[jobs] scan %s failed: %v", payload.LibraryID, err)
			return err
		}
		log.Printf("[jobs] scan %s: %d added, %d removed, %d total",
			payload.LibraryID, result.Added, result.Removed, result.Total)
		return nil
	}))
}

// EnqueueScan queues a scan for one library, deduplicated by library id.
func (q *Queue) EnqueueScan(libraryID string) error {
	_, err := q.EnqueueUnique(TaskScanLibrary, ScanPayload{LibraryID: libraryID}, "scan-"+libraryID)
	return err
}
