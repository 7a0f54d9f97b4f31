// Package indexer reconciles a library's catalog rows with its filesystem
// tree: walk, classify, probe, hash, insert, prune.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/apperr"
	"github.com/justin13888/beam/internal/hash"
	"github.com/justin13888/beam/internal/mediainfo"
	"github.com/justin13888/beam/internal/models"
	"github.com/justin13888/beam/internal/notifications"
	"github.com/justin13888/beam/internal/repository"
)

// Indexer drives library scans against its nine collaborators. All of them
// are interfaces; tests wire the in-memory doubles.
type Indexer struct {
	libraries repository.LibraryRepository
	files     repository.FileRepository
	movies    repository.MovieRepository
	shows     repository.ShowRepository
	streams   repository.StreamRepository
	hasher    hash.Service
	probe     mediainfo.Service
	notifier  notifications.Service
	adminLog  notifications.AdminLogService
}

func New(
	libraries repository.LibraryRepository,
	files repository.FileRepository,
	movies repository.MovieRepository,
	shows repository.ShowRepository,
	streams repository.StreamRepository,
	hasher hash.Service,
	probe mediainfo.Service,
	notifier notifications.Service,
	adminLog notifications.AdminLogService,
) *Indexer {
	return &Indexer{
		libraries: libraries,
		files:     files,
		movies:    movies,
		shows:     shows,
		streams:   streams,
		hasher:    hasher,
		probe:     probe,
		notifier:  notifier,
		adminLog:  adminLog,
	}
}

// ScanResult summarizes one completed scan.
type ScanResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Total   int `json:"total"`
}

// ScanLibrary brings the catalog into agreement with the filesystem for one
// library and returns the counts of files added, removed and kept in total.
//
// Per-file failures are logged and do not abort the scan: a failed probe
// records the file as Unknown, while an unreadable file, a failed hash or a
// failed insert skips it. Only repository failures that leave the catalog
// state unknown, or a missing root, abort the scan.
func (ix *Indexer) ScanLibrary(ctx context.Context, libraryID string) (*ScanResult, error) {
	id, err := uuid.Parse(libraryID)
	if err != nil {
		return nil, fmt.Errorf("library id %q: %w", libraryID, apperr.ErrInvalidID)
	}

	lib, err := ix.libraries.GetByID(id)
	if err != nil {
		return nil, err
	}

	if err := ix.libraries.MarkScanStarted(id, time.Now()); err != nil {
		return nil, fmt.Errorf("mark scan started: %w", apperr.ErrDatabase)
	}
	ix.emit(infoEvent(lib, fmt.Sprintf("scan started for library %q", lib.Name)))

	info, err := os.Stat(lib.RootPath)
	if err != nil || !info.IsDir() {
		ix.emit(errorEvent(lib, fmt.Sprintf("scan failed: root path %s does not exist", lib.RootPath)))
		return nil, fmt.Errorf("root %s: %w", lib.RootPath, apperr.ErrPathNotFound)
	}

	// The reconciliation index: every catalog row keyed by absolute path.
	// Entries still present after the walk are rows whose files vanished.
	snapshot, err := ix.files.SnapshotByLibrary(id)
	if err != nil {
		return nil, err
	}

	added, kept := 0, 0
	walkErr := filepath.WalkDir(lib.RootPath, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// The root vanishing mid-walk must abort before the prune phase
			// deletes the whole catalog; a stat failure deeper in the tree
			// only skips that entry.
			if path == lib.RootPath {
				return fmt.Errorf("root %s: %w", lib.RootPath, apperr.ErrPathNotFound)
			}
			log.Printf("[indexer] walk error at %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		if existing, ok := snapshot[path]; ok {
			delete(snapshot, path)
			kept++
			ix.reconcileExisting(existing, path)
			return nil
		}

		if ix.processNewFile(ctx, lib, path) {
			added++
		}
		return nil
	})
	if walkErr != nil {
		if ctx.Err() != nil {
			return nil, walkErr
		}
		ix.emit(errorEvent(lib, fmt.Sprintf("scan aborted: %v", walkErr)))
		return nil, walkErr
	}

	// Prune: whatever is left in the index exists in the catalog but not on
	// disk anymore.
	residual := make([]uuid.UUID, 0, len(snapshot))
	for _, f := range snapshot {
		residual = append(residual, f.ID)
	}
	removed, err := ix.files.DeleteByIDs(residual)
	if err != nil {
		return nil, err
	}

	total := kept + added
	if err := ix.libraries.MarkScanFinished(id, time.Now(), total); err != nil {
		return nil, fmt.Errorf("mark scan finished: %w", apperr.ErrDatabase)
	}

	ix.emit(infoEvent(lib, fmt.Sprintf("scan finished for library %q: %d added, %d removed, %d total",
		lib.Name, added, removed, total)))

	return &ScanResult{Added: added, Removed: removed, Total: total}, nil
}

// reconcileExisting compares the on-disk size with the stored one and marks
// the row Changed when they differ. Hash and stream re-extraction are left
// to a later revisit pass.
func (ix *Indexer) reconcileExisting(existing *models.MediaFile, path string) {
	info, err := os.Stat(path)
	if err != nil {
		log.Printf("[indexer] stat %s: %v", path, err)
		return
	}
	if info.Size() == existing.SizeBytes {
		return
	}
	if err := ix.files.UpdateSizeAndStatus(existing.ID, info.Size(), models.FileStatusChanged); err != nil {
		log.Printf("[indexer] mark changed %s: %v", path, err)
	}
}

// processNewFile inserts a catalog row for a path the snapshot didn't have.
// Returns true when a row was inserted.
func (ix *Indexer) processNewFile(ctx context.Context, lib *models.Library, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		log.Printf("[indexer] stat %s: %v", path, err)
		return false
	}
	size := info.Size()

	if !isKnownVideoExtension(path) {
		return ix.insertUnknown(lib, path, size)
	}

	probe, err := ix.probe.Probe(path)
	if err != nil {
		// Probe failures downgrade to an Unknown row rather than losing the
		// path entirely.
		log.Printf("[indexer] probe %s: %v", path, err)
		return ix.insertUnknown(lib, path, size)
	}

	var contentHash uint64
	select {
	case res := <-ix.hasher.HashAsync(path):
		if res.Err != nil {
			ix.emit(warningEvent(lib, fmt.Sprintf("hash failed for %s: %v", path, res.Err)))
			return false
		}
		contentHash = res.Hash
	case <-ctx.Done():
		return false
	}

	content, err := ix.classifyAndPersist(lib, path, probe.DurationSeconds)
	if err != nil {
		log.Printf("[indexer] classify %s: %v", path, err)
		return false
	}

	file := &models.MediaFile{
		ID:              uuid.New(),
		LibraryID:       lib.ID,
		Path:            path,
		Hash:            contentHash,
		SizeBytes:       size,
		MimeType:        &probe.MimeType,
		DurationSeconds: &probe.DurationSeconds,
		ContainerFormat: &probe.ContainerFormat,
		Content:         content,
		Status:          models.FileStatusKnown,
	}
	if err := ix.files.Create(file); err != nil {
		log.Printf("[indexer] insert %s: %v", path, err)
		return false
	}

	if err := ix.streams.CreateForFile(file.ID, probe.Streams); err != nil {
		log.Printf("[indexer] insert streams for %s: %v", path, err)
	}
	return true
}

func (ix *Indexer) insertUnknown(lib *models.Library, path string, size int64) bool {
	file := &models.MediaFile{
		ID:        uuid.New(),
		LibraryID: lib.ID,
		Path:      path,
		SizeBytes: size,
		Content:   models.MediaFileContent{Kind: models.ContentKindNone},
		Status:    models.FileStatusUnknown,
	}
	if err := ix.files.Create(file); err != nil {
		log.Printf("[indexer] insert %s: %v", path, err)
		return false
	}
	return true
}

// classifyAndPersist runs the filename classification and materializes the
// catalog entities it implies, returning the content the file row points at.
func (ix *Indexer) classifyAndPersist(lib *models.Library, path string, duration float64) (models.MediaFileContent, error) {
	c := classify(path)

	if c.isEpisode {
		show, err := ix.shows.FindOrCreateByTitle(c.showTitle)
		if err != nil {
			return models.MediaFileContent{}, err
		}
		if err := ix.shows.EnsureLibraryShow(lib.ID, show.ID); err != nil {
			return models.MediaFileContent{}, err
		}
		season, err := ix.shows.FindOrCreateSeason(show.ID, c.season)
		if err != nil {
			return models.MediaFileContent{}, err
		}
		episode, err := ix.shows.CreateEpisode(season.ID, c.episode, fileStem(path), &duration)
		if err != nil {
			return models.MediaFileContent{}, err
		}
		return models.EpisodeContent(episode.ID), nil
	}

	movie, err := ix.movies.FindOrCreateByTitle(c.movieTitle, &duration)
	if err != nil {
		return models.MediaFileContent{}, err
	}
	entry, err := ix.movies.CreateEntry(lib.ID, movie.ID, true)
	if err != nil {
		return models.MediaFileContent{}, err
	}
	return models.MovieContent(entry.ID), nil
}

// emit publishes to the live observer and the durable log. Both are
// best-effort; a failure never affects the scan.
func (ix *Indexer) emit(event models.AdminEvent) {
	ix.notifier.Publish(event)
	if err := ix.adminLog.Log(event); err != nil {
		log.Printf("[indexer] admin log: %v", err)
	}
}

func infoEvent(lib *models.Library, msg string) models.AdminEvent {
	id, name := lib.ID.String(), lib.Name
	return models.InfoEvent(models.EventCategoryLibraryScan, msg, &id, &name)
}

func warningEvent(lib *models.Library, msg string) models.AdminEvent {
	id, name := lib.ID.String(), lib.Name
	return models.WarningEvent(models.EventCategoryLibraryScan, msg, &id, &name)
}

func errorEvent(lib *models.Library, msg string) models.AdminEvent {
	id, name := lib.ID.String(), lib.Name
	return models.ErrorEvent(models.EventCategoryLibraryScan, msg, &id, &name)
}
