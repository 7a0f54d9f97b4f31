package repository

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/apperr"
	"github.com/justin13888/beam/internal/models"
)

// FileRepository owns MediaFile persistence.
type FileRepository interface {
	FindByID(id uuid.UUID) (*models.MediaFile, error)
	FindByPath(libraryID uuid.UUID, path string) (*models.MediaFile, error)
	// SnapshotByLibrary returns every file currently in the catalog for a
	// library keyed by absolute path — the reconciliation index.
	SnapshotByLibrary(libraryID uuid.UUID) (map[string]*models.MediaFile, error)
	Create(file *models.MediaFile) error
	UpdateSizeAndStatus(id uuid.UUID, sizeBytes int64, status models.FileStatus) error
	DeleteByIDs(ids []uuid.UUID) (int, error)
}

type SqlFileRepository struct {
	db *sql.DB
}

func NewSqlFileRepository(db *sql.DB) *SqlFileRepository {
	return &SqlFileRepository{db: db}
}

const fileColumns = `id, library_id, path, hash, size_bytes, mime_type, duration_seconds,
	container_format, status, scanned_at, updated_at, content_kind, movie_entry_id, episode_id`

func scanFileRow(row interface{ Scan(dest ...interface{}) error }) (*models.MediaFile, error) {
	f := &models.MediaFile{}
	var kind string
	var storedHash int64
	var movieEntryID, episodeID *uuid.UUID
	err := row.Scan(&f.ID, &f.LibraryID, &f.Path, &storedHash, &f.SizeBytes, &f.MimeType,
		&f.DurationSeconds, &f.ContainerFormat, &f.Status, &f.ScannedAt, &f.UpdatedAt,
		&kind, &movieEntryID, &episodeID)
	if err != nil {
		return nil, err
	}
	// Hashes live in a BIGINT column; the uint64 round-trips through the
	// same bit pattern.
	f.Hash = uint64(storedHash)
	switch models.MediaContentKind(kind) {
	case models.ContentKindMovie:
		f.Content = models.MovieContent(*movieEntryID)
	case models.ContentKindEpisode:
		f.Content = models.EpisodeContent(*episodeID)
	default:
		f.Content = models.MediaFileContent{Kind: models.ContentKindNone}
	}
	return f, nil
}

func (r *SqlFileRepository) FindByID(id uuid.UUID) (*models.MediaFile, error) {
	query := `SELECT ` + fileColumns + ` FROM media_files WHERE id = $1`
	f, err := scanFileRow(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find file: %w", apperr.ErrDatabase)
	}
	return f, nil
}

func (r *SqlFileRepository) FindByPath(libraryID uuid.UUID, path string) (*models.MediaFile, error) {
	query := `SELECT ` + fileColumns + ` FROM media_files WHERE library_id = $1 AND path = $2`
	f, err := scanFileRow(r.db.QueryRow(query, libraryID, path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find file by path: %w", apperr.ErrDatabase)
	}
	return f, nil
}

func (r *SqlFileRepository) SnapshotByLibrary(libraryID uuid.UUID) (map[string]*models.MediaFile, error) {
	query := `SELECT ` + fileColumns + ` FROM media_files WHERE library_id = $1`
	rows, err := r.db.Query(query, libraryID)
	if err != nil {
		return nil, fmt.Errorf("snapshot files: %w", apperr.ErrDatabase)
	}
	defer rows.Close()

	snapshot := make(map[string]*models.MediaFile)
	for rows.Next() {
		f, err := scanFileRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", apperr.ErrDatabase)
		}
		snapshot[f.Path] = f
	}
	return snapshot, rows.Err()
}

func (r *SqlFileRepository) Create(file *models.MediaFile) error {
	var movieEntryID, episodeID *uuid.UUID
	switch file.Content.Kind {
	case models.ContentKindMovie:
		movieEntryID = file.Content.MovieEntryID
	case models.ContentKindEpisode:
		episodeID = file.Content.EpisodeID
	}

	query := `INSERT INTO media_files (id, library_id, path, hash, size_bytes, mime_type,
		duration_seconds, container_format, status, content_kind, movie_entry_id, episode_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING scanned_at, updated_at`
	return r.db.QueryRow(query, file.ID, file.LibraryID, file.Path, int64(file.Hash), file.SizeBytes,
		file.MimeType, file.DurationSeconds, file.ContainerFormat, file.Status,
		string(file.Content.Kind), movieEntryID, episodeID).
		Scan(&file.ScannedAt, &file.UpdatedAt)
}

func (r *SqlFileRepository) UpdateSizeAndStatus(id uuid.UUID, sizeBytes int64, status models.FileStatus) error {
	_, err := r.db.Exec(`UPDATE media_files SET size_bytes = $2, status = $3, updated_at = now() WHERE id = $1`,
		id, sizeBytes, status)
	if err != nil {
		return fmt.Errorf("update file: %w", apperr.ErrDatabase)
	}
	return nil
}

func (r *SqlFileRepository) DeleteByIDs(ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.Exec(`DELETE FROM media_files WHERE id = ANY($1)`, uuidsToStrings(ids))
	if err != nil {
		return 0, fmt.Errorf("delete files: %w", apperr.ErrDatabase)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// InMemoryFileRepository is the test double.
type InMemoryFileRepository struct {
	mu    sync.Mutex
	Files map[uuid.UUID]*models.MediaFile
}

func NewInMemoryFileRepository() *InMemoryFileRepository {
	return &InMemoryFileRepository{Files: make(map[uuid.UUID]*models.MediaFile)}
}

func (r *InMemoryFileRepository) FindByID(id uuid.UUID) (*models.MediaFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.Files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (r *InMemoryFileRepository) FindByPath(libraryID uuid.UUID, path string) (*models.MediaFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.Files {
		if f.LibraryID == libraryID && f.Path == path {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *InMemoryFileRepository) SnapshotByLibrary(libraryID uuid.UUID) (map[string]*models.MediaFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.MediaFile)
	for _, f := range r.Files {
		if f.LibraryID == libraryID {
			cp := *f
			out[f.Path] = &cp
		}
	}
	return out, nil
}

func (r *InMemoryFileRepository) Create(file *models.MediaFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	now := time.Now()
	file.ScannedAt, file.UpdatedAt = now, now
	cp := *file
	r.Files[file.ID] = &cp
	return nil
}

func (r *InMemoryFileRepository) UpdateSizeAndStatus(id uuid.UUID, sizeBytes int64, status models.FileStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.Files[id]
	if !ok {
		return fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	f.SizeBytes = sizeBytes
	f.Status = status
	f.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryFileRepository) DeleteByIDs(ids []uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, id := range ids {
		if _, ok := r.Files[id]; ok {
			delete(r.Files, id)
			count++
		}
	}
	return count, nil
}
