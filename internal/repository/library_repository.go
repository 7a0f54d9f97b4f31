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

// LibraryRepository owns Library CRUD. One production implementation
// talking to Postgres, one in-memory double for tests.
type LibraryRepository interface {
	Create(lib *models.Library) error
	GetByID(id uuid.UUID) (*models.Library, error)
	List() ([]*models.Library, error)
	MarkScanStarted(id uuid.UUID, startedAt time.Time) error
	MarkScanFinished(id uuid.UUID, finishedAt time.Time, fileCount int) error
	Delete(id uuid.UUID) error
}

const libraryColumns = `id, name, root_path, description, last_scan_started_at,
	last_scan_finished_at, last_scan_file_count, created_at, updated_at`

func scanLibraryRow(row interface{ Scan(dest ...interface{}) error }) (*models.Library, error) {
	lib := &models.Library{}
	err := row.Scan(&lib.ID, &lib.Name, &lib.RootPath, &lib.Description,
		&lib.LastScanStartedAt, &lib.LastScanFinishedAt, &lib.LastScanFileCount,
		&lib.CreatedAt, &lib.UpdatedAt)
	return lib, err
}

type SqlLibraryRepository struct {
	db *sql.DB
}

func NewSqlLibraryRepository(db *sql.DB) *SqlLibraryRepository {
	return &SqlLibraryRepository{db: db}
}

func (r *SqlLibraryRepository) Create(lib *models.Library) error {
	query := `INSERT INTO libraries (id, name, root_path, description)
		VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`
	return r.db.QueryRow(query, lib.ID, lib.Name, lib.RootPath, lib.Description).
		Scan(&lib.CreatedAt, &lib.UpdatedAt)
}

func (r *SqlLibraryRepository) GetByID(id uuid.UUID) (*models.Library, error) {
	query := `SELECT ` + libraryColumns + ` FROM libraries WHERE id = $1`
	lib, err := scanLibraryRow(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("library %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get library: %w", apperr.ErrDatabase)
	}
	return lib, nil
}

func (r *SqlLibraryRepository) List() ([]*models.Library, error) {
	query := `SELECT ` + libraryColumns + ` FROM libraries ORDER BY created_at DESC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", apperr.ErrDatabase)
	}
	defer rows.Close()

	libs := []*models.Library{}
	for rows.Next() {
		lib, err := scanLibraryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan library: %w", apperr.ErrDatabase)
		}
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}

func (r *SqlLibraryRepository) MarkScanStarted(id uuid.UUID, startedAt time.Time) error {
	_, err := r.db.Exec(`UPDATE libraries SET last_scan_started_at = $2 WHERE id = $1`, id, startedAt)
	if err != nil {
		return fmt.Errorf("mark scan started: %w", apperr.ErrDatabase)
	}
	return nil
}

func (r *SqlLibraryRepository) MarkScanFinished(id uuid.UUID, finishedAt time.Time, fileCount int) error {
	_, err := r.db.Exec(`UPDATE libraries SET last_scan_finished_at = $2, last_scan_file_count = $3 WHERE id = $1`,
		id, finishedAt, fileCount)
	if err != nil {
		return fmt.Errorf("mark scan finished: %w", apperr.ErrDatabase)
	}
	return nil
}

func (r *SqlLibraryRepository) Delete(id uuid.UUID) error {
	_, err := r.db.Exec(`DELETE FROM libraries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete library: %w", apperr.ErrDatabase)
	}
	return nil
}

// InMemoryLibraryRepository is the test double.
type InMemoryLibraryRepository struct {
	mu   sync.Mutex
	libs map[uuid.UUID]*models.Library
}

func NewInMemoryLibraryRepository() *InMemoryLibraryRepository {
	return &InMemoryLibraryRepository{libs: make(map[uuid.UUID]*models.Library)}
}

func (r *InMemoryLibraryRepository) Create(lib *models.Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	lib.CreatedAt, lib.UpdatedAt = now, now
	r.libs[lib.ID] = lib
	return nil
}

func (r *InMemoryLibraryRepository) GetByID(id uuid.UUID) (*models.Library, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lib, ok := r.libs[id]
	if !ok {
		return nil, fmt.Errorf("library %s: %w", id, apperr.ErrNotFound)
	}
	cp := *lib
	return &cp, nil
}

func (r *InMemoryLibraryRepository) List() ([]*models.Library, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Library, 0, len(r.libs))
	for _, lib := range r.libs {
		cp := *lib
		out = append(out, &cp)
	}
	return out, nil
}

func (r *InMemoryLibraryRepository) MarkScanStarted(id uuid.UUID, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lib, ok := r.libs[id]
	if !ok {
		return fmt.Errorf("library %s: %w", id, apperr.ErrNotFound)
	}
	lib.LastScanStartedAt = &startedAt
	return nil
}

func (r *InMemoryLibraryRepository) MarkScanFinished(id uuid.UUID, finishedAt time.Time, fileCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lib, ok := r.libs[id]
	if !ok {
		return fmt.Errorf("library %s: %w", id, apperr.ErrNotFound)
	}
	lib.LastScanFinishedAt = &finishedAt
	lib.LastScanFileCount = fileCount
	return nil
}

func (r *InMemoryLibraryRepository) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.libs, id)
	return nil
}
