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

// MovieRepository owns Movie and MovieEntry persistence, including the
// find-or-create idempotence the indexer's classification step depends on.
type MovieRepository interface {
	FindOrCreateByTitle(title string, runtimeSecs *float64) (*models.Movie, error)
	CreateEntry(libraryID, movieID uuid.UUID, isPrimary bool) (*models.MovieEntry, error)
}

type SqlMovieRepository struct {
	db *sql.DB
}

func NewSqlMovieRepository(db *sql.DB) *SqlMovieRepository {
	return &SqlMovieRepository{db: db}
}

func (r *SqlMovieRepository) FindOrCreateByTitle(title string, runtimeSecs *float64) (*models.Movie, error) {
	m, err := r.findByTitle(title)
	if err != nil || m != nil {
		return m, err
	}

	// Conflict-safe insert: a concurrent scan racing on the same title
	// loses the conflict, gets no row back, and reads the winner instead.
	m = &models.Movie{ID: uuid.New(), Title: title, Runtime: runtimeSecs}
	err = r.db.QueryRow(`INSERT INTO movies (id, title, runtime_seconds) VALUES ($1,$2,$3)
		ON CONFLICT (title) DO NOTHING
		RETURNING created_at, updated_at`, m.ID, m.Title, m.Runtime).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err == nil {
		return m, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("create movie: %w", apperr.ErrDatabase)
	}

	m, err = r.findByTitle(title)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("movie %q vanished after conflict: %w", title, apperr.ErrDatabase)
	}
	return m, nil
}

func (r *SqlMovieRepository) findByTitle(title string) (*models.Movie, error) {
	m := &models.Movie{}
	err := r.db.QueryRow(`SELECT id, title, year, external_id, rating, runtime_seconds, created_at, updated_at
		FROM movies WHERE title = $1`, title).
		Scan(&m.ID, &m.Title, &m.Year, &m.ExternalID, &m.Rating, &m.Runtime, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find movie: %w", apperr.ErrDatabase)
	}
	return m, nil
}

func (r *SqlMovieRepository) CreateEntry(libraryID, movieID uuid.UUID, isPrimary bool) (*models.MovieEntry, error) {
	e := &models.MovieEntry{ID: uuid.New(), LibraryID: libraryID, MovieID: movieID, IsPrimary: isPrimary}
	err := r.db.QueryRow(`INSERT INTO movie_entries (id, library_id, movie_id, is_primary)
		VALUES ($1,$2,$3,$4) RETURNING created_at`, e.ID, e.LibraryID, e.MovieID, e.IsPrimary).
		Scan(&e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create movie entry: %w", apperr.ErrDatabase)
	}
	return e, nil
}

// InMemoryMovieRepository is the test double.
type InMemoryMovieRepository struct {
	mu      sync.Mutex
	Movies  map[uuid.UUID]*models.Movie
	Entries map[uuid.UUID]*models.MovieEntry
	byTitle map[string]uuid.UUID
}

func NewInMemoryMovieRepository() *InMemoryMovieRepository {
	return &InMemoryMovieRepository{
		Movies:  make(map[uuid.UUID]*models.Movie),
		Entries: make(map[uuid.UUID]*models.MovieEntry),
		byTitle: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryMovieRepository) FindOrCreateByTitle(title string, runtimeSecs *float64) (*models.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byTitle[title]; ok {
		cp := *r.Movies[id]
		return &cp, nil
	}
	now := time.Now()
	m := &models.Movie{ID: uuid.New(), Title: title, Runtime: runtimeSecs, CreatedAt: now, UpdatedAt: now}
	r.Movies[m.ID] = m
	r.byTitle[title] = m.ID
	cp := *m
	return &cp, nil
}

func (r *InMemoryMovieRepository) CreateEntry(libraryID, movieID uuid.UUID, isPrimary bool) (*models.MovieEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Movies[movieID]; !ok {
		return nil, fmt.Errorf("movie %s: %w", movieID, apperr.ErrNotFound)
	}
	e := &models.MovieEntry{ID: uuid.New(), LibraryID: libraryID, MovieID: movieID,
		IsPrimary: isPrimary, CreatedAt: time.Now()}
	r.Entries[e.ID] = e
	cp := *e
	return &cp, nil
}
