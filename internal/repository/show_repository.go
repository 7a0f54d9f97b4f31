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

// ShowRepository owns Show, Season, and Episode persistence, plus the
// library→show association the indexer maintains.
type ShowRepository interface {
	FindOrCreateByTitle(title string) (*models.Show, error)
	EnsureLibraryShow(libraryID, showID uuid.UUID) error
	FindOrCreateSeason(showID uuid.UUID, number int) (*models.Season, error)
	CreateEpisode(seasonID uuid.UUID, number int, title string, runtimeSecs *float64) (*models.Episode, error)
}

type SqlShowRepository struct {
	db *sql.DB
}

func NewSqlShowRepository(db *sql.DB) *SqlShowRepository {
	return &SqlShowRepository{db: db}
}

func (r *SqlShowRepository) FindOrCreateByTitle(title string) (*models.Show, error) {
	s, err := r.findByTitle(title)
	if err != nil || s != nil {
		return s, err
	}

	// Conflict-safe insert; the loser of a concurrent race reads the winner.
	s = &models.Show{ID: uuid.New(), Title: title}
	err = r.db.QueryRow(`INSERT INTO shows (id, title) VALUES ($1,$2)
		ON CONFLICT (title) DO NOTHING
		RETURNING created_at, updated_at`, s.ID, s.Title).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err == nil {
		return s, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("create show: %w", apperr.ErrDatabase)
	}

	s, err = r.findByTitle(title)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("show %q vanished after conflict: %w", title, apperr.ErrDatabase)
	}
	return s, nil
}

func (r *SqlShowRepository) findByTitle(title string) (*models.Show, error) {
	s := &models.Show{}
	err := r.db.QueryRow(`SELECT id, title, year, external_id, created_at, updated_at
		FROM shows WHERE title = $1`, title).
		Scan(&s.ID, &s.Title, &s.Year, &s.ExternalID, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find show: %w", apperr.ErrDatabase)
	}
	return s, nil
}

func (r *SqlShowRepository) EnsureLibraryShow(libraryID, showID uuid.UUID) error {
	_, err := r.db.Exec(`INSERT INTO library_shows (library_id, show_id) VALUES ($1,$2)
		ON CONFLICT DO NOTHING`, libraryID, showID)
	if err != nil {
		return fmt.Errorf("ensure library show: %w", apperr.ErrDatabase)
	}
	return nil
}

func (r *SqlShowRepository) FindOrCreateSeason(showID uuid.UUID, number int) (*models.Season, error) {
	se, err := r.findSeason(showID, number)
	if err != nil || se != nil {
		return se, err
	}

	se = &models.Season{ID: uuid.New(), ShowID: showID, SeasonNumber: number}
	err = r.db.QueryRow(`INSERT INTO seasons (id, show_id, season_number) VALUES ($1,$2,$3)
		ON CONFLICT (show_id, season_number) DO NOTHING
		RETURNING created_at`, se.ID, se.ShowID, se.SeasonNumber).Scan(&se.CreatedAt)
	if err == nil {
		return se, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("create season: %w", apperr.ErrDatabase)
	}

	se, err = r.findSeason(showID, number)
	if err != nil {
		return nil, err
	}
	if se == nil {
		return nil, fmt.Errorf("season %d vanished after conflict: %w", number, apperr.ErrDatabase)
	}
	return se, nil
}

func (r *SqlShowRepository) findSeason(showID uuid.UUID, number int) (*models.Season, error) {
	se := &models.Season{}
	err := r.db.QueryRow(`SELECT id, show_id, season_number, created_at
		FROM seasons WHERE show_id = $1 AND season_number = $2`, showID, number).
		Scan(&se.ID, &se.ShowID, &se.SeasonNumber, &se.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find season: %w", apperr.ErrDatabase)
	}
	return se, nil
}

func (r *SqlShowRepository) CreateEpisode(seasonID uuid.UUID, number int, title string, runtimeSecs *float64) (*models.Episode, error) {
	e := &models.Episode{ID: uuid.New(), SeasonID: seasonID, EpisodeNumber: number,
		Title: title, RuntimeSecs: runtimeSecs}
	err := r.db.QueryRow(`INSERT INTO episodes (id, season_id, episode_number, title, runtime_seconds)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		e.ID, e.SeasonID, e.EpisodeNumber, e.Title, e.RuntimeSecs).Scan(&e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create episode: %w", apperr.ErrDatabase)
	}
	return e, nil
}

// InMemoryShowRepository is the test double.
type InMemoryShowRepository struct {
	mu           sync.Mutex
	Shows        map[uuid.UUID]*models.Show
	Seasons      map[uuid.UUID]*models.Season
	Episodes     map[uuid.UUID]*models.Episode
	LibraryShows map[uuid.UUID]map[uuid.UUID]bool
	byTitle      map[string]uuid.UUID
}

func NewInMemoryShowRepository() *InMemoryShowRepository {
	return &InMemoryShowRepository{
		Shows:        make(map[uuid.UUID]*models.Show),
		Seasons:      make(map[uuid.UUID]*models.Season),
		Episodes:     make(map[uuid.UUID]*models.Episode),
		LibraryShows: make(map[uuid.UUID]map[uuid.UUID]bool),
		byTitle:      make(map[string]uuid.UUID),
	}
}

func (r *InMemoryShowRepository) EnsureLibraryShow(libraryID, showID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LibraryShows[libraryID] == nil {
		r.LibraryShows[libraryID] = make(map[uuid.UUID]bool)
	}
	r.LibraryShows[libraryID][showID] = true
	return nil
}

func (r *InMemoryShowRepository) FindOrCreateByTitle(title string) (*models.Show, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byTitle[title]; ok {
		cp := *r.Shows[id]
		return &cp, nil
	}
	s := &models.Show{ID: uuid.New(), Title: title, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.Shows[s.ID] = s
	r.byTitle[title] = s.ID
	cp := *s
	return &cp, nil
}

func (r *InMemoryShowRepository) FindOrCreateSeason(showID uuid.UUID, number int) (*models.Season, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, se := range r.Seasons {
		if se.ShowID == showID && se.SeasonNumber == number {
			cp := *se
			return &cp, nil
		}
	}
	se := &models.Season{ID: uuid.New(), ShowID: showID, SeasonNumber: number, CreatedAt: time.Now()}
	r.Seasons[se.ID] = se
	cp := *se
	return &cp, nil
}

func (r *InMemoryShowRepository) CreateEpisode(seasonID uuid.UUID, number int, title string, runtimeSecs *float64) (*models.Episode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &models.Episode{ID: uuid.New(), SeasonID: seasonID, EpisodeNumber: number,
		Title: title, RuntimeSecs: runtimeSecs, CreatedAt: time.Now()}
	r.Episodes[e.ID] = e
	cp := *e
	return &cp, nil
}
