package notifications

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/apperr"
	"github.com/justin13888/beam/internal/models"
)

// AdminLogService persists admin events durably. log/list/count are
// best-effort for callers: a logging failure must never fail the operation
// that triggered it, so callers should treat Log's error as advisory.
type AdminLogService interface {
	Log(event models.AdminEvent) error
	List(limit, offset int) ([]models.AdminEvent, error)
	Count() (int, error)
}

// SqlAdminLogService is the production implementation, backed by the same
// database/sql + lib/pq stack as the repositories.
type SqlAdminLogService struct {
	db *sql.DB
}

func NewSqlAdminLogService(db *sql.DB) *SqlAdminLogService {
	return &SqlAdminLogService{db: db}
}

func (s *SqlAdminLogService) Log(event models.AdminEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	details := event.Details
	if details == nil {
		details = json.RawMessage("null")
	}
	_, err := s.db.Exec(`INSERT INTO admin_logs (id, level, category, message, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		event.ID, event.Level, event.Category, event.Message, []byte(details), event.Timestamp)
	if err != nil {
		return fmt.Errorf("log admin event: %w", apperr.ErrDatabase)
	}
	return nil
}

func (s *SqlAdminLogService) List(limit, offset int) ([]models.AdminEvent, error) {
	rows, err := s.db.Query(`SELECT id, level, category, message, details, created_at
		FROM admin_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list admin events: %w", apperr.ErrDatabase)
	}
	defer rows.Close()

	var out []models.AdminEvent
	for rows.Next() {
		var e models.AdminEvent
		var details []byte
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan admin event: %w", apperr.ErrDatabase)
		}
		e.Details = details
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SqlAdminLogService) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM admin_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admin events: %w", apperr.ErrDatabase)
	}
	return n, nil
}

// InMemoryAdminLogService is the test double.
type InMemoryAdminLogService struct {
	mu     sync.Mutex
	events []models.AdminEvent
}

func NewInMemoryAdminLogService() *InMemoryAdminLogService {
	return &InMemoryAdminLogService{}
}

func (s *InMemoryAdminLogService) Log(event models.AdminEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryAdminLogService) List(limit, offset int) ([]models.AdminEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// newest first
	reversed := make([]models.AdminEvent, len(s.events))
	for i, e := range s.events {
		reversed[len(s.events)-1-i] = e
	}
	if offset >= len(reversed) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(reversed) {
		end = len(reversed)
	}
	return reversed[offset:end], nil
}

func (s *InMemoryAdminLogService) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events), nil
}
