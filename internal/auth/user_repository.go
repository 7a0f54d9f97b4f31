package auth

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/apperr"
	"github.com/justin13888/beam/internal/models"
)

// UserRepository owns User persistence for the session/token service.
type UserRepository interface {
	Create(user *models.User) error
	FindByUsernameOrEmail(usernameOrEmail string) (*models.User, error)
	FindByID(id uuid.UUID) (*models.User, error)
	ExistsByUsernameOrEmail(username, email string) (bool, error)
}

type SqlUserRepository struct {
	db *sql.DB
}

func NewSqlUserRepository(db *sql.DB) *SqlUserRepository {
	return &SqlUserRepository{db: db}
}

func (r *SqlUserRepository) Create(user *models.User) error {
	return r.db.QueryRow(`INSERT INTO users (id, username, email, password_hash, is_admin)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at, updated_at`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.IsAdmin).
		Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *SqlUserRepository) FindByUsernameOrEmail(usernameOrEmail string) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRow(`SELECT id, username, email, password_hash, is_admin, created_at, updated_at
		FROM users WHERE username = $1 OR email = $1`, usernameOrEmail).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", apperr.ErrDatabase)
	}
	return u, nil
}

func (r *SqlUserRepository) FindByID(id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRow(`SELECT id, username, email, password_hash, is_admin, created_at, updated_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", apperr.ErrDatabase)
	}
	return u, nil
}

func (r *SqlUserRepository) ExistsByUsernameOrEmail(username, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", apperr.ErrDatabase)
	}
	return exists, nil
}

// InMemoryUserRepository is the test double.
type InMemoryUserRepository struct {
	mu    sync.Mutex
	Users map[uuid.UUID]*models.User
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{Users: make(map[uuid.UUID]*models.User)}
}

func (r *InMemoryUserRepository) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	r.Users[user.ID] = &cp
	return nil
}

func (r *InMemoryUserRepository) FindByUsernameOrEmail(usernameOrEmail string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.Username == usernameOrEmail || u.Email == usernameOrEmail {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *InMemoryUserRepository) FindByID(id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r *InMemoryUserRepository) ExistsByUsernameOrEmail(username, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}
