// Package sessionstore maps session ids to session records with a
// per-user index, backed by Redis in production.
package sessionstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/justin13888/beam/internal/models"
	"github.com/redis/go-redis/v9"
)

// newSessionID returns a 256-bit, URL-safe session identifier. uuid.New
// would only give ~122 bits of entropy, short of what a bearer credential
// needs.
func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Store is a thread-safe store for session records.
type Store interface {
	Create(ctx context.Context, data models.SessionData, ttl time.Duration) (string, error)
	Get(ctx context.Context, sessionID string) (*models.SessionData, error)
	Touch(ctx context.Context, sessionID string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	ListForUser(ctx context.Context, userID string) ([]SessionEntry, error)
}

// SessionEntry pairs a session id with its record.
type SessionEntry struct {
	SessionID string
	Data      models.SessionData
}

func sessionKey(id string) string      { return "session:" + id }
func userSessionsKey(id string) string { return "user_sessions:" + id }

// RedisStore is the production Store.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opt)}, nil
}

func (s *RedisStore) Create(ctx context.Context, data models.SessionData, ttl time.Duration) (string, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return "", err
	}
	value, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sessionID), value, ttl)
		pipe.SAdd(ctx, userSessionsKey(data.UserID), sessionID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionID, nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*models.SessionData, error) {
	value, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var data models.SessionData
	if err := json.Unmarshal(value, &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &data, nil
}

func (s *RedisStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	return s.client.Expire(ctx, sessionKey(sessionID), ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	data, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if data == nil {
		_, err := s.client.Del(ctx, sessionKey(sessionID)).Result()
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sessionID))
		pipe.SRem(ctx, userSessionsKey(data.UserID), sessionID)
		return nil
	})
	return err
}

func (s *RedisStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	ids, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, sessionKey(id))
		}
		pipe.Del(ctx, userSessionsKey(userID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete all sessions: %w", err)
	}
	return int64(len(ids)), nil
}

func (s *RedisStore) ListForUser(ctx context.Context, userID string) ([]SessionEntry, error) {
	ids, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}

	var out []SessionEntry
	for _, id := range ids {
		data, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if data == nil {
			// Straggler: in the user set but expired. Sweep it.
			s.client.SRem(ctx, userSessionsKey(userID), id)
			continue
		}
		out = append(out, SessionEntry{SessionID: id, Data: *data})
	}
	return out, nil
}

// InMemoryStore is the test double.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]models.SessionData
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.SessionData)}
}

func (s *InMemoryStore) Create(ctx context.Context, data models.SessionData, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	s.sessions[id] = data
	return id, nil
}

func (s *InMemoryStore) Get(ctx context.Context, sessionID string) (*models.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &data, nil
}

func (s *InMemoryStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemoryStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, data := range s.sessions {
		if data.UserID == userID {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ListForUser(ctx context.Context, userID string) ([]SessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SessionEntry
	for id, data := range s.sessions {
		if data.UserID == userID {
			out = append(out, SessionEntry{SessionID: id, Data: data})
		}
	}
	return out, nil
}
