package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/apperr"
	"github.com/justin13888/beam/internal/models"
	"github.com/justin13888/beam/internal/sessionstore"
)

const (
	sessionTTL   = 7 * 24 * time.Hour
	streamCapTTL = 60 * time.Minute
)

// bearerClaims binds a user id and session id; verify checks the signature
// and expiry, then probes the session store.
type bearerClaims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// streamClaims binds a user id and a specific stream id. Not tied to any
// session, not revoked by logout.
type streamClaims struct {
	UserID   string `json:"user_id"`
	StreamID string `json:"stream_id"`
	jwt.RegisteredClaims
}

// AuthResponse is returned by register/login/refresh.
type AuthResponse struct {
	Token     string      `json:"token"`
	SessionID string      `json:"session_id"`
	User      models.User `json:"user"`
}

// AuthenticatedUser is the result of a successful VerifyToken call.
type AuthenticatedUser struct {
	UserID string
}

// Service owns user registration, credential verification, session
// issuance, stream capabilities, and revocation.
type Service struct {
	users  UserRepository
	files  FileLookup
	store  sessionstore.Store
	secret []byte
}

// FileLookup is the minimal file-existence check CreateStreamToken needs;
// satisfied by repository.FileRepository.
type FileLookup interface {
	FindByID(id uuid.UUID) (*models.MediaFile, error)
}

func NewService(users UserRepository, files FileLookup, store sessionstore.Store, jwtSecret string) *Service {
	return &Service{users: users, files: files, store: store, secret: []byte(jwtSecret)}
}

func (s *Service) Register(ctx context.Context, username, email, password, deviceHash, ip string) (*AuthResponse, error) {
	email = NormalizeEmail(email)
	exists, err := s.users.ExistsByUsernameOrEmail(username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("register %s: %w", username, apperr.ErrUserAlreadyExists)
	}

	if err := ValidatePassword(password, 8, false); err != nil {
		return nil, fmt.Errorf("register %s: %w", username, apperr.ErrValidation)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", apperr.ErrInternal)
	}

	user := &models.User{ID: uuid.New(), Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	return s.issueSession(ctx, user, deviceHash, ip)
}

func (s *Service) Login(ctx context.Context, usernameOrEmail, password, deviceHash, ip string) (*AuthResponse, error) {
	user, err := s.users.FindByUsernameOrEmail(usernameOrEmail)
	if err != nil {
		return nil, err
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("login: %w", apperr.ErrInvalidCredentials)
	}
	return s.issueSession(ctx, user, deviceHash, ip)
}

func (s *Service) issueSession(ctx context.Context, user *models.User, deviceHash, ip string) (*AuthResponse, error) {
	now := time.Now()
	data := models.SessionData{
		UserID:     user.ID.String(),
		DeviceHash: deviceHash,
		IP:         ip,
		CreatedAt:  now.Unix(),
		LastActive: now.Unix(),
	}
	sessionID, err := s.store.Create(ctx, data, sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", apperr.ErrInternal)
	}

	token, err := s.signBearer(user.ID.String(), sessionID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", apperr.ErrInternal)
	}

	return &AuthResponse{Token: token, SessionID: sessionID, User: *user}, nil
}

func (s *Service) signBearer(userID, sessionID string) (string, error) {
	claims := bearerClaims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken validates a bearer token's signature and confirms its bound
// session still exists in the store.
func (s *Service) VerifyToken(ctx context.Context, token string) (*AuthenticatedUser, error) {
	claims, err := s.parseBearer(token)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", apperr.ErrInvalidToken)
	}

	data, err := s.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", apperr.ErrInternal)
	}
	if data == nil {
		return nil, fmt.Errorf("verify token: %w", apperr.ErrInvalidToken)
	}

	return &AuthenticatedUser{UserID: claims.UserID}, nil
}

func (s *Service) parseBearer(token string) (*bearerClaims, error) {
	claims := &bearerClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid bearer token")
	}
	return claims, nil
}

// Refresh mints a fresh bearer token for an existing session, touching its TTL.
func (s *Service) Refresh(ctx context.Context, sessionID string) (*AuthResponse, error) {
	data, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", apperr.ErrInternal)
	}
	if data == nil {
		return nil, fmt.Errorf("refresh: %w", apperr.ErrInvalidToken)
	}

	userID, err := uuid.Parse(data.UserID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", apperr.ErrInvalidToken)
	}
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Touch(ctx, sessionID, sessionTTL); err != nil {
		return nil, fmt.Errorf("refresh: %w", apperr.ErrInternal)
	}

	token, err := s.signBearer(data.UserID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", apperr.ErrInternal)
	}
	return &AuthResponse{Token: token, SessionID: sessionID, User: *user}, nil
}

// Logout is idempotent: deleting an unknown session never fails.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}

func (s *Service) LogoutAll(ctx context.Context, userID string) (int64, error) {
	return s.store.DeleteAllForUser(ctx, userID)
}

func (s *Service) ListSessions(ctx context.Context, userID string) ([]sessionstore.SessionEntry, error) {
	return s.store.ListForUser(ctx, userID)
}

// CreateStreamToken mints a capability token for an existing file.
func (s *Service) CreateStreamToken(userID, streamID uuid.UUID) (string, error) {
	if _, err := s.files.FindByID(streamID); err != nil {
		return "", err
	}

	claims := streamClaims{
		UserID:   userID.String(),
		StreamID: streamID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(streamCapTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyStreamToken returns the stream id bound to a capability token.
func (s *Service) VerifyStreamToken(token string) (string, error) {
	claims := &streamClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("verify stream token: %w", apperr.ErrInvalidToken)
	}
	return claims.StreamID, nil
}
