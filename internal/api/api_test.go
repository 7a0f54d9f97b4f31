package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/auth"
	"github.com/justin13888/beam/internal/config"
	"github.com/justin13888/beam/internal/hash"
	"github.com/justin13888/beam/internal/indexer"
	"github.com/justin13888/beam/internal/mediainfo"
	"github.com/justin13888/beam/internal/models"
	"github.com/justin13888/beam/internal/notifications"
	"github.com/justin13888/beam/internal/repository"
	"github.com/justin13888/beam/internal/sessionstore"
	"github.com/justin13888/beam/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyTranscoder materializes by copying the source file verbatim.
type copyTranscoder struct{}

func (copyTranscoder) Materialize(ctx context.Context, source, dest string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

type testEnv struct {
	server    *httptest.Server
	users     *auth.InMemoryUserRepository
	libraries *repository.InMemoryLibraryRepository
	files     *repository.InMemoryFileRepository
	videoDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	videoDir := t.TempDir()

	cfg := &config.Config{
		JWTSecret:    "test-secret",
		VideoDir:     videoDir,
		CacheDir:     t.TempDir(),
		SessionTTL:   7 * 24 * time.Hour,
		StreamCapTTL: time.Hour,
	}

	users := auth.NewInMemoryUserRepository()
	libraries := repository.NewInMemoryLibraryRepository()
	files := repository.NewInMemoryFileRepository()
	movies := repository.NewInMemoryMovieRepository()
	shows := repository.NewInMemoryShowRepository()
	streams := repository.NewInMemoryStreamRepository()
	notifier := notifications.NewInMemoryService()
	adminLog := notifications.NewInMemoryAdminLogService()

	ix := indexer.New(libraries, files, movies, shows, streams,
		&hash.InMemory{Fixed: 1}, &mediainfo.InMemory{}, notifier, adminLog)

	cache, err := stream.NewCache(cfg.CacheDir, copyTranscoder{})
	require.NoError(t, err)

	authService := auth.NewService(users, files, sessionstore.NewInMemoryStore(), cfg.JWTSecret)
	srv := NewServer(cfg, authService, users, libraries, files, cache, ix, nil, notifier, adminLog)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, users: users, libraries: libraries, files: files, videoDir: videoDir}
}

func (e *testEnv) postJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path, token, rangeHeader string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

type authEnvelope struct {
	Data struct {
		Token     string      `json:"token"`
		SessionID string      `json:"session_id"`
		User      models.User `json:"user"`
	} `json:"data"`
}

func (e *testEnv) register(t *testing.T, username string) authEnvelope {
	t.Helper()
	resp := e.postJSON(t, "/v1/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter22",
	}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env authEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NotEmpty(t, env.Data.Token)
	return env
}

func (e *testEnv) addFileRow(t *testing.T, content []byte) *models.MediaFile {
	t.Helper()
	path := filepath.Join(e.videoDir, uuid.NewString()+".mp4")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	file := &models.MediaFile{
		ID:        uuid.New(),
		LibraryID: uuid.New(),
		Path:      path,
		SizeBytes: int64(len(content)),
		Status:    models.FileStatusKnown,
	}
	require.NoError(t, e.files.Create(file))
	return file
}

func TestRegisterSetsSessionCookie(t *testing.T) {
	e := newTestEnv(t)
	resp := e.postJSON(t, "/v1/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "hunter22",
	}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.NotEmpty(t, cookie.Value)
}

func TestRegisterDuplicateIsBadRequest(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")

	resp := e.postJSON(t, "/v1/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "hunter22",
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginWrongPassword(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")

	resp := e.postJSON(t, "/v1/auth/login", map[string]string{
		"username_or_email": "alice", "password": "wrong",
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshFromBody(t *testing.T) {
	e := newTestEnv(t)
	env := e.register(t, "alice")

	resp := e.postJSON(t, "/v1/auth/refresh", map[string]string{"session_id": env.Data.SessionID}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refreshed authEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refreshed))
	assert.Equal(t, env.Data.SessionID, refreshed.Data.SessionID)
}

func TestRefreshUnknownSession(t *testing.T) {
	e := newTestEnv(t)
	resp := e.postJSON(t, "/v1/auth/refresh", map[string]string{"session_id": "bogus"}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	e := newTestEnv(t)
	resp := e.postJSON(t, "/v1/auth/logout", map[string]string{"session_id": "never-existed"}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// failingDeleteStore simulates a session backend outage on delete.
type failingDeleteStore struct{ sessionstore.Store }

func (s *failingDeleteStore) Delete(ctx context.Context, sessionID string) error {
	return errors.New("session store unavailable")
}

func TestLogoutSucceedsEvenWhenStoreFails(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", SessionTTL: time.Hour, StreamCapTTL: time.Hour}
	users := auth.NewInMemoryUserRepository()
	files := repository.NewInMemoryFileRepository()
	store := &failingDeleteStore{Store: sessionstore.NewInMemoryStore()}
	authService := auth.NewService(users, files, store, cfg.JWTSecret)
	cache, err := stream.NewCache(t.TempDir(), copyTranscoder{})
	require.NoError(t, err)
	srv := NewServer(cfg, authService, users, repository.NewInMemoryLibraryRepository(), files,
		cache, nil, nil, notifications.NewInMemoryService(), notifications.NewInMemoryAdminLogService())

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout",
		bytes.NewReader([]byte(`{"session_id":"some-session"}`)))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutRevokesBearer(t *testing.T) {
	e := newTestEnv(t)
	env := e.register(t, "alice")

	resp := e.postJSON(t, "/v1/auth/logout", map[string]string{"session_id": env.Data.SessionID}, "")
	resp.Body.Close()

	listResp := e.get(t, "/v1/sessions", env.Data.Token, "")
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, listResp.StatusCode)
}

func TestLogoutEverywhere(t *testing.T) {
	e := newTestEnv(t)
	first := e.register(t, "alice")

	loginResp := e.postJSON(t, "/v1/auth/login", map[string]string{
		"username_or_email": "alice", "password": "hunter22",
	}, "")
	var second authEnvelope
	require.NoError(t, json.NewDecoder(loginResp.Body).Decode(&second))
	loginResp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, e.server.URL+"/v1/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+first.Data.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data struct {
			Revoked int64 `json:"revoked"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, int64(2), out.Data.Revoked)

	for _, token := range []string{first.Data.Token, second.Data.Token} {
		check := e.get(t, "/v1/sessions", token, "")
		check.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, check.StatusCode)
	}
}

func TestStreamTokenRequiresBearer(t *testing.T) {
	e := newTestEnv(t)
	file := e.addFileRow(t, []byte("bytes"))

	resp := e.postJSON(t, "/v1/stream/"+file.ID.String()+"/token", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamTokenUnknownFile(t *testing.T) {
	e := newTestEnv(t)
	env := e.register(t, "alice")

	resp := e.postJSON(t, "/v1/stream/"+uuid.NewString()+"/token", nil, env.Data.Token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func (e *testEnv) mintStreamToken(t *testing.T, bearer string, fileID uuid.UUID) string {
	t.Helper()
	resp := e.postJSON(t, "/v1/stream/"+fileID.String()+"/token", nil, bearer)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Data.Token)
	return out.Data.Token
}

func TestStreamCapabilityMismatch(t *testing.T) {
	e := newTestEnv(t)
	env := e.register(t, "alice")
	fileX := e.addFileRow(t, []byte("file X contents"))
	fileY := e.addFileRow(t, []byte("file Y contents"))

	token := e.mintStreamToken(t, env.Data.Token, fileX.ID)

	// The capability is scoped to X; presenting it for Y is unauthorized.
	mismatch := e.get(t, "/v1/stream/mp4/"+fileY.ID.String(), token, "")
	mismatch.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, mismatch.StatusCode)

	ok := e.get(t, "/v1/stream/mp4/"+fileX.ID.String(), token, "")
	defer ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestStreamRangeFetch(t *testing.T) {
	e := newTestEnv(t)
	env := e.register(t, "alice")

	content := make([]byte, 200)
	for i := range content {
		content[i] = byte(i)
	}
	file := e.addFileRow(t, content)
	token := e.mintStreamToken(t, env.Data.Token, file.ID)

	resp := e.get(t, "/v1/stream/mp4/"+file.ID.String(), token, "bytes=0-99")
	defer resp.Body.Close()
	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 0-99/200", resp.Header.Get("Content-Range"))
	assert.Equal(t, "100", resp.Header.Get("Content-Length"))
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content[0:100], body)
}

func TestStreamBearerIsNotACapability(t *testing.T) {
	e := newTestEnv(t)
	env := e.register(t, "alice")
	file := e.addFileRow(t, []byte("bytes"))

	resp := e.get(t, "/v1/stream/mp4/"+file.ID.String(), env.Data.Token, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamSourceMissingOnDisk(t *testing.T) {
	e := newTestEnv(t)
	env := e.register(t, "alice")
	file := e.addFileRow(t, []byte("bytes"))
	require.NoError(t, os.Remove(file.Path))

	token := e.mintStreamToken(t, env.Data.Token, file.ID)
	resp := e.get(t, "/v1/stream/mp4/"+file.ID.String(), token, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLibraryRoutesRequireAdmin(t *testing.T) {
	e := newTestEnv(t)
	env := e.register(t, "alice")

	resp := e.postJSON(t, "/v1/libraries", map[string]string{"name": "Movies", "path": "."}, env.Data.Token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLibraryCreateScanAndEvents(t *testing.T) {
	e := newTestEnv(t)
	env := e.register(t, "admin")
	// Promote directly in the repository; registration never grants admin.
	e.users.Users[env.Data.User.ID].IsAdmin = true

	sub := filepath.Join(e.videoDir, "movies")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "Avatar.mp4"), []byte("movie"), 0o644))

	createResp := e.postJSON(t, "/v1/libraries", map[string]string{"name": "Movies", "path": "movies"}, env.Data.Token)
	require.Equal(t, http.StatusOK, createResp.StatusCode)
	var created struct {
		Data models.Library `json:"data"`
	}
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	createResp.Body.Close()

	scanResp := e.postJSON(t, fmt.Sprintf("/v1/libraries/%s/scan", created.Data.ID), nil, env.Data.Token)
	defer scanResp.Body.Close()
	require.Equal(t, http.StatusOK, scanResp.StatusCode)
	var scanned struct {
		Data indexer.ScanResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(scanResp.Body).Decode(&scanned))
	assert.Equal(t, 1, scanned.Data.Added)

	eventsResp := e.get(t, "/v1/admin/events", env.Data.Token, "")
	defer eventsResp.Body.Close()
	require.Equal(t, http.StatusOK, eventsResp.StatusCode)
	var events struct {
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(eventsResp.Body).Decode(&events))
	assert.GreaterOrEqual(t, events.Data.Total, 2)
}

func TestLibraryPathOutsideVideoDirRejected(t *testing.T) {
	e := newTestEnv(t)
	env := e.register(t, "admin")
	e.users.Users[env.Data.User.ID].IsAdmin = true

	outside := t.TempDir()
	resp := e.postJSON(t, "/v1/libraries", map[string]string{"name": "Evil", "path": outside}, env.Data.Token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
