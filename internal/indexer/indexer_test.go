package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/apperr"
	"github.com/justin13888/beam/internal/hash"
	"github.com/justin13888/beam/internal/mediainfo"
	"github.com/justin13888/beam/internal/models"
	"github.com/justin13888/beam/internal/notifications"
	"github.com/justin13888/beam/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	indexer   *Indexer
	libraries *repository.InMemoryLibraryRepository
	files     *repository.InMemoryFileRepository
	movies    *repository.InMemoryMovieRepository
	shows     *repository.InMemoryShowRepository
	streams   *repository.InMemoryStreamRepository
	hasher    *hash.InMemory
	probe     *mediainfo.InMemory
	notifier  *notifications.InMemoryService
	library   *models.Library
	root      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	f := &fixture{
		libraries: repository.NewInMemoryLibraryRepository(),
		files:     repository.NewInMemoryFileRepository(),
		movies:    repository.NewInMemoryMovieRepository(),
		shows:     repository.NewInMemoryShowRepository(),
		streams:   repository.NewInMemoryStreamRepository(),
		hasher: &hash.InMemory{Fixed: 0xfeedbeef},
		probe: &mediainfo.InMemory{Result: &mediainfo.Probe{
			MimeType:        "video/mp4",
			DurationSeconds: 120,
			ContainerFormat: "mp4",
			Streams: []models.MediaStream{
				{StreamIdx: 0, Kind: models.StreamKindVideo, CodecName: "h264",
					Video: &models.VideoStreamMeta{Width: 1920, Height: 1080, FrameRate: 23.976}},
				{StreamIdx: 1, Kind: models.StreamKindAudio, CodecName: "aac",
					Audio: &models.AudioStreamMeta{Channels: 2, SampleRate: 48000, Language: "eng"}},
			},
		}},
		notifier:  notifications.NewInMemoryService(),
		root:      root,
	}

	f.library = &models.Library{ID: uuid.New(), Name: "Test Library", RootPath: root}
	require.NoError(t, f.libraries.Create(f.library))

	f.indexer = New(f.libraries, f.files, f.movies, f.shows, f.streams,
		f.hasher, f.probe, f.notifier, notifications.NewInMemoryAdminLogService())
	return f
}

func (f *fixture) addFile(t *testing.T, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func (f *fixture) scan(t *testing.T) *ScanResult {
	t.Helper()
	result, err := f.indexer.ScanLibrary(context.Background(), f.library.ID.String())
	require.NoError(t, err)
	return result
}

func TestScanCleanMovie(t *testing.T) {
	f := newFixture(t)
	path := f.addFile(t, "Avatar.mp4", []byte("movie bytes"))

	result := f.scan(t)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 0, result.Removed)
	assert.Equal(t, 1, result.Total)

	require.Len(t, f.movies.Movies, 1)
	for _, m := range f.movies.Movies {
		assert.Equal(t, "Avatar", m.Title)
	}
	require.Len(t, f.movies.Entries, 1)
	for _, e := range f.movies.Entries {
		assert.True(t, e.IsPrimary)
		assert.Equal(t, f.library.ID, e.LibraryID)
	}

	file, err := f.files.FindByPath(f.library.ID, path)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, models.FileStatusKnown, file.Status)
	assert.Equal(t, models.ContentKindMovie, file.Content.Kind)
	assert.Equal(t, uint64(0xfeedbeef), file.Hash)

	streams, err := f.streams.FindByFileID(file.ID)
	require.NoError(t, err)
	assert.Equal(t, len(f.probe.Result.Streams), len(streams))
}

func TestRescanWithoutEditsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "Avatar.mp4", []byte("movie bytes"))

	first := f.scan(t)
	assert.Equal(t, 1, first.Added)

	second := f.scan(t)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 0, second.Removed)
	assert.Equal(t, 1, second.Total)
	assert.Len(t, f.files.Files, 1)
	assert.Len(t, f.movies.Movies, 1)
}

func TestRescanUnchangedSizeKeepsStatus(t *testing.T) {
	f := newFixture(t)
	path := f.addFile(t, "Avatar.mp4", []byte("movie bytes"))

	f.scan(t)
	f.scan(t)

	file, err := f.files.FindByPath(f.library.ID, path)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusKnown, file.Status)
}

func TestRescanChangedSizeMarksChanged(t *testing.T) {
	f := newFixture(t)
	path := f.addFile(t, "Avatar.mp4", []byte("movie bytes"))

	f.scan(t)
	require.NoError(t, os.WriteFile(path, []byte("different, longer movie bytes"), 0o644))
	f.scan(t)

	file, err := f.files.FindByPath(f.library.ID, path)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusChanged, file.Status)
	assert.Equal(t, int64(len("different, longer movie bytes")), file.SizeBytes)
	// Hash re-extraction is deferred to a later pass.
	assert.Equal(t, uint64(0xfeedbeef), file.Hash)
}

func TestScanEpisodeClassification(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "Breaking Bad/ep.S01E02.mkv", []byte("episode"))

	f.scan(t)

	require.Len(t, f.shows.Shows, 1)
	var showID uuid.UUID
	for id, s := range f.shows.Shows {
		showID = id
		assert.Equal(t, "Breaking Bad", s.Title)
	}
	require.Len(t, f.shows.Seasons, 1)
	for _, se := range f.shows.Seasons {
		assert.Equal(t, showID, se.ShowID)
		assert.Equal(t, 1, se.SeasonNumber)
	}
	require.Len(t, f.shows.Episodes, 1)
	for _, e := range f.shows.Episodes {
		assert.Equal(t, 2, e.EpisodeNumber)
		assert.Equal(t, "ep.S01E02", e.Title)
	}
	assert.True(t, f.shows.LibraryShows[f.library.ID][showID])
}

func TestScanSecondSeasonReusesShow(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "Breaking Bad/ep.S01E02.mkv", []byte("episode one"))
	f.scan(t)

	f.addFile(t, "Breaking Bad/ep.S02E01.mkv", []byte("episode two"))
	result := f.scan(t)

	assert.Equal(t, 1, result.Added)
	assert.Len(t, f.shows.Shows, 1)
	assert.Len(t, f.shows.Seasons, 2)
	assert.Len(t, f.shows.Episodes, 2)
}

func TestScanPrunesDeletedFiles(t *testing.T) {
	f := newFixture(t)
	pathA := f.addFile(t, "A.mp4", []byte("aaa"))
	f.addFile(t, "B.mp4", []byte("bbb"))
	f.scan(t)
	require.Len(t, f.files.Files, 2)

	require.NoError(t, os.Remove(pathA))
	result := f.scan(t)

	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 1, result.Total)

	gone, err := f.files.FindByPath(f.library.ID, pathA)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestScanUnknownExtension(t *testing.T) {
	f := newFixture(t)
	path := f.addFile(t, "readme.txt", []byte("not a video"))

	result := f.scan(t)
	assert.Equal(t, 1, result.Added)

	file, err := f.files.FindByPath(f.library.ID, path)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, models.FileStatusUnknown, file.Status)
	assert.True(t, file.Content.IsNone())
	assert.Equal(t, uint64(0), file.Hash)

	streams, err := f.streams.FindByFileID(file.ID)
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func TestScanProbeFailureFallsBackToUnknown(t *testing.T) {
	f := newFixture(t)
	f.probe.Fail = errors.New("corrupt container")
	path := f.addFile(t, "Broken.mkv", []byte("garbage"))

	result := f.scan(t)
	assert.Equal(t, 1, result.Added)

	file, err := f.files.FindByPath(f.library.ID, path)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, models.FileStatusUnknown, file.Status)
	assert.Len(t, f.movies.Movies, 0)
}

func TestScanHashFailureSkipsFile(t *testing.T) {
	f := newFixture(t)
	f.hasher.Fail = errors.New("read error")
	path := f.addFile(t, "Avatar.mp4", []byte("movie"))

	result := f.scan(t)
	assert.Equal(t, 0, result.Added)

	file, err := f.files.FindByPath(f.library.ID, path)
	require.NoError(t, err)
	assert.Nil(t, file)

	var sawWarning bool
	for _, e := range f.notifier.Published {
		if e.Level == models.EventLevelWarning {
			sawWarning = true
		}
	}
	assert.True(t, sawWarning)
}

func TestScanInvalidID(t *testing.T) {
	f := newFixture(t)
	_, err := f.indexer.ScanLibrary(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, apperr.ErrInvalidID)
}

func TestScanLibraryNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.indexer.ScanLibrary(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestScanRootPathMissing(t *testing.T) {
	f := newFixture(t)
	lib := &models.Library{ID: uuid.New(), Name: "Gone", RootPath: filepath.Join(f.root, "nope")}
	require.NoError(t, f.libraries.Create(lib))

	_, err := f.indexer.ScanLibrary(context.Background(), lib.ID.String())
	assert.ErrorIs(t, err, apperr.ErrPathNotFound)

	var sawError bool
	for _, e := range f.notifier.Published {
		if e.Level == models.EventLevelError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestScanRootUnreadableMidWalkAbortsBeforePrune(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not bind for root")
	}
	f := newFixture(t)
	f.addFile(t, "Avatar.mp4", []byte("movie"))
	f.scan(t)
	require.Len(t, f.files.Files, 1)

	// An unreadable root surfaces as a walk error on the root itself, the
	// same shape as the root vanishing between lookup and walk.
	require.NoError(t, os.Chmod(f.root, 0o000))
	t.Cleanup(func() { os.Chmod(f.root, 0o755) })

	_, err := f.indexer.ScanLibrary(context.Background(), f.library.ID.String())
	assert.ErrorIs(t, err, apperr.ErrPathNotFound)

	// The catalog must not have been pruned.
	assert.Len(t, f.files.Files, 1)
}

func TestScanEmitsStartAndFinishEvents(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "Avatar.mp4", []byte("movie"))
	f.scan(t)

	require.GreaterOrEqual(t, len(f.notifier.Published), 2)
	assert.Equal(t, models.EventCategoryLibraryScan, f.notifier.Published[0].Category)
	assert.Contains(t, f.notifier.Published[0].Message, "scan started")
	last := f.notifier.Published[len(f.notifier.Published)-1]
	assert.Contains(t, last.Message, "1 added, 0 removed, 1 total")
}

func TestScanCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "Avatar.mp4", []byte("movie"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.indexer.ScanLibrary(ctx, f.library.ID.String())
	assert.ErrorIs(t, err, context.Canceled)
}
