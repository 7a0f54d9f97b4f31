package repository

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/justin13888/beam/internal/apperr"
	"github.com/justin13888/beam/internal/models"
)

// StreamRepository owns MediaStream persistence — one row per codec stream
// inside a file.
type StreamRepository interface {
	CreateForFile(fileID uuid.UUID, streams []models.MediaStream) error
	FindByFileID(fileID uuid.UUID) ([]models.MediaStream, error)
}

type SqlStreamRepository struct {
	db *sql.DB
}

func NewSqlStreamRepository(db *sql.DB) *SqlStreamRepository {
	return &SqlStreamRepository{db: db}
}

func (r *SqlStreamRepository) CreateForFile(fileID uuid.UUID, streams []models.MediaStream) error {
	for _, st := range streams {
		width, height, bitrate := 0, 0, int64(0)
		channels, sampleRate := 0, 0
		lang, title, defaultFlag, forced := "", "", false, false

		switch st.Kind {
		case models.StreamKindVideo:
			if st.Video != nil {
				width, height, bitrate = st.Video.Width, st.Video.Height, st.Video.BitrateBPS
			}
		case models.StreamKindAudio:
			if st.Audio != nil {
				channels, sampleRate, lang, title = st.Audio.Channels, st.Audio.SampleRate, st.Audio.Language, st.Audio.Title
			}
		case models.StreamKindSubtitle:
			if st.Subtitle != nil {
				lang, title, defaultFlag, forced = st.Subtitle.Language, st.Subtitle.Title, st.Subtitle.Default, st.Subtitle.Forced
			}
		}

		_, err := r.db.Exec(`INSERT INTO media_streams
			(id, file_id, stream_index, kind, codec_name, width, height, bitrate_bps,
			 channels, sample_rate, language, title, is_default, is_forced)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			uuid.New(), fileID, st.StreamIdx, st.Kind, st.CodecName,
			width, height, bitrate, channels, sampleRate, lang, title, defaultFlag, forced)
		if err != nil {
			return fmt.Errorf("create stream: %w", apperr.ErrDatabase)
		}
	}
	return nil
}

func (r *SqlStreamRepository) FindByFileID(fileID uuid.UUID) ([]models.MediaStream, error) {
	rows, err := r.db.Query(`SELECT stream_index, kind, codec_name, width, height, bitrate_bps,
		channels, sample_rate, language, title, is_default, is_forced
		FROM media_streams WHERE file_id = $1 ORDER BY stream_index`, fileID)
	if err != nil {
		return nil, fmt.Errorf("find streams: %w", apperr.ErrDatabase)
	}
	defer rows.Close()

	var out []models.MediaStream
	for rows.Next() {
		var st models.MediaStream
		var kind string
		var width, height, channels, sampleRate int
		var bitrate int64
		var lang, title string
		var defaultFlag, forced bool
		if err := rows.Scan(&st.StreamIdx, &kind, &st.CodecName, &width, &height, &bitrate,
			&channels, &sampleRate, &lang, &title, &defaultFlag, &forced); err != nil {
			return nil, fmt.Errorf("scan stream: %w", apperr.ErrDatabase)
		}
		st.FileID = fileID
		st.Kind = models.StreamKind(kind)
		switch st.Kind {
		case models.StreamKindVideo:
			st.Video = &models.VideoStreamMeta{Width: width, Height: height, BitrateBPS: bitrate}
		case models.StreamKindAudio:
			st.Audio = &models.AudioStreamMeta{Channels: channels, SampleRate: sampleRate, Language: lang, Title: title}
		case models.StreamKindSubtitle:
			st.Subtitle = &models.SubtitleStreamMeta{Language: lang, Title: title, Default: defaultFlag, Forced: forced}
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// InMemoryStreamRepository is the test double.
type InMemoryStreamRepository struct {
	mu     sync.Mutex
	ByFile map[uuid.UUID][]models.MediaStream
}

func NewInMemoryStreamRepository() *InMemoryStreamRepository {
	return &InMemoryStreamRepository{ByFile: make(map[uuid.UUID][]models.MediaStream)}
}

func (r *InMemoryStreamRepository) CreateForFile(fileID uuid.UUID, streams []models.MediaStream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ByFile[fileID] = append(r.ByFile[fileID], streams...)
	return nil
}

func (r *InMemoryStreamRepository) FindByFileID(fileID uuid.UUID) ([]models.MediaStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.MediaStream(nil), r.ByFile[fileID]...), nil
}
