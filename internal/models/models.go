// Package models holds the catalog's domain types: libraries, media files,
// movies, shows, streams, users, sessions, and admin events.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ──────────────────── Library ────────────────────

type Library struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	Name                string     `json:"name" db:"name"`
	RootPath            string     `json:"root_path" db:"root_path"`
	Description         *string    `json:"description,omitempty" db:"description"`
	LastScanStartedAt   *time.Time `json:"last_scan_started_at,omitempty" db:"last_scan_started_at"`
	LastScanFinishedAt  *time.Time `json:"last_scan_finished_at,omitempty" db:"last_scan_finished_at"`
	LastScanFileCount   int        `json:"last_scan_file_count" db:"last_scan_file_count"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// ──────────────────── Media file content (sum type) ────────────────────

// MediaContentKind discriminates MediaFileContent.
type MediaContentKind string

const (
	ContentKindNone    MediaContentKind = "none"
	ContentKindMovie   MediaContentKind = "movie"
	ContentKindEpisode MediaContentKind = "episode"
)

// MediaFileContent is the tagged union Movie{entry_id} | Episode{episode_id} | None.
// MovieEntryID is set for Movie, EpisodeID for Episode, and neither for None.
type MediaFileContent struct {
	Kind         MediaContentKind `json:"kind"`
	MovieEntryID *uuid.UUID       `json:"movie_entry_id,omitempty"`
	EpisodeID    *uuid.UUID       `json:"episode_id,omitempty"`
}

func MovieContent(entryID uuid.UUID) MediaFileContent {
	return MediaFileContent{Kind: ContentKindMovie, MovieEntryID: &entryID}
}

func EpisodeContent(episodeID uuid.UUID) MediaFileContent {
	return MediaFileContent{Kind: ContentKindEpisode, EpisodeID: &episodeID}
}

func (c MediaFileContent) IsNone() bool { return c.Kind == "" || c.Kind == ContentKindNone }

// FileStatus is the lifecycle state of a MediaFile row.
type FileStatus string

const (
	FileStatusKnown   FileStatus = "known"
	FileStatusChanged FileStatus = "changed"
	FileStatusUnknown FileStatus = "unknown"
)

// MediaFile is one row per path currently observed on disk.
type MediaFile struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	LibraryID       uuid.UUID        `json:"library_id" db:"library_id"`
	Path            string           `json:"path" db:"path"`
	Hash            uint64           `json:"hash" db:"hash"`
	SizeBytes       int64            `json:"size_bytes" db:"size_bytes"`
	MimeType        *string          `json:"mime_type,omitempty" db:"mime_type"`
	DurationSeconds *float64         `json:"duration_seconds,omitempty" db:"duration_seconds"`
	ContainerFormat *string          `json:"container_format,omitempty" db:"container_format"`
	Content         MediaFileContent `json:"content" db:"-"`
	Status          FileStatus       `json:"status" db:"status"`
	ScannedAt       time.Time        `json:"scanned_at" db:"scanned_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// ──────────────────── Movie ────────────────────

type Movie struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Year       *int      `json:"year,omitempty" db:"year"`
	ExternalID *string   `json:"external_id,omitempty" db:"external_id"`
	Rating     *float64  `json:"rating,omitempty" db:"rating"`
	Runtime    *float64  `json:"runtime_seconds,omitempty" db:"runtime_seconds"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// MovieEntry materializes one physical edition of a movie inside one library.
type MovieEntry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	LibraryID uuid.UUID `json:"library_id" db:"library_id"`
	MovieID   uuid.UUID `json:"movie_id" db:"movie_id"`
	Edition   *string   `json:"edition,omitempty" db:"edition"`
	IsPrimary bool      `json:"is_primary" db:"is_primary"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ──────────────────── Show / Season / Episode ────────────────────

type Show struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Year       *int      `json:"year,omitempty" db:"year"`
	ExternalID *string   `json:"external_id,omitempty" db:"external_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

type Season struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ShowID       uuid.UUID `json:"show_id" db:"show_id"`
	SeasonNumber int       `json:"season_number" db:"season_number"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Episode struct {
	ID            uuid.UUID `json:"id" db:"id"`
	SeasonID      uuid.UUID `json:"season_id" db:"season_id"`
	EpisodeNumber int       `json:"episode_number" db:"episode_number"`
	Title         string    `json:"title" db:"title"`
	RuntimeSecs   *float64  `json:"runtime_seconds,omitempty" db:"runtime_seconds"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ──────────────────── Media stream (sum type per kind) ────────────────────

type StreamKind string

const (
	StreamKindVideo    StreamKind = "video"
	StreamKindAudio    StreamKind = "audio"
	StreamKindSubtitle StreamKind = "subtitle"
)

// VideoStreamMeta holds fields only meaningful for a video stream.
type VideoStreamMeta struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameRate  float64 `json:"frame_rate"`
	BitrateBPS int64   `json:"bitrate_bps"`
}

// AudioStreamMeta holds fields only meaningful for an audio stream.
type AudioStreamMeta struct {
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language,omitempty"`
	Title      string `json:"title,omitempty"`
}

// SubtitleStreamMeta holds fields only meaningful for a subtitle stream.
type SubtitleStreamMeta struct {
	Language string `json:"language,omitempty"`
	Title    string `json:"title,omitempty"`
	Default  bool   `json:"default"`
	Forced   bool   `json:"forced"`
}

// MediaStream is one row per codec stream inside a file. Exactly one of
// Video/Audio/Subtitle is populated, matching Kind.
type MediaStream struct {
	ID         uuid.UUID           `json:"id" db:"id"`
	FileID     uuid.UUID           `json:"file_id" db:"file_id"`
	StreamIdx  int                 `json:"stream_index" db:"stream_index"`
	Kind       StreamKind          `json:"kind" db:"kind"`
	CodecName  string              `json:"codec_name" db:"codec_name"`
	Video      *VideoStreamMeta    `json:"video,omitempty" db:"-"`
	Audio      *AudioStreamMeta    `json:"audio,omitempty" db:"-"`
	Subtitle   *SubtitleStreamMeta `json:"subtitle,omitempty" db:"-"`
}

// ──────────────────── User ────────────────────

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ──────────────────── Session ────────────────────

// SessionData is the server-side record keyed by an opaque session id.
type SessionData struct {
	UserID     string `json:"user_id"`
	DeviceHash string `json:"device_hash"`
	IP         string `json:"ip"`
	CreatedAt  int64  `json:"created_at"`
	LastActive int64  `json:"last_active"`
}

// ──────────────────── Admin event ────────────────────

type EventLevel string

const (
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

type EventCategory string

const (
	EventCategoryLibraryScan EventCategory = "library_scan"
	EventCategorySystem      EventCategory = "system"
	EventCategoryAuth        EventCategory = "auth"
)

// AdminEvent is an immutable, append-only record.
type AdminEvent struct {
	ID          string          `json:"id" db:"id"`
	Timestamp   time.Time       `json:"timestamp" db:"created_at"`
	Level       EventLevel      `json:"level" db:"level"`
	Category    EventCategory   `json:"category" db:"category"`
	Message     string          `json:"message" db:"message"`
	LibraryID   *string         `json:"library_id,omitempty" db:"-"`
	LibraryName *string         `json:"library_name,omitempty" db:"-"`
	Details     json.RawMessage `json:"details,omitempty" db:"details"`
}

func InfoEvent(category EventCategory, message string, libraryID, libraryName *string) AdminEvent {
	return AdminEvent{ID: uuid.NewString(), Timestamp: time.Now(), Level: EventLevelInfo,
		Category: category, Message: message, LibraryID: libraryID, LibraryName: libraryName}
}

func WarningEvent(category EventCategory, message string, libraryID, libraryName *string) AdminEvent {
	return AdminEvent{ID: uuid.NewString(), Timestamp: time.Now(), Level: EventLevelWarning,
		Category: category, Message: message, LibraryID: libraryID, LibraryName: libraryName}
}

func ErrorEvent(category EventCategory, message string, libraryID, libraryName *string) AdminEvent {
	return AdminEvent{ID: uuid.NewString(), Timestamp: time.Now(), Level: EventLevelError,
		Category: category, Message: message, LibraryID: libraryID, LibraryName: libraryName}
}
