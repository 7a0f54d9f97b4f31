// Package mediainfo probes a media file for container and per-stream
// technical metadata. Production implementation shells out to ffprobe;
// the scanner never calls exec.Command directly.
package mediainfo

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/justin13888/beam/internal/ffmpeg"
	"github.com/justin13888/beam/internal/models"
)

// Probe is the container + per-stream metadata the indexer needs to insert
// a MediaFile row and its MediaStream children.
type Probe struct {
	MimeType        string
	DurationSeconds float64
	ContainerFormat string
	Streams         []models.MediaStream
}

// Service probes media files for technical metadata. One production
// implementation (ffprobe-backed), one in-memory double for tests.
type Service interface {
	Probe(path string) (*Probe, error)
}

// FFprobeService is the production implementation, grounded on the
// scanner's existing ffprobe wrapper.
type FFprobeService struct {
	probe *ffmpeg.FFprobe
}

func NewFFprobeService(ffprobePath string) *FFprobeService {
	return &FFprobeService{probe: ffmpeg.NewFFprobe(ffprobePath)}
}

func (s *FFprobeService) Probe(path string) (*Probe, error) {
	result, err := s.probe.Probe(path)
	if err != nil {
		return nil, err
	}
	return probeFromResult(path, result), nil
}

// probeFromResult maps raw ffprobe output into the catalog's typed streams.
func probeFromResult(path string, result *ffmpeg.ProbeResult) *Probe {
	duration, _ := strconv.ParseFloat(result.Format.Duration, 64)
	container := containerFromPath(path)

	out := &Probe{
		MimeType:        "video/" + container,
		DurationSeconds: duration,
		ContainerFormat: container,
	}

	for _, st := range result.Streams {
		switch st.CodecType {
		case "video":
			bitrate, _ := strconv.ParseInt(st.BitRate, 10, 64)
			out.Streams = append(out.Streams, models.MediaStream{
				StreamIdx: st.Index,
				Kind:      models.StreamKindVideo,
				CodecName: st.CodecName,
				Video: &models.VideoStreamMeta{
					Width:      st.Width,
					Height:     st.Height,
					FrameRate:  st.FrameRate(),
					BitrateBPS: bitrate,
				},
			})
		case "audio":
			sampleRate, _ := strconv.Atoi(st.SampleRate)
			lang := st.Tags["language"]
			title := st.Tags["title"]
			out.Streams = append(out.Streams, models.MediaStream{
				StreamIdx: st.Index,
				Kind:      models.StreamKindAudio,
				CodecName: st.CodecName,
				Audio: &models.AudioStreamMeta{
					Channels:   st.Channels,
					SampleRate: sampleRate,
					Language:   lang,
					Title:      title,
				},
			})
		case "subtitle":
			lang := st.Tags["language"]
			title := st.Tags["title"]
			out.Streams = append(out.Streams, models.MediaStream{
				StreamIdx: st.Index,
				Kind:      models.StreamKindSubtitle,
				CodecName: st.CodecName,
				Subtitle: &models.SubtitleStreamMeta{
					Language: lang,
					Title:    title,
					Default:  st.Disposition.Default != 0,
					Forced:   st.Disposition.Forced != 0,
				},
			})
		}
	}

	return out
}

func containerFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "mp4"
	}
	return ext
}

// InMemory is a test double that returns a canned probe for every call, or
// an error when Fail is set.
type InMemory struct {
	Result *Probe
	Fail   error
}

func (m *InMemory) Probe(path string) (*Probe, error) {
	if m.Fail != nil {
		return nil, m.Fail
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &Probe{MimeType: "video/mp4", DurationSeconds: 120, ContainerFormat: "mp4"}, nil
}
