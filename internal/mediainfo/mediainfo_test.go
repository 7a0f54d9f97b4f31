package mediainfo

import (
	"testing"

	"github.com/justin13888/beam/internal/ffmpeg"
	"github.com/justin13888/beam/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeFromResult(t *testing.T) {
	result := &ffmpeg.ProbeResult{
		Format: ffmpeg.FormatInfo{Duration: "5403.52"},
		Streams: []ffmpeg.StreamInfo{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080,
				BitRate: "8000000", AvgFrameRate: "24000/1001"},
			{Index: 1, CodecType: "audio", CodecName: "aac", Channels: 6, SampleRate: "48000",
				Tags: map[string]string{"language": "eng", "title": "Surround 5.1"}},
			{Index: 2, CodecType: "subtitle", CodecName: "subrip",
				Tags:        map[string]string{"language": "eng"},
				Disposition: ffmpeg.Disposition{Default: 1, Forced: 0}},
			{Index: 3, CodecType: "data", CodecName: "bin_data"},
		},
	}

	probe := probeFromResult("/R/Movie.mkv", result)

	assert.Equal(t, "video/mkv", probe.MimeType)
	assert.Equal(t, "mkv", probe.ContainerFormat)
	assert.InDelta(t, 5403.52, probe.DurationSeconds, 0.001)

	// Data streams are not catalog material; only the typed three survive.
	require.Len(t, probe.Streams, 3)

	video := probe.Streams[0]
	assert.Equal(t, models.StreamKindVideo, video.Kind)
	require.NotNil(t, video.Video)
	assert.Equal(t, 1920, video.Video.Width)
	assert.Equal(t, 1080, video.Video.Height)
	assert.InDelta(t, 23.976, video.Video.FrameRate, 0.001)
	assert.Equal(t, int64(8000000), video.Video.BitrateBPS)
	assert.Nil(t, video.Audio)
	assert.Nil(t, video.Subtitle)

	audio := probe.Streams[1]
	assert.Equal(t, models.StreamKindAudio, audio.Kind)
	require.NotNil(t, audio.Audio)
	assert.Equal(t, 6, audio.Audio.Channels)
	assert.Equal(t, 48000, audio.Audio.SampleRate)
	assert.Equal(t, "eng", audio.Audio.Language)
	assert.Equal(t, "Surround 5.1", audio.Audio.Title)

	sub := probe.Streams[2]
	assert.Equal(t, models.StreamKindSubtitle, sub.Kind)
	require.NotNil(t, sub.Subtitle)
	assert.True(t, sub.Subtitle.Default)
	assert.False(t, sub.Subtitle.Forced)
}

func TestContainerFromPath(t *testing.T) {
	assert.Equal(t, "mkv", containerFromPath("/R/a.MKV"))
	assert.Equal(t, "mp4", containerFromPath("/R/a.mp4"))
	assert.Equal(t, "mp4", containerFromPath("/R/noext"))
}

func TestFrameRateParsing(t *testing.T) {
	st := ffmpeg.StreamInfo{AvgFrameRate: "30/1"}
	assert.InDelta(t, 30.0, st.FrameRate(), 0.001)

	st.AvgFrameRate = "0/0"
	assert.Equal(t, 0.0, st.FrameRate())

	st.AvgFrameRate = "25"
	assert.InDelta(t, 25.0, st.FrameRate(), 0.001)
}
