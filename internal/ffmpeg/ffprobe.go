// Package ffmpeg wraps the ffprobe binary; callers go through mediainfo. The
// ffmpeg binary itself is run by the stream package's transcoder.
package ffmpeg

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type FFprobe struct{ Path string }

type ProbeResult struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

type FormatInfo struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
	Bitrate  string `json:"bit_rate"`
}

type StreamInfo struct {
	Index        int               `json:"index"`
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Channels     int               `json:"channels"`
	SampleRate   string            `json:"sample_rate"`
	BitRate      string            `json:"bit_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Tags         map[string]string `json:"tags"`
	Disposition  Disposition       `json:"disposition"`
}

// Disposition flags from ffprobe stream disposition.
type Disposition struct {
	Default int `json:"default"`
	Forced  int `json:"forced"`
}

func NewFFprobe(path string) *FFprobe { return &FFprobe{Path: path} }

func (f *FFprobe) Probe(filePath string) (*ProbeResult, error) {
	cmd := exec.Command(f.Path, "-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", filePath)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &result, nil
}

func (r *ProbeResult) GetDurationSeconds() float64 {
	duration, _ := strconv.ParseFloat(r.Format.Duration, 64)
	return duration
}

// FrameRate parses an avg_frame_rate fraction like "24000/1001" into a float.
func (s *StreamInfo) FrameRate() float64 {
	parts := strings.SplitN(s.AvgFrameRate, "/", 2)
	if len(parts) != 2 {
		f, _ := strconv.ParseFloat(s.AvgFrameRate, 64)
		return f
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
