package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// Probe is the subset of stream metadata the engine needs.
type Probe struct {
	DurationMS int64
	Width      int
	Height     int
}

// ErrNoDuration reports a probe that succeeded but carried no usable
// duration (typically a non-video or a broken container).
var ErrNoDuration = errors.New("no duration in probe output")

// ErrNoVideoStream reports a container without any video stream.
var ErrNoVideoStream = errors.New("no video stream in probe output")

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeVideo runs ffprobe once and extracts duration and the first video
// stream's dimensions.
func (d *Decoder) ProbeVideo(ctx context.Context, path string) (*Probe, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, d.FFprobePath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, stderr.String())
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var width, height int
	found := false
	for _, stream := range probe.Streams {
		if stream.CodecType == "video" {
			width = stream.Width
			height = stream.Height
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNoVideoStream
	}

	if probe.Format.Duration == "" {
		return nil, ErrNoDuration
	}
	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || seconds <= 0 {
		return nil, ErrNoDuration
	}

	return &Probe{
		DurationMS: int64(seconds * 1000),
		Width:      width,
		Height:     height,
	}, nil
}
