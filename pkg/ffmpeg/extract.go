package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"vidsift/pkg/vhash"
)

// terminateGrace is how long a cancelled decoder child gets between
// SIGTERM and SIGKILL.
const terminateGrace = 2 * time.Second

// ExtractRequest describes one raw-luma extraction: FrameCount grayscale
// frames of Width x Height, sampled at equal spacing across
// [SkipMS, SkipMS+WindowMS], optionally cropped first (source coordinates).
type ExtractRequest struct {
	Path       string
	SkipMS     int64
	WindowMS   int64
	FrameCount int
	Width      int
	Height     int
	Crop       *vhash.Rect
}

// ShortExtractError reports a decoder that exited before delivering the
// requested frame count.
type ShortExtractError struct {
	Got  int
	Want int
}

func (e *ShortExtractError) Error() string {
	return fmt.Sprintf("decoder delivered %d of %d frames", e.Got, e.Want)
}

// ExtractFrames launches one decoder child that reads the file once, emits
// the requested frames as a raw grayscale stream on stdout, and exits. The
// child gets SIGTERM plus a short grace window when ctx is cancelled.
func (d *Decoder) ExtractFrames(ctx context.Context, req ExtractRequest) ([][]byte, error) {
	if req.FrameCount < 1 || req.Width < 1 || req.Height < 1 {
		return nil, fmt.Errorf("invalid extract request %+v", req)
	}

	cmd := exec.CommandContext(ctx, d.FFmpegPath, d.extractArgs(req)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = terminateGrace

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}

	frameSize := req.Width * req.Height
	frames := make([][]byte, 0, req.FrameCount)
	for len(frames) < req.FrameCount {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(stdout, buf); err != nil {
			break
		}
		frames = append(frames, buf)
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(frames) < req.FrameCount {
		if waitErr != nil {
			return nil, fmt.Errorf("decoder failed after %d/%d frames: %w: %s",
				len(frames), req.FrameCount, waitErr, strings.TrimSpace(stderr.String()))
		}
		return nil, &ShortExtractError{Got: len(frames), Want: req.FrameCount}
	}

	return frames, nil
}

// extractArgs builds the decoder argv. Input seeking (-ss before -i) resets
// timestamps to zero, so the fps filter emits frames at exactly
// k * window/(count-1) past the skip point; -frames:v stops the child after
// the last sample.
func (d *Decoder) extractArgs(req ExtractRequest) []string {
	args := d.defaultArgs()

	args = append(args,
		"-ss", fmt.Sprintf("%.3f", float64(req.SkipMS)/1000),
	)
	if req.FrameCount > 1 {
		// Read one extra sampling interval so the final endpoint frame is
		// always emitted before EOF.
		intervalMS := req.WindowMS / int64(req.FrameCount-1)
		args = append(args, "-t", fmt.Sprintf("%.3f", float64(req.WindowMS+intervalMS)/1000))
	}
	args = append(args, "-i", req.Path)

	var filters []string
	if req.Crop != nil && !req.Crop.IsZero() {
		filters = append(filters, fmt.Sprintf("crop=%d:%d:%d:%d",
			req.Crop.W, req.Crop.H, req.Crop.X, req.Crop.Y))
	}
	if req.FrameCount > 1 {
		filters = append(filters, fmt.Sprintf("fps=%d/%d", int64(req.FrameCount-1)*1000, req.WindowMS))
	}
	filters = append(filters,
		fmt.Sprintf("scale=%d:%d:flags=bilinear", req.Width, req.Height),
		"format=gray",
	)

	args = append(args,
		"-vf", strings.Join(filters, ","),
		"-frames:v", fmt.Sprintf("%d", req.FrameCount),
		"-loglevel", "error",
		"-f", "rawvideo",
		"pipe:1",
	)
	return args
}
