// Package frames turns a video file into the canonical frame sample the
// hashers consume. The decoder backend is pluggable; the engine depends
// only on the Source contract.
package frames

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"vidsift/internal/apperrors"
	"vidsift/internal/crop"
	"vidsift/pkg/ffmpeg"
	"vidsift/pkg/vhash"
)

const (
	// cropSampleFrames is the number of frames inspected for bar
	// detection (K = min(N, 5)).
	cropSampleFrames = 5

	// cropSampleEdge is the long-edge size of the crop-estimation sample.
	cropSampleEdge = 256

	// probeTimeout bounds the metadata probe, which reads only headers.
	probeTimeout = 30 * time.Second

	minDecodeTimeout = 30 * time.Second
	maxDecodeTimeout = 120 * time.Second
)

// Result is one sampled video: the canonical frame sequence plus the
// metadata the hash records.
type Result struct {
	Seq        vhash.FrameSeq
	DurationMS int64
	Width      int
	Height     int
	Crop       vhash.Rect
}

// Source produces the frame sample for one path or a structured failure.
type Source interface {
	Sample(ctx context.Context, path string) (*Result, error)
}

// Options configure an FFmpegSource.
type Options struct {
	Params vhash.Params
	// DecodeTimeout caps the per-video extraction deadline. Zero means
	// the default 120 s wall-time cap.
	DecodeTimeout time.Duration
}

// FFmpegSource samples frames through an external ffmpeg decoder, one
// child process per extraction.
type FFmpegSource struct {
	dec    *ffmpeg.Decoder
	det    *crop.Detector
	opts   Options
	logger *zap.Logger
}

// NewFFmpegSource builds a source around the injected decoder.
func NewFFmpegSource(dec *ffmpeg.Decoder, opts Options, logger *zap.Logger) *FFmpegSource {
	if opts.DecodeTimeout <= 0 || opts.DecodeTimeout > maxDecodeTimeout {
		opts.DecodeTimeout = maxDecodeTimeout
	}
	return &FFmpegSource{
		dec:    dec,
		det:    crop.NewDetector(crop.Mode(opts.Params.CropMode), opts.Params.CropThreshold),
		opts:   opts,
		logger: logger.With(zap.String("component", "frame_source")),
	}
}

// Sample probes the file, gates duration and resolution, optionally
// estimates the crop rectangle from a larger sample, and extracts the
// canonical frame sequence.
func (s *FFmpegSource) Sample(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewFileUnreadable(path, err)
	}
	f.Close()

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	probe, err := s.dec.ProbeVideo(probeCtx, path)
	cancel()
	if err != nil {
		return nil, s.classifyProbeError(path, err)
	}

	p := s.opts.Params
	required := p.SkipMS + p.WindowMS
	if probe.DurationMS < required {
		return nil, apperrors.NewDurationTooShort(path, probe.DurationMS, required)
	}
	if probe.Width < vhash.FrameEdge || probe.Height < vhash.FrameEdge {
		return nil, apperrors.NewResolutionTooLow(path, probe.Width, probe.Height)
	}

	deadline := decodeDeadline(probe.DurationMS, s.opts.DecodeTimeout)
	decodeCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	rect := vhash.FullRect(probe.Width, probe.Height)
	if s.det.Mode == crop.ModeLetterbox {
		rect, err = s.estimateCrop(decodeCtx, path, probe)
		if err != nil {
			return nil, s.classifyDecodeError(ctx, path, err)
		}
	}

	req := ffmpeg.ExtractRequest{
		Path:       path,
		SkipMS:     p.SkipMS,
		WindowMS:   p.WindowMS,
		FrameCount: p.FrameCount,
		Width:      vhash.FrameEdge,
		Height:     vhash.FrameEdge,
	}
	if rect != vhash.FullRect(probe.Width, probe.Height) {
		req.Crop = &rect
	}

	raw, err := s.dec.ExtractFrames(decodeCtx, req)
	if err != nil {
		return nil, s.classifyDecodeError(ctx, path, err)
	}

	seq := make(vhash.FrameSeq, p.FrameCount)
	for i, pix := range raw {
		frame, err := normalizeFrame(pix, vhash.FrameEdge, vhash.FrameEdge)
		if err != nil {
			return nil, apperrors.NewResolutionTooLow(path, vhash.FrameEdge, vhash.FrameEdge)
		}
		frame.TimestampMS = sampleTimestamp(p, i)
		seq[i] = *frame
	}

	s.logger.Debug("Sampled video",
		zap.String("path", path),
		zap.Int64("duration_ms", probe.DurationMS),
		zap.Int("frames", len(seq)),
		zap.Bool("cropped", req.Crop != nil),
	)

	return &Result{
		Seq:        seq,
		DurationMS: probe.DurationMS,
		Width:      probe.Width,
		Height:     probe.Height,
		Crop:       rect,
	}, nil
}

// estimateCrop takes a second, larger sample of the first K frames and
// intersects their non-black windows, mapping the result back to source
// coordinates.
func (s *FFmpegSource) estimateCrop(ctx context.Context, path string, probe *ffmpeg.Probe) (vhash.Rect, error) {
	full := vhash.FullRect(probe.Width, probe.Height)

	k := cropSampleFrames
	if s.opts.Params.FrameCount < k {
		k = s.opts.Params.FrameCount
	}
	sw, sh := sampleDims(probe.Width, probe.Height)

	// The first K sampling timestamps span K-1 of the N-1 intervals.
	windowMS := s.opts.Params.WindowMS * int64(k-1) / int64(s.opts.Params.FrameCount-1)

	raw, err := s.dec.ExtractFrames(ctx, ffmpeg.ExtractRequest{
		Path:       path,
		SkipMS:     s.opts.Params.SkipMS,
		WindowMS:   windowMS,
		FrameCount: k,
		Width:      sw,
		Height:     sh,
	})
	if err != nil {
		return full, err
	}

	rect := s.det.Detect(raw, sw, sh)
	if rect == vhash.FullRect(sw, sh) {
		return full, nil
	}

	// Map from sample to source coordinates.
	mapped := vhash.Rect{
		X: rect.X * probe.Width / sw,
		Y: rect.Y * probe.Height / sh,
		W: rect.W * probe.Width / sw,
		H: rect.H * probe.Height / sh,
	}
	if mapped.X+mapped.W > probe.Width {
		mapped.W = probe.Width - mapped.X
	}
	if mapped.Y+mapped.H > probe.Height {
		mapped.H = probe.Height - mapped.Y
	}
	if mapped.IsZero() {
		return full, nil
	}

	s.logger.Debug("Detected crop region",
		zap.String("path", path),
		zap.Int("x", mapped.X), zap.Int("y", mapped.Y),
		zap.Int("w", mapped.W), zap.Int("h", mapped.H),
	)
	return mapped, nil
}

func (s *FFmpegSource) classifyProbeError(path string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return apperrors.NewDecoderMissing(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeout(path, err)
	case errors.Is(err, context.Canceled):
		return apperrors.ErrCancelled
	case errors.Is(err, ffmpeg.ErrNoVideoStream):
		return apperrors.NewNotVideo(path, err)
	case errors.Is(err, ffmpeg.ErrNoDuration):
		return apperrors.NewDurationUnknown(path, err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return apperrors.NewNotVideo(path, err)
	}
	return apperrors.NewDurationUnknown(path, err)
}

func (s *FFmpegSource) classifyDecodeError(parent context.Context, path string, err error) error {
	switch {
	case parent.Err() != nil:
		// The caller's context went away; the deadline we added below it
		// is not a per-item timeout.
		return apperrors.ErrCancelled
	case errors.Is(err, exec.ErrNotFound):
		return apperrors.NewDecoderMissing(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeout(path, err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return apperrors.NewDecoderCrashed(path, exitErr.ExitCode(), err)
	}
	var short *ffmpeg.ShortExtractError
	if errors.As(err, &short) {
		return apperrors.NewDecoderCrashed(path, 0, err)
	}
	return apperrors.NewDecoderCrashed(path, -1, err)
}

// decodeDeadline scales with file duration and is capped at the configured
// wall-time limit.
func decodeDeadline(durationMS int64, limit time.Duration) time.Duration {
	d := time.Duration(durationMS/2) * time.Millisecond
	if d < minDecodeTimeout {
		d = minDecodeTimeout
	}
	if d > limit {
		d = limit
	}
	return d
}

// sampleTimestamp returns the i-th sampling timestamp: equally spaced
// points spanning [skip, skip+window] inclusive of both endpoints.
func sampleTimestamp(p vhash.Params, i int) int64 {
	return p.SkipMS + int64(i)*p.WindowMS/int64(p.FrameCount-1)
}

// sampleDims scales native dimensions so the long edge is cropSampleEdge,
// preserving aspect; small sources keep their native size.
func sampleDims(width, height int) (int, int) {
	if width <= cropSampleEdge && height <= cropSampleEdge {
		return width, height
	}
	if width >= height {
		h := height * cropSampleEdge / width
		if h < 1 {
			h = 1
		}
		return cropSampleEdge, h
	}
	w := width * cropSampleEdge / height
	if w < 1 {
		w = 1
	}
	return w, cropSampleEdge
}
