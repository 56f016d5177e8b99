package ffmpeg

import (
	"strings"
	"testing"

	"vidsift/pkg/vhash"
)

func argsString(d *Decoder, req ExtractRequest) string {
	return strings.Join(d.extractArgs(req), " ")
}

func TestExtractArgs_CanonicalRequest(t *testing.T) {
	d := NewDecoder("", "")
	req := ExtractRequest{
		Path:       "/videos/a.mp4",
		SkipMS:     0,
		WindowMS:   30_000,
		FrameCount: 10,
		Width:      32,
		Height:     32,
	}

	got := argsString(d, req)

	for _, want := range []string{
		"-ss 0.000",
		"-t 33.333",
		"-i /videos/a.mp4",
		"fps=9000/30000",
		"scale=32:32:flags=bilinear",
		"format=gray",
		"-frames:v 10",
		"-f rawvideo pipe:1",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("argv %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "crop=") {
		t.Fatalf("argv %q contains crop filter without a crop rect", got)
	}
}

func TestExtractArgs_CropAndSkip(t *testing.T) {
	d := NewDecoder("/opt/ffmpeg/bin/ffmpeg", "")
	req := ExtractRequest{
		Path:       "b.mkv",
		SkipMS:     2_500,
		WindowMS:   30_000,
		FrameCount: 10,
		Width:      32,
		Height:     32,
		Crop:       &vhash.Rect{X: 0, Y: 86, W: 1280, H: 548},
	}

	got := argsString(d, req)

	if !strings.Contains(got, "-ss 2.500") {
		t.Fatalf("argv %q missing skip seek", got)
	}
	if !strings.Contains(got, "crop=1280:548:0:86,fps=") {
		t.Fatalf("argv %q must apply crop before sampling", got)
	}
}

func TestExtractArgs_ExtraArgsPrepended(t *testing.T) {
	d := NewDecoder("", "", "-hwaccel", "auto")
	req := ExtractRequest{Path: "c.mp4", WindowMS: 30_000, FrameCount: 5, Width: 32, Height: 32}

	args := d.extractArgs(req)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-hwaccel auto") {
		t.Fatalf("argv %q missing injected extra args", joined)
	}
	hwIdx := -1
	inputIdx := -1
	for i, a := range args {
		if a == "-hwaccel" && hwIdx == -1 {
			hwIdx = i
		}
		if a == "-i" && inputIdx == -1 {
			inputIdx = i
		}
	}
	if hwIdx == -1 || inputIdx == -1 || hwIdx > inputIdx {
		t.Fatalf("extra args must precede the input: %q", joined)
	}
}

func TestExtractArgs_SingleFrame(t *testing.T) {
	d := NewDecoder("", "")
	req := ExtractRequest{Path: "d.mp4", SkipMS: 1_000, WindowMS: 30_000, FrameCount: 1, Width: 256, Height: 144}

	got := argsString(d, req)
	if strings.Contains(got, "fps=") {
		t.Fatalf("single-frame argv %q must not use the fps filter", got)
	}
	if !strings.Contains(got, "-frames:v 1") {
		t.Fatalf("single-frame argv %q missing frame cap", got)
	}
	if strings.Contains(got, "-t ") {
		t.Fatalf("single-frame argv %q must not limit read duration", got)
	}
}
