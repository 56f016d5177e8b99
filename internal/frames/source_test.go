package frames

import (
	"testing"
	"time"

	"vidsift/pkg/vhash"
)

func TestSampleTimestamp_InclusiveEndpoints(t *testing.T) {
	p := vhash.DefaultParams() // 10 frames over [0, 30_000]

	first := sampleTimestamp(p, 0)
	last := sampleTimestamp(p, p.FrameCount-1)
	if first != 0 {
		t.Fatalf("first timestamp = %d, want 0", first)
	}
	if last != 30_000 {
		t.Fatalf("last timestamp = %d, want 30000", last)
	}

	for i := 1; i < p.FrameCount; i++ {
		if sampleTimestamp(p, i) <= sampleTimestamp(p, i-1) {
			t.Fatalf("timestamps not strictly increasing at %d", i)
		}
	}
}

func TestSampleTimestamp_WithSkip(t *testing.T) {
	p := vhash.DefaultParams()
	p.SkipMS = 5_000

	if got := sampleTimestamp(p, 0); got != 5_000 {
		t.Fatalf("first timestamp = %d, want 5000", got)
	}
	if got := sampleTimestamp(p, p.FrameCount-1); got != 35_000 {
		t.Fatalf("last timestamp = %d, want 35000", got)
	}
}

func TestDecodeDeadline(t *testing.T) {
	tests := []struct {
		name       string
		durationMS int64
		limit      time.Duration
		want       time.Duration
	}{
		{"short clip floors at minimum", 10_000, 120 * time.Second, 30 * time.Second},
		{"scales with duration", 90_000, 120 * time.Second, 45 * time.Second},
		{"capped at wall limit", 3_600_000, 120 * time.Second, 120 * time.Second},
		{"respects tighter cap", 3_600_000, 60 * time.Second, 60 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := decodeDeadline(tc.durationMS, tc.limit); got != tc.want {
				t.Fatalf("decodeDeadline(%d, %v) = %v, want %v", tc.durationMS, tc.limit, got, tc.want)
			}
		})
	}
}

func TestSampleDims(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		wantW int
		wantH int
	}{
		{"landscape", 1920, 1080, 256, 144},
		{"portrait", 1080, 1920, 144, 256},
		{"small passthrough", 200, 112, 200, 112},
		{"square", 512, 512, 256, 256},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, h := sampleDims(tc.w, tc.h)
			if w != tc.wantW || h != tc.wantH {
				t.Fatalf("sampleDims(%d, %d) = %dx%d, want %dx%d", tc.w, tc.h, w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestNormalizeFrame_Passthrough(t *testing.T) {
	pix := make([]byte, vhash.FramePixels)
	for i := range pix {
		pix[i] = byte(i)
	}

	frame, err := normalizeFrame(pix, vhash.FrameEdge, vhash.FrameEdge)
	if err != nil {
		t.Fatalf("normalizeFrame(canonical) error: %v", err)
	}
	for i := range pix {
		if frame.Pix[i] != pix[i] {
			t.Fatalf("pixel %d changed during passthrough", i)
		}
	}
}

func TestNormalizeFrame_Downsample(t *testing.T) {
	// A 64x64 frame whose left half is dark and right half bright must
	// keep that structure at 32x32.
	const edge = 64
	pix := make([]byte, edge*edge)
	for y := 0; y < edge; y++ {
		for x := 0; x < edge; x++ {
			if x >= edge/2 {
				pix[y*edge+x] = 200
			} else {
				pix[y*edge+x] = 20
			}
		}
	}

	frame, err := normalizeFrame(pix, edge, edge)
	if err != nil {
		t.Fatalf("normalizeFrame(64x64) error: %v", err)
	}
	if l := frame.Pix[16*vhash.FrameEdge+4]; l > 60 {
		t.Fatalf("left half luma %d, want dark", l)
	}
	if r := frame.Pix[16*vhash.FrameEdge+27]; r < 160 {
		t.Fatalf("right half luma %d, want bright", r)
	}
}

func TestNormalizeFrame_Rejects(t *testing.T) {
	if _, err := normalizeFrame(make([]byte, 16*16), 16, 16); err == nil {
		t.Fatal("normalizeFrame accepted an undersized frame")
	}
	if _, err := normalizeFrame(make([]byte, 10), 32, 32); err == nil {
		t.Fatal("normalizeFrame accepted a size mismatch")
	}
}
