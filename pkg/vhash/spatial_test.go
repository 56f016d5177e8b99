package vhash

import (
	"math/bits"
	"testing"
)

// lcgFrame fills a frame with a deterministic pseudo-random luma pattern.
func lcgFrame(seed uint32) *Frame {
	f := &Frame{}
	state := seed
	for i := range f.Pix {
		state = state*1664525 + 1013904223
		f.Pix[i] = uint8(state >> 24)
	}
	return f
}

func gradientFrame() *Frame {
	f := &Frame{}
	for y := 0; y < FrameEdge; y++ {
		for x := 0; x < FrameEdge; x++ {
			f.Pix[y*FrameEdge+x] = uint8((x*255 + y*128) / (FrameEdge * 2))
		}
	}
	return f
}

func TestSpatialHash_Deterministic(t *testing.T) {
	frames := []*Frame{lcgFrame(1), lcgFrame(42), gradientFrame()}
	for i, f := range frames {
		a := SpatialHash(f)
		b := SpatialHash(f)
		if a != b {
			t.Fatalf("frame %d: SpatialHash not stable: 0x%016x vs 0x%016x", i, a, b)
		}
	}
}

func TestSpatialHash_DCBitAlwaysZero(t *testing.T) {
	for seed := uint32(0); seed < 16; seed++ {
		h := SpatialHash(lcgFrame(seed))
		if h&1 != 0 {
			t.Fatalf("seed %d: DC slot bit set in 0x%016x", seed, h)
		}
	}
}

func TestSpatialHash_MedianSplit(t *testing.T) {
	// With 63 distinct AC coefficients, exactly 31 lie strictly above the
	// median, so the hash always carries 31 set bits.
	for seed := uint32(1); seed < 8; seed++ {
		h := SpatialHash(lcgFrame(seed))
		if got := bits.OnesCount64(h); got != 31 {
			t.Fatalf("seed %d: popcount(0x%016x) = %d, want 31", seed, h, got)
		}
	}
}

func TestSpatialHash_DistinctContent(t *testing.T) {
	a := SpatialHash(lcgFrame(7))
	b := SpatialHash(lcgFrame(8))
	if a == b {
		t.Fatalf("unrelated frames hashed identically: 0x%016x", a)
	}
}

func TestSpatialHash_BrightnessShift(t *testing.T) {
	// A uniform brightness offset moves only the DC coefficient; the AC
	// block and therefore the hash bits stay put.
	base := gradientFrame()
	shifted := &Frame{}
	for i, p := range base.Pix {
		v := int(p) + 10
		if v > 255 {
			v = 255
		}
		shifted.Pix[i] = uint8(v)
	}

	a := SpatialHash(base)
	b := SpatialHash(shifted)
	if d := bits.OnesCount64(a ^ b); d > 2 {
		t.Fatalf("brightness shift moved %d bits (0x%016x vs 0x%016x)", d, a, b)
	}
}
