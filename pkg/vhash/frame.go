// Package vhash implements the perceptual video fingerprint: per-frame
// 64-bit spatial hashes (DCT-based), a 64-bit temporal hash derived from the
// spatial sequence, and the composite VideoHash with its distance metric and
// on-disk codec.
package vhash

import "fmt"

const (
	// FrameEdge is the canonical luma frame edge length. Every frame that
	// reaches the hashers is exactly FrameEdge x FrameEdge grayscale.
	FrameEdge = 32

	// FramePixels is the byte size of one canonical luma plane.
	FramePixels = FrameEdge * FrameEdge

	// DefaultFrameCount is the number of frames sampled per video.
	DefaultFrameCount = 10
)

// Frame is one canonical 32x32 luma frame with its sampling timestamp.
type Frame struct {
	TimestampMS int64
	Pix         [FramePixels]uint8
}

// FrameSeq is the ordered frame sample for one video. Timestamps are
// strictly increasing.
type FrameSeq []Frame

// Validate checks the sequence against the sampling contract: exactly n
// frames with strictly increasing timestamps.
func (s FrameSeq) Validate(n int) error {
	if len(s) != n {
		return fmt.Errorf("frame sequence has %d frames, want %d", len(s), n)
	}
	for i := 1; i < len(s); i++ {
		if s[i].TimestampMS <= s[i-1].TimestampMS {
			return fmt.Errorf("frame %d timestamp %dms not after frame %d timestamp %dms",
				i, s[i].TimestampMS, i-1, s[i-1].TimestampMS)
		}
	}
	return nil
}

// Rect is a pixel rectangle in source coordinates, used for crop regions.
// A zero W or H means no crop was applied.
type Rect struct {
	X int `json:"x" cbor:"1,keyasint"`
	Y int `json:"y" cbor:"2,keyasint"`
	W int `json:"w" cbor:"3,keyasint"`
	H int `json:"h" cbor:"4,keyasint"`
}

// FullRect returns the rectangle covering a whole w x h frame.
func FullRect(w, h int) Rect {
	return Rect{X: 0, Y: 0, W: w, H: h}
}

// IsZero reports whether the rectangle is unset.
func (r Rect) IsZero() bool {
	return r.W == 0 || r.H == 0
}
