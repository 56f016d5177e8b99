package vhash

import (
	"fmt"
	"math"
	"math/bits"
)

// DistanceInf marks a pair rejected by the duration gate (or otherwise
// incomparable). Any finite combined distance compares less than it.
var DistanceInf = math.Inf(1)

// VideoHash is the immutable composite fingerprint for one video file.
type VideoHash struct {
	Path         string                 `cbor:"1,keyasint" json:"path"`
	DurationMS   int64                  `cbor:"2,keyasint" json:"duration_ms"`
	Spatial      []uint64               `cbor:"3,keyasint" json:"spatial"`
	Temporal     uint64                 `cbor:"4,keyasint" json:"temporal"`
	Crop         Rect                   `cbor:"5,keyasint" json:"crop"`
	ParamsDigest [ParamsDigestSize]byte `cbor:"6,keyasint" json:"-"`
}

// New assembles a VideoHash from a validated frame sequence.
func New(path string, durationMS int64, seq FrameSeq, crop Rect, params Params) (*VideoHash, error) {
	if durationMS <= 0 {
		return nil, fmt.Errorf("non-positive duration %dms for %s", durationMS, path)
	}
	if err := seq.Validate(params.FrameCount); err != nil {
		return nil, fmt.Errorf("frame sequence for %s: %w", path, err)
	}

	spatial := make([]uint64, len(seq))
	for i := range seq {
		spatial[i] = SpatialHash(&seq[i])
	}

	return &VideoHash{
		Path:         path,
		DurationMS:   durationMS,
		Spatial:      spatial,
		Temporal:     TemporalHash(spatial),
		Crop:         crop,
		ParamsDigest: params.Digest(),
	}, nil
}

// DistanceOpts tune the combined distance. Zero weights fall back to the
// documented 0.7/0.3 split.
type DistanceOpts struct {
	DurationTolerance float64
	SpatialWeight     float64
	TemporalWeight    float64
}

// DefaultDistanceOpts returns the documented distance defaults.
func DefaultDistanceOpts() DistanceOpts {
	return DistanceOpts{
		DurationTolerance: 0.05,
		SpatialWeight:     0.7,
		TemporalWeight:    0.3,
	}
}

// Distance returns the combined perceptual distance in [0,1], or
// DistanceInf when the pair fails the duration gate or the hashes are not
// comparable (different params or frame counts).
func Distance(a, b *VideoHash, opts DistanceOpts) float64 {
	if opts.SpatialWeight == 0 && opts.TemporalWeight == 0 {
		opts.SpatialWeight = 0.7
		opts.TemporalWeight = 0.3
	}

	if len(a.Spatial) != len(b.Spatial) || len(a.Spatial) == 0 {
		return DistanceInf
	}
	if a.ParamsDigest != b.ParamsDigest {
		return DistanceInf
	}

	longer := a.DurationMS
	if b.DurationMS > longer {
		longer = b.DurationMS
	}
	if longer <= 0 {
		return DistanceInf
	}
	diff := a.DurationMS - b.DurationMS
	if diff < 0 {
		diff = -diff
	}
	if float64(diff)/float64(longer) > opts.DurationTolerance {
		return DistanceInf
	}

	var spatialBits int
	for i := range a.Spatial {
		spatialBits += bits.OnesCount64(a.Spatial[i] ^ b.Spatial[i])
	}
	dSpatial := float64(spatialBits) / float64(len(a.Spatial)*64)
	dTemporal := float64(bits.OnesCount64(a.Temporal^b.Temporal)) / 64

	d := opts.SpatialWeight*dSpatial + opts.TemporalWeight*dTemporal
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}
