package vhash

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"lukechampine.com/blake3"
)

// ParamsDigestSize is the byte length of the hashing-parameter digest.
const ParamsDigestSize = 16

// Params are the knobs that influence hash bits. Two VideoHashes are only
// comparable (and cache entries only reusable) when their params digests
// match.
type Params struct {
	FrameCount     int     `cbor:"1,keyasint"`
	SkipMS         int64   `cbor:"2,keyasint"`
	WindowMS       int64   `cbor:"3,keyasint"`
	CropMode       string  `cbor:"4,keyasint"`
	CropThreshold  uint8   `cbor:"5,keyasint"`
	SpatialWeight  float64 `cbor:"6,keyasint"`
	TemporalWeight float64 `cbor:"7,keyasint"`
}

// DefaultParams returns the documented defaults: ten frames over the first
// thirty seconds, crop off, 0.7/0.3 spatial/temporal weighting.
func DefaultParams() Params {
	return Params{
		FrameCount:     DefaultFrameCount,
		SkipMS:         0,
		WindowMS:       30_000,
		CropMode:       "off",
		CropThreshold:  24,
		SpatialWeight:  0.7,
		TemporalWeight: 0.3,
	}
}

// Validate rejects parameter combinations the sampler cannot honor.
func (p Params) Validate() error {
	if p.FrameCount < 2 {
		return fmt.Errorf("frame count %d too small, need at least 2", p.FrameCount)
	}
	if p.SkipMS < 0 {
		return fmt.Errorf("negative skip %dms", p.SkipMS)
	}
	if p.WindowMS <= 0 {
		return fmt.Errorf("sampling window %dms must be positive", p.WindowMS)
	}
	if p.SpatialWeight < 0 || p.TemporalWeight < 0 {
		return fmt.Errorf("negative distance weights %v/%v", p.SpatialWeight, p.TemporalWeight)
	}
	return nil
}

// canonicalEnc is the deterministic CBOR mode shared by the params digest
// and the .vhash body codec.
var canonicalEnc = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Digest returns the 16-byte blake3 digest of the canonical CBOR encoding
// of the parameters. It keys cache entries alongside the file digest.
func (p Params) Digest() [ParamsDigestSize]byte {
	enc, err := canonicalEnc.Marshal(p)
	if err != nil {
		panic(err)
	}

	var out [ParamsDigestSize]byte
	h := blake3.New(ParamsDigestSize, nil)
	h.Write(enc)
	copy(out[:], h.Sum(nil))
	return out
}
