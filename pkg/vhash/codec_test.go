package vhash

import (
	"bytes"
	"errors"
	"testing"
)

func sampleKey() [KeySize]byte {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i * 7)
	}
	return key
}

func sampleVideoHash(t *testing.T) *VideoHash {
	t.Helper()

	params := DefaultParams()
	params.FrameCount = 4

	seq := make(FrameSeq, 4)
	for i := range seq {
		f := lcgFrame(uint32(i + 1))
		f.TimestampMS = int64(i) * 10_000
		seq[i] = *f
	}

	vh, err := New("sample.mp4", 95_000, seq, Rect{X: 0, Y: 58, W: 640, H: 364}, params)
	if err != nil {
		t.Fatalf("building sample VideoHash: %v", err)
	}
	return vh
}

func TestCodec_RoundTrip(t *testing.T) {
	vh := sampleVideoHash(t)
	key := sampleKey()

	var buf bytes.Buffer
	if err := Encode(&buf, key, vh); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	gotKey, got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotKey != key {
		t.Fatalf("Decode key = %x, want %x", gotKey, key)
	}
	if got.Path != vh.Path || got.DurationMS != vh.DurationMS ||
		got.Temporal != vh.Temporal || got.Crop != vh.Crop ||
		got.ParamsDigest != vh.ParamsDigest {
		t.Fatalf("Decode = %+v, want %+v", got, vh)
	}
	if len(got.Spatial) != len(vh.Spatial) {
		t.Fatalf("Decode spatial length %d, want %d", len(got.Spatial), len(vh.Spatial))
	}
	for i := range vh.Spatial {
		if got.Spatial[i] != vh.Spatial[i] {
			t.Fatalf("spatial[%d] = 0x%016x, want 0x%016x", i, got.Spatial[i], vh.Spatial[i])
		}
	}
}

func TestCodec_RejectsMalformedContainers(t *testing.T) {
	vh := sampleVideoHash(t)
	var good bytes.Buffer
	if err := Encode(&good, sampleKey(), vh); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	valid := good.Bytes()

	corrupt := func(mut func([]byte) []byte) []byte {
		cp := make([]byte, len(valid))
		copy(cp, valid)
		return mut(cp)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", valid[:10]},
		{"bad magic", corrupt(func(b []byte) []byte { b[0] = 'X'; return b })},
		{"unknown version", corrupt(func(b []byte) []byte { b[5] = 99; return b })},
		{"garbage body", corrupt(func(b []byte) []byte { return append(b[:38], 0xFF, 0x00, 0x13) })},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Decode(bytes.NewReader(tc.data))
			if !errors.Is(err, ErrBadContainer) {
				t.Fatalf("Decode(%s) error = %v, want ErrBadContainer", tc.name, err)
			}
		})
	}
}
