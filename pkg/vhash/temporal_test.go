package vhash

import "testing"

func TestTemporalHash_StaticSequence(t *testing.T) {
	// No bit ever flips between identical hashes.
	spatial := []uint64{0xDEADBEEF, 0xDEADBEEF, 0xDEADBEEF, 0xDEADBEEF}
	if got := TemporalHash(spatial); got != 0 {
		t.Fatalf("TemporalHash(static) = 0x%016x, want 0", got)
	}
}

func TestTemporalHash_AlternatingBit(t *testing.T) {
	// Bit 0 flips on every one of the N-1 transitions; every flip count
	// reaches the majority, so only bit 0 is set.
	spatial := []uint64{0, 1, 0, 1, 0}
	if got := TemporalHash(spatial); got != 1 {
		t.Fatalf("TemporalHash(alternating) = 0x%016x, want 0x1", got)
	}
}

func TestTemporalHash_MajorityThreshold(t *testing.T) {
	tests := []struct {
		name    string
		spatial []uint64
		want    uint64
	}{
		{
			// 3 pairs, majority = 2. Bit 4 flips twice (set), bit 1
			// flips once (clear).
			name:    "mixed flip counts",
			spatial: []uint64{0x10, 0x00, 0x10, 0x12},
			want:    0x10,
		},
		{
			// 2 pairs, majority = 1: a single flip is enough.
			name:    "single flip short sequence",
			spatial: []uint64{0x0, 0x8, 0x8},
			want:    0x8,
		},
		{
			name:    "too short",
			spatial: []uint64{0xFF},
			want:    0,
		},
		{
			name:    "empty",
			spatial: nil,
			want:    0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TemporalHash(tc.spatial); got != tc.want {
				t.Fatalf("TemporalHash(%v) = 0x%016x, want 0x%016x", tc.spatial, got, tc.want)
			}
		})
	}
}

func TestTemporalHash_OrderSensitive(t *testing.T) {
	a := TemporalHash([]uint64{0x1, 0x3, 0x3, 0x3, 0x2})
	b := TemporalHash([]uint64{0x3, 0x1, 0x3, 0x2, 0x3})
	if a == b {
		t.Fatalf("reordered sequences produced identical temporal hash 0x%016x", a)
	}
}
