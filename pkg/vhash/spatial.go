package vhash

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// hashBlock is the edge of the retained low-frequency DCT block. The 8x8
// block minus the DC coefficient yields the 63 values the hash thresholds.
const hashBlock = 8

// cosTable[u][x] = cos(pi * (2x+1) * u / (2 * FrameEdge)), precomputed so
// every hash uses the exact same coefficients in the exact same order.
var cosTable = func() [hashBlock][FrameEdge]float64 {
	var t [hashBlock][FrameEdge]float64
	for u := 0; u < hashBlock; u++ {
		for x := 0; x < FrameEdge; x++ {
			t[u][x] = math.Cos(math.Pi * float64(2*x+1) * float64(u) / float64(2*FrameEdge))
		}
	}
	return t
}()

// SpatialHash reduces one canonical frame to a 64-bit perceptual hash.
// It computes the 2-D DCT-II of the 32x32 luma plane, keeps the top-left
// 8x8 low-frequency block, and sets bit i (row-major over the block) when
// the coefficient exceeds the median of the 63 non-DC coefficients. The DC
// slot (bit 0) is always 0.
func SpatialHash(f *Frame) uint64 {
	coeffs := dctBlock(&f.Pix)

	ac := make([]float64, 0, hashBlock*hashBlock-1)
	for i := 1; i < hashBlock*hashBlock; i++ {
		ac = append(ac, coeffs[i])
	}
	sort.Float64s(ac)
	median := stat.Quantile(0.5, stat.Empirical, ac, nil)

	var hash uint64
	for i := 1; i < hashBlock*hashBlock; i++ {
		if coeffs[i] > median {
			hash |= 1 << uint(i)
		}
	}
	return hash
}

// dctBlock computes the top-left 8x8 block of the 2-D DCT-II of a 32x32
// plane. The transform is separable: rows first, then columns, with fixed
// iteration order so the result is bit-identical everywhere. The plane is
// mean-centred first: only the DC term changes, and the AC coefficients of
// two planes that differ by a uniform offset come out bit-identical.
func dctBlock(pix *[FramePixels]uint8) [hashBlock * hashBlock]float64 {
	var total int
	for _, p := range pix {
		total += int(p)
	}
	mean := float64(total) / FramePixels

	// rows[v][y] = sum over x of (pix[y][x] - mean) * cos(u=v, x)
	var rows [hashBlock][FrameEdge]float64
	for v := 0; v < hashBlock; v++ {
		for y := 0; y < FrameEdge; y++ {
			var sum float64
			row := pix[y*FrameEdge : (y+1)*FrameEdge]
			for x := 0; x < FrameEdge; x++ {
				sum += (float64(row[x]) - mean) * cosTable[v][x]
			}
			rows[v][y] = sum
		}
	}

	var out [hashBlock * hashBlock]float64
	for u := 0; u < hashBlock; u++ {
		for v := 0; v < hashBlock; v++ {
			var sum float64
			for y := 0; y < FrameEdge; y++ {
				sum += rows[v][y] * cosTable[u][y]
			}
			out[u*hashBlock+v] = sum
		}
	}
	return out
}
