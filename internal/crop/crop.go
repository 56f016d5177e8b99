// Package crop detects black letterbox/pillarbox bars so a cropped copy and
// its letterboxed sibling hash identically.
package crop

import (
	"fmt"

	"vidsift/pkg/vhash"
)

// Mode selects the detection behavior.
type Mode string

const (
	// ModeOff disables detection; the full frame is always used.
	ModeOff Mode = "off"
	// ModeLetterbox strips contiguous black borders on all four edges.
	ModeLetterbox Mode = "letterbox"
)

// DefaultThreshold is the luma mean at or below which a row or column
// counts as black.
const DefaultThreshold = 24

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOff, ModeLetterbox:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown crop mode %q", s)
}

// Detector computes the non-black region common to a set of sample frames.
type Detector struct {
	Mode      Mode
	Threshold uint8
}

// NewDetector returns a detector; a zero threshold falls back to the
// default.
func NewDetector(mode Mode, threshold uint8) *Detector {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Detector{Mode: mode, Threshold: threshold}
}

// Detect returns the crop rectangle for frames of width x height grayscale
// pixels. The result is the pointwise intersection of each frame's largest
// contiguous non-black window; if that intersection covers less than half
// of either dimension (dark scenes look like bars), the full frame wins.
func (d *Detector) Detect(frames [][]byte, width, height int) vhash.Rect {
	full := vhash.FullRect(width, height)
	if d.Mode != ModeLetterbox || len(frames) == 0 {
		return full
	}

	x0, y0 := 0, 0
	x1, y1 := width, height
	for _, pix := range frames {
		if len(pix) != width*height {
			return full
		}
		fx0, fx1 := d.span(colMeans(pix, width, height))
		fy0, fy1 := d.span(rowMeans(pix, width, height))
		if fx0 > x0 {
			x0 = fx0
		}
		if fy0 > y0 {
			y0 = fy0
		}
		if fx1 < x1 {
			x1 = fx1
		}
		if fy1 < y1 {
			y1 = fy1
		}
	}

	w := x1 - x0
	h := y1 - y0
	if w*2 < width || h*2 < height {
		return full
	}
	return vhash.Rect{X: x0, Y: y0, W: w, H: h}
}

// span returns the half-open bounds of the longest contiguous run of
// non-black lines; a fully black frame yields an empty span.
func (d *Detector) span(means []float64) (int, int) {
	bestStart, bestEnd := 0, 0
	runStart := -1
	for i, m := range means {
		if m > float64(d.Threshold) {
			if runStart < 0 {
				runStart = i
			}
			if i+1-runStart > bestEnd-bestStart {
				bestStart, bestEnd = runStart, i+1
			}
		} else {
			runStart = -1
		}
	}
	return bestStart, bestEnd
}

func rowMeans(pix []byte, width, height int) []float64 {
	means := make([]float64, height)
	for y := 0; y < height; y++ {
		var sum int
		row := pix[y*width : (y+1)*width]
		for _, p := range row {
			sum += int(p)
		}
		means[y] = float64(sum) / float64(width)
	}
	return means
}

func colMeans(pix []byte, width, height int) []float64 {
	sums := make([]int, width)
	for y := 0; y < height; y++ {
		row := pix[y*width : (y+1)*width]
		for x, p := range row {
			sums[x] += int(p)
		}
	}
	means := make([]float64, width)
	for x, s := range sums {
		means[x] = float64(s) / float64(height)
	}
	return means
}
