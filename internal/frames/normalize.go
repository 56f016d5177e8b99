package frames

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"vidsift/pkg/vhash"
)

// normalizeFrame converts one raw grayscale plane to the canonical 32x32
// frame. Oversized frames (a decoder backend that cannot scale) are
// bilinear-downsampled; undersized frames are rejected.
func normalizeFrame(pix []byte, width, height int) (*vhash.Frame, error) {
	if len(pix) != width*height {
		return nil, fmt.Errorf("frame is %d bytes, want %dx%d", len(pix), width, height)
	}
	if width < vhash.FrameEdge || height < vhash.FrameEdge {
		return nil, fmt.Errorf("frame %dx%d below canonical %dx%d", width, height, vhash.FrameEdge, vhash.FrameEdge)
	}

	frame := &vhash.Frame{}
	if width == vhash.FrameEdge && height == vhash.FrameEdge {
		copy(frame.Pix[:], pix)
		return frame, nil
	}

	src := &image.Gray{
		Pix:    pix,
		Stride: width,
		Rect:   image.Rect(0, 0, width, height),
	}
	dst := image.NewGray(image.Rect(0, 0, vhash.FrameEdge, vhash.FrameEdge))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	copy(frame.Pix[:], dst.Pix)
	return frame, nil
}
