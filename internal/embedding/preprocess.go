package embedding

import (
	"fmt"

	"github.com/hyperjump/niteru/internal/raster"
)

// Layout is the tensor memory order a model expects.
type Layout string

const (
	LayoutNCHW Layout = "nchw"
	LayoutNHWC Layout = "nhwc"
)

// ParseLayout validates a layout name; empty selects NCHW.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "", LayoutNCHW:
		return LayoutNCHW, nil
	case LayoutNHWC:
		return LayoutNHWC, nil
	}
	return "", fmt.Errorf("unknown tensor layout %q", s)
}

// FillTensor writes buf's RGB channels into dst scaled to [-1,1] as
// (p-127.5)/127.5. dst must hold 3*width*height values.
func FillTensor(dst []float32, buf *raster.PixelBuffer, layout Layout) error {
	n := buf.Len()
	if len(dst) != 3*n {
		return fmt.Errorf("tensor length %d, want %d", len(dst), 3*n)
	}
	for i := 0; i < n; i++ {
		r, g, b := buf.RGBAt(i)
		rf := (float32(r) - 127.5) / 127.5
		gf := (float32(g) - 127.5) / 127.5
		bf := (float32(b) - 127.5) / 127.5
		if layout == LayoutNHWC {
			dst[3*i], dst[3*i+1], dst[3*i+2] = rf, gf, bf
			continue
		}
		dst[i], dst[n+i], dst[2*n+i] = rf, gf, bf
	}
	return nil
}
