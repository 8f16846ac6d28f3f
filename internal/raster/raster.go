// Package raster decodes source images and resamples them into fixed-size
// RGBA pixel buffers consumed by the descriptor extractors.
package raster

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// PixelBuffer is an RGBA raster with 4 bytes per pixel in row-major order.
// A buffer is never mutated after creation.
type PixelBuffer struct {
	width  int
	height int
	pix    []byte
}

// NewPixelBuffer copies pix into a new buffer. len(pix) must equal width*height*4.
func NewPixelBuffer(width, height int, pix []byte) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid buffer size %dx%d", width, height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("pixel length %d does not match %dx%dx4", len(pix), width, height)
	}
	cp := make([]byte, len(pix))
	copy(cp, pix)
	return &PixelBuffer{width: width, height: height, pix: cp}, nil
}

// Width returns the buffer width in pixels.
func (b *PixelBuffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *PixelBuffer) Height() int { return b.height }

// Len returns the number of pixels.
func (b *PixelBuffer) Len() int { return b.width * b.height }

// RGBA returns the channels of the pixel at (x, y).
func (b *PixelBuffer) RGBA(x, y int) (r, g, bl, a uint8) {
	i := (y*b.width + x) * 4
	return b.pix[i], b.pix[i+1], b.pix[i+2], b.pix[i+3]
}

// RGBAt returns the color channels of the i-th pixel in row-major order.
func (b *PixelBuffer) RGBAt(i int) (r, g, bl uint8) {
	o := i * 4
	return b.pix[o], b.pix[o+1], b.pix[o+2]
}

// Bytes returns a copy of the raw RGBA bytes.
func (b *PixelBuffer) Bytes() []byte {
	cp := make([]byte, len(b.pix))
	copy(cp, b.pix)
	return cp
}

// Hash returns a hex SHA-256 of the dimensions and pixel data.
func (b *PixelBuffer) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%dx%d:", b.width, b.height)
	h.Write(b.pix)
	return hex.EncodeToString(h.Sum(nil))
}
