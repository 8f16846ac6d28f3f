package raster

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ResizePolicy selects how a source is mapped onto a square target.
type ResizePolicy string

const (
	// ResizeCrop takes the centered square of the source and scales it.
	ResizeCrop ResizePolicy = "crop"
	// ResizeFit scales the whole source preserving aspect ratio and pads with white.
	ResizeFit ResizePolicy = "fit"
)

// ParseResizePolicy validates a policy name.
func ParseResizePolicy(s string) (ResizePolicy, error) {
	switch ResizePolicy(s) {
	case ResizeCrop, ResizeFit:
		return ResizePolicy(s), nil
	}
	return "", fmt.Errorf("unknown resize policy %q", s)
}

// Sample renders img into a size×size buffer. Transparent regions are
// flattened onto white so identical inputs always produce identical buffers.
func Sample(img image.Image, size int, policy ResizePolicy) (*PixelBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid sample size %d", size)
	}
	src := flatten(img)
	sb := src.Bounds()
	if sb.Dx() <= 0 || sb.Dy() <= 0 {
		return nil, &DecodeError{Err: fmt.Errorf("empty image")}
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	switch policy {
	case ResizeCrop:
		side := min(sb.Dx(), sb.Dy())
		x0 := sb.Min.X + (sb.Dx()-side)/2
		y0 := sb.Min.Y + (sb.Dy()-side)/2
		crop := image.Rect(x0, y0, x0+side, y0+side)
		if side == size {
			draw.Copy(dst, image.Point{}, src, crop, draw.Src, nil)
		} else {
			draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
		}
	case ResizeFit:
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		w, h := fitDims(sb.Dx(), sb.Dy(), size)
		ox, oy := (size-w)/2, (size-h)/2
		target := image.Rect(ox, oy, ox+w, oy+h)
		if w == sb.Dx() && h == sb.Dy() {
			draw.Copy(dst, target.Min, src, sb, draw.Src, nil)
		} else {
			draw.CatmullRom.Scale(dst, target, src, sb, draw.Src, nil)
		}
	default:
		return nil, fmt.Errorf("unknown resize policy %q", policy)
	}
	return &PixelBuffer{width: size, height: size, pix: dst.Pix}, nil
}

// SampleAll renders img once per requested size.
func SampleAll(img image.Image, sizes []int, policy ResizePolicy) (map[int]*PixelBuffer, error) {
	out := make(map[int]*PixelBuffer, len(sizes))
	for _, s := range sizes {
		if _, ok := out[s]; ok {
			continue
		}
		buf, err := Sample(img, s, policy)
		if err != nil {
			return nil, err
		}
		out[s] = buf
	}
	return out, nil
}

func fitDims(w, h, size int) (int, int) {
	if w >= h {
		nh := (h*size + w/2) / w
		return size, max(nh, 1)
	}
	nw := (w*size + h/2) / h
	return max(nw, 1), size
}

// flatten composites img over an opaque white background.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, b, img, b.Min, draw.Over)
	return out
}
