// Package convert turns rendered frames into the packed 1bpp planes the
// e-ink controllers expect.
package convert

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Geometry describes one panel's native frame.
type Geometry struct {
	Width  int
	Height int
}

// Stride is the number of bytes per packed row.
func (g Geometry) Stride() int { return (g.Width + 7) / 8 }

// PlaneSize is the size of one packed plane in bytes.
func (g Geometry) PlaneSize() int { return g.Stride() * g.Height }

// Threshold is the luma below which a pixel is inked.
const Threshold = 128

// PackMono packs img into a 1bpp plane for g.
//
// Each row is MSB-first: byteIndex = y*stride + x>>3, mask = 0x80>>(x&7).
// The plane starts all white (1) and inked pixels clear their bit. A frame
// taller than the panel is center-cropped vertically; a narrower or shorter
// frame is an error.
func PackMono(img image.Image, g Geometry) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("convert: nil image")
	}
	b := img.Bounds()
	if b.Dx() != g.Width {
		return nil, fmt.Errorf("convert: expected width %d, got %d", g.Width, b.Dx())
	}
	if b.Dy() < g.Height {
		return nil, fmt.Errorf("convert: expected height >= %d, got %d", g.Height, b.Dy())
	}
	startY := b.Min.Y + (b.Dy()-g.Height)/2
	stride := g.Stride()

	plane := make([]byte, g.PlaneSize())
	for i := range plane {
		plane[i] = 0xFF
	}

	// Gray frames from the native painter skip the color model.
	if gray, ok := img.(*image.Gray); ok {
		for py := 0; py < g.Height; py++ {
			row := gray.Pix[(startY-b.Min.Y+py)*gray.Stride:]
			for px := 0; px < g.Width; px++ {
				if row[px] < Threshold {
					plane[py*stride+px>>3] &^= 0x80 >> (px & 7)
				}
			}
		}
		return plane, nil
	}

	for py := 0; py < g.Height; py++ {
		for px := 0; px < g.Width; px++ {
			if Inked(img.At(b.Min.X+px, startY+py)) {
				plane[py*stride+px>>3] &^= 0x80 >> (px & 7)
			}
		}
	}
	return plane, nil
}

// Inked reports whether c should be drawn black. Mostly transparent pixels
// count as paper.
func Inked(c color.Color) bool {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.A < 128 {
		return false
	}
	y := (299*int(n.R) + 587*int(n.G) + 114*int(n.B)) / 1000
	return y < Threshold
}

// Rotate90 returns src rotated clockwise, for panels mounted in portrait.
func Rotate90(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Pix[(x-b.Min.X)*dst.Stride+(b.Max.Y-1-y)] = src.Pix[(y-b.Min.Y)*src.Stride+(x-b.Min.X)]
		}
	}
	return dst
}

// Gray returns img as an *image.Gray, converting when needed.
func Gray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	draw.Draw(g, b, img, b.Min, draw.Src)
	return g
}
