package epd

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"

	"focusdisplay/internal/config"
	"focusdisplay/internal/convert"
)

// PNG is a panel that writes each frame to a file, thresholded the way the
// real panel would show it.
type PNG struct {
	path   string
	bounds image.Rectangle

	mu       sync.Mutex
	last     []byte
	fulls    int
	partials int
}

// NewPNG writes frames of w x h to path. An empty path keeps frames in
// memory only.
func NewPNG(path string, w, h int) *PNG {
	return &PNG{path: path, bounds: image.Rect(0, 0, w, h)}
}

func (p *PNG) Bounds() image.Rectangle { return p.bounds }

func (p *PNG) Display(_ context.Context, img image.Image, full bool) error {
	gray := convert.Gray(img)
	mono := image.NewGray(gray.Bounds())
	for i, v := range gray.Pix {
		if v >= convert.Threshold {
			mono.Pix[i] = 0xFF
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, mono); err != nil {
		return err
	}
	if p.path != "" {
		if err := config.WriteFileAtomic(p.path, buf.Bytes(), 0o644); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = buf.Bytes()
	if full {
		p.fulls++
	} else {
		p.partials++
	}
	return nil
}

// Last returns the most recent frame as PNG bytes.
func (p *PNG) Last() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Counts returns how many full and partial updates were pushed.
func (p *PNG) Counts() (full, partial int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fulls, p.partials
}

func (p *PNG) Sleep() error { return nil }
func (p *PNG) Close() error { return nil }
