// Package render paints DisplayState frames and pushes them to a panel.
package render

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"strconv"
	"strings"

	"focusdisplay/internal/config"
	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/model"
)

// Renderer shows one frame per cycle.
type Renderer interface {
	// Render paints ds. The panel update is full when ds.ForceFull is set or
	// too many partial updates have accumulated.
	Render(ctx context.Context, ds model.DisplayState) error
	// RenderError replaces the screen with an error message, always as a
	// full update.
	RenderError(ctx context.Context, msg string) error
}

// Sink receives every frame pushed to the panel as PNG.
type Sink interface {
	SetPreview(png []byte)
}

// Counter persists the number of partial updates since the last full one.
type Counter interface {
	Load() int
	Store(n int)
}

// MemCounter keeps the count for the life of the process.
type MemCounter struct{ n int }

func (m *MemCounter) Load() int   { return m.n }
func (m *MemCounter) Store(n int) { m.n = n }

// FileCounter keeps the count in a file so it survives power-off.
type FileCounter struct{ Path string }

func (f FileCounter) Load() int {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (f FileCounter) Store(n int) {
	if err := config.WriteFileAtomic(f.Path, []byte(strconv.Itoa(n)), 0o600); err != nil {
		appLog.Warn("partial counter not saved", "path", f.Path, "err", err)
	}
}

// policy decides between full and partial panel updates.
type policy struct {
	every   int
	counter Counter
}

func newPolicy(every int, c Counter) policy {
	if every <= 0 {
		every = 30
	}
	if c == nil {
		c = &MemCounter{}
	}
	return policy{every: every, counter: c}
}

// next reports whether the coming update must be full and records it.
func (p policy) next(force bool) bool {
	n := p.counter.Load()
	if force || n >= p.every {
		p.counter.Store(0)
		return true
	}
	p.counter.Store(n + 1)
	return false
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		appLog.Warn("preview encode failed", "err", err)
		return nil
	}
	return buf.Bytes()
}
