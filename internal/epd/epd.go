// Package epd drives the e-paper panels the display can be built with, plus
// a PNG panel for development machines without one.
package epd

import (
	"context"
	"errors"
	"fmt"
	"image"

	"focusdisplay/internal/config"
)

// Panel names accepted in display.panel.
const (
	PanelWaveshare75V2  = "waveshare_7in5_v2"
	PanelWaveshare213V4 = "waveshare_2in13_v4"
	PanelPNG            = "png"
)

// ErrBusyTimeout is returned when the controller never releases BUSY.
var ErrBusyTimeout = errors.New("epd: busy timeout")

// Panel is an e-paper surface.
type Panel interface {
	// Bounds is the landscape frame renderers should draw.
	Bounds() image.Rectangle
	// Display pushes img. full selects a flashing full update; otherwise the
	// panel may use a partial update when it supports one.
	Display(ctx context.Context, img image.Image, full bool) error
	// Sleep puts the controller into deep sleep. The next Display wakes it.
	Sleep() error
	Close() error
}

// Open returns the panel named in cfg.
func Open(cfg config.DisplayConfig) (Panel, error) {
	switch cfg.Panel {
	case PanelWaveshare75V2:
		return OpenWaveshare75(cfg.SPIPort)
	case PanelWaveshare213V4:
		return OpenHat213(cfg.SPIPort)
	case PanelPNG:
		return NewPNG(cfg.PreviewPath, cfg.Width, cfg.Height), nil
	default:
		return nil, fmt.Errorf("epd: unknown panel %q", cfg.Panel)
	}
}
