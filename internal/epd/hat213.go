package epd

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/devices/v3/waveshare2in13v4"
	"periph.io/x/host/v3"

	"focusdisplay/internal/convert"
)

// Hat213 drives the 2.13" V4 HAT through the periph driver. The panel is
// mounted landscape, so frames are rotated onto its portrait memory.
type Hat213 struct {
	port   spi.PortCloser
	dev    *waveshare2in13v4.Dev
	asleep bool
}

// OpenHat213 initialises the HAT and clears it to white.
func OpenHat213(portName string) (*Hat213, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: periph host init failed: %w", err)
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("epd: failed to open SPI port: %w", err)
	}
	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.NewHat(port, &opts)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: 2in13v4: %w", err)
	}
	if err := dev.Init(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: 2in13v4 init: %w", err)
	}
	if err := dev.Clear(color.White); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: 2in13v4 clear: %w", err)
	}
	return &Hat213{port: port, dev: dev}, nil
}

func (h *Hat213) Bounds() image.Rectangle {
	b := h.dev.Bounds()
	return image.Rect(0, 0, b.Dy(), b.Dx())
}

// Display always performs a full update; the periph driver does not expose
// its partial mode.
func (h *Hat213) Display(_ context.Context, img image.Image, _ bool) error {
	if h.asleep {
		if err := h.dev.Init(); err != nil {
			return fmt.Errorf("epd: 2in13v4 wake: %w", err)
		}
		h.asleep = false
	}
	portrait := convert.Rotate90(convert.Gray(img))
	buf := image1bit.NewVerticalLSB(h.dev.Bounds())
	draw.Draw(buf, buf.Bounds(), portrait, image.Point{}, draw.Src)
	return h.dev.Draw(h.dev.Bounds(), buf, image.Point{})
}

func (h *Hat213) Sleep() error {
	if h.asleep {
		return nil
	}
	if err := h.dev.Sleep(); err != nil {
		return err
	}
	h.asleep = true
	return nil
}

func (h *Hat213) Close() error {
	_ = h.dev.Halt()
	return h.port.Close()
}
