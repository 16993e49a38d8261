package epd

import (
	"context"
	"fmt"
	"image"
	"time"

	"focusdisplay/internal/convert"
	appLog "focusdisplay/internal/log"
)

// Geometry75 is the native frame of the 7.5" V2 panel.
var Geometry75 = convert.Geometry{Width: 800, Height: 480}

// Controller registers used below.
const (
	cmdPanelSetting     = 0x00
	cmdPowerSetting     = 0x01
	cmdPowerOff         = 0x02
	cmdPowerOn          = 0x04
	cmdBoosterSoftStart = 0x06
	cmdDeepSleep        = 0x07
	cmdOldData          = 0x10
	cmdRefresh          = 0x12
	cmdNewData          = 0x13
	cmdDualSPI          = 0x15
	cmdVCOMInterval     = 0x50
	cmdTCON             = 0x60
	cmdResolution       = 0x61
	cmdGetStatus        = 0x71
	cmdPartialWindow    = 0x90
	cmdPartialIn        = 0x91
	cmdPartialOut       = 0x92
	cmdCascade          = 0xE0
	cmdForceTemp        = 0xE5
)

type initMode int

const (
	modeAsleep initMode = iota
	modeFull
	modePartial
)

// Waveshare75 drives the Waveshare 7.5" V2 black/white panel.
type Waveshare75 struct {
	bus  bus
	mode initMode
	// BusyTimeout bounds each wait for the controller.
	BusyTimeout time.Duration
	pollEvery   time.Duration
}

// OpenWaveshare75 wires the HAT on the given SPI port ("" for the default).
func OpenWaveshare75(port string) (*Waveshare75, error) {
	d, err := openSPIDev(port)
	if err != nil {
		return nil, err
	}
	return newWaveshare75(d), nil
}

func newWaveshare75(b bus) *Waveshare75 {
	return &Waveshare75{bus: b, BusyTimeout: 30 * time.Second, pollEvery: 10 * time.Millisecond}
}

func (w *Waveshare75) Bounds() image.Rectangle {
	return image.Rect(0, 0, Geometry75.Width, Geometry75.Height)
}

func (w *Waveshare75) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(w.BusyTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.bus.command(cmdGetStatus); err != nil {
			return err
		}
		if w.bus.ready() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBusyTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.pollEvery):
		}
	}
}

// send writes a command followed by its parameters.
func (w *Waveshare75) send(reg byte, params ...byte) error {
	if err := w.bus.command(reg); err != nil {
		return err
	}
	if len(params) == 0 {
		return nil
	}
	return w.bus.data(params...)
}

// step is one command with its parameters.
type step struct {
	reg    byte
	params []byte
}

func (w *Waveshare75) run(steps []step) error {
	for _, s := range steps {
		if err := w.send(s.reg, s.params...); err != nil {
			return err
		}
	}
	return nil
}

func (w *Waveshare75) initFull(ctx context.Context) error {
	w.bus.reset()
	if err := w.run([]step{
		{cmdPowerSetting, []byte{0x07, 0x07, 0x3F, 0x3F}},
		{cmdBoosterSoftStart, []byte{0x17, 0x17, 0x28, 0x17}},
		{cmdPowerOn, nil},
	}); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := w.waitReady(ctx); err != nil {
		return err
	}
	// 0x0320 x 0x01E0 is 800x480.
	if err := w.run([]step{
		{cmdPanelSetting, []byte{0x1F}},
		{cmdResolution, []byte{0x03, 0x20, 0x01, 0xE0}},
		{cmdDualSPI, []byte{0x00}},
		{cmdVCOMInterval, []byte{0x10, 0x07}},
		{cmdTCON, []byte{0x22}},
	}); err != nil {
		return err
	}
	w.mode = modeFull
	return nil
}

func (w *Waveshare75) initPartial(ctx context.Context) error {
	w.bus.reset()
	if err := w.send(cmdPanelSetting, 0x1F); err != nil {
		return err
	}
	if err := w.send(cmdPowerOn); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := w.waitReady(ctx); err != nil {
		return err
	}
	if err := w.send(cmdCascade, 0x02); err != nil {
		return err
	}
	if err := w.send(cmdForceTemp, 0x6E); err != nil {
		return err
	}
	w.mode = modePartial
	return nil
}

// Display pushes img, re-initialising the controller when it slept or the
// update kind changed.
func (w *Waveshare75) Display(ctx context.Context, img image.Image, full bool) error {
	plane, err := convert.PackMono(img, Geometry75)
	if err != nil {
		return err
	}
	inverted := make([]byte, len(plane))
	for i, b := range plane {
		inverted[i] = ^b
	}

	if full {
		if w.mode != modeFull {
			if err := w.initFull(ctx); err != nil {
				return fmt.Errorf("epd: init: %w", err)
			}
		}
		if err := w.send(cmdOldData, plane...); err != nil {
			return err
		}
		if err := w.send(cmdNewData, inverted...); err != nil {
			return err
		}
	} else {
		if w.mode != modePartial {
			if err := w.initPartial(ctx); err != nil {
				return fmt.Errorf("epd: init partial: %w", err)
			}
		}
		xe, ye := Geometry75.Width-1, Geometry75.Height-1
		if err := w.send(cmdVCOMInterval, 0xA9, 0x07); err != nil {
			return err
		}
		if err := w.send(cmdPartialIn); err != nil {
			return err
		}
		if err := w.send(cmdPartialWindow,
			0, 0, byte(xe>>8), byte(xe),
			0, 0, byte(ye>>8), byte(ye),
			0x01); err != nil {
			return err
		}
		if err := w.send(cmdNewData, inverted...); err != nil {
			return err
		}
		if err := w.send(cmdPartialOut); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := w.send(cmdRefresh); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := w.waitReady(ctx); err != nil {
		return err
	}
	appLog.Debug("epd refreshed", "full", full, "took", time.Since(start))
	return nil
}

func (w *Waveshare75) Sleep() error {
	if w.mode == modeAsleep {
		return nil
	}
	if err := w.send(cmdVCOMInterval, 0xF7); err != nil {
		return err
	}
	if err := w.send(cmdPowerOff); err != nil {
		return err
	}
	if err := w.waitReady(context.Background()); err != nil {
		return err
	}
	if err := w.send(cmdDeepSleep, 0xA5); err != nil {
		return err
	}
	w.mode = modeAsleep
	return nil
}

func (w *Waveshare75) Close() error {
	return w.bus.close()
}
