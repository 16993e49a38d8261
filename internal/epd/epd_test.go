package epd

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusdisplay/internal/config"
)

type write struct {
	cmd  bool
	data []byte
}

type fakeBus struct {
	writes  []write
	resets  int
	busyFor int
	closed  bool
}

func (f *fakeBus) command(reg byte) error {
	f.writes = append(f.writes, write{cmd: true, data: []byte{reg}})
	return nil
}

func (f *fakeBus) data(p ...byte) error {
	f.writes = append(f.writes, write{data: append([]byte(nil), p...)})
	return nil
}

func (f *fakeBus) reset() { f.resets++ }

func (f *fakeBus) ready() bool {
	if f.busyFor > 0 {
		f.busyFor--
		return false
	}
	return true
}

func (f *fakeBus) close() error { f.closed = true; return nil }

// commands lists command bytes except status polls.
func (f *fakeBus) commands() []byte {
	var out []byte
	for _, w := range f.writes {
		if w.cmd && w.data[0] != cmdGetStatus {
			out = append(out, w.data[0])
		}
	}
	return out
}

func (f *fakeBus) dataAfter(reg byte) []byte {
	for i, w := range f.writes {
		if w.cmd && w.data[0] == reg && i+1 < len(f.writes) && !f.writes[i+1].cmd {
			return f.writes[i+1].data
		}
	}
	return nil
}

func frame() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 800, 480))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.SetGray(0, 0, color.Gray{})
	return img
}

func TestWaveshare75FullThenPartial(t *testing.T) {
	fb := &fakeBus{}
	w := newWaveshare75(fb)
	w.pollEvery = time.Millisecond

	require.NoError(t, w.Display(context.Background(), frame(), true))
	assert.Equal(t, 1, fb.resets)
	assert.Equal(t, []byte{
		cmdPowerSetting, cmdBoosterSoftStart, cmdPowerOn,
		cmdPanelSetting, cmdResolution, cmdDualSPI, cmdVCOMInterval, cmdTCON,
		cmdOldData, cmdNewData, cmdRefresh,
	}, fb.commands())
	old := fb.dataAfter(cmdOldData)
	require.Len(t, old, 48000)
	assert.Equal(t, byte(0x7F), old[0])
	assert.Equal(t, byte(0x80), fb.dataAfter(cmdNewData)[0], "new data is inverted")

	fb.writes = nil
	require.NoError(t, w.Display(context.Background(), frame(), true))
	assert.Equal(t, 1, fb.resets, "no re-init while awake")

	fb.writes = nil
	require.NoError(t, w.Display(context.Background(), frame(), false))
	assert.Equal(t, 2, fb.resets)
	assert.Equal(t, []byte{
		cmdPanelSetting, cmdPowerOn, cmdCascade, cmdForceTemp,
		cmdVCOMInterval, cmdPartialIn, cmdPartialWindow, cmdNewData, cmdPartialOut, cmdRefresh,
	}, fb.commands())
	assert.Equal(t, []byte{0, 0, 0x03, 0x1F, 0, 0, 0x01, 0xDF, 0x01}, fb.dataAfter(cmdPartialWindow))
}

func TestWaveshare75SleepAndWake(t *testing.T) {
	fb := &fakeBus{}
	w := newWaveshare75(fb)
	w.pollEvery = time.Millisecond

	require.NoError(t, w.Sleep(), "sleeping before first use is a no-op")
	assert.Empty(t, fb.writes)

	require.NoError(t, w.Display(context.Background(), frame(), true))
	fb.writes = nil
	require.NoError(t, w.Sleep())
	assert.Equal(t, []byte{cmdVCOMInterval, cmdPowerOff, cmdDeepSleep}, fb.commands())
	assert.Equal(t, []byte{0xA5}, fb.dataAfter(cmdDeepSleep))

	require.NoError(t, w.Display(context.Background(), frame(), true))
	assert.Equal(t, 2, fb.resets, "woken by reset")

	require.NoError(t, w.Close())
	assert.True(t, fb.closed)
}

func TestWaveshare75BusyTimeout(t *testing.T) {
	fb := &fakeBus{busyFor: 1 << 30}
	w := newWaveshare75(fb)
	w.pollEvery = time.Millisecond
	w.BusyTimeout = 5 * time.Millisecond

	err := w.Display(context.Background(), frame(), true)
	require.ErrorIs(t, err, ErrBusyTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.BusyTimeout = time.Minute
	err = w.Display(ctx, frame(), true)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaveshare75RejectsWrongSize(t *testing.T) {
	w := newWaveshare75(&fakeBus{})
	err := w.Display(context.Background(), image.NewGray(image.Rect(0, 0, 100, 100)), true)
	assert.Error(t, err)
}

func TestPNGPanel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "preview.png")
	p := NewPNG(path, 800, 480)
	assert.Equal(t, image.Rect(0, 0, 800, 480), p.Bounds())

	require.NoError(t, p.Display(context.Background(), frame(), true))
	require.NoError(t, p.Display(context.Background(), frame(), false))
	full, partial := p.Counts()
	assert.Equal(t, 1, full)
	assert.Equal(t, 1, partial)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, p.Last(), raw)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Zero(t, r)
}

func TestOpen(t *testing.T) {
	p, err := Open(config.DisplayConfig{Panel: PanelPNG, Width: 250, Height: 122})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 250, 122), p.Bounds())

	_, err = Open(config.DisplayConfig{Panel: "crt"})
	assert.Error(t, err)
}
