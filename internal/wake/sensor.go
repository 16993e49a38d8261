package wake

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"focusdisplay/internal/config"
	appLog "focusdisplay/internal/log"
)

// Switch is the physical wake button.
type Switch interface {
	Pressed() bool
}

// GPIOButton reads an active-low push button on a GPIO line.
type GPIOButton struct {
	pin gpio.PinIn
}

// NewGPIOButton opens the named pin (e.g. "GPIO26") with a pull-up.
func NewGPIOButton(name string) (*GPIOButton, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("wake: periph host init failed: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("wake: gpio %s not found", name)
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("wake: gpio %s In failed: %w", name, err)
	}
	return &GPIOButton{pin: p}, nil
}

func (b *GPIOButton) Pressed() bool {
	return b.pin.Read() == gpio.Low
}

// markerRecord is what the low-power sleeper leaves behind before powering off.
type markerRecord struct {
	ArmedAt time.Time `json:"armed_at"`
	WakeAt  time.Time `json:"wake_at"`
}

// Marker is the file that tells the next boot it follows a deliberate sleep.
type Marker struct {
	Path string
}

// Arm records that the device is about to sleep until wakeAt.
func (m Marker) Arm(armedAt, wakeAt time.Time) error {
	data, err := json.Marshal(markerRecord{ArmedAt: armedAt.UTC(), WakeAt: wakeAt.UTC()})
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(m.Path, data, 0o600)
}

// Disarm removes the marker when the device did not go to sleep after all.
func (m Marker) Disarm() {
	if err := os.Remove(m.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("wake marker not removed", "path", m.Path, "err", err)
	}
}

// take reads and removes the marker. A missing or unreadable marker means
// the last shutdown was not a sleep.
func (m Marker) take() (markerRecord, bool) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			appLog.Warn("wake marker unreadable", "path", m.Path, "err", err)
		}
		return markerRecord{}, false
	}
	if err := os.Remove(m.Path); err != nil {
		appLog.Warn("wake marker not removed", "path", m.Path, "err", err)
	}
	var rec markerRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.WakeAt.IsZero() {
		appLog.Warn("wake marker corrupt", "path", m.Path)
		return markerRecord{}, false
	}
	return rec, true
}

// Sensor produces the raw reset/wake codes for a boot.
type Sensor interface {
	Sense(now time.Time) Reasons
}

// MarkerSensor derives codes on hosts without wake-cause registers: the
// marker file stands in for the deep-sleep reset code, and an early wake or
// a held button stands in for the external wake source.
type MarkerSensor struct {
	Marker    Marker
	Button    Switch // may be nil
	Tolerance time.Duration
}

func (s MarkerSensor) Sense(now time.Time) Reasons {
	rec, ok := s.Marker.take()
	if !ok {
		return Reasons{Reset: ResetPowerOn, Source: SourceUndefined}
	}
	if s.Button != nil && s.Button.Pressed() {
		return Reasons{Reset: ResetDeepSleep, Source: SourceExternal}
	}
	if now.Before(rec.WakeAt.Add(-s.Tolerance)) {
		// Powered up well before the alarm: only the button does that.
		return Reasons{Reset: ResetDeepSleep, Source: SourceExternal}
	}
	return Reasons{Reset: ResetDeepSleep, Source: SourceTimer}
}

// Fixed always reports the same codes; used for the in-process loop where
// the sleeper already knows why it returned.
type Fixed Reasons

func (f Fixed) Sense(time.Time) Reasons { return Reasons(f) }
