// Package battery reads the charge level shown in the header.
package battery

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"focusdisplay/internal/config"
)

// Unknown is the percent reported when no gauge could be read.
const Unknown = -1

// Status is one gauge reading.
type Status struct {
	// Percent is the battery level in 0–100%.
	Percent int `json:"percent"`
	// VoltageMv is the battery voltage in millivolts, if known.
	VoltageMv int `json:"voltage_mv"`
}

// Reader obtains battery information.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

// Mock reports a fixed level.
type Mock struct {
	Percent int
}

func (m Mock) Read(context.Context) (Status, error) {
	return Status{Percent: m.Percent}, nil
}

// PiSugar registers.
const (
	regVoltageHigh = 0x22
	regVoltageLow  = 0x23
	regPercent     = 0x2A
)

// Linear gauge range used when the percent register is unusable.
const (
	emptyMv = 3000
	fullMv  = 4200
)

// PiSugar talks to a PiSugar 3 over I2C. The bus is opened per read so the
// device holds no handle while powered down between cycles.
type PiSugar struct {
	busName string
	addr    uint16
	open    func(name string) (i2c.BusCloser, error)
}

// NewPiSugar reads the gauge at addr on busName ("" for the default bus).
func NewPiSugar(busName string, addr uint16) *PiSugar {
	return &PiSugar{busName: busName, addr: addr, open: openBus}
}

func openBus(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	return i2creg.Open(name)
}

func (p *PiSugar) Read(_ context.Context) (Status, error) {
	bus, err := p.open(p.busName)
	if err != nil {
		return Status{}, fmt.Errorf("battery: open i2c: %w", err)
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: p.addr}
	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, fmt.Errorf("battery: read 0x%02X: %w", reg, err)
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Status{}, err
	}
	mv := int(uint16(high)<<8 | uint16(low))

	pct, err := readReg(regPercent)
	if err != nil || pct > 100 {
		return Status{Percent: PercentFromMillivolts(mv), VoltageMv: mv}, nil
	}
	return Status{Percent: int(pct), VoltageMv: mv}, nil
}

// PercentFromMillivolts maps 3.0–4.2 V linearly onto 0–100.
func PercentFromMillivolts(mv int) int {
	switch {
	case mv <= emptyMv:
		return 0
	case mv >= fullMv:
		return 100
	}
	return (mv - emptyMv) * 100 / (fullMv - emptyMv)
}

// Open returns the reader selected in cfg.
func Open(cfg config.BatteryConfig) Reader {
	if cfg.Source == "mock" {
		return Mock{Percent: cfg.MockPercent}
	}
	return NewPiSugar(cfg.I2CBus, uint16(cfg.I2CAddr))
}

// Percent reads r once, returning Unknown on failure.
func Percent(ctx context.Context, r Reader) int {
	if r == nil {
		return Unknown
	}
	st, err := r.Read(ctx)
	if err != nil {
		return Unknown
	}
	return st.Percent
}
