package battery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"focusdisplay/internal/config"
)

type fakeBus struct {
	regs   map[byte]byte
	fail   map[byte]bool
	closed bool
}

func (f *fakeBus) String() string                  { return "fake" }
func (f *fakeBus) SetSpeed(physic.Frequency) error { return nil }
func (f *fakeBus) Close() error                    { f.closed = true; return nil }

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if f.fail[w[0]] {
		return errors.New("nack")
	}
	r[0] = f.regs[w[0]]
	return nil
}

func piSugarWith(bus *fakeBus) *PiSugar {
	p := NewPiSugar("", 0x57)
	p.open = func(string) (i2c.BusCloser, error) { return bus, nil }
	return p
}

func TestPiSugarRead(t *testing.T) {
	bus := &fakeBus{regs: map[byte]byte{regVoltageHigh: 0x0F, regVoltageLow: 0xA0, regPercent: 87}}
	st, err := piSugarWith(bus).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Status{Percent: 87, VoltageMv: 4000}, st)
	assert.True(t, bus.closed)
}

func TestPiSugarFallsBackToVoltage(t *testing.T) {
	bus := &fakeBus{
		regs: map[byte]byte{regVoltageHigh: 0x0E, regVoltageLow: 0x10},
		fail: map[byte]bool{regPercent: true},
	}
	st, err := piSugarWith(bus).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3600, st.VoltageMv)
	assert.Equal(t, 50, st.Percent)

	bus.fail = map[byte]bool{regVoltageHigh: true}
	_, err = piSugarWith(bus).Read(context.Background())
	assert.Error(t, err)
}

func TestPercentFromMillivolts(t *testing.T) {
	cases := map[int]int{2500: 0, 3000: 0, 3600: 50, 4200: 100, 4400: 100, 3300: 25}
	for mv, want := range cases {
		assert.Equal(t, want, PercentFromMillivolts(mv), "%d mV", mv)
	}
}

func TestOpenAndPercent(t *testing.T) {
	r := Open(config.BatteryConfig{Source: "mock", MockPercent: 42})
	assert.Equal(t, 42, Percent(context.Background(), r))

	_, ok := Open(config.BatteryConfig{Source: "pisugar", I2CAddr: 0x57}).(*PiSugar)
	assert.True(t, ok)

	failing := NewPiSugar("", 0x57)
	failing.open = func(string) (i2c.BusCloser, error) { return nil, errors.New("no bus") }
	assert.Equal(t, Unknown, Percent(context.Background(), failing))
	assert.Equal(t, Unknown, Percent(context.Background(), nil))
}
