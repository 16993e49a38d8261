package clock

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DS3231 registers.
const (
	regSeconds   = 0x00
	regAlarm1    = 0x07
	regControl   = 0x0E
	regStatus    = 0x0F
	ctrlINTCN    = 1 << 2
	ctrlA1IE     = 1 << 0
	statusA1F    = 1 << 0
	monthCentury = 1 << 7
)

// txer is the subset of a periph i2c.Dev the RTC needs.
type txer interface {
	Tx(w, r []byte) error
}

// DS3231 is a battery-backed RTC holding UTC in 24-hour mode.
type DS3231 struct {
	dev    txer
	closer func() error
}

// OpenDS3231 opens the RTC on busName ("" for the default bus).
func OpenDS3231(busName string, addr uint16) (*DS3231, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("clock: periph host init failed: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("clock: open i2c bus %q: %w", busName, err)
	}
	return &DS3231{dev: &i2c.Dev{Bus: bus, Addr: addr}, closer: bus.Close}, nil
}

func (r *DS3231) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func (r *DS3231) Now() (time.Time, error) {
	buf := make([]byte, 7)
	if err := r.dev.Tx([]byte{regSeconds}, buf); err != nil {
		return time.Time{}, fmt.Errorf("clock: read rtc: %w", err)
	}
	year := 2000 + fromBCD(buf[6])
	if buf[5]&monthCentury != 0 {
		year += 100
	}
	t := time.Date(
		year,
		time.Month(fromBCD(buf[5]&0x1F)),
		fromBCD(buf[4]&0x3F),
		fromBCD(buf[2]&0x3F),
		fromBCD(buf[1]&0x7F),
		fromBCD(buf[0]&0x7F),
		0, time.UTC,
	)
	return t, nil
}

// Set writes t (as UTC) into the time registers.
func (r *DS3231) Set(t time.Time) error {
	t = t.UTC()
	yy := t.Year() - 2000
	month := toBCD(int(t.Month()))
	if yy >= 100 {
		yy -= 100
		month |= monthCentury
	}
	w := []byte{
		regSeconds,
		toBCD(t.Second()),
		toBCD(t.Minute()),
		toBCD(t.Hour()),
		toBCD(int(t.Weekday()) + 1),
		toBCD(t.Day()),
		month,
		toBCD(yy),
	}
	if err := r.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("clock: write rtc: %w", err)
	}
	return nil
}

// SetAlarm arms alarm 1 to fire at t (matching date, hour, minute, second)
// and routes it to the INT pin, which the power controller watches.
func (r *DS3231) SetAlarm(t time.Time) error {
	t = t.UTC()
	w := []byte{
		regAlarm1,
		toBCD(t.Second()),
		toBCD(t.Minute()),
		toBCD(t.Hour()),
		toBCD(t.Day()),
	}
	if err := r.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("clock: write alarm: %w", err)
	}

	ctrl := []byte{0}
	if err := r.dev.Tx([]byte{regControl}, ctrl); err != nil {
		return fmt.Errorf("clock: read control: %w", err)
	}
	if err := r.dev.Tx([]byte{regControl, ctrl[0] | ctrlINTCN | ctrlA1IE}, nil); err != nil {
		return fmt.Errorf("clock: write control: %w", err)
	}

	status := []byte{0}
	if err := r.dev.Tx([]byte{regStatus}, status); err != nil {
		return fmt.Errorf("clock: read status: %w", err)
	}
	if err := r.dev.Tx([]byte{regStatus, status[0] &^ statusA1F}, nil); err != nil {
		return fmt.Errorf("clock: clear alarm flag: %w", err)
	}
	return nil
}

func toBCD(v int) byte   { return byte((v/10)<<4 | v%10) }
func fromBCD(b byte) int { return int(b>>4)*10 + int(b&0x0F) }
