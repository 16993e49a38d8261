// Package tz provides the UTC offset strategies used for world clocks and
// for the device's own local time.
//
// The EU and US rules are rule-of-thumb date windows evaluated on the UTC
// date: they ignore the transition hour and are known to be off for a few
// hours around each switch. Zone is the exact alternative backed by the IANA
// database for hosts that ship tzdata.
package tz

import (
	"fmt"
	"strings"
	"time"

	"focusdisplay/internal/model"
)

// Rule yields the UTC offset in effect at instant t.
type Rule interface {
	Offset(t time.Time) time.Duration
	Name() string
}

// Fixed is a constant offset with no daylight saving.
type Fixed struct {
	Std time.Duration
}

func (f Fixed) Offset(time.Time) time.Duration { return f.Std }
func (f Fixed) Name() string                   { return "fixed" + formatOffset(f.Std) }

// ApproxEU adds one hour between the last Sunday of March and the last
// Sunday of October.
type ApproxEU struct {
	Std time.Duration
}

func (r ApproxEU) Offset(t time.Time) time.Duration {
	if EUSummer(model.ReadingOf(t.UTC())) {
		return r.Std + time.Hour
	}
	return r.Std
}

func (r ApproxEU) Name() string { return "approx-eu" + formatOffset(r.Std) }

// ApproxUS adds one hour between the second Sunday of March and the first
// Sunday of November.
type ApproxUS struct {
	Std time.Duration
}

func (r ApproxUS) Offset(t time.Time) time.Duration {
	if USSummer(model.ReadingOf(t.UTC())) {
		return r.Std + time.Hour
	}
	return r.Std
}

func (r ApproxUS) Name() string { return "approx-us" + formatOffset(r.Std) }

// Zone resolves offsets through a loaded *time.Location.
type Zone struct {
	Loc *time.Location
}

func (z Zone) Offset(t time.Time) time.Duration {
	_, secs := t.In(z.Loc).Zone()
	return time.Duration(secs) * time.Second
}

func (z Zone) Name() string { return z.Loc.String() }

// lastSunday returns the day-of-month of the most recent Sunday on or before
// c's date. It can be zero or negative when that Sunday lies in the previous
// month.
func lastSunday(c model.ClockReading) int {
	return c.Day - (c.Weekday+1)%7
}

// EUSummer reports whether c falls inside the approximate EU summer-time
// window.
func EUSummer(c model.ClockReading) bool {
	switch {
	case c.Month < 3 || c.Month > 10:
		return false
	case c.Month > 3 && c.Month < 10:
		return true
	case c.Month == 3:
		// The last Sunday of March is always on or after the 25th.
		return lastSunday(c) >= 25
	default:
		return lastSunday(c) < 25
	}
}

// USSummer reports whether c falls inside the approximate US daylight-time
// window.
func USSummer(c model.ClockReading) bool {
	switch {
	case c.Month < 3 || c.Month > 11:
		return false
	case c.Month > 3 && c.Month < 11:
		return true
	case c.Month == 3:
		// Second Sunday of March lands on the 8th..14th.
		return lastSunday(c) >= 8
	default:
		// First Sunday of November lands on the 1st..7th.
		return lastSunday(c) < 1
	}
}

// New builds a Rule from config values. zone, when set, wins over the
// approximate rules.
func New(stdOffsetHours float64, dst, zone string) (Rule, error) {
	if zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("tz: load zone %q: %w", zone, err)
		}
		return Zone{Loc: loc}, nil
	}
	std := time.Duration(stdOffsetHours * float64(time.Hour))
	switch strings.ToLower(strings.TrimSpace(dst)) {
	case "", "none":
		return Fixed{Std: std}, nil
	case "eu":
		return ApproxEU{Std: std}, nil
	case "us":
		return ApproxUS{Std: std}, nil
	default:
		return nil, fmt.Errorf("tz: unknown dst rule %q", dst)
	}
}

// Local converts t to wall time under rule r.
func Local(t time.Time, r Rule) time.Time {
	off := r.Offset(t)
	return t.In(time.FixedZone(r.Name(), int(off/time.Second)))
}

func formatOffset(d time.Duration) string {
	sign := "+"
	if d < 0 {
		sign = "-"
		d = -d
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if m == 0 {
		return fmt.Sprintf("%s%d", sign, h)
	}
	return fmt.Sprintf("%s%d:%02d", sign, h, m)
}
