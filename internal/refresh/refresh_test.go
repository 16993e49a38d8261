package refresh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"focusdisplay/internal/tz"
	"focusdisplay/internal/wake"
)

func TestDecide(t *testing.T) {
	cases := []struct {
		name     string
		cause    wake.Cause
		present  bool
		elapsed  int
		interval int
		want     Decision
	}{
		{"cache absent on timer", wake.Timer, false, 0, 15, FullRefresh},
		{"fresh cache on timer", wake.Timer, true, 5, 15, TimeOnly},
		{"button with fresh cache", wake.Button, true, 1, 15, FullRefresh},
		{"reset with fresh cache", wake.Reset, true, 0, 15, FullRefresh},
		{"interval reached", wake.Timer, true, 15, 15, FullRefresh},
		{"one minute short", wake.Timer, true, 14, 15, TimeOnly},
		{"day changed", wake.Timer, true, Infinite, 60, FullRefresh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.cause, tc.present, tc.elapsed, tc.interval))
		})
	}
}

func TestElapsedMinutes(t *testing.T) {
	utc := tz.Fixed{}
	at := func(d, h, m int) time.Time { return time.Date(2026, 10, d, h, m, 0, 0, time.UTC) }

	assert.Equal(t, 5, ElapsedMinutes(at(15, 9, 20), at(15, 9, 25), utc))
	assert.Equal(t, 0, ElapsedMinutes(at(15, 9, 20), at(15, 9, 20).Add(59*time.Second), utc))
	assert.Equal(t, Infinite, ElapsedMinutes(at(15, 23, 58), at(16, 0, 2), utc))
	assert.Equal(t, Infinite, ElapsedMinutes(at(15, 9, 30), at(15, 9, 20), utc), "sync in the future")
	assert.Equal(t, Infinite, ElapsedMinutes(time.Time{}, at(15, 9, 20), utc))
}

func TestElapsedMinutesUsesLocalDay(t *testing.T) {
	// 22:30 and 23:10 UTC are 00:30 and 01:10 the next day at UTC+2: same
	// local day, even though 21:50 UTC (23:50 local) is not.
	plus2 := tz.Fixed{Std: 2 * time.Hour}
	a := time.Date(2026, 10, 15, 22, 30, 0, 0, time.UTC)
	b := time.Date(2026, 10, 15, 23, 10, 0, 0, time.UTC)
	assert.Equal(t, 40, ElapsedMinutes(a, b, plus2))

	c := time.Date(2026, 10, 15, 21, 50, 0, 0, time.UTC)
	assert.Equal(t, Infinite, ElapsedMinutes(c, b, plus2))
}

func TestMidnightCrossingForcesRefresh(t *testing.T) {
	last := time.Date(2026, 10, 15, 23, 58, 0, 0, time.UTC)
	now := time.Date(2026, 10, 16, 0, 2, 0, 0, time.UTC)
	el := ElapsedMinutes(last, now, tz.Fixed{})
	assert.Equal(t, FullRefresh, Decide(wake.Timer, true, el, 60))
	assert.Equal(t, 4, Elapsed(last, now))
}

func TestElapsed(t *testing.T) {
	base := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, Elapsed(base, base))
	assert.Equal(t, 0, Elapsed(base, base.Add(-time.Hour)))
	assert.Equal(t, 0, Elapsed(time.Time{}, base))
	assert.Equal(t, 150, Elapsed(base, base.Add(150*time.Minute+30*time.Second)))
}
