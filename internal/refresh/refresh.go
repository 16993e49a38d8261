// Package refresh decides, once per wake, whether the cycle re-fetches the
// calendar or only recomputes from the cached sync.
package refresh

import (
	"math"
	"time"

	"focusdisplay/internal/tz"
	"focusdisplay/internal/wake"
)

// Decision is the per-wake refresh mode.
type Decision int

const (
	TimeOnly Decision = iota
	FullRefresh
)

func (d Decision) String() string {
	if d == FullRefresh {
		return "full_refresh"
	}
	return "time_only"
}

// Infinite is the elapsed value reported when a sync cannot be compared to
// now on the same local day.
const Infinite = math.MaxInt

// Decide picks the refresh mode.
func Decide(cause wake.Cause, cachePresent bool, elapsedMin, intervalMin int) Decision {
	switch {
	case !cachePresent:
		return FullRefresh
	case cause.ForcesRefresh():
		return FullRefresh
	case elapsedMin >= intervalMin:
		return FullRefresh
	default:
		return TimeOnly
	}
}

// ElapsedMinutes returns whole minutes between lastSync and now as seen in
// the local zone. A sync on a different local day, or one in the future,
// yields Infinite.
//
// Crossing midnight is deliberately not computed: a sync at 23:58 read at
// 00:02 reports Infinite, so the first wake of a day always refetches.
func ElapsedMinutes(lastSync, now time.Time, zone tz.Rule) int {
	if lastSync.IsZero() || now.Before(lastSync) {
		return Infinite
	}
	ls := tz.Local(lastSync, zone)
	ln := tz.Local(now, zone)
	if ls.Year() != ln.Year() || ls.YearDay() != ln.YearDay() {
		return Infinite
	}
	return int(now.Sub(lastSync) / time.Minute)
}

// Elapsed is the true elapsed whole minutes, floored at zero. Countdown
// derivation uses this instead of ElapsedMinutes so a cache carried across
// midnight on a failed refresh still counts down.
func Elapsed(lastSync, now time.Time) int {
	if lastSync.IsZero() || now.Before(lastSync) {
		return 0
	}
	return int(now.Sub(lastSync) / time.Minute)
}
