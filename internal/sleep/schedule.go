// Package sleep computes how long the device sleeps between cycles and
// performs the sleep itself.
package sleep

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"focusdisplay/internal/config"
)

// Scheduler chooses the sleep duration for a cycle.
type Scheduler struct {
	Work     time.Duration
	OffHours time.Duration

	// offCron, when set, replaces OffHours with the time to its next tick.
	offCron cron.Schedule
}

// NewScheduler builds a scheduler from the schedule section.
func NewScheduler(sc config.ScheduleConfig) (*Scheduler, error) {
	s := &Scheduler{
		Work:     sc.WorkInterval(),
		OffHours: sc.OffHoursInterval(),
	}
	if sc.OffHoursCron != "" {
		sched, err := cron.ParseStandard(sc.OffHoursCron)
		if err != nil {
			return nil, fmt.Errorf("sleep: off_hours_cron %q: %w", sc.OffHoursCron, err)
		}
		s.offCron = sched
	}
	return s, nil
}

// Base is the unaligned interval. localNow must carry the device zone so
// cron fields are read as local wall time.
func (s *Scheduler) Base(workHours bool, localNow time.Time) time.Duration {
	if workHours {
		return s.Work
	}
	if s.offCron != nil {
		if d := s.offCron.Next(localNow).Sub(localNow); d > 0 {
			return d
		}
	}
	return s.OffHours
}

// Duration returns the sleep for the cycle. During work hours the wake is
// pulled forward to the next minute boundary when that comes first, so the
// displayed minute does not drift from wall time.
func (s *Scheduler) Duration(workHours bool, localNow time.Time) time.Duration {
	base := s.Base(workHours, localNow)
	if !workHours {
		return base
	}
	align := time.Duration(60-localNow.Second()) * time.Second
	if align < base {
		return align
	}
	return base
}
