// Package derive turns the cached sync plus the current clock into the
// frame handed to the renderer. Nothing here touches the network or the
// stored cache; every value is recomputed from its inputs.
package derive

import (
	"fmt"
	"time"

	"focusdisplay/internal/cache"
	"focusdisplay/internal/config"
	"focusdisplay/internal/model"
	"focusdisplay/internal/tz"
)

// eveningHorizonMin is how far away the next meeting must be for the
// evening screen to replace the countdown.
const eveningHorizonMin = 12 * 60

// City is one world clock.
type City struct {
	Label string
	Rule  tz.Rule
}

// Calculator holds the configured parameters of the derivation.
type Calculator struct {
	Cities []City
	// Local is the device's own zone; the first configured city.
	Local tz.Rule

	WorkStart      int
	WorkEnd        int
	EveningStart   int
	ForceWorkHours bool
}

// NewCalculator builds the zone rules for every configured city.
func NewCalculator(cfg *config.Config) (*Calculator, error) {
	if len(cfg.Cities) == 0 {
		return nil, fmt.Errorf("derive: no cities configured")
	}
	c := &Calculator{
		WorkStart:      cfg.Schedule.WorkHoursStart,
		WorkEnd:        cfg.Schedule.WorkHoursEnd,
		EveningStart:   cfg.Schedule.EveningStartHour,
		ForceWorkHours: cfg.Schedule.ForceWorkHours,
	}
	for _, cc := range cfg.Cities {
		r, err := tz.New(cc.UTCOffset, cc.DST, cc.Zone)
		if err != nil {
			return nil, fmt.Errorf("derive: city %q: %w", cc.Label, err)
		}
		c.Cities = append(c.Cities, City{Label: cc.Label, Rule: r})
	}
	c.Local = c.Cities[0].Rule
	return c, nil
}

// LocalReading is now broken down in the device zone.
func (c *Calculator) LocalReading(now time.Time) model.ClockReading {
	return model.ReadingOf(tz.Local(now, c.Local))
}

// WorkHours reports whether the reading falls inside the work window.
func (c *Calculator) WorkHours(r model.ClockReading) bool {
	if c.ForceWorkHours {
		return true
	}
	return !r.Weekend() && r.Hour >= c.WorkStart && r.Hour < c.WorkEnd
}

// Evening reports whether the evening screen replaces the countdown.
func (c *Calculator) Evening(localHour int, minutesUntil *int) bool {
	if localHour < c.EveningStart {
		return false
	}
	return minutesUntil == nil || *minutesUntil > eveningHorizonMin
}

// State builds the frame for a cycle. elapsed is the true number of minutes
// since st.LastAPISync.
func (c *Calculator) State(now time.Time, st cache.State, elapsed int) model.DisplayState {
	local := c.LocalReading(now)
	minutes := Countdown(st.MinutesUntilNext, elapsed)

	return model.DisplayState{
		Clocks:      WorldClocks(now, c.Cities),
		EveningMode: c.Evening(local.Hour, minutes),
		WorkHours:   c.WorkHours(local),
		Next: model.NextMeeting{
			MinutesUntil: minutes,
			Title:        st.NextTitle,
			TimeString:   st.NextTimeString,
			Type:         st.NextType,
			Location:     st.NextLocation,
		},
		Agenda:      Agenda(st.Events, now, c.Local),
		LocalHour:   local.Hour,
		LocalMinute: local.Minute,
		DateString:  tz.Local(now, c.Local).Format("Monday, Jan 2"),
		GeneratedAt: now.UTC(),
	}
}

// Countdown derives the current minutes-until-next from the value stored at
// sync time. The stored value is never modified.
func Countdown(original *int, elapsed int) *int {
	if original == nil {
		return nil
	}
	return model.IntPtr(max(0, *original-elapsed))
}

// WorldClocks reads now in every city.
func WorldClocks(now time.Time, cities []City) []model.CityTime {
	out := make([]model.CityTime, 0, len(cities))
	for _, c := range cities {
		t := tz.Local(now, c.Rule)
		out = append(out, model.CityTime{Label: c.Label, Hour: t.Hour(), Minute: t.Minute()})
	}
	return out
}

// IsPast compares minutes of the local day: an event from today is past
// once now reaches start+duration. Earlier days are past, later ones not.
func IsPast(ev model.Event, now time.Time, zone tz.Rule) bool {
	n := model.ReadingOf(tz.Local(now, zone))
	s := model.ReadingOf(tz.Local(ev.Start, zone))
	switch {
	case s.SameDay(n):
		return n.MinuteOfDay() >= s.MinuteOfDay()+ev.DurationMin
	case beforeDay(s, n):
		return true
	default:
		return false
	}
}

// Agenda lists the events starting on the current local day, in cache
// order, with fresh is-past flags.
func Agenda(events []model.Event, now time.Time, zone tz.Rule) []model.AgendaItem {
	today := model.ReadingOf(tz.Local(now, zone))
	out := []model.AgendaItem{}
	for _, ev := range events {
		s := model.ReadingOf(tz.Local(ev.Start, zone))
		if !s.SameDay(today) {
			continue
		}
		out = append(out, model.AgendaItem{
			Title:       ev.Title,
			StartHour:   s.Hour,
			StartMinute: s.Minute,
			DurationMin: ev.DurationMin,
			Type:        ev.Type,
			Location:    ev.Location,
			IsPast:      IsPast(ev, now, zone),
		})
	}
	return out
}

// Summarize picks the next meeting at sync time: the first event, in start
// order, that has not ended. A meeting already in progress counts as zero
// minutes away.
func Summarize(events []model.Event, syncAt time.Time, zone tz.Rule) model.NextMeeting {
	for _, ev := range events {
		if !ev.End.After(syncAt) {
			continue
		}
		until := 0
		if ev.Start.After(syncAt) {
			until = int(ev.Start.Sub(syncAt) / time.Minute)
		}
		return model.NextMeeting{
			MinutesUntil: model.IntPtr(until),
			Title:        ev.Title,
			TimeString:   TimeString(ev.Start, syncAt, zone),
			Type:         ev.Type,
			Location:     ev.Location,
		}
	}
	return model.NextMeeting{}
}

// Apply writes the summary into the cache fields.
func Apply(st *cache.State, n model.NextMeeting) {
	st.MinutesUntilNext = n.MinutesUntil
	st.NextTitle = n.Title
	st.NextTimeString = n.TimeString
	st.NextType = n.Type
	st.NextLocation = n.Location
}

// TimeString formats start relative to now: "3:00 PM" today,
// "Tomorrow 9:00 AM" on the next day, "Mon 9:00 AM" further out.
func TimeString(start, now time.Time, zone tz.Rule) string {
	s := tz.Local(start, zone)
	n := tz.Local(now, zone)
	clock := s.Format("3:04 PM")
	sr, nr := model.ReadingOf(s), model.ReadingOf(n)
	switch {
	case sr.SameDay(nr):
		return clock
	case sr.SameDay(model.ReadingOf(n.AddDate(0, 0, 1))):
		return "Tomorrow " + clock
	default:
		return s.Format("Mon") + " " + clock
	}
}

func beforeDay(a, b model.ClockReading) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Month != b.Month {
		return a.Month < b.Month
	}
	return a.Day < b.Day
}
