package model

import "time"

// MeetingType is a coarse classification of how a meeting is attended.
type MeetingType string

const (
	MeetingUnknown  MeetingType = "unknown"
	MeetingVideo    MeetingType = "video"
	MeetingPhone    MeetingType = "phone"
	MeetingInPerson MeetingType = "in_person"
)

// Event is a single timed meeting as returned by a calendar collaborator.
//
// Start/End are absolute instants (any location); DurationMin is derived from
// them at construction. IsPast is never trusted from storage and is
// recomputed every wake relative to the current clock.
type Event struct {
	Title       string      `json:"title"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	DurationMin int         `json:"duration_min"`
	Type        MeetingType `json:"type"`
	Location    string      `json:"location,omitempty"`
	IsPast      bool        `json:"-"`
}

// NewEvent fills DurationMin from start/end.
func NewEvent(title string, start, end time.Time, typ MeetingType, location string) Event {
	dur := int(end.Sub(start) / time.Minute)
	if dur < 0 {
		dur = 0
	}
	if typ == "" {
		typ = MeetingUnknown
	}
	return Event{
		Title:       title,
		Start:       start,
		End:         end,
		DurationMin: dur,
		Type:        typ,
		Location:    location,
	}
}

// ClockReading is a broken-down wall-clock time. Weekday is 0=Monday..6=Sunday.
type ClockReading struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Second  int
	Weekday int
}

// ReadingOf breaks t down in its own location.
func ReadingOf(t time.Time) ClockReading {
	return ClockReading{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		Weekday: (int(t.Weekday()) + 6) % 7,
	}
}

// MinuteOfDay returns hour*60+minute.
func (c ClockReading) MinuteOfDay() int {
	return c.Hour*60 + c.Minute
}

// SameDay reports whether both readings share a calendar date.
func (c ClockReading) SameDay(o ClockReading) bool {
	return c.Year == o.Year && c.Month == o.Month && c.Day == o.Day
}

// Weekend reports Saturday or Sunday.
func (c ClockReading) Weekend() bool {
	return c.Weekday >= 5
}

// CityTime is one world-clock entry.
type CityTime struct {
	Label  string `json:"label"`
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
}

// AgendaItem is a today's-timeline entry with a freshly computed IsPast.
type AgendaItem struct {
	Title       string      `json:"title"`
	StartHour   int         `json:"start_hour"`
	StartMinute int         `json:"start_minute"`
	DurationMin int         `json:"duration_min"`
	Type        MeetingType `json:"type"`
	Location    string      `json:"location,omitempty"`
	IsPast      bool        `json:"is_past"`
}

// NextMeeting summarizes the upcoming meeting. MinutesUntil is nil when
// there is nothing upcoming in the lookahead window.
type NextMeeting struct {
	MinutesUntil *int        `json:"minutes_until,omitempty"`
	Title        string      `json:"title,omitempty"`
	TimeString   string      `json:"time_string,omitempty"`
	Type         MeetingType `json:"type,omitempty"`
	Location     string      `json:"location,omitempty"`
}

// Busy reports whether the countdown has reached zero.
func (n NextMeeting) Busy() bool {
	return n.MinutesUntil != nil && *n.MinutesUntil <= 0
}

// DisplayState is everything the renderer needs for one frame.
type DisplayState struct {
	Clocks      []CityTime   `json:"clocks"`
	EveningMode bool         `json:"evening_mode"`
	WorkHours   bool         `json:"work_hours"`
	Next        NextMeeting  `json:"next"`
	Agenda      []AgendaItem `json:"agenda"`
	LocalHour   int          `json:"local_hour"`
	LocalMinute int          `json:"local_minute"`
	DateString  string       `json:"date_string"`
	BatteryPct  int          `json:"battery_pct"`
	ForceFull   bool         `json:"force_full"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// IntPtr is a small helper for optional minute counts.
func IntPtr(v int) *int {
	return &v
}
