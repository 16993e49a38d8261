package derive

import (
	"strconv"

	"focusdisplay/internal/model"
)

// Focus column modes.
const (
	ModeBusy    = "busy"
	ModeFocus   = "focus"
	ModeEvening = "evening"
)

// Title widths of the focus column, in runes.
const (
	busyTitleWidth = 25
	nextTitleWidth = 30
)

// FocusText is the copy of the middle column for one frame.
type FocusText struct {
	Mode string
	// Message is the two-line lead-in.
	Message [2]string
	// Headline is the large line(s): the countdown, the current meeting or
	// "priorities".
	Headline []string
	// Footer lines under the separator.
	Footer []string
}

// FocusTextOf composes the focus column for ds.
func FocusTextOf(ds model.DisplayState) FocusText {
	switch {
	case ds.EveningMode:
		return FocusText{
			Mode:     ModeEvening,
			Message:  [2]string{"Remember your", ""},
			Headline: []string{"priorities"},
			Footer:   []string{"No meetings until tomorrow"},
		}
	case ds.Next.Busy():
		ft := FocusText{Mode: ModeBusy, Message: [2]string{"Currently in", "a meeting"}}
		if ds.Next.Title == "" {
			ft.Headline = []string{"Busy"}
			return ft
		}
		l1, l2 := SplitTitle(ds.Next.Title, busyTitleWidth)
		ft.Headline = []string{l1}
		if l2 != "" {
			ft.Headline = append(ft.Headline, l2)
		}
		return ft
	}

	ft := FocusText{Mode: ModeFocus, Message: [2]string{"You can focus for", "the next"}}
	if ds.Next.MinutesUntil == nil {
		ft.Headline = []string{"rest of day"}
		ft.Footer = []string{"No upcoming meetings"}
		return ft
	}
	ft.Headline = []string{FocusTime(*ds.Next.MinutesUntil)}
	if ds.Next.Title != "" {
		ft.Footer = []string{
			"Next: " + Truncate(ds.Next.Title, nextTitleWidth),
			"@ " + ds.Next.TimeString,
		}
	}
	return ft
}

// Timeline window of the agenda column.
const (
	AgendaStartHour = 8
	AgendaEndHour   = 20
)

// AgendaRow is one hour of the agenda column.
type AgendaRow struct {
	Hour  int
	Label string
	Now   bool
	// Item is the first meeting starting in this hour, if any.
	Item *model.AgendaItem
	// Title is the item title cut to fit.
	Title string
	// BarMinutes is the bar length, capped at one hour of width.
	BarMinutes int
}

// AgendaRows lays out today's items over the timeline window.
func AgendaRows(items []model.AgendaItem, localHour int) []AgendaRow {
	rows := make([]AgendaRow, 0, AgendaEndHour-AgendaStartHour)
	for h := AgendaStartHour; h < AgendaEndHour; h++ {
		row := AgendaRow{Hour: h, Label: HourLabel(h), Now: h == localHour}
		for i := range items {
			if items[i].StartHour == h {
				it := items[i]
				row.Item = &it
				row.Title = Truncate(it.Title, busyTitleWidth)
				row.BarMinutes = min(it.DurationMin, 60)
				break
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// BatteryText formats the header gauge, empty when unknown.
func BatteryText(pct int) string {
	if pct < 0 {
		return ""
	}
	return strconv.Itoa(pct) + "%"
}
