package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusdisplay/internal/model"
)

func TestFocusTextOf(t *testing.T) {
	cases := []struct {
		name     string
		ds       model.DisplayState
		mode     string
		headline []string
		footer   []string
	}{
		{
			name:     "evening",
			ds:       model.DisplayState{EveningMode: true, Next: model.NextMeeting{MinutesUntil: model.IntPtr(900)}},
			mode:     ModeEvening,
			headline: []string{"priorities"},
			footer:   []string{"No meetings until tomorrow"},
		},
		{
			name:     "busy with long title",
			ds:       model.DisplayState{Next: model.NextMeeting{MinutesUntil: model.IntPtr(-5), Title: "Quarterly business review with leadership"}},
			mode:     ModeBusy,
			headline: []string{"Quarterly business", "review with leadership"},
		},
		{
			name:     "busy without title",
			ds:       model.DisplayState{Next: model.NextMeeting{MinutesUntil: model.IntPtr(0)}},
			mode:     ModeBusy,
			headline: []string{"Busy"},
		},
		{
			name: "focus",
			ds: model.DisplayState{Next: model.NextMeeting{
				MinutesUntil: model.IntPtr(125), Title: "Design review", TimeString: "3:00 PM",
			}},
			mode:     ModeFocus,
			headline: []string{"2 h 5 min"},
			footer:   []string{"Next: Design review", "@ 3:00 PM"},
		},
		{
			name:     "nothing upcoming",
			ds:       model.DisplayState{},
			mode:     ModeFocus,
			headline: []string{"rest of day"},
			footer:   []string{"No upcoming meetings"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ft := FocusTextOf(tc.ds)
			assert.Equal(t, tc.mode, ft.Mode)
			assert.Equal(t, tc.headline, ft.Headline)
			assert.Equal(t, tc.footer, ft.Footer)
		})
	}
}

func TestAgendaRows(t *testing.T) {
	items := []model.AgendaItem{
		{Title: "Standup", StartHour: 9, StartMinute: 0, DurationMin: 15, IsPast: true},
		{Title: "Second at nine", StartHour: 9, StartMinute: 30, DurationMin: 30},
		{Title: "A very long workshop title that keeps going", StartHour: 14, DurationMin: 180},
		{Title: "Late", StartHour: 21, DurationMin: 30},
	}
	rows := AgendaRows(items, 14)
	require.Len(t, rows, AgendaEndHour-AgendaStartHour)
	assert.Equal(t, "8 AM", rows[0].Label)
	assert.Nil(t, rows[0].Item)

	nine := rows[1]
	require.NotNil(t, nine.Item)
	assert.Equal(t, "Standup", nine.Title, "first item in the hour wins")
	assert.Equal(t, 15, nine.BarMinutes)

	two := rows[6]
	assert.True(t, two.Now)
	assert.Equal(t, 60, two.BarMinutes)
	assert.Equal(t, "A very long workshop t...", two.Title)
}

func TestBatteryText(t *testing.T) {
	assert.Equal(t, "87%", BatteryText(87))
	assert.Equal(t, "0%", BatteryText(0))
	assert.Empty(t, BatteryText(-1))
}
