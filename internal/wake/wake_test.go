package wake

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		reset ResetReason
		src   Source
		want  Cause
	}{
		{ResetDeepSleep, SourceExternal, Button},
		{ResetDeepSleep, SourceTimer, Timer},
		{ResetDeepSleep, SourceUndefined, Reset},
		{ResetPowerOn, SourceTimer, Reset},
		{ResetBrownout, SourceUndefined, Reset},
		{ResetWatchdog, SourceExternal, Reset},
		{ResetSoftware, SourceUndefined, Reset},
		{ResetUnknown, SourceUndefined, Reset},
	}
	for _, tc := range cases {
		t.Run(tc.reset.String()+"/"+tc.src.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.reset, tc.src))
		})
	}
}

func TestForcesRefresh(t *testing.T) {
	assert.True(t, Button.ForcesRefresh())
	assert.True(t, Reset.ForcesRefresh())
	assert.False(t, Timer.ForcesRefresh())
}

type fakeButton bool

func (b fakeButton) Pressed() bool { return bool(b) }

func TestMarkerSensor(t *testing.T) {
	wakeAt := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		armed  bool
		button bool
		now    time.Time
		want   Cause
	}{
		{"cold boot", false, false, wakeAt, Reset},
		{"cold boot with button held", false, true, wakeAt, Reset},
		{"alarm on time", true, false, wakeAt.Add(2 * time.Second), Timer},
		{"alarm slightly early", true, false, wakeAt.Add(-30 * time.Second), Timer},
		{"woken long before alarm", true, false, wakeAt.Add(-20 * time.Minute), Button},
		{"button held at alarm", true, true, wakeAt, Button},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Marker{Path: filepath.Join(t.TempDir(), "wake.json")}
			if tc.armed {
				require.NoError(t, m.Arm(wakeAt.Add(-time.Hour), wakeAt))
			}
			s := MarkerSensor{Marker: m, Button: fakeButton(tc.button), Tolerance: 90 * time.Second}
			r := s.Sense(tc.now)
			assert.Equal(t, tc.want, Classify(r.Reset, r.Source))

			_, err := os.Stat(m.Path)
			assert.True(t, os.IsNotExist(err), "marker is consumed")
		})
	}
}

func TestMarkerSensorCorruptMarker(t *testing.T) {
	m := Marker{Path: filepath.Join(t.TempDir(), "wake.json")}
	require.NoError(t, os.WriteFile(m.Path, []byte("{not json"), 0o600))

	r := MarkerSensor{Marker: m}.Sense(time.Now())
	assert.Equal(t, Reset, Classify(r.Reset, r.Source))
}
