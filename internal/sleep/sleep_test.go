package sleep

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusdisplay/internal/config"
	"focusdisplay/internal/wake"
)

func scheduler(t *testing.T, cronExpr string) *Scheduler {
	t.Helper()
	s, err := NewScheduler(config.ScheduleConfig{
		WorkIntervalSeconds:     60,
		OffHoursIntervalSeconds: 3600,
		OffHoursCron:            cronExpr,
	})
	require.NoError(t, err)
	return s
}

func TestDurationAlignsDuringWorkHours(t *testing.T) {
	s := scheduler(t, "")
	at := func(sec int) time.Time { return time.Date(2026, 10, 15, 10, 12, sec, 0, time.UTC) }

	assert.Equal(t, 60*time.Second, s.Duration(true, at(0)))
	assert.Equal(t, 47*time.Second, s.Duration(true, at(13)))
	assert.Equal(t, 1*time.Second, s.Duration(true, at(59)))

	s.Work = 30 * time.Second
	assert.Equal(t, 30*time.Second, s.Duration(true, at(10)), "base shorter than alignment")
	assert.Equal(t, 20*time.Second, s.Duration(true, at(40)))
}

func TestDurationOffHoursIsUnaligned(t *testing.T) {
	s := scheduler(t, "")
	now := time.Date(2026, 10, 15, 22, 12, 13, 0, time.UTC)
	assert.Equal(t, time.Hour, s.Duration(false, now))
}

func TestDurationOffHoursCron(t *testing.T) {
	s := scheduler(t, "0 * * * *")
	now := time.Date(2026, 10, 15, 22, 12, 30, 0, time.UTC)
	assert.Equal(t, 47*time.Minute+30*time.Second, s.Duration(false, now))

	// Work hours ignore the cron schedule.
	assert.Equal(t, 30*time.Second, s.Duration(true, now))
}

func TestNewSchedulerRejectsBadCron(t *testing.T) {
	_, err := NewScheduler(config.ScheduleConfig{OffHoursCron: "every hour"})
	assert.Error(t, err)
}

type flagButton struct{ pressed atomic.Bool }

func (b *flagButton) Pressed() bool { return b.pressed.Load() }

func TestResponsiveTimer(t *testing.T) {
	cause, err := Responsive{}.Sleep(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, wake.Timer, cause)
}

func TestResponsiveButton(t *testing.T) {
	b := &flagButton{}
	b.pressed.Store(true)
	cause, err := Responsive{Button: b, Poll: time.Millisecond}.Sleep(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, wake.Button, cause)
}

func TestResponsiveCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Responsive{}.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

// fakeRTC is a DS3231 stand-in whose clock need not agree with the host.
type fakeRTC struct {
	now    time.Time
	at     time.Time
	err    error
	nowErr error
}

func (r *fakeRTC) Now() (time.Time, error) { return r.now, r.nowErr }

func (r *fakeRTC) SetAlarm(t time.Time) error {
	r.at = t
	return r.err
}

func TestLowPowerArmsAlarmAndMarker(t *testing.T) {
	now := time.Date(2026, 10, 15, 22, 0, 0, 0, time.UTC)
	rtc := &fakeRTC{now: now}
	marker := wake.Marker{Path: filepath.Join(t.TempDir(), "wake.json")}

	var ran []string
	l := NewLowPower(rtc, marker, []string{"/sbin/poweroff"})
	l.run = func(_ context.Context, argv []string) error {
		ran = argv
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := l.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, now.Add(time.Hour), rtc.at)
	assert.Equal(t, []string{"/sbin/poweroff"}, ran)

	// The next boot, woken by the alarm, reads a timer wake.
	r := wake.MarkerSensor{Marker: marker, Tolerance: time.Minute}.Sense(now.Add(time.Hour))
	assert.Equal(t, wake.Timer, wake.Classify(r.Reset, r.Source))
}

func TestLowPowerUsesRTCTimeNotHostTime(t *testing.T) {
	// After a power cut the RTC keeps true time while the host clock does
	// not; here the RTC runs two hours behind the host.
	rtcNow := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	rtc := &fakeRTC{now: rtcNow}
	marker := wake.Marker{Path: filepath.Join(t.TempDir(), "wake.json")}

	l := NewLowPower(rtc, marker, []string{"/sbin/poweroff"})
	l.run = func(context.Context, []string) error { return nil }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _ = l.Sleep(ctx, time.Minute)
	assert.Equal(t, time.Minute, rtc.at.Sub(rtcNow))

	// The next boot reads the same RTC, one minute later.
	sensor := wake.MarkerSensor{Marker: marker, Button: &flagButton{}, Tolerance: 90 * time.Second}
	r := sensor.Sense(rtcNow.Add(time.Minute))
	assert.Equal(t, wake.Timer, wake.Classify(r.Reset, r.Source))
}

func TestLowPowerFailures(t *testing.T) {
	marker := wake.Marker{Path: filepath.Join(t.TempDir(), "wake.json")}
	now := time.Date(2026, 10, 15, 22, 0, 0, 0, time.UTC)

	l := NewLowPower(&fakeRTC{now: now, err: errors.New("nack")}, marker, nil)
	_, err := l.Sleep(context.Background(), time.Minute)
	assert.ErrorIs(t, err, ErrPowerOff)

	l = NewLowPower(&fakeRTC{nowErr: errors.New("bus error")}, marker, nil)
	_, err = l.Sleep(context.Background(), time.Minute)
	assert.ErrorIs(t, err, ErrPowerOff)
	assert.ErrorContains(t, err, "read rtc")
}

func TestLowPowerDisarmsMarkerWhenPowerOffFails(t *testing.T) {
	marker := wake.Marker{Path: filepath.Join(t.TempDir(), "wake.json")}
	now := time.Date(2026, 10, 15, 22, 0, 0, 0, time.UTC)

	l := NewLowPower(&fakeRTC{now: now}, marker, []string{"poweroff"})
	l.run = func(context.Context, []string) error { return errors.New("permission denied") }
	_, err := l.Sleep(context.Background(), time.Minute)
	assert.ErrorIs(t, err, ErrPowerOff)

	assert.NoFileExists(t, marker.Path)
	// A cold boot inside the tolerance window is still a reset.
	r := wake.MarkerSensor{Marker: marker, Tolerance: 90 * time.Second}.Sense(now.Add(time.Minute))
	assert.Equal(t, wake.Reset, wake.Classify(r.Reset, r.Source))
}

func TestRunCommandEmpty(t *testing.T) {
	assert.NoError(t, RunCommand(context.Background(), nil))
}
