package sleep

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/wake"
)

// Sleeper suspends the device for d and reports what ended the sleep.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) (wake.Cause, error)
}

// Responsive pauses in-process while sampling the wake button. Used in
// development and whenever the preview server must stay reachable.
type Responsive struct {
	Button wake.Switch // may be nil
	Poll   time.Duration
}

func (r Responsive) Sleep(ctx context.Context, d time.Duration) (wake.Cause, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var tick <-chan time.Time
	if r.Button != nil {
		poll := r.Poll
		if poll <= 0 {
			poll = 100 * time.Millisecond
		}
		t := time.NewTicker(poll)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return wake.Reset, ctx.Err()
		case <-timer.C:
			return wake.Timer, nil
		case <-tick:
			if r.Button.Pressed() {
				return wake.Button, nil
			}
		}
	}
}

// Alarm is the real-time clock that keeps running across power-off. The
// wake time is computed on its own clock, since the host clock may be
// stale after a power cut.
type Alarm interface {
	Now() (time.Time, error)
	SetAlarm(t time.Time) error
}

// ErrPowerOff is returned when the power-off command fails; the caller may
// fall back to a responsive sleep.
var ErrPowerOff = errors.New("sleep: power off failed")

// LowPower arms the RTC alarm, leaves the wake marker and cuts power. The
// next cycle starts from a fresh boot, so a successful Sleep never returns
// before ctx ends.
type LowPower struct {
	Alarm    Alarm
	Marker   wake.Marker
	PowerOff []string

	run func(ctx context.Context, argv []string) error
}

// NewLowPower wires the real command runner.
func NewLowPower(alarm Alarm, marker wake.Marker, powerOff []string) *LowPower {
	return &LowPower{
		Alarm:    alarm,
		Marker:   marker,
		PowerOff: powerOff,
		run:      runCommand,
	}
}

func (l *LowPower) Sleep(ctx context.Context, d time.Duration) (wake.Cause, error) {
	now, err := l.Alarm.Now()
	if err != nil {
		return wake.Reset, fmt.Errorf("%w: read rtc: %v", ErrPowerOff, err)
	}
	wakeAt := now.Add(d).Truncate(time.Second)

	if err := l.Alarm.SetAlarm(wakeAt); err != nil {
		return wake.Reset, fmt.Errorf("%w: arm alarm: %v", ErrPowerOff, err)
	}
	if err := l.Marker.Arm(now, wakeAt); err != nil {
		return wake.Reset, fmt.Errorf("%w: write marker: %v", ErrPowerOff, err)
	}

	appLog.Info("powering off", "wake_at", wakeAt.UTC().Format(time.RFC3339), "sleep", d.String())
	if err := l.run(ctx, l.PowerOff); err != nil {
		// Still running: a later cold boot must not read this as a timer wake.
		l.Marker.Disarm()
		return wake.Reset, fmt.Errorf("%w: %v", ErrPowerOff, err)
	}

	// Power is going away; wait for the kernel to stop us.
	<-ctx.Done()
	return wake.Reset, ctx.Err()
}

// RunCommand executes argv, returning nil for an empty command.
func RunCommand(ctx context.Context, argv []string) error {
	return runCommand(ctx, argv)
}

func runCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", argv[0], err, string(out))
	}
	return nil
}
