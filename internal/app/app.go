// Package app runs the wake, refresh, render and sleep cycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"focusdisplay/internal/battery"
	"focusdisplay/internal/cache"
	"focusdisplay/internal/calendar"
	"focusdisplay/internal/clock"
	"focusdisplay/internal/config"
	"focusdisplay/internal/derive"
	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/model"
	"focusdisplay/internal/refresh"
	"focusdisplay/internal/render"
	"focusdisplay/internal/sleep"
	"focusdisplay/internal/tz"
	"focusdisplay/internal/wake"
)

// ntpTimeout bounds a single clock sync.
const ntpTimeout = 5 * time.Second

// Error screen messages.
const (
	msgWiFi     = "WiFi failed"
	msgCalendar = "Calendar sync failed"
)

// Store is the persisted sync cache.
type Store interface {
	Load() (cache.State, bool)
	Save(st cache.State) error
}

// TimeSyncer corrects the device clock and returns the corrected time.
type TimeSyncer interface {
	Sync(ctx context.Context) (time.Time, error)
}

// Publisher receives every rendered state, e.g. the preview server.
type Publisher interface {
	Publish(ds model.DisplayState)
}

// Deps are the collaborators of one App. NTP, Battery, Preview and
// Fallback may be nil.
type Deps struct {
	Config    *config.Config
	Clock     clock.Source
	NTP       TimeSyncer
	Sensor    wake.Sensor
	Store     Store
	Calendar  calendar.Fetcher
	Network   Link
	Calc      *derive.Calculator
	Battery   battery.Reader
	Renderer  render.Renderer
	Scheduler *sleep.Scheduler
	Sleeper   sleep.Sleeper
	// Fallback takes over when Sleeper cannot power the device off.
	Fallback sleep.Sleeper
	Preview  Publisher
}

// App owns the cycle.
type App struct {
	Deps
}

// New checks that every required collaborator is present.
func New(d Deps) (*App, error) {
	missing := func(name string) error { return fmt.Errorf("app: %s is required", name) }
	switch {
	case d.Config == nil:
		return nil, missing("config")
	case d.Clock == nil:
		return nil, missing("clock")
	case d.Sensor == nil:
		return nil, missing("wake sensor")
	case d.Store == nil:
		return nil, missing("cache store")
	case d.Calendar == nil:
		return nil, missing("calendar")
	case d.Network == nil:
		return nil, missing("network link")
	case d.Calc == nil:
		return nil, missing("calculator")
	case d.Renderer == nil:
		return nil, missing("renderer")
	case d.Scheduler == nil:
		return nil, missing("scheduler")
	case d.Sleeper == nil:
		return nil, missing("sleeper")
	}
	return &App{Deps: d}, nil
}

// Outcome summarizes one cycle.
type Outcome struct {
	Cause    wake.Cause
	Decision refresh.Decision
	// Synced is true when fresh calendar data was fetched and used.
	Synced bool
	// Failed is true when the error screen was shown instead of a frame.
	Failed bool
	Sleep  time.Duration
	State  model.DisplayState
}

// Run senses why the device woke and then cycles until ctx ends. With once
// set it returns after the first cycle without sleeping.
func (a *App) Run(ctx context.Context, once bool) error {
	now, err := a.now()
	if err != nil {
		return err
	}
	reasons := a.Sensor.Sense(now)
	cause := wake.Classify(reasons.Reset, reasons.Source)
	appLog.Info("woke", "cause", cause.String(), "reset", reasons.Reset.String(), "source", reasons.Source.String())

	for {
		out, err := a.Cycle(ctx, cause)
		if err != nil {
			return err
		}
		if once {
			return nil
		}

		cause, err = a.sleep(ctx, out.Sleep)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (a *App) sleep(ctx context.Context, d time.Duration) (wake.Cause, error) {
	appLog.Info("sleeping", "duration", d.String())
	cause, err := a.Sleeper.Sleep(ctx, d)
	if err == nil || ctx.Err() != nil {
		return cause, err
	}
	if errors.Is(err, sleep.ErrPowerOff) && a.Fallback != nil {
		appLog.Error("low-power sleep failed; staying awake", err)
		return a.Fallback.Sleep(ctx, d)
	}
	return cause, fmt.Errorf("app: sleep: %w", err)
}

// Cycle performs one wake: decide, refresh when needed, derive, render and
// compute the next sleep. Collaborator failures are handled inside; an
// error is returned only when the clock cannot be read.
func (a *App) Cycle(ctx context.Context, cause wake.Cause) (Outcome, error) {
	now, err := a.now()
	if err != nil {
		return Outcome{}, err
	}

	st, cached := a.Store.Load()
	elapsed := refresh.Infinite
	if cached {
		elapsed = refresh.ElapsedMinutes(st.LastAPISync, now, a.Calc.Local)
	}
	decision := refresh.Decide(cause, cached, elapsed, a.Config.Schedule.APIRefreshMinutes)
	out := Outcome{Cause: cause, Decision: decision}

	kv := []any{"cause", cause.String(), "decision", decision.String(), "cache", cached}
	if elapsed != refresh.Infinite {
		kv = append(kv, "elapsed_min", elapsed)
	}
	appLog.Info("cycle", kv...)

	if decision == refresh.FullRefresh {
		fresh, err := a.sync(ctx, st, now)
		switch {
		case err == nil:
			st, out.Synced = fresh, true
		case !cached:
			return a.fail(ctx, out, err), nil
		default:
			appLog.Warn("refresh failed; showing cached data", "err", err)
		}
		// Network work and the clock sync both move the clock.
		if now, err = a.now(); err != nil {
			return out, err
		}
	}

	ds := a.Calc.State(now, st, refresh.Elapsed(st.LastAPISync, now))
	ds.BatteryPct = battery.Percent(ctx, a.Battery)
	// A degraded refresh shows the same cached data a time-only cycle would,
	// so only fresh data earns a full panel update.
	ds.ForceFull = out.Synced
	out.State = ds

	if err := a.Renderer.Render(ctx, ds); err != nil {
		appLog.Error("render failed", err)
	}
	if a.Preview != nil {
		a.Preview.Publish(ds)
	}

	if now, err = a.now(); err != nil {
		return out, err
	}
	local := a.Calc.LocalReading(now)
	out.Sleep = a.Scheduler.Duration(a.Calc.WorkHours(local), tz.Local(now, a.Calc.Local))
	appLog.Info("cycle done",
		"decision", decision.String(),
		"synced", out.Synced,
		"minutes_until", minutesField(ds.Next.MinutesUntil),
		"evening", ds.EveningMode,
		"work_hours", ds.WorkHours,
		"sleep", out.Sleep.String(),
	)
	return out, nil
}

// sync runs the full-refresh path and persists the result. prev is only
// consulted for the NTP timestamp; it is never written on failure.
func (a *App) sync(ctx context.Context, prev cache.State, now time.Time) (cache.State, error) {
	if err := a.Network.Up(ctx); err != nil {
		return cache.State{}, err
	}
	defer a.Network.Down(ctx)

	next := cache.State{LastNTPSync: prev.LastNTPSync}
	if a.ntpDue(prev.LastNTPSync, now) {
		nctx, cancel := context.WithTimeout(ctx, ntpTimeout)
		t, err := a.NTP.Sync(nctx)
		cancel()
		if err != nil {
			appLog.Warn("clock sync failed; keeping current time", "err", err)
		} else {
			now = t
			next.LastNTPSync = t
		}
	}

	cc := a.Config.Calendar
	fctx, cancel := context.WithTimeout(ctx, cc.Timeout())
	events, err := a.Calendar.FetchEvents(fctx, now, now.AddDate(0, 0, cc.LookaheadDays))
	cancel()
	if err != nil {
		return cache.State{}, err
	}

	next.Events = events
	next.LastAPISync = now
	derive.Apply(&next, derive.Summarize(events, now, a.Calc.Local))

	if err := a.Store.Save(next); err != nil {
		// The fetched data still drives this cycle; the next wake refetches.
		appLog.Error("cache save failed", err, "events", len(events))
	}
	appLog.Info("calendar synced", "events", len(events), "minutes_until", minutesField(next.MinutesUntilNext))
	return next, nil
}

func (a *App) ntpDue(last, now time.Time) bool {
	if a.NTP == nil {
		return false
	}
	return last.IsZero() || now.Before(last) || now.Sub(last) >= a.Config.Clock.NTPInterval()
}

// fail shows the error screen and schedules the retry.
func (a *App) fail(ctx context.Context, out Outcome, cause error) Outcome {
	msg := msgCalendar
	if errors.Is(cause, ErrConnectivity) {
		msg = msgWiFi
	}
	appLog.Error("refresh failed with no cache", cause, "screen", msg)
	if err := a.Renderer.RenderError(ctx, msg); err != nil {
		appLog.Error("error screen failed", err)
	}
	out.Failed = true
	out.Sleep = a.Config.Sleep.RetryBackoff()
	return out
}

func (a *App) now() (time.Time, error) {
	t, err := a.Clock.Now()
	if err != nil {
		return time.Time{}, fmt.Errorf("app: read clock: %w", err)
	}
	return t, nil
}

func minutesField(m *int) any {
	if m == nil {
		return "none"
	}
	return *m
}
