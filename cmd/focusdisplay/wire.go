package main

import (
	"context"
	"fmt"
	"time"

	"focusdisplay/internal/app"
	"focusdisplay/internal/battery"
	"focusdisplay/internal/cache"
	"focusdisplay/internal/calendar"
	"focusdisplay/internal/clock"
	"focusdisplay/internal/config"
	"focusdisplay/internal/derive"
	"focusdisplay/internal/epd"
	"focusdisplay/internal/ics"
	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/render"
	"focusdisplay/internal/sleep"
	"focusdisplay/internal/wake"
	"focusdisplay/internal/web"
)

// The RTC both keeps time and raises the low-power wake.
var _ sleep.Alarm = (*clock.DS3231)(nil)

// wire opens the hardware and builds every collaborator named in conf. The
// returned cleanup releases the hardware and is safe to call twice.
func wire(ctx context.Context, conf *config.Config) (app.Deps, func(), error) {
	var closers []func() error
	done := false
	cleanup := func() {
		if done {
			return
		}
		done = true
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				appLog.Warn("cleanup failed", "err", err)
			}
		}
	}
	fail := func(err error) (app.Deps, func(), error) {
		cleanup()
		return app.Deps{}, nil, err
	}

	d := app.Deps{Config: conf}

	// Clock.
	var rtc *clock.DS3231
	var setters []clock.Setter
	if conf.Clock.Source == "ds3231" {
		r, err := clock.OpenDS3231(conf.Clock.I2CBus, uint16(conf.Clock.I2CAddr))
		if err != nil {
			return fail(err)
		}
		rtc = r
		closers = append(closers, rtc.Close)
		d.Clock = rtc
		setters = append(setters, rtc)
	} else {
		d.Clock = clock.System{}
	}
	if conf.Clock.SetSystemClock {
		setters = append(setters, clock.SystemSetter{})
	}
	d.NTP = clock.NewNTPSyncer(conf.Clock.NTPServer, 5*time.Second, setters...)

	// Wake button and cause sensor.
	var button wake.Switch
	if pin := conf.Sleep.WakeButtonPin; pin != "" {
		b, err := wake.NewGPIOButton(pin)
		if err != nil {
			appLog.Warn("wake button unavailable", "pin", pin, "err", err)
		} else {
			button = b
		}
	}
	marker := wake.Marker{Path: conf.Sleep.MarkerPath}
	d.Sensor = wake.MarkerSensor{Marker: marker, Button: button, Tolerance: conf.Sleep.WakeTolerance()}

	// Sleepers.
	responsive := sleep.Responsive{Button: button}
	d.Fallback = responsive
	lowPower := conf.Sleep.Mode == config.SleepLowPower
	if lowPower && rtc == nil {
		appLog.Warn("low_power sleep needs the ds3231 clock; using responsive sleep")
		lowPower = false
	}
	if lowPower {
		d.Sleeper = sleep.NewLowPower(rtc, marker, conf.Sleep.PowerOffCommand)
	} else {
		d.Sleeper = responsive
	}
	sched, err := sleep.NewScheduler(conf.Schedule)
	if err != nil {
		return fail(err)
	}
	d.Scheduler = sched

	// Cache, calendar, network.
	d.Store = cache.NewStore(cache.FileSlot{Path: conf.Cache.Path}, conf.Cache.Capacity, conf.Cache.TruncateTo)
	d.Calendar, err = openCalendar(conf.Calendar)
	if err != nil {
		return fail(err)
	}
	d.Network = app.NewProbeLink(conf.Network)
	if d.Calc, err = derive.NewCalculator(conf); err != nil {
		return fail(err)
	}

	// Display.
	d.Battery = battery.Open(conf.Battery)
	panel, err := epd.Open(conf.Display)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, panel.Close)

	var counter render.Counter = &render.MemCounter{}
	if lowPower {
		counter = render.FileCounter{Path: conf.Display.CounterPath}
	}

	browser := conf.Display.Renderer == config.RendererBrowser
	var srv *web.Server
	var baseURL string
	if conf.Web.Enabled || browser {
		b := panel.Bounds()
		srv = web.NewServer(conf.Web, b.Dx(), b.Dy(), d.Battery)
		addr, err := startWeb(ctx, srv)
		if err != nil {
			return fail(err)
		}
		baseURL = "http://" + addr
	}

	var sink render.Sink
	if srv != nil {
		sink = srv
	}
	painter, err := render.NewPainter(panel, conf.Display.FullRefreshEvery, counter, sink)
	if err != nil {
		return fail(err)
	}
	switch {
	case browser:
		d.Renderer = render.NewBrowser(panel, srv, baseURL, conf.Display.BrowserPath,
			conf.Display.FullRefreshEvery, counter, sink, painter)
	case srv != nil:
		d.Renderer = painter
		d.Preview = srv
	default:
		d.Renderer = painter
	}

	return d, cleanup, nil
}

func openCalendar(cc config.CalendarConfig) (calendar.Fetcher, error) {
	if cc.Provider == config.ProviderICS {
		return calendar.NewICS(cc, ics.NewFetcher(cc.ICSCacheDir, nil))
	}
	return calendar.NewGoogle(calendar.GoogleConfig{
		ClientID:     cc.ClientID,
		ClientSecret: cc.ClientSecret,
		RefreshToken: cc.RefreshToken,
		CalendarID:   cc.CalendarID,
		MaxResults:   cc.MaxResults,
	})
}

// startWeb runs the preview server until ctx ends and returns its address.
func startWeb(ctx context.Context, srv *web.Server) (string, error) {
	ready := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ctx, ready); err != nil {
			errCh <- err
		}
	}()
	select {
	case addr := <-ready:
		return addr, nil
	case err := <-errCh:
		return "", fmt.Errorf("web: %w", err)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
