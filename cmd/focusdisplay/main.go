package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focusdisplay/internal/app"
	"focusdisplay/internal/config"
	appLog "focusdisplay/internal/log"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	once       bool
	dev        bool
	logLevel   string
}

func main() {
	appLog.Info("focusdisplay starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.dev {
		conf.ApplyDev()
	}
	level := conf.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	appLog.Info("effective config",
		"provider", conf.Calendar.Provider,
		"cities", len(conf.Cities),
		"work_hours_start", conf.Schedule.WorkHoursStart,
		"work_hours_end", conf.Schedule.WorkHoursEnd,
		"api_refresh_minutes", conf.Schedule.APIRefreshMinutes,
		"sleep_mode", conf.Sleep.Mode,
		"panel", conf.Display.Panel,
		"renderer", conf.Display.Renderer,
		"clock", conf.Clock.Source,
		"web", conf.Web.Enabled,
		"once", flags.once,
		"dev", flags.dev,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	deps, cleanup, err := wire(ctx, conf)
	if err != nil {
		appLog.Error("failed to set up device", err)
		os.Exit(1)
	}
	defer cleanup()

	a, err := app.New(deps)
	if err != nil {
		appLog.Error("failed to build app", err)
		os.Exit(1)
	}
	if err := a.Run(ctx, flags.once); err != nil {
		appLog.Error("run failed", err)
		cleanup()
		os.Exit(1)
	}

	// Let the preview server finish its shutdown.
	time.Sleep(100 * time.Millisecond)
	appLog.Info("focusdisplay exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/focusdisplay/config.yaml", "Path to config file")
	flag.BoolVar(&cfg.once, "once", false, "Run one wake cycle and exit without sleeping")
	flag.BoolVar(&cfg.dev, "dev", false, "Development mode: responsive sleep, forced work hours, short intervals")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	flag.Parse()

	return cfg
}
