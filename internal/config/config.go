package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and YAML load/save,
// including first-run config creation with 0600 permissions. Schema
// validation of the raw document lives in validate.go.

// CityConfig describes one world clock.
type CityConfig struct {
	// Label is printed above the clock, e.g. "BARCELONA".
	Label string `yaml:"label" json:"label"`
	// UTCOffset is the standard-time offset in hours (may be fractional).
	UTCOffset float64 `yaml:"utc_offset" json:"utc_offset"`
	// DST selects the approximate daylight rule: "eu", "us" or "none".
	DST string `yaml:"dst" json:"dst"`
	// Zone, if set, is an IANA zone name used instead of UTCOffset/DST.
	Zone string `yaml:"zone,omitempty" json:"zone,omitempty"`
}

// ScheduleConfig controls refresh cadence and the day-part flags.
type ScheduleConfig struct {
	WorkHoursStart   int `yaml:"work_hours_start" json:"work_hours_start"`
	WorkHoursEnd     int `yaml:"work_hours_end" json:"work_hours_end"`
	EveningStartHour int `yaml:"evening_start_hour" json:"evening_start_hour"`

	// WorkIntervalSeconds is the sleep between time-only updates during work hours.
	WorkIntervalSeconds int `yaml:"work_interval_seconds" json:"work_interval_seconds"`
	// OffHoursIntervalSeconds is the sleep outside work hours and on weekends.
	OffHoursIntervalSeconds int `yaml:"off_hours_interval_seconds" json:"off_hours_interval_seconds"`
	// OffHoursCron, if set, replaces OffHoursIntervalSeconds with the time
	// until the next tick of this standard cron expression (e.g. "0 * * * *").
	OffHoursCron string `yaml:"off_hours_cron" json:"off_hours_cron"`

	// APIRefreshMinutes is the maximum cache age before a calendar refetch.
	APIRefreshMinutes int `yaml:"api_refresh_minutes" json:"api_refresh_minutes"`

	// ForceWorkHours makes every hour of every day count as work hours.
	ForceWorkHours bool `yaml:"force_work_hours" json:"force_work_hours"`
}

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	URL  string `yaml:"url" json:"url"`
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// CalendarConfig selects and parameterizes the calendar collaborator.
type CalendarConfig struct {
	// Provider is "google" or "ics".
	Provider       string `yaml:"provider" json:"provider"`
	LookaheadDays  int    `yaml:"lookahead_days" json:"lookahead_days"`
	MaxResults     int    `yaml:"max_results" json:"max_results"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`

	// Google Calendar (OAuth refresh-token flow).
	CalendarID   string `yaml:"calendar_id" json:"calendar_id"`
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	RefreshToken string `yaml:"refresh_token" json:"refresh_token"`

	// SelfEmail hides ICS events this attendee declined.
	SelfEmail string `yaml:"self_email" json:"self_email"`

	// ICS subscriptions.
	ICS         []ICSConfig `yaml:"ics" json:"ics"`
	ICSCacheDir string      `yaml:"ics_cache_dir" json:"ics_cache_dir"`
}

// CacheConfig locates the persisted sync cache.
type CacheConfig struct {
	Path       string `yaml:"path" json:"path"`
	Capacity   int    `yaml:"capacity" json:"capacity"`
	TruncateTo int    `yaml:"truncate_to" json:"truncate_to"`
}

// ClockConfig selects the time source and NTP behaviour.
type ClockConfig struct {
	// Source is "system" or "ds3231".
	Source         string `yaml:"source" json:"source"`
	I2CBus         string `yaml:"i2c_bus" json:"i2c_bus"`
	I2CAddr        int    `yaml:"i2c_addr" json:"i2c_addr"`
	NTPServer      string `yaml:"ntp_server" json:"ntp_server"`
	NTPSyncMinutes int    `yaml:"ntp_sync_minutes" json:"ntp_sync_minutes"`
	SetSystemClock bool   `yaml:"set_system_clock" json:"set_system_clock"`
}

// NetworkConfig controls connectivity acquisition for full refreshes.
type NetworkConfig struct {
	ProbeAddress   string   `yaml:"probe_address" json:"probe_address"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds"`
	UpCommand      []string `yaml:"up_command" json:"up_command"`
	DownCommand    []string `yaml:"down_command" json:"down_command"`
}

// SleepConfig selects the sleep mechanism.
type SleepConfig struct {
	// Mode is "low_power" (RTC alarm + power off) or "responsive" (in-process).
	Mode                string   `yaml:"mode" json:"mode"`
	RetryBackoffSeconds int      `yaml:"retry_backoff_seconds" json:"retry_backoff_seconds"`
	WakeButtonPin       string   `yaml:"wake_button_pin" json:"wake_button_pin"`
	MarkerPath          string   `yaml:"marker_path" json:"marker_path"`
	PowerOffCommand     []string `yaml:"power_off_command" json:"power_off_command"`
	// WakeToleranceSeconds is how early a timer wake may arrive and still
	// count as the scheduled one.
	WakeToleranceSeconds int `yaml:"wake_tolerance_seconds" json:"wake_tolerance_seconds"`
}

// DisplayConfig selects the panel and how frames are produced.
type DisplayConfig struct {
	// Panel is "waveshare_7in5_v2", "waveshare_2in13_v4" or "png".
	Panel string `yaml:"panel" json:"panel"`
	// Renderer is "native" (Go drawing) or "browser" (chromedp capture of /display).
	Renderer    string `yaml:"renderer" json:"renderer"`
	SPIPort     string `yaml:"spi_port" json:"spi_port"`
	PreviewPath string `yaml:"preview_path" json:"preview_path"`
	Width       int    `yaml:"width" json:"width"`
	Height      int    `yaml:"height" json:"height"`

	// FullRefreshEvery forces a full panel update after this many partial
	// updates within one process.
	FullRefreshEvery int `yaml:"full_refresh_every" json:"full_refresh_every"`
	// CounterPath keeps the partial-update count across power-off.
	CounterPath string `yaml:"counter_path" json:"counter_path"`
	// BrowserPath is the Chromium binary for the browser renderer.
	BrowserPath string `yaml:"browser_path" json:"browser_path"`
}

// BatteryConfig selects the battery gauge.
type BatteryConfig struct {
	// Source is "pisugar" or "mock".
	Source      string `yaml:"source" json:"source"`
	I2CBus      string `yaml:"i2c_bus" json:"i2c_bus"`
	I2CAddr     int    `yaml:"i2c_addr" json:"i2c_addr"`
	MockPercent int    `yaml:"mock_percent" json:"mock_percent"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the preview server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// WebConfig controls the preview server (responsive mode and browser renderer).
type WebConfig struct {
	Enabled   bool             `yaml:"enabled" json:"enabled"`
	Listen    string           `yaml:"listen" json:"listen"`
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	LogLevel string         `yaml:"log_level" json:"log_level"`
	Cities   []CityConfig   `yaml:"cities" json:"cities"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Clock    ClockConfig    `yaml:"clock" json:"clock"`
	Network  NetworkConfig  `yaml:"network" json:"network"`
	Sleep    SleepConfig    `yaml:"sleep" json:"sleep"`
	Display  DisplayConfig  `yaml:"display" json:"display"`
	Battery  BatteryConfig  `yaml:"battery" json:"battery"`
	Web      WebConfig      `yaml:"web" json:"web"`
}

const (
	SleepLowPower   = "low_power"
	SleepResponsive = "responsive"

	ProviderGoogle = "google"
	ProviderICS    = "ics"

	RendererNative  = "native"
	RendererBrowser = "browser"
)

func defaultCities() []CityConfig {
	return []CityConfig{
		{Label: "BARCELONA", UTCOffset: 1, DST: "eu"},
		{Label: "NEW YORK", UTCOffset: -5, DST: "us"},
		{Label: "SAN FRAN", UTCOffset: -8, DST: "us"},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		LogLevel: "info",
		Cities:   defaultCities(),
		Calendar: CalendarConfig{
			Provider:   ProviderGoogle,
			CalendarID: "primary",
			ICS:        []ICSConfig{},
		},
		Web: WebConfig{Listen: "127.0.0.1:8080"},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if len(c.Cities) == 0 {
		c.Cities = defaultCities()
	}

	s := &c.Schedule
	// 0..0 is not a usable work window; treat it as unset.
	if s.WorkHoursStart == 0 && s.WorkHoursEnd == 0 {
		s.WorkHoursStart, s.WorkHoursEnd = 8, 20
	}
	if s.EveningStartHour <= 0 {
		s.EveningStartHour = 19
	}
	if s.WorkIntervalSeconds <= 0 {
		s.WorkIntervalSeconds = 60
	}
	if s.OffHoursIntervalSeconds <= 0 {
		s.OffHoursIntervalSeconds = 60 * 60
	}
	if s.APIRefreshMinutes <= 0 {
		s.APIRefreshMinutes = 60
	}
	s.OffHoursCron = strings.TrimSpace(s.OffHoursCron)

	cal := &c.Calendar
	switch cal.Provider {
	case ProviderGoogle, ProviderICS:
	default:
		cal.Provider = ProviderGoogle
	}
	if cal.LookaheadDays <= 0 {
		cal.LookaheadDays = 2
	}
	if cal.MaxResults <= 0 {
		cal.MaxResults = 10
	}
	if cal.TimeoutSeconds <= 0 {
		cal.TimeoutSeconds = 15
	}
	if cal.CalendarID == "" {
		cal.CalendarID = "primary"
	}
	if cal.ICS == nil {
		cal.ICS = []ICSConfig{}
	}
	if cal.ICSCacheDir == "" {
		cal.ICSCacheDir = "/var/lib/focusdisplay/ics-cache"
	}

	if c.Cache.Path == "" {
		c.Cache.Path = "/var/lib/focusdisplay/sync.cache"
	}
	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = 8 * 1024
	}
	if c.Cache.TruncateTo <= 0 {
		c.Cache.TruncateTo = 3
	}

	if c.Clock.Source == "" {
		c.Clock.Source = "system"
	}
	if c.Clock.I2CAddr == 0 {
		c.Clock.I2CAddr = 0x68
	}
	if c.Clock.NTPServer == "" {
		c.Clock.NTPServer = "pool.ntp.org"
	}
	if c.Clock.NTPSyncMinutes <= 0 {
		c.Clock.NTPSyncMinutes = 60
	}

	if c.Network.ProbeAddress == "" {
		c.Network.ProbeAddress = "www.googleapis.com:443"
	}
	if c.Network.TimeoutSeconds <= 0 {
		c.Network.TimeoutSeconds = 30
	}
	if c.Network.UpCommand == nil {
		c.Network.UpCommand = []string{}
	}
	if c.Network.DownCommand == nil {
		c.Network.DownCommand = []string{}
	}

	switch c.Sleep.Mode {
	case SleepLowPower, SleepResponsive:
	default:
		c.Sleep.Mode = SleepLowPower
	}
	if c.Sleep.RetryBackoffSeconds <= 0 {
		c.Sleep.RetryBackoffSeconds = 60
	}
	if c.Sleep.MarkerPath == "" {
		c.Sleep.MarkerPath = "/var/lib/focusdisplay/wake.json"
	}
	if len(c.Sleep.PowerOffCommand) == 0 {
		c.Sleep.PowerOffCommand = []string{"/sbin/poweroff"}
	}
	if c.Sleep.WakeToleranceSeconds <= 0 {
		c.Sleep.WakeToleranceSeconds = 90
	}

	if c.Display.Panel == "" {
		c.Display.Panel = "waveshare_7in5_v2"
	}
	switch c.Display.Renderer {
	case RendererNative, RendererBrowser:
	default:
		c.Display.Renderer = RendererNative
	}
	if c.Display.PreviewPath == "" {
		c.Display.PreviewPath = "/var/lib/focusdisplay/preview.png"
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		c.Display.Width, c.Display.Height = 800, 480
	}
	if c.Display.FullRefreshEvery <= 0 {
		c.Display.FullRefreshEvery = 30
	}
	if c.Display.CounterPath == "" {
		c.Display.CounterPath = "/var/lib/focusdisplay/partials"
	}

	if c.Battery.Source == "" {
		c.Battery.Source = "pisugar"
	}
	if c.Battery.I2CAddr == 0 {
		c.Battery.I2CAddr = 0x57
	}
	if c.Battery.MockPercent <= 0 || c.Battery.MockPercent > 100 {
		c.Battery.MockPercent = 100
	}

	if c.Web.Listen == "" {
		c.Web.Listen = "127.0.0.1:8080"
	}
}

// ApplyDev switches to development behaviour: responsive sleep, forced work
// hours and short refresh intervals so changes show up quickly.
func (c *Config) ApplyDev() {
	c.Sleep.Mode = SleepResponsive
	c.Schedule.ForceWorkHours = true
	c.Schedule.WorkIntervalSeconds = 60
	c.Schedule.OffHoursIntervalSeconds = 60
	c.Schedule.APIRefreshMinutes = 2
	c.Clock.NTPSyncMinutes = 2
	c.Web.Enabled = true
}

// Durations derived from the integer fields.

func (s ScheduleConfig) WorkInterval() time.Duration {
	return time.Duration(s.WorkIntervalSeconds) * time.Second
}

func (s ScheduleConfig) OffHoursInterval() time.Duration {
	return time.Duration(s.OffHoursIntervalSeconds) * time.Second
}

func (s SleepConfig) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffSeconds) * time.Second
}

func (s SleepConfig) WakeTolerance() time.Duration {
	return time.Duration(s.WakeToleranceSeconds) * time.Second
}

func (n NetworkConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

func (c CalendarConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ClockConfig) NTPInterval() time.Duration {
	return time.Duration(c.NTPSyncMinutes) * time.Minute
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, write a default config with 0600 perms
//     and return it.
//   - Otherwise validate the raw document against the embedded schema,
//     unmarshal into Config and normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := Validate(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data next to path and renames it into place so a
// power cut never leaves a half-written file behind.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
