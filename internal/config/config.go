package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const appName = "claude-monitor"

var (
	ErrInvalidStartDay = errors.New("start day must be between 1 and 28")
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrInvalidQuota    = errors.New("total monthly sessions must be positive")
)

// CommonTimezones is shown next to a timezone validation error.
var CommonTimezones = []string{"UTC", "America/New_York", "Europe/London", "Asia/Tokyo", "Australia/Sydney"}

type AlertConfig struct {
	TimeRemainingMinutes int `json:"time_remaining_alert_minutes"`
	InactivityMinutes    int `json:"inactivity_alert_minutes"`
}

type FetchConfig struct {
	Binary                 string `json:"ccusage_binary"`
	IntervalSeconds        int    `json:"fetch_interval_seconds"`
	IdleIntervalSeconds    int    `json:"idle_fetch_interval_seconds"`
	TimeoutSeconds         int    `json:"fetch_timeout_seconds"`
	IncrementalOverlapDays int    `json:"incremental_overlap_days"`
	IncrementalWindowDays  int    `json:"incremental_window_days"`
	ClaudeDataDir          string `json:"claude_data_dir"`
}

type Config struct {
	TotalMonthlySessions   int         `json:"total_monthly_sessions"`
	RefreshIntervalSeconds int         `json:"refresh_interval_seconds"`
	StartDay               int         `json:"start_day"`
	Timezone               string      `json:"timezone"`
	DefaultTokenCeiling    int64       `json:"default_token_ceiling"`
	MetricsAddr            string      `json:"metrics_addr"`
	Alerts                 AlertConfig `json:"alerts"`
	Fetch                  FetchConfig `json:"fetch"`

	// Recalculate forces a full history rescan on startup. CLI only.
	Recalculate bool `json:"-"`

	location *time.Location
}

func DefaultConfig() Config {
	return Config{
		TotalMonthlySessions:   50,
		RefreshIntervalSeconds: 1,
		StartDay:               1,
		Timezone:               "Europe/Warsaw",
		DefaultTokenCeiling:    35000,
		Alerts: AlertConfig{
			TimeRemainingMinutes: 30,
			InactivityMinutes:    10,
		},
		Fetch: FetchConfig{
			Binary:                 "ccusage",
			IntervalSeconds:        10,
			IdleIntervalSeconds:    60,
			TimeoutSeconds:         45,
			IncrementalOverlapDays: 2,
			IncrementalWindowDays:  7,
			ClaudeDataDir:          defaultClaudeDataDir(),
		},
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

// StatePath is the persisted usage state written by the reconciliation engine.
func StatePath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LedgerPath() string {
	return filepath.Join(ConfigDir(), "sessions.db")
}

func DebugLogPath() string {
	return filepath.Join(ConfigDir(), "debug.log")
}

func defaultClaudeDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude", "projects")
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.TotalMonthlySessions <= 0 {
		c.TotalMonthlySessions = def.TotalMonthlySessions
	}
	if c.RefreshIntervalSeconds <= 0 {
		c.RefreshIntervalSeconds = def.RefreshIntervalSeconds
	}
	if c.StartDay == 0 {
		c.StartDay = def.StartDay
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = def.Timezone
	}
	if c.DefaultTokenCeiling <= 0 {
		c.DefaultTokenCeiling = def.DefaultTokenCeiling
	}
	if c.Alerts.TimeRemainingMinutes <= 0 {
		c.Alerts.TimeRemainingMinutes = def.Alerts.TimeRemainingMinutes
	}
	if c.Alerts.InactivityMinutes <= 0 {
		c.Alerts.InactivityMinutes = def.Alerts.InactivityMinutes
	}
	if strings.TrimSpace(c.Fetch.Binary) == "" {
		c.Fetch.Binary = def.Fetch.Binary
	}
	if c.Fetch.IntervalSeconds <= 0 {
		c.Fetch.IntervalSeconds = def.Fetch.IntervalSeconds
	}
	if c.Fetch.IdleIntervalSeconds < c.Fetch.IntervalSeconds {
		c.Fetch.IdleIntervalSeconds = max(def.Fetch.IdleIntervalSeconds, c.Fetch.IntervalSeconds)
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = def.Fetch.TimeoutSeconds
	}
	if c.Fetch.IncrementalOverlapDays <= 0 {
		c.Fetch.IncrementalOverlapDays = def.Fetch.IncrementalOverlapDays
	}
	if c.Fetch.IncrementalWindowDays <= 0 {
		c.Fetch.IncrementalWindowDays = def.Fetch.IncrementalWindowDays
	}
	if strings.TrimSpace(c.Fetch.ClaudeDataDir) == "" {
		c.Fetch.ClaudeDataDir = def.Fetch.ClaudeDataDir
	}
}

// Validate checks the values that are fatal at startup and resolves the
// display timezone.
func (c *Config) Validate() error {
	if c.StartDay < 1 || c.StartDay > 28 {
		return fmt.Errorf("%w (got %d)", ErrInvalidStartDay, c.StartDay)
	}
	if c.TotalMonthlySessions <= 0 {
		return ErrInvalidQuota
	}
	if strings.TrimSpace(c.Timezone) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidTimezone, c.Timezone, err)
	}
	c.location = loc
	return nil
}

// Location returns the validated display timezone, or UTC before Validate.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

func (c Config) FetchInterval() time.Duration {
	return time.Duration(c.Fetch.IntervalSeconds) * time.Second
}

func (c Config) IdleFetchInterval() time.Duration {
	return time.Duration(c.Fetch.IdleIntervalSeconds) * time.Second
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

func (c Config) TimeRemainingThreshold() time.Duration {
	return time.Duration(c.Alerts.TimeRemainingMinutes) * time.Minute
}

func (c Config) InactivityThreshold() time.Duration {
	return time.Duration(c.Alerts.InactivityMinutes) * time.Minute
}

// EnsureFile writes the default settings to path when no file exists there
// yet, so users have a template to edit. It reports whether it created one.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("checking config: %w", err)
	}
	if err := SaveTo(path, DefaultConfig()); err != nil {
		return false, err
	}
	return true, nil
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
