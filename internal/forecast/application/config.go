package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ScheduleConfig defines the daily reconciliation schedule.
type ScheduleConfig struct {
	DailyAt string `yaml:"daily_at"`
}

// Config defines forecasting engine configuration.
type Config struct {
	// TimeZone anchors the operational day. "Yesterday" must match the
	// marketplace's settlement-close timestamp semantics, so the anchor is
	// never UTC-naive.
	TimeZone string `yaml:"time_zone"`
	// DailyStyleMaxDays separates daily-style settlements, which participate
	// in rollover and forecasting, from longer invoiced cycles, which are
	// recorded but never redistributed.
	DailyStyleMaxDays    int            `yaml:"daily_style_max_days"`
	CloseLagDays         int            `yaml:"close_lag_days"`
	AccuracyLookbackDays int            `yaml:"accuracy_lookback_days"`
	Schedule             ScheduleConfig `yaml:"schedule"`
	TrendBaseURL         string         `yaml:"trend_base_url"`
	TrendHorizonDays     int            `yaml:"trend_horizon_days"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		TimeZone:             getenvDefault("FORECAST_TIME_ZONE", "America/Los_Angeles"),
		DailyStyleMaxDays:    getenvIntDefault("FORECAST_DAILY_STYLE_MAX_DAYS", 3),
		CloseLagDays:         getenvIntDefault("FORECAST_CLOSE_LAG_DAYS", 3),
		AccuracyLookbackDays: getenvIntDefault("FORECAST_ACCURACY_LOOKBACK_DAYS", 7),
		TrendBaseURL:         os.Getenv("TREND_BASE_URL"),
		TrendHorizonDays:     getenvIntDefault("TREND_HORIZON_DAYS", 30),
	}

	if path := os.Getenv("FORECAST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Schedule.DailyAt == "" {
		cfg.Schedule.DailyAt = getenvDefault("FORECAST_DAILY_AT", "02:00")
	}
	if cfg.DailyStyleMaxDays <= 0 {
		return cfg, errors.New("forecast config: daily style threshold must be positive")
	}
	if cfg.CloseLagDays <= 0 {
		cfg.CloseLagDays = 3
	}
	if cfg.AccuracyLookbackDays <= 0 {
		cfg.AccuracyLookbackDays = 7
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Location resolves the anchor time zone.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.TimeZone)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
