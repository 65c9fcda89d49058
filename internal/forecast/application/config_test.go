package application_test

import (
	"os"
	"path/filepath"
	"testing"

	"payoutflow/internal/forecast/application"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("FORECAST_TIME_ZONE", "")
	t.Setenv("FORECAST_DAILY_STYLE_MAX_DAYS", "")
	t.Setenv("FORECAST_CLOSE_LAG_DAYS", "")
	t.Setenv("FORECAST_ACCURACY_LOOKBACK_DAYS", "")
	t.Setenv("FORECAST_DAILY_AT", "")
	t.Setenv("FORECAST_CONFIG", "")
	t.Setenv("TREND_BASE_URL", "")
	t.Setenv("TREND_HORIZON_DAYS", "")

	cfg, err := application.LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TimeZone != "America/Los_Angeles" {
		t.Fatalf("time zone default mismatch: %s", cfg.TimeZone)
	}
	if cfg.DailyStyleMaxDays != 3 || cfg.CloseLagDays != 3 || cfg.AccuracyLookbackDays != 7 {
		t.Fatalf("threshold defaults mismatch: %+v", cfg)
	}
	if cfg.Schedule.DailyAt != "02:00" {
		t.Fatalf("schedule default mismatch: %s", cfg.Schedule.DailyAt)
	}
	if cfg.TrendHorizonDays != 30 {
		t.Fatalf("trend horizon default mismatch: %d", cfg.TrendHorizonDays)
	}
}

func TestLoadConfig_YAMLOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.yaml")
	data := []byte("time_zone: UTC\ndaily_style_max_days: 5\nschedule:\n  daily_at: \"03:30\"\ntrend_base_url: http://trend.internal\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("FORECAST_TIME_ZONE", "America/New_York")
	t.Setenv("FORECAST_CONFIG", path)

	cfg, err := application.LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TimeZone != "UTC" {
		t.Fatalf("yaml should win over env: %s", cfg.TimeZone)
	}
	if cfg.DailyStyleMaxDays != 5 {
		t.Fatalf("daily style threshold mismatch: %d", cfg.DailyStyleMaxDays)
	}
	if cfg.Schedule.DailyAt != "03:30" {
		t.Fatalf("schedule mismatch: %s", cfg.Schedule.DailyAt)
	}
	if cfg.TrendBaseURL != "http://trend.internal" {
		t.Fatalf("trend base url mismatch: %s", cfg.TrendBaseURL)
	}
}

func TestLoadConfig_RejectsBadTimeZone(t *testing.T) {
	t.Setenv("FORECAST_CONFIG", "")
	t.Setenv("FORECAST_TIME_ZONE", "Mars/Olympus_Mons")
	if _, err := application.LoadConfig(); err == nil {
		t.Fatalf("expected time zone error")
	}
}
