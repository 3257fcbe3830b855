package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairscan.yaml")
	body := `
screening:
  min_daily_quote_volume: 5000000
  reference_currency: USDC
strategy:
  entry_z_score: 2.5
  analysis_throttle: 30s
postgres:
  dsn: postgres://db:5432/test
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5_000_000.0, cfg.Screening.MinDailyQuoteVolume)
	assert.Equal(t, "USDC", cfg.Screening.ReferenceCurrency)
	assert.Equal(t, 2.5, cfg.Strategy.EntryZScore)
	assert.Equal(t, 30*time.Second, cfg.Strategy.AnalysisThrottle)
	assert.Equal(t, "postgres://db:5432/test", cfg.Postgres.DSN)

	// Untouched fields keep their defaults.
	assert.Equal(t, 1000, cfg.Screening.CointegrationBars)
	assert.Equal(t, 4.0, cfg.Strategy.StopLossZScore)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("screening:\n  cointegration_bars: 50\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "cointegration_bars")
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"short cointegration window",
			func(c *Config) { c.Screening.CointegrationBars = 99 },
			"cointegration_bars",
		},
		{
			"short long-timeframe window",
			func(c *Config) { c.Screening.LongTimeframeBars = 50 },
			"long_timeframe_bars",
		},
		{
			"rolling window too large",
			func(c *Config) { c.Screening.RollingCorrWindow = 2000 },
			"rolling_corr_window",
		},
		{
			"empty correlation band",
			func(c *Config) { c.Screening.MinCorrelationByPrices = 0.999 },
			"correlation band",
		},
		{
			"empty half-life band",
			func(c *Config) { c.Screening.MinHalfLifeDuration = 7 * time.Hour },
			"half-life band",
		},
		{
			"entry below exit",
			func(c *Config) { c.Strategy.ExitZScore = 3 },
			"entry_z_score",
		},
		{
			"stop below entry",
			func(c *Config) { c.Strategy.StopLossZScore = 1.5 },
			"stop_loss_z_score",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestHalfLifeBandBars(t *testing.T) {
	s := ScreeningConfig{
		MinHalfLifeDuration: 30 * time.Minute,
		MaxHalfLifeDuration: 6 * time.Hour,
	}

	minBars, maxBars := s.HalfLifeBandBars(60_000)
	assert.Equal(t, 30.0, minBars)
	assert.Equal(t, 360.0, maxBars)

	// The upper bound rounds up on partial bars.
	minBars, maxBars = s.HalfLifeBandBars(7 * 60_000)
	assert.Equal(t, 4.0, minBars)
	assert.Equal(t, 52.0, maxBars)
}
