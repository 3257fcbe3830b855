package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full pairscan configuration.
type Config struct {
	Screening ScreeningConfig `yaml:"screening"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
}

// ScreeningConfig holds the thresholds of the pair-screening cascade.
// The filter order is fixed (cheapest and most selective first); these
// values only tune the bands.
type ScreeningConfig struct {
	// Universe filter
	MinDailyQuoteVolume float64 `yaml:"min_daily_quote_volume"` // in the reference currency
	ReferenceCurrency   string  `yaml:"reference_currency"`

	// Candle windows
	ShortTimeframeBars int `yaml:"short_timeframe_bars"` // 1m window
	LongTimeframeBars  int `yaml:"long_timeframe_bars"`  // 5m window

	// Stage windows (bars of the short timeframe)
	CorrelationBars      int `yaml:"correlation_bars"`
	SpreadVolatilityBars int `yaml:"spread_volatility_bars"`
	RollingCorrBars      int `yaml:"rolling_corr_bars"`
	RollingCorrWindow    int `yaml:"rolling_corr_window"`
	CointegrationBars    int `yaml:"cointegration_bars"`
	HalfLifeBars         int `yaml:"half_life_bars"`
	SpreadStatsBars      int `yaml:"spread_stats_bars"`

	// Correlation bands: out-of-band rejects both unrelated and
	// near-duplicate pairs.
	MinCorrelationByPrices  float64 `yaml:"min_correlation_by_prices"`
	MaxCorrelationByPrices  float64 `yaml:"max_correlation_by_prices"`
	MinCorrelationByReturns float64 `yaml:"min_correlation_by_returns"`
	MaxCorrelationByReturns float64 `yaml:"max_correlation_by_returns"`

	// Spread volatility band, percent per bar
	MinSpreadVolatilityPct float64 `yaml:"min_spread_volatility_pct"`
	MaxSpreadVolatilityPct float64 `yaml:"max_spread_volatility_pct"`

	// Rolling return-correlation stability
	MinRollingCorrMean      float64 `yaml:"min_rolling_corr_mean"`
	RollingCorrThreshold    float64 `yaml:"rolling_corr_threshold"`
	MinRollingCorrOverRatio float64 `yaml:"min_rolling_corr_over_ratio"`

	// Cointegration
	MaxCointegrationPValue float64 `yaml:"max_cointegration_p_value"`

	// Half-life band, expressed as durations and converted to bars of
	// the short timeframe.
	MinHalfLifeDuration time.Duration `yaml:"min_half_life_duration"`
	MaxHalfLifeDuration time.Duration `yaml:"max_half_life_duration"`

	// Scoring
	OptimalCrossings int `yaml:"optimal_crossings"`

	// Pairwise cascade worker pool size; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// StrategyConfig tunes the mean-reversion controller.
type StrategyConfig struct {
	CandleCount         int           `yaml:"candle_count"`
	BetaBars            int           `yaml:"beta_bars"`
	ZScoreBars          int           `yaml:"z_score_bars"`
	ADXBars             int           `yaml:"adx_bars"`
	CorrelationBars     int           `yaml:"correlation_bars"`
	EntryZScore         float64       `yaml:"entry_z_score"`
	ExitZScore          float64       `yaml:"exit_z_score"`
	StopLossZScore      float64       `yaml:"stop_loss_z_score"`
	StopLossRatePct     float64       `yaml:"stop_loss_rate_pct"`
	MinPriceCorrelation float64       `yaml:"min_price_correlation"`
	AnalysisThrottle    time.Duration `yaml:"analysis_throttle"`
	CommissionRate      float64       `yaml:"commission_rate"`
}

// BacktestConfig tunes the simulator and the availability manager.
type BacktestConfig struct {
	BaseQuantity        float64       `yaml:"base_quantity"`
	LossLookback        time.Duration `yaml:"loss_lookback"`
	BlockCooldown       time.Duration `yaml:"block_cooldown"`
	MaxSingleLossPct    float64       `yaml:"max_single_loss_pct"`
	MaxCumulativeLossPct float64      `yaml:"max_cumulative_loss_pct"`
	ConsecutiveLosses   int           `yaml:"consecutive_losses"`
}

// PostgresConfig holds the candle/report database settings.
type PostgresConfig struct {
	DSN          string        `yaml:"dsn"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// RedisConfig holds the optional universe-cache settings. An empty
// address disables redis and falls back to a process-local cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the production defaults. Screening constants are
// self-consistent with the indicator minimums: the cointegration window
// must stay >= 100 bars and the rolling correlation window must fit
// inside its series window.
func Default() Config {
	return Config{
		Screening: ScreeningConfig{
			MinDailyQuoteVolume: 10_000_000,
			ReferenceCurrency:   "USDT",
			ShortTimeframeBars:  1440,
			LongTimeframeBars:   864,

			CorrelationBars:      1440,
			SpreadVolatilityBars: 720,
			RollingCorrBars:      1440,
			RollingCorrWindow:    100,
			CointegrationBars:    1000,
			HalfLifeBars:         720,
			SpreadStatsBars:      720,

			MinCorrelationByPrices:  0.80,
			MaxCorrelationByPrices:  0.995,
			MinCorrelationByReturns: 0.30,
			MaxCorrelationByReturns: 0.95,

			MinSpreadVolatilityPct: 0.05,
			MaxSpreadVolatilityPct: 1.0,

			MinRollingCorrMean:      0.30,
			RollingCorrThreshold:    0.20,
			MinRollingCorrOverRatio: 0.60,

			MaxCointegrationPValue: 0.01,

			MinHalfLifeDuration: 30 * time.Minute,
			MaxHalfLifeDuration: 6 * time.Hour,

			OptimalCrossings: 50,
		},
		Strategy: StrategyConfig{
			CandleCount:         1440,
			BetaBars:            60,
			ZScoreBars:          60,
			ADXBars:             288,
			CorrelationBars:     288,
			EntryZScore:         2.0,
			ExitZScore:          0.0,
			StopLossZScore:      4.0,
			StopLossRatePct:     1.0,
			MinPriceCorrelation: 0.7,
			AnalysisThrottle:    15 * time.Second,
			CommissionRate:      0.001,
		},
		Backtest: BacktestConfig{
			BaseQuantity:         1000,
			LossLookback:         time.Hour,
			BlockCooldown:        time.Hour,
			MaxSingleLossPct:     1.0,
			MaxCumulativeLossPct: 0.5,
			ConsecutiveLosses:    3,
		},
		Postgres: PostgresConfig{
			DSN:          "postgres://localhost:5432/pairscan?sslmode=disable",
			QueryTimeout: 30 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the cascade cannot run with.
func (c Config) Validate() error {
	s := c.Screening
	if s.CointegrationBars < 100 {
		return fmt.Errorf("cointegration_bars must be >= 100, got %d", s.CointegrationBars)
	}
	if s.LongTimeframeBars < 100 {
		return fmt.Errorf("long_timeframe_bars must be >= 100, got %d", s.LongTimeframeBars)
	}
	if s.RollingCorrWindow >= s.RollingCorrBars {
		return fmt.Errorf("rolling_corr_window (%d) must be smaller than rolling_corr_bars (%d)",
			s.RollingCorrWindow, s.RollingCorrBars)
	}
	if s.MinCorrelationByPrices >= s.MaxCorrelationByPrices {
		return fmt.Errorf("price correlation band is empty")
	}
	if s.MinHalfLifeDuration >= s.MaxHalfLifeDuration {
		return fmt.Errorf("half-life band is empty")
	}
	if c.Strategy.EntryZScore <= c.Strategy.ExitZScore {
		return fmt.Errorf("entry_z_score must exceed exit_z_score")
	}
	if c.Strategy.StopLossZScore <= c.Strategy.EntryZScore {
		return fmt.Errorf("stop_loss_z_score must exceed entry_z_score")
	}
	return nil
}

// HalfLifeBandBars converts the half-life duration band to bars of the
// given timeframe length.
func (s ScreeningConfig) HalfLifeBandBars(timeframeMs int64) (minBars, maxBars float64) {
	minBars = float64(s.MinHalfLifeDuration.Milliseconds() / timeframeMs)
	maxBars = float64((s.MaxHalfLifeDuration.Milliseconds() + timeframeMs - 1) / timeframeMs)
	return minBars, maxBars
}
