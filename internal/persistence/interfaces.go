package persistence

import (
	"context"
	"errors"

	"github.com/pairscan/pairscan/internal/models"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("persistence: not found")

// CandleStore provides point-in-time candle access. All queries return
// candles in ascending open-time order and never beyond upTo, which is
// what keeps backtests free of look-ahead.
type CandleStore interface {
	// FindCandles returns up to limit candles for (symbol, timeframe)
	// with openTime <= upTo, ascending.
	FindCandles(ctx context.Context, symbol string, timeframe models.Timeframe, upTo int64, limit int) ([]models.Candle, error)

	// LatestDailyCandle returns the most recent daily candle at or
	// before upTo, or ErrNotFound.
	LatestDailyCandle(ctx context.Context, symbol string, upTo int64) (*models.Candle, error)

	// SaveCandles inserts or replaces candles for (symbol, timeframe).
	// Re-syncing an already stored range is idempotent.
	SaveCandles(ctx context.Context, symbol string, timeframe models.Timeframe, candles []models.Candle) error
}

// AssetStore exposes the exchange asset registry.
type AssetStore interface {
	ListAssets(ctx context.Context) ([]models.Asset, error)

	// UpsertAssets refreshes the registry from an exchange snapshot.
	UpsertAssets(ctx context.Context, assets []models.Asset) error
}

// ReportStore persists screening reports and their backtest ledgers.
// CreateReport writes report metadata and all candidates in a single
// transaction: either the whole report commits or none of it does.
type ReportStore interface {
	CreateReport(ctx context.Context, report models.Report) error
	AppendBacktestTrades(ctx context.Context, reportID string, trades []models.BacktestTrade) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, fromDate, toDate int64) ([]models.Report, error)
	DeleteReport(ctx context.Context, id string) error
}
