package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pairscan/pairscan/internal/models"
	"github.com/pairscan/pairscan/internal/persistence"
)

// candleRepo implements CandleStore and AssetStore for PostgreSQL.
type candleRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewCandleRepo creates a PostgreSQL candle repository.
func NewCandleRepo(db *sqlx.DB, timeout time.Duration) persistence.CandleStore {
	return &candleRepo{db: db, timeout: timeout}
}

// NewAssetRepo creates a PostgreSQL asset registry backed by the same
// schema.
func NewAssetRepo(db *sqlx.DB, timeout time.Duration) persistence.AssetStore {
	return &assetRepo{db: db, timeout: timeout}
}

// FindCandles returns up to limit candles with openTime <= upTo in
// ascending order. The query fetches newest-first and reverses so that
// LIMIT selects the most recent window.
func (r *candleRepo) FindCandles(ctx context.Context, symbol string, timeframe models.Timeframe, upTo int64, limit int) ([]models.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT open_time, close_time, open, high, low, close, volume, quote_volume
		FROM candles
		WHERE symbol = $1 AND timeframe = $2 AND open_time <= $3
		ORDER BY open_time DESC
		LIMIT $4`

	var candles []models.Candle
	if err := r.db.SelectContext(ctx, &candles, query, symbol, string(timeframe), upTo, limit); err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}

	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// LatestDailyCandle returns the most recent daily candle at or before
// upTo.
func (r *candleRepo) LatestDailyCandle(ctx context.Context, symbol string, upTo int64) (*models.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT open_time, close_time, open, high, low, close, volume, quote_volume
		FROM candles
		WHERE symbol = $1 AND timeframe = '1d' AND open_time <= $2
		ORDER BY open_time DESC
		LIMIT 1`

	var candle models.Candle
	err := r.db.GetContext(ctx, &candle, query, symbol, upTo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query daily candle: %w", err)
	}
	return &candle, nil
}

// SaveCandles upserts candles in one transaction. Conflicting rows are
// replaced so a re-sync can correct earlier partial data.
func (r *candleRepo) SaveCandles(ctx context.Context, symbol string, timeframe models.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(candles)/500+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (
			symbol, timeframe, open_time, close_time,
			open, high, low, close, volume, quote_volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol, timeframe, open_time) DO UPDATE SET
			close_time = EXCLUDED.close_time,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			quote_volume = EXCLUDED.quote_volume`)
	if err != nil {
		return fmt.Errorf("failed to prepare candle statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err = stmt.ExecContext(ctx,
			symbol, string(timeframe), c.OpenTime, c.CloseTime,
			c.Open, c.High, c.Low, c.Close, c.Volume, c.QuoteVolume)
		if err != nil {
			return fmt.Errorf("failed to upsert candle %s@%d: %w", symbol, c.OpenTime, err)
		}
	}

	return tx.Commit()
}

type assetRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// ListAssets returns all registered tradable assets.
func (r *assetRepo) ListAssets(ctx context.Context) ([]models.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT symbol, base_asset, quote_asset, status
		FROM assets
		WHERE status = 'TRADING'
		ORDER BY symbol`

	var assets []models.Asset
	if err := r.db.SelectContext(ctx, &assets, query); err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	return assets, nil
}

// UpsertAssets refreshes the registry from an exchange snapshot in one
// transaction.
func (r *assetRepo) UpsertAssets(ctx context.Context, assets []models.Asset) error {
	if len(assets) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assets (symbol, base_asset, quote_asset, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET
			base_asset = EXCLUDED.base_asset,
			quote_asset = EXCLUDED.quote_asset,
			status = EXCLUDED.status`)
	if err != nil {
		return fmt.Errorf("failed to prepare asset statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range assets {
		if _, err := stmt.ExecContext(ctx, a.Symbol, a.BaseAsset, a.QuoteAsset, a.Status); err != nil {
			return fmt.Errorf("failed to upsert asset %s: %w", a.Symbol, err)
		}
	}

	return tx.Commit()
}
