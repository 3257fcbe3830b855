package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pairscan/pairscan/internal/models"
	"github.com/pairscan/pairscan/internal/persistence"
)

// reportRepo implements ReportStore for PostgreSQL.
type reportRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewReportRepo creates a PostgreSQL report repository.
func NewReportRepo(db *sqlx.DB, timeout time.Duration) persistence.ReportStore {
	return &reportRepo{db: db, timeout: timeout}
}

// CreateReport writes the report row and all candidate rows in one
// transaction. A persistence error rolls the whole report back.
func (r *reportRepo) CreateReport(ctx context.Context, report models.Report) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(report.Candidates)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (id, date, created_at)
		VALUES ($1, $2, $3)`,
		report.ID, report.Date, report.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate report %s: %w", report.ID, err)
		}
		return fmt.Errorf("failed to insert report: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_candidates (
			report_id,
			asset_a_base, asset_a_quote, asset_b_base, asset_b_quote,
			p_value, half_life, correlation_by_prices, correlation_by_returns,
			crossings, spread_mean, spread_median, spread_std, score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`)
	if err != nil {
		return fmt.Errorf("failed to prepare candidate statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range report.Candidates {
		_, err = stmt.ExecContext(ctx,
			report.ID,
			c.AssetA.BaseAsset, c.AssetA.QuoteAsset, c.AssetB.BaseAsset, c.AssetB.QuoteAsset,
			c.PValue, c.HalfLife, c.CorrelationByPrices, c.CorrelationByReturns,
			c.Crossings, c.Spread.Mean, c.Spread.Median, c.Spread.Std, c.Score)
		if err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", c.PairSymbol(), err)
		}
	}

	return tx.Commit()
}

// AppendBacktestTrades attaches a realized trade ledger to an existing
// report in one transaction.
func (r *reportRepo) AppendBacktestTrades(ctx context.Context, reportID string, trades []models.BacktestTrade) error {
	if len(trades) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(trades)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_backtest_trades (
			report_id, direction, symbol_a, symbol_b,
			quantity_a, quantity_b,
			open_price_a, close_price_a, open_price_b, close_price_b,
			open_time, close_time, roi, open_reason, close_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trade statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		_, err = stmt.ExecContext(ctx,
			reportID, string(t.Direction), t.SymbolA, t.SymbolB,
			t.QuantityA, t.QuantityB,
			t.OpenPriceA, t.ClosePriceA, t.OpenPriceB, t.ClosePriceB,
			t.OpenTime, t.CloseTime, t.ROI, t.OpenReason, t.CloseReason)
		if err != nil {
			return fmt.Errorf("failed to insert backtest trade: %w", err)
		}
	}

	return tx.Commit()
}

// GetReport loads a report with its candidates and ledger.
func (r *reportRepo) GetReport(ctx context.Context, id string) (*models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var report models.Report
	err := r.db.QueryRowxContext(ctx,
		`SELECT id, date, created_at FROM reports WHERE id = $1`, id).
		Scan(&report.ID, &report.Date, &report.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	report.Candidates, err = r.loadCandidates(ctx, id)
	if err != nil {
		return nil, err
	}
	report.Backtest, err = r.loadTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ListReports returns reports (metadata + candidates) in a date range.
func (r *reportRepo) ListReports(ctx context.Context, fromDate, toDate int64) ([]models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, date, created_at
		FROM reports
		WHERE date >= $1 AND date <= $2
		ORDER BY date`, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var report models.Report
		if err := rows.Scan(&report.ID, &report.Date, &report.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	for i := range reports {
		reports[i].Candidates, err = r.loadCandidates(ctx, reports[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return reports, nil
}

// DeleteReport removes a report; candidates and trades go with it via
// ON DELETE CASCADE.
func (r *reportRepo) DeleteReport(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *reportRepo) loadCandidates(ctx context.Context, reportID string) ([]models.ScreeningCandidate, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT asset_a_base, asset_a_quote, asset_b_base, asset_b_quote,
		       p_value, half_life, correlation_by_prices, correlation_by_returns,
		       crossings, spread_mean, spread_median, spread_std, score
		FROM report_candidates
		WHERE report_id = $1
		ORDER BY score DESC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []models.ScreeningCandidate
	for rows.Next() {
		var c models.ScreeningCandidate
		err := rows.Scan(
			&c.AssetA.BaseAsset, &c.AssetA.QuoteAsset, &c.AssetB.BaseAsset, &c.AssetB.QuoteAsset,
			&c.PValue, &c.HalfLife, &c.CorrelationByPrices, &c.CorrelationByReturns,
			&c.Crossings, &c.Spread.Mean, &c.Spread.Median, &c.Spread.Std, &c.Score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		c.AssetA.Symbol = c.AssetA.BaseAsset + c.AssetA.QuoteAsset
		c.AssetB.Symbol = c.AssetB.BaseAsset + c.AssetB.QuoteAsset
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *reportRepo) loadTrades(ctx context.Context, reportID string) ([]models.BacktestTrade, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, direction, symbol_a, symbol_b,
		       quantity_a, quantity_b,
		       open_price_a, close_price_a, open_price_b, close_price_b,
		       open_time, close_time, roi, open_reason, close_reason
		FROM report_backtest_trades
		WHERE report_id = $1
		ORDER BY open_time`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest trades: %w", err)
	}
	defer rows.Close()

	var trades []models.BacktestTrade
	for rows.Next() {
		var t models.BacktestTrade
		var direction string
		err := rows.Scan(
			&t.ID, &direction, &t.SymbolA, &t.SymbolB,
			&t.QuantityA, &t.QuantityB,
			&t.OpenPriceA, &t.ClosePriceA, &t.OpenPriceB, &t.ClosePriceB,
			&t.OpenTime, &t.CloseTime, &t.ROI, &t.OpenReason, &t.CloseReason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest trade: %w", err)
		}
		t.Direction = models.PositionDirection(direction)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
