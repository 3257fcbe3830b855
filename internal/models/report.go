package models

import "time"

// SpreadStats summarizes the hedge-ratio spread over the stats window.
type SpreadStats struct {
	Mean   float64 `json:"mean" db:"spread_mean"`
	Median float64 `json:"median" db:"spread_median"`
	Std    float64 `json:"std" db:"spread_std"`
}

// ScreeningCandidate is the outcome of one pair surviving the full
// screening cascade. Immutable once produced; Score is in [0, 100].
type ScreeningCandidate struct {
	AssetA               Asset       `json:"asset_a"`
	AssetB               Asset       `json:"asset_b"`
	PValue               float64     `json:"p_value" db:"p_value"`
	HalfLife             float64     `json:"half_life" db:"half_life"`
	CorrelationByPrices  float64     `json:"correlation_by_prices" db:"correlation_by_prices"`
	CorrelationByReturns float64     `json:"correlation_by_returns" db:"correlation_by_returns"`
	Crossings            int         `json:"crossings" db:"crossings"`
	Spread               SpreadStats `json:"spread"`
	Score                float64     `json:"score" db:"score"`
}

// PairSymbol returns the canonical pair identifier for the candidate.
func (c ScreeningCandidate) PairSymbol() string {
	return PairSymbol(c.AssetA, c.AssetB)
}

// Report is a named, dated collection of screening candidates with an
// optional realized backtest ledger attached later.
type Report struct {
	ID         string               `json:"id" db:"id"`
	Date       int64                `json:"date" db:"date"`
	CreatedAt  time.Time            `json:"created_at" db:"created_at"`
	Candidates []ScreeningCandidate `json:"candidates"`
	Backtest   []BacktestTrade      `json:"backtest,omitempty"`
}

// PositionDirection is the side taken on each leg of a pair trade:
// "buy-sell" is long A / short B, "sell-buy" is short A / long B.
type PositionDirection string

const (
	DirectionBuySell PositionDirection = "buy-sell"
	DirectionSellBuy PositionDirection = "sell-buy"
)

// BacktestTrade is one closed round-trip produced by the simulator.
// Immutable once the position is resolved.
type BacktestTrade struct {
	ID          int               `json:"id" db:"id"`
	Direction   PositionDirection `json:"direction" db:"direction"`
	SymbolA     string            `json:"symbol_a" db:"symbol_a"`
	SymbolB     string            `json:"symbol_b" db:"symbol_b"`
	QuantityA   float64           `json:"quantity_a" db:"quantity_a"`
	QuantityB   float64           `json:"quantity_b" db:"quantity_b"`
	OpenPriceA  float64           `json:"open_price_a" db:"open_price_a"`
	ClosePriceA float64           `json:"close_price_a" db:"close_price_a"`
	OpenPriceB  float64           `json:"open_price_b" db:"open_price_b"`
	ClosePriceB float64           `json:"close_price_b" db:"close_price_b"`
	OpenTime    int64             `json:"open_time" db:"open_time"`
	CloseTime   int64             `json:"close_time" db:"close_time"`
	ROI         float64           `json:"roi" db:"roi"`
	OpenReason  string            `json:"open_reason" db:"open_reason"`
	CloseReason string            `json:"close_reason" db:"close_reason"`
}
