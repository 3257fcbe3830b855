package models

// Asset is one tradable instrument from the exchange registry.
type Asset struct {
	Symbol     string `json:"symbol" db:"symbol"`
	BaseAsset  string `json:"base_asset" db:"base_asset"`
	QuoteAsset string `json:"quote_asset" db:"quote_asset"`
	Status     string `json:"status" db:"status"`
}

// PairSymbol is the canonical identifier for an unordered asset pair,
// e.g. "ETHUSDT-BTCUSDT".
func PairSymbol(a, b Asset) string {
	return a.Symbol + "-" + b.Symbol
}
