package strategy

import (
	"math"
	"sort"
	"strings"

	"github.com/pairscan/pairscan/internal/models"
)

// stableToReference lists major stablecoins assumed at 1:1 parity with
// the reference currency.
var stableToReference = map[string]float64{
	"USDT":  1,
	"USDC":  1,
	"BUSD":  1,
	"TUSD":  1,
	"FDUSD": 1,
}

// quoteCurrency extracts the quote currency from an exchange symbol
// (BTCUSDT -> USDT). Longest suffix wins; unknown quotes default to
// USDT.
func quoteCurrency(symbol string) string {
	quotes := make([]string, 0, len(stableToReference))
	for q := range stableToReference {
		quotes = append(quotes, q)
	}
	sort.Slice(quotes, func(i, j int) bool { return len(quotes[i]) > len(quotes[j]) })

	for _, q := range quotes {
		if strings.HasSuffix(symbol, q) {
			return q
		}
	}
	return "USDT"
}

func toReference(value float64, quote string) float64 {
	rate, ok := stableToReference[quote]
	if !ok {
		rate = 1
	}
	return value * rate
}

// RoundTrip describes one closed pair trade for ROI computation.
type RoundTrip struct {
	Direction   models.PositionDirection
	SymbolA     string
	SymbolB     string
	QuantityA   float64
	QuantityB   float64
	OpenPriceA  float64
	OpenPriceB  float64
	ClosePriceA float64
	ClosePriceB float64
}

// CalculateROI returns the realized return of a round trip in percent,
// net of commission on both the opening and closing turnover, relative
// to the capital locked at open. Leg PnL is normalized to the reference
// currency through the stablecoin table.
func CalculateROI(rt RoundTrip, commissionRate float64) float64 {
	var pnlA, pnlB float64
	if rt.Direction == models.DirectionBuySell {
		pnlA = (rt.ClosePriceA - rt.OpenPriceA) * rt.QuantityA
		pnlB = (rt.OpenPriceB - rt.ClosePriceB) * rt.QuantityB
	} else {
		pnlA = (rt.OpenPriceA - rt.ClosePriceA) * rt.QuantityA
		pnlB = (rt.ClosePriceB - rt.OpenPriceB) * rt.QuantityB
	}

	quoteA := quoteCurrency(rt.SymbolA)
	quoteB := quoteCurrency(rt.SymbolB)

	pnl := toReference(pnlA, quoteA) + toReference(pnlB, quoteB)

	turnoverOpen := math.Abs(toReference(rt.QuantityA*rt.OpenPriceA, quoteA)) +
		math.Abs(toReference(rt.QuantityB*rt.OpenPriceB, quoteB))
	turnoverClose := math.Abs(toReference(rt.QuantityA*rt.ClosePriceA, quoteA)) +
		math.Abs(toReference(rt.QuantityB*rt.ClosePriceB, quoteB))

	commission := (turnoverOpen + turnoverClose) * commissionRate
	netPnl := pnl - commission

	return netPnl / turnoverOpen * 100
}
