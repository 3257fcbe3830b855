package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pairscan/pairscan/internal/models"
)

func TestCalculateROIBuySell(t *testing.T) {
	rt := RoundTrip{
		Direction:   models.DirectionBuySell,
		SymbolA:     "AAAUSDT",
		SymbolB:     "BBBUSDT",
		QuantityA:   1,
		QuantityB:   2,
		OpenPriceA:  100,
		ClosePriceA: 110,
		OpenPriceB:  50,
		ClosePriceB: 45,
	}

	// pnlA = +10, pnlB = +10, turnover 200 open + 200 close,
	// commission 0.4, net 19.6 on 200 locked.
	roi := CalculateROI(rt, 0.001)
	assert.InDelta(t, 9.8, roi, 1e-9)
}

func TestCalculateROISellBuy(t *testing.T) {
	rt := RoundTrip{
		Direction:   models.DirectionSellBuy,
		SymbolA:     "AAAUSDT",
		SymbolB:     "BBBUSDT",
		QuantityA:   1,
		QuantityB:   2,
		OpenPriceA:  100,
		ClosePriceA: 110,
		OpenPriceB:  50,
		ClosePriceB: 45,
	}

	// Reversed legs: pnlA = -10, pnlB = -10, commission 0.4.
	roi := CalculateROI(rt, 0.001)
	assert.InDelta(t, -10.2, roi, 1e-9)
}

func TestCalculateROIZeroCommission(t *testing.T) {
	rt := RoundTrip{
		Direction:   models.DirectionBuySell,
		SymbolA:     "AAAUSDT",
		SymbolB:     "BBBUSDT",
		QuantityA:   10,
		QuantityB:   10,
		OpenPriceA:  10,
		ClosePriceA: 10,
		OpenPriceB:  10,
		ClosePriceB: 10,
	}
	assert.Equal(t, 0.0, CalculateROI(rt, 0))
}

func TestQuoteCurrency(t *testing.T) {
	assert.Equal(t, "USDT", quoteCurrency("BTCUSDT"))
	assert.Equal(t, "USDC", quoteCurrency("ETHUSDC"))
	assert.Equal(t, "FDUSD", quoteCurrency("BNBFDUSD"))

	// Unknown quotes fall back to the reference currency.
	assert.Equal(t, "USDT", quoteCurrency("ETHBTC"))
}
