package main

import (
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pairscan/pairscan/internal/models"
	"github.com/pairscan/pairscan/internal/providers/binance"
	"github.com/pairscan/pairscan/internal/strategy"
)

// watch paper-trades one pair on the live trade stream: signals are
// logged and auto-accepted, realized ROI feeds the availability
// manager. No orders are placed anywhere.
func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <symbolA> <symbolB>",
		Short: "Paper-trade one pair on the live Binance trade stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbolA := strings.ToUpper(args[0])
			symbolB := strings.ToUpper(args[1])
			pairSymbol := symbolA + "-" + symbolB

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			now := time.Now().UnixMilli()
			seedA, err := a.candles.FindCandles(cmd.Context(), symbolA, models.Timeframe1m, now, a.cfg.Strategy.CandleCount)
			if err != nil {
				return err
			}
			seedB, err := a.candles.FindCandles(cmd.Context(), symbolB, models.Timeframe1m, now, a.cfg.Strategy.CandleCount)
			if err != nil {
				return err
			}

			controller := strategy.NewController(symbolA, symbolB, models.Timeframe1m, a.cfg.Strategy)
			if err := controller.Start(seedA, seedB); err != nil {
				return err
			}
			defer controller.Stop()

			availability := strategy.NewAvailabilityManager(
				strategy.AvailabilityConfig{
					LossLookback:         a.cfg.Backtest.LossLookback,
					BlockCooldown:        a.cfg.Backtest.BlockCooldown,
					MaxSingleLossPct:     a.cfg.Backtest.MaxSingleLossPct,
					MaxCumulativeLossPct: a.cfg.Backtest.MaxCumulativeLossPct,
					ConsecutiveLosses:    a.cfg.Backtest.ConsecutiveLosses,
				},
				func() int64 { return time.Now().UnixMilli() })
			availability.InitializePair(pairSymbol)

			var open *strategy.Position

			// The stream delivers trades in order on one goroutine, so
			// the controller needs no locking here.
			handler := func(trade binance.Trade) {
				signal := controller.OnTick(strategy.Tick{
					Symbol:    trade.Symbol,
					Price:     trade.Price,
					Timestamp: trade.Timestamp,
				})
				if signal == nil {
					return
				}

				switch signal.Type {
				case strategy.SignalOpen:
					if !availability.IsPairAvailable(pairSymbol) || signal.Beta == 0 {
						controller.PositionEnterRejected()
						return
					}
					position := strategy.Position{
						Direction:  signal.Direction,
						QuantityA:  a.cfg.Backtest.BaseQuantity,
						QuantityB:  a.cfg.Backtest.BaseQuantity / math.Abs(signal.Beta),
						OpenPriceA: signal.SymbolA.Price,
						OpenPriceB: signal.SymbolB.Price,
						OpenTime:   trade.Timestamp,
					}
					open = &position
					controller.PositionEnterAccepted(position)
					log.Info().
						Str("pair", pairSymbol).
						Str("direction", string(signal.Direction)).
						Str("reason", signal.Reason).
						Msg("paper position opened")

				case strategy.SignalClose, strategy.SignalStopLoss:
					if open == nil {
						controller.PositionExitRejected()
						return
					}
					roi := strategy.CalculateROI(strategy.RoundTrip{
						Direction:   open.Direction,
						SymbolA:     symbolA,
						SymbolB:     symbolB,
						QuantityA:   open.QuantityA,
						QuantityB:   open.QuantityB,
						OpenPriceA:  open.OpenPriceA,
						OpenPriceB:  open.OpenPriceB,
						ClosePriceA: signal.SymbolA.Price,
						ClosePriceB: signal.SymbolB.Price,
					}, a.cfg.Strategy.CommissionRate)
					open = nil
					controller.PositionExitAccepted()

					availability.RecordTrade(pairSymbol, roi)
					if signal.Type == strategy.SignalStopLoss {
						availability.ForceBlockPair(pairSymbol, "stop-loss triggered")
					}
					log.Info().
						Str("pair", pairSymbol).
						Float64("roi_pct", roi).
						Str("reason", signal.Reason).
						Msg("paper position closed")
				}
			}

			stream := binance.NewTradeStream([]string{symbolA, symbolB})
			return stream.Run(cmd.Context(), handler)
		},
	}
	return cmd
}
