package strategy

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pairscan/pairscan/internal/config"
	"github.com/pairscan/pairscan/internal/indicators"
	"github.com/pairscan/pairscan/internal/models"
)

// State names the controller's position in its cycle.
type State string

const (
	StateScanningForEntry State = "scanningForEntry"
	StateWaitingForEntry  State = "waitingForEntry"
	StateScanningForExit  State = "scanningForExit"
	StateWaitingForExit   State = "waitingForExit"
	StateSuspended        State = "suspended"
)

// SignalType classifies an emitted signal.
type SignalType string

const (
	SignalOpen     SignalType = "open"
	SignalClose    SignalType = "close"
	SignalStopLoss SignalType = "stopLoss"
)

// Action is the side taken on one leg.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// SignalLeg describes the action on one symbol.
type SignalLeg struct {
	Symbol string
	Action Action
	Price  float64
}

// Signal is emitted by the controller and consumed by an execution or
// backtest layer. Beta is set on open signals only.
type Signal struct {
	Type      SignalType
	Direction models.PositionDirection
	SymbolA   SignalLeg
	SymbolB   SignalLeg
	Beta      float64
	Reason    string
}

// Position is the single open pair position. The controller owns at
// most one at any time.
type Position struct {
	Direction  models.PositionDirection
	QuantityA  float64
	QuantityB  float64
	OpenPriceA float64
	OpenPriceB float64
	OpenTime   int64
}

// Tick is one price update for one leg.
type Tick struct {
	Symbol    string
	Price     float64
	Timestamp int64 // epoch milliseconds
}

// Controller is the per-pair mean-reversion state machine. It is not
// safe for concurrent use: ticks must be delivered in arrival order by
// one goroutine. Callers own dispatch of the returned signals and
// drive transitions through the acceptance callbacks.
type Controller struct {
	cfg       config.StrategyConfig
	symbolA   string
	symbolB   string
	timeframe models.Timeframe

	state    State
	candlesA []models.Candle
	candlesB []models.Candle
	position *Position

	lastAnalysisTime int64

	adx    *indicators.ADX
	logger zerolog.Logger
}

// NewController creates a suspended controller for one pair.
func NewController(symbolA, symbolB string, timeframe models.Timeframe, cfg config.StrategyConfig) *Controller {
	return &Controller{
		cfg:       cfg,
		symbolA:   symbolA,
		symbolB:   symbolB,
		timeframe: timeframe,
		state:     StateSuspended,
		adx:       indicators.NewADX(0),
		logger: log.With().
			Str("component", "strategy").
			Str("pair", symbolA+"-"+symbolB).
			Logger(),
	}
}

// Start seeds the controller with historical candles and begins
// scanning for entries.
func (c *Controller) Start(candlesA, candlesB []models.Candle) error {
	if len(candlesA) == 0 || len(candlesB) == 0 {
		return errors.New("strategy: no candles to start with")
	}
	c.candlesA = append([]models.Candle(nil), candlesA...)
	c.candlesB = append([]models.Candle(nil), candlesB...)
	c.position = nil
	c.lastAnalysisTime = 0
	c.state = StateScanningForEntry
	return nil
}

// Stop suspends the controller and drops its position.
func (c *Controller) Stop() {
	c.position = nil
	c.state = StateSuspended
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Position returns the open position, or nil.
func (c *Controller) Position() *Position { return c.position }

// PositionEnterAccepted installs the accepted position and moves on to
// exit scanning.
func (c *Controller) PositionEnterAccepted(position Position) {
	c.position = &position
	c.state = StateScanningForExit
}

// PositionEnterRejected resumes entry scanning.
func (c *Controller) PositionEnterRejected() {
	c.state = StateScanningForEntry
}

// PositionExitAccepted clears the position and resumes entry scanning.
func (c *Controller) PositionExitAccepted() {
	c.position = nil
	c.state = StateScanningForEntry
}

// PositionExitRejected resumes exit scanning.
func (c *Controller) PositionExitRejected() {
	c.state = StateScanningForExit
}

// OnTick feeds one price update through the controller. Every tick
// updates the in-memory candle; analysis runs at most once per
// configured throttle interval of tick time. A non-nil return is a
// signal for the caller to dispatch. Analysis errors are logged and
// leave the state unchanged so the next tick can retry cleanly.
func (c *Controller) OnTick(tick Tick) *Signal {
	if c.state == StateSuspended || len(c.candlesA) == 0 || len(c.candlesB) == 0 {
		return nil
	}

	c.updateLastCandle(tick)

	if tick.Timestamp-c.lastAnalysisTime < c.cfg.AnalysisThrottle.Milliseconds() {
		return nil
	}
	c.lastAnalysisTime = tick.Timestamp

	signal, err := c.analyze()
	if err != nil {
		c.logger.Warn().Err(err).Str("state", string(c.state)).Msg("tick analysis skipped")
		return nil
	}
	return signal
}

// updateLastCandle extends the current bar with the tick, or opens a
// new bar when the tick falls past the bar boundary.
func (c *Controller) updateLastCandle(tick Tick) {
	var candles *[]models.Candle
	switch tick.Symbol {
	case c.symbolA:
		candles = &c.candlesA
	case c.symbolB:
		candles = &c.candlesB
	default:
		return
	}

	last := &(*candles)[len(*candles)-1]
	if tick.Timestamp <= last.CloseTime {
		last.Close = tick.Price
		if tick.Price > last.High {
			last.High = tick.Price
		}
		if tick.Price < last.Low {
			last.Low = tick.Price
		}
		return
	}

	timeframeMs := c.timeframe.Milliseconds()
	openTime := last.CloseTime + 1
	*candles = append(*candles, models.Candle{
		OpenTime:  openTime,
		CloseTime: openTime + timeframeMs - 1,
		Open:      tick.Price,
		High:      tick.Price,
		Low:       tick.Price,
		Close:     tick.Price,
	})

	if len(*candles) > c.cfg.CandleCount {
		*candles = (*candles)[1:]
	}
}

func (c *Controller) analyze() (*Signal, error) {
	switch c.state {
	case StateScanningForEntry:
		return c.analyzeScanningForEntry()
	case StateWaitingForEntry:
		if c.position != nil {
			c.state = StateScanningForExit
		}
		return nil, nil
	case StateScanningForExit:
		return c.analyzeScanningForExit()
	case StateWaitingForExit:
		if c.position == nil {
			c.state = StateScanningForEntry
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (c *Controller) analyzeScanningForEntry() (*Signal, error) {
	lastA := c.candlesA[len(c.candlesA)-1]
	lastB := c.candlesB[len(c.candlesB)-1]

	ok, err := c.trendAcceptable()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	correlation, err := indicators.CorrelationByPrices(
		models.Tail(c.candlesA, c.cfg.CorrelationBars),
		models.Tail(c.candlesB, c.cfg.CorrelationBars))
	if err != nil {
		return nil, fmt.Errorf("price correlation: %w", err)
	}
	if correlation < c.cfg.MinPriceCorrelation {
		return nil, nil
	}

	beta, err := c.currentBeta()
	if err != nil {
		return nil, fmt.Errorf("beta: %w", err)
	}
	zScore, err := c.currentZScore(beta)
	if err != nil {
		return nil, fmt.Errorf("z-score: %w", err)
	}

	// A spread already past the stop level is not an entry opportunity.
	if zScore >= c.cfg.StopLossZScore || zScore <= -c.cfg.StopLossZScore {
		return nil, nil
	}

	switch {
	case zScore >= c.cfg.EntryZScore:
		c.state = StateWaitingForEntry
		return &Signal{
			Type:      SignalOpen,
			Direction: models.DirectionSellBuy,
			SymbolA:   SignalLeg{Symbol: c.symbolA, Action: ActionSell, Price: lastA.Close},
			SymbolB:   SignalLeg{Symbol: c.symbolB, Action: ActionBuy, Price: lastB.Close},
			Beta:      beta,
			Reason:    fmt.Sprintf("high z-score: %.2f", zScore),
		}, nil
	case zScore <= -c.cfg.EntryZScore:
		c.state = StateWaitingForEntry
		return &Signal{
			Type:      SignalOpen,
			Direction: models.DirectionBuySell,
			SymbolA:   SignalLeg{Symbol: c.symbolA, Action: ActionBuy, Price: lastA.Close},
			SymbolB:   SignalLeg{Symbol: c.symbolB, Action: ActionSell, Price: lastB.Close},
			Beta:      beta,
			Reason:    fmt.Sprintf("low z-score: %.2f", zScore),
		}, nil
	}
	return nil, nil
}

func (c *Controller) analyzeScanningForExit() (*Signal, error) {
	if c.position == nil {
		return nil, errors.New("no open position in exit scan")
	}

	priceA := c.candlesA[len(c.candlesA)-1].Close
	priceB := c.candlesB[len(c.candlesB)-1].Close
	direction := c.position.Direction

	roi := CalculateROI(RoundTrip{
		Direction:   direction,
		SymbolA:     c.symbolA,
		SymbolB:     c.symbolB,
		QuantityA:   c.position.QuantityA,
		QuantityB:   c.position.QuantityB,
		OpenPriceA:  c.position.OpenPriceA,
		OpenPriceB:  c.position.OpenPriceB,
		ClosePriceA: priceA,
		ClosePriceB: priceB,
	}, c.cfg.CommissionRate)

	if roi <= -c.cfg.StopLossRatePct {
		c.state = StateWaitingForExit
		return c.exitSignal(SignalStopLoss, priceA, priceB,
			fmt.Sprintf("stop-loss triggered by price loss: %.2f%%", roi)), nil
	}

	beta, err := c.currentBeta()
	if err != nil {
		return nil, fmt.Errorf("beta: %w", err)
	}
	zScore, err := c.currentZScore(beta)
	if err != nil {
		return nil, fmt.Errorf("z-score: %w", err)
	}

	zStopLoss := (direction == models.DirectionSellBuy && zScore >= c.cfg.StopLossZScore) ||
		(direction == models.DirectionBuySell && zScore <= -c.cfg.StopLossZScore)
	if zStopLoss {
		c.state = StateWaitingForExit
		return c.exitSignal(SignalStopLoss, priceA, priceB,
			fmt.Sprintf("stop-loss triggered at z-score: %.2f", zScore)), nil
	}

	shouldClose := (direction == models.DirectionSellBuy && zScore <= c.cfg.ExitZScore) ||
		(direction == models.DirectionBuySell && zScore >= -c.cfg.ExitZScore)
	if shouldClose {
		c.state = StateWaitingForExit
		return c.exitSignal(SignalClose, priceA, priceB,
			fmt.Sprintf("z-score mean reversion: %.2f", zScore)), nil
	}
	return nil, nil
}

// exitSignal builds a close or stop-loss signal reversing the open
// position's legs.
func (c *Controller) exitSignal(signalType SignalType, priceA, priceB float64, reason string) *Signal {
	direction := c.position.Direction

	actionA, actionB := ActionSell, ActionBuy
	if direction == models.DirectionSellBuy {
		actionA, actionB = ActionBuy, ActionSell
	}
	return &Signal{
		Type:      signalType,
		Direction: direction,
		SymbolA:   SignalLeg{Symbol: c.symbolA, Action: actionA, Price: priceA},
		SymbolB:   SignalLeg{Symbol: c.symbolB, Action: actionB, Price: priceB},
		Reason:    reason,
	}
}

// trendAcceptable vetoes entries when either leg shows a strong trend,
// or when both legs show a moderate trend in the same non-sideways
// direction.
func (c *Controller) trendAcceptable() (bool, error) {
	fullA, err := c.adx.CalculateFull(models.Tail(c.candlesA, c.cfg.ADXBars))
	if err != nil {
		return false, fmt.Errorf("adx leg A: %w", err)
	}
	fullB, err := c.adx.CalculateFull(models.Tail(c.candlesB, c.cfg.ADXBars))
	if err != nil {
		return false, fmt.Errorf("adx leg B: %w", err)
	}

	strengthA := c.adx.Strength(fullA.ADX)
	strengthB := c.adx.Strength(fullB.ADX)

	if strengthA == indicators.TrendStrong || strengthA == indicators.TrendVeryStrong ||
		strengthB == indicators.TrendStrong || strengthB == indicators.TrendVeryStrong {
		return false, nil
	}

	if strengthA == indicators.TrendModerate && strengthB == indicators.TrendModerate {
		directionA := c.adx.Direction(fullA.DIPlus, fullA.DIMinus)
		directionB := c.adx.Direction(fullB.DIPlus, fullB.DIMinus)
		if directionA != indicators.TrendSideways && directionA == directionB {
			return false, nil
		}
	}
	return true, nil
}

func (c *Controller) currentBeta() (float64, error) {
	return indicators.AdaptiveBeta(
		models.Tail(c.candlesA, c.cfg.BetaBars),
		models.Tail(c.candlesB, c.cfg.BetaBars))
}

func (c *Controller) currentZScore(beta float64) (float64, error) {
	return indicators.ZScoreByPrices(
		models.Tail(c.candlesA, c.cfg.ZScoreBars),
		models.Tail(c.candlesB, c.cfg.ZScoreBars),
		beta)
}
