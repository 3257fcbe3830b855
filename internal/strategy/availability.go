package strategy

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TradeRecord is one realized trade outcome kept inside the lookback
// window.
type TradeRecord struct {
	Timestamp int64
	ROI       float64
}

// PairTradingState is the per-pair circuit-breaker state. It self-heals
// once the block expires.
type PairTradingState struct {
	IsAvailable bool
	Trades      []TradeRecord
	BlockUntil  int64
	BlockReason string
}

// AvailabilityConfig tunes the loss-triggered circuit breaker.
type AvailabilityConfig struct {
	LossLookback         time.Duration
	BlockCooldown        time.Duration
	MaxSingleLossPct     float64 // block when one trade loses more than this
	MaxCumulativeLossPct float64 // block when lookback losses exceed this
	ConsecutiveLosses    int     // block after this many losing trades in a row
}

// DefaultAvailabilityConfig is the production breaker: 1h lookback and
// cooldown, -1% single-trade floor, -0.5% cumulative floor, three
// consecutive losses.
func DefaultAvailabilityConfig() AvailabilityConfig {
	return AvailabilityConfig{
		LossLookback:         time.Hour,
		BlockCooldown:        time.Hour,
		MaxSingleLossPct:     1.0,
		MaxCumulativeLossPct: 0.5,
		ConsecutiveLosses:    3,
	}
}

// AvailabilityManager disables a pair after adverse trade outcomes.
// Each pair's record is updated under a single lock so trade recording
// and availability checks for the same pair never race; cross-pair
// updates are independent.
type AvailabilityManager struct {
	mu     sync.Mutex
	cfg    AvailabilityConfig
	now    func() int64 // current time in epoch milliseconds
	states map[string]*PairTradingState
}

// NewAvailabilityManager creates a manager using the given clock. The
// clock is injected so backtests can drive simulated time.
func NewAvailabilityManager(cfg AvailabilityConfig, now func() int64) *AvailabilityManager {
	return &AvailabilityManager{
		cfg:    cfg,
		now:    now,
		states: make(map[string]*PairTradingState),
	}
}

// InitializePair registers a pair as available with no history.
func (m *AvailabilityManager) InitializePair(pairSymbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[pairSymbol] = &PairTradingState{IsAvailable: true}
}

// IsPairAvailable reports whether the pair may open positions. A block
// whose cooldown has passed is cleared on the way through.
func (m *AvailabilityManager) IsPairAvailable(pairSymbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[pairSymbol]
	if !ok {
		return false
	}

	currentTime := m.now()
	if state.BlockUntil != 0 {
		if currentTime < state.BlockUntil {
			return false
		}
		state.IsAvailable = true
		state.BlockUntil = 0
		state.BlockReason = ""
	}
	return state.IsAvailable
}

// RecordTrade registers a realized ROI, prunes records older than the
// lookback, and evaluates the block conditions.
func (m *AvailabilityManager) RecordTrade(pairSymbol string, roi float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[pairSymbol]
	if !ok {
		return
	}

	currentTime := m.now()
	state.Trades = append(state.Trades, TradeRecord{Timestamp: currentTime, ROI: roi})

	cutoff := currentTime - m.cfg.LossLookback.Milliseconds()
	kept := state.Trades[:0]
	for _, t := range state.Trades {
		if t.Timestamp > cutoff {
			kept = append(kept, t)
		}
	}
	state.Trades = kept

	m.checkBlockingConditions(pairSymbol, state, roi)
}

// checkBlockingConditions applies the three independent block rules.
// Caller holds the lock.
func (m *AvailabilityManager) checkBlockingConditions(pairSymbol string, state *PairTradingState, roi float64) {
	if roi < -m.cfg.MaxSingleLossPct {
		m.blockPair(pairSymbol, state,
			fmt.Sprintf("single-trade loss %.2f%% exceeded the %.2f%% limit", roi, m.cfg.MaxSingleLossPct))
		return
	}

	totalROI := 0.0
	for _, t := range state.Trades {
		totalROI += t.ROI
	}
	if totalROI < -m.cfg.MaxCumulativeLossPct {
		m.blockPair(pairSymbol, state,
			fmt.Sprintf("cumulative loss %.2f%% over the lookback exceeded the %.2f%% limit",
				totalROI, m.cfg.MaxCumulativeLossPct))
		return
	}

	if n := m.cfg.ConsecutiveLosses; n > 0 && len(state.Trades) >= n {
		recent := state.Trades[len(state.Trades)-n:]
		allLosing := true
		values := make([]string, 0, n)
		for _, t := range recent {
			if t.ROI >= 0 {
				allLosing = false
				break
			}
			values = append(values, fmt.Sprintf("%.2f%%", t.ROI))
		}
		if allLosing {
			m.blockPair(pairSymbol, state,
				fmt.Sprintf("%d consecutive losing trades: %s", n, strings.Join(values, ", ")))
		}
	}
}

// blockPair disables the pair for the cooldown. Caller holds the lock.
func (m *AvailabilityManager) blockPair(pairSymbol string, state *PairTradingState, reason string) {
	state.IsAvailable = false
	state.BlockUntil = m.now() + m.cfg.BlockCooldown.Milliseconds()
	state.BlockReason = reason

	log.Warn().
		Str("pair", pairSymbol).
		Str("reason", reason).
		Time("block_until", time.UnixMilli(state.BlockUntil)).
		Msg("pair trading blocked")
}

// ForceBlockPair disables the pair immediately, e.g. after an external
// stop-loss event.
func (m *AvailabilityManager) ForceBlockPair(pairSymbol, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[pairSymbol]
	if !ok {
		return
	}
	if reason == "" {
		reason = "stop-loss"
	}
	m.blockPair(pairSymbol, state, reason)
}

// PairState returns a copy of the pair's breaker state, or nil for an
// unknown pair.
func (m *AvailabilityManager) PairState(pairSymbol string) *PairTradingState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[pairSymbol]
	if !ok {
		return nil
	}
	copied := *state
	copied.Trades = append([]TradeRecord(nil), state.Trades...)
	return &copied
}
