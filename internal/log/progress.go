package log

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Progress logs percentage milestones of a long loop. Increment is safe
// for concurrent use; a milestone is logged exactly once.
type Progress struct {
	logger zerolog.Logger
	label  string
	total  int64
	step   int64 // percent between milestones

	done       atomic.Int64
	lastLogged atomic.Int64
}

// NewProgress creates a tracker that logs every stepPct percent of total
// items. stepPct <= 0 defaults to 5.
func NewProgress(logger zerolog.Logger, label string, total int64, stepPct int64) *Progress {
	if stepPct <= 0 {
		stepPct = 5
	}
	return &Progress{logger: logger, label: label, total: total, step: stepPct}
}

// Increment marks one item done, logging when a milestone is crossed.
func (p *Progress) Increment() {
	if p.total <= 0 {
		return
	}
	done := p.done.Add(1)
	pct := done * 100 / p.total

	milestone := pct / p.step * p.step
	if milestone == 0 {
		return
	}
	last := p.lastLogged.Load()
	if milestone > last && p.lastLogged.CompareAndSwap(last, milestone) {
		p.logger.Info().
			Int64("done", done).
			Int64("total", p.total).
			Int64("percent", milestone).
			Msg(p.label)
	}
}
