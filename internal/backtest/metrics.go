package backtest

import (
	"math"

	"github.com/fxlab/session-levels/internal/levels"
	"github.com/fxlab/session-levels/internal/session"
)

// AnnotatedRow is one output row of the simulation: the bar, the level set
// that was legally visible at its timestamp (nil before any history exists)
// and the entry eligibility gate.
type AnnotatedRow struct {
	Bar         session.AnnotatedBar
	Active      *levels.Set
	CanTradeNow bool
}

// Results aggregates one symbol's simulation output.
type Results struct {
	Symbol string
	Rows   []AnnotatedRow
	Trades []Trade

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	TotalPnLPips  float64
	ProfitFactor  float64
	MaxDrawdown   float64
	ByExitReason  map[ExitReason]int
}

// finalize computes the summary statistics from the closed trades.
func (r *Results) finalize() {
	r.TotalTrades = len(r.Trades)
	r.ByExitReason = make(map[ExitReason]int)

	grossProfit := 0.0
	grossLoss := 0.0
	equity := 0.0
	peak := 0.0

	for _, t := range r.Trades {
		r.ByExitReason[t.ExitReason]++
		r.TotalPnLPips += t.PnLPips
		if t.PnLPips > 0 {
			r.WinningTrades++
			grossProfit += t.PnLPips
		} else if t.PnLPips < 0 {
			r.LosingTrades++
			grossLoss += math.Abs(t.PnLPips)
		}

		equity += t.PnLPips
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > r.MaxDrawdown {
			r.MaxDrawdown = dd
		}
	}

	if r.TotalTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades)
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	} else {
		// No losing trades: report the gross profit itself so the value
		// stays finite and serializable.
		r.ProfitFactor = grossProfit
	}
}

// AvgPnLPips returns the mean realized pips per trade.
func (r *Results) AvgPnLPips() float64 {
	if r.TotalTrades == 0 {
		return 0
	}
	return r.TotalPnLPips / float64(r.TotalTrades)
}
