package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fxlab/session-levels/internal/features"
	"github.com/fxlab/session-levels/internal/levels"
	"github.com/fxlab/session-levels/internal/session"
	"github.com/fxlab/session-levels/internal/volatility"
	"github.com/fxlab/session-levels/pkg/types"
)

// Side aliases the shared position direction.
type Side = types.Side

const (
	SideLong  = types.SideLong
	SideShort = types.SideShort
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "take_profit"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitSessionClose ExitReason = "session_close"
)

// EntryLevels selects which boundaries can trigger entries.
type EntryLevels string

const (
	EntryL1   EntryLevels = "l1"
	EntryFV   EntryLevels = "fv"
	EntryBoth EntryLevels = "both"
)

// positionState is the per-symbol trade state machine.
type positionState int

const (
	stateFlat positionState = iota
	stateEntered
)

// Trade is one simulated round trip. Closed exactly once; the feature vector
// is the snapshot taken at entry time.
type Trade struct {
	Symbol     string
	Day        string
	Side       Side
	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time
	ExitPrice  float64
	ExitReason ExitReason
	PnLPips    float64
	Level      *levels.Set
	Features   features.Vector
}

// Config controls the simulation.
type Config struct {
	Symbol  string
	PipSize float64
	// TPPips and SLPips are distances from the entry boundary in pips.
	TPPips float64
	SLPips float64
	// Entries selects the triggering boundaries (default L1 bands).
	Entries EntryLevels
	// TieBreak resolves bars whose range covers both exits. "sl_first"
	// (default) assumes the stop filled first; "tp_first" assumes the
	// favorable order. Exposed as configuration because the intrabar path
	// is an assumption, not data.
	TieBreak string
}

const (
	TieBreakSLFirst = "sl_first"
	TieBreakTPFirst = "tp_first"
)

func (c Config) validate() error {
	if c.PipSize <= 0 {
		return fmt.Errorf("pip size must be positive, got %g", c.PipSize)
	}
	if c.TPPips <= 0 || c.SLPips <= 0 {
		return fmt.Errorf("tp/sl distances must be positive, got tp=%g sl=%g", c.TPPips, c.SLPips)
	}
	switch c.Entries {
	case "", EntryL1, EntryFV, EntryBoth:
	default:
		return fmt.Errorf("unknown entry levels %q", c.Entries)
	}
	switch c.TieBreak {
	case "", TieBreakSLFirst, TieBreakTPFirst:
	default:
		return fmt.Errorf("unknown tie-break %q", c.TieBreak)
	}
	return nil
}

// Engine walks bars in time order and simulates level-touch trades with
// pessimistic fill assumptions: entries fill at the triggering boundary
// price, never better, and ambiguous same-bar exits resolve against the
// position.
type Engine struct {
	cfg     Config
	tracker *levels.Tracker
	builder *features.Builder
	log     zerolog.Logger

	state   positionState
	open    *Trade
	tpPrice float64
	slPrice float64
}

// NewEngine creates a backtest engine bound to a level tracker.
func NewEngine(cfg Config, tracker *levels.Tracker, builder *features.Builder, log zerolog.Logger) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Entries == "" {
		cfg.Entries = EntryL1
	}
	if cfg.TieBreak == "" {
		cfg.TieBreak = TieBreakSLFirst
	}
	return &Engine{
		cfg:     cfg,
		tracker: tracker,
		builder: builder,
		log:     log.With().Str("component", "backtest").Str("symbol", cfg.Symbol).Logger(),
	}, nil
}

// Run simulates the full annotated stream and returns the closed trades and
// the annotated output rows.
func (e *Engine) Run(bars []session.AnnotatedBar, days *session.Log, vols map[string]volatility.Record) *Results {
	res := &Results{Symbol: e.cfg.Symbol}

	for i, bar := range bars {
		day, ok := days.Get(bar.Day)
		if !ok {
			continue
		}
		vol := vols[bar.Day]

		set, err := e.tracker.Active(bar.Timestamp)
		row := AnnotatedRow{
			Bar:    bar,
			Active: set,
		}
		if err != nil {
			// No level history yet: entries are impossible, not an error.
			res.Rows = append(res.Rows, row)
			e.forceCloseIfDayEnds(res, bars, i, day)
			continue
		}

		canTrade := e.canTradeNow(bar, day, vol)
		row.CanTradeNow = canTrade
		res.Rows = append(res.Rows, row)

		if e.state == stateFlat && canTrade {
			e.tryEnter(bar, day, set, vol)
		}
		if e.state == stateEntered {
			e.checkExit(res, bar, day)
		}
		e.forceCloseIfDayEnds(res, bars, i, day)
	}

	// End of stream closes any open position at the last close.
	if e.state == stateEntered && len(bars) > 0 {
		last := bars[len(bars)-1]
		e.close(res, last.Timestamp, last.Close, ExitSessionClose)
	}

	res.finalize()
	return res
}

// canTradeNow gates entries: warmup must be complete, the session still open,
// and the day must not be in a volatile regime.
func (e *Engine) canTradeNow(bar session.AnnotatedBar, day session.Day, vol volatility.Record) bool {
	if bar.Timestamp.Before(day.WarmupEnd) {
		return false
	}
	if !bar.Timestamp.Before(day.NYClose) {
		return false
	}
	if vol.IsVolatile {
		return false
	}
	return true
}

// tryEnter fires a mean-reversion entry when the bar touches an enabled
// boundary. The fill is the boundary price itself. A bar whose range touches
// both sides of the zone is skipped: its intrabar path is ambiguous and the
// pessimistic stance is to stand aside.
func (e *Engine) tryEnter(bar session.AnnotatedBar, day session.Day, set *levels.Set, vol volatility.Record) {
	uppers, lowers := e.entryBounds(set)
	upper, touchUp := pessimisticUpper(bar.High, uppers)
	lower, touchDown := pessimisticLower(bar.Low, lowers)
	if touchUp == touchDown {
		return
	}

	t := &Trade{
		Symbol:    e.cfg.Symbol,
		Day:       bar.Day,
		EntryTime: bar.Timestamp,
		Level:     set,
		Features:  e.builder.At(bar, day, set, vol),
	}
	if touchUp {
		t.Side = SideShort
		t.EntryPrice = upper
		e.tpPrice = upper - e.cfg.TPPips*e.cfg.PipSize
		e.slPrice = upper + e.cfg.SLPips*e.cfg.PipSize
	} else {
		t.Side = SideLong
		t.EntryPrice = lower
		e.tpPrice = lower + e.cfg.TPPips*e.cfg.PipSize
		e.slPrice = lower - e.cfg.SLPips*e.cfg.PipSize
	}
	e.open = t
	e.state = stateEntered

	e.log.Debug().
		Str("day", t.Day).
		Str("side", t.Side.String()).
		Float64("entry", t.EntryPrice).
		Time("ts", t.EntryTime).
		Msg("position entered")
}

// entryBounds returns the enabled boundaries per side. "both" arms the FV
// edges and the L1 bands together.
func (e *Engine) entryBounds(set *levels.Set) (uppers, lowers []float64) {
	switch e.cfg.Entries {
	case EntryFV:
		return []float64{set.FVHigh}, []float64{set.FVLow}
	case EntryBoth:
		return []float64{set.FVHigh, set.L1Up}, []float64{set.FVLow, set.L1Down}
	default:
		return []float64{set.L1Up}, []float64{set.L1Down}
	}
}

// pessimisticUpper picks the lowest touched upper boundary: when one bar
// crosses several bands the short fill is never better than the worst one.
func pessimisticUpper(high float64, bounds []float64) (float64, bool) {
	boundary, found := 0.0, false
	for _, b := range bounds {
		if high >= b && (!found || b < boundary) {
			boundary, found = b, true
		}
	}
	return boundary, found
}

// pessimisticLower mirrors pessimisticUpper for long fills.
func pessimisticLower(low float64, bounds []float64) (float64, bool) {
	boundary, found := 0.0, false
	for _, b := range bounds {
		if low <= b && (!found || b > boundary) {
			boundary, found = b, true
		}
	}
	return boundary, found
}

// checkExit applies the same-bar exit rules: stop-loss first, then
// take-profit, then forced close at the session end. When a single bar's
// range covers both levels, the stop is assumed to have filled first.
func (e *Engine) checkExit(res *Results, bar session.AnnotatedBar, day session.Day) {
	slHit, tpHit := e.exitTouches(bar)

	if slHit && (e.cfg.TieBreak == TieBreakSLFirst || !tpHit) {
		e.close(res, bar.Timestamp, e.slPrice, ExitStopLoss)
		return
	}
	if tpHit {
		e.close(res, bar.Timestamp, e.tpPrice, ExitTakeProfit)
		return
	}
	if !bar.Timestamp.Before(day.NYClose) {
		e.close(res, bar.Timestamp, bar.Close, ExitSessionClose)
	}
}

func (e *Engine) exitTouches(bar session.AnnotatedBar) (slHit, tpHit bool) {
	if e.open.Side == SideLong {
		return bar.Low <= e.slPrice, bar.High >= e.tpPrice
	}
	return bar.High >= e.slPrice, bar.Low <= e.tpPrice
}

// forceCloseIfDayEnds closes an open position on the last bar of its trading
// day so positions never carry overnight.
func (e *Engine) forceCloseIfDayEnds(res *Results, bars []session.AnnotatedBar, i int, day session.Day) {
	if e.state != stateEntered {
		return
	}
	last := i == len(bars)-1 || bars[i+1].Day != bars[i].Day
	if last {
		e.close(res, bars[i].Timestamp, bars[i].Close, ExitSessionClose)
	}
}

func (e *Engine) close(res *Results, ts time.Time, price float64, reason ExitReason) {
	t := e.open
	t.ExitTime = ts
	t.ExitPrice = price
	t.ExitReason = reason
	if t.Side == SideLong {
		t.PnLPips = (price - t.EntryPrice) / e.cfg.PipSize
	} else {
		t.PnLPips = (t.EntryPrice - price) / e.cfg.PipSize
	}
	res.Trades = append(res.Trades, *t)

	e.log.Debug().
		Str("day", t.Day).
		Str("reason", string(reason)).
		Float64("pnl_pips", t.PnLPips).
		Msg("position closed")

	e.open = nil
	e.state = stateFlat
}
