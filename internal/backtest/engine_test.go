package backtest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlab/session-levels/internal/features"
	"github.com/fxlab/session-levels/internal/levels"
	"github.com/fxlab/session-levels/internal/session"
	"github.com/fxlab/session-levels/internal/volatility"
	"github.com/fxlab/session-levels/pkg/types"
)

// The fixture trades Friday 2023-08-18 (EDT): NY open 13:30 UTC, warmup ends
// 14:00 UTC, session closes 20:00 UTC. Level bands sit at 1.1100 / 1.1000.
type fixture struct {
	engine *Engine
	days   *session.Log
	vols   map[string]volatility.Record
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	s, err := session.New(session.Config{})
	require.NoError(t, err)

	days := session.NewLog()
	sets := make(map[string]*levels.Set)
	for _, date := range []string{"2023-08-17", "2023-08-18"} {
		open, perr := time.Parse("2006-01-02 15:04", date+" 13:30")
		require.NoError(t, perr)
		days.Append(session.Day{
			Date:      date,
			NYOpen:    open,
			WarmupEnd: open.Add(30 * time.Minute),
			NYClose:   open.Add(390 * time.Minute),
		})
		sets[date] = &levels.Set{
			Day:     date,
			FVHigh:  1.1060,
			FVLow:   1.1040,
			L1Up:    1.1100,
			L1Down:  1.1000,
			BuiltAt: open.Add(30 * time.Minute),
		}
	}
	tracker := levels.NewTracker(s, days, sets, 0)

	builder, err := features.NewBuilder(0.0001)
	require.NoError(t, err)

	if cfg.Symbol == "" {
		cfg.Symbol = "EURUSD"
	}
	if cfg.PipSize == 0 {
		cfg.PipSize = 0.0001
	}
	if cfg.TPPips == 0 {
		cfg.TPPips = 20
	}
	if cfg.SLPips == 0 {
		cfg.SLPips = 20
	}
	engine, err := NewEngine(cfg, tracker, builder, zerolog.Nop())
	require.NoError(t, err)

	return &fixture{
		engine: engine,
		days:   days,
		vols: map[string]volatility.Record{
			"2023-08-17": {Day: "2023-08-17", VolScore: 1.0},
			"2023-08-18": {Day: "2023-08-18", VolScore: 1.0},
		},
	}
}

var nyLoc = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

// fridayBar builds an annotated Friday bar at hh:mm UTC.
func fridayBar(hh, mm int, high, low, closePx float64) session.AnnotatedBar {
	ts := time.Date(2023, 8, 18, hh, mm, 0, 0, time.UTC)
	return session.AnnotatedBar{
		Bar: types.Bar{
			Timestamp: ts,
			Open:      closePx,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    100,
		},
		Day:    "2023-08-18",
		NYTime: ts.In(nyLoc),
	}
}

func TestRun_ShortAtUpperBandTakesProfit(t *testing.T) {
	f := newFixture(t, Config{})
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1105, 1.1095, 1.1098), // touches L1 up
		fridayBar(15, 0, 1.1090, 1.1075, 1.1082),  // reaches TP at 1.1080
	}

	res := f.engine.Run(bars, f.days, f.vols)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, SideShort, tr.Side)
	assert.InDelta(t, 1.1100, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 1.1080, tr.ExitPrice, 1e-9)
	assert.Equal(t, ExitTakeProfit, tr.ExitReason)
	assert.InDelta(t, 20, tr.PnLPips, 1e-6)
	assert.NotEmpty(t, tr.Features)
}

func TestRun_LongAtLowerBandStopsOut(t *testing.T) {
	f := newFixture(t, Config{})
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1005, 1.0995, 1.1002), // touches L1 down
		fridayBar(15, 0, 1.1000, 1.0975, 1.0990),  // breaches SL at 1.0980
	}

	res := f.engine.Run(bars, f.days, f.vols)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, SideLong, tr.Side)
	assert.InDelta(t, 1.1000, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 1.0980, tr.ExitPrice, 1e-9)
	assert.Equal(t, ExitStopLoss, tr.ExitReason)
	assert.InDelta(t, -20, tr.PnLPips, 1e-6)
}

func TestRun_SameBarTieBreak(t *testing.T) {
	// One bar spans both the stop (1.1120) and the take-profit (1.1080) of an
	// open short. The default resolution books the loss.
	entry := fridayBar(14, 30, 1.1105, 1.1095, 1.1098)
	wide := fridayBar(15, 0, 1.1125, 1.1070, 1.1090)

	f := newFixture(t, Config{})
	res := f.engine.Run([]session.AnnotatedBar{entry, wide}, f.days, f.vols)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, ExitStopLoss, res.Trades[0].ExitReason)
	assert.InDelta(t, -20, res.Trades[0].PnLPips, 1e-6)

	f = newFixture(t, Config{TieBreak: TieBreakTPFirst})
	res = f.engine.Run([]session.AnnotatedBar{entry, wide}, f.days, f.vols)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, ExitTakeProfit, res.Trades[0].ExitReason)
}

func TestRun_AmbiguousEntryBarStandsAside(t *testing.T) {
	f := newFixture(t, Config{})
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1105, 1.0995, 1.1050), // touches both bands
	}
	res := f.engine.Run(bars, f.days, f.vols)
	assert.Empty(t, res.Trades)
}

func TestRun_SinglePositionAtATime(t *testing.T) {
	f := newFixture(t, Config{})
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1105, 1.1095, 1.1098), // enter short
		fridayBar(15, 0, 1.1105, 1.1095, 1.1098),  // second touch ignored
		fridayBar(15, 30, 1.1090, 1.1075, 1.1082), // exit
	}
	res := f.engine.Run(bars, f.days, f.vols)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, ExitTakeProfit, res.Trades[0].ExitReason)
}

func TestRun_OpenPositionClosedAtSessionEnd(t *testing.T) {
	f := newFixture(t, Config{})
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1105, 1.1095, 1.1098), // enter short
		fridayBar(18, 0, 1.1098, 1.1092, 1.1095),  // drifts, no exit
	}
	res := f.engine.Run(bars, f.days, f.vols)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, ExitSessionClose, tr.ExitReason)
	assert.InDelta(t, 1.1095, tr.ExitPrice, 1e-9)
	assert.InDelta(t, 5, tr.PnLPips, 1e-6)
}

func TestRun_NoEntriesDuringWarmup(t *testing.T) {
	f := newFixture(t, Config{})
	bars := []session.AnnotatedBar{
		// 13:45 UTC is inside the warmup window; the band touch must not fire
		// even though Thursday's carried set is visible.
		fridayBar(13, 45, 1.1105, 1.1095, 1.1098),
	}
	res := f.engine.Run(bars, f.days, f.vols)
	assert.Empty(t, res.Trades)
	require.Len(t, res.Rows, 1)
	assert.False(t, res.Rows[0].CanTradeNow)
}

func TestRun_NoEntriesAfterSessionClose(t *testing.T) {
	f := newFixture(t, Config{})
	bars := []session.AnnotatedBar{
		fridayBar(20, 30, 1.1105, 1.1095, 1.1098),
	}
	res := f.engine.Run(bars, f.days, f.vols)
	assert.Empty(t, res.Trades)
	require.Len(t, res.Rows, 1)
	assert.False(t, res.Rows[0].CanTradeNow)
}

func TestRun_VolatileDaySuppressesEntries(t *testing.T) {
	f := newFixture(t, Config{})
	f.vols["2023-08-18"] = volatility.Record{Day: "2023-08-18", VolScore: 1.3, IsVolatile: true}
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1105, 1.1095, 1.1098),
		fridayBar(15, 0, 1.1090, 1.1075, 1.1082),
	}
	res := f.engine.Run(bars, f.days, f.vols)
	assert.Empty(t, res.Trades)
	for _, row := range res.Rows {
		assert.False(t, row.CanTradeNow)
	}
}

func TestRun_FVEntriesUseZoneEdges(t *testing.T) {
	f := newFixture(t, Config{Entries: EntryFV, TPPips: 5, SLPips: 5})
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1062, 1.1057, 1.1058), // touches FV high 1.1060
		fridayBar(15, 0, 1.1058, 1.1050, 1.1054),  // TP at 1.1055
	}
	res := f.engine.Run(bars, f.days, f.vols)
	require.Len(t, res.Trades, 1)
	assert.InDelta(t, 1.1060, res.Trades[0].EntryPrice, 1e-9)
	assert.Equal(t, ExitTakeProfit, res.Trades[0].ExitReason)
}

func TestRun_BothEntriesArmFVBoundaries(t *testing.T) {
	// Under "both" a touch of the FV edge alone must fire, exactly as in FV
	// mode; the L1 bands stay armed as well.
	f := newFixture(t, Config{Entries: EntryBoth, TPPips: 5, SLPips: 5})
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1062, 1.1057, 1.1058), // touches FV high 1.1060, far below L1 up
		fridayBar(15, 0, 1.1058, 1.1050, 1.1054),  // TP at 1.1055
	}
	res := f.engine.Run(bars, f.days, f.vols)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, SideShort, res.Trades[0].Side)
	assert.InDelta(t, 1.1060, res.Trades[0].EntryPrice, 1e-9)
	assert.Equal(t, ExitTakeProfit, res.Trades[0].ExitReason)
}

func TestRun_BothEntriesFillAtWorstTouchedBoundary(t *testing.T) {
	// A bar crossing the FV edge and the L1 band on the same side fills at
	// the inner (worse) boundary for the short.
	f := newFixture(t, Config{Entries: EntryBoth})
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1105, 1.1065, 1.1070), // spans FV high and L1 up
	}
	res := f.engine.Run(bars, f.days, f.vols)
	require.Len(t, res.Trades, 1)
	assert.InDelta(t, 1.1060, res.Trades[0].EntryPrice, 1e-9)
}

func TestRun_BothEntriesAmbiguousAcrossMixedBoundaries(t *testing.T) {
	// Touching the FV high and the FV low in one bar is ambiguous even
	// though neither L1 band was reached.
	f := newFixture(t, Config{Entries: EntryBoth})
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1062, 1.1038, 1.1050),
	}
	res := f.engine.Run(bars, f.days, f.vols)
	assert.Empty(t, res.Trades)
}

func TestRun_EndOfStreamClosesOpenPosition(t *testing.T) {
	f := newFixture(t, Config{})
	bars := []session.AnnotatedBar{
		fridayBar(14, 30, 1.1105, 1.1095, 1.1098),
	}
	res := f.engine.Run(bars, f.days, f.vols)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, ExitSessionClose, res.Trades[0].ExitReason)
}

func TestNewEngine_ValidatesConfig(t *testing.T) {
	builder, err := features.NewBuilder(0.0001)
	require.NoError(t, err)

	_, err = NewEngine(Config{PipSize: 0.0001, TPPips: 20, SLPips: 20, TieBreak: "coin_flip"}, nil, builder, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewEngine(Config{PipSize: 0.0001, TPPips: -1, SLPips: 20}, nil, builder, zerolog.Nop())
	assert.Error(t, err)
}
