package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fxlab/session-levels/internal/backtest"
	"github.com/fxlab/session-levels/internal/config"
	"github.com/fxlab/session-levels/internal/features"
	"github.com/fxlab/session-levels/internal/filter"
	"github.com/fxlab/session-levels/internal/levels"
	"github.com/fxlab/session-levels/internal/monitoring"
	"github.com/fxlab/session-levels/internal/session"
	"github.com/fxlab/session-levels/internal/volatility"
	"github.com/fxlab/session-levels/pkg/types"
)

// Result is one symbol's full pipeline output.
type Result struct {
	Symbol   string
	Days     *session.Log
	Vols     map[string]volatility.Record
	Levels   map[string]*levels.Set
	Backtest *backtest.Results
	Filtered []filter.FilteredTrade
}

// Runner executes the full stream transformation for single symbols:
// sessionize, score volatility, build levels, simulate, filter. Each stage
// consumes only previously finalized output.
type Runner struct {
	cfg   *config.Config
	model filter.ProbabilityModel
	log   zerolog.Logger
}

// NewRunner creates a pipeline runner. The model may be nil, in which case a
// seeded reference model is used.
func NewRunner(cfg *config.Config, model filter.ProbabilityModel, log zerolog.Logger) *Runner {
	if model == nil {
		model = filter.NewSeededLogisticModel(cfg.Filter.Seed)
	}
	return &Runner{cfg: cfg, model: model, log: log}
}

// Run processes one symbol's bar stream. Fatal errors (bad data order, bad
// configuration) abort this symbol only.
func (r *Runner) Run(symbol string, bars []types.Bar) (*Result, error) {
	logger := r.log.With().Str("symbol", symbol).Logger()

	sessionizer, err := session.New(session.Config{
		OpenMinutes:   r.cfg.Session.OpenMinutes,
		CloseMinutes:  r.cfg.Session.CloseMinutes,
		WarmupMinutes: r.cfg.Session.WarmupMinutes,
	})
	if err != nil {
		return nil, fmt.Errorf("sessionizer: %w", err)
	}

	annotated, days, err := sessionizer.Annotate(bars)
	if err != nil {
		monitoring.RecordStreamError(symbol, "timestamp_order")
		return nil, err
	}
	monitoring.RecordBars(symbol, len(annotated))
	logger.Info().Int("bars", len(annotated)).Int("days", days.Len()).Msg("stream sessionized")

	scorer := volatility.NewScorer(volatility.Config{
		Lookback:   r.cfg.Volatility.Lookback,
		Method:     r.cfg.Volatility.Method,
		MinPeriods: r.cfg.Volatility.MinPeriods,
		KATR:       r.cfg.Volatility.KATR,
		ClipLo:     r.cfg.Volatility.ClipLo,
		ClipHi:     r.cfg.Volatility.ClipHi,
	})
	vols := scorer.Score(annotated, days)

	engine, err := levels.NewEngine(levels.EngineConfig{
		VWAPAlpha:  r.cfg.Levels.VWAPAlpha,
		VolScaleFV: r.cfg.Levels.VolScaleFV,
		IBK:        r.cfg.Levels.IBK,
		Mode:       levels.ScaleMode(r.cfg.Levels.ScaleMode),
		CapGapLo:   r.cfg.Levels.CapGapLo,
		CapGapHi:   r.cfg.Levels.CapGapHi,
	})
	if err != nil {
		return nil, fmt.Errorf("level engine: %w", err)
	}

	sets := make(map[string]*levels.Set, days.Len())
	for i := 0; i < days.Len(); i++ {
		day := days.At(i)
		if set := engine.Build(day, annotated, vols[day.Date]); set != nil {
			sets[day.Date] = set
		}
	}
	logger.Info().Int("level_sets", len(sets)).Msg("daily levels built")

	tracker := levels.NewTracker(sessionizer, days, sets, r.cfg.Session.CutoverMinutes)

	builder, err := features.NewBuilder(r.cfg.PipSize)
	if err != nil {
		return nil, fmt.Errorf("feature builder: %w", err)
	}

	bt, err := backtest.NewEngine(backtest.Config{
		Symbol:   symbol,
		PipSize:  r.cfg.PipSize,
		TPPips:   r.cfg.Backtest.TPPips,
		SLPips:   r.cfg.Backtest.SLPips,
		Entries:  backtest.EntryLevels(r.cfg.Backtest.Entries),
		TieBreak: r.cfg.Backtest.TieBreak,
	}, tracker, builder, logger)
	if err != nil {
		return nil, fmt.Errorf("backtest engine: %w", err)
	}

	results := bt.Run(annotated, days, vols)
	for _, t := range results.Trades {
		monitoring.RecordTrade(symbol, t.Side.String(), string(t.ExitReason))
	}
	logger.Info().
		Int("trades", results.TotalTrades).
		Float64("pnl_pips", results.TotalPnLPips).
		Msg("simulation complete")

	// Threshold chosen on the held-out tail, then applied to all trades.
	_, holdout := filter.SplitByRatio(results.Trades, r.cfg.Filter.TrainRatio)
	threshold := filter.ChooseThreshold(r.model, holdout, thresholdGrid(), r.cfg.Filter.Threshold)

	tf, err := filter.New(r.model, threshold, logger)
	if err != nil {
		return nil, fmt.Errorf("trade filter: %w", err)
	}
	filtered := tf.Apply(results.Trades)
	kept := 0
	for _, ft := range filtered {
		if ft.Kept {
			kept++
			monitoring.RecordKept(symbol)
		}
	}
	logger.Info().
		Float64("threshold", threshold).
		Int("kept", kept).
		Int("scored", len(filtered)).
		Msg("trades filtered")

	return &Result{
		Symbol:   symbol,
		Days:     days,
		Vols:     vols,
		Levels:   sets,
		Backtest: results,
		Filtered: filtered,
	}, nil
}

// thresholdGrid enumerates candidate probability cutoffs for the holdout
// sweep.
func thresholdGrid() []float64 {
	grid := make([]float64, 0, 9)
	for th := 0.1; th < 0.95; th += 0.1 {
		grid = append(grid, th)
	}
	return grid
}
