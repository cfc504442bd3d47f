package filter

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/fxlab/session-levels/internal/backtest"
	"github.com/fxlab/session-levels/internal/features"
)

// ProbabilityModel is the externally trained classifier contract. Training
// happens elsewhere; this package only scores and gates.
type ProbabilityModel interface {
	// Predict returns the probability of a favorable outcome for the given
	// feature vector.
	Predict(v features.Vector) (float64, error)

	// Schema returns the feature names the model expects.
	Schema() []string
}

// FeatureMismatchError indicates a trade's feature vector does not match the
// model's expected schema. Fatal for that trade only: it is skipped and the
// stream continues.
type FeatureMismatchError struct {
	Missing []string
	Extra   []string
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("feature vector does not match model schema: missing=%v extra=%v", e.Missing, e.Extra)
}

// FilteredTrade is a trade plus its model probability and keep decision. The
// underlying trade is never mutated.
type FilteredTrade struct {
	Trade       backtest.Trade
	Probability float64
	Kept        bool
}

// TradeFilter gates simulated trades with a probability threshold chosen on
// held-out data.
type TradeFilter struct {
	model     ProbabilityModel
	threshold float64
	log       zerolog.Logger
}

// New creates a trade filter.
func New(model ProbabilityModel, threshold float64, log zerolog.Logger) (*TradeFilter, error) {
	if model == nil {
		return nil, fmt.Errorf("probability model is required")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %.3f outside [0,1]", threshold)
	}
	return &TradeFilter{
		model:     model,
		threshold: threshold,
		log:       log.With().Str("component", "filter").Logger(),
	}, nil
}

// Threshold returns the active decision threshold.
func (f *TradeFilter) Threshold() float64 {
	return f.threshold
}

// Apply scores every trade and marks it kept when probability >= threshold.
// Trades whose features mismatch the model schema are skipped and logged;
// the rest of the stream continues.
func (f *TradeFilter) Apply(trades []backtest.Trade) []FilteredTrade {
	out := make([]FilteredTrade, 0, len(trades))
	for _, t := range trades {
		if err := f.checkSchema(t.Features); err != nil {
			f.log.Warn().
				Str("symbol", t.Symbol).
				Str("day", t.Day).
				Err(err).
				Msg("skipping trade with mismatched features")
			continue
		}
		p, err := f.model.Predict(t.Features)
		if err != nil {
			f.log.Warn().
				Str("symbol", t.Symbol).
				Str("day", t.Day).
				Err(err).
				Msg("model prediction failed, skipping trade")
			continue
		}
		out = append(out, FilteredTrade{
			Trade:       t,
			Probability: p,
			Kept:        p >= f.threshold,
		})
	}
	return out
}

// checkSchema compares the trade's feature keys against the model schema.
func (f *TradeFilter) checkSchema(v features.Vector) error {
	expected := f.model.Schema()
	want := make(map[string]bool, len(expected))
	for _, name := range expected {
		want[name] = true
	}

	var missing, extra []string
	for _, name := range expected {
		if _, ok := v[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range v {
		if !want[name] {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return &FeatureMismatchError{Missing: missing, Extra: extra}
}
