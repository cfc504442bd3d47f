package filter

import "github.com/fxlab/session-levels/internal/backtest"

// SplitByRatio splits trades chronologically into train/holdout slices.
// Thresholds must be chosen on the holdout side to stay out of sample.
func SplitByRatio(trades []backtest.Trade, ratio float64) ([]backtest.Trade, []backtest.Trade) {
	if ratio <= 0 || ratio >= 1 {
		return trades, nil
	}
	n := int(float64(len(trades)) * ratio)
	if n < 1 || n >= len(trades) {
		return trades, nil
	}
	return trades[:n], trades[n:]
}

// ChooseThreshold sweeps candidate thresholds against holdout trades, scored
// by the given model, and returns the one maximizing total kept pips. With no
// usable candidates it returns the fallback.
func ChooseThreshold(model ProbabilityModel, holdout []backtest.Trade, candidates []float64, fallback float64) float64 {
	if len(holdout) == 0 || len(candidates) == 0 {
		return fallback
	}

	probs := make([]float64, len(holdout))
	for i, t := range holdout {
		p, err := model.Predict(t.Features)
		if err != nil {
			probs[i] = -1 // excluded from every threshold
			continue
		}
		probs[i] = p
	}

	best := fallback
	bestScore := 0.0
	scored := false
	for _, th := range candidates {
		score := 0.0
		kept := 0
		for i, t := range holdout {
			if probs[i] >= th {
				score += t.PnLPips
				kept++
			}
		}
		if kept == 0 {
			continue
		}
		if !scored || score > bestScore {
			best = th
			bestScore = score
			scored = true
		}
	}
	return best
}
