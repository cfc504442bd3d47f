package reporting

import (
	"encoding/json"
	"os"

	"github.com/fxlab/session-levels/internal/backtest"
	"github.com/fxlab/session-levels/internal/pipeline"
)

// JSONReporter writes machine-readable run summaries.
type JSONReporter struct{}

// NewJSONReporter creates a JSON reporter.
func NewJSONReporter() *JSONReporter {
	return &JSONReporter{}
}

type summaryPayload struct {
	Symbol        string                          `json:"symbol"`
	Days          int                             `json:"days"`
	TotalTrades   int                             `json:"total_trades"`
	WinningTrades int                             `json:"winning_trades"`
	LosingTrades  int                             `json:"losing_trades"`
	WinRate       float64                         `json:"win_rate"`
	TotalPnLPips  float64                         `json:"total_pnl_pips"`
	ProfitFactor  float64                         `json:"profit_factor"`
	MaxDrawdown   float64                         `json:"max_drawdown_pips"`
	ByExitReason  map[backtest.ExitReason]int     `json:"by_exit_reason"`
	KeptTrades    int                             `json:"kept_trades"`
	ScoredTrades  int                             `json:"scored_trades"`
}

// WriteSummary writes the per-symbol summaries to a JSON file.
func (r *JSONReporter) WriteSummary(results []*pipeline.Result, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	payload := make([]summaryPayload, 0, len(results))
	for _, res := range results {
		bt := res.Backtest
		kept := 0
		for _, ft := range res.Filtered {
			if ft.Kept {
				kept++
			}
		}
		payload = append(payload, summaryPayload{
			Symbol:        res.Symbol,
			Days:          res.Days.Len(),
			TotalTrades:   bt.TotalTrades,
			WinningTrades: bt.WinningTrades,
			LosingTrades:  bt.LosingTrades,
			WinRate:       bt.WinRate,
			TotalPnLPips:  bt.TotalPnLPips,
			ProfitFactor:  bt.ProfitFactor,
			MaxDrawdown:   bt.MaxDrawdown,
			ByExitReason:  bt.ByExitReason,
			KeptTrades:    kept,
			ScoredTrades:  len(res.Filtered),
		})
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
