package reporting

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fxlab/session-levels/internal/features"
	"github.com/fxlab/session-levels/internal/pipeline"
)

// CSVReporter writes trades and annotated rows to CSV files.
type CSVReporter struct{}

// NewCSVReporter creates a CSV reporter.
func NewCSVReporter() *CSVReporter {
	return &CSVReporter{}
}

// WriteTrades writes the filtered trades, including the full feature vector,
// one column per schema feature.
func (r *CSVReporter) WriteTrades(res *pipeline.Result, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	schema := features.Schema()
	header := []string{
		"symbol", "day", "side",
		"entry_time", "entry_price",
		"exit_time", "exit_price", "exit_reason",
		"pnl_pips", "probability", "kept",
	}
	header = append(header, schema...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, ft := range res.Filtered {
		t := ft.Trade
		row := []string{
			t.Symbol,
			t.Day,
			t.Side.String(),
			t.EntryTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(t.EntryPrice, 'f', 5, 64),
			t.ExitTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(t.ExitPrice, 'f', 5, 64),
			string(t.ExitReason),
			strconv.FormatFloat(t.PnLPips, 'f', 1, 64),
			strconv.FormatFloat(ft.Probability, 'f', 4, 64),
			strconv.FormatBool(ft.Kept),
		}
		for _, name := range schema {
			row = append(row, strconv.FormatFloat(t.Features[name], 'f', 4, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteAnnotatedBars writes the annotated bar stream: session markers,
// active level reference and the entry gate.
func (r *CSVReporter) WriteAnnotatedBars(res *pipeline.Result, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"timestamp", "day", "open", "high", "low", "close", "volume",
		"active_level_day", "fv_mid", "l1_up", "l1_down", "can_trade_now",
	}); err != nil {
		return err
	}

	for _, row := range res.Backtest.Rows {
		rec := []string{
			row.Bar.Timestamp.UTC().Format(time.RFC3339),
			row.Bar.Day,
			strconv.FormatFloat(row.Bar.Open, 'f', 5, 64),
			strconv.FormatFloat(row.Bar.High, 'f', 5, 64),
			strconv.FormatFloat(row.Bar.Low, 'f', 5, 64),
			strconv.FormatFloat(row.Bar.Close, 'f', 5, 64),
			strconv.FormatFloat(row.Bar.Volume, 'f', 2, 64),
		}
		if row.Active != nil {
			rec = append(rec,
				row.Active.Day,
				strconv.FormatFloat(row.Active.FVMid, 'f', 5, 64),
				strconv.FormatFloat(row.Active.L1Up, 'f', 5, 64),
				strconv.FormatFloat(row.Active.L1Down, 'f', 5, 64),
			)
		} else {
			rec = append(rec, "", "", "", "")
		}
		rec = append(rec, strconv.FormatBool(row.CanTradeNow))
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
