package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fxlab/session-levels/internal/pipeline"
)

// ExcelReporter writes trades and summaries to an XLSX workbook. Excel output
// is a downstream consumer of the pipeline, not part of the core.
type ExcelReporter struct{}

// NewExcelReporter creates an Excel reporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteWorkbook writes one Trades sheet per symbol plus a Summary sheet.
func (r *ExcelReporter) WriteWorkbook(results []*pipeline.Result, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const summarySheet = "Summary"
	fx.SetSheetName(fx.GetSheetName(0), summarySheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, summarySheet, results, headerStyle); err != nil {
		return err
	}
	for _, res := range results {
		if err := r.writeTradesSheet(fx, res, headerStyle); err != nil {
			return err
		}
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, results []*pipeline.Result, headerStyle int) error {
	headers := []interface{}{"Symbol", "Days", "Trades", "Win Rate", "PnL (pips)", "Profit Factor", "Max DD (pips)", "Kept", "Scored"}
	if err := fx.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	if err := fx.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, res := range results {
		bt := res.Backtest
		kept := 0
		for _, ft := range res.Filtered {
			if ft.Kept {
				kept++
			}
		}
		row := []interface{}{
			res.Symbol, res.Days.Len(), bt.TotalTrades,
			bt.WinRate, bt.TotalPnLPips, bt.ProfitFactor, bt.MaxDrawdown,
			kept, len(res.Filtered),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExcelReporter) writeTradesSheet(fx *excelize.File, res *pipeline.Result, headerStyle int) error {
	sheet := fmt.Sprintf("Trades %s", res.Symbol)
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}

	headers := []interface{}{"Day", "Side", "Entry Time", "Entry", "Exit Time", "Exit", "Reason", "PnL (pips)", "Probability", "Kept"}
	if err := fx.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	if err := fx.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, ft := range res.Filtered {
		t := ft.Trade
		row := []interface{}{
			t.Day,
			t.Side.String(),
			t.EntryTime.UTC().Format("2006-01-02 15:04"),
			t.EntryPrice,
			t.ExitTime.UTC().Format("2006-01-02 15:04"),
			t.ExitPrice,
			string(t.ExitReason),
			t.PnLPips,
			ft.Probability,
			ft.Kept,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
