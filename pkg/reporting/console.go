package reporting

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/fxlab/session-levels/internal/filter"
	"github.com/fxlab/session-levels/internal/pipeline"
)

// ConsoleReporter renders run summaries and trade tables to stdout.
type ConsoleReporter struct{}

// NewConsoleReporter creates a console reporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintSummary renders the per-symbol summary table.
func (r *ConsoleReporter) PrintSummary(results []*pipeline.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Days", "Trades", "Win %", "PnL (pips)", "PF", "Max DD", "Kept"})

	for _, res := range results {
		bt := res.Backtest
		kept := 0
		for _, ft := range res.Filtered {
			if ft.Kept {
				kept++
			}
		}
		t.AppendRow(table.Row{
			res.Symbol,
			res.Days.Len(),
			bt.TotalTrades,
			fmt.Sprintf("%.1f", bt.WinRate*100),
			fmt.Sprintf("%+.1f", bt.TotalPnLPips),
			fmt.Sprintf("%.2f", bt.ProfitFactor),
			fmt.Sprintf("%.1f", bt.MaxDrawdown),
			fmt.Sprintf("%d/%d", kept, len(res.Filtered)),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
	})

	fmt.Println("\n📊 BACKTEST SUMMARY")
	t.Render()
}

// PrintTrades renders the filtered trade list for one symbol.
func (r *ConsoleReporter) PrintTrades(res *pipeline.Result, maxRows int) {
	if len(res.Filtered) == 0 {
		fmt.Printf("No trades for %s\n", res.Symbol)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Day", "Side", "Entry", "Exit", "Reason", "PnL (pips)", "Prob", "Kept"})

	rows := res.Filtered
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	for _, ft := range rows {
		t.AppendRow(table.Row{
			ft.Trade.Day,
			ft.Trade.Side.String(),
			fmt.Sprintf("%.5f", ft.Trade.EntryPrice),
			fmt.Sprintf("%.5f", ft.Trade.ExitPrice),
			string(ft.Trade.ExitReason),
			fmt.Sprintf("%+.1f", ft.Trade.PnLPips),
			fmt.Sprintf("%.3f", ft.Probability),
			keptMark(ft),
		})
	}

	fmt.Printf("\n🔄 TRADES — %s\n", res.Symbol)
	t.Render()
	if maxRows > 0 && len(res.Filtered) > maxRows {
		fmt.Printf("... %d more trades omitted\n", len(res.Filtered)-maxRows)
	}
}

func keptMark(ft filter.FilteredTrade) string {
	if ft.Kept {
		return "✅"
	}
	return "—"
}
