package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tradeWithPnL(pips float64, reason ExitReason) Trade {
	return Trade{Symbol: "EURUSD", PnLPips: pips, ExitReason: reason}
}

func TestFinalize_SummaryStatistics(t *testing.T) {
	r := &Results{
		Symbol: "EURUSD",
		Trades: []Trade{
			tradeWithPnL(20, ExitTakeProfit),
			tradeWithPnL(-20, ExitStopLoss),
			tradeWithPnL(20, ExitTakeProfit),
			tradeWithPnL(-10, ExitSessionClose),
			tradeWithPnL(5, ExitSessionClose),
		},
	}
	r.finalize()

	assert.Equal(t, 5, r.TotalTrades)
	assert.Equal(t, 3, r.WinningTrades)
	assert.Equal(t, 2, r.LosingTrades)
	assert.InDelta(t, 0.6, r.WinRate, 1e-9)
	assert.InDelta(t, 15, r.TotalPnLPips, 1e-9)
	assert.InDelta(t, 45.0/30.0, r.ProfitFactor, 1e-9)
	assert.InDelta(t, 3, r.AvgPnLPips(), 1e-9)
	assert.Equal(t, 2, r.ByExitReason[ExitTakeProfit])
	assert.Equal(t, 1, r.ByExitReason[ExitStopLoss])
	assert.Equal(t, 2, r.ByExitReason[ExitSessionClose])
}

func TestFinalize_MaxDrawdownOnEquityCurve(t *testing.T) {
	// Equity path: 20, 0, -15, 5. Peak 20, trough -15: drawdown 35 pips.
	r := &Results{
		Trades: []Trade{
			tradeWithPnL(20, ExitTakeProfit),
			tradeWithPnL(-20, ExitStopLoss),
			tradeWithPnL(-15, ExitStopLoss),
			tradeWithPnL(20, ExitTakeProfit),
		},
	}
	r.finalize()
	assert.InDelta(t, 35, r.MaxDrawdown, 1e-9)
}

func TestFinalize_ProfitFactorStaysFiniteWithoutLosses(t *testing.T) {
	r := &Results{
		Trades: []Trade{
			tradeWithPnL(20, ExitTakeProfit),
			tradeWithPnL(10, ExitTakeProfit),
		},
	}
	r.finalize()
	assert.InDelta(t, 30, r.ProfitFactor, 1e-9)
	assert.Equal(t, 0, r.LosingTrades)
}

func TestFinalize_EmptyResults(t *testing.T) {
	r := &Results{}
	r.finalize()
	assert.Zero(t, r.TotalTrades)
	assert.Zero(t, r.WinRate)
	assert.Zero(t, r.AvgPnLPips())
	assert.NotNil(t, r.ByExitReason)
}
