package backtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlab/session-levels/pkg/types"
)

func TestWorkerPool_RunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(4, 8)
	pool.Start()

	symbols := []string{"EURUSD", "GBPUSD", "USDJPY", "AUDUSD", "USDCHF"}
	for _, sym := range symbols {
		err := pool.Submit(Job{
			Symbol: sym,
			Run: func(symbol string, bars []types.Bar) (*Results, error) {
				return &Results{Symbol: symbol}, nil
			},
		})
		require.NoError(t, err)
	}
	go pool.Stop()

	seen := make(map[string]bool)
	for jr := range pool.Results() {
		require.NoError(t, jr.Error)
		require.NotNil(t, jr.Results)
		assert.Equal(t, jr.Symbol, jr.Results.Symbol)
		seen[jr.Symbol] = true
	}
	assert.Len(t, seen, len(symbols))
}

func TestWorkerPool_FailedJobDoesNotHaltBatch(t *testing.T) {
	pool := NewWorkerPool(2, 4)
	pool.Start()

	for i := 0; i < 4; i++ {
		sym := fmt.Sprintf("SYM%d", i)
		fail := i == 1
		require.NoError(t, pool.Submit(Job{
			Symbol: sym,
			Run: func(symbol string, bars []types.Bar) (*Results, error) {
				if fail {
					return nil, fmt.Errorf("bad stream")
				}
				return &Results{Symbol: symbol}, nil
			},
		}))
	}
	go pool.Stop()

	failures := 0
	completed := 0
	for jr := range pool.Results() {
		completed++
		if jr.Error != nil {
			failures++
			assert.Equal(t, "SYM1", jr.Symbol)
		}
	}
	assert.Equal(t, 4, completed)
	assert.Equal(t, 1, failures)
}

func TestWorkerPool_DefaultsWorkerCount(t *testing.T) {
	pool := NewWorkerPool(0, 1)
	assert.Greater(t, pool.workerCount, 0)
}
