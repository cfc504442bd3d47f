package main

import (
	"context"
	"os"
	"sync"

	"github.com/fxlab/session-levels/internal/pipeline"
	"github.com/fxlab/session-levels/pkg/data"
)

// resultStore collects pipeline results across workers.
type resultStore struct {
	mu      sync.Mutex
	results map[string]*pipeline.Result
}

var symbolResults = &resultStore{results: make(map[string]*pipeline.Result)}

func (s *resultStore) store(res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.Symbol] = res
}

func (s *resultStore) get(symbol string) (*pipeline.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[symbol]
	return res, ok
}

// newClickHouseProvider builds the ClickHouse bar source from environment
// variables (CH_ADDR, CH_DATABASE, CH_TABLE, CH_USER, CH_PASSWORD).
func newClickHouseProvider() (data.Provider, error) {
	return data.NewClickHouseProvider(context.Background(), data.ClickHouseConfig{
		Addr:     envOr("CH_ADDR", "localhost:9000"),
		Database: envOr("CH_DATABASE", "backtest"),
		Table:    envOr("CH_TABLE", "bars"),
		Username: envOr("CH_USER", "backtest"),
		Password: os.Getenv("CH_PASSWORD"),
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
