package data

import (
	"context"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/fxlab/session-levels/pkg/types"
)

// ClickHouseConfig locates the bar table.
type ClickHouseConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Database string `json:"database" yaml:"database"`
	Table    string `json:"table" yaml:"table"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Interval string `json:"interval" yaml:"interval"`
}

// ClickHouseProvider loads minute bars from a ClickHouse table with columns
// (symbol, interval, ts DateTime64, open, high, low, close, volume).
type ClickHouseProvider struct {
	cfg  ClickHouseConfig
	conn driver.Conn
}

// NewClickHouseProvider opens a connection and verifies it with a ping.
func NewClickHouseProvider(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseProvider, error) {
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &ClickHouseProvider{cfg: cfg, conn: conn}, nil
}

// Name returns the provider name.
func (p *ClickHouseProvider) Name() string {
	return "ClickHouse Provider"
}

// LoadBars loads all bars for a symbol in chronological order. The source
// argument is the symbol name.
func (p *ClickHouseProvider) LoadBars(symbol string) ([]types.Bar, error) {
	ctx := context.Background()
	query := fmt.Sprintf(`
SELECT ts, open, high, low, close, volume
FROM %s.%s
WHERE symbol = ? AND interval = ?
ORDER BY ts`, p.cfg.Database, p.cfg.Table)

	rows, err := p.conn.Query(ctx, query, symbol, p.cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("clickhouse query %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []types.Bar
	for rows.Next() {
		var (
			ts                              time.Time
			open, high, low, closePx, volume float64
		)
		if err := rows.Scan(&ts, &open, &high, &low, &closePx, &volume); err != nil {
			return nil, fmt.Errorf("clickhouse scan: %w", err)
		}
		bars = append(bars, types.Bar{
			Timestamp: ts.UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    volume,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse rows: %w", err)
	}
	return bars, nil
}

// ValidateBars validates the integrity of loaded bars.
func (p *ClickHouseProvider) ValidateBars(bars []types.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("no bars provided")
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Before(bars[i-1].Timestamp) {
			return fmt.Errorf("invalid timestamp sequence at index %d: bars must be chronological", i)
		}
	}
	return nil
}

// Close releases the connection.
func (p *ClickHouseProvider) Close() error {
	return p.conn.Close()
}
