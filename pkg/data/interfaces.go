package data

import (
	"time"

	"github.com/fxlab/session-levels/pkg/types"
)

// Provider loads ordered minute bars for one symbol from a source. Upstream
// ingestion guarantees deduplicated rows and positive volume; providers still
// reject structurally broken rows defensively.
type Provider interface {
	// LoadBars loads historical bars from the specified source.
	LoadBars(source string) ([]types.Bar, error)

	// ValidateBars validates the integrity of loaded bars.
	ValidateBars(bars []types.Bar) error

	// Name returns the provider name.
	Name() string
}

// Filter narrows a bar slice without reordering it.
type Filter interface {
	// ByDateRange keeps bars within [start, end].
	ByDateRange(bars []types.Bar, start, end time.Time) []types.Bar

	// ByTrailingPeriod keeps the last period of bars.
	ByTrailingPeriod(bars []types.Bar, period time.Duration) []types.Bar
}

// ColumnMapping defines column positions and the timestamp layout for CSV
// sources.
type ColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// Predefined CSV formats
var (
	// DefaultCSVFormat matches "timestamp,open,high,low,close,volume" with a
	// plain datetime column.
	DefaultCSVFormat = ColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		MinColumns:   6,
		DateFormat:   "2006-01-02 15:04:05",
	}

	// DukascopyCSVFormat matches Dukascopy minute exports, whose "Gmt time"
	// column looks like "16.08.2023 00:00:00.000".
	DukascopyCSVFormat = ColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		MinColumns:   6,
		DateFormat:   "02.01.2006 15:04:05.000",
	}
)
