package data

import (
	"time"

	"github.com/fxlab/session-levels/pkg/types"
)

// DefaultFilter implements Filter for common narrowing operations.
type DefaultFilter struct{}

// NewDefaultFilter creates a default filter.
func NewDefaultFilter() *DefaultFilter {
	return &DefaultFilter{}
}

// ByDateRange keeps bars within [start, end]. Zero start or end disables
// that bound.
func (f *DefaultFilter) ByDateRange(bars []types.Bar, start, end time.Time) []types.Bar {
	if len(bars) == 0 {
		return bars
	}
	out := make([]types.Bar, 0, len(bars))
	for _, bar := range bars {
		if !start.IsZero() && bar.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && bar.Timestamp.After(end) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

// ByTrailingPeriod keeps the last period of bars relative to the latest
// timestamp.
func (f *DefaultFilter) ByTrailingPeriod(bars []types.Bar, period time.Duration) []types.Bar {
	if period <= 0 || len(bars) == 0 {
		return bars
	}
	cutoff := bars[len(bars)-1].Timestamp.Add(-period)
	start := 0
	for i, bar := range bars {
		if !bar.Timestamp.Before(cutoff) {
			start = i
			break
		}
	}
	return bars[start:]
}

// ParseTrailingPeriod parses shorthand like "30d" or "180d" into a duration.
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	if len(s) < 2 || s[len(s)-1] != 'd' {
		return 0, false
	}
	days := 0
	for _, c := range s[:len(s)-1] {
		if c < '0' || c > '9' {
			return 0, false
		}
		days = days*10 + int(c-'0')
	}
	if days == 0 {
		return 0, false
	}
	return time.Duration(days) * 24 * time.Hour, true
}
