package volatility

import (
	"math"

	"github.com/fxlab/session-levels/internal/session"
)

const (
	// DefaultLookback is the ATR window in trading days
	DefaultLookback = 14

	// DefaultKATR flags a day as volatile when the raw range/ATR ratio
	// reaches this value. Independent from the clip ceiling.
	DefaultKATR = 1.20

	// DefaultClipLo and DefaultClipHi bound the usable volatility score
	DefaultClipLo = 0.7
	DefaultClipHi = 1.3
)

// Record is the per-day volatility regime, computed once from bars strictly
// before the NY open plus prior-day history. Immutable after computation.
type Record struct {
	Day        string
	PreUSRange float64
	ATR        float64
	// RawScore is PreUSRange/ATR before clipping; the volatile flag is
	// decided on this value, not the clipped one.
	RawScore   float64
	VolScore   float64
	IsVolatile bool
	// InsufficientHistory marks days with too few prior days for a reliable
	// ATR. The score defaults to neutral (1.0) and downstream consumers may
	// exclude the day.
	InsufficientHistory bool
}

// Config controls ATR smoothing and the volatility flag threshold.
type Config struct {
	Lookback int
	// Method selects ATR smoothing: "sma" (default) or "ema".
	Method string
	// MinPeriods is the minimum number of prior days required before the
	// ATR is considered defined. Defaults to Lookback.
	MinPeriods int
	KATR       float64
	ClipLo     float64
	ClipHi     float64
}

func (c Config) withDefaults() Config {
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	if c.Method == "" {
		c.Method = "sma"
	}
	if c.MinPeriods <= 0 {
		c.MinPeriods = c.Lookback
	}
	if c.KATR <= 0 {
		c.KATR = DefaultKATR
	}
	if c.ClipLo <= 0 {
		c.ClipLo = DefaultClipLo
	}
	if c.ClipHi <= 0 {
		c.ClipHi = DefaultClipHi
	}
	return c
}

// Scorer computes per-day volatility records from an annotated bar stream.
type Scorer struct {
	cfg Config
}

// NewScorer creates a volatility scorer.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg.withDefaults()}
}

// dayAggregate holds the full-session OHLC extremes needed for true range.
type dayAggregate struct {
	date    string
	high    float64
	low     float64
	close   float64
	preHigh float64
	preLow  float64
	hasPre  bool
	hasBars bool
}

// Score walks the day log in order and produces one Record per trading day.
// The ATR at day d averages the true ranges of days strictly before d, so no
// day's own data influences its score.
func (s *Scorer) Score(bars []session.AnnotatedBar, days *session.Log) map[string]Record {
	aggs := s.aggregate(bars, days)

	// True range per day from full-session extremes and the prior close.
	trueRanges := make([]float64, 0, len(aggs))
	records := make(map[string]Record, len(aggs))

	var ema float64
	emaCount := 0
	alpha := 2.0 / (float64(s.cfg.Lookback) + 1.0)

	for i, agg := range aggs {
		atr, defined := 0.0, false
		if s.cfg.Method == "ema" {
			if emaCount >= s.cfg.MinPeriods {
				atr, defined = ema, true
			}
		} else {
			atr, defined = s.sma(trueRanges)
		}

		rec := Record{Day: agg.date, VolScore: 1.0}
		if agg.hasPre {
			rec.PreUSRange = agg.preHigh - agg.preLow
		}

		if !defined || atr <= 0 || !agg.hasPre {
			rec.InsufficientHistory = true
		} else {
			rec.ATR = atr
			rec.RawScore = rec.PreUSRange / atr
			rec.VolScore = clip(rec.RawScore, s.cfg.ClipLo, s.cfg.ClipHi)
			rec.IsVolatile = rec.RawScore >= s.cfg.KATR
		}
		records[agg.date] = rec

		// Fold today's true range into the history for subsequent days.
		if agg.hasBars {
			tr := agg.high - agg.low
			if i > 0 && aggs[i-1].hasBars {
				prevClose := aggs[i-1].close
				tr = math.Max(tr, math.Max(math.Abs(agg.high-prevClose), math.Abs(agg.low-prevClose)))
			}
			trueRanges = append(trueRanges, tr)
			if emaCount == 0 {
				ema = tr
			} else {
				ema = alpha*tr + (1-alpha)*ema
			}
			emaCount++
		}
	}
	return records
}

// aggregate reduces the bar stream to per-day session extremes and the pre-US
// window extremes (bars with NY time strictly before the open).
func (s *Scorer) aggregate(bars []session.AnnotatedBar, days *session.Log) []dayAggregate {
	byDay := make(map[string]*dayAggregate, days.Len())
	ordered := make([]dayAggregate, 0, days.Len())

	for i := 0; i < days.Len(); i++ {
		d := days.At(i)
		byDay[d.Date] = &dayAggregate{date: d.Date}
	}

	for _, bar := range bars {
		agg, ok := byDay[bar.Day]
		if !ok {
			continue
		}
		if !agg.hasBars || bar.High > agg.high {
			agg.high = bar.High
		}
		if !agg.hasBars || bar.Low < agg.low {
			agg.low = bar.Low
		}
		agg.close = bar.Close
		agg.hasBars = true

		day, _ := days.Get(bar.Day)
		if bar.Timestamp.Before(day.NYOpen) {
			if !agg.hasPre || bar.High > agg.preHigh {
				agg.preHigh = bar.High
			}
			if !agg.hasPre || bar.Low < agg.preLow {
				agg.preLow = bar.Low
			}
			agg.hasPre = true
		}
	}

	for i := 0; i < days.Len(); i++ {
		ordered = append(ordered, *byDay[days.At(i).Date])
	}
	return ordered
}

func (s *Scorer) sma(trueRanges []float64) (float64, bool) {
	n := len(trueRanges)
	if n < s.cfg.MinPeriods {
		return 0, false
	}
	window := trueRanges
	if n > s.cfg.Lookback {
		window = trueRanges[n-s.cfg.Lookback:]
	}
	sum := 0.0
	for _, tr := range window {
		sum += tr
	}
	return sum / float64(len(window)), true
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
