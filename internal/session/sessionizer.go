package session

import (
	"fmt"
	"time"

	"github.com/fxlab/session-levels/pkg/types"
)

const (
	// DefaultMarketOpen is the NY cash open in local wall-clock minutes (09:30)
	DefaultMarketOpen = 9*60 + 30

	// DefaultMarketClose is the NY cash close in local wall-clock minutes (16:00)
	DefaultMarketClose = 16 * 60

	// DefaultWarmupMinutes is the initial-balance window after the open
	DefaultWarmupMinutes = 30
)

// TimestampOrderError indicates a non-monotonic bar stream. It is fatal for
// the affected symbol stream because data integrity cannot be repaired locally.
type TimestampOrderError struct {
	Index    int
	Previous time.Time
	Current  time.Time
}

func (e *TimestampOrderError) Error() string {
	return fmt.Sprintf("bar %d timestamp %s precedes %s: input must be monotonically non-decreasing",
		e.Index, e.Current.Format(time.RFC3339), e.Previous.Format(time.RFC3339))
}

// Day identifies one U.S. trading day and its canonical session markers.
// Weekend bars (Saturday/Sunday NY time) are folded into the following
// Monday's Day. Markers are absolute UTC instants derived from NY wall-clock
// times, so historical daylight-saving transitions are handled by the zone
// database rather than a fixed offset.
type Day struct {
	// Date is the NY calendar date of the trading day, formatted 2006-01-02.
	Date string

	NYOpen    time.Time
	WarmupEnd time.Time
	NYClose   time.Time
}

// AnnotatedBar is a bar tagged with its trading day and NY wall-clock time.
type AnnotatedBar struct {
	types.Bar

	Day    string
	NYTime time.Time
}

// Sessionizer maps UTC bar timestamps to U.S. trading days.
type Sessionizer struct {
	loc           *time.Location
	openMinutes   int
	closeMinutes  int
	warmupMinutes int
}

// Config controls session boundaries. Zero values fall back to the NY cash
// session defaults (09:30 open, 16:00 close, 30 minute warmup).
type Config struct {
	OpenMinutes   int
	CloseMinutes  int
	WarmupMinutes int
}

// New creates a Sessionizer for the America/New_York market calendar.
func New(cfg Config) (*Sessionizer, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load NY timezone: %w", err)
	}
	if cfg.OpenMinutes <= 0 {
		cfg.OpenMinutes = DefaultMarketOpen
	}
	if cfg.CloseMinutes <= 0 {
		cfg.CloseMinutes = DefaultMarketClose
	}
	if cfg.WarmupMinutes <= 0 {
		cfg.WarmupMinutes = DefaultWarmupMinutes
	}
	if cfg.CloseMinutes <= cfg.OpenMinutes {
		return nil, fmt.Errorf("market close %d must be after open %d", cfg.CloseMinutes, cfg.OpenMinutes)
	}
	return &Sessionizer{
		loc:           loc,
		openMinutes:   cfg.OpenMinutes,
		closeMinutes:  cfg.CloseMinutes,
		warmupMinutes: cfg.WarmupMinutes,
	}, nil
}

// Location returns the market time zone.
func (s *Sessionizer) Location() *time.Location {
	return s.loc
}

// TradingDate returns the NY calendar date a UTC timestamp belongs to.
// Saturday and Sunday roll forward to the following Monday.
func (s *Sessionizer) TradingDate(ts time.Time) string {
	ny := ts.In(s.loc)
	switch ny.Weekday() {
	case time.Saturday:
		ny = ny.AddDate(0, 0, 2)
	case time.Sunday:
		ny = ny.AddDate(0, 0, 1)
	}
	return ny.Format("2006-01-02")
}

// DayFor builds the session markers for the trading day containing ts.
func (s *Sessionizer) DayFor(ts time.Time) Day {
	return s.dayForDate(s.TradingDate(ts))
}

func (s *Sessionizer) dayForDate(date string) Day {
	// date is always produced by TradingDate, so parse cannot fail here
	d, _ := time.ParseInLocation("2006-01-02", date, s.loc)
	open := time.Date(d.Year(), d.Month(), d.Day(), s.openMinutes/60, s.openMinutes%60, 0, 0, s.loc)
	closeT := time.Date(d.Year(), d.Month(), d.Day(), s.closeMinutes/60, s.closeMinutes%60, 0, 0, s.loc)
	return Day{
		Date:      date,
		NYOpen:    open.UTC(),
		WarmupEnd: open.Add(time.Duration(s.warmupMinutes) * time.Minute).UTC(),
		NYClose:   closeT.UTC(),
	}
}

// Annotate tags every bar with its trading day and NY wall-clock time and
// returns the ordered log of distinct trading days encountered. It fails with
// TimestampOrderError if the stream is not monotonically non-decreasing.
func (s *Sessionizer) Annotate(bars []types.Bar) ([]AnnotatedBar, *Log, error) {
	annotated := make([]AnnotatedBar, 0, len(bars))
	log := NewLog()

	var prev time.Time
	for i, bar := range bars {
		if i > 0 && bar.Timestamp.Before(prev) {
			return nil, nil, &TimestampOrderError{Index: i, Previous: prev, Current: bar.Timestamp}
		}
		prev = bar.Timestamp

		date := s.TradingDate(bar.Timestamp)
		if _, ok := log.Get(date); !ok {
			log.Append(s.dayForDate(date))
		}
		annotated = append(annotated, AnnotatedBar{
			Bar:    bar,
			Day:    date,
			NYTime: bar.Timestamp.In(s.loc),
		})
	}
	return annotated, log, nil
}
