package levels

import (
	"errors"
	"time"

	"github.com/fxlab/session-levels/internal/session"
)

// ErrNoActiveLevel is returned before any prior level set exists. It signals
// that entries are impossible at this timestamp, not a failure.
var ErrNoActiveLevel = errors.New("no active level set for timestamp")

// DefaultCutoverMinutes is the NY time-of-day (10:00) at which a day's own
// levels become usable, provided its warmup window has closed.
const DefaultCutoverMinutes = 10 * 60

// Tracker answers which day's level set is legally visible at a timestamp.
// It is a pure query over (timestamp, finalized set map): nothing is cached,
// so a stale pointer can never leak a not-yet-finalized set. This is the
// primary guarantee that no trade decision at time T depends on a set whose
// inputs include bars at or after T.
type Tracker struct {
	sessionizer    *session.Sessionizer
	days           *session.Log
	sets           map[string]*Set
	cutoverMinutes int
}

// NewTracker creates a tracker over a finalized day log and set map.
func NewTracker(s *session.Sessionizer, days *session.Log, sets map[string]*Set, cutoverMinutes int) *Tracker {
	if cutoverMinutes <= 0 {
		cutoverMinutes = DefaultCutoverMinutes
	}
	return &Tracker{
		sessionizer:    s,
		days:           days,
		sets:           sets,
		cutoverMinutes: cutoverMinutes,
	}
}

// Active returns the level set visible at ts. Today's set is used once the
// NY time-of-day has reached the cutover and the set's warmup window has
// closed; otherwise the most recent prior day's finalized set carries
// forward. ErrNoActiveLevel before any usable set exists.
func (t *Tracker) Active(ts time.Time) (*Set, error) {
	date := t.sessionizer.TradingDate(ts)

	if set, ok := t.sets[date]; ok && t.pastCutover(ts) && !ts.Before(set.BuiltAt) {
		return set, nil
	}

	// Carry the most recent prior finalized set forward. Days without a
	// warmup window (holidays, data gaps) are skipped.
	idx, ok := t.days.Index(date)
	if !ok {
		// Timestamp outside the recorded day log: fall back to the last
		// set finalized before ts.
		return t.latestBefore(ts)
	}
	for i := idx - 1; i >= 0; i-- {
		prev := t.days.At(i)
		if set, ok := t.sets[prev.Date]; ok && !ts.Before(set.BuiltAt) {
			return set, nil
		}
	}
	return nil, ErrNoActiveLevel
}

func (t *Tracker) pastCutover(ts time.Time) bool {
	ny := ts.In(t.sessionizer.Location())
	return ny.Hour()*60+ny.Minute() >= t.cutoverMinutes
}

func (t *Tracker) latestBefore(ts time.Time) (*Set, error) {
	for i := t.days.Len() - 1; i >= 0; i-- {
		if set, ok := t.sets[t.days.At(i).Date]; ok && !ts.Before(set.BuiltAt) {
			return set, nil
		}
	}
	return nil, ErrNoActiveLevel
}
