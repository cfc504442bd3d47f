package session

// Log is an append-only ordered record of finalized trading days. Days are
// appended in stream order and never mutated, which keeps prior-day lookups
// (the carry-forward rule) a pure index operation.
type Log struct {
	days  []Day
	index map[string]int
}

// NewLog creates an empty day log.
func NewLog() *Log {
	return &Log{index: make(map[string]int)}
}

// Append adds a day to the log. Days must arrive in chronological order.
func (l *Log) Append(d Day) {
	l.index[d.Date] = len(l.days)
	l.days = append(l.days, d)
}

// Get returns the day for a trading date, if recorded.
func (l *Log) Get(date string) (Day, bool) {
	i, ok := l.index[date]
	if !ok {
		return Day{}, false
	}
	return l.days[i], true
}

// Index returns the position of a trading date in the log.
func (l *Log) Index(date string) (int, bool) {
	i, ok := l.index[date]
	return i, ok
}

// Prev returns the trading day immediately before the given date in the log.
func (l *Log) Prev(date string) (Day, bool) {
	i, ok := l.index[date]
	if !ok || i == 0 {
		return Day{}, false
	}
	return l.days[i-1], true
}

// At returns the day at position i.
func (l *Log) At(i int) Day {
	return l.days[i]
}

// Len returns the number of recorded days.
func (l *Log) Len() int {
	return len(l.days)
}

// Days returns the ordered day slice. Callers must not mutate it.
func (l *Log) Days() []Day {
	return l.days
}
