package features

import (
	"fmt"
	"math"
	"time"

	"github.com/fxlab/session-levels/internal/levels"
	"github.com/fxlab/session-levels/internal/session"
	"github.com/fxlab/session-levels/internal/volatility"
)

// Vector is the engineered feature set consumed by the external classifier.
// Keys are stable and enumerated by Schema.
type Vector map[string]float64

// schema is the fixed, ordered feature contract. The probability model is
// expected to consume exactly these keys.
var schema = []string{
	"hour", "day_of_week", "month",
	"hour_sin", "hour_cos",
	"dow_sin", "dow_cos",
	"month_sin", "month_cos",
	"in_sydney", "in_tokyo", "in_london", "in_newyork",
	"overlap_sydney_tokyo", "overlap_tokyo_london", "overlap_london_newyork",
	"minutes_since_open",
	"vol_score", "is_volatile", "insufficient_history",
	"dist_fv_mid", "dist_fv_high", "dist_fv_low",
	"dist_l1_up", "dist_l1_down",
}

// Schema returns the ordered feature names of the contract.
func Schema() []string {
	out := make([]string, len(schema))
	copy(out, schema)
	return out
}

// deskWindow is a session desk's local open/close in minutes of the day.
type deskWindow struct {
	openMin  int
	closeMin int
}

// Builder computes feature vectors at bar timestamps. Desk hours follow the
// FX convention: Sydney 08-17, Tokyo 09-18, London 08-17, New York 08-17
// local time, DST handled per zone.
type Builder struct {
	pipSize float64

	sydney, tokyo, london, newYork *time.Location
	sydneyW, tokyoW, londonW, nyW  deskWindow
}

// NewBuilder creates a feature builder. pipSize converts price distances to
// pips (0.0001 for EUR/USD).
func NewBuilder(pipSize float64) (*Builder, error) {
	if pipSize <= 0 {
		return nil, fmt.Errorf("pip size must be positive, got %g", pipSize)
	}
	b := &Builder{
		pipSize: pipSize,
		sydneyW: deskWindow{8 * 60, 17 * 60},
		tokyoW:  deskWindow{9 * 60, 18 * 60},
		londonW: deskWindow{8 * 60, 17 * 60},
		nyW:     deskWindow{8 * 60, 17 * 60},
	}
	for _, z := range []struct {
		name string
		dst  **time.Location
	}{
		{"Australia/Sydney", &b.sydney},
		{"Asia/Tokyo", &b.tokyo},
		{"Europe/London", &b.london},
		{"America/New_York", &b.newYork},
	} {
		loc, err := time.LoadLocation(z.name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", z.name, err)
		}
		*z.dst = loc
	}
	return b, nil
}

// At snapshots the feature vector for a bar given the day's session markers,
// the active level set and the day's volatility record.
func (b *Builder) At(bar session.AnnotatedBar, day session.Day, set *levels.Set, vol volatility.Record) Vector {
	ts := bar.Timestamp
	v := Vector{
		"hour":        float64(ts.UTC().Hour()),
		"day_of_week": float64((int(ts.UTC().Weekday()) + 6) % 7), // 0=Mon..6=Sun
		"month":       float64(int(ts.UTC().Month())),
	}
	addCyclical(v, "hour", v["hour"], 24)
	addCyclical(v, "dow", v["day_of_week"], 7)
	addCyclical(v, "month", v["month"]-1, 12)

	inSyd := inWindow(ts, b.sydney, b.sydneyW)
	inTyo := inWindow(ts, b.tokyo, b.tokyoW)
	inLon := inWindow(ts, b.london, b.londonW)
	inNY := inWindow(ts, b.newYork, b.nyW)
	v["in_sydney"] = boolFeature(inSyd)
	v["in_tokyo"] = boolFeature(inTyo)
	v["in_london"] = boolFeature(inLon)
	v["in_newyork"] = boolFeature(inNY)
	v["overlap_sydney_tokyo"] = boolFeature(inSyd && inTyo)
	v["overlap_tokyo_london"] = boolFeature(inTyo && inLon)
	v["overlap_london_newyork"] = boolFeature(inLon && inNY)

	v["minutes_since_open"] = ts.Sub(day.NYOpen).Minutes()

	v["vol_score"] = vol.VolScore
	v["is_volatile"] = boolFeature(vol.IsVolatile)
	v["insufficient_history"] = boolFeature(vol.InsufficientHistory)

	price := bar.Close
	v["dist_fv_mid"] = b.pips(price - set.FVMid)
	v["dist_fv_high"] = b.pips(price - set.FVHigh)
	v["dist_fv_low"] = b.pips(price - set.FVLow)
	v["dist_l1_up"] = b.pips(price - set.L1Up)
	v["dist_l1_down"] = b.pips(price - set.L1Down)

	return v
}

func (b *Builder) pips(dist float64) float64 {
	return dist / b.pipSize
}

func addCyclical(v Vector, prefix string, value, period float64) {
	radians := 2 * math.Pi * math.Mod(value, period) / period
	v[prefix+"_sin"] = math.Sin(radians)
	v[prefix+"_cos"] = math.Cos(radians)
}

// inWindow reports membership in [open, close) local desk time. Windows that
// cross midnight wrap around.
func inWindow(ts time.Time, loc *time.Location, w deskWindow) bool {
	local := ts.In(loc)
	m := local.Hour()*60 + local.Minute()
	if w.openMin <= w.closeMin {
		return m >= w.openMin && m < w.closeMin
	}
	return m >= w.openMin || m < w.closeMin
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
