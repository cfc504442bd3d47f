package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlab/session-levels/internal/levels"
	"github.com/fxlab/session-levels/internal/session"
	"github.com/fxlab/session-levels/internal/volatility"
	"github.com/fxlab/session-levels/pkg/types"
)

func fixtureInputs(ts time.Time, closePx float64) (session.AnnotatedBar, session.Day, *levels.Set, volatility.Record) {
	bar := session.AnnotatedBar{
		Bar: types.Bar{Timestamp: ts, Open: closePx, High: closePx, Low: closePx, Close: closePx, Volume: 100},
		Day: "2023-08-18",
	}
	day := session.Day{
		Date:      "2023-08-18",
		NYOpen:    time.Date(2023, 8, 18, 13, 30, 0, 0, time.UTC),
		WarmupEnd: time.Date(2023, 8, 18, 14, 0, 0, 0, time.UTC),
		NYClose:   time.Date(2023, 8, 18, 20, 0, 0, 0, time.UTC),
	}
	set := &levels.Set{
		Day:    "2023-08-18",
		FVMid:  1.1050,
		FVHigh: 1.1060,
		FVLow:  1.1040,
		L1Up:   1.1100,
		L1Down: 1.1000,
	}
	vol := volatility.Record{Day: "2023-08-18", VolScore: 1.1, IsVolatile: false}
	return bar, day, set, vol
}

func TestAt_CoversFullSchema(t *testing.T) {
	b, err := NewBuilder(0.0001)
	require.NoError(t, err)

	bar, day, set, vol := fixtureInputs(time.Date(2023, 8, 18, 14, 30, 0, 0, time.UTC), 1.1070)
	v := b.At(bar, day, set, vol)

	require.Len(t, v, len(Schema()))
	for _, name := range Schema() {
		_, ok := v[name]
		assert.True(t, ok, "missing feature %s", name)
	}
}

func TestAt_TimeFeatures(t *testing.T) {
	b, err := NewBuilder(0.0001)
	require.NoError(t, err)

	// Friday 2023-08-18 14:30 UTC, one hour past the NY open.
	bar, day, set, vol := fixtureInputs(time.Date(2023, 8, 18, 14, 30, 0, 0, time.UTC), 1.1070)
	v := b.At(bar, day, set, vol)

	assert.Equal(t, 14.0, v["hour"])
	assert.Equal(t, 4.0, v["day_of_week"]) // Monday=0
	assert.Equal(t, 8.0, v["month"])
	assert.InDelta(t, 60.0, v["minutes_since_open"], 1e-9)
}

func TestAt_CyclicalEncodingsOnUnitCircle(t *testing.T) {
	b, err := NewBuilder(0.0001)
	require.NoError(t, err)

	bar, day, set, vol := fixtureInputs(time.Date(2023, 8, 18, 6, 0, 0, 0, time.UTC), 1.1070)
	v := b.At(bar, day, set, vol)

	for _, prefix := range []string{"hour", "dow", "month"} {
		s, c := v[prefix+"_sin"], v[prefix+"_cos"]
		assert.InDelta(t, 1.0, s*s+c*c, 1e-9, "%s encoding off the unit circle", prefix)
	}
	// 6:00 UTC is a quarter of the day.
	assert.InDelta(t, 1.0, v["hour_sin"], 1e-9)
	assert.InDelta(t, 0.0, v["hour_cos"], 1e-9)
}

func TestAt_DeskFlagsLondonNewYorkOverlap(t *testing.T) {
	b, err := NewBuilder(0.0001)
	require.NoError(t, err)

	// 14:30 UTC in August: 15:30 London (BST), 10:30 New York (EDT), past
	// both desk opens; Sydney (00:30 next day) and Tokyo (23:30) are closed.
	bar, day, set, vol := fixtureInputs(time.Date(2023, 8, 18, 14, 30, 0, 0, time.UTC), 1.1070)
	v := b.At(bar, day, set, vol)

	assert.Equal(t, 1.0, v["in_london"])
	assert.Equal(t, 1.0, v["in_newyork"])
	assert.Equal(t, 1.0, v["overlap_london_newyork"])
	assert.Equal(t, 0.0, v["in_sydney"])
	assert.Equal(t, 0.0, v["in_tokyo"])
	assert.Equal(t, 0.0, v["overlap_sydney_tokyo"])
}

func TestAt_LevelDistancesInPips(t *testing.T) {
	b, err := NewBuilder(0.0001)
	require.NoError(t, err)

	bar, day, set, vol := fixtureInputs(time.Date(2023, 8, 18, 14, 30, 0, 0, time.UTC), 1.1070)
	v := b.At(bar, day, set, vol)

	assert.InDelta(t, 20.0, v["dist_fv_mid"], 1e-6)
	assert.InDelta(t, 10.0, v["dist_fv_high"], 1e-6)
	assert.InDelta(t, 30.0, v["dist_fv_low"], 1e-6)
	assert.InDelta(t, -30.0, v["dist_l1_up"], 1e-6)
	assert.InDelta(t, 70.0, v["dist_l1_down"], 1e-6)
}

func TestAt_VolatilityFeatures(t *testing.T) {
	b, err := NewBuilder(0.0001)
	require.NoError(t, err)

	bar, day, set, vol := fixtureInputs(time.Date(2023, 8, 18, 14, 30, 0, 0, time.UTC), 1.1070)
	vol.IsVolatile = true
	vol.InsufficientHistory = true
	v := b.At(bar, day, set, vol)

	assert.InDelta(t, 1.1, v["vol_score"], 1e-9)
	assert.Equal(t, 1.0, v["is_volatile"])
	assert.Equal(t, 1.0, v["insufficient_history"])
}

func TestSchema_StableAndCopied(t *testing.T) {
	a := Schema()
	b := Schema()
	require.Equal(t, a, b)

	a[0] = "mutated"
	assert.NotEqual(t, a[0], Schema()[0])
}

func TestNewBuilder_RejectsNonPositivePipSize(t *testing.T) {
	_, err := NewBuilder(0)
	assert.Error(t, err)
	_, err = NewBuilder(-0.0001)
	assert.Error(t, err)
}

func TestAt_MidnightWrapWindow(t *testing.T) {
	b, err := NewBuilder(0.0001)
	require.NoError(t, err)

	// 23:00 UTC in August is 09:00 in Sydney (AEST, UTC+10): the desk is
	// open even though the UTC day is about to roll.
	bar, day, set, vol := fixtureInputs(time.Date(2023, 8, 18, 23, 0, 0, 0, time.UTC), 1.1070)
	v := b.At(bar, day, set, vol)
	assert.Equal(t, 1.0, v["in_sydney"])
	assert.False(t, math.IsNaN(v["hour_sin"]))
}
