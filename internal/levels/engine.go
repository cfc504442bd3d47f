package levels

import (
	"fmt"
	"time"

	"github.com/fxlab/session-levels/internal/session"
	"github.com/fxlab/session-levels/internal/volatility"
)

// ScaleMode selects how the volatility score stretches the L1 gap.
type ScaleMode string

const (
	// ScaleNone ignores the volatility score.
	ScaleNone ScaleMode = "none"
	// ScaleUpOnly expands the upper gap on high volatility but never
	// shrinks it; the lower gap stays at its base offset.
	ScaleUpOnly ScaleMode = "up_only"
	// ScaleBoth expands or shrinks both gaps with the score.
	ScaleBoth ScaleMode = "both"
)

// Set holds one trading day's finalized reference levels. It is computed
// once, after the warmup window closes, from warmup-window bars only, and is
// immutable thereafter. BuiltAt records the earliest instant the set may
// legally be consulted.
type Set struct {
	Day string

	IBHigh float64
	IBLow  float64

	FVLow  float64
	FVMid  float64
	FVHigh float64

	// HalfWidth is the FV zone half-width after optional volatility scaling.
	HalfWidth float64

	// GapUp and GapDown are the offsets from the FV edges to the L1 bands.
	GapUp   float64
	GapDown float64

	L1Up   float64
	L1Down float64

	// VWAP is the rolling 24h volume-weighted price at warmup end; zero when
	// no volume was available in the window.
	VWAP float64

	BuiltAt time.Time
}

// EngineConfig controls FV/L1 derivation.
type EngineConfig struct {
	// VWAPAlpha in [0,1] blends the warmup midpoint with the rolling 24h
	// VWAP. Zero disables the blend.
	VWAPAlpha float64
	// VolScaleFV scales the FV half-width by the day's volatility score.
	VolScaleFV bool
	// IBK multiplies the warmup range to produce the base L1 gap.
	IBK float64
	// Mode is the volatility scaling mode for the L1 gaps.
	Mode ScaleMode
	// CapGapLo/CapGapHi clamp the scaled gap when non-nil.
	CapGapLo *float64
	CapGapHi *float64
}

func (c EngineConfig) validated() (EngineConfig, error) {
	if c.VWAPAlpha < 0 || c.VWAPAlpha > 1 {
		return c, fmt.Errorf("vwap alpha %.3f outside [0,1]", c.VWAPAlpha)
	}
	if c.IBK <= 0 {
		c.IBK = 1.0
	}
	switch c.Mode {
	case "":
		c.Mode = ScaleUpOnly
	case ScaleNone, ScaleUpOnly, ScaleBoth:
	default:
		return c, fmt.Errorf("unknown scale mode %q", c.Mode)
	}
	return c, nil
}

// Engine derives daily level sets from warmup-window bars.
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates a level engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	v, err := cfg.validated()
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: v}, nil
}

// Build computes the level set for one trading day. Only bars strictly before
// the warmup end feed the derivation; bars at or after it are ignored. It
// returns nil when the warmup window holds no bars (no levels that day).
func (e *Engine) Build(day session.Day, bars []session.AnnotatedBar, vol volatility.Record) *Set {
	ibHigh, ibLow, found := warmupExtremes(day, bars)
	if !found {
		return nil
	}

	mid := 0.5 * (ibHigh + ibLow)
	halfWidth := 0.5 * (ibHigh - ibLow)

	vwap, hasVWAP := rolling24hVWAP(day.WarmupEnd, bars)
	if hasVWAP && e.cfg.VWAPAlpha > 0 {
		mid = (1-e.cfg.VWAPAlpha)*mid + e.cfg.VWAPAlpha*vwap
	}

	if e.cfg.VolScaleFV {
		halfWidth *= vol.VolScore
	}

	baseGap := (ibHigh - ibLow) * e.cfg.IBK
	gapUp, gapDown := baseGap, baseGap
	switch e.cfg.Mode {
	case ScaleUpOnly:
		if vol.VolScore > 1.0 {
			gapUp = baseGap * vol.VolScore
		}
	case ScaleBoth:
		gapUp = baseGap * vol.VolScore
		gapDown = baseGap * vol.VolScore
	}
	gapUp = e.capGap(gapUp)
	gapDown = e.capGap(gapDown)

	fvLow := mid - halfWidth
	fvHigh := mid + halfWidth

	s := &Set{
		Day:       day.Date,
		IBHigh:    ibHigh,
		IBLow:     ibLow,
		FVLow:     fvLow,
		FVMid:     mid,
		FVHigh:    fvHigh,
		HalfWidth: halfWidth,
		GapUp:     gapUp,
		GapDown:   gapDown,
		L1Up:      fvHigh + gapUp,
		L1Down:    fvLow - gapDown,
		BuiltAt:   day.WarmupEnd,
	}
	if hasVWAP {
		s.VWAP = vwap
	}
	return s
}

func (e *Engine) capGap(gap float64) float64 {
	if e.cfg.CapGapLo != nil && gap < *e.cfg.CapGapLo {
		gap = *e.cfg.CapGapLo
	}
	if e.cfg.CapGapHi != nil && gap > *e.cfg.CapGapHi {
		gap = *e.cfg.CapGapHi
	}
	return gap
}

// warmupExtremes scans [NYOpen, WarmupEnd) for the day's bars.
func warmupExtremes(day session.Day, bars []session.AnnotatedBar) (high, low float64, found bool) {
	for _, bar := range bars {
		if bar.Day != day.Date {
			continue
		}
		if bar.Timestamp.Before(day.NYOpen) || !bar.Timestamp.Before(day.WarmupEnd) {
			continue
		}
		if !found || bar.High > high {
			high = bar.High
		}
		if !found || bar.Low < low {
			low = bar.Low
		}
		found = true
	}
	return high, low, found
}

// rolling24hVWAP accumulates typical price weighted by volume over the 24h
// window ending at the cutoff, exclusive of bars after it.
func rolling24hVWAP(cutoff time.Time, bars []session.AnnotatedBar) (float64, bool) {
	start := cutoff.Add(-24 * time.Hour)
	var pv, vol float64
	for _, bar := range bars {
		if !bar.Timestamp.After(start) || bar.Timestamp.After(cutoff) {
			continue
		}
		if bar.Volume <= 0 {
			continue
		}
		pv += bar.TypicalPrice() * bar.Volume
		vol += bar.Volume
	}
	if vol <= 0 {
		return 0, false
	}
	return pv / vol, true
}
