package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default parameter values
const (
	DefaultPipSize        = 0.0001
	DefaultWarmupMinutes  = 30
	DefaultCutoverMinutes = 10 * 60
	DefaultATRLookback    = 14
	DefaultATRMethod      = "sma"
	DefaultKATR           = 1.20
	DefaultVolClipLo      = 0.7
	DefaultVolClipHi      = 1.3
	DefaultVWAPAlpha      = 0.25
	DefaultIBK            = 1.0
	DefaultScaleMode      = "up_only"
	DefaultTPPips         = 20.0
	DefaultSLPips         = 20.0
	DefaultEntryLevels    = "l1"
	DefaultTieBreak       = "sl_first"
	DefaultThreshold      = 0.55
	DefaultTrainRatio     = 0.7
	DefaultSeed           = 42
)

// Config is the full run configuration, loadable from JSON or YAML.
type Config struct {
	Symbols  []string `json:"symbols" yaml:"symbols"`
	DataRoot string   `json:"data_root" yaml:"data_root"`
	PipSize  float64  `json:"pip_size" yaml:"pip_size"`

	Session struct {
		OpenMinutes    int `json:"open_minutes" yaml:"open_minutes"`
		CloseMinutes   int `json:"close_minutes" yaml:"close_minutes"`
		WarmupMinutes  int `json:"warmup_minutes" yaml:"warmup_minutes"`
		CutoverMinutes int `json:"cutover_minutes" yaml:"cutover_minutes"`
	} `json:"session" yaml:"session"`

	Volatility struct {
		Lookback   int     `json:"atr_lookback" yaml:"atr_lookback"`
		Method     string  `json:"atr_method" yaml:"atr_method"`
		MinPeriods int     `json:"atr_min_periods" yaml:"atr_min_periods"`
		KATR       float64 `json:"k_atr" yaml:"k_atr"`
		ClipLo     float64 `json:"clip_lo" yaml:"clip_lo"`
		ClipHi     float64 `json:"clip_hi" yaml:"clip_hi"`
	} `json:"volatility" yaml:"volatility"`

	Levels struct {
		VWAPAlpha  float64  `json:"vwap_alpha" yaml:"vwap_alpha"`
		VolScaleFV bool     `json:"vol_scale_fv" yaml:"vol_scale_fv"`
		IBK        float64  `json:"ib_k" yaml:"ib_k"`
		ScaleMode  string   `json:"scale_mode" yaml:"scale_mode"`
		CapGapLo   *float64 `json:"cap_gap_lo,omitempty" yaml:"cap_gap_lo,omitempty"`
		CapGapHi   *float64 `json:"cap_gap_hi,omitempty" yaml:"cap_gap_hi,omitempty"`
	} `json:"levels" yaml:"levels"`

	Backtest struct {
		TPPips   float64 `json:"tp_pips" yaml:"tp_pips"`
		SLPips   float64 `json:"sl_pips" yaml:"sl_pips"`
		Entries  string  `json:"entry_levels" yaml:"entry_levels"`
		TieBreak string  `json:"tie_break" yaml:"tie_break"`
	} `json:"backtest" yaml:"backtest"`

	Filter struct {
		Threshold  float64 `json:"threshold" yaml:"threshold"`
		TrainRatio float64 `json:"train_ratio" yaml:"train_ratio"`
		Seed       int64   `json:"seed" yaml:"seed"`
	} `json:"filter" yaml:"filter"`

	Workers     int `json:"workers" yaml:"workers"`
	MetricsPort int `json:"metrics_port" yaml:"metrics_port"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a JSON (.json) or YAML (.yaml/.yml) configuration file, applies
// defaults for unset fields and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse json config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PipSize <= 0 {
		c.PipSize = DefaultPipSize
	}
	if c.Session.WarmupMinutes <= 0 {
		c.Session.WarmupMinutes = DefaultWarmupMinutes
	}
	if c.Session.CutoverMinutes <= 0 {
		c.Session.CutoverMinutes = DefaultCutoverMinutes
	}
	if c.Volatility.Lookback <= 0 {
		c.Volatility.Lookback = DefaultATRLookback
	}
	if c.Volatility.Method == "" {
		c.Volatility.Method = DefaultATRMethod
	}
	if c.Volatility.KATR <= 0 {
		c.Volatility.KATR = DefaultKATR
	}
	if c.Volatility.ClipLo <= 0 {
		c.Volatility.ClipLo = DefaultVolClipLo
	}
	if c.Volatility.ClipHi <= 0 {
		c.Volatility.ClipHi = DefaultVolClipHi
	}
	if c.Levels.IBK <= 0 {
		c.Levels.IBK = DefaultIBK
	}
	if c.Levels.ScaleMode == "" {
		c.Levels.ScaleMode = DefaultScaleMode
	}
	if c.Backtest.TPPips <= 0 {
		c.Backtest.TPPips = DefaultTPPips
	}
	if c.Backtest.SLPips <= 0 {
		c.Backtest.SLPips = DefaultSLPips
	}
	if c.Backtest.Entries == "" {
		c.Backtest.Entries = DefaultEntryLevels
	}
	if c.Backtest.TieBreak == "" {
		c.Backtest.TieBreak = DefaultTieBreak
	}
	if c.Filter.Threshold <= 0 {
		c.Filter.Threshold = DefaultThreshold
	}
	if c.Filter.TrainRatio <= 0 {
		c.Filter.TrainRatio = DefaultTrainRatio
	}
	if c.Filter.Seed == 0 {
		c.Filter.Seed = DefaultSeed
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Volatility.ClipLo >= c.Volatility.ClipHi {
		return fmt.Errorf("clip_lo %.3f must be below clip_hi %.3f", c.Volatility.ClipLo, c.Volatility.ClipHi)
	}
	if c.Levels.VWAPAlpha < 0 || c.Levels.VWAPAlpha > 1 {
		return fmt.Errorf("vwap_alpha %.3f outside [0,1]", c.Levels.VWAPAlpha)
	}
	switch c.Levels.ScaleMode {
	case "none", "up_only", "both":
	default:
		return fmt.Errorf("scale_mode must be none, up_only or both, got %q", c.Levels.ScaleMode)
	}
	if c.Filter.Threshold < 0 || c.Filter.Threshold > 1 {
		return fmt.Errorf("threshold %.3f outside [0,1]", c.Filter.Threshold)
	}
	if c.Filter.TrainRatio <= 0 || c.Filter.TrainRatio >= 1 {
		return fmt.Errorf("train_ratio %.3f outside (0,1)", c.Filter.TrainRatio)
	}
	if c.Session.CloseMinutes != 0 && c.Session.OpenMinutes != 0 &&
		c.Session.CloseMinutes <= c.Session.OpenMinutes {
		return fmt.Errorf("session close %d must be after open %d", c.Session.CloseMinutes, c.Session.OpenMinutes)
	}
	return nil
}
