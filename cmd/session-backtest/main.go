package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fxlab/session-levels/internal/backtest"
	"github.com/fxlab/session-levels/internal/config"
	"github.com/fxlab/session-levels/internal/monitoring"
	"github.com/fxlab/session-levels/internal/pipeline"
	"github.com/fxlab/session-levels/pkg/data"
	"github.com/fxlab/session-levels/pkg/reporting"
	"github.com/fxlab/session-levels/pkg/types"
)

const (
	AppName    = "Session Levels Backtest"
	AppVersion = "1.2.0"
)

func main() {
	flags := NewFlags()
	flag.Parse()

	if *flags.ShowVersion {
		fmt.Printf("%s v%s\n", AppName, AppVersion)
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if *flags.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	loadEnvironment(*flags.EnvFile)

	cfg, err := loadConfiguration(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	fmt.Printf("🚀 %s v%s\n", AppName, AppVersion)
	fmt.Printf("   symbols=%s tp=%.0fp sl=%.0fp mode=%s threshold=%.2f\n",
		strings.Join(cfg.Symbols, ","), cfg.Backtest.TPPips, cfg.Backtest.SLPips,
		cfg.Levels.ScaleMode, cfg.Filter.Threshold)

	health := monitoring.NewHealthChecker()
	if *flags.MetricsPort > 0 {
		srv := monitoring.Serve(*flags.MetricsPort, health)
		defer srv.Close()
		log.Info().Int("port", *flags.MetricsPort).Msg("metrics endpoint up")
	}

	barsBySymbol, err := loadBars(cfg, flags)
	if err != nil {
		log.Fatal().Err(err).Msg("data load error")
	}

	runner := pipeline.NewRunner(cfg, nil, log.Logger)

	pool := backtest.NewWorkerPool(cfg.Workers, len(cfg.Symbols))
	pool.Start()
	health.SetPending(len(barsBySymbol))

	submitted := 0
	for symbol, bars := range barsBySymbol {
		sym := symbol
		b := bars
		err := pool.Submit(backtest.Job{
			Symbol: sym,
			Bars:   b,
			Run: func(symbol string, bars []types.Bar) (*backtest.Results, error) {
				res, err := runner.Run(symbol, bars)
				if err != nil {
					return nil, err
				}
				symbolResults.store(res)
				return res.Backtest, nil
			},
		})
		if err != nil {
			log.Error().Err(err).Str("symbol", sym).Msg("submit failed")
			continue
		}
		submitted++
	}

	go pool.Stop()

	var results []*pipeline.Result
	for jr := range pool.Results() {
		monitoring.RecordRunDuration(jr.Symbol, jr.Duration)
		if jr.Error != nil {
			// A fatal error halts only this symbol's stream.
			health.SymbolDone(true)
			log.Error().Err(jr.Error).Str("symbol", jr.Symbol).Msg("symbol stream failed")
			continue
		}
		health.SymbolDone(false)
		if res, ok := symbolResults.get(jr.Symbol); ok {
			results = append(results, res)
		}
	}

	if len(results) == 0 {
		log.Fatal().Msg("no symbol completed")
	}

	writeOutputs(results, flags)
}

// loadEnvironment loads the env file when present; a missing file is fine.
func loadEnvironment(path string) {
	if err := godotenv.Load(path); err == nil {
		log.Debug().Str("file", path).Msg("environment loaded")
	}
}

// loadConfiguration merges the config file with flag overrides.
func loadConfiguration(flags *Flags) (*config.Config, error) {
	cfg := config.Default()
	if *flags.ConfigFile != "" {
		loaded, err := config.Load(*flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *flags.Symbols != "" {
		cfg.Symbols = splitSymbols(*flags.Symbols)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}
	if *flags.DataRoot != "" {
		cfg.DataRoot = *flags.DataRoot
	}
	if *flags.Threshold > 0 {
		cfg.Filter.Threshold = *flags.Threshold
	}
	if *flags.Workers > 0 {
		cfg.Workers = *flags.Workers
	}
	if *flags.MetricsPort > 0 {
		cfg.MetricsPort = *flags.MetricsPort
	}
	return cfg, cfg.Validate()
}

// loadBars loads and filters bars for every configured symbol.
func loadBars(cfg *config.Config, flags *Flags) (map[string][]types.Bar, error) {
	provider, err := newProvider(flags)
	if err != nil {
		return nil, err
	}
	filter := data.NewDefaultFilter()

	start, end, err := parseDateRange(*flags.FromDate, *flags.ToDate)
	if err != nil {
		return nil, err
	}
	var trailing time.Duration
	if *flags.Period != "" {
		d, ok := data.ParseTrailingPeriod(*flags.Period)
		if !ok {
			return nil, fmt.Errorf("invalid period %q (use 7d, 30d, 180d)", *flags.Period)
		}
		trailing = d
	}

	out := make(map[string][]types.Bar, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		source := barSource(symbol, cfg, flags)
		bars, err := provider.LoadBars(source)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", symbol, err)
		}
		if err := provider.ValidateBars(bars); err != nil {
			return nil, fmt.Errorf("validate %s: %w", symbol, err)
		}
		bars = filter.ByDateRange(bars, start, end)
		if trailing > 0 {
			bars = filter.ByTrailingPeriod(bars, trailing)
		}
		log.Info().Str("symbol", symbol).Int("bars", len(bars)).Str("source", provider.Name()).Msg("bars loaded")
		out[symbol] = bars
	}
	return out, nil
}

func newProvider(flags *Flags) (data.Provider, error) {
	switch strings.ToLower(*flags.Source) {
	case "csv", "":
		return data.NewCSVProvider(), nil
	case "clickhouse":
		return newClickHouseProvider()
	default:
		return nil, fmt.Errorf("unknown source %q (use csv or clickhouse)", *flags.Source)
	}
}

func barSource(symbol string, cfg *config.Config, flags *Flags) string {
	if strings.ToLower(*flags.Source) == "clickhouse" {
		return symbol
	}
	if *flags.DataFile != "" {
		return *flags.DataFile
	}
	return filepath.Join(cfg.DataRoot, symbol+".csv")
}

func parseDateRange(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if from != "" {
		start, err = time.ParseInLocation("2006-01-02", from, time.UTC)
		if err != nil {
			return start, end, fmt.Errorf("invalid from date %q: %w", from, err)
		}
	}
	if to != "" {
		end, err = time.ParseInLocation("2006-01-02", to, time.UTC)
		if err != nil {
			return start, end, fmt.Errorf("invalid to date %q: %w", to, err)
		}
		end = end.Add(24*time.Hour - time.Second)
	}
	return start, end, nil
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, strings.ToUpper(trimmed))
		}
	}
	return out
}

// writeOutputs renders the console report and the requested files.
func writeOutputs(results []*pipeline.Result, flags *Flags) {
	console := reporting.NewConsoleReporter()
	console.PrintSummary(results)
	for _, res := range results {
		console.PrintTrades(res, *flags.MaxRows)
	}

	csvRep := reporting.NewCSVReporter()
	for _, res := range results {
		if *flags.TradesCSV != "" {
			path := perSymbolPath(*flags.TradesCSV, res.Symbol, len(results) > 1)
			if err := csvRep.WriteTrades(res, path); err != nil {
				log.Error().Err(err).Str("path", path).Msg("trades CSV write failed")
			} else {
				fmt.Printf("💾 trades written to %s\n", path)
			}
		}
		if *flags.BarsCSV != "" {
			path := perSymbolPath(*flags.BarsCSV, res.Symbol, len(results) > 1)
			if err := csvRep.WriteAnnotatedBars(res, path); err != nil {
				log.Error().Err(err).Str("path", path).Msg("bars CSV write failed")
			} else {
				fmt.Printf("💾 annotated bars written to %s\n", path)
			}
		}
	}

	if *flags.JSONOut != "" {
		if err := reporting.NewJSONReporter().WriteSummary(results, *flags.JSONOut); err != nil {
			log.Error().Err(err).Str("path", *flags.JSONOut).Msg("JSON write failed")
		} else {
			fmt.Printf("💾 summary written to %s\n", *flags.JSONOut)
		}
	}
	if *flags.XLSXOut != "" {
		if err := reporting.NewExcelReporter().WriteWorkbook(results, *flags.XLSXOut); err != nil {
			log.Error().Err(err).Str("path", *flags.XLSXOut).Msg("XLSX write failed")
		} else {
			fmt.Printf("💾 workbook written to %s\n", *flags.XLSXOut)
		}
	}
}

func perSymbolPath(path, symbol string, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + symbol + ext
}
