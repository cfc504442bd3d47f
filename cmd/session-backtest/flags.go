package main

import "flag"

// Flags holds all command line flags for the session backtest command.
type Flags struct {
	ConfigFile *string
	EnvFile    *string

	DataFile *string
	DataRoot *string
	Source   *string
	Symbols  *string

	FromDate *string
	ToDate   *string
	Period   *string

	Threshold *float64
	Workers   *int

	TradesCSV *string
	BarsCSV   *string
	JSONOut   *string
	XLSXOut   *string
	MaxRows   *int

	MetricsPort *int
	Verbose     *bool

	ShowVersion *bool
}

// NewFlags registers all flags and returns the container.
func NewFlags() *Flags {
	return &Flags{
		ConfigFile: flag.String("config", "", "Path to JSON or YAML configuration file"),
		EnvFile:    flag.String("env", ".env", "Path to environment file"),

		DataFile: flag.String("data", "", "Path to a CSV bar file (single-symbol mode)"),
		DataRoot: flag.String("data-root", "data", "Directory holding <symbol>.csv bar files"),
		Source:   flag.String("source", "csv", "Bar source: csv or clickhouse"),
		Symbols:  flag.String("symbols", "EURUSD", "Comma-separated symbol list"),

		FromDate: flag.String("from", "", "Start date filter (YYYY-MM-DD, UTC)"),
		ToDate:   flag.String("to", "", "End date filter (YYYY-MM-DD, UTC)"),
		Period:   flag.String("period", "", "Trailing period filter (e.g. 30d, 180d)"),

		Threshold: flag.Float64("threshold", 0, "Probability threshold override"),
		Workers:   flag.Int("workers", 0, "Parallel symbol workers (0 = all CPUs)"),

		TradesCSV: flag.String("trades-csv", "", "Write filtered trades CSV to this path"),
		BarsCSV:   flag.String("bars-csv", "", "Write annotated bars CSV to this path"),
		JSONOut:   flag.String("json", "", "Write summary JSON to this path"),
		XLSXOut:   flag.String("xlsx", "", "Write trades workbook to this path"),
		MaxRows:   flag.Int("max-rows", 20, "Max trade rows printed per symbol (0 = all)"),

		MetricsPort: flag.Int("metrics-port", 0, "Expose /metrics and /health on this port (0 = off)"),
		Verbose:     flag.Bool("verbose", false, "Enable debug logging"),

		ShowVersion: flag.Bool("version", false, "Show version and exit"),
	}
}
