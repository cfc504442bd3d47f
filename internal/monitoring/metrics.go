package monitoring

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	barsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_backtest_bars_processed_total",
			Help: "Total number of bars walked by the simulation",
		},
		[]string{"symbol"},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_backtest_trades_total",
			Help: "Total number of simulated trades",
		},
		[]string{"symbol", "side", "exit_reason"},
	)

	tradesKept = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_backtest_trades_kept_total",
			Help: "Trades kept by the probability filter",
		},
		[]string{"symbol"},
	)

	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_backtest_stream_errors_total",
			Help: "Fatal per-symbol stream errors",
		},
		[]string{"symbol", "type"},
	)

	runDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "session_backtest_run_duration_seconds",
			Help: "Wall-clock duration of the last symbol run",
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(barsProcessed)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradesKept)
	prometheus.MustRegister(streamErrors)
	prometheus.MustRegister(runDuration)
}

// RecordBars adds processed bars for a symbol.
func RecordBars(symbol string, n int) {
	barsProcessed.WithLabelValues(symbol).Add(float64(n))
}

// RecordTrade counts one simulated trade.
func RecordTrade(symbol, side, exitReason string) {
	tradesTotal.WithLabelValues(symbol, side, exitReason).Inc()
}

// RecordKept counts a trade kept by the filter.
func RecordKept(symbol string) {
	tradesKept.WithLabelValues(symbol).Inc()
}

// RecordStreamError counts a fatal per-symbol error.
func RecordStreamError(symbol, errType string) {
	streamErrors.WithLabelValues(symbol, errType).Inc()
}

// RecordRunDuration stores the last run duration for a symbol.
func RecordRunDuration(symbol string, d time.Duration) {
	runDuration.WithLabelValues(symbol).Set(d.Seconds())
}

// Serve exposes /metrics and /health on the given port. Intended for long
// batch runs; returns the server so callers can shut it down.
func Serve(port int, health *HealthChecker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", health)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
