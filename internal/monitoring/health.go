package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports batch progress over HTTP.
type HealthChecker struct {
	mu             sync.RWMutex
	symbolsDone    int
	symbolsFailed  int
	symbolsPending int
}

// HealthStatus is the JSON payload served at /health.
type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Uptime         string    `json:"uptime"`
	SymbolsDone    int       `json:"symbols_done"`
	SymbolsFailed  int       `json:"symbols_failed"`
	SymbolsPending int       `json:"symbols_pending"`
}

// NewHealthChecker creates a health endpoint handler.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// SetPending records the number of symbol streams queued.
func (h *HealthChecker) SetPending(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.symbolsPending = n
}

// SymbolDone records one finished symbol stream.
func (h *HealthChecker) SymbolDone(failed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.symbolsPending--
	if failed {
		h.symbolsFailed++
	} else {
		h.symbolsDone++
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if h.symbolsFailed > 0 {
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthStatus{
		Status:         status,
		Timestamp:      time.Now(),
		Uptime:         time.Since(startTime).String(),
		SymbolsDone:    h.symbolsDone,
		SymbolsFailed:  h.symbolsFailed,
		SymbolsPending: h.symbolsPending,
	})
}
