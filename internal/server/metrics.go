package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics collects basic application metrics served as JSON.
type Metrics struct {
	wsConnections atomic.Int64
	roundsStarted atomic.Int64
	roundsWon     atomic.Int64
	roundsDrawn   atomic.Int64
	eliminations  atomic.Int64
	tilesDropped  atomic.Int64
	ticks         atomic.Int64
	slowTicks     atomic.Int64
	startTime     time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) IncrWSConn()        { m.wsConnections.Add(1) }
func (m *Metrics) DecrWSConn()        { m.wsConnections.Add(-1) }
func (m *Metrics) IncrRoundsStarted() { m.roundsStarted.Add(1) }
func (m *Metrics) IncrRoundsWon()     { m.roundsWon.Add(1) }
func (m *Metrics) IncrRoundsDrawn()   { m.roundsDrawn.Add(1) }
func (m *Metrics) IncrEliminations()  { m.eliminations.Add(1) }
func (m *Metrics) IncrTilesDropped()  { m.tilesDropped.Add(1) }
func (m *Metrics) IncrTicks()         { m.ticks.Add(1) }
func (m *Metrics) IncrSlowTicks()     { m.slowTicks.Add(1) }

// Snapshot returns the counters keyed by their JSON names.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"ws_connections": m.wsConnections.Load(),
		"rounds_started": m.roundsStarted.Load(),
		"rounds_won":     m.roundsWon.Load(),
		"rounds_drawn":   m.roundsDrawn.Load(),
		"eliminations":   m.eliminations.Load(),
		"tiles_dropped":  m.tilesDropped.Load(),
		"ticks":          m.ticks.Load(),
		"slow_ticks":     m.slowTicks.Load(),
	}
}

// ServeHTTP exposes metrics as JSON at /metrics.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	data := map[string]any{
		"uptime_seconds": int(time.Since(m.startTime).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  mem.HeapAlloc / 1024 / 1024,
		"sys_mb":         mem.Sys / 1024 / 1024,
	}
	for k, v := range m.Snapshot() {
		data[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}
