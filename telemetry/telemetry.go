// Package telemetry collects query performance, Prometheus metrics and CSV
// output for an fov.Engine.
package telemetry

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm-cable/fluxfov/config"
	"github.com/pthm-cable/fluxfov/fov"
)

// Hub fans query reports out to the configured sinks and flushes a perf
// window every PerfWindow queries.
type Hub struct {
	Perf    *PerfCollector
	Metrics *Metrics       // nil without a registerer
	Output  *OutputManager // nil when output is disabled

	window   int64
	logStats bool

	mu      sync.Mutex
	pending int64
}

// New builds the sinks described by cfg. Metrics are registered on reg when
// it is non-nil. The config is written to the output directory if one is set.
func New(cfg *config.Config, reg prometheus.Registerer) (*Hub, error) {
	out, err := NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := out.WriteConfig(cfg); err != nil {
		out.Close()
		return nil, err
	}

	h := &Hub{
		Perf:     NewPerfCollector(cfg.Telemetry.PerfWindow),
		Output:   out,
		window:   int64(cfg.Telemetry.PerfWindow),
		logStats: cfg.Telemetry.LogQueries,
	}
	if reg != nil {
		h.Metrics = NewMetrics(reg)
	}
	return h, nil
}

// Attach registers the hub as an observer of e.
func (h *Hub) Attach(e *fov.Engine) {
	e.AddObserver(h)
}

// ObserveQuery implements fov.Observer.
func (h *Hub) ObserveQuery(r fov.QueryReport) {
	h.Perf.ObserveQuery(r)
	if h.Metrics != nil {
		h.Metrics.ObserveQuery(r)
	}
	h.Output.ObserveQuery(r)

	if h.window <= 0 {
		return
	}
	h.mu.Lock()
	h.pending++
	flush := h.pending >= h.window
	if flush {
		h.pending = 0
	}
	h.mu.Unlock()
	if flush {
		h.Flush()
	}
}

// Flush logs the current perf window when enabled and appends it to perf.csv.
func (h *Hub) Flush() {
	stats := h.Perf.Stats()
	if h.logStats {
		stats.LogStats()
	}
	if err := h.Output.WritePerf(stats, h.Perf.Total()); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}

// Close flushes the last window and closes the output files.
func (h *Hub) Close() error {
	if h.Perf.Total() > 0 {
		h.Flush()
	}
	return h.Output.Close()
}
