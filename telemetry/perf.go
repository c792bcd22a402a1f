package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pthm-cable/fluxfov/fov"
)

// PerfSample holds timing data for a single query.
type PerfSample struct {
	QueryDuration time.Duration
	Phases        map[string]time.Duration
	Cells         int
	Rings         int
	EarlyExit     bool
	Failed        bool
}

// PerfCollector tracks query performance over a rolling window. It is an
// fov.Observer and is safe for concurrent use.
type PerfCollector struct {
	mu          sync.Mutex
	windowSize  int
	samples     []PerfSample
	writeIndex  int
	sampleCount int
	total       int64
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of queries to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 120
	}
	return &PerfCollector{
		windowSize: windowSize,
		samples:    make([]PerfSample, windowSize),
	}
}

// ObserveQuery records a finished query.
func (p *PerfCollector) ObserveQuery(r fov.QueryReport) {
	phases := make(map[string]time.Duration, len(r.Phases))
	for k, v := range r.Phases {
		phases[k] = v
	}
	sample := PerfSample{
		QueryDuration: r.Duration,
		Phases:        phases,
		Cells:         r.Cells,
		Rings:         r.Rings,
		EarlyExit:     r.EarlyExit,
		Failed:        r.Err != nil,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.total++
}

// Total returns the number of queries observed since creation.
func (p *PerfCollector) Total() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Samples int

	// Query timing
	AvgQueryDuration time.Duration
	MinQueryDuration time.Duration
	MaxQueryDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total query time
	PhasePct map[string]float64

	// Throughput of a single goroutine
	QueriesPerSecond float64

	// Work per query
	AvgCells     float64
	AvgRings     float64
	EarlyExitPct float64
	Failed       int
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var totalQuery time.Duration
	var minQuery, maxQuery time.Duration
	var cells, rings, early, failed int
	phaseSum := make(map[string]time.Duration)

	// Iterate over valid samples
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		totalQuery += s.QueryDuration

		if i == 0 || s.QueryDuration < minQuery {
			minQuery = s.QueryDuration
		}
		if s.QueryDuration > maxQuery {
			maxQuery = s.QueryDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
		cells += s.Cells
		rings += s.Rings
		if s.EarlyExit {
			early++
		}
		if s.Failed {
			failed++
		}
	}

	n := p.sampleCount
	avgQuery := totalQuery / time.Duration(n)

	// Calculate phase averages and percentages
	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(n)
		if avgQuery > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avgQuery) * 100
		}
	}

	var qps float64
	if avgQuery > 0 {
		qps = float64(time.Second) / float64(avgQuery)
	}

	return PerfStats{
		Samples:          n,
		AvgQueryDuration: avgQuery,
		MinQueryDuration: minQuery,
		MaxQueryDuration: maxQuery,
		PhaseAvg:         phaseAvg,
		PhasePct:         phasePct,
		QueriesPerSecond: qps,
		AvgCells:         float64(cells) / float64(n),
		AvgRings:         float64(rings) / float64(n),
		EarlyExitPct:     float64(early) / float64(n) * 100,
		Failed:           failed,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"samples", s.Samples,
		"avg_query_us", s.AvgQueryDuration.Microseconds(),
		"min_query_us", s.MinQueryDuration.Microseconds(),
		"max_query_us", s.MaxQueryDuration.Microseconds(),
		"queries_per_sec", int(s.QueriesPerSecond),
		"avg_cells", int(s.AvgCells),
		"avg_rings", s.AvgRings,
	}

	if s.EarlyExitPct > 0 {
		attrs = append(attrs, "early_exit_pct", int(s.EarlyExitPct*10)/10.0)
	}
	if s.Failed > 0 {
		attrs = append(attrs, "failed", s.Failed)
	}

	for _, phase := range fov.Phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}

	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("samples", s.Samples),
		slog.Int64("avg_query_us", s.AvgQueryDuration.Microseconds()),
		slog.Int64("min_query_us", s.MinQueryDuration.Microseconds()),
		slog.Int64("max_query_us", s.MaxQueryDuration.Microseconds()),
		slog.Float64("queries_per_sec", s.QueriesPerSecond),
		slog.Float64("avg_cells", s.AvgCells),
		slog.Float64("avg_rings", s.AvgRings),
		slog.Float64("early_exit_pct", s.EarlyExitPct),
		slog.Int("failed", s.Failed),
	}

	for _, phase := range fov.Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd     int64   `csv:"window_end"`
	Samples       int     `csv:"samples"`
	AvgQueryUS    int64   `csv:"avg_query_us"`
	MinQueryUS    int64   `csv:"min_query_us"`
	MaxQueryUS    int64   `csv:"max_query_us"`
	QueriesPerSec float64 `csv:"queries_per_sec"`
	AvgCells      float64 `csv:"avg_cells"`
	AvgRings      float64 `csv:"avg_rings"`
	EarlyExitPct  float64 `csv:"early_exit_pct"`
	Failed        int     `csv:"failed"`
	ValidatePct   float64 `csv:"validate_pct"`
	AllocatePct   float64 `csv:"allocate_pct"`
	PropagatePct  float64 `csv:"propagate_pct"`
	ExtractPct    float64 `csv:"extract_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct. windowEnd is the
// total query count at the end of the window.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:     windowEnd,
		Samples:       s.Samples,
		AvgQueryUS:    s.AvgQueryDuration.Microseconds(),
		MinQueryUS:    s.MinQueryDuration.Microseconds(),
		MaxQueryUS:    s.MaxQueryDuration.Microseconds(),
		QueriesPerSec: s.QueriesPerSecond,
		AvgCells:      s.AvgCells,
		AvgRings:      s.AvgRings,
		EarlyExitPct:  s.EarlyExitPct,
		Failed:        s.Failed,
		ValidatePct:   s.PhasePct[fov.PhaseValidate],
		AllocatePct:   s.PhasePct[fov.PhaseAllocate],
		PropagatePct:  s.PhasePct[fov.PhasePropagate],
		ExtractPct:    s.PhasePct[fov.PhaseExtract],
	}
}
