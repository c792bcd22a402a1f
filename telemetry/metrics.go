package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pthm-cable/fluxfov/fov"
)

// Query outcomes used as the "outcome" label. Bounded to these values.
const (
	OutcomeOK        = "ok"
	OutcomeEarlyExit = "early_exit"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Metrics exports query metrics to Prometheus. It is an fov.Observer.
type Metrics struct {
	phaseDuration *prometheus.HistogramVec
	rings         prometheus.Histogram
	cells         prometheus.Counter
	visible       prometheus.Counter
	queries       *prometheus.CounterVec
}

// NewMetrics registers the query collectors on reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		phaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fov_phase_duration_seconds",
			Help:    "Time spent per query phase",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"phase"}), // Bounded: fov.Phases
		rings: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fov_rings_relaxed",
			Help:    "Rings relaxed per successful query",
			Buckets: prometheus.LinearBuckets(0, 8, 9),
		}),
		cells: f.NewCounter(prometheus.CounterOpts{
			Name: "fov_cells_total",
			Help: "Cells in range over all successful queries",
		}),
		visible: f.NewCounter(prometheus.CounterOpts{
			Name: "fov_visible_cells_total",
			Help: "Visible cells over all successful queries",
		}),
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fov_queries_total",
			Help: "Queries by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveQuery records a finished query.
func (m *Metrics) ObserveQuery(r fov.QueryReport) {
	m.queries.WithLabelValues(outcome(r)).Inc()
	for _, phase := range fov.Phases {
		if d, ok := r.Phases[phase]; ok {
			m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
		}
	}
	if r.Err != nil {
		return
	}
	m.rings.Observe(float64(r.Rings))
	m.cells.Add(float64(r.Cells))
	m.visible.Add(float64(r.Visible))
}

func outcome(r fov.QueryReport) string {
	switch {
	case errors.Is(r.Err, fov.ErrInvalidQuery), errors.Is(r.Err, fov.ErrInvalidThreshold):
		return OutcomeInvalid
	case r.Err != nil:
		return OutcomeError
	case r.EarlyExit:
		return OutcomeEarlyExit
	}
	return OutcomeOK
}
