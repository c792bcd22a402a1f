package telemetry

import (
	"image"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/fluxfov/fov"
	"github.com/pthm-cable/fluxfov/geometry"
)

// FieldStats summarizes the influx of one query result.
type FieldStats struct {
	OriginX   int     `csv:"origin_x"`
	OriginY   int     `csv:"origin_y"`
	Radius    int     `csv:"radius"`
	Threshold float64 `csv:"threshold"`
	Rings     int     `csv:"rings"`
	EarlyExit bool    `csv:"early_exit"`

	// Cells in range and how many of them are visible
	Cells       int     `csv:"cells"`
	Visible     int     `csv:"visible"`
	VisibleFrac float64 `csv:"visible_frac"`

	// Influx distribution over cells in range
	InfluxMean float64 `csv:"influx_mean"`
	InfluxStd  float64 `csv:"influx_std"`
	InfluxP10  float64 `csv:"influx_p10"`
	InfluxP50  float64 `csv:"influx_p50"`
	InfluxP90  float64 `csv:"influx_p90"`

	// Mean influx per ring up to Result.Reach, index = ring
	RingMean []float64 `csv:"-"`
}

// Summarize computes influx statistics for a result.
func Summarize(r *fov.Result) FieldStats {
	s := FieldStats{
		OriginX:   r.Origin.X,
		OriginY:   r.Origin.Y,
		Radius:    r.Radius,
		Threshold: r.Threshold,
		Rings:     r.Rings,
		EarlyExit: r.EarlyExit,
	}

	values := make([]float64, 0, len(r.Influx))
	ringSum := make([]float64, r.Reach()+1)
	ringCount := make([]int, r.Reach()+1)
	r.Cells(func(p image.Point, influx float64, visible bool) bool {
		values = append(values, influx)
		if visible {
			s.Visible++
		}
		d := geometry.Chebyshev(p.X-r.Origin.X, p.Y-r.Origin.Y)
		ringSum[d] += influx
		ringCount[d]++
		return true
	})

	s.Cells = len(values)
	if s.Cells == 0 {
		return s
	}
	s.VisibleFrac = float64(s.Visible) / float64(s.Cells)

	s.RingMean = make([]float64, len(ringSum))
	for d, sum := range ringSum {
		if ringCount[d] > 0 {
			s.RingMean[d] = sum / float64(ringCount[d])
		}
	}

	s.InfluxMean, s.InfluxStd = stat.PopMeanStdDev(values, nil)

	// Quantile needs sorted input
	sort.Float64s(values)
	s.InfluxP10 = stat.Quantile(0.10, stat.Empirical, values, nil)
	s.InfluxP50 = stat.Quantile(0.50, stat.Empirical, values, nil)
	s.InfluxP90 = stat.Quantile(0.90, stat.Empirical, values, nil)

	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s FieldStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("origin_x", s.OriginX),
		slog.Int("origin_y", s.OriginY),
		slog.Int("radius", s.Radius),
		slog.Float64("threshold", s.Threshold),
		slog.Int("rings", s.Rings),
		slog.Bool("early_exit", s.EarlyExit),
		slog.Int("cells", s.Cells),
		slog.Int("visible", s.Visible),
		slog.Float64("visible_frac", s.VisibleFrac),
		slog.Float64("influx_mean", s.InfluxMean),
		slog.Float64("influx_std", s.InfluxStd),
		slog.Float64("influx_p10", s.InfluxP10),
		slog.Float64("influx_p50", s.InfluxP50),
		slog.Float64("influx_p90", s.InfluxP90),
	)
}

// LogStats logs the field stats using slog.
func (s FieldStats) LogStats() {
	slog.Info("field", "stats", s)
}
