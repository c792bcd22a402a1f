// Package fov computes field-of-vision maps by relaxing directional flux
// outward from an origin, ring by ring, through a transmittance grid.
package fov

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/pthm-cable/fluxfov/config"
	"github.com/pthm-cable/fluxfov/geometry"
	"github.com/pthm-cable/fluxfov/grid"
)

// Settings configures an Engine.
type Settings struct {
	Epsilon           float64
	Weighting         geometry.Weighting // nil = Angular
	Shape             Shape
	Workers           int
	ParallelThreshold int

	// Used by ComputeDefault.
	DefaultRadius    int
	DefaultThreshold float64
}

// DefaultSettings returns sequential angular settings.
func DefaultSettings() Settings {
	return Settings{
		Epsilon:           DefaultEpsilon,
		Weighting:         geometry.Angular{},
		Shape:             ShapeSquare,
		Workers:           1,
		ParallelThreshold: DefaultParallelThreshold,
		DefaultRadius:     20,
		DefaultThreshold:  0.75,
	}
}

// SettingsFromConfig maps a loaded configuration onto engine settings.
// Ray table weighting is handled by NewEngineFromConfig.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := DefaultSettings()
	s.Epsilon = cfg.FOV.Epsilon
	if cfg.FOV.Shape == config.ShapeCircle {
		s.Shape = ShapeCircle
	}
	s.Workers = cfg.Derived.Workers
	s.ParallelThreshold = cfg.Parallel.RingThreshold
	s.DefaultRadius = cfg.FOV.Radius
	s.DefaultThreshold = cfg.FOV.Threshold
	return s
}

// Engine runs visibility queries. It is safe for concurrent use; every
// query owns its flux field and grids are only read.
type Engine struct {
	settings   Settings
	tables     *tableCache
	logger     *slog.Logger
	logQueries bool

	mu        sync.RWMutex
	observers []Observer
}

// NewEngine creates an engine with the given settings.
func NewEngine(s Settings) *Engine {
	if s.Weighting == nil {
		s.Weighting = geometry.Angular{}
	}
	return &Engine{settings: s, logger: slog.Default()}
}

// NewEngineFromConfig creates an engine from a loaded configuration,
// building the initial ray table when that weighting is selected.
func NewEngineFromConfig(cfg *config.Config) (*Engine, error) {
	e := NewEngine(SettingsFromConfig(cfg))
	e.logQueries = cfg.Telemetry.LogQueries
	if cfg.FOV.Weighting == config.WeightingRayTable {
		e.tables = &tableCache{rays: cfg.RayTable.RayCount, factor: cfg.RayTable.RayRadiusFactor}
		if _, err := e.tables.forRadius(cfg.RayTable.InitialRadius, e.logger); err != nil {
			return nil, err
		}
	}
	return e, nil
}

var defaultEngine = NewEngine(DefaultSettings())

// Compute runs a query with DefaultSettings.
func Compute(g grid.Reader, origin image.Point, radius int, threshold float64) (*Result, error) {
	return defaultEngine.Compute(g, origin, radius, threshold)
}

// SetLogger sets the logger used for query and table logs.
func (e *Engine) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	e.logger = l
}

// AddObserver registers an observer for every following query.
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	e.observers = append(e.observers, o)
	e.mu.Unlock()
}

// Settings returns the engine settings.
func (e *Engine) Settings() Settings { return e.settings }

// ComputeDefault runs a query with the configured radius and threshold.
func (e *Engine) ComputeDefault(g grid.Reader, origin image.Point) (*Result, error) {
	return e.Compute(g, origin, e.settings.DefaultRadius, e.settings.DefaultThreshold)
}

// Compute returns the flux reaching every cell within radius of origin and
// whether it exceeds threshold.
func (e *Engine) Compute(g grid.Reader, origin image.Point, radius int, threshold float64) (*Result, error) {
	timer := newPhaseTimer()
	report := QueryReport{Origin: origin, Radius: radius, Threshold: threshold}

	res, err := e.compute(g, origin, radius, threshold, timer)
	report.Duration = timer.finish()
	report.Phases = timer.phases
	report.Err = err
	if res != nil {
		report.Rings = res.Rings
		report.EarlyExit = res.EarlyExit
		report.Cells = res.Len()
		report.Visible = res.VisibleCount()
	}
	e.logQuery(report)
	e.notify(report)

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) compute(g grid.Reader, origin image.Point, radius int, threshold float64, timer *phaseTimer) (*Result, error) {
	timer.begin(PhaseValidate)
	if err := validateQuery(g, origin, radius); err != nil {
		return nil, err
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}

	timer.begin(PhaseAllocate)
	field := NewFluxField(origin, radius, g.Bounds())
	weighting := e.settings.Weighting
	if e.tables != nil {
		w, err := e.tables.forRadius(field.Reach(), e.logger)
		if err != nil {
			return nil, err
		}
		weighting = w
	}
	p := &Propagator{
		Weighting:         weighting,
		Epsilon:           e.settings.Epsilon,
		Shape:             e.settings.Shape,
		Workers:           e.settings.Workers,
		ParallelThreshold: e.settings.ParallelThreshold,
	}

	timer.begin(PhasePropagate)
	if err := p.Relax(field, g); err != nil {
		return nil, err
	}

	timer.begin(PhaseExtract)
	return newResult(field.Snapshot(), threshold, e.settings.Shape, field.Rings(), field.EarlyExit()), nil
}

func (e *Engine) logQuery(r QueryReport) {
	level := slog.LevelDebug
	if e.logQueries {
		level = slog.LevelInfo
	}
	ctx := context.Background()
	if !e.logger.Enabled(ctx, level) {
		return
	}
	if r.Err != nil {
		e.logger.Log(ctx, level, "fov query rejected",
			"origin_x", r.Origin.X,
			"origin_y", r.Origin.Y,
			"radius", r.Radius,
			"threshold", r.Threshold,
			"error", r.Err,
		)
		return
	}
	e.logger.Log(ctx, level, "fov query",
		"origin_x", r.Origin.X,
		"origin_y", r.Origin.Y,
		"radius", r.Radius,
		"rings", r.Rings,
		"early_exit", r.EarlyExit,
		"cells", r.Cells,
		"visible", r.Visible,
		"duration_us", r.Duration.Microseconds(),
	)
}

func (e *Engine) notify(r QueryReport) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, o := range e.observers {
		o.ObserveQuery(r)
	}
}

// tableCache keeps the largest ray table built so far. Tables are immutable
// once built and shared between queries.
type tableCache struct {
	mu     sync.Mutex
	rays   int
	factor int
	table  *geometry.RayTable
}

func (c *tableCache) forRadius(radius int, logger *slog.Logger) (*geometry.RayTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.table != nil && c.table.Radius() >= radius {
		return c.table, nil
	}

	size := radius
	if c.table != nil && 2*c.table.Radius() > size {
		size = 2 * c.table.Radius()
	}
	start := time.Now()
	t, err := geometry.NewRayTable(size, c.rays, c.factor)
	if err != nil {
		return nil, fmt.Errorf("building ray table: %w", err)
	}
	c.table = t
	logger.Info("ray table built",
		"radius", size,
		"rays", c.rays,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return t, nil
}
