package fov

import (
	"bytes"
	"errors"
	"image"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/pthm-cable/fluxfov/config"
	"github.com/pthm-cable/fluxfov/geometry"
	"github.com/pthm-cable/fluxfov/grid"
)

func init() {
	config.MustInit("")
}

type recordingObserver struct {
	mu      sync.Mutex
	reports []QueryReport
}

func (o *recordingObserver) ObserveQuery(r QueryReport) {
	o.mu.Lock()
	o.reports = append(o.reports, r)
	o.mu.Unlock()
}

func TestComputeOpenGrid(t *testing.T) {
	g, _ := grid.New(5, 5, grid.Open)
	res, err := Compute(g, image.Pt(2, 2), 2, 0.75)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if res.Len() != 25 || res.VisibleCount() != 25 {
		t.Errorf("len=%d visible=%d, want 25/25", res.Len(), res.VisibleCount())
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if _, vis, ok := res.At(x, y); !ok || !vis {
				t.Errorf("At(%d,%d) visible=%v ok=%v, want visible", x, y, vis, ok)
			}
		}
	}

	// Cells beyond the radius are absent.
	g7, _ := grid.New(7, 7, grid.Open)
	res, err = Compute(g7, image.Pt(3, 3), 2, 0.75)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for _, p := range []image.Point{{0, 0}, {6, 3}, {3, 0}} {
		if influx, vis, ok := res.At(p.X, p.Y); ok || vis || influx != 0 {
			t.Errorf("At(%v) = %v/%v/%v, want absent", p, influx, vis, ok)
		}
	}
}

func TestComputeWallBlocksRow(t *testing.T) {
	b, _ := grid.NewBuilder(5, 5, grid.Open)
	if err := b.Set(3, 2, grid.Opaque); err != nil {
		t.Fatalf("Set: %v", err)
	}
	res, err := Compute(b.Build(), image.Pt(2, 2), 2, 0.75)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	behind, visBehind, _ := res.At(4, 2)
	if behind > 1e-6 || visBehind {
		t.Errorf("behind wall influx=%v visible=%v, want ~0/false", behind, visBehind)
	}
	diag, _, _ := res.At(4, 1)
	if diag <= behind {
		t.Errorf("influx(4,1) = %v, want > influx(4,2) = %v", diag, behind)
	}
	if _, vis, _ := res.At(3, 2); !vis {
		t.Error("wall itself should be visible")
	}
}

func TestComputeCornerOrigin(t *testing.T) {
	g, _ := grid.New(5, 5, grid.Open)
	res, err := Compute(g, image.Pt(0, 0), 10, 0.75)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.Bounds != image.Rect(0, 0, 5, 5) {
		t.Errorf("Bounds = %v, want the grid", res.Bounds)
	}
	if len(res.Influx) != 25 {
		t.Errorf("len(Influx) = %d, want 25", len(res.Influx))
	}
	if _, _, ok := res.At(-1, 0); ok {
		t.Error("At(-1,0) reported in range")
	}
	if res.EarlyExit || res.Rings != 4 {
		t.Errorf("rings=%d earlyExit=%v, want 4/false", res.Rings, res.EarlyExit)
	}
}

func TestComputeRejects(t *testing.T) {
	g, _ := grid.New(5, 5, grid.Open)

	tests := []struct {
		name      string
		origin    image.Point
		radius    int
		threshold float64
		want      error
	}{
		{"origin outside", image.Pt(-1, 0), 2, 0.5, ErrInvalidQuery},
		{"negative radius", image.Pt(2, 2), -3, 0.5, ErrInvalidQuery},
		{"threshold below zero", image.Pt(2, 2), 2, -0.1, ErrInvalidThreshold},
		{"threshold above one", image.Pt(2, 2), 2, 1.5, ErrInvalidThreshold},
		{"threshold NaN", image.Pt(2, 2), 2, math.NaN(), ErrInvalidThreshold},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Compute(g, tc.origin, tc.radius, tc.threshold)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if res != nil {
				t.Error("result returned with error")
			}
		})
	}
}

func TestComputeRadiusZero(t *testing.T) {
	g, _ := grid.New(5, 5, grid.Open)
	res, err := Compute(g, image.Pt(1, 3), 0, 0.5)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", res.Len())
	}
	influx, vis, ok := res.At(1, 3)
	if !ok || !vis || influx != 1 {
		t.Errorf("origin = %v/%v/%v, want 1/true/true", influx, vis, ok)
	}
	if _, _, ok := res.At(2, 3); ok {
		t.Error("neighbour in range at radius 0")
	}
}

func TestComputeThresholdBounds(t *testing.T) {
	g, _ := grid.New(5, 5, grid.Open)

	res, err := Compute(g, image.Pt(2, 2), 2, 1)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if n := res.VisibleCount(); n != 0 {
		t.Errorf("threshold 1: %d visible, want 0", n)
	}

	res, err = Compute(g, image.Pt(2, 2), 2, 0)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if n := res.VisibleCount(); n != 25 {
		t.Errorf("threshold 0: %d visible, want 25", n)
	}
}

func TestComputeIdempotent(t *testing.T) {
	g := randomGrid(t, 30, 30, 9)
	a, err := Compute(g, image.Pt(14, 15), 12, 0.5)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := Compute(g, image.Pt(14, 15), 12, 0.5)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("repeated query differs")
	}
}

func TestComputeCells(t *testing.T) {
	g, _ := grid.New(6, 4, grid.Open)
	res, err := Compute(g, image.Pt(1, 1), 3, 0.5)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	var got []image.Point
	res.Cells(func(p image.Point, influx float64, visible bool) bool {
		got = append(got, p)
		return true
	})
	if len(got) != res.Len() {
		t.Errorf("Cells visited %d, Len() = %d", len(got), res.Len())
	}
	if got[0] != image.Pt(0, 0) || got[len(got)-1] != image.Pt(4, 3) {
		t.Errorf("Cells order %v ... %v", got[0], got[len(got)-1])
	}

	n := 0
	res.Cells(func(image.Point, float64, bool) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Errorf("Cells did not stop: %d calls", n)
	}
}

func TestEngineConcurrentQueries(t *testing.T) {
	g := randomGrid(t, 64, 64, 3)
	e := NewEngine(DefaultSettings())
	want, err := e.Compute(g, image.Pt(32, 32), 20, 0.5)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Compute(g, image.Pt(32, 32), 20, 0.5)
			if err != nil {
				errs <- err
				return
			}
			if !reflect.DeepEqual(got.Influx, want.Influx) {
				errs <- errors.New("concurrent result differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEngineParallelMatchesDefault(t *testing.T) {
	g := randomGrid(t, 101, 101, 21)
	s := DefaultSettings()
	s.Workers = 4
	s.ParallelThreshold = 16

	want, err := Compute(g, image.Pt(50, 50), 50, 0.5)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	got, err := NewEngine(s).Compute(g, image.Pt(50, 50), 50, 0.5)
	if err != nil {
		t.Fatalf("parallel Compute: %v", err)
	}
	if !reflect.DeepEqual(got.Influx, want.Influx) {
		t.Error("parallel engine differs from sequential")
	}
}

func TestEngineCircleShape(t *testing.T) {
	g, _ := grid.New(21, 21, grid.Open)
	s := DefaultSettings()
	s.Shape = ShapeCircle
	res, err := NewEngine(s).Compute(g, image.Pt(10, 10), 5, 0.5)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// Lattice points with x^2 + y^2 <= 25.
	if res.Len() != 81 || res.VisibleCount() != 81 {
		t.Errorf("len=%d visible=%d, want 81/81", res.Len(), res.VisibleCount())
	}
	if _, _, ok := res.At(14, 13); !ok {
		t.Error("(4,3) offset should be inside the circle")
	}
	if influx, _, ok := res.At(14, 14); ok || influx != 0 {
		t.Errorf("(4,4) offset = %v/%v, want outside", influx, ok)
	}
}

func TestEngineFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.FOV.Radius = 6
	cfg.FOV.Threshold = 0.5
	cfg.FOV.Weighting = config.WeightingRayTable
	cfg.RayTable.RayCount = 2000
	cfg.RayTable.RayRadiusFactor = 20
	cfg.RayTable.InitialRadius = 4

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	defer slog.SetDefault(prev)

	e, err := NewEngineFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewEngineFromConfig: %v", err)
	}
	if e.tables == nil || e.tables.table.Radius() != 4 {
		t.Fatalf("initial ray table not built")
	}
	if !strings.Contains(logs.String(), "ray table built") {
		t.Errorf("missing table log, got %q", logs.String())
	}

	g := randomGrid(t, 20, 20, 4)
	res, err := e.ComputeDefault(g, image.Pt(10, 10))
	if err != nil {
		t.Fatalf("ComputeDefault: %v", err)
	}
	if res.Radius != 6 || res.Threshold != 0.5 {
		t.Errorf("radius/threshold = %d/%v, want 6/0.5", res.Radius, res.Threshold)
	}
	// A larger query grows the table to at least twice its size.
	if r := e.tables.table.Radius(); r != 8 {
		t.Errorf("table radius = %d, want 8", r)
	}
	for i, v := range res.Influx {
		if v < 0 || v > 1 {
			t.Fatalf("Influx[%d] = %v outside [0,1]", i, v)
		}
	}

	// On an open map every weighting delivers full flux.
	open, _ := grid.New(13, 13, grid.Open)
	res, err = e.ComputeDefault(open, image.Pt(6, 6))
	if err != nil {
		t.Fatalf("ComputeDefault: %v", err)
	}
	for i, v := range res.Influx {
		if math.Abs(v-1) > fluxTol {
			t.Errorf("Influx[%d] = %v, want 1", i, v)
		}
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Cfg()
	s := SettingsFromConfig(cfg)
	if s.Epsilon != cfg.FOV.Epsilon || s.DefaultRadius != cfg.FOV.Radius || s.DefaultThreshold != cfg.FOV.Threshold {
		t.Errorf("settings %+v do not match config", s)
	}
	if s.Workers != cfg.Derived.Workers || s.ParallelThreshold != cfg.Parallel.RingThreshold {
		t.Errorf("parallel settings %d/%d", s.Workers, s.ParallelThreshold)
	}
	if _, ok := s.Weighting.(geometry.Angular); !ok {
		t.Errorf("weighting = %T, want Angular", s.Weighting)
	}
}

func TestEngineObserverAndLog(t *testing.T) {
	var logs bytes.Buffer
	e := NewEngine(DefaultSettings())
	e.SetLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	obs := &recordingObserver{}
	e.AddObserver(obs)

	g, _ := grid.New(5, 5, grid.Open)
	if _, err := e.Compute(g, image.Pt(2, 2), 2, 0.75); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if _, err := e.Compute(g, image.Pt(9, 9), 2, 0.75); err == nil {
		t.Fatal("expected error for origin outside grid")
	}

	if len(obs.reports) != 2 {
		t.Fatalf("observed %d reports, want 2", len(obs.reports))
	}
	ok := obs.reports[0]
	if ok.Err != nil || ok.Cells != 25 || ok.Visible != 25 || ok.Rings != 2 {
		t.Errorf("report = %+v", ok)
	}
	for _, phase := range Phases {
		if _, seen := ok.Phases[phase]; !seen {
			t.Errorf("report missing phase %q", phase)
		}
	}
	if ok.Duration <= 0 {
		t.Errorf("duration = %v, want > 0", ok.Duration)
	}
	if bad := obs.reports[1]; !errors.Is(bad.Err, ErrInvalidQuery) || bad.Cells != 0 {
		t.Errorf("rejected report = %+v", bad)
	}

	out := logs.String()
	if !strings.Contains(out, "msg=\"fov query\"") || !strings.Contains(out, "visible=25") {
		t.Errorf("missing query log: %q", out)
	}
	if !strings.Contains(out, "fov query rejected") {
		t.Errorf("missing rejection log: %q", out)
	}
}

func BenchmarkEngineCompute(b *testing.B) {
	g := randomGrid(b, 81, 81, 2)
	e := NewEngine(DefaultSettings())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Compute(g, image.Pt(40, 40), 40, 0.5); err != nil {
			b.Fatal(err)
		}
	}
}

func TestComputeRadiusBeyondGrid(t *testing.T) {
	cfg := config.Defaults()
	cfg.FOV.Weighting = config.WeightingRayTable
	cfg.RayTable.RayCount = 2000
	cfg.RayTable.RayRadiusFactor = 20
	cfg.RayTable.InitialRadius = 2
	tables, err := NewEngineFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewEngineFromConfig: %v", err)
	}
	circle := DefaultSettings()
	circle.Shape = ShapeCircle

	engines := []struct {
		name string
		e    *Engine
	}{
		{"angular", NewEngine(DefaultSettings())},
		{"ray table", tables},
		{"circle", NewEngine(circle)},
	}
	queries := []struct {
		origin image.Point
		radius int
		reach  int
	}{
		{image.Pt(2, 2), math.MaxInt, 2},
		{image.Pt(0, 0), 1 << 42, 4},
		{image.Pt(2, 2), 1 << 33, 2},
		{image.Pt(0, 4), math.MaxInt, 4},
	}

	g, _ := grid.New(5, 5, grid.Open)
	for _, eng := range engines {
		t.Run(eng.name, func(t *testing.T) {
			for _, q := range queries {
				res, err := eng.e.Compute(g, q.origin, q.radius, 0.5)
				if err != nil {
					t.Fatalf("Compute(%v, %d): %v", q.origin, q.radius, err)
				}
				if res.Radius != q.radius || res.Reach() != q.reach || res.Rings != q.reach {
					t.Errorf("Compute(%v, %d): radius=%d reach=%d rings=%d, want reach %d",
						q.origin, q.radius, res.Radius, res.Reach(), res.Rings, q.reach)
				}
				if res.Len() != 25 || res.VisibleCount() != 25 {
					t.Errorf("Compute(%v, %d): len=%d visible=%d, want 25/25",
						q.origin, q.radius, res.Len(), res.VisibleCount())
				}
			}
		})
	}

	// The ray table only grows to the reachable distance.
	if r := tables.tables.table.Radius(); r != 4 {
		t.Errorf("table radius = %d, want 4", r)
	}
}
