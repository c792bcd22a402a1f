package fov

import (
	"fmt"
	"image"

	"github.com/pthm-cable/fluxfov/grid"
)

// FluxCell is the per-query flux state of one grid cell.
type FluxCell struct {
	Influx  float64 // flux received from ring d-1
	Outflux float64 // Influx * transmittance, re-emitted towards ring d+1
	Settled bool
}

// FluxField owns the flux state of a single query. It covers the box of
// radius R around the origin clipped to the grid; nothing outside is
// allocated. Distinct cells may be settled from different goroutines.
type FluxField struct {
	origin image.Point
	radius int
	reach  int
	box    image.Rectangle
	cells  []FluxCell

	rings     int
	earlyExit bool
}

// NewFluxField allocates the field for a query. bounds is the grid extent.
func NewFluxField(origin image.Point, radius int, bounds image.Rectangle) *FluxField {
	r := reach(origin, radius, bounds)
	box := image.Rect(
		origin.X-r, origin.Y-r,
		origin.X+r+1, origin.Y+r+1,
	).Intersect(bounds)
	return &FluxField{
		origin: origin,
		radius: radius,
		reach:  r,
		box:    box,
		cells:  make([]FluxCell, box.Dx()*box.Dy()),
	}
}

// reach caps radius at the Chebyshev distance from origin to the farthest
// cell of bounds. Rings past it hold no grid cells.
func reach(origin image.Point, radius int, bounds image.Rectangle) int {
	far := max(
		origin.X-bounds.Min.X, bounds.Max.X-1-origin.X,
		origin.Y-bounds.Min.Y, bounds.Max.Y-1-origin.Y,
		0,
	)
	return min(radius, far)
}

// Bounds returns the allocated region.
func (f *FluxField) Bounds() image.Rectangle { return f.box }

// Reach returns the last ring holding grid cells, at most the radius.
func (f *FluxField) Reach() int { return f.reach }

// Rings returns the last ring that was relaxed.
func (f *FluxField) Rings() int { return f.rings }

// EarlyExit reports whether propagation stopped before the radius because a
// whole ring fell below epsilon.
func (f *FluxField) EarlyExit() bool { return f.earlyExit }

func (f *FluxField) index(p image.Point) (int, error) {
	if !p.In(f.box) {
		return 0, fmt.Errorf("flux field %v at %v: %w", f.box, p, grid.ErrOutOfBounds)
	}
	return (p.Y-f.box.Min.Y)*f.box.Dx() + p.X - f.box.Min.X, nil
}

// SetInflux settles cell p with its final influx. Outflux becomes
// influx * transmittance. A cell can only be settled once per query.
func (f *FluxField) SetInflux(p image.Point, influx, transmittance float64) error {
	i, err := f.index(p)
	if err != nil {
		return err
	}
	c := &f.cells[i]
	if c.Settled {
		return fmt.Errorf("%w: %v", ErrAlreadySettled, p)
	}
	c.Influx = influx
	c.Outflux = clamp01(influx * transmittance)
	c.Settled = true
	return nil
}

// Outflux returns the flux cell p emits. The cell must be settled.
func (f *FluxField) Outflux(p image.Point) (float64, error) {
	i, err := f.index(p)
	if err != nil {
		return 0, err
	}
	c := f.cells[i]
	if !c.Settled {
		return 0, fmt.Errorf("%w: %v", ErrNotSettled, p)
	}
	return c.Outflux, nil
}

// Cell returns the state of p and whether p lies in the field.
func (f *FluxField) Cell(p image.Point) (FluxCell, bool) {
	i, err := f.index(p)
	if err != nil {
		return FluxCell{}, false
	}
	return f.cells[i], true
}

// FluxMap is the settled influx of a finished query, row-major over Bounds.
// Unsettled cells (past an early exit or outside the shape) read 0.
type FluxMap struct {
	Origin image.Point
	Radius int
	Bounds image.Rectangle
	Influx []float64
}

// Snapshot copies the influx values out of the field. Call it once the
// propagation has finished; the field is not needed afterwards.
func (f *FluxField) Snapshot() *FluxMap {
	influx := make([]float64, len(f.cells))
	for i, c := range f.cells {
		if c.Settled {
			influx[i] = c.Influx
		}
	}
	return &FluxMap{
		Origin: f.origin,
		Radius: f.radius,
		Bounds: f.box,
		Influx: influx,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
