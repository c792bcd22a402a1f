package fov

import "image"

// Result is the visibility map of one query. It is owned by the caller and
// never touched by the engine again.
type Result struct {
	Origin    image.Point
	Radius    int
	Threshold float64

	// Bounds is the radius box clipped to the grid. Influx and Visible are
	// row-major over Bounds.
	Bounds  image.Rectangle
	Influx  []float64
	Visible []bool

	Rings     int  // last ring relaxed
	EarlyExit bool // stopped before Radius on a dark ring

	shape Shape
}

func newResult(m *FluxMap, threshold float64, shape Shape, rings int, earlyExit bool) *Result {
	visible := make([]bool, len(m.Influx))
	for i, v := range m.Influx {
		visible[i] = v > threshold
	}
	return &Result{
		Origin:    m.Origin,
		Radius:    m.Radius,
		Threshold: threshold,
		Bounds:    m.Bounds,
		Influx:    m.Influx,
		Visible:   visible,
		Rings:     rings,
		EarlyExit: earlyExit,
		shape:     shape,
	}
}

// Contains reports whether (x, y) is in range of the query: inside the grid,
// within the radius and inside the query shape.
func (r *Result) Contains(x, y int) bool {
	if !image.Pt(x, y).In(r.Bounds) {
		return false
	}
	return r.shape.contains(x-r.Origin.X, y-r.Origin.Y, r.Radius)
}

// At returns the influx and visibility of (x, y). ok is false for cells out
// of range; their influx is 0 and they are not visible.
func (r *Result) At(x, y int) (influx float64, visible bool, ok bool) {
	if !r.Contains(x, y) {
		return 0, false, false
	}
	i := r.index(x, y)
	return r.Influx[i], r.Visible[i], true
}

// Reach returns the last ring holding cells in range. It is Radius capped
// by the grid edges.
func (r *Result) Reach() int {
	if r.Bounds.Empty() {
		return 0
	}
	return reach(r.Origin, r.Radius, r.Bounds)
}

// VisibleCount returns the number of visible cells.
func (r *Result) VisibleCount() int {
	n := 0
	for _, v := range r.Visible {
		if v {
			n++
		}
	}
	return n
}

// Len returns the number of cells in range.
func (r *Result) Len() int {
	if r.shape == ShapeSquare {
		return r.Bounds.Dx() * r.Bounds.Dy()
	}
	n := 0
	r.Cells(func(image.Point, float64, bool) bool {
		n++
		return true
	})
	return n
}

// Cells calls fn for every cell in range in row-major order until fn
// returns false.
func (r *Result) Cells(fn func(p image.Point, influx float64, visible bool) bool) {
	for y := r.Bounds.Min.Y; y < r.Bounds.Max.Y; y++ {
		for x := r.Bounds.Min.X; x < r.Bounds.Max.X; x++ {
			if !r.shape.contains(x-r.Origin.X, y-r.Origin.Y, r.Radius) {
				continue
			}
			i := r.index(x, y)
			if !fn(image.Pt(x, y), r.Influx[i], r.Visible[i]) {
				return
			}
		}
	}
}

func (r *Result) index(x, y int) int {
	return (y-r.Bounds.Min.Y)*r.Bounds.Dx() + x - r.Bounds.Min.X
}
