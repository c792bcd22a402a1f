package fov

import (
	"fmt"
	"image"

	"github.com/pthm-cable/fluxfov/geometry"
)

// Influx is one weighted contribution from a predecessor of a cell.
type Influx[T any] struct {
	DX, DY int // predecessor offset from the origin
	Weight float64
	Value  T
}

// Sweep holds one value of type T per offset in the radius box and updates
// them outward from the origin with a caller-supplied rule. It is the
// grid-free form of the propagator: the rule decides what a cell emits given
// its weighted predecessors.
type Sweep[T any] struct {
	radius int
	side   int
	values []T
}

// NewSweep allocates a sweep of the given radius with every value set to init.
func NewSweep[T any](radius int, init T) (*Sweep[T], error) {
	if radius < 0 {
		return nil, fmt.Errorf("%w: negative radius %d", ErrInvalidQuery, radius)
	}
	side := 2*radius + 1
	values := make([]T, side*side)
	for i := range values {
		values[i] = init
	}
	return &Sweep[T]{radius: radius, side: side, values: values}, nil
}

// Radius returns the sweep radius.
func (s *Sweep[T]) Radius() int { return s.radius }

// Update visits the origin and then every ring in increasing distance,
// replacing each value with fn(dx, dy, in). in holds the already updated
// predecessor values with their weights; it is empty for the origin and is
// reused between calls.
func (s *Sweep[T]) Update(w geometry.Weighting, fn func(dx, dy int, in []Influx[T]) T) {
	if w == nil {
		w = geometry.Angular{}
	}
	s.values[s.index(0, 0)] = fn(0, 0, nil)

	in := make([]Influx[T], 0, geometry.MaxPredecessors)
	offsets := make([]image.Point, 0, 8*s.radius)
	for d := 1; d <= s.radius; d++ {
		offsets = appendRing(offsets[:0], d)
		for _, off := range offsets {
			set := w.Weights(off.X, off.Y)
			in = in[:0]
			for _, p := range set.Slice() {
				in = append(in, Influx[T]{
					DX:     p.DX,
					DY:     p.DY,
					Weight: p.Weight,
					Value:  s.values[s.index(p.DX, p.DY)],
				})
			}
			s.values[s.index(off.X, off.Y)] = fn(off.X, off.Y, in)
		}
	}
}

// At returns the value at offset (dx, dy) and whether it lies in the box.
func (s *Sweep[T]) At(dx, dy int) (T, bool) {
	if geometry.Chebyshev(dx, dy) > s.radius {
		var zero T
		return zero, false
	}
	return s.values[s.index(dx, dy)], true
}

// Values returns the row-major values from (-R, -R) to (R, R). The slice is
// shared with the sweep.
func (s *Sweep[T]) Values() []T { return s.values }

func (s *Sweep[T]) index(dx, dy int) int {
	return (dy+s.radius)*s.side + dx + s.radius
}
