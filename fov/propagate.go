package fov

import (
	"fmt"
	"image"

	"github.com/pthm-cable/fluxfov/geometry"
	"github.com/pthm-cable/fluxfov/grid"
)

// DefaultEpsilon is the outflux below which a whole ring stops propagation.
const DefaultEpsilon = 1e-4

// Propagator relaxes flux outward from the origin one ring at a time.
//
// Flux only moves from ring d-1 to ring d, so the cells form a DAG layered
// by distance and a single outward pass settles every cell exactly once.
type Propagator struct {
	Weighting geometry.Weighting
	Epsilon   float64
	Shape     Shape

	// Workers > 1 splits rings of at least ParallelThreshold cells across
	// goroutines.
	Workers           int
	ParallelThreshold int
}

// Propagate validates the query, allocates a flux field and relaxes it.
func (p *Propagator) Propagate(g grid.Reader, origin image.Point, radius int) (*FluxField, error) {
	if err := validateQuery(g, origin, radius); err != nil {
		return nil, err
	}
	field := NewFluxField(origin, radius, g.Bounds())
	if err := p.Relax(field, g); err != nil {
		return nil, err
	}
	return field, nil
}

// Relax fills a freshly allocated field for its origin and radius.
func (p *Propagator) Relax(field *FluxField, g grid.Reader) error {
	origin, radius, last := field.origin, field.radius, field.reach

	t, err := g.Transmittance(origin.X, origin.Y)
	if err != nil {
		return err
	}
	// The origin always sees itself fully, whatever it stands in.
	if err := field.SetInflux(origin, 1, t); err != nil {
		return err
	}
	field.rings = 0
	if clamp01(t) < p.Epsilon {
		field.earlyExit = radius > 0
		return nil
	}

	bounds := g.Bounds()
	offsets := make([]image.Point, 0, 8*last)
	cells := make([]image.Point, 0, 8*last)
	for d := 1; d <= last; d++ {
		offsets = appendRing(offsets[:0], d)
		cells = cells[:0]
		for _, off := range offsets {
			c := origin.Add(off)
			if !c.In(bounds) || !p.Shape.contains(off.X, off.Y, radius) {
				continue
			}
			cells = append(cells, c)
		}
		// The grid is a rectangle holding the origin, so an empty ring
		// means every cell has been reached.
		if len(cells) == 0 {
			break
		}

		peak, err := p.relaxRing(field, g, cells)
		if err != nil {
			return fmt.Errorf("ring %d: %w", d, err)
		}
		field.rings = d
		if peak < p.Epsilon {
			field.earlyExit = d < radius
			break
		}
	}
	return nil
}

// relaxCells settles cells of one ring and returns their largest outflux.
// It reads only settled ring d-1 state and writes only the given cells.
func (p *Propagator) relaxCells(field *FluxField, g grid.Reader, cells []image.Point) (float64, error) {
	origin := field.origin
	peak := 0.0
	for _, c := range cells {
		t, err := g.Transmittance(c.X, c.Y)
		if err != nil {
			return 0, err
		}

		set := p.weighting().Weights(c.X-origin.X, c.Y-origin.Y)
		influx := 0.0
		for _, pred := range set.Slice() {
			out, err := field.Outflux(image.Pt(origin.X+pred.DX, origin.Y+pred.DY))
			if err != nil {
				return 0, fmt.Errorf("predecessor of %v: %w", c, err)
			}
			influx += pred.Weight * out
		}
		influx = clamp01(influx)

		if err := field.SetInflux(c, influx, t); err != nil {
			return 0, err
		}
		if out := clamp01(influx * t); out > peak {
			peak = out
		}
	}
	return peak, nil
}

func (p *Propagator) weighting() geometry.Weighting {
	if p.Weighting == nil {
		return geometry.Angular{}
	}
	return p.Weighting
}

func validateQuery(g grid.Reader, origin image.Point, radius int) error {
	if radius < 0 {
		return fmt.Errorf("%w: negative radius %d", ErrInvalidQuery, radius)
	}
	if b := g.Bounds(); !origin.In(b) {
		return fmt.Errorf("%w: origin %v outside grid %v", ErrInvalidQuery, origin, b)
	}
	return nil
}
