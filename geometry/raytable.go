package geometry

import (
	"fmt"
	"math"
)

// RayTable is a weighting estimated by marching integer rays through one
// octant and counting, for every interior cell, how many of the rays that
// cross it arrived diagonally. It converges on Angular as the ray count grows
// and is kept for callers that want the classic ray-count weights.
//
// The table is laid out in visiting order of the octant interior:
//
//	v 4..../j
//	  3.../fi
//	  2../ceh
//	  1./abdg
//	  0@-----
//	   01234 u
//
// Cells beyond the table radius, or never crossed by a ray, fall back to
// Angular weights.
type RayTable struct {
	radius   int
	diagonal []float64
}

type rayCount struct {
	diagonal int
	total    int
}

// NewRayTable marches the given number of rays from angle 0 to pi/4 towards
// radiusFactor*radius and builds the table for rings up to radius.
func NewRayTable(radius, rays, radiusFactor int) (*RayTable, error) {
	if radius < 0 {
		return nil, fmt.Errorf("ray table: negative radius %d", radius)
	}
	if rays < 2 {
		return nil, fmt.Errorf("ray table: need at least 2 rays, got %d", rays)
	}
	// Targets must lie well past the octant edge at sqrt(2)*radius.
	if radiusFactor < 2 {
		return nil, fmt.Errorf("ray table: radius factor %d below 2", radiusFactor)
	}

	t := &RayTable{radius: radius, diagonal: make([]float64, tableSize(radius))}
	if len(t.diagonal) == 0 {
		return t, nil
	}

	counts := make([]rayCount, len(t.diagonal))
	rayRadius := float64(radiusFactor * radius)
	for i := 0; i < rays; i++ {
		angle := float64(i) / float64(rays-1) * math.Pi / 4
		tx := int(math.Round(math.Cos(angle) * rayRadius))
		ty := int(math.Round(math.Sin(angle) * rayRadius))
		if ty > tx {
			ty = tx
		}
		lastV := 0
		marchRay(radius, tx, ty, func(u, v int) {
			if u > 1 && v > 0 && v < u {
				c := &counts[tableIndex(u, v)]
				c.total++
				if v != lastV {
					c.diagonal++
				}
			}
			lastV = v
		})
	}

	for i, c := range counts {
		if c.total == 0 {
			t.diagonal[i] = math.NaN()
			continue
		}
		t.diagonal[i] = float64(c.diagonal) / float64(c.total)
	}
	return t, nil
}

// Radius returns the largest ring the table covers.
func (t *RayTable) Radius() int { return t.radius }

// Weights implements Weighting.
func (t *RayTable) Weights(dx, dy int) Set {
	ax, ay := abs(dx), abs(dy)
	if ax == ay || ax == 0 || ay == 0 {
		return Weights(dx, dy)
	}
	o := OctantOf(dx, dy)
	u, v := o.Local(dx, dy)
	if u > t.radius {
		return Weights(dx, dy)
	}
	d := t.diagonal[tableIndex(u, v)]
	if math.IsNaN(d) {
		return Weights(dx, dy)
	}
	return interior(o, u, v, 1-d)
}

// tableSize is the number of interior cells with 2 <= u <= radius.
func tableSize(radius int) int {
	if radius < 2 {
		return 0
	}
	return radius * (radius - 1) / 2
}

// tableIndex locates interior cell (u, v), 0 < v < u, in visiting order.
func tableIndex(u, v int) int {
	return (u-1)*(u-2)/2 + v - 1
}

// marchRay steps a ray from the origin towards (tx, ty), ty <= tx, calling
// visit at every column up to limit.
func marchRay(limit, tx, ty int, visit func(u, v int)) {
	switch {
	case ty == 0:
		for u := 0; u <= limit; u++ {
			visit(u, 0)
		}
	case ty == tx:
		for u := 0; u <= limit; u++ {
			visit(u, u)
		}
	default:
		visit(0, 0)
		r := tx / 2
		v := 0
		for u := 1; u <= limit; u++ {
			r += ty
			if r >= tx {
				v++
				r -= tx
			}
			visit(u, v)
		}
	}
}
