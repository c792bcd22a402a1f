package fov

import (
	"image"

	"github.com/pthm-cable/fluxfov/geometry"
)

// Shape limits which cells of the radius box belong to a query.
type Shape uint8

const (
	// ShapeSquare keeps every cell within Chebyshev distance R.
	ShapeSquare Shape = iota
	// ShapeCircle keeps cells with dx*dx + dy*dy <= R*R.
	ShapeCircle
)

// String returns the config name of the shape.
func (s Shape) String() string {
	if s == ShapeCircle {
		return "circle"
	}
	return "square"
}

// contains reports whether offset (dx, dy) is inside the shape of radius r.
func (s Shape) contains(dx, dy, r int) bool {
	if s != ShapeCircle {
		return true
	}
	// r >= 2*max(|dx|,|dy|) already covers the offset; r*r may overflow.
	if geometry.Chebyshev(dx, dy) <= r/2 {
		return true
	}
	return dx*dx+dy*dy <= r*r
}

// appendRing appends the offsets at Chebyshev distance d, walking the
// ring's four sides clockwise from the top-left corner.
func appendRing(dst []image.Point, d int) []image.Point {
	if d == 0 {
		return append(dst, image.Point{})
	}
	for x := -d; x < d; x++ {
		dst = append(dst, image.Pt(x, -d))
	}
	for y := -d; y < d; y++ {
		dst = append(dst, image.Pt(d, y))
	}
	for x := d; x > -d; x-- {
		dst = append(dst, image.Pt(x, d))
	}
	for y := d; y > -d; y-- {
		dst = append(dst, image.Pt(-d, y))
	}
	return dst
}
