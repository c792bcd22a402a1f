package geometry

// Octant is one of the eight shadowcasting octants around the origin.
//
// Inside an octant a cell is addressed by (u, v): u is the distance along the
// major axis (the Chebyshev ring) and v the distance along the minor axis,
// 0 <= v <= u.
//
//	bit 2: major axis is y
//	bit 1: major axis points negative
//	bit 0: minor axis points negative
type Octant uint8

// octantBasis maps octant-local (u, v) back to grid offsets:
// dx = xu*u + xv*v, dy = yu*u + yv*v.
var octantBasis = [8][4]int{
	{1, 0, 0, 1},
	{1, 0, 0, -1},
	{-1, 0, 0, 1},
	{-1, 0, 0, -1},
	{0, 1, 1, 0},
	{0, -1, 1, 0},
	{0, 1, -1, 0},
	{0, -1, -1, 0},
}

// OctantOf returns the octant containing offset (dx, dy).
// Cells on an axis or diagonal belong to more than one octant; ties go to the
// x-major, positive side.
func OctantOf(dx, dy int) Octant {
	ax, ay := abs(dx), abs(dy)
	var o Octant
	if ax >= ay {
		if dx < 0 {
			o |= 2
		}
		if dy < 0 {
			o |= 1
		}
		return o
	}
	o = 4
	if dy < 0 {
		o |= 2
	}
	if dx < 0 {
		o |= 1
	}
	return o
}

// Local converts a grid offset inside the octant to (u, v).
func (o Octant) Local(dx, dy int) (u, v int) {
	if o&4 != 0 {
		return abs(dy), abs(dx)
	}
	return abs(dx), abs(dy)
}

// World converts octant-local (u, v) to a grid offset.
func (o Octant) World(u, v int) (dx, dy int) {
	b := octantBasis[o&7]
	return b[0]*u + b[1]*v, b[2]*u + b[3]*v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

// Chebyshev returns the ring index of offset (dx, dy).
func Chebyshev(dx, dy int) int {
	ax, ay := abs(dx), abs(dy)
	if ax > ay {
		return ax
	}
	return ay
}
