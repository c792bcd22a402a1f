// Package geometry computes how flux flows between neighbouring cells.
//
// For a cell C at ring d, its predecessors are the grid-adjacent cells at ring
// d-1 that C can be seen through from the origin. Each predecessor gets a
// weight equal to the share of C's angular extent it covers, so the weights of
// one cell always sum to 1. Everything here is a pure function of integer
// offsets from the origin.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MaxPredecessors is the largest predecessor count of any cell.
// Axis and diagonal cells have one, octant interior cells two.
const MaxPredecessors = 2

// Predecessor is a ring d-1 neighbour feeding a ring d cell.
type Predecessor struct {
	DX, DY int // offset from the origin
	Weight float64
}

// Set holds the predecessors of one cell without allocating.
type Set struct {
	N     int
	Items [MaxPredecessors]Predecessor
}

// Slice returns the valid predecessors.
func (s *Set) Slice() []Predecessor {
	return s.Items[:s.N]
}

// Sum returns the total weight of the set.
func (s *Set) Sum() float64 {
	var w [MaxPredecessors]float64
	for i := 0; i < s.N; i++ {
		w[i] = s.Items[i].Weight
	}
	return floats.Sum(w[:s.N])
}

// Weighting assigns predecessors and weights to cell offsets.
type Weighting interface {
	Weights(dx, dy int) Set
}

// Angular is the analytic angular-overlap weighting.
type Angular struct{}

// Weights implements Weighting.
func (Angular) Weights(dx, dy int) Set { return Weights(dx, dy) }

// Weights returns the predecessors of the cell at offset (dx, dy) from the
// origin. The origin itself has none.
func Weights(dx, dy int) Set {
	ax, ay := abs(dx), abs(dy)
	switch {
	case ax == 0 && ay == 0:
		return Set{}
	case ax == ay || ax == 0 || ay == 0:
		// Axis and diagonal cells only see through the cell straight behind
		// them; their whole span projects inside it.
		return single(dx-sign(dx), dy-sign(dy))
	}

	o := OctantOf(dx, dy)
	u, v := o.Local(dx, dy)
	straight, _ := InteriorShares(u, v)
	return interior(o, u, v, straight)
}

func single(dx, dy int) Set {
	s := Set{N: 1}
	s.Items[0] = Predecessor{DX: dx, DY: dy, Weight: 1}
	return s
}

// interior builds the two-predecessor set of an octant interior cell.
func interior(o Octant, u, v int, straight float64) Set {
	s := Set{N: 2}
	sx, sy := o.World(u-1, v)
	jx, jy := o.World(u-1, v-1)
	s.Items[0] = Predecessor{DX: sx, DY: sy, Weight: straight}
	s.Items[1] = Predecessor{DX: jx, DY: jy, Weight: 1 - straight}
	return s
}

// Span is an angular interval in radians, Lo <= Hi.
type Span struct {
	Lo, Hi float64
}

// Width returns Hi - Lo.
func (s Span) Width() float64 { return s.Hi - s.Lo }

// CellSpan returns the angle subtended by octant cell (u, w), measured across
// its column at distance u. Cells at u == 0 cover the whole octant.
func CellSpan(u, w int) Span {
	if u == 0 {
		return Span{Lo: -math.Pi / 2, Hi: math.Pi / 2}
	}
	fu := float64(u)
	return Span{
		Lo: math.Atan2(float64(w)-0.5, fu),
		Hi: math.Atan2(float64(w)+0.5, fu),
	}
}

// Overlap returns the angular length shared by a and b.
func Overlap(a, b Span) float64 {
	lo := math.Max(a.Lo, b.Lo)
	hi := math.Min(a.Hi, b.Hi)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// InteriorShares splits the span of octant interior cell (u, v), 0 < v < u,
// between its straight predecessor (u-1, v) and its diagonal predecessor
// (u-1, v-1). The two shares sum to 1.
func InteriorShares(u, v int) (straight, diagonal float64) {
	cell := CellSpan(u, v)
	shares := [2]float64{
		Overlap(cell, CellSpan(u-1, v)),
		Overlap(cell, CellSpan(u-1, v-1)),
	}
	total := floats.Sum(shares[:])
	if total <= 0 {
		return 0.5, 0.5
	}
	floats.Scale(1/total, shares[:])
	straight = clamp01(shares[0])
	return straight, 1 - straight
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
