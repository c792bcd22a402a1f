// Package grid holds the transmittance map a field-of-vision query reads.
package grid

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrOutOfBounds is returned when a coordinate lies outside the grid.
	ErrOutOfBounds = errors.New("grid: coordinate out of bounds")
	// ErrInvalidTransmittance is returned for values outside [0,1] or NaN.
	ErrInvalidTransmittance = errors.New("grid: transmittance outside [0,1]")
)

// Common transmittance values.
const (
	Opaque  = 0.0
	Open    = 1.0
	Foliage = 0.5
)

// Reader is the read-only view of a map the engine is allowed to hold.
// Implementations must not change while a query is running.
type Reader interface {
	Bounds() image.Rectangle
	Transmittance(x, y int) (float64, error)
}

// Grid is an immutable rectangular transmittance map anchored at (0,0).
// Cells are stored row-major, index y*width+x.
type Grid struct {
	width  int
	height int
	cells  []float64
}

// New creates a width x height grid with every cell set to fill.
func New(width, height int, fill float64) (*Grid, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("grid: negative size %dx%d", width, height)
	}
	if !validTransmittance(fill) {
		return nil, fmt.Errorf("fill %v: %w", fill, ErrInvalidTransmittance)
	}
	cells := make([]float64, width*height)
	for i := range cells {
		cells[i] = fill
	}
	return &Grid{width: width, height: height, cells: cells}, nil
}

// FromValues creates a grid from row-major values. The slice is copied.
func FromValues(width, height int, values []float64) (*Grid, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("grid: negative size %dx%d", width, height)
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("grid: got %d values for %dx%d", len(values), width, height)
	}
	for i, v := range values {
		if !validTransmittance(v) {
			return nil, fmt.Errorf("cell (%d,%d) value %v: %w", i%width, i/width, v, ErrInvalidTransmittance)
		}
	}
	cells := make([]float64, len(values))
	copy(cells, values)
	return &Grid{width: width, height: height, cells: cells}, nil
}

// Width returns the grid width in cells.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in cells.
func (g *Grid) Height() int { return g.height }

// Bounds returns the half-open rectangle of valid coordinates.
func (g *Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.width, g.height)
}

// Contains reports whether (x, y) is inside the grid.
func (g *Grid) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// Transmittance returns the fraction of flux cell (x, y) lets through.
func (g *Grid) Transmittance(x, y int) (float64, error) {
	if !g.Contains(x, y) {
		return 0, fmt.Errorf("(%d,%d) in %dx%d: %w", x, y, g.width, g.height, ErrOutOfBounds)
	}
	return g.cells[y*g.width+x], nil
}

func validTransmittance(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Builder accumulates cell values before freezing them into a Grid.
type Builder struct {
	width  int
	height int
	cells  []float64
}

// NewBuilder starts a width x height map filled with fill.
func NewBuilder(width, height int, fill float64) (*Builder, error) {
	g, err := New(width, height, fill)
	if err != nil {
		return nil, err
	}
	return &Builder{width: g.width, height: g.height, cells: g.cells}, nil
}

// Set assigns the transmittance of one cell.
func (b *Builder) Set(x, y int, v float64) error {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return fmt.Errorf("(%d,%d) in %dx%d: %w", x, y, b.width, b.height, ErrOutOfBounds)
	}
	if !validTransmittance(v) {
		return fmt.Errorf("cell (%d,%d) value %v: %w", x, y, v, ErrInvalidTransmittance)
	}
	b.cells[y*b.width+x] = v
	return nil
}

// SetRect assigns v to every cell of r that lies inside the map.
func (b *Builder) SetRect(r image.Rectangle, v float64) error {
	if !validTransmittance(v) {
		return fmt.Errorf("rect %v value %v: %w", r, v, ErrInvalidTransmittance)
	}
	r = r.Intersect(image.Rect(0, 0, b.width, b.height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			b.cells[y*b.width+x] = v
		}
	}
	return nil
}

// Build returns an immutable copy of the current values.
// The builder stays usable afterwards.
func (b *Builder) Build() *Grid {
	cells := make([]float64, len(b.cells))
	copy(cells, b.cells)
	return &Grid{width: b.width, height: b.height, cells: cells}
}
