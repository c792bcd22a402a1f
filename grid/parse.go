package grid

import (
	"fmt"
	"unicode/utf8"
)

// Legend maps map glyphs to transmittance values.
type Legend map[rune]float64

// DefaultLegend covers the usual roguelike glyphs.
var DefaultLegend = Legend{
	'.': Open,
	' ': Open,
	'@': Open,
	'#': Opaque,
	'"': Foliage,
	'+': 0.25, // lattice, grate
}

// Parse builds a grid from equal-length text rows, one glyph per cell.
func Parse(rows []string, legend Legend) (*Grid, error) {
	if legend == nil {
		legend = DefaultLegend
	}
	height := len(rows)
	if height == 0 {
		return New(0, 0, Open)
	}
	width := utf8.RuneCountInString(rows[0])
	values := make([]float64, 0, width*height)
	for y, row := range rows {
		if n := utf8.RuneCountInString(row); n != width {
			return nil, fmt.Errorf("grid: row %d has %d cells, want %d", y, n, width)
		}
		x := 0
		for _, r := range row {
			v, ok := legend[r]
			if !ok {
				return nil, fmt.Errorf("grid: unknown glyph %q at (%d,%d)", r, x, y)
			}
			values = append(values, v)
			x++
		}
	}
	return FromValues(width, height, values)
}
