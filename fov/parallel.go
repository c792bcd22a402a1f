package fov

import (
	"image"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/fluxfov/grid"
)

// DefaultParallelThreshold is the minimum ring size to fan out.
// Below this, single-threaded is faster due to goroutine overhead.
const DefaultParallelThreshold = 256

// relaxRing settles one ring, splitting it into contiguous chunks across
// workers when it is large enough. Cells of a ring only read ring d-1, so
// chunks never touch each other's state.
func (p *Propagator) relaxRing(field *FluxField, g grid.Reader, cells []image.Point) (float64, error) {
	workers := p.Workers
	if workers > len(cells) {
		workers = len(cells)
	}
	if workers <= 1 || len(cells) < p.ParallelThreshold {
		return p.relaxCells(field, g, cells)
	}

	chunk := (len(cells) + workers - 1) / workers
	peaks := make([]float64, workers)

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		w := w // per-iteration copy: go 1.21 loop vars are shared across iterations
		start := w * chunk
		if start >= len(cells) {
			break
		}
		end := min(start+chunk, len(cells))
		eg.Go(func() error {
			peak, err := p.relaxCells(field, g, cells[start:end])
			peaks[w] = peak
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	return floats.Max(peaks), nil
}
