package fov

import "errors"

var (
	// ErrInvalidQuery is returned for an origin outside the grid or a
	// negative radius. No flux state exists when it is returned.
	ErrInvalidQuery = errors.New("fov: invalid query")
	// ErrInvalidThreshold is returned for a threshold outside [0,1].
	ErrInvalidThreshold = errors.New("fov: threshold outside [0,1]")
	// ErrAlreadySettled means a cell's influx was set twice in one query.
	// It indicates a ring ordering bug.
	ErrAlreadySettled = errors.New("fov: cell already settled")
	// ErrNotSettled means a cell's outflux was read before its influx was
	// final. It indicates a ring ordering bug.
	ErrNotSettled = errors.New("fov: cell not settled")
)
