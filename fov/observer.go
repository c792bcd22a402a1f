package fov

import (
	"image"
	"time"
)

// Phase names of a query.
const (
	PhaseValidate  = "validate"
	PhaseAllocate  = "allocate"
	PhasePropagate = "propagate"
	PhaseExtract   = "extract"
)

// Phases lists the query phases in execution order.
var Phases = []string{PhaseValidate, PhaseAllocate, PhasePropagate, PhaseExtract}

// QueryReport describes one finished or rejected query.
type QueryReport struct {
	Origin    image.Point
	Radius    int
	Threshold float64

	Rings     int
	EarlyExit bool
	Cells     int // cells in range
	Visible   int

	Duration time.Duration
	Phases   map[string]time.Duration

	Err error
}

// Observer receives a report after every query. Observers are called
// synchronously from the querying goroutine and must be safe for concurrent
// use when the engine is shared.
type Observer interface {
	ObserveQuery(QueryReport)
}

// phaseTimer splits a query's wall time into named phases.
type phaseTimer struct {
	start      time.Time
	phaseStart time.Time
	phase      string
	phases     map[string]time.Duration
}

func newPhaseTimer() *phaseTimer {
	now := time.Now()
	return &phaseTimer{start: now, phaseStart: now, phases: make(map[string]time.Duration, len(Phases))}
}

// begin ends the running phase, if any, and starts the next one.
func (t *phaseTimer) begin(phase string) {
	now := time.Now()
	if t.phase != "" {
		t.phases[t.phase] += now.Sub(t.phaseStart)
	}
	t.phase = phase
	t.phaseStart = now
}

// finish closes the running phase and returns the total duration.
func (t *phaseTimer) finish() time.Duration {
	t.begin("")
	return time.Since(t.start)
}
