package telemetry

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/fluxfov/config"
	"github.com/pthm-cable/fluxfov/fov"
)

// QueryRecord is one row of queries.csv.
type QueryRecord struct {
	Seq         int64   `csv:"seq"`
	OriginX     int     `csv:"origin_x"`
	OriginY     int     `csv:"origin_y"`
	Radius      int     `csv:"radius"`
	Threshold   float64 `csv:"threshold"`
	Rings       int     `csv:"rings"`
	EarlyExit   bool    `csv:"early_exit"`
	Cells       int     `csv:"cells"`
	Visible     int     `csv:"visible"`
	DurationUS  int64   `csv:"duration_us"`
	PropagateUS int64   `csv:"propagate_us"`
	Error       string  `csv:"error"`
}

// CellRecord is one row of a result dump.
type CellRecord struct {
	X       int     `csv:"x"`
	Y       int     `csv:"y"`
	Influx  float64 `csv:"influx"`
	Visible bool    `csv:"visible"`
}

// csvFile appends gocsv records, writing the header once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func writeRecords[T any](c *csvFile, records []T) error {
	if !c.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles CSV output of queries, performance windows and
// result dumps. A nil manager discards everything, so callers need no
// checks when output is disabled. It is an fov.Observer.
type OutputManager struct {
	dir string

	mu      sync.Mutex
	seq     int64
	queries csvFile
	perf    csvFile
	stats   csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		name string
		dst  *csvFile
	}{
		{"queries.csv", &om.queries},
		{"perf.csv", &om.perf},
		{"stats.csv", &om.stats},
	}
	for _, file := range files {
		f, err := os.Create(filepath.Join(dir, file.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", file.name, err)
		}
		file.dst.f = f
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	configPath := filepath.Join(om.dir, "config.yaml")
	return cfg.WriteYAML(configPath)
}

// ObserveQuery appends the query to queries.csv. Write failures are logged.
func (om *OutputManager) ObserveQuery(r fov.QueryReport) {
	if om == nil {
		return
	}

	om.mu.Lock()
	defer om.mu.Unlock()

	om.seq++
	rec := QueryRecord{
		Seq:         om.seq,
		OriginX:     r.Origin.X,
		OriginY:     r.Origin.Y,
		Radius:      r.Radius,
		Threshold:   r.Threshold,
		Rings:       r.Rings,
		EarlyExit:   r.EarlyExit,
		Cells:       r.Cells,
		Visible:     r.Visible,
		DurationUS:  r.Duration.Microseconds(),
		PropagateUS: r.Phases[fov.PhasePropagate].Microseconds(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if err := writeRecords(&om.queries, []QueryRecord{rec}); err != nil {
		slog.Warn("writing query record", "error", err)
	}
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int64) error {
	if om == nil {
		return nil
	}

	om.mu.Lock()
	defer om.mu.Unlock()
	if err := writeRecords(&om.perf, []PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteStats writes a field summary to stats.csv.
func (om *OutputManager) WriteStats(stats FieldStats) error {
	if om == nil {
		return nil
	}

	om.mu.Lock()
	defer om.mu.Unlock()
	if err := writeRecords(&om.stats, []FieldStats{stats}); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}

// WriteResult dumps every in-range cell of r to <name>.csv.
func (om *OutputManager) WriteResult(name string, r *fov.Result) error {
	if om == nil {
		return nil
	}

	records := make([]CellRecord, 0, len(r.Influx))
	r.Cells(func(p image.Point, influx float64, visible bool) bool {
		records = append(records, CellRecord{X: p.X, Y: p.Y, Influx: influx, Visible: visible})
		return true
	})

	path := filepath.Join(om.dir, name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := gocsv.Marshal(records, f); err != nil {
		f.Close()
		return fmt.Errorf("writing result %s: %w", name, err)
	}
	return f.Close()
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	om.mu.Lock()
	defer om.mu.Unlock()

	var firstErr error
	for _, c := range []*csvFile{&om.queries, &om.perf, &om.stats} {
		if c.f == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.f = nil
	}
	return firstErr
}
