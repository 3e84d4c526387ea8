package metrics

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
)

// Point is one reading of one instrument series.
type Point struct {
	Name        string
	Type        InstrumentType
	Unit        string
	Description string

	// Value holds the reading of counters, up/down counters and gauges.
	Value Number
	// Histogram is set for histogram instruments only.
	Histogram *HistSnapshot

	Attributes attribute.Set
	// StartTime is the registration time of the instrument, the start of
	// the cumulative window for counters and histograms.
	StartTime time.Time
	Time      time.Time
}

// Snapshot is a point-in-time set of instrument readings, ordered by
// instrument registration order. It is not modified after Registry.Snapshot returns.
type Snapshot struct {
	Time   time.Time
	Points []Point
	// Errors lists instruments whose callback failed during this snapshot.
	Errors []*InstrumentReadError
}

// Len returns the number of points in the snapshot.
func (s Snapshot) Len() int { return len(s.Points) }

// Err returns the read errors of the snapshot combined into one error, or nil.
func (s Snapshot) Err() error {
	if len(s.Errors) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, e := range s.Errors {
		merr = multierror.Append(merr, e)
	}
	return merr.ErrorOrNil()
}

// Lookup returns the points reported under name.
func (s Snapshot) Lookup(name string) []Point {
	var out []Point
	for _, p := range s.Points {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}
