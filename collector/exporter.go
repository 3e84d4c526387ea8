package collector

import (
	"context"
	"fmt"

	metrics "github.com/ygrebnov/pushmetrics"
)

// Exporter delivers a snapshot to a collection service.
// Implementations should honour ctx; an attempt that outlives its deadline is
// abandoned by the collector and its result ignored.
type Exporter interface {
	// Export sends snap; a non-nil error makes the collector retry.
	Export(ctx context.Context, snap metrics.Snapshot) error
}

// ExporterFunc adapts a function to the Exporter interface.
type ExporterFunc func(ctx context.Context, snap metrics.Snapshot) error

// Export calls f(ctx, snap).
func (f ExporterFunc) Export(ctx context.Context, snap metrics.Snapshot) error { return f(ctx, snap) }

// ExportError is returned once the retry budget of an export is exhausted.
// The snapshot it refers to has been dropped.
type ExportError struct {
	Attempts int
	Points   int
	Err      error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export of %d points failed after %d attempts: %v", e.Points, e.Attempts, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
