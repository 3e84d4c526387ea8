package collector

import "time"

// Reporter receives observability hooks from a Collector. Implementations may
// forward to Prometheus, logs, etc. Methods are called from the collector's
// goroutine and must not block.
type Reporter interface {
	CollectionCompleted(points, readErrors int, d time.Duration)
	ExportRetried(attempt int, err error)
	ExportSucceeded(points, attempts int, d time.Duration)
	// ExportFailed is called exactly once per dropped snapshot.
	ExportFailed(err *ExportError)
}

// NoopReporter is a Reporter that does nothing (default when none is configured).
type NoopReporter struct{}

func (NoopReporter) CollectionCompleted(int, int, time.Duration) {}
func (NoopReporter) ExportRetried(int, error)                    {}
func (NoopReporter) ExportSucceeded(int, int, time.Duration)     {}
func (NoopReporter) ExportFailed(*ExportError)                   {}
