package metrics

import (
	"context"
	"sync"
	"sync/atomic"
)

// ValueSource produces the values of an instrument at collection time.
// It is implemented by *Counter, *UpDownCounter, *Histogram and Callback.
type ValueSource interface {
	// reports tells whether the source can back an instrument of type t.
	reports(t InstrumentType) bool
	collect(ctx context.Context, rec *recorder) error
}

// Counter is a thread-safe monotonic counter.
type Counter struct {
	val atomic.Int64
}

// NewCounter returns an unregistered counter, to be passed to Registry.Register.
func NewCounter() *Counter { return &Counter{} }

// Add increments the counter by n (n may be negative but it's not recommended for monotonic counters).
func (c *Counter) Add(n int64) { c.val.Add(n) }

// Snapshot returns the current value.
func (c *Counter) Snapshot() int64 { return c.val.Load() }

func (c *Counter) reports(t InstrumentType) bool { return t == InstrumentTypeCounter }

func (c *Counter) collect(_ context.Context, rec *recorder) error {
	rec.number(Int64(c.Snapshot()), rec.static)
	return nil
}

// UpDownCounter is a thread-safe up/down counter.
type UpDownCounter struct {
	val atomic.Int64
}

// NewUpDownCounter returns an unregistered up/down counter.
func NewUpDownCounter() *UpDownCounter { return &UpDownCounter{} }

// Add adds n (positive or negative) to the current value.
func (u *UpDownCounter) Add(n int64) { u.val.Add(n) }

// Snapshot returns the current value.
func (u *UpDownCounter) Snapshot() int64 { return u.val.Load() }

func (u *UpDownCounter) reports(t InstrumentType) bool { return t == InstrumentTypeUpDown }

func (u *UpDownCounter) collect(_ context.Context, rec *recorder) error {
	rec.number(Int64(u.Snapshot()), rec.static)
	return nil
}

// Histogram is a thread-safe histogram that tracks count, sum, min, and max.
// It does not maintain buckets; it's intended as a lightweight, general-purpose aggregator.
type Histogram struct {
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

// NewHistogram returns an unregistered histogram.
func NewHistogram() *Histogram { return &Histogram{} }

// Record adds a measurement to the histogram.
func (h *Histogram) Record(v float64) {
	h.mu.Lock()
	if h.count == 0 {
		// initialize min/max on first record
		h.min, h.max = v, v
	} else {
		if v < h.min {
			h.min = v
		}
		if v > h.max {
			h.max = v
		}
	}
	h.count++
	h.sum += v
	h.mu.Unlock()
}

// HistSnapshot is an immutable snapshot of a Histogram.
// Min and Max are zero when Count is zero.
type HistSnapshot struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Mean  float64
}

// Snapshot returns a copy of the histogram state at the time of call.
func (h *Histogram) Snapshot() HistSnapshot {
	h.mu.Lock()
	count := h.count
	sum := h.sum
	minV := h.min
	maxV := h.max
	h.mu.Unlock()
	mean := 0.0
	if count > 0 {
		mean = sum / float64(count)
	}
	return HistSnapshot{Count: count, Sum: sum, Min: minV, Max: maxV, Mean: mean}
}

func (h *Histogram) reports(t InstrumentType) bool { return t == InstrumentTypeHistogram }

func (h *Histogram) collect(_ context.Context, rec *recorder) error {
	rec.histogram(h.Snapshot(), rec.static)
	return nil
}
