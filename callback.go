package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
)

// Observer records the values a Callback reports during one collection pass.
// An Observer is safe for concurrent use by goroutines the callback starts, but
// it is only valid until the callback returns; later observations are discarded.
type Observer interface {
	ObserveInt64(v int64, attrs ...attribute.KeyValue)
	ObserveFloat64(v float64, attrs ...attribute.KeyValue)
}

// Callback is a deferred computation invoked synchronously on every snapshot.
// Its results are never cached between snapshots. A returned error (or a panic)
// is reported as an *InstrumentReadError for this instrument only.
//
// Callbacks are expected to be fast and non-blocking; ctx is the context of the
// collection pass.
type Callback func(ctx context.Context, o Observer) error

// ValueFunc adapts a zero-argument function to a Callback reporting a single
// value with the instrument's static attributes.
func ValueFunc(fn func() (float64, error)) Callback {
	return func(_ context.Context, o Observer) error {
		v, err := fn()
		if err != nil {
			return err
		}
		o.ObserveFloat64(v)
		return nil
	}
}

func (cb Callback) reports(t InstrumentType) bool {
	return t == InstrumentTypeGauge || t == InstrumentTypeCounter || t == InstrumentTypeUpDown
}

func (cb Callback) collect(ctx context.Context, rec *recorder) error {
	return cb(ctx, rec)
}

// observation is one attribute-distinguished series reported during a pass.
type observation struct {
	attrs attribute.Set
	value Number
	hist  *HistSnapshot
}

// recorder accumulates the observations of a single instrument for a single pass.
// Observing the same attribute set twice keeps the last value.
type recorder struct {
	static attribute.Set

	mu     sync.Mutex
	sealed bool
	obs    []observation
	index  map[attribute.Distinct]int
}

func newRecorder(static attribute.Set) *recorder {
	return &recorder{static: static}
}

func (r *recorder) ObserveInt64(v int64, attrs ...attribute.KeyValue) {
	r.number(Int64(v), r.merge(attrs))
}

func (r *recorder) ObserveFloat64(v float64, attrs ...attribute.KeyValue) {
	r.number(Float64(v), r.merge(attrs))
}

func (r *recorder) merge(attrs []attribute.KeyValue) attribute.Set {
	if len(attrs) == 0 {
		return r.static
	}
	if r.static.Len() == 0 {
		return attribute.NewSet(attrs...)
	}
	// observed attributes come last so they win on key collisions
	kvs := append(r.static.ToSlice(), attrs...)
	return attribute.NewSet(kvs...)
}

func (r *recorder) number(n Number, attrs attribute.Set) {
	r.put(observation{attrs: attrs, value: n})
}

func (r *recorder) histogram(h HistSnapshot, attrs attribute.Set) {
	r.put(observation{attrs: attrs, hist: &h})
}

func (r *recorder) put(o observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	if r.index == nil {
		r.index = make(map[attribute.Distinct]int, 1)
	}
	key := o.attrs.Equivalent()
	if i, ok := r.index[key]; ok {
		r.obs[i] = o
		return
	}
	r.index[key] = len(r.obs)
	r.obs = append(r.obs, o)
}

// seal ends the pass and returns what was observed.
func (r *recorder) seal() []observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
	return r.obs
}
