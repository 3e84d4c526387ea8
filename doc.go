/*
Package metrics provides a concurrency-safe instrument registry whose contents
are read as point-in-time snapshots and pushed to a collection service.

# Overview

A Registry holds named instruments of four kinds:

  - Counter: a monotonically increasing int64 updated by the caller.
  - UpDownCounter: an int64 that may go up or down.
  - Histogram: count, sum, min and max of recorded float64 values.
  - Gauge: a Callback invoked on every snapshot; nothing is cached between snapshots.

Names are unique across kinds. Registering a name twice fails with a
*DuplicateNameError and leaves the registry unchanged.

	r := metrics.NewRegistry()
	c, err := r.Counter("requests", metrics.WithDescription("HTTP requests"), metrics.WithUnit("1"))
	if err != nil {
	    return err
	}
	c.Add(1)

	err = r.Gauge("jvm.memory.free", func(ctx context.Context, o metrics.Observer) error {
	    o.ObserveInt64(freeBytes(), attribute.String("host", hostname))
	    return nil
	}, metrics.WithUnit("byte"))

# Snapshots

Registry.Snapshot reads every instrument in registration order and returns a
Snapshot that is never modified afterwards. A callback that returns an error
or panics contributes no points; it is recorded in Snapshot.Errors as an
*InstrumentReadError and the remaining instruments are still read.

Callbacks run outside the registry lock. They may register further
instruments; those appear from the next snapshot on.

# Inspection

Registry also implements Inspector: CounterWithMeta, UpDownCounterWithMeta,
HistogramWithMeta, Lookup and ListMetadata return instruments with defensive
copies of their InstrumentConfig.

# Export

Periodic collection lives in the collector package, which drives a Source
(a Registry) and an Exporter on a fixed interval with bounded immediate
retries. Exporters are provided by exporter/otlphttp and exporter/logexporter.

# Build and test

	go test ./...
	go test -race ./...
*/
package metrics
