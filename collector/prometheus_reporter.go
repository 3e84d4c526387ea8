package collector

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const promNamespace = "pushmetrics"

// PrometheusReporter implements Reporter using Prometheus metrics describing
// the collector itself.
type PrometheusReporter struct {
	collections     prom.Counter
	collectedPoints prom.Gauge
	readErrors      prom.Counter
	collectDuration prom.Histogram
	retries         prom.Counter
	exports         *prom.CounterVec
	exportDuration  prom.Histogram
	droppedPoints   prom.Counter
}

// NewPrometheusReporter constructs the reporter's metrics and registers them
// with reg. A nil reg gets a private registry.
func NewPrometheusReporter(reg prom.Registerer) *PrometheusReporter {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusReporter{
		collections: prom.NewCounter(prom.CounterOpts{
			Namespace: promNamespace,
			Name:      "collections_total",
			Help:      "Completed collection passes",
		}),
		collectedPoints: prom.NewGauge(prom.GaugeOpts{
			Namespace: promNamespace,
			Name:      "collected_points",
			Help:      "Points in the most recent snapshot",
		}),
		readErrors: prom.NewCounter(prom.CounterOpts{
			Namespace: promNamespace,
			Name:      "instrument_read_errors_total",
			Help:      "Instruments that failed to read during collection",
		}),
		collectDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: promNamespace,
			Name:      "collection_duration_seconds",
			Help:      "Duration of collection passes",
			Buckets:   prom.DefBuckets,
		}),
		retries: prom.NewCounter(prom.CounterOpts{
			Namespace: promNamespace,
			Name:      "export_retries_total",
			Help:      "Export attempts that failed and were retried",
		}),
		exports: prom.NewCounterVec(prom.CounterOpts{
			Namespace: promNamespace,
			Name:      "exports_total",
			Help:      "Export outcomes by result",
		}, []string{"result"}),
		exportDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: promNamespace,
			Name:      "export_duration_seconds",
			Help:      "Duration of successful exports, retries included",
			Buckets:   prom.DefBuckets,
		}),
		droppedPoints: prom.NewCounter(prom.CounterOpts{
			Namespace: promNamespace,
			Name:      "dropped_points_total",
			Help:      "Points dropped after the export retry budget was exhausted",
		}),
	}
	reg.MustRegister(pr.collections, pr.collectedPoints, pr.readErrors, pr.collectDuration,
		pr.retries, pr.exports, pr.exportDuration, pr.droppedPoints)
	return pr
}

func (p *PrometheusReporter) CollectionCompleted(points, readErrors int, d time.Duration) {
	if p == nil {
		return
	}
	p.collections.Inc()
	p.collectedPoints.Set(float64(points))
	p.readErrors.Add(float64(readErrors))
	p.collectDuration.Observe(d.Seconds())
}

func (p *PrometheusReporter) ExportRetried(int, error) {
	if p == nil {
		return
	}
	p.retries.Inc()
}

func (p *PrometheusReporter) ExportSucceeded(_, _ int, d time.Duration) {
	if p == nil {
		return
	}
	p.exports.WithLabelValues("success").Inc()
	p.exportDuration.Observe(d.Seconds())
}

func (p *PrometheusReporter) ExportFailed(err *ExportError) {
	if p == nil {
		return
	}
	p.exports.WithLabelValues("failed").Inc()
	if err != nil {
		p.droppedPoints.Add(float64(err.Points))
	}
}
