package otlphttp

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"

	metrics "github.com/ygrebnov/pushmetrics"
)

// snapshotToOTLP groups the points of snap by instrument name, keeping
// registration order, and converts each group to one OTLP metric.
func snapshotToOTLP(snap metrics.Snapshot) []*metricpb.Metric {
	out := make([]*metricpb.Metric, 0, len(snap.Points))
	byName := make(map[string]*metricpb.Metric, len(snap.Points))

	for _, p := range snap.Points {
		m, ok := byName[p.Name]
		if !ok {
			m = newMetric(p)
			if m == nil {
				continue
			}
			byName[p.Name] = m
			out = append(out, m)
		}
		appendPoint(m, p)
	}
	return out
}

func newMetric(p metrics.Point) *metricpb.Metric {
	m := &metricpb.Metric{
		Name:        p.Name,
		Description: p.Description,
		Unit:        p.Unit,
	}
	switch p.Type {
	case metrics.InstrumentTypeGauge:
		m.Data = &metricpb.Metric_Gauge{Gauge: &metricpb.Gauge{}}
	case metrics.InstrumentTypeCounter:
		m.Data = &metricpb.Metric_Sum{Sum: &metricpb.Sum{
			AggregationTemporality: metricpb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE,
			IsMonotonic:            true,
		}}
	case metrics.InstrumentTypeUpDown:
		m.Data = &metricpb.Metric_Sum{Sum: &metricpb.Sum{
			AggregationTemporality: metricpb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE,
		}}
	case metrics.InstrumentTypeHistogram:
		m.Data = &metricpb.Metric_Histogram{Histogram: &metricpb.Histogram{
			AggregationTemporality: metricpb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE,
		}}
	default:
		return nil
	}
	return m
}

func appendPoint(m *metricpb.Metric, p metrics.Point) {
	attrs := attributesToOTLP(p.Attributes)
	start, ts := unixNano(p.StartTime), unixNano(p.Time)

	switch d := m.Data.(type) {
	case *metricpb.Metric_Gauge:
		d.Gauge.DataPoints = append(d.Gauge.DataPoints, numberPoint(p.Value, attrs, 0, ts))
	case *metricpb.Metric_Sum:
		d.Sum.DataPoints = append(d.Sum.DataPoints, numberPoint(p.Value, attrs, start, ts))
	case *metricpb.Metric_Histogram:
		if p.Histogram == nil {
			return
		}
		h := *p.Histogram
		dp := &metricpb.HistogramDataPoint{
			Attributes:        attrs,
			StartTimeUnixNano: start,
			TimeUnixNano:      ts,
			Count:             uint64(h.Count),
			Sum:               &h.Sum,
		}
		if h.Count > 0 {
			minV, maxV := h.Min, h.Max
			dp.Min = &minV
			dp.Max = &maxV
		}
		d.Histogram.DataPoints = append(d.Histogram.DataPoints, dp)
	}
}

func numberPoint(v metrics.Number, attrs []*commonpb.KeyValue, start, ts uint64) *metricpb.NumberDataPoint {
	dp := &metricpb.NumberDataPoint{
		Attributes:        attrs,
		StartTimeUnixNano: start,
		TimeUnixNano:      ts,
	}
	if v.Kind() == metrics.Float64Kind {
		dp.Value = &metricpb.NumberDataPoint_AsDouble{AsDouble: v.AsFloat64()}
	} else {
		dp.Value = &metricpb.NumberDataPoint_AsInt{AsInt: v.AsInt64()}
	}
	return dp
}

func unixNano(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}

func attributesToOTLP(set attribute.Set) []*commonpb.KeyValue {
	if set.Len() == 0 {
		return nil
	}
	out := make([]*commonpb.KeyValue, 0, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		out = append(out, &commonpb.KeyValue{Key: string(kv.Key), Value: anyValue(kv.Value)})
	}
	return out
}

func keyValuesToOTLP(kvs []attribute.KeyValue) []*commonpb.KeyValue {
	set := attribute.NewSet(kvs...)
	return attributesToOTLP(set)
}

func anyValue(v attribute.Value) *commonpb.AnyValue {
	switch v.Type() {
	case attribute.BOOL:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v.AsBool()}}
	case attribute.INT64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v.AsInt64()}}
	case attribute.FLOAT64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v.AsFloat64()}}
	case attribute.BOOLSLICE:
		vals := v.AsBoolSlice()
		arr := make([]*commonpb.AnyValue, len(vals))
		for i, b := range vals {
			arr[i] = anyValue(attribute.BoolValue(b))
		}
		return arrayValue(arr)
	case attribute.INT64SLICE:
		vals := v.AsInt64Slice()
		arr := make([]*commonpb.AnyValue, len(vals))
		for i, n := range vals {
			arr[i] = anyValue(attribute.Int64Value(n))
		}
		return arrayValue(arr)
	case attribute.FLOAT64SLICE:
		vals := v.AsFloat64Slice()
		arr := make([]*commonpb.AnyValue, len(vals))
		for i, f := range vals {
			arr[i] = anyValue(attribute.Float64Value(f))
		}
		return arrayValue(arr)
	case attribute.STRINGSLICE:
		vals := v.AsStringSlice()
		arr := make([]*commonpb.AnyValue, len(vals))
		for i, s := range vals {
			arr[i] = anyValue(attribute.StringValue(s))
		}
		return arrayValue(arr)
	default:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.Emit()}}
	}
}

func arrayValue(vals []*commonpb.AnyValue) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{Values: vals}}}
}
