package logexporter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	metrics "github.com/ygrebnov/pushmetrics"
)

func TestExport_LogsEveryPoint(t *testing.T) {
	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, JSONFormat: true, Level: hclog.Debug})

	r := metrics.NewRegistry()
	require.NoError(t, r.Gauge("jvm.memory.free", func(_ context.Context, o metrics.Observer) error {
		o.ObserveInt64(1024, attribute.String("host", "testhost"))
		return nil
	}, metrics.WithUnit("byte")))
	h, err := r.Histogram("latency")
	require.NoError(t, err)
	h.Record(4)

	exp := New(logger, hclog.Debug)
	require.NoError(t, exp.Export(context.Background(), r.Snapshot(context.Background())))

	var lines []map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)

	require.Equal(t, "debug", lines[0]["@level"])
	require.Equal(t, "export", lines[0]["@module"])
	require.Equal(t, "jvm.memory.free", lines[0]["name"])
	require.Equal(t, "gauge", lines[0]["type"])
	require.Equal(t, "1024", lines[0]["value"])
	require.Equal(t, "byte", lines[0]["unit"])
	require.Equal(t, "testhost", lines[0]["attr.host"])

	require.Equal(t, "latency", lines[1]["name"])
	require.EqualValues(t, 1, lines[1]["count"])
	require.EqualValues(t, 4, lines[1]["sum"])
}

func TestExport_CancelledContext(t *testing.T) {
	r := metrics.NewRegistry()
	_, err := r.Counter("c")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = New(hclog.NewNullLogger(), hclog.NoLevel).Export(ctx, r.Snapshot(context.Background()))
	require.ErrorIs(t, err, context.Canceled)
}
