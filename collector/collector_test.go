package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/goleak"

	metrics "github.com/ygrebnov/pushmetrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingReporter struct {
	mu          sync.Mutex
	collections int
	readErrors  int
	retries     []int
	successes   []int
	failures    []*ExportError
}

func (r *recordingReporter) CollectionCompleted(_, readErrors int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections++
	r.readErrors += readErrors
}

func (r *recordingReporter) ExportRetried(attempt int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, attempt)
}

func (r *recordingReporter) ExportSucceeded(_, attempts int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, attempts)
}

func (r *recordingReporter) ExportFailed(err *ExportError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *recordingReporter) counts() (collections, retries, successes, failures int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collections, len(r.retries), len(r.successes), len(r.failures)
}

func newRegistry(t *testing.T) (*metrics.Registry, *atomic.Int64) {
	t.Helper()
	r := metrics.NewRegistry()
	var calls atomic.Int64
	require.NoError(t, r.Gauge("calls", func(_ context.Context, o metrics.Observer) error {
		o.ObserveInt64(calls.Add(1))
		return nil
	}))
	return r, &calls
}

// blockingExporter ignores its context and blocks until the test ends.
func blockingExporter(t *testing.T) (Exporter, *atomic.Int64) {
	t.Helper()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	var calls atomic.Int64
	return ExporterFunc(func(context.Context, metrics.Snapshot) error {
		calls.Add(1)
		<-release
		return nil
	}), &calls
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, nil, Options{ExportTimeout: -1, MaxRetries: -1, ShutdownTimeout: -1})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidInterval)
	require.Contains(t, err.Error(), "6 errors occurred")

	reg, _ := newRegistry(t)
	c, err := New(reg, ExporterFunc(func(context.Context, metrics.Snapshot) error { return nil }), Options{Interval: time.Second})
	require.NoError(t, err)
	require.Equal(t, time.Second, c.opts.ExportTimeout)
	require.Equal(t, DefaultShutdownTimeout, c.opts.ShutdownTimeout)
	require.Equal(t, StateIdle, c.State())
}

func TestFlush_Success(t *testing.T) {
	reg, _ := newRegistry(t)
	rep := &recordingReporter{}

	var got metrics.Snapshot
	c, err := New(reg, ExporterFunc(func(_ context.Context, snap metrics.Snapshot) error {
		got = snap
		return nil
	}), Options{Interval: time.Minute, MaxRetries: 3, Reporter: rep})
	require.NoError(t, err)

	require.NoError(t, c.Flush(context.Background()))
	require.Equal(t, 1, got.Len())
	require.Equal(t, int64(1), got.Points[0].Value.AsInt64())

	collections, retries, successes, failures := rep.counts()
	require.Equal(t, 1, collections)
	require.Zero(t, retries)
	require.Equal(t, 1, successes)
	require.Zero(t, failures)
	require.Equal(t, []int{1}, rep.successes)
	require.Equal(t, StateIdle, c.State())
}

func TestFlush_RetriesExhausted(t *testing.T) {
	reg, _ := newRegistry(t)
	rep := &recordingReporter{}
	unavailable := errors.New("503 service unavailable")

	var attempts atomic.Int64
	c, err := New(reg, ExporterFunc(func(context.Context, metrics.Snapshot) error {
		attempts.Add(1)
		return unavailable
	}), Options{Interval: time.Minute, MaxRetries: 3, Reporter: rep})
	require.NoError(t, err)

	err = c.Flush(context.Background())
	var eerr *ExportError
	require.ErrorAs(t, err, &eerr)
	require.ErrorIs(t, err, unavailable)
	require.Equal(t, 4, eerr.Attempts)
	require.Equal(t, 1, eerr.Points)
	require.Equal(t, int64(4), attempts.Load())

	_, retries, successes, failures := rep.counts()
	require.Equal(t, 3, retries)
	require.Equal(t, []int{1, 2, 3}, rep.retries)
	require.Zero(t, successes)
	require.Equal(t, 1, failures)
	require.Same(t, eerr, rep.failures[0])
}

func TestFlush_RetryThenSuccess(t *testing.T) {
	reg, _ := newRegistry(t)
	rep := &recordingReporter{}

	var attempts atomic.Int64
	c, err := New(reg, ExporterFunc(func(context.Context, metrics.Snapshot) error {
		if attempts.Add(1) < 3 {
			return errors.New("connection refused")
		}
		return nil
	}), Options{Interval: time.Minute, MaxRetries: 3, Reporter: rep})
	require.NoError(t, err)

	require.NoError(t, c.Flush(context.Background()))
	require.Equal(t, int64(3), attempts.Load())
	require.Equal(t, []int{3}, rep.successes)
	require.Len(t, rep.retries, 2)
	require.Empty(t, rep.failures)
}

func TestFlush_NoRetries(t *testing.T) {
	reg, _ := newRegistry(t)
	var attempts atomic.Int64
	c, err := New(reg, ExporterFunc(func(context.Context, metrics.Snapshot) error {
		attempts.Add(1)
		return errors.New("nope")
	}), Options{Interval: time.Minute})
	require.NoError(t, err)

	var eerr *ExportError
	require.ErrorAs(t, c.Flush(context.Background()), &eerr)
	require.Equal(t, 1, eerr.Attempts)
	require.Equal(t, int64(1), attempts.Load())
}

func TestFlush_ExporterPanicIsRetried(t *testing.T) {
	reg, _ := newRegistry(t)
	var attempts atomic.Int64
	c, err := New(reg, ExporterFunc(func(context.Context, metrics.Snapshot) error {
		if attempts.Add(1) == 1 {
			panic("exporter bug")
		}
		return nil
	}), Options{Interval: time.Minute, MaxRetries: 1})
	require.NoError(t, err)

	require.NoError(t, c.Flush(context.Background()))
	require.Equal(t, int64(2), attempts.Load())
}

func TestFlush_StuckExporterAbandoned(t *testing.T) {
	reg, _ := newRegistry(t)
	rep := &recordingReporter{}
	exp, calls := blockingExporter(t)

	c, err := New(reg, exp, Options{Interval: time.Minute, ExportTimeout: 50 * time.Millisecond, MaxRetries: 3, Reporter: rep})
	require.NoError(t, err)

	start := time.Now()
	err = c.Flush(context.Background())
	require.Less(t, time.Since(start), 2*time.Second)

	var eerr *ExportError
	require.ErrorAs(t, err, &eerr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	// the deadline also bounds retries
	require.Equal(t, int64(1), calls.Load())
	_, _, _, failures := rep.counts()
	require.Equal(t, 1, failures)
}

func TestFlush_StateDuringPass(t *testing.T) {
	reg := metrics.NewRegistry()
	var c *Collector
	var collecting, exporting State
	require.NoError(t, reg.Gauge("state", func(_ context.Context, o metrics.Observer) error {
		collecting = c.State()
		o.ObserveInt64(1)
		return nil
	}))

	var err error
	c, err = New(reg, ExporterFunc(func(context.Context, metrics.Snapshot) error {
		exporting = c.State()
		return nil
	}), Options{Interval: time.Minute})
	require.NoError(t, err)

	require.NoError(t, c.Flush(context.Background()))
	require.Equal(t, StateCollecting, collecting)
	require.Equal(t, StateExporting, exporting)
	require.Equal(t, StateIdle, c.State())
}

func TestRun_CollectsEveryTick(t *testing.T) {
	reg, calls := newRegistry(t)
	rep := &recordingReporter{}

	var exports atomic.Int64
	c, err := New(reg, ExporterFunc(func(context.Context, metrics.Snapshot) error {
		exports.Add(1)
		return nil
	}), Options{Interval: 10 * time.Millisecond, Reporter: rep})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return exports.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.Equal(t, StateStopped, c.State())

	// one callback invocation per collection pass, final flush included
	collections, _, successes, failures := rep.counts()
	require.Equal(t, int64(collections), calls.Load())
	require.Equal(t, collections, successes+failures)
}

func TestRun_ShutdownMidInterval(t *testing.T) {
	reg, calls := newRegistry(t)

	var exported []metrics.Snapshot
	var mu sync.Mutex
	c, err := New(reg, ExporterFunc(func(_ context.Context, snap metrics.Snapshot) error {
		mu.Lock()
		defer mu.Unlock()
		exported = append(exported, snap)
		return nil
	}), Options{Interval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Run(ctx))

	require.Len(t, exported, 1)
	require.Equal(t, int64(1), calls.Load())
	require.Equal(t, StateStopped, c.State())
}

func TestRun_ShutdownWithStuckExporter(t *testing.T) {
	reg, _ := newRegistry(t)
	exp, calls := blockingExporter(t)
	rep := &recordingReporter{}

	c, err := New(reg, exp, Options{Interval: time.Hour, ShutdownTimeout: 50 * time.Millisecond, MaxRetries: 5, Reporter: rep})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	require.NoError(t, c.Run(ctx))
	require.Less(t, time.Since(start), 2*time.Second)

	// final flush is a single attempt
	require.Equal(t, int64(1), calls.Load())
	_, retries, _, failures := rep.counts()
	require.Zero(t, retries)
	require.Equal(t, 1, failures)
}

func TestRun_TickExportBoundedByNextTick(t *testing.T) {
	const interval = 100 * time.Millisecond
	reg, _ := newRegistry(t)
	exp, calls := blockingExporter(t)
	rep := &recordingReporter{}
	mock := clock.NewMock()

	c, err := New(reg, exp, Options{
		Interval:        interval,
		ExportTimeout:   10 * time.Second,
		MaxRetries:      2,
		ShutdownTimeout: time.Second,
		Reporter:        rep,
		Clock:           mock,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// advance to the first tick and wait for its export to block
	advanceUntil := func(cond func() bool) {
		require.Eventually(t, func() bool {
			if cond() {
				return true
			}
			mock.Add(interval)
			return false
		}, 5*time.Second, 10*time.Millisecond)
	}
	advanceUntil(func() bool { return calls.Load() >= 1 })
	_, _, _, before := rep.counts()
	require.Equal(t, StateExporting, c.State())

	// one interval later the export is abandoned, long before ExportTimeout
	mock.Add(interval)
	require.Eventually(t, func() bool {
		_, _, _, failures := rep.counts()
		return failures == before+1
	}, 2*time.Second, 5*time.Millisecond)

	rep.mu.Lock()
	failed := rep.failures[before]
	rep.mu.Unlock()
	require.ErrorIs(t, failed, context.DeadlineExceeded)
	require.Equal(t, 1, failed.Attempts)

	// the loop keeps ticking
	stuck := calls.Load()
	advanceUntil(func() bool { return calls.Load() > stuck })

	cancel()
	var runErr error
	require.Eventually(t, func() bool {
		select {
		case runErr = <-done:
			return true
		default:
			mock.Add(time.Second)
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, runErr)
	require.Equal(t, StateStopped, c.State())
}

func TestRun_AlreadyRunning(t *testing.T) {
	reg, _ := newRegistry(t)
	c, err := New(reg, ExporterFunc(func(context.Context, metrics.Snapshot) error { return nil }), Options{Interval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, c.running.Load, time.Second, time.Millisecond)
	require.ErrorIs(t, c.Run(context.Background()), ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
}

func TestFlush_AfterRunStaysStopped(t *testing.T) {
	reg, calls := newRegistry(t)
	c, err := New(reg, ExporterFunc(func(context.Context, metrics.Snapshot) error { return nil }), Options{Interval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Run(ctx))
	require.Equal(t, StateStopped, c.State())

	require.NoError(t, c.Flush(context.Background()))
	require.Equal(t, int64(2), calls.Load())
	require.Equal(t, StateStopped, c.State())
}

func TestRun_ExportsGaugeAfterFirstTick(t *testing.T) {
	reg := metrics.NewRegistry()
	require.NoError(t, reg.Gauge("jvm.memory.free",
		func(_ context.Context, o metrics.Observer) error {
			o.ObserveInt64(1024, attribute.String("host", "testhost"))
			return nil
		},
		metrics.WithDescription("Reports JVM memory usage."),
		metrics.WithUnit("byte"),
	))

	snaps := make(chan metrics.Snapshot, 16)
	c, err := New(reg, ExporterFunc(func(_ context.Context, snap metrics.Snapshot) error {
		select {
		case snaps <- snap:
		default:
		}
		return nil
	}), Options{Interval: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	var snap metrics.Snapshot
	select {
	case snap = <-snaps:
	case <-time.After(5 * time.Second):
		t.Fatal("no export within 5s")
	}
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, 1, snap.Len())
	p := snap.Points[0]
	require.Equal(t, "jvm.memory.free", p.Name)
	require.Equal(t, metrics.InstrumentTypeGauge, p.Type)
	require.Equal(t, "byte", p.Unit)
	require.Equal(t, int64(1024), p.Value.AsInt64())
	host, ok := p.Attributes.Value("host")
	require.True(t, ok)
	require.Equal(t, "testhost", host.AsString())
}

func TestExportBudget(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		limit time.Duration
		next  time.Time
		want  time.Duration
	}{
		{"limit_smaller", time.Second, now.Add(5 * time.Second), time.Second},
		{"next_tick_sooner", 10 * time.Second, now.Add(2 * time.Second), 2 * time.Second},
		{"tick_already_due", time.Second, now.Add(-time.Second), -time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, exportBudget(tc.limit, tc.next, now))
		})
	}
}

func TestState_String(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "collecting", StateCollecting.String())
	require.Equal(t, "exporting", StateExporting.String())
	require.Equal(t, "stopped", StateStopped.String())
	require.Equal(t, "unknown", State(42).String())
}
