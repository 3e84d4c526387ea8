// Package collector periodically snapshots a metrics source and hands each
// snapshot to an Exporter.
//
// A Collector loops Idle → Collecting → Exporting → Idle on a fixed interval.
// Failed exports are retried immediately a bounded number of times; an export
// never runs past the next tick, and a snapshot that cannot be delivered is
// dropped. On cancellation the collector performs one final flush bounded by
// a grace period.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	metrics "github.com/ygrebnov/pushmetrics"
)

// DefaultShutdownTimeout bounds the final flush when Options.ShutdownTimeout is zero.
const DefaultShutdownTimeout = 5 * time.Second

var (
	// ErrAlreadyRunning is returned by Run while another Run is active.
	ErrAlreadyRunning = errors.New("collector: already running")
	// ErrInvalidInterval is returned by New for a non-positive interval.
	ErrInvalidInterval = errors.New("collector: interval must be positive")
)

// Source produces snapshots; *metrics.Registry implements it.
type Source interface {
	Snapshot(ctx context.Context) metrics.Snapshot
}

// Options configures a Collector.
type Options struct {
	// Interval between collections. Required.
	Interval time.Duration
	// ExportTimeout caps a single export, retries included. Defaults to Interval.
	// A tick's export is further bounded by the time left before the next tick.
	ExportTimeout time.Duration
	// MaxRetries is the number of immediate retries after a failed export attempt.
	// Zero disables retries.
	MaxRetries int
	// ShutdownTimeout bounds the final flush. Defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	Logger   hclog.Logger
	Reporter Reporter
	Clock    clock.Clock
}

// Collector drives periodic collection and export.
type Collector struct {
	source   Source
	exporter Exporter
	opts     Options

	logger   hclog.Logger
	reporter Reporter
	clock    clock.Clock

	state   atomic.Int32
	running atomic.Bool
	// passMu serializes collect+export passes between Run and Flush.
	passMu sync.Mutex
}

// New validates opts and returns a Collector reading from source and delivering to exp.
func New(source Source, exp Exporter, opts Options) (*Collector, error) {
	var merr *multierror.Error
	if source == nil {
		merr = multierror.Append(merr, errors.New("collector: source is required"))
	}
	if exp == nil {
		merr = multierror.Append(merr, errors.New("collector: exporter is required"))
	}
	if opts.Interval <= 0 {
		merr = multierror.Append(merr, ErrInvalidInterval)
	}
	if opts.ExportTimeout < 0 {
		merr = multierror.Append(merr, fmt.Errorf("collector: export timeout must not be negative, got %s", opts.ExportTimeout))
	}
	if opts.MaxRetries < 0 {
		merr = multierror.Append(merr, fmt.Errorf("collector: max retries must not be negative, got %d", opts.MaxRetries))
	}
	if opts.ShutdownTimeout < 0 {
		merr = multierror.Append(merr, fmt.Errorf("collector: shutdown timeout must not be negative, got %s", opts.ShutdownTimeout))
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	if opts.ExportTimeout == 0 {
		opts.ExportTimeout = opts.Interval
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.Reporter == nil {
		opts.Reporter = NoopReporter{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	return &Collector{
		source:   source,
		exporter: exp,
		opts:     opts,
		logger:   opts.Logger.Named("collector"),
		reporter: opts.Reporter,
		clock:    opts.Clock,
	}, nil
}

// State returns the current phase of the collector.
func (c *Collector) State() State { return State(c.state.Load()) }

func (c *Collector) setState(s State) { c.state.Store(int32(s)) }

// Run collects and exports on every tick until ctx is done, then performs one
// final flush bounded by ShutdownTimeout. It returns nil on cancellation; a
// failed final flush is logged, not returned.
func (c *Collector) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	c.setState(StateIdle)
	c.logger.Info("starting collector",
		"interval", c.opts.Interval,
		"export_timeout", c.opts.ExportTimeout,
		"max_retries", c.opts.MaxRetries,
	)

	ticker := c.clock.Ticker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown(ctx)
			return nil
		case t := <-ticker.C:
			c.tick(ctx, t)
		}
	}
}

// Flush collects and exports once, with retries, bounded by ExportTimeout.
// A collector stopped by Run stays stopped.
func (c *Collector) Flush(ctx context.Context) error {
	c.passMu.Lock()
	defer c.passMu.Unlock()
	rest := StateIdle
	if c.State() == StateStopped {
		rest = StateStopped
	}
	defer c.setState(rest)

	snap := c.collect(ctx)
	return c.export(ctx, snap, c.opts.ExportTimeout, c.opts.MaxRetries)
}

func (c *Collector) tick(ctx context.Context, at time.Time) {
	c.passMu.Lock()
	defer c.passMu.Unlock()
	defer c.setState(StateIdle)

	snap := c.collect(ctx)
	budget := exportBudget(c.opts.ExportTimeout, at.Add(c.opts.Interval), c.clock.Now())
	// the error has already been logged and reported
	_ = c.export(ctx, snap, budget, c.opts.MaxRetries)
}

// exportBudget returns how long an export may take: the lesser of limit and
// the time left until next.
func exportBudget(limit time.Duration, next, now time.Time) time.Duration {
	return min(limit, next.Sub(now))
}

func (c *Collector) collect(ctx context.Context) metrics.Snapshot {
	c.setState(StateCollecting)
	start := c.clock.Now()
	snap := c.source.Snapshot(ctx)
	d := c.clock.Since(start)

	c.reporter.CollectionCompleted(snap.Len(), len(snap.Errors), d)
	if len(snap.Errors) > 0 {
		c.logger.Warn("collected snapshot with unreadable instruments",
			"points", snap.Len(), "read_errors", len(snap.Errors))
	} else {
		c.logger.Trace("collected snapshot", "points", snap.Len(), "duration", d)
	}
	return snap
}

// export delivers snap within timeout, retrying immediately up to retries times.
// On failure the snapshot is dropped and a single *ExportError is reported.
func (c *Collector) export(ctx context.Context, snap metrics.Snapshot, timeout time.Duration, retries int) error {
	c.setState(StateExporting)
	ctx, cancel := c.clock.WithTimeout(ctx, timeout)
	defer cancel()

	start := c.clock.Now()
	attempts := 0
	op := func() error {
		attempts++
		return c.attempt(ctx, snap)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(retries)), ctx)
	err := backoff.RetryNotify(op, b, func(err error, _ time.Duration) {
		c.logger.Debug("export attempt failed, retrying", "attempt", attempts, "error", err)
		c.reporter.ExportRetried(attempts, err)
	})
	if err != nil {
		eerr := &ExportError{Attempts: attempts, Points: snap.Len(), Err: err}
		c.logger.Error("dropping snapshot", "points", snap.Len(), "attempts", attempts, "error", err)
		c.reporter.ExportFailed(eerr)
		return eerr
	}

	d := c.clock.Since(start)
	c.logger.Debug("exported snapshot", "points", snap.Len(), "attempts", attempts, "duration", d)
	c.reporter.ExportSucceeded(snap.Len(), attempts, d)
	return nil
}

// attempt runs one export. If the exporter does not return before ctx is done
// the attempt is abandoned and left to finish in the background.
func (c *Collector) attempt(ctx context.Context, snap metrics.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- fmt.Errorf("exporter panicked: %v", v)
			}
		}()
		done <- c.exporter.Export(ctx, snap)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.logger.Warn("abandoning export that exceeded its deadline", "error", ctx.Err())
		return ctx.Err()
	}
}

// shutdown performs the final best-effort flush: one attempt, no retries,
// bounded by ShutdownTimeout.
func (c *Collector) shutdown(parent context.Context) {
	defer c.setState(StateStopped)

	c.passMu.Lock()
	defer c.passMu.Unlock()

	c.logger.Info("stopping collector, flushing final snapshot", "grace", c.opts.ShutdownTimeout)
	ctx, cancel := c.clock.WithTimeout(context.WithoutCancel(parent), c.opts.ShutdownTimeout)
	defer cancel()

	snap := c.collect(ctx)
	if err := c.export(ctx, snap, c.opts.ShutdownTimeout, 0); err != nil {
		c.logger.Warn("final flush failed", "error", err)
		return
	}
	c.logger.Info("collector stopped")
}
