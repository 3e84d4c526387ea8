package metrics

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
)

// Registry is an in-memory implementation of Provider and Inspector.
// It is safe for concurrent use: instruments may be registered from any
// goroutine while snapshots are being taken.
// A single RWMutex guards the name table; instruments are immutable once
// published, so a snapshot never observes a partially registered instrument.
type Registry struct {
	logger hclog.Logger
	clock  clock.Clock

	mu      sync.RWMutex
	byName  map[string]*instrument
	ordered []*instrument // registration order, append-only
}

// NewRegistry constructs an empty Registry.
// Accepts optional functional options to customize behavior.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := &registryConfig{}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = hclog.NewNullLogger()
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}
	return &Registry{
		logger: cfg.logger.Named("registry"),
		clock:  cfg.clock,
		byName: make(map[string]*instrument),
	}
}

// InstrumentKey identifies a registered instrument.
type InstrumentKey struct {
	Type InstrumentType
	Name string
}

// NewInstrumentKey returns the key of an instrument of type t named name.
func NewInstrumentKey(t InstrumentType, name string) InstrumentKey {
	return InstrumentKey{Type: t, Name: name}
}

func (k InstrumentKey) String() string { return k.Type.String() + ":" + k.Name }

type instrument struct {
	key     InstrumentKey
	cfg     InstrumentConfig
	static  attribute.Set
	source  ValueSource
	created time.Time
}

// Register adds an instrument named name of type t, backed by src.
//
// It fails with ErrInvalidName for an empty name, with *DuplicateNameError when
// the name is already taken (whatever src is), and with *KindMismatchError when
// src cannot report instruments of type t. A failed call leaves the registry
// unchanged.
func (r *Registry) Register(name string, t InstrumentType, src ValueSource, opts ...InstrumentOption) error {
	if name == "" {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		return &DuplicateNameError{Name: name, Existing: existing.key.Type}
	}
	if isNilSource(src) || !t.Valid() || !src.reports(t) {
		return &KindMismatchError{Name: name, Type: t, Source: sourceName(src)}
	}

	cfg := applyOptions(opts)
	inst := &instrument{
		key:     NewInstrumentKey(t, name),
		cfg:     cfg,
		static:  cfg.attributeSet(),
		source:  src,
		created: r.clock.Now(),
	}
	r.byName[name] = inst
	r.ordered = append(r.ordered, inst)
	r.logger.Trace("registered instrument", "instrument", inst.key.String())
	return nil
}

// Counter registers and returns a monotonic counter.
func (r *Registry) Counter(name string, opts ...InstrumentOption) (*Counter, error) {
	c := NewCounter()
	if err := r.Register(name, InstrumentTypeCounter, c, opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// UpDownCounter registers and returns an up/down counter.
func (r *Registry) UpDownCounter(name string, opts ...InstrumentOption) (*UpDownCounter, error) {
	u := NewUpDownCounter()
	if err := r.Register(name, InstrumentTypeUpDown, u, opts...); err != nil {
		return nil, err
	}
	return u, nil
}

// Histogram registers and returns a histogram.
func (r *Registry) Histogram(name string, opts ...InstrumentOption) (*Histogram, error) {
	h := NewHistogram()
	if err := r.Register(name, InstrumentTypeHistogram, h, opts...); err != nil {
		return nil, err
	}
	return h, nil
}

// Gauge registers a gauge whose value is produced by cb on every snapshot.
func (r *Registry) Gauge(name string, cb Callback, opts ...InstrumentOption) error {
	return r.Register(name, InstrumentTypeGauge, cb, opts...)
}

// ObservableCounter registers a monotonic counter whose cumulative value is produced by cb.
func (r *Registry) ObservableCounter(name string, cb Callback, opts ...InstrumentOption) error {
	return r.Register(name, InstrumentTypeCounter, cb, opts...)
}

// Len returns the number of registered instruments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Snapshot reads every registered instrument once, in registration order.
//
// Callbacks are invoked synchronously, outside the registry lock. A callback
// that fails or panics contributes an *InstrumentReadError to Snapshot.Errors
// and no points; the remaining instruments are still read.
func (r *Registry) Snapshot(ctx context.Context) Snapshot {
	r.mu.RLock()
	insts := slices.Clone(r.ordered)
	r.mu.RUnlock()

	now := r.clock.Now()
	snap := Snapshot{Time: now, Points: make([]Point, 0, len(insts))}
	for _, inst := range insts {
		pts, err := inst.read(ctx, now)
		if err != nil {
			r.logger.Warn("failed to read instrument", "instrument", inst.key.String(), "error", err)
			snap.Errors = append(snap.Errors, &InstrumentReadError{Name: inst.key.Name, Type: inst.key.Type, Err: err})
			continue
		}
		snap.Points = append(snap.Points, pts...)
	}
	return snap
}

func (i *instrument) read(ctx context.Context, now time.Time) (pts []Point, err error) {
	defer func() {
		if v := recover(); v != nil {
			pts, err = nil, &PanicError{Value: v}
		}
	}()

	rec := newRecorder(i.static)
	if err := i.source.collect(ctx, rec); err != nil {
		return nil, err
	}

	obs := rec.seal()
	pts = make([]Point, 0, len(obs))
	for _, o := range obs {
		pts = append(pts, Point{
			Name:        i.key.Name,
			Type:        i.key.Type,
			Unit:        i.cfg.Unit,
			Description: i.cfg.Description,
			Value:       o.value,
			Histogram:   o.hist,
			Attributes:  o.attrs,
			StartTime:   i.created,
			Time:        now,
		})
	}
	return pts, nil
}

func isNilSource(src ValueSource) bool {
	switch s := src.(type) {
	case nil:
		return true
	case *Counter:
		return s == nil
	case *UpDownCounter:
		return s == nil
	case *Histogram:
		return s == nil
	case Callback:
		return s == nil
	}
	return false
}

func sourceName(src ValueSource) string {
	if isNilSource(src) {
		return "nil source"
	}
	return fmt.Sprintf("%T", src)
}
