package metrics

// Inspector provides read-only access to registered instruments and their metadata.
// Implementations should return defensive copies of configs.
// WithMeta methods return the instrument (if registered with that type), a snapshot of its config,
// and a flag of whether it was found.
// Methods must be safe for concurrent use.
type Inspector interface {
	CounterWithMeta(name string) (*Counter, InstrumentConfig, bool)
	UpDownCounterWithMeta(name string) (*UpDownCounter, InstrumentConfig, bool)
	HistogramWithMeta(name string) (*Histogram, InstrumentConfig, bool)
	Lookup(name string) (InstrumentEntry, bool)

	// ListMetadata returns enumeration for admin/debug UIs, in registration order.
	ListMetadata() []InstrumentEntry
}

type InstrumentEntry struct {
	Type   InstrumentType
	Name   string
	Config InstrumentConfig // defensive copy
}

func (r *Registry) lookup(name string) (*instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.byName[name]
	return inst, ok
}

// Lookup returns the metadata of the instrument registered under name.
func (r *Registry) Lookup(name string) (InstrumentEntry, bool) {
	inst, ok := r.lookup(name)
	if !ok {
		return InstrumentEntry{}, false
	}
	return inst.entry(), true
}

// CounterWithMeta implements Inspector.CounterWithMeta for Registry.
// Observable counters are reported as not found since they have no *Counter.
func (r *Registry) CounterWithMeta(name string) (*Counter, InstrumentConfig, bool) {
	inst, ok := r.lookup(name)
	if !ok {
		return nil, InstrumentConfig{}, false
	}
	c, ok := inst.source.(*Counter)
	if !ok {
		return nil, InstrumentConfig{}, false
	}
	return c, copyConfig(inst.cfg), true
}

// UpDownCounterWithMeta implements Inspector.UpDownCounterWithMeta for Registry.
func (r *Registry) UpDownCounterWithMeta(name string) (*UpDownCounter, InstrumentConfig, bool) {
	inst, ok := r.lookup(name)
	if !ok {
		return nil, InstrumentConfig{}, false
	}
	u, ok := inst.source.(*UpDownCounter)
	if !ok {
		return nil, InstrumentConfig{}, false
	}
	return u, copyConfig(inst.cfg), true
}

// HistogramWithMeta implements Inspector.HistogramWithMeta for Registry.
func (r *Registry) HistogramWithMeta(name string) (*Histogram, InstrumentConfig, bool) {
	inst, ok := r.lookup(name)
	if !ok {
		return nil, InstrumentConfig{}, false
	}
	h, ok := inst.source.(*Histogram)
	if !ok {
		return nil, InstrumentConfig{}, false
	}
	return h, copyConfig(inst.cfg), true
}

// ListMetadata returns a point-in-time snapshot of metadata entries in registration order.
func (r *Registry) ListMetadata() []InstrumentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]InstrumentEntry, 0, len(r.ordered))
	for _, inst := range r.ordered {
		out = append(out, inst.entry())
	}
	return out
}

func (i *instrument) entry() InstrumentEntry {
	return InstrumentEntry{Type: i.key.Type, Name: i.key.Name, Config: copyConfig(i.cfg)}
}
