package metrics

// NoopProvider accepts every registration and records nothing.
// Hosts use it when metrics export is disabled; instruments it returns are usable
// but never read.
type NoopProvider struct{}

// NewNoopProvider returns a Provider that discards everything.
func NewNoopProvider() NoopProvider { return NoopProvider{} }

func (NoopProvider) Counter(string, ...InstrumentOption) (*Counter, error) {
	return NewCounter(), nil
}

func (NoopProvider) UpDownCounter(string, ...InstrumentOption) (*UpDownCounter, error) {
	return NewUpDownCounter(), nil
}

func (NoopProvider) Histogram(string, ...InstrumentOption) (*Histogram, error) {
	return NewHistogram(), nil
}

func (NoopProvider) Gauge(string, Callback, ...InstrumentOption) error { return nil }

func (NoopProvider) ObservableCounter(string, Callback, ...InstrumentOption) error { return nil }

var (
	_ Provider  = NoopProvider{}
	_ Provider  = (*Registry)(nil)
	_ Inspector = (*Registry)(nil)
)
