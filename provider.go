package metrics

import (
	"go.opentelemetry.io/otel/attribute"
)

// Provider registers instruments used to record metrics.
// Implementations must be safe for concurrent use.
//
// Unlike a get-or-create provider, every name may be registered once:
// a second registration of the same name fails with *DuplicateNameError.
type Provider interface {
	Counter(name string, opts ...InstrumentOption) (*Counter, error)
	UpDownCounter(name string, opts ...InstrumentOption) (*UpDownCounter, error)
	Histogram(name string, opts ...InstrumentOption) (*Histogram, error)
	Gauge(name string, cb Callback, opts ...InstrumentOption) error
	ObservableCounter(name string, cb Callback, opts ...InstrumentOption) error
}

type InstrumentType string

const (
	InstrumentTypeCounter   InstrumentType = "counter"
	InstrumentTypeUpDown    InstrumentType = "updown"
	InstrumentTypeGauge     InstrumentType = "gauge"
	InstrumentTypeHistogram InstrumentType = "histogram"
)

func (t InstrumentType) String() string { return string(t) }

// Valid reports whether t is one of the known instrument types.
func (t InstrumentType) Valid() bool {
	switch t {
	case InstrumentTypeCounter, InstrumentTypeUpDown, InstrumentTypeGauge, InstrumentTypeHistogram:
		return true
	}
	return false
}

// InstrumentConfig carries optional instrument metadata.
type InstrumentConfig struct {
	Description string
	Unit        string
	// Attributes are static key-value pairs associated with the instrument itself.
	// They are merged into every point the instrument reports; attributes
	// observed by a callback take precedence on key collisions.
	Attributes map[string]string

	extra []attribute.KeyValue
}

// InstrumentOption mutates InstrumentConfig.
type InstrumentOption func(*InstrumentConfig)

// WithDescription sets a description for the instrument.
func WithDescription(desc string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Description = desc }
}

// WithUnit sets a unit for the instrument (e.g., "1", "By", "s").
func WithUnit(unit string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Unit = unit }
}

// WithAttributes attaches static string attributes to the instrument (bounded cardinality only).
func WithAttributes(attrs map[string]string) InstrumentOption {
	return func(c *InstrumentConfig) {
		if len(attrs) == 0 {
			return
		}
		// copy to avoid external mutation
		if c.Attributes == nil {
			c.Attributes = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			c.Attributes[k] = v
		}
	}
}

// WithAttributeSet attaches typed static attributes to the instrument.
func WithAttributeSet(kvs ...attribute.KeyValue) InstrumentOption {
	return func(c *InstrumentConfig) {
		c.extra = append(c.extra, kvs...)
	}
}

// applyOptions builds InstrumentConfig from options.
func applyOptions(opts []InstrumentOption) InstrumentConfig {
	var cfg InstrumentConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}

// attributeSet returns the static attributes of cfg as an immutable set.
func (c InstrumentConfig) attributeSet() attribute.Set {
	kvs := make([]attribute.KeyValue, 0, len(c.Attributes)+len(c.extra))
	for k, v := range c.Attributes {
		kvs = append(kvs, attribute.String(k, v))
	}
	// typed attributes win over string ones with the same key
	kvs = append(kvs, c.extra...)
	return attribute.NewSet(kvs...)
}

// copyConfig makes a defensive copy of InstrumentConfig (copies Attributes map).
func copyConfig(in InstrumentConfig) InstrumentConfig {
	out := InstrumentConfig{Description: in.Description, Unit: in.Unit}
	if len(in.Attributes) > 0 {
		out.Attributes = make(map[string]string, len(in.Attributes))
		for k, v := range in.Attributes {
			out.Attributes[k] = v
		}
	}
	if len(in.extra) > 0 {
		out.extra = append([]attribute.KeyValue(nil), in.extra...)
	}
	return out
}
