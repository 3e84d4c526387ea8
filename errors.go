package metrics

import (
	"errors"
	"fmt"
)

// ErrInvalidName is returned when registering an instrument with an empty name.
var ErrInvalidName = errors.New("metrics: instrument name must not be empty")

// DuplicateNameError is returned when an instrument name is already registered.
// Names are unique across instrument types.
type DuplicateNameError struct {
	Name     string
	Existing InstrumentType
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("metrics: instrument %q already registered as %s", e.Name, e.Existing)
}

// KindMismatchError is returned when a value source cannot back the requested instrument type,
// e.g. a gauge registered without a Callback.
type KindMismatchError struct {
	Name   string
	Type   InstrumentType
	Source string
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("metrics: instrument %q of type %s cannot be backed by %s", e.Name, e.Type, e.Source)
}

// InstrumentReadError reports that reading a single instrument failed during a snapshot.
// The other instruments of the snapshot are unaffected.
type InstrumentReadError struct {
	Name string
	Type InstrumentType
	Err  error
}

func (e *InstrumentReadError) Error() string {
	if e == nil || e.Err == nil {
		return "metrics: instrument read error"
	}
	return fmt.Sprintf("metrics: read %s %q: %v", e.Type, e.Name, e.Err)
}

func (e *InstrumentReadError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("callback panicked: %v", e.Value) }
