package metrics

import (
	"math"
	"strconv"
)

// NumberKind tells whether a Number holds an integer or a floating point value.
type NumberKind uint8

const (
	// Int64Kind marks a Number created by Int64.
	Int64Kind NumberKind = iota
	// Float64Kind marks a Number created by Float64.
	Float64Kind
)

// Number is a single measurement. Integer values keep full int64 precision.
type Number struct {
	kind NumberKind
	bits uint64
}

// Int64 returns a Number holding v.
func Int64(v int64) Number { return Number{kind: Int64Kind, bits: uint64(v)} }

// Float64 returns a Number holding v.
func Float64(v float64) Number { return Number{kind: Float64Kind, bits: math.Float64bits(v)} }

// Kind reports how n was created.
func (n Number) Kind() NumberKind { return n.kind }

// AsInt64 returns the value as int64, truncating floating point values.
func (n Number) AsInt64() int64 {
	if n.kind == Float64Kind {
		return int64(math.Float64frombits(n.bits))
	}
	return int64(n.bits)
}

// AsFloat64 returns the value as float64.
func (n Number) AsFloat64() float64 {
	if n.kind == Float64Kind {
		return math.Float64frombits(n.bits)
	}
	return float64(int64(n.bits))
}

func (n Number) String() string {
	if n.kind == Float64Kind {
		return strconv.FormatFloat(n.AsFloat64(), 'g', -1, 64)
	}
	return strconv.FormatInt(n.AsInt64(), 10)
}
