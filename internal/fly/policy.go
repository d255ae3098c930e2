package fly

import "math"

const (
	DefaultBound               = 100.0
	DefaultFixedPointTolerance = 1.0e-8
)

// Policy holds the divergence and fixed-point thresholds.
type Policy struct {
	Bound               float64
	FixedPointTolerance float64
}

func DefaultPolicy() Policy {
	return Policy{
		Bound:               DefaultBound,
		FixedPointTolerance: DefaultFixedPointTolerance,
	}
}

// OutOfBounds is true for NaN, infinities and magnitudes above the bound.
// The bound itself is in range.
func (p Policy) OutOfBounds(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > p.Bound
}

// IsFixedPoint compares the squared displacement against the squared
// tolerance; equality is not a fixed point.
func (p Policy) IsFixedPoint(dx, dy, dz float64) bool {
	tol2 := p.FixedPointTolerance * p.FixedPointTolerance
	return dx*dx+dy*dy+dz*dz < tol2
}

func OutOfBounds(v float64) bool {
	return DefaultPolicy().OutOfBounds(v)
}

func IsFixedPoint(dx, dy, dz float64) bool {
	return DefaultPolicy().IsFixedPoint(dx, dy, dz)
}
