package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/zoosearch/internal/dynamo"
)

var ErrUnbounded = errors.New("trajectory left the finite range")

// faultTaker is implemented by systems that park evaluation faults instead
// of returning them from Derive.
type faultTaker interface {
	TakeFault() error
}

func takeFault(sys dynamo.System) error {
	if ft, ok := sys.(faultTaker); ok {
		return ft.TakeFault()
	}
	return nil
}

// step advances x by one integrator step and checks the result.
func step(sys dynamo.System, integ dynamo.Integrator, x dynamo.State, t, dt float64) (dynamo.State, error) {
	next := integ.Step(sys, x, t, dt)
	if err := takeFault(sys); err != nil {
		return nil, fmt.Errorf("t=%.6f: %w", t, err)
	}
	if !next.IsValid() {
		return nil, fmt.Errorf("t=%.6f: %w", t, ErrUnbounded)
	}
	return next, nil
}

// LyapunovExponent estimates the largest Lyapunov exponent by following a
// reference and a perturbed trajectory, renormalising their separation
// back to the initial perturbation after every step:
//
//	λ ≈ (1/T) Σ ln(|δx(t)| / |δx(0)|)
func LyapunovExponent(
	sys dynamo.System,
	integ dynamo.Integrator,
	x0 dynamo.State,
	dt, duration float64,
	perturbation float64,
) (float64, error) {
	if len(x0) == 0 {
		return 0, errors.New("empty initial state")
	}
	if !(dt > 0) || !(duration > 0) || !(perturbation > 0) {
		return 0, fmt.Errorf("dt, duration and perturbation must be positive")
	}
	// Drop a fault left over from an earlier caller.
	_ = takeFault(sys)

	x := x0.Clone()
	xp := x0.Clone()
	xp[0] += perturbation
	d0 := perturbation

	var (
		err    error
		t      float64
		sumLog float64
		count  int
	)
	for t < duration {
		if x, err = step(sys, integ, x, t, dt); err != nil {
			return 0, err
		}
		if xp, err = step(sys, integ, xp, t, dt); err != nil {
			return 0, err
		}
		t += dt

		sep := xp.Sub(x).Norm()
		if sep == 0 {
			continue
		}
		sumLog += math.Log(sep / d0)
		count++

		scale := d0 / sep
		for i := range xp {
			xp[i] = x[i] + (xp[i]-x[i])*scale
		}
	}

	if count == 0 {
		return 0, nil
	}
	return sumLog / (float64(count) * dt), nil
}
