package integrators

import (
	"math"

	"github.com/san-kum/zoosearch/internal/dynamo"
)

// Dormand-Prince 5(4) tableau.
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 takes fixed Dormand-Prince steps. The engine always advances by the
// sample period, so the embedded estimate is only reported, never used to
// resize the step; StepAdaptive exposes the suggested size for analysis.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64

	k       [7]dynamo.State
	scratch dynamo.State
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) ensureScratch(n int) {
	if len(r.scratch) != n {
		for i := range r.k {
			r.k[i] = make(dynamo.State, n)
		}
		r.scratch = make(dynamo.State, n)
	}
}

// Step is not safe for concurrent use; the stage buffers are shared.
func (r *RK45) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	next, _ := r.step(sys, x, t, dt, false)
	return next
}

// StepAdaptive takes one step and returns the step size that would bring the
// embedded error to tol.
func (r *RK45) StepAdaptive(sys dynamo.System, x dynamo.State, t, dt, tol float64) (dynamo.State, float64) {
	next, errMax := r.step(sys, x, t, dt, true)
	if !(tol > 0) {
		return next, dt
	}

	ratio := errMax / tol
	switch {
	case ratio > 1:
		return next, dt * math.Max(r.minScale, r.safety*math.Pow(ratio, -0.25))
	case ratio > 0:
		return next, dt * math.Min(r.maxScale, r.safety*math.Pow(ratio, -0.2))
	}
	return next, dt * r.maxScale
}

func (r *RK45) step(sys dynamo.System, x dynamo.State, t, dt float64, estimate bool) (dynamo.State, float64) {
	n := len(x)
	r.ensureScratch(n)
	k, s := r.k, r.scratch

	copy(k[0], sys.Derive(x, t))

	for i := 0; i < n; i++ {
		s[i] = x[i] + dt*b21*k[0][i]
	}
	copy(k[1], sys.Derive(s, t+a2*dt))

	for i := 0; i < n; i++ {
		s[i] = x[i] + dt*(b31*k[0][i]+b32*k[1][i])
	}
	copy(k[2], sys.Derive(s, t+a3*dt))

	for i := 0; i < n; i++ {
		s[i] = x[i] + dt*(b41*k[0][i]+b42*k[1][i]+b43*k[2][i])
	}
	copy(k[3], sys.Derive(s, t+a4*dt))

	for i := 0; i < n; i++ {
		s[i] = x[i] + dt*(b51*k[0][i]+b52*k[1][i]+b53*k[2][i]+b54*k[3][i])
	}
	copy(k[4], sys.Derive(s, t+a5*dt))

	for i := 0; i < n; i++ {
		s[i] = x[i] + dt*(b61*k[0][i]+b62*k[1][i]+b63*k[2][i]+b64*k[3][i]+b65*k[4][i])
	}
	copy(k[5], sys.Derive(s, t+dt))

	next := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		next[i] = x[i] + dt*(c1*k[0][i]+c3*k[2][i]+c4*k[3][i]+c5*k[4][i]+c6*k[5][i])
	}
	if !estimate {
		return next, 0
	}

	copy(k[6], sys.Derive(next, t+dt))
	errMax := 0.0
	for i := 0; i < n; i++ {
		e := dt * (dc1*k[0][i] + dc3*k[2][i] + dc4*k[3][i] + dc5*k[4][i] + dc6*k[5][i] + dc7*k[6][i])
		scale := math.Abs(x[i]) + math.Abs(dt*k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(e)/scale)
	}
	return next, errMax
}
