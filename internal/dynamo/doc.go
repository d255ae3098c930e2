// Package dynamo provides the numerical primitives shared by the search.
//
// The package defines the small vocabulary every other package speaks:
//
//   - [State]: position vector of an oscillator
//   - [System]: interface for vector fields (dX/dt = f(X, t))
//   - [Integrator]: fixed-step numerical stepper
//   - [Fault]: computation fault raised while stepping a system
//
// # Faults
//
// A System cannot return an error from Derive, so a system that hits an
// undefined operation records a [Fault] and reports it from its own stepping
// entry point. Callers test for the condition with
//
//	if errors.Is(err, dynamo.ErrComputationFault) {
//	    // classify, do not propagate
//	}
package dynamo
