package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrComputationFault indicates an undefined arithmetic operation while
	// evaluating a vector field.
	ErrComputationFault = errors.New("dynamo: computation fault")

	// ErrDivideByZero is the fault raised by a zero divisor.
	ErrDivideByZero = fmt.Errorf("%w: division by zero", ErrComputationFault)
)

// Fault wraps a computation fault with the step at which it happened.
type Fault struct {
	Step    int
	Time    float64
	Op      string
	Wrapped error
}

func (e *Fault) Error() string {
	return fmt.Sprintf("step %d (t=%.6f): %s: %v", e.Step, e.Time, e.Op, e.Wrapped)
}

func (e *Fault) Unwrap() error {
	return e.Wrapped
}
