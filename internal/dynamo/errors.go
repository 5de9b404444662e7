package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a field with NaN or Inf values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrInvalidDimensions indicates non-positive grid or ensemble dimensions.
	ErrInvalidDimensions = errors.New("dynamo: invalid grid or ensemble dimensions")

	// ErrDimensionMismatch indicates fields whose shapes disagree.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between fields")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
