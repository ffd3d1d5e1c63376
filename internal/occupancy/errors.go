package occupancy

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidParameter indicates a probability argument outside [0,1] or NaN.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrShapeMismatch indicates input dimensions disagree with the declared sizes.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidObservation indicates a count outside [0,K] or a detection not in {0,1}.
	ErrInvalidObservation = errors.New("invalid observation")
)

// checkProbability returns ErrInvalidParameter unless v lies in [0,1].
func checkProbability(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be in [0,1], got %g", ErrInvalidParameter, name, v)
	}
	return nil
}
