package repair

import (
	"errors"
	"fmt"
)

// MinIterations and MaxIterations bound the fix attempts of one run.
const (
	MinIterations = 1
	MaxIterations = 5
)

var (
	// ErrInvalidMaxIterations is returned when maxIterations is outside
	// [MinIterations, MaxIterations]. Out-of-range values are never clamped.
	ErrInvalidMaxIterations = errors.New("max iterations out of range")

	// ErrInvalidInput is wrapped by every InputError.
	ErrInvalidInput = errors.New("invalid repair input")
)

// InputError reports a specification that cannot enter the repair loop at
// all. No validation or proposer call has been made when it is returned.
type InputError struct {
	// Field is the offending top-level field.
	Field string
	// Reason says what is wrong with it.
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid repair input: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}
