package imposition

import (
	"errors"
	"fmt"
)

// ErrPrecondition matches every rejected call caused by invalid input.
var ErrPrecondition = errors.New("imposition: precondition violated")

// ErrDrained is returned when an Assembler is used after Drain.
var ErrDrained = errors.New("imposition: assembler already drained")

// PreconditionError describes an invalid argument.
type PreconditionError struct {
	Field  string
	Value  any
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// OutOfRangeError reports a value outside [Min, Max].
type OutOfRangeError struct {
	What  string
	Value int
	Min   int
	Max   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d]", e.What, e.Value, e.Min, e.Max)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrPrecondition }

// IsOutOfRange reports whether err carries an OutOfRangeError.
func IsOutOfRange(err error) bool {
	var oor *OutOfRangeError
	return errors.As(err, &oor)
}
