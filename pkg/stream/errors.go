package stream

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrSourceExhausted is returned, with a count of zero, by Refill and
	// Drain once the whole data chunk has been moved. It is the expected end
	// of a stream rather than a failure.
	ErrSourceExhausted = errors.New("source exhausted")

	ErrDirection = errors.New("operation does not match stream direction")
)

// TransitionError reports an operation attempted from a state that does
// not allow it. The stream is left unchanged.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: cannot %s while %v", ErrInvalidStateTransition, e.Op, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}
