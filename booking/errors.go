package booking

import (
	"errors"
	"fmt"

	"github.com/s0up4200/epoch/api"
)

// Errors surfaced inline by the booking flow
var (
	ErrNoSeatsSelected   = errors.New("select at least one seat")
	ErrNotAuthenticated  = errors.New("you must be logged in to book seats")
	ErrSeatUnavailable   = errors.New("seat is unavailable")
	ErrSeatNotFound      = errors.New("seat not found")
	ErrNoPendingBooking  = errors.New("no pending booking")
	ErrInvalidTransition = errors.New("invalid booking state transition")
)

// TransitionError reports an operation attempted in the wrong state
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// validation wraps a sentinel so api.KindOf classifies it as a client-side
// validation failure
func validation(err error) error {
	return api.NewValidationError(err.Error(), err)
}
