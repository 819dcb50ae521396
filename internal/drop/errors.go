package drop

import (
	"errors"
	"fmt"
)

// ErrDataIntegrity marks events whose effects contradict the state built from earlier events.
var ErrDataIntegrity = errors.New("data integrity violation")

// IntegrityError describes a data integrity violation raised while handling one event.
// The event is not applied.
type IntegrityError struct {
	Event      string
	Collection string
	Reason     string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s on %s: %s", e.Event, e.Collection, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return ErrDataIntegrity
}
