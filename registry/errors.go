package registry

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyApplicationID = errors.New("application id is empty")
	ErrNilHandler         = errors.New("handler is nil")
	ErrClosed             = errors.New("registry closed")
)

// HandlerError records a handler that failed or panicked during a fan-out.
// The remaining handlers of the fan-out still run.
type HandlerError struct {
	ApplicationID  string
	SubscriptionID string
	ObjectID       string
	Err            error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s of application %s failed for object %s: %v", e.SubscriptionID, e.ApplicationID, e.ObjectID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
