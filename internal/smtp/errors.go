package smtp

import (
	"errors"
	"fmt"
)

// DispatchError reports that a message could not be handed to the user's
// mail server. Sending is all-or-nothing: no recipient should be assumed
// to have received the message.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("problem sending message: %v", e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsDispatchError reports whether err (or any error in its chain) is a DispatchError.
func IsDispatchError(err error) bool {
	var dispatchErr *DispatchError
	return errors.As(err, &dispatchErr)
}
