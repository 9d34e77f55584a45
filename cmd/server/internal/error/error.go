package error

import "errors"

// ErrTypeAssertMismatch is returned when a value stored on the request context has an unexpected type.
var ErrTypeAssertMismatch = errors.New("type assertion mismatch")
