package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrEntityNotFound indicates the entity registry has no such entity
	ErrEntityNotFound = errors.New("entity not found")

	// ErrNoCameraEngine indicates no engine could be chosen for a camera
	ErrNoCameraEngine = errors.New("could not determine camera engine")

	// ErrInvalidQuery indicates a query that cannot be dispatched
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnsupported indicates the engine does not support the operation
	ErrUnsupported = errors.New("operation not supported by engine")

	// ErrNotConnected indicates the Home Assistant session is not connected
	ErrNotConnected = errors.New("home assistant is not connected")
)

// CameraInitError is raised when a single camera cannot be initialized.
// Other cameras keep working.
type CameraInitError struct {
	CameraID string
	Message  string
	Hint     string
	Err      error
}

func (e *CameraInitError) Error() string {
	msg := e.Message
	if e.CameraID != "" {
		msg = fmt.Sprintf("camera %q: %s", e.CameraID, msg)
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CameraInitError) Unwrap() error { return e.Err }

// IsCameraInitError reports whether err carries a CameraInitError.
func IsCameraInitError(err error) bool {
	var initErr *CameraInitError
	return errors.As(err, &initErr)
}
