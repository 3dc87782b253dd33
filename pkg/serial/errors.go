package serial

import "errors"

var (
	// ErrNotOn indicates the controller is not initialized.
	ErrNotOn = errors.New("controller not on")
)
