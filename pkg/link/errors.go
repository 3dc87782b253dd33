package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady indicates the link is not synchronized.
	ErrNotReady = errors.New("link not ready")
	// ErrNoReply indicates a later request was answered first, so this one
	// never will be.
	ErrNoReply = errors.New("no reply")
	// ErrTooLarge indicates a payload over MaxData.
	ErrTooLarge = errors.New("payload too large")
)

// Error codes of a reply.
const (
	ErrCodeFailed  byte = 0x02
	ErrCodeUnknown byte = 0x7e
)

// CommandError is the error code of a reply.
type CommandError struct {
	Code byte
}

// Error implements error.
func (e *CommandError) Error() string {
	switch e.Code {
	case ErrCodeUnknown:
		return "unknown command"
	case ErrCodeFailed:
		return "command failed"
	}
	return fmt.Sprintf("command error %02x", e.Code)
}
