package serial

import (
	"fmt"

	"github.com/robotalks/sercom.go/pkg/buffer"
)

// RXIRQState is the receive cause reported by one interrupt.
type RXIRQState uint8

// Receive causes.
const (
	RXNone RXIRQState = iota
	RXError
	RXComplete
	RXSuccess
)

// RXIRQStates lists every receive cause.
var RXIRQStates = []RXIRQState{RXNone, RXError, RXComplete, RXSuccess}

func (s RXIRQState) String() string {
	switch s {
	case RXNone:
		return "none"
	case RXError:
		return "error"
	case RXComplete:
		return "complete"
	case RXSuccess:
		return "success"
	}
	return fmt.Sprintf("RXIRQState(%d)", uint8(s))
}

// TXIRQState is the transmit cause reported by one interrupt.
type TXIRQState uint8

// Transmit causes.
const (
	TXNone TXIRQState = iota
	TXComplete
	TXSuccess
)

// TXIRQStates lists every transmit cause.
var TXIRQStates = []TXIRQState{TXNone, TXComplete, TXSuccess}

func (s TXIRQState) String() string {
	switch s {
	case TXNone:
		return "none"
	case TXComplete:
		return "complete"
	case TXSuccess:
		return "success"
	}
	return fmt.Sprintf("TXIRQState(%d)", uint8(s))
}

// ErrorCode is the protocol error enumeration. The zero value means no
// error.
type ErrorCode interface {
	~uint8
	fmt.Stringer
}

// Status is the record a controller exposes to the application.
type Status[E ErrorCode] struct {
	Error E
	RX    RXIRQState
	TX    TXIRQState
	On    bool
}

func (s Status[E]) pack() uint32 {
	v := uint32(s.Error) | uint32(s.RX)<<8 | uint32(s.TX)<<16
	if s.On {
		v |= 1 << 24
	}
	return v
}

func unpack[E ErrorCode](v uint32) Status[E] {
	return Status[E]{
		Error: E(v),
		RX:    RXIRQState(v >> 8),
		TX:    TXIRQState(v >> 16),
		On:    v&(1<<24) != 0,
	}
}

func (s Status[E]) String() string {
	return fmt.Sprintf("on=%v error=%s rx=%s tx=%s", s.On, s.Error, s.RX, s.TX)
}

// BufferStates is a snapshot of the fill state of both buffers.
type BufferStates struct {
	RX buffer.State
	TX buffer.State
}
