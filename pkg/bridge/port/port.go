// Package port attaches host serial ports to controllers.
package port

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/robotalks/sercom.go/pkg/bridge/stream"
	"github.com/robotalks/sercom.go/pkg/hal"
)

// Mode returns the host port mode matching the line setup of a UART.
func Mode(p hal.UARTPeripheral) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: int(p.Baud),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	switch p.Parity {
	case hal.ParityEven:
		mode.Parity = serial.EvenParity
	case hal.ParityOdd:
		mode.Parity = serial.OddParity
	}
	if p.StopBits == hal.TwoStopBits {
		mode.StopBits = serial.TwoStopBits
	}
	return mode
}

// Open opens a host serial port with the line setup of p. Each read of
// the returned stream is one packet.
func Open(device string, p hal.UARTPeripheral) (*stream.Raw, error) {
	port, err := serial.Open(device, Mode(p))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	return stream.NewRaw(port), nil
}

// List returns the names of the serial ports of the host.
func List() ([]string, error) {
	return serial.GetPortsList()
}
