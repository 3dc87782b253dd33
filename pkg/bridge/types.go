// Package bridge moves bytes between serial controllers and packet
// transports such as MQTT, websockets and host streams.
package bridge

import (
	"errors"

	"github.com/robotalks/sercom.go/pkg/telemetry"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes. When it is also an
// io.Closer, Close must make a blocked ReadPacket return.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Port is the controller side of a bridge. serial.Controller
// implements it.
type Port interface {
	ReceivePacket(p []byte) int
	TransmitPacket(p []byte) bool
	TXCap() int
	Notify() <-chan struct{}

	ResetRX()
	ResetTX()
	ClearErrors()
	EchoRx(enable bool)
}

// Snapshotter provides the status of a controller.
type Snapshotter interface {
	Name() string
	Snapshot() *telemetry.Status
}

// NamedPort is a Port with a name and a status.
type NamedPort interface {
	Port
	Snapshotter
}

// Tap observes the data moved by a Pump.
type Tap interface {
	Tap(name string, dir telemetry.Direction, data []byte)
}

// TapFunc is the func form of Tap.
type TapFunc func(name string, dir telemetry.Direction, data []byte)

// Tap implements Tap.
func (f TapFunc) Tap(name string, dir telemetry.Direction, data []byte) {
	f(name, dir, data)
}

// StatusPublisher publishes controller status.
type StatusPublisher interface {
	PublishStatus(*telemetry.Status) error
}

// Control commands accepted by Apply.
const (
	CmdResetRX     = "reset-rx"
	CmdResetTX     = "reset-tx"
	CmdClearErrors = "clear-errors"
	CmdEchoOn      = "echo-on"
	CmdEchoOff     = "echo-off"
)

// ErrUnknownCommand indicates an unsupported control command.
var ErrUnknownCommand = errors.New("unknown control command")

// Apply runs a control command on a port.
func Apply(p Port, cmd string) error {
	switch cmd {
	case CmdResetRX:
		p.ResetRX()
	case CmdResetTX:
		p.ResetTX()
	case CmdClearErrors:
		p.ClearErrors()
	case CmdEchoOn:
		p.EchoRx(true)
	case CmdEchoOff:
		p.EchoRx(false)
	default:
		return ErrUnknownCommand
	}
	return nil
}
