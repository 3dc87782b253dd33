package sercom

// Handler is an interrupt service routine.
type Handler func()

// PinMode configures a GPIO pin.
type PinMode uint8

// Pin modes.
const (
	PinInput PinMode = iota
	PinOutput
	PinPeripheral
)

// ClockConfig selects the generic clock feeding a unit.
type ClockConfig struct {
	Generator uint8
	Divider   uint16
}

// Default generic clock generators.
const (
	UARTClockGenerator uint8 = 1
	SPIClockGenerator  uint8 = 2
)

// Device is the register access layer of the SERCOM units.
type Device interface {
	// Load reads a register of a unit.
	Load(id ID, reg Register) uint32
	// Store writes a register of a unit.
	Store(id ID, reg Register, v uint32)

	// ConfigPin sets the mode of a pin. PinPeripheral routes the pin to
	// the multiplexing function of p.
	ConfigPin(p Pinout, mode PinMode)
	// SetPin drives an output pin.
	SetPin(p Pinout, high bool)
	// PinState reads a pin level.
	PinState(p Pinout) bool

	// EnableSercomClock gates the bus and generic clocks of a unit.
	EnableSercomClock(id ID, clk ClockConfig)
	// DisableSercomClock stops the clocks of a unit.
	DisableSercomClock(id ID)

	// Attach binds the interrupt line of a unit to h, nil detaches.
	Attach(id ID, h Handler)
	// MaskIRQ keeps the interrupt of a unit from running until restore is
	// called. It is the critical section of foreground code sharing state
	// with the handler.
	MaskIRQ(id ID) (restore func())
}

// EnableSercomClock enables the unit clock with the protocol default
// generator when clk does not name one.
func EnableSercomClock(dev Device, id ID, proto Protocol, clk ClockConfig) ClockConfig {
	if clk.Generator == 0 {
		switch proto {
		case ProtocolSPI:
			clk.Generator = SPIClockGenerator
		default:
			clk.Generator = UARTClockGenerator
		}
	}
	dev.EnableSercomClock(id, clk)
	return clk
}
