package sercom

import "fmt"

// ID identifies a SERCOM unit.
type ID uint8

// SERCOM units of a SAMD21.
const (
	Sercom0 ID = iota
	Sercom1
	Sercom2
	Sercom3
	Sercom4
	Sercom5
)

// NumUnits is the number of SERCOM units.
const NumUnits = 6

// IsValid checks the unit exists.
func (id ID) IsValid() bool {
	return id < NumUnits
}

func (id ID) String() string {
	return fmt.Sprintf("SERCOM%d", uint8(id))
}

// Port is a GPIO port group.
type Port uint8

// Ports.
const (
	PortA Port = iota
	PortB
)

// Function is the peripheral multiplexing function of a pin.
type Function uint8

// Multiplexing functions carrying SERCOM signals.
const (
	FunctionC Function = iota + 2
	FunctionD
)

// Pinout identifies a pin and the function it is multiplexed to.
type Pinout struct {
	Function Function
	Port     Port
	Pin      uint8
}

// Pin is a shorthand constructor.
func Pin(fn Function, port Port, pin uint8) Pinout {
	return Pinout{Function: fn, Port: port, Pin: pin}
}

func (p Pinout) String() string {
	return fmt.Sprintf("P%c%02d/%c", 'A'+rune(p.Port), p.Pin, 'A'+rune(p.Function))
}

// Pad is a SERCOM pad index 0..3.
type Pad uint8

// Protocol is the mode a unit is claimed for.
type Protocol int

// Protocols.
const (
	ProtocolUART Protocol = iota
	ProtocolSPI
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUART:
		return "uart"
	case ProtocolSPI:
		return "spi"
	}
	return fmt.Sprintf("Protocol(%d)", int(p))
}

// PadConfig is a UART pad routing preset.
type PadConfig uint8

// UART pad presets.
const (
	Tx0_Rx1 PadConfig = iota
	Tx0_Rx2
	Tx0_Rx3
	Tx2_Rx0
	Tx2_Rx1
	Tx2_Rx3
)

var uartPads = [...]struct {
	name   string
	tx, rx Pad
	txpo   uint32
}{
	Tx0_Rx1: {"Tx0_Rx1", 0, 1, 0},
	Tx0_Rx2: {"Tx0_Rx2", 0, 2, 0},
	Tx0_Rx3: {"Tx0_Rx3", 0, 3, 0},
	Tx2_Rx0: {"Tx2_Rx0", 2, 0, 1},
	Tx2_Rx1: {"Tx2_Rx1", 2, 1, 1},
	Tx2_Rx3: {"Tx2_Rx3", 2, 3, 1},
}

// IsValid checks the preset exists.
func (c PadConfig) IsValid() bool {
	return int(c) < len(uartPads)
}

// Pads returns the TX and RX pads.
func (c PadConfig) Pads() (tx, rx Pad) {
	p := uartPads[c]
	return p.tx, p.rx
}

// TXPO returns the CTRLA.TXPO encoding.
func (c PadConfig) TXPO() uint32 {
	return uartPads[c].txpo
}

// RXPO returns the CTRLA.RXPO encoding.
func (c PadConfig) RXPO() uint32 {
	return uint32(uartPads[c].rx)
}

func (c PadConfig) String() string {
	if !c.IsValid() {
		return fmt.Sprintf("PadConfig(%d)", uint8(c))
	}
	return uartPads[c].name
}

// ParsePadConfig parses a UART preset name.
func ParsePadConfig(s string) (PadConfig, error) {
	for n, p := range uartPads {
		if p.name == s {
			return PadConfig(n), nil
		}
	}
	return 0, fmt.Errorf("unknown UART pad config %q", s)
}

// SPIPadConfig is a SPI pad routing preset.
type SPIPadConfig uint8

// SPI pad presets: data out, data in, clock and client select pads.
const (
	DO0_DI2_SCK1_CSS2 SPIPadConfig = iota
	DO0_DI3_SCK1_CSS2
	DO0_DI1_SCK3_CSS1
	DO0_DI2_SCK3_CSS1
	DO2_DI0_SCK3_CSS1
	DO2_DI1_SCK3_CSS1
	DO3_DI0_SCK1_CSS2
	DO3_DI2_SCK1_CSS2
)

var spiPads = [...]struct {
	name             string
	do, di, sck, css Pad
	dopo             uint32
}{
	DO0_DI2_SCK1_CSS2: {"DO0_DI2_SCK1_CSS2", 0, 2, 1, 2, 0},
	DO0_DI3_SCK1_CSS2: {"DO0_DI3_SCK1_CSS2", 0, 3, 1, 2, 0},
	DO0_DI1_SCK3_CSS1: {"DO0_DI1_SCK3_CSS1", 0, 1, 3, 1, 3},
	DO0_DI2_SCK3_CSS1: {"DO0_DI2_SCK3_CSS1", 0, 2, 3, 1, 3},
	DO2_DI0_SCK3_CSS1: {"DO2_DI0_SCK3_CSS1", 2, 0, 3, 1, 1},
	DO2_DI1_SCK3_CSS1: {"DO2_DI1_SCK3_CSS1", 2, 1, 3, 1, 1},
	DO3_DI0_SCK1_CSS2: {"DO3_DI0_SCK1_CSS2", 3, 0, 1, 2, 2},
	DO3_DI2_SCK1_CSS2: {"DO3_DI2_SCK1_CSS2", 3, 2, 1, 2, 2},
}

// IsValid checks the preset exists.
func (c SPIPadConfig) IsValid() bool {
	return int(c) < len(spiPads)
}

// Pads returns data out, data in, clock and client select pads.
func (c SPIPadConfig) Pads() (do, di, sck, css Pad) {
	p := spiPads[c]
	return p.do, p.di, p.sck, p.css
}

// DOPO returns the CTRLA.DOPO encoding.
func (c SPIPadConfig) DOPO() uint32 {
	return spiPads[c].dopo
}

// DIPO returns the CTRLA.DIPO encoding.
func (c SPIPadConfig) DIPO() uint32 {
	return uint32(spiPads[c].di)
}

func (c SPIPadConfig) String() string {
	if !c.IsValid() {
		return fmt.Sprintf("SPIPadConfig(%d)", uint8(c))
	}
	return spiPads[c].name
}

// ParseSPIPadConfig parses a SPI preset name.
func ParseSPIPadConfig(s string) (SPIPadConfig, error) {
	for n, p := range spiPads {
		if p.name == s {
			return SPIPadConfig(n), nil
		}
	}
	return 0, fmt.Errorf("unknown SPI pad config %q", s)
}
