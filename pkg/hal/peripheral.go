package hal

import (
	"errors"
	"fmt"

	"github.com/robotalks/sercom.go/pkg/sercom"
)

var (
	// ErrInvalidBaud indicates a baud rate the unit cannot generate.
	ErrInvalidBaud = errors.New("invalid baud rate")
	// ErrInvalidPads indicates an unknown pad preset.
	ErrInvalidPads = errors.New("invalid pad config")
)

// Endianness is the bit order on the line.
type Endianness int

// Bit orders.
const (
	MSB Endianness = iota
	LSB
)

func (e Endianness) String() string {
	if e == LSB {
		return "lsb"
	}
	return "msb"
}

// Parity of a UART frame.
type Parity int

// Parity options.
const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// StopBits of a UART frame.
type StopBits int

// Stop bit options.
const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// SampleAdjustment selects UART oversampling and the samples voted on.
type SampleAdjustment int

// Sample adjustments.
const (
	Over16x_7_8_9 SampleAdjustment = iota
	Over16x_9_10_11
	Over16x_11_12_13
	Over16x_13_14_15
	Over8x_3_4_5
	Over8x_4_5_6
	Over8x_5_6_7
	Over8x_6_7_8
)

// sampa and sampr return the CTRLA.SAMPA and CTRLA.SAMPR encodings.
func (s SampleAdjustment) sampa() uint32 {
	return uint32(s) & 0x3
}

func (s SampleAdjustment) sampr() uint32 {
	if s >= Over8x_3_4_5 {
		return 2
	}
	return 0
}

// ClockMode is the SPI clock polarity and phase.
type ClockMode int

// SPI clock modes.
const (
	Mode0 ClockMode = iota
	Mode1
	Mode2
	Mode3
)

// CPOL reports an idle high clock.
func (m ClockMode) CPOL() bool {
	return m == Mode2 || m == Mode3
}

// CPHA reports sampling on the trailing edge.
func (m ClockMode) CPHA() bool {
	return m == Mode1 || m == Mode3
}

// UARTPeripheral describes a UART on a SERCOM unit.
type UARTPeripheral struct {
	ID         sercom.ID
	TX         sercom.Pinout
	RX         sercom.Pinout
	Baud       uint32
	Parity     Parity
	Endianness Endianness
	StopBits   StopBits
	Clock      sercom.ClockConfig
	Pads       sercom.PadConfig
	Sampling   SampleAdjustment
}

// SPIPeripheral describes a SPI bus on a SERCOM unit.
type SPIPeripheral struct {
	ID         sercom.ID
	MOSI       sercom.Pinout
	MISO       sercom.Pinout
	SCK        sercom.Pinout
	SSL        sercom.Pinout
	Baud       uint32
	ClockMode  ClockMode
	Endianness Endianness
	Clock      sercom.ClockConfig
	Pads       sercom.SPIPadConfig
	Client     bool
}

// DefaultSPIUnit is the unit used by DefaultSPI when none is chosen.
const DefaultSPIUnit = sercom.Sercom4

var uartPins = [sercom.NumUnits][2]sercom.Pinout{
	{sercom.Pin(sercom.FunctionC, sercom.PortA, 10), sercom.Pin(sercom.FunctionC, sercom.PortA, 11)},
	{sercom.Pin(sercom.FunctionC, sercom.PortA, 18), sercom.Pin(sercom.FunctionC, sercom.PortA, 19)},
	{sercom.Pin(sercom.FunctionD, sercom.PortA, 10), sercom.Pin(sercom.FunctionD, sercom.PortA, 11)},
	{sercom.Pin(sercom.FunctionD, sercom.PortA, 18), sercom.Pin(sercom.FunctionD, sercom.PortA, 19)},
	{sercom.Pin(sercom.FunctionD, sercom.PortB, 10), sercom.Pin(sercom.FunctionD, sercom.PortB, 11)},
	{sercom.Pin(sercom.FunctionD, sercom.PortA, 22), sercom.Pin(sercom.FunctionD, sercom.PortA, 23)},
}

// mosi, miso, sck, ssl
var spiPins = [sercom.NumUnits][4]sercom.Pinout{
	{sercom.Pin(sercom.FunctionD, sercom.PortA, 6), sercom.Pin(sercom.FunctionD, sercom.PortA, 4), sercom.Pin(sercom.FunctionD, sercom.PortA, 7), sercom.Pin(sercom.FunctionD, sercom.PortA, 5)},
	{sercom.Pin(sercom.FunctionC, sercom.PortA, 18), sercom.Pin(sercom.FunctionC, sercom.PortA, 16), sercom.Pin(sercom.FunctionC, sercom.PortA, 19), sercom.Pin(sercom.FunctionC, sercom.PortA, 17)},
	{sercom.Pin(sercom.FunctionD, sercom.PortA, 10), sercom.Pin(sercom.FunctionD, sercom.PortA, 8), sercom.Pin(sercom.FunctionD, sercom.PortA, 11), sercom.Pin(sercom.FunctionD, sercom.PortA, 9)},
	{sercom.Pin(sercom.FunctionD, sercom.PortA, 18), sercom.Pin(sercom.FunctionD, sercom.PortA, 16), sercom.Pin(sercom.FunctionD, sercom.PortA, 19), sercom.Pin(sercom.FunctionD, sercom.PortA, 17)},
	{sercom.Pin(sercom.FunctionD, sercom.PortB, 10), sercom.Pin(sercom.FunctionD, sercom.PortA, 12), sercom.Pin(sercom.FunctionD, sercom.PortB, 11), sercom.Pin(sercom.FunctionD, sercom.PortB, 9)},
	{sercom.Pin(sercom.FunctionD, sercom.PortB, 22), sercom.Pin(sercom.FunctionD, sercom.PortA, 22), sercom.Pin(sercom.FunctionD, sercom.PortB, 23), sercom.Pin(sercom.FunctionD, sercom.PortA, 23)},
}

// DefaultUART returns the default UART setup of a unit.
func DefaultUART(id sercom.ID) UARTPeripheral {
	p := UARTPeripheral{
		ID:         id,
		Baud:       115200,
		Parity:     ParityNone,
		Endianness: LSB,
		StopBits:   OneStopBit,
		Clock:      sercom.ClockConfig{Generator: sercom.UARTClockGenerator},
		Pads:       sercom.Tx2_Rx3,
		Sampling:   Over16x_7_8_9,
	}
	if id == sercom.Sercom5 {
		p.Pads = sercom.Tx0_Rx1
	}
	if id.IsValid() {
		p.TX, p.RX = uartPins[id][0], uartPins[id][1]
	}
	return p
}

// DefaultSPI returns the default SPI host setup of a unit.
func DefaultSPI(id sercom.ID) SPIPeripheral {
	p := SPIPeripheral{
		ID:         id,
		Baud:       50000,
		ClockMode:  Mode0,
		Endianness: MSB,
		Clock:      sercom.ClockConfig{Generator: sercom.SPIClockGenerator},
		Pads:       sercom.DO2_DI0_SCK3_CSS1,
	}
	if id.IsValid() {
		pins := spiPins[id]
		p.MOSI, p.MISO, p.SCK, p.SSL = pins[0], pins[1], pins[2], pins[3]
	}
	return p
}

// UARTBaud computes the arithmetic BAUD register value for an 8MHz
// generic clock at 16x oversampling.
func UARTBaud(baud uint32) (uint32, error) {
	if baud == 0 || baud >= 500000 {
		return 0, fmt.Errorf("uart %d: %w", baud, ErrInvalidBaud)
	}
	return uint32(65536*(1-0.000002*float64(baud)) + 1), nil
}

// SPIBaud computes the synchronous BAUD register value for an 8MHz
// generic clock.
func SPIBaud(baud uint32) (uint32, error) {
	if baud == 0 || baud > 4000000 {
		return 0, fmt.Errorf("spi %d: %w", baud, ErrInvalidBaud)
	}
	v := 8000000/(2*baud) - 1
	if v > 0xff {
		return 0, fmt.Errorf("spi %d: %w", baud, ErrInvalidBaud)
	}
	return v, nil
}
