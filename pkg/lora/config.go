package lora

import (
	"fmt"

	"github.com/robotalks/sercom.go/pkg/hal"
	"github.com/robotalks/sercom.go/pkg/sercom"
)

// OutputPower is the maximum output power.
type OutputPower int

// Output powers.
const (
	DBm22 OutputPower = iota
	DBm20
	DBm17
	DBm14
)

// paConfig returns the duty cycle and hpMax of SetPaConfig.
func (p OutputPower) paConfig() (duty, hpMax byte, ok bool) {
	switch p {
	case DBm22:
		return 0x04, 0x07, true
	case DBm20:
		return 0x03, 0x05, true
	case DBm17:
		return 0x02, 0x03, true
	case DBm14:
		return 0x02, 0x02, true
	}
	return 0, 0, false
}

// RampTime is the power ramping time of the transmitter.
type RampTime byte

// Ramp times.
const (
	Ramp10us RampTime = iota
	Ramp20us
	Ramp40us
	Ramp80us
	Ramp200us
	Ramp800us
	Ramp1700us
	Ramp3400us
)

// SpreadFactor is the LoRa spreading factor. Higher reaches further.
type SpreadFactor byte

// Spreading factors.
const (
	SF5 SpreadFactor = iota + 5
	SF6
	SF7
	SF8
	SF9
	SF10
	SF11
)

// Bandwidth is the LoRa bandwidth. Lower reaches further but carries
// less.
type Bandwidth byte

// Bandwidths.
const (
	BW125 Bandwidth = iota + 4
	BW250
	BW500
)

// CodingRate is the forward error correction rate.
type CodingRate byte

// Coding rates.
const (
	CR4_5 CodingRate = iota + 1
	CR4_6
	CR4_7
	CR4_8
)

// Default pins of the radio control lines.
var (
	DefaultBusyPin  = sercom.Pin(sercom.FunctionC, sercom.PortA, 19)
	DefaultIRQPin   = sercom.Pin(sercom.FunctionC, sercom.PortA, 18)
	DefaultResetPin = sercom.Pin(sercom.FunctionC, sercom.PortA, 17)
)

// Config configures the radio and the SPI bus it is on.
type Config struct {
	// Name is the owner of the SPI unit, defaults to spi:<unit>.
	Name string
	SPI  hal.SPIPeripheral

	Busy  sercom.Pinout
	IRQ   sercom.Pinout
	Reset sercom.Pinout

	// Frequency in Hz.
	Frequency    uint32
	OutputPower  OutputPower
	RampTime     RampTime
	SpreadFactor SpreadFactor
	Bandwidth    Bandwidth
	CodingRate   CodingRate
	// LowDataRateOpt is recommended when a symbol lasts 16.38ms or more.
	LowDataRateOpt  bool
	PreambleSymbols uint16
	CRC             bool
	PublicNetwork   bool

	// RXSize is the capacity of the received data buffer.
	RXSize int
}

// DefaultRXSize is the default capacity of the received data buffer.
const DefaultRXSize = 256

// DefaultConfig returns the configuration of the reference board: 915MHz,
// 22dBm, SF7, 125kHz, 4/5, CRC on, private sync word.
func DefaultConfig() Config {
	return Config{
		SPI:             hal.DefaultSPI(hal.DefaultSPIUnit),
		Busy:            DefaultBusyPin,
		IRQ:             DefaultIRQPin,
		Reset:           DefaultResetPin,
		Frequency:       915000000,
		OutputPower:     DBm22,
		RampTime:        Ramp20us,
		SpreadFactor:    SF7,
		Bandwidth:       BW125,
		CodingRate:      CR4_5,
		PreambleSymbols: 8,
		CRC:             true,
		RXSize:          DefaultRXSize,
	}
}

// Validate checks the radio settings.
func (c *Config) Validate() error {
	if _, _, ok := c.OutputPower.paConfig(); !ok {
		return fmt.Errorf("output power %d: %w", c.OutputPower, ErrInvalidConfig)
	}
	if c.RampTime > Ramp3400us {
		return fmt.Errorf("ramp time %d: %w", c.RampTime, ErrInvalidConfig)
	}
	if c.SpreadFactor < SF5 || c.SpreadFactor > SF11 {
		return fmt.Errorf("spreading factor %d: %w", c.SpreadFactor, ErrInvalidConfig)
	}
	if c.Bandwidth < BW125 || c.Bandwidth > BW500 {
		return fmt.Errorf("bandwidth %d: %w", c.Bandwidth, ErrInvalidConfig)
	}
	if c.CodingRate < CR4_5 || c.CodingRate > CR4_8 {
		return fmt.Errorf("coding rate %d: %w", c.CodingRate, ErrInvalidConfig)
	}
	if c.Frequency == 0 {
		return fmt.Errorf("frequency 0: %w", ErrInvalidConfig)
	}
	return nil
}

// rfFrequency converts Hz to the synthesizer steps of SetRfFrequency.
func rfFrequency(hz uint32) uint32 {
	return uint32(uint64(hz) << 25 / 32000000)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
