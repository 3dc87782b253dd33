package hal

import (
	"fmt"

	"github.com/robotalks/sercom.go/pkg/sercom"
)

// SPI is the HAL of units in SPI mode.
type SPI struct {
	Common
}

// NewSPI creates the SPI HAL over dev.
func NewSPI(dev sercom.Device) SPI {
	return SPI{Common{Dev: dev}}
}

// InitSercom routes pins, feeds the clock and enables the unit. In host
// mode the client select line is a GPIO output idling high.
func (h SPI) InitSercom(p *SPIPeripheral) error {
	if !p.Pads.IsValid() {
		return fmt.Errorf("%s: %w", p.Pads, ErrInvalidPads)
	}
	var baud uint32
	if !p.Client {
		var err error
		if baud, err = SPIBaud(p.Baud); err != nil {
			return err
		}
	}
	h.Dev.ConfigPin(p.MISO, sercom.PinPeripheral)
	h.Dev.ConfigPin(p.MOSI, sercom.PinPeripheral)
	h.Dev.ConfigPin(p.SCK, sercom.PinPeripheral)
	mode := sercom.ModeSPIHost
	if p.Client {
		mode = sercom.ModeSPIClient
		h.Dev.ConfigPin(p.SSL, sercom.PinPeripheral)
	} else {
		h.Dev.ConfigPin(p.SSL, sercom.PinOutput)
		h.Dev.SetPin(p.SSL, true)
	}
	p.Clock = sercom.EnableSercomClock(h.Dev, p.ID, sercom.ProtocolSPI, p.Clock)

	ctrla := p.Pads.DIPO()<<sercom.CtrlADIPOShift |
		p.Pads.DOPO()<<sercom.CtrlADOPOShift |
		sercom.CtrlAIBON |
		mode<<sercom.CtrlAModeShift
	if p.ClockMode.CPOL() {
		ctrla |= sercom.CtrlACPOL
	}
	if p.ClockMode.CPHA() {
		ctrla |= sercom.CtrlACPHA
	}
	if p.Endianness == LSB {
		ctrla |= sercom.CtrlADORD
	}
	ctrlb := sercom.CtrlBRXEN
	if p.Client {
		ctrlb |= sercom.CtrlBPLOADEN | sercom.CtrlBSSDE
	} else {
		h.Dev.Store(p.ID, sercom.BAUD, baud)
	}
	h.Dev.Store(p.ID, sercom.CTRLA, ctrla)
	h.Dev.Store(p.ID, sercom.CTRLB, ctrlb)
	h.Dev.Store(p.ID, sercom.CTRLA, ctrla|sercom.CtrlAEnable)
	return nil
}

// EnableSPISelectLow arms the client select low interrupt.
func (h SPI) EnableSPISelectLow(id sercom.ID, enable bool) {
	h.enable(id, sercom.IntSSL, enable)
}

// SPISelectLow reports and clears a client select low.
func (h SPI) SPISelectLow(id sercom.ID) bool {
	return h.takeFlag(id, sercom.IntSSL)
}

// IsHost reports whether the unit runs as SPI host.
func (h SPI) IsHost(id sercom.ID) bool {
	return sercom.Field(h.Dev.Load(id, sercom.CTRLA), sercom.CtrlAModeShift, 3) == sercom.ModeSPIHost
}
