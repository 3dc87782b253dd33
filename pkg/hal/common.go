// Package hal maps peripheral-neutral serial operations onto SERCOM
// registers. The HAL holds no state: every call addresses a unit by id
// through the register access Device.
package hal

import (
	"github.com/robotalks/sercom.go/pkg/sercom"
)

// Common holds the operations UART and SPI units share.
type Common struct {
	Dev sercom.Device
}

func (c Common) enable(id sercom.ID, bits uint32, enable bool) {
	if enable {
		c.Dev.Store(id, sercom.INTENSET, bits)
	} else {
		c.Dev.Store(id, sercom.INTENCLR, bits)
	}
}

// raised reports an enabled interrupt flag.
func (c Common) raised(id sercom.ID, bit uint32) bool {
	return c.Dev.Load(id, sercom.INTFLAG)&c.Dev.Load(id, sercom.INTENSET)&bit != 0
}

// takeFlag reports and clears an enabled interrupt flag.
func (c Common) takeFlag(id sercom.ID, bit uint32) bool {
	if !c.raised(id, bit) {
		return false
	}
	c.Dev.Store(id, sercom.INTFLAG, bit)
	return true
}

// takeStatus reports and clears a STATUS bit.
func (c Common) takeStatus(id sercom.ID, bit uint32) bool {
	if c.Dev.Load(id, sercom.STATUS)&bit == 0 {
		return false
	}
	c.Dev.Store(id, sercom.STATUS, bit)
	return true
}

// EnableRxFull arms the receive complete interrupt.
func (c Common) EnableRxFull(id sercom.ID, enable bool) {
	c.enable(id, sercom.IntRXC, enable)
}

// EnableTxEmpty arms the data register empty interrupt.
func (c Common) EnableTxEmpty(id sercom.ID, enable bool) {
	c.enable(id, sercom.IntDRE, enable)
}

// EnableTxComplete arms the transmit complete interrupt.
func (c Common) EnableTxComplete(id sercom.ID, enable bool) {
	c.enable(id, sercom.IntTXC, enable)
}

// EnableSercomErrors arms the error interrupt.
func (c Common) EnableSercomErrors(id sercom.ID, enable bool) {
	c.enable(id, sercom.IntERROR, enable)
}

// Enabled reports whether all interrupt bits are armed.
func (c Common) Enabled(id sercom.ID, bits uint32) bool {
	return c.Dev.Load(id, sercom.INTENSET)&bits == bits
}

// ReadyToTransmit reports an empty data register with TxEmpty armed.
func (c Common) ReadyToTransmit(id sercom.ID) bool {
	return c.raised(id, sercom.IntDRE)
}

// ReadyToReceive reports a received byte with RxFull armed.
func (c Common) ReadyToReceive(id sercom.ID) bool {
	return c.raised(id, sercom.IntRXC)
}

// TransmitComplete reports and clears the transmit complete flag.
func (c Common) TransmitComplete(id sercom.ID) bool {
	return c.takeFlag(id, sercom.IntTXC)
}

// SercomHasErrors reports and clears the error flag.
func (c Common) SercomHasErrors(id sercom.ID) bool {
	return c.takeFlag(id, sercom.IntERROR)
}

// CheckOverflowError reports and clears a buffer overflow.
func (c Common) CheckOverflowError(id sercom.ID) bool {
	return c.takeStatus(id, sercom.StatusBUFOVF)
}

// ClearErrors clears all error bits and the error flag.
func (c Common) ClearErrors(id sercom.ID) {
	c.Dev.Store(id, sercom.STATUS, sercom.StatusErrors)
	c.Dev.Store(id, sercom.INTFLAG, sercom.IntERROR)
}

// GetSercomRX reads the data register.
func (c Common) GetSercomRX(id sercom.ID) byte {
	return byte(c.Dev.Load(id, sercom.DATA))
}

// SetSercomTX writes the data register.
func (c Common) SetSercomTX(id sercom.ID, b byte) {
	c.Dev.Store(id, sercom.DATA, uint32(b))
}

// Endian returns the configured bit order.
func (c Common) Endian(id sercom.ID) Endianness {
	if c.Dev.Load(id, sercom.CTRLA)&sercom.CtrlADORD != 0 {
		return LSB
	}
	return MSB
}

// IsEnabled reports whether the unit is enabled.
func (c Common) IsEnabled(id sercom.ID) bool {
	return c.Dev.Load(id, sercom.CTRLA)&sercom.CtrlAEnable != 0
}

// MaskIRQ enters the critical section of a unit.
func (c Common) MaskIRQ(id sercom.ID) func() {
	return c.Dev.MaskIRQ(id)
}

// Attach binds the interrupt handler of a unit.
func (c Common) Attach(id sercom.ID, h sercom.Handler) {
	c.Dev.Attach(id, h)
}

// DeinitSercom disables a unit and its interrupts.
func (c Common) DeinitSercom(id sercom.ID) {
	c.Dev.Store(id, sercom.INTENCLR, 0xff)
	c.Dev.Store(id, sercom.STATUS, 0xffff)
	c.Dev.Store(id, sercom.CTRLB, 0)
	c.Dev.Store(id, sercom.CTRLA, c.Dev.Load(id, sercom.CTRLA)&^sercom.CtrlAEnable)
	c.Dev.DisableSercomClock(id)
}
