package hal

import (
	"fmt"

	"github.com/robotalks/sercom.go/pkg/sercom"
)

// UART is the HAL of units in USART mode.
type UART struct {
	Common
}

// NewUART creates the UART HAL over dev.
func NewUART(dev sercom.Device) UART {
	return UART{Common{Dev: dev}}
}

// InitSercom routes pins, feeds the clock and enables the unit.
func (h UART) InitSercom(p *UARTPeripheral) error {
	if !p.Pads.IsValid() {
		return fmt.Errorf("%s: %w", p.Pads, ErrInvalidPads)
	}
	baud, err := UARTBaud(p.Baud)
	if err != nil {
		return err
	}
	h.Dev.ConfigPin(p.RX, sercom.PinPeripheral)
	h.Dev.ConfigPin(p.TX, sercom.PinPeripheral)
	p.Clock = sercom.EnableSercomClock(h.Dev, p.ID, sercom.ProtocolUART, p.Clock)

	ctrla := p.Pads.RXPO()<<sercom.CtrlARXPOShift |
		p.Pads.TXPO()<<sercom.CtrlATXPOShift |
		sercom.CtrlAIBON |
		sercom.ModeUSARTInternalClock<<sercom.CtrlAModeShift |
		p.Sampling.sampa()<<sercom.CtrlASampaShift |
		p.Sampling.sampr()<<sercom.CtrlASamprShift
	if p.Parity != ParityNone {
		ctrla |= sercom.FormFrameParity << sercom.CtrlAFormShift
	}
	if p.Endianness == LSB {
		ctrla |= sercom.CtrlADORD
	}
	ctrlb := sercom.CtrlBRXEN | sercom.CtrlBTXEN
	if p.Parity == ParityOdd {
		ctrlb |= sercom.CtrlBPMODE
	}
	if p.StopBits == TwoStopBits {
		ctrlb |= sercom.CtrlBSBMODE
	}
	h.Dev.Store(p.ID, sercom.CTRLA, ctrla)
	h.Dev.Store(p.ID, sercom.CTRLB, ctrlb)
	h.Dev.Store(p.ID, sercom.BAUD, baud)
	h.Dev.Store(p.ID, sercom.CTRLA, ctrla|sercom.CtrlAEnable)
	return nil
}

// EnableClearToSend arms the clear-to-send change interrupt.
func (h UART) EnableClearToSend(id sercom.ID, enable bool) {
	h.enable(id, sercom.IntCTSIC, enable)
}

// EnableRxStart arms the receive start interrupt.
func (h UART) EnableRxStart(id sercom.ID, enable bool) {
	h.enable(id, sercom.IntRXS, enable)
}

// ClearToSend reports and clears a clear-to-send change.
func (h UART) ClearToSend(id sercom.ID) bool {
	return h.takeFlag(id, sercom.IntCTSIC)
}

// ReceiveStart reports and clears a receive start.
func (h UART) ReceiveStart(id sercom.ID) bool {
	return h.takeFlag(id, sercom.IntRXS)
}

// CheckSyncError reports and clears an inconsistent sync field.
func (h UART) CheckSyncError(id sercom.ID) bool {
	return h.takeStatus(id, sercom.StatusISF)
}

// CheckFrameError reports and clears a framing error.
func (h UART) CheckFrameError(id sercom.ID) bool {
	return h.takeStatus(id, sercom.StatusFERR)
}

// CheckParityError reports and clears a parity error.
func (h UART) CheckParityError(id sercom.ID) bool {
	return h.takeStatus(id, sercom.StatusPERR)
}

// CheckCollision reports and clears a collision, re-enabling the
// transmitter the hardware turned off.
func (h UART) CheckCollision(id sercom.ID) bool {
	if !h.takeStatus(id, sercom.StatusCOLL) {
		return false
	}
	h.Dev.Store(id, sercom.INTFLAG, sercom.IntERROR|sercom.IntTXC)
	h.Dev.Store(id, sercom.CTRLB, h.Dev.Load(id, sercom.CTRLB)|sercom.CtrlBTXEN)
	return true
}
