package sercom

// Register addresses a SERCOM register.
type Register uint8

// SERCOM registers used by the HAL.
const (
	CTRLA Register = iota
	CTRLB
	BAUD
	INTENCLR
	INTENSET
	INTFLAG
	STATUS
	DATA
	numRegisters
)

// NumRegisters is the size of a register bank.
const NumRegisters = int(numRegisters)

var registerNames = [...]string{"CTRLA", "CTRLB", "BAUD", "INTENCLR", "INTENSET", "INTFLAG", "STATUS", "DATA"}

func (r Register) String() string {
	if int(r) < len(registerNames) {
		return registerNames[r]
	}
	return "REG?"
}

// INTENSET, INTENCLR and INTFLAG bits.
const (
	IntDRE   uint32 = 1 << 0
	IntTXC   uint32 = 1 << 1
	IntRXC   uint32 = 1 << 2
	IntRXS   uint32 = 1 << 3
	IntSSL   uint32 = 1 << 3
	IntCTSIC uint32 = 1 << 4
	IntRXBRK uint32 = 1 << 5
	IntERROR uint32 = 1 << 7
)

// STATUS bits.
const (
	StatusPERR   uint32 = 1 << 0
	StatusFERR   uint32 = 1 << 1
	StatusBUFOVF uint32 = 1 << 2
	StatusCTS    uint32 = 1 << 3
	StatusISF    uint32 = 1 << 4
	StatusCOLL   uint32 = 1 << 5

	// StatusErrors are the receive error bits.
	StatusErrors = StatusPERR | StatusFERR | StatusBUFOVF | StatusISF | StatusCOLL
)

// CTRLA fields.
const (
	CtrlAEnable     uint32 = 1 << 1
	CtrlAModeShift         = 2
	CtrlAModeMask   uint32 = 0x7 << CtrlAModeShift
	CtrlAIBON       uint32 = 1 << 8
	CtrlASamprShift        = 13
	CtrlATXPOShift         = 16
	CtrlADOPOShift         = 16
	CtrlARXPOShift         = 20
	CtrlADIPOShift         = 20
	CtrlASampaShift        = 22
	CtrlAFormShift         = 24
	CtrlACPHA       uint32 = 1 << 28
	CtrlACPOL       uint32 = 1 << 29
	CtrlADORD       uint32 = 1 << 30
)

// CTRLA.MODE values.
const (
	ModeUSARTInternalClock uint32 = 0x1
	ModeSPIClient          uint32 = 0x2
	ModeSPIHost            uint32 = 0x3
)

// CTRLA.FORM values.
const (
	FormFrame       uint32 = 0x0
	FormFrameParity uint32 = 0x1
)

// CTRLB fields.
const (
	CtrlBSBMODE  uint32 = 1 << 6
	CtrlBPLOADEN uint32 = 1 << 6
	CtrlBSSDE    uint32 = 1 << 9
	CtrlBMSSEN   uint32 = 1 << 13
	CtrlBPMODE   uint32 = 1 << 13
	CtrlBTXEN    uint32 = 1 << 16
	CtrlBRXEN    uint32 = 1 << 17
)

// Field extracts a multi-bit register field.
func Field(v uint32, shift, width uint) uint32 {
	return (v >> shift) & (1<<width - 1)
}
