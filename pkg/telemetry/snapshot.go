package telemetry

import (
	"github.com/robotalks/sercom.go/pkg/serial"
)

// Snapshot captures the status and buffer states of a controller.
// Board, Name, Protocol and Timestamp are left to the caller.
func Snapshot[E serial.ErrorCode](c *serial.Controller[E]) *Status {
	st, bufs := c.Status(), c.BufferStates()
	return &Status{
		Unit:     uint32(c.ID()),
		On:       st.On,
		Error:    st.Error.String(),
		Rx:       st.RX.String(),
		Tx:       st.TX.String(),
		RxBuffer: bufs.RX.String(),
		TxBuffer: bufs.TX.String(),
		RxUsed:   uint32(c.RXAvailable()),
		TxFree:   uint32(c.TXFree()),
	}
}
