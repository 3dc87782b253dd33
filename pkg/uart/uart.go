// Package uart provides interrupt driven UART controllers on SERCOM units.
package uart

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/hal"
	"github.com/robotalks/sercom.go/pkg/sercom"
	"github.com/robotalks/sercom.go/pkg/serial"
	"github.com/robotalks/sercom.go/pkg/telemetry"
)

// Error is the UART error state.
type Error uint8

// UART errors.
const (
	ENone Error = iota
	EOverflow
	EParity
	ESync
	EFrame
)

func (e Error) String() string {
	switch e {
	case ENone:
		return "none"
	case EOverflow:
		return "overflow"
	case EParity:
		return "parity"
	case ESync:
		return "sync"
	case EFrame:
		return "frame"
	}
	return fmt.Sprintf("Error(%d)", uint8(e))
}

type binding struct {
	hal.UART
}

// ClassifyError reports sync, overflow, frame and parity errors in that
// order of precedence.
func (b binding) ClassifyError(id sercom.ID) Error {
	switch {
	case b.CheckSyncError(id):
		return ESync
	case b.CheckOverflowError(id):
		return EOverflow
	case b.CheckFrameError(id):
		return EFrame
	case b.CheckParityError(id):
		return EParity
	}
	return ENone
}

func (binding) Overflow() Error {
	return EOverflow
}

// Options configures a Controller.
type Options struct {
	// Name is the owner recorded in the pool, defaults to uart:<unit>.
	Name   string
	TXSize int
	RXSize int
	// AnyUnit claims the first free unit routing the pins instead of the
	// unit of the peripheral.
	AnyUnit bool
}

// Controller is a UART on a claimed SERCOM unit.
type Controller struct {
	*serial.Controller[Error]

	Peripheral hal.UARTPeripheral

	hal  hal.UART
	pool *sercom.Pool
	name string
}

// New claims the unit, configures it and starts reception.
func New(dev sercom.Device, pool *sercom.Pool, p hal.UARTPeripheral, opts Options) (*Controller, error) {
	name := opts.Name
	if name == "" && !opts.AnyUnit {
		name = sercom.DefaultOwner(sercom.ProtocolUART, p.ID)
	}
	req := sercom.UARTRequest(name, p.TX, p.RX, p.Pads)
	if pool != nil {
		if opts.AnyUnit {
			id, err := pool.ClaimPins(req)
			if err != nil {
				return nil, err
			}
			p.ID = id
		} else {
			if !req.Routes(p.ID) {
				return nil, fmt.Errorf("%s on %s: %w", name, p.ID, sercom.ErrNoMatch)
			}
			if err := pool.Claim(p.ID, name); err != nil {
				return nil, err
			}
		}
	}
	if name == "" {
		name = sercom.DefaultOwner(sercom.ProtocolUART, p.ID)
	}
	h := hal.NewUART(dev)
	c := &Controller{
		Controller: serial.NewController[Error](p.ID, binding{h}, serial.Options{TXSize: opts.TXSize, RXSize: opts.RXSize}),
		Peripheral: p,
		hal:        h,
		pool:       pool,
		name:       name,
	}
	if err := c.Init(func() error { return h.InitSercom(&c.Peripheral) }); err != nil {
		c.release()
		return nil, err
	}
	glog.Infof("%s: %s baud %d pads %s", name, p.ID, p.Baud, p.Pads)
	return c, nil
}

// Name implements framework.Named.
func (c *Controller) Name() string {
	return c.name
}

// HAL returns the register layer of the controller.
func (c *Controller) HAL() hal.UART {
	return c.hal
}

// ResetRXBuffer discards received bytes and re-arms reception.
func (c *Controller) ResetRXBuffer() {
	c.ResetRX()
}

// ResetTXBuffer discards queued bytes.
func (c *Controller) ResetTXBuffer() {
	c.ResetTX()
}

// Snapshot returns the current status for telemetry.
func (c *Controller) Snapshot() *telemetry.Status {
	st := telemetry.Snapshot(c.Controller)
	st.Name, st.Protocol = c.name, "uart"
	return st
}

// Close disables the unit and releases the claim.
func (c *Controller) Close() error {
	c.Deinit()
	return c.release()
}

func (c *Controller) release() error {
	if c.pool == nil {
		return nil
	}
	return c.pool.Release(c.ID(), c.name)
}
