// Package spi provides interrupt driven SPI controllers on SERCOM units.
// MOSI is the transmit direction and MISO the receive direction.
package spi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/hal"
	"github.com/robotalks/sercom.go/pkg/sercom"
	"github.com/robotalks/sercom.go/pkg/serial"
	"github.com/robotalks/sercom.go/pkg/telemetry"
)

// Error is the SPI error state.
type Error uint8

// SPI errors.
const (
	ENone Error = iota
	EOverflow
)

func (e Error) String() string {
	switch e {
	case ENone:
		return "none"
	case EOverflow:
		return "overflow"
	}
	return fmt.Sprintf("Error(%d)", uint8(e))
}

type binding struct {
	hal.SPI
}

func (b binding) ClassifyError(id sercom.ID) Error {
	if b.CheckOverflowError(id) {
		return EOverflow
	}
	return ENone
}

func (binding) Overflow() Error {
	return EOverflow
}

// PollInterval is how often a transfer re-checks the buffers while
// waiting.
var PollInterval = time.Millisecond

// Options configures a Controller.
type Options struct {
	// Name is the owner recorded in the pool, defaults to spi:<unit>.
	Name   string
	TXSize int
	RXSize int
	// AnyUnit claims the first free unit routing the pins instead of the
	// unit of the peripheral.
	AnyUnit bool
}

// Controller is a SPI bus on a claimed SERCOM unit.
type Controller struct {
	*serial.Controller[Error]

	Peripheral hal.SPIPeripheral

	hal  hal.SPI
	pool *sercom.Pool
	name string

	lock sync.Mutex
	ssl  sercom.Pinout
}

// New claims the unit, configures it and starts reception.
func New(dev sercom.Device, pool *sercom.Pool, p hal.SPIPeripheral, opts Options) (*Controller, error) {
	name := opts.Name
	if name == "" && !opts.AnyUnit {
		name = sercom.DefaultOwner(sercom.ProtocolSPI, p.ID)
	}
	req := sercom.SPIRequest(name, p.MOSI, p.MISO, p.SCK, p.Pads)
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
		name = sercom.DefaultOwner(sercom.ProtocolSPI, p.ID)
	}
	h := hal.NewSPI(dev)
	c := &Controller{
		Controller: serial.NewController[Error](p.ID, binding{h}, serial.Options{TXSize: opts.TXSize, RXSize: opts.RXSize}),
		Peripheral: p,
		hal:        h,
		pool:       pool,
		name:       name,
		ssl:        p.SSL,
	}
	if err := c.Init(func() error { return h.InitSercom(&c.Peripheral) }); err != nil {
		c.release()
		return nil, err
	}
	glog.Infof("%s: %s baud %d mode %d pads %s client %v", name, p.ID, p.Baud, p.ClockMode, p.Pads, p.Client)
	return c, nil
}

// Name implements framework.Named.
func (c *Controller) Name() string {
	return c.name
}

// HAL returns the register layer of the controller.
func (c *Controller) HAL() hal.SPI {
	return c.hal
}

// ResetMISOBuffer discards received bytes and re-arms reception.
func (c *Controller) ResetMISOBuffer() {
	c.ResetRX()
}

// ResetMOSIBuffer discards queued bytes.
func (c *Controller) ResetMOSIBuffer() {
	c.ResetTX()
}

// ClearMISOInterrupt forgets the last receive cause.
func (c *Controller) ClearMISOInterrupt() {
	c.ClearRXInterrupt()
}

// ClearMOSIInterrupt forgets the last transmit cause.
func (c *Controller) ClearMOSIInterrupt() {
	c.ClearTXInterrupt()
}

// SSL returns the client select line in use.
func (c *Controller) SSL() sercom.Pinout {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ssl
}

// SSHigh releases the client.
func (c *Controller) SSHigh() {
	c.hal.Dev.SetPin(c.SSL(), true)
}

// SSLow selects the client.
func (c *Controller) SSLow() {
	c.hal.Dev.SetPin(c.SSL(), false)
}

// ChangeSSL switches to another client select line, idling it high.
func (c *Controller) ChangeSSL(p sercom.Pinout) {
	c.lock.Lock()
	c.ssl = p
	c.lock.Unlock()
	c.hal.Dev.ConfigPin(p, sercom.PinOutput)
	c.hal.Dev.SetPin(p, true)
}

func (c *Controller) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.Notify():
	case <-time.After(PollInterval):
	}
	return nil
}

func (c *Controller) send(ctx context.Context, b byte) error {
	for !c.Transmit(b) {
		if !c.Status().On {
			return serial.ErrNotOn
		}
		if err := c.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// HostProcedure runs a host transaction: it selects the client, writes
// out byte by byte waiting for each byte clocked back, then clocks
// numRead dummy bytes and releases the client. The byte received with
// the last written byte is returned as status. Bytes read by the dummy
// clocks stay in the MISO buffer.
func (c *Controller) HostProcedure(ctx context.Context, out []byte, numRead int) (status byte, err error) {
	c.SSLow()
	defer func() {
		c.SSHigh()
		c.ClearMOSIInterrupt()
		c.ClearMISOInterrupt()
	}()
	for _, b := range out {
		if err = c.send(ctx, b); err != nil {
			return
		}
		for {
			v, ok := c.Receive()
			if ok {
				status = v
				break
			}
			if err = c.wait(ctx); err != nil {
				return
			}
		}
	}
	for i := 0; i < numRead; i++ {
		c.ClearMISOInterrupt()
		if err = c.send(ctx, 0); err != nil {
			return
		}
		for c.Status().RX == serial.RXNone {
			if err = c.wait(ctx); err != nil {
				return
			}
		}
		if c.Status().RX == serial.RXComplete {
			glog.Warningf("%s: MISO buffer full after %d reads", c.name, i+1)
			break
		}
	}
	return
}

// Transfer runs HostProcedure and returns the bytes read.
func (c *Controller) Transfer(ctx context.Context, out []byte, numRead int) (byte, []byte, error) {
	status, err := c.HostProcedure(ctx, out, numRead)
	if err != nil {
		return status, nil, err
	}
	in := make([]byte, numRead)
	n := c.ReceivePacket(in)
	return status, in[:n], nil
}

// Snapshot returns the current status for telemetry.
func (c *Controller) Snapshot() *telemetry.Status {
	st := telemetry.Snapshot(c.Controller)
	st.Name, st.Protocol = c.name, "spi"
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
