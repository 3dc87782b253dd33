// Package sim simulates SERCOM units behind the sercom.Device interface.
package sim

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/sercom"
)

// MaxChain bounds back-to-back handler runs of one interrupt service.
const MaxChain = 1 << 16

// TxLogSize is the number of transmitted bytes kept per unit.
const TxLogSize = 4096

// Responder produces the byte clocked in while a SPI host shifts out b.
type Responder func(b byte) byte

type pinState struct {
	mode  sercom.PinMode
	level bool
	watch func(high bool)
}

type unit struct {
	regs    [sercom.NumRegisters]uint32
	rxData  uint32
	clock   sercom.ClockConfig
	clockOn bool
	handler sercom.Handler

	onTransmit func(b byte)
	responder  Responder
	txLog      []byte
	// line holds bytes on the wire not yet latched into DATA.
	line []byte

	irq     sync.Mutex
	pending atomic.Bool
}

// Device is a simulated set of SERCOM units.
type Device struct {
	lock  sync.Mutex
	units [sercom.NumUnits]unit
	pins  map[sercom.Pinout]pinState
}

// New creates a Device with all units reset.
func New() *Device {
	return &Device{pins: make(map[sercom.Pinout]pinState)}
}

func (d *Device) unit(id sercom.ID) *unit {
	if !id.IsValid() {
		panic("sim: invalid " + id.String())
	}
	return &d.units[id]
}

// Load implements sercom.Device.
func (d *Device) Load(id sercom.ID, reg sercom.Register) uint32 {
	u := d.unit(id)
	d.lock.Lock()
	defer d.lock.Unlock()
	switch reg {
	case sercom.INTENCLR, sercom.INTENSET:
		return u.regs[sercom.INTENSET]
	case sercom.DATA:
		u.regs[sercom.INTFLAG] &^= sercom.IntRXC
		v := u.rxData
		latch(u)
		return v
	}
	return u.regs[reg]
}

// Store implements sercom.Device.
func (d *Device) Store(id sercom.ID, reg sercom.Register, v uint32) {
	u := d.unit(id)
	d.lock.Lock()
	switch reg {
	case sercom.INTENSET:
		u.regs[sercom.INTENSET] |= v
	case sercom.INTENCLR:
		u.regs[sercom.INTENSET] &^= v
	case sercom.INTFLAG:
		// DRE and RXC are cleared by DATA access only.
		u.regs[sercom.INTFLAG] &^= v &^ (sercom.IntDRE | sercom.IntRXC)
	case sercom.STATUS:
		u.regs[sercom.STATUS] &^= v
	case sercom.CTRLA:
		was := u.regs[sercom.CTRLA] & sercom.CtrlAEnable
		u.regs[sercom.CTRLA] = v
		switch now := v & sercom.CtrlAEnable; {
		case now != 0 && was == 0:
			u.regs[sercom.INTFLAG] = sercom.IntDRE
			u.regs[sercom.STATUS] = 0
		case now == 0:
			u.regs[sercom.INTFLAG] = 0
			u.line = nil
		}
	case sercom.DATA:
		d.lock.Unlock()
		d.transmit(id, byte(v))
		d.service(id)
		return
	default:
		u.regs[reg] = v
	}
	d.lock.Unlock()
	d.service(id)
}

func (d *Device) transmit(id sercom.ID, b byte) {
	u := &d.units[id]
	d.lock.Lock()
	if u.regs[sercom.CTRLA]&sercom.CtrlAEnable == 0 {
		d.lock.Unlock()
		glog.V(3).Infof("sim: %s disabled, drop TX %02x", id, b)
		return
	}
	if len(u.txLog) >= TxLogSize {
		u.txLog = u.txLog[1:]
	}
	u.txLog = append(u.txLog, b)
	u.regs[sercom.INTFLAG] |= sercom.IntDRE | sercom.IntTXC
	spiHost := sercom.Field(u.regs[sercom.CTRLA], sercom.CtrlAModeShift, 3) == sercom.ModeSPIHost
	wire, responder := u.onTransmit, u.responder
	d.lock.Unlock()

	glog.V(3).Infof("sim: %s TX %02x", id, b)
	if wire != nil {
		wire(b)
	}
	if spiHost {
		in := byte(0xff)
		if responder != nil {
			in = responder(b)
		}
		d.InjectRX(id, in)
	}
}

// InjectRX latches a received byte. A byte still unread is overwritten
// and reported as a buffer overflow.
func (d *Device) InjectRX(id sercom.ID, b byte) {
	u := d.unit(id)
	d.lock.Lock()
	if u.regs[sercom.CTRLA]&sercom.CtrlAEnable == 0 {
		d.lock.Unlock()
		glog.V(3).Infof("sim: %s disabled, drop RX %02x", id, b)
		return
	}
	if u.regs[sercom.INTFLAG]&sercom.IntRXC != 0 {
		u.regs[sercom.STATUS] |= sercom.StatusBUFOVF
		u.regs[sercom.INTFLAG] |= sercom.IntERROR
	}
	u.rxData = uint32(b)
	u.regs[sercom.INTFLAG] |= sercom.IntRXC
	d.lock.Unlock()
	glog.V(3).Infof("sim: %s RX %02x", id, b)
	d.service(id)
}

// Feed queues b on the receive line of a unit. Queued bytes are latched
// into DATA one at a time, the next once DATA has been read, so a paced
// sender never overruns the receiver.
func (d *Device) Feed(id sercom.ID, b byte) {
	u := d.unit(id)
	d.lock.Lock()
	if u.regs[sercom.CTRLA]&sercom.CtrlAEnable == 0 {
		d.lock.Unlock()
		glog.V(3).Infof("sim: %s disabled, drop RX %02x", id, b)
		return
	}
	u.line = append(u.line, b)
	latch(u)
	d.lock.Unlock()
	d.service(id)
}

// Pending returns the number of bytes queued on the receive line.
func (d *Device) Pending(id sercom.ID) int {
	u := d.unit(id)
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(u.line)
}

func latch(u *unit) {
	if len(u.line) == 0 || u.regs[sercom.INTFLAG]&sercom.IntRXC != 0 {
		return
	}
	u.rxData = uint32(u.line[0])
	u.line = u.line[1:]
	u.regs[sercom.INTFLAG] |= sercom.IntRXC
}

// InjectError raises receive error bits in STATUS.
func (d *Device) InjectError(id sercom.ID, status uint32) {
	u := d.unit(id)
	d.lock.Lock()
	u.regs[sercom.STATUS] |= status & sercom.StatusErrors
	u.regs[sercom.INTFLAG] |= sercom.IntERROR
	d.lock.Unlock()
	d.service(id)
}

// Raise sets interrupt flags directly.
func (d *Device) Raise(id sercom.ID, flags uint32) {
	u := d.unit(id)
	d.lock.Lock()
	u.regs[sercom.INTFLAG] |= flags
	d.lock.Unlock()
	d.service(id)
}

// Attach implements sercom.Device.
func (d *Device) Attach(id sercom.ID, h sercom.Handler) {
	u := d.unit(id)
	d.lock.Lock()
	u.handler = h
	d.lock.Unlock()
	d.service(id)
}

// MaskIRQ implements sercom.Device.
func (d *Device) MaskIRQ(id sercom.ID) func() {
	u := d.unit(id)
	u.irq.Lock()
	return func() {
		u.irq.Unlock()
		d.service(id)
	}
}

// service runs the handler while an enabled flag is raised. Work raised
// while the line is masked or the handler is running is picked up by the
// current holder of the line.
func (d *Device) service(id sercom.ID) {
	u := &d.units[id]
	u.pending.Store(true)
	for u.pending.Load() {
		if !u.irq.TryLock() {
			return
		}
		u.pending.Store(false)
		d.runHandler(id)
		u.irq.Unlock()
	}
}

func (d *Device) runHandler(id sercom.ID) {
	u := &d.units[id]
	for n := 0; n < MaxChain; n++ {
		d.lock.Lock()
		h := u.handler
		active := u.regs[sercom.INTFLAG]&u.regs[sercom.INTENSET] != 0
		d.lock.Unlock()
		if h == nil || !active {
			return
		}
		h()
	}
	glog.Warningf("sim: %s interrupt storm, flags %02x", id, d.Load(id, sercom.INTFLAG))
}

// ConfigPin implements sercom.Device.
func (d *Device) ConfigPin(p sercom.Pinout, mode sercom.PinMode) {
	d.lock.Lock()
	st := d.pins[p]
	st.mode = mode
	d.pins[p] = st
	d.lock.Unlock()
}

// SetPin implements sercom.Device.
func (d *Device) SetPin(p sercom.Pinout, high bool) {
	d.lock.Lock()
	st := d.pins[p]
	changed := st.level != high
	st.level = high
	d.pins[p] = st
	d.lock.Unlock()
	if changed && st.watch != nil {
		st.watch(high)
	}
}

// WatchPin calls fn on every level change of p. It stands for the peer
// wired to the pin, e.g. a SPI client seeing its select line.
func (d *Device) WatchPin(p sercom.Pinout, fn func(high bool)) {
	d.lock.Lock()
	st := d.pins[p]
	st.watch = fn
	d.pins[p] = st
	d.lock.Unlock()
}

// PinState implements sercom.Device.
func (d *Device) PinState(p sercom.Pinout) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.pins[p].level
}

// PinMode returns the configured mode of a pin.
func (d *Device) PinMode(p sercom.Pinout) (sercom.PinMode, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	st, ok := d.pins[p]
	return st.mode, ok
}

// EnableSercomClock implements sercom.Device.
func (d *Device) EnableSercomClock(id sercom.ID, clk sercom.ClockConfig) {
	u := d.unit(id)
	d.lock.Lock()
	u.clock, u.clockOn = clk, true
	d.lock.Unlock()
}

// DisableSercomClock implements sercom.Device.
func (d *Device) DisableSercomClock(id sercom.ID) {
	u := d.unit(id)
	d.lock.Lock()
	u.clockOn = false
	d.lock.Unlock()
}

// Clock returns the clock of a unit and whether it runs.
func (d *Device) Clock(id sercom.ID) (sercom.ClockConfig, bool) {
	u := d.unit(id)
	d.lock.Lock()
	defer d.lock.Unlock()
	return u.clock, u.clockOn
}

// Registers returns a snapshot of the register bank of a unit.
func (d *Device) Registers(id sercom.ID) [sercom.NumRegisters]uint32 {
	u := d.unit(id)
	d.lock.Lock()
	defer d.lock.Unlock()
	return u.regs
}

// Transmitted drains the bytes written to DATA of a unit.
func (d *Device) Transmitted(id sercom.ID) []byte {
	u := d.unit(id)
	d.lock.Lock()
	defer d.lock.Unlock()
	out := u.txLog
	u.txLog = nil
	return out
}

// OnTransmit sets the wire receiving every byte a unit transmits.
func (d *Device) OnTransmit(id sercom.ID, fn func(b byte)) {
	u := d.unit(id)
	d.lock.Lock()
	u.onTransmit = fn
	d.lock.Unlock()
}

// SetResponder sets the SPI peer answering a host transfer.
func (d *Device) SetResponder(id sercom.ID, r Responder) {
	u := d.unit(id)
	d.lock.Lock()
	u.responder = r
	d.lock.Unlock()
}

// Connect cross-wires TX and RX of two units.
func (d *Device) Connect(a, b sercom.ID) {
	d.OnTransmit(a, func(v byte) { d.Feed(b, v) })
	d.OnTransmit(b, func(v byte) { d.Feed(a, v) })
}

// Loopback wires TX of a unit to its own RX.
func (d *Device) Loopback(id sercom.ID) {
	d.OnTransmit(id, func(v byte) { d.Feed(id, v) })
}
