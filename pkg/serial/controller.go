// Package serial implements the interrupt driven buffering state machine
// shared by the UART and SPI controllers.
package serial

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/buffer"
	"github.com/robotalks/sercom.go/pkg/framework"
	"github.com/robotalks/sercom.go/pkg/sercom"
)

// HAL is the part of the register layer the state machine drives.
type HAL interface {
	EnableRxFull(id sercom.ID, enable bool)
	EnableTxEmpty(id sercom.ID, enable bool)
	EnableSercomErrors(id sercom.ID, enable bool)
	ReadyToReceive(id sercom.ID) bool
	ReadyToTransmit(id sercom.ID) bool
	SercomHasErrors(id sercom.ID) bool
	GetSercomRX(id sercom.ID) byte
	SetSercomTX(id sercom.ID, b byte)
	ClearErrors(id sercom.ID)
	DeinitSercom(id sercom.ID)
	MaskIRQ(id sercom.ID) func()
	Attach(id sercom.ID, h sercom.Handler)
}

// Binding adds the protocol error classification to the HAL.
type Binding[E ErrorCode] interface {
	HAL
	// ClassifyError reads and clears the hardware error bits and returns
	// the most significant error.
	ClassifyError(id sercom.ID) E
	// Overflow is the error recorded when the RX buffer is full.
	Overflow() E
}

// Options configures buffer sizes.
type Options struct {
	TXSize int
	RXSize int
}

// Default buffer sizes.
const (
	DefaultTXSize = 64
	DefaultRXSize = 64
)

func (o Options) withDefaults() Options {
	if o.TXSize <= 0 {
		o.TXSize = DefaultTXSize
	}
	if o.RXSize <= 0 {
		o.RXSize = DefaultRXSize
	}
	return o
}

// Controller moves bytes between the buffers and a SERCOM unit.
//
// The interrupt handler is the only producer of RX and the only consumer
// of TX. Foreground calls own the other ends. Status is written by the
// handler and read by the application.
type Controller[E ErrorCode] struct {
	id      sercom.ID
	binding Binding[E]

	rx *buffer.Serial
	tx *buffer.Serial

	status   atomic.Uint32
	errorIRQ atomic.Bool
	echo     atomic.Bool

	taskLock sync.Mutex
	task     func(*Controller[E])
	notifyCh chan struct{}
}

// NewController creates a controller for unit id. The unit is not
// touched until Init.
func NewController[E ErrorCode](id sercom.ID, b Binding[E], opts Options) *Controller[E] {
	opts = opts.withDefaults()
	c := &Controller[E]{
		id:       id,
		binding:  b,
		notifyCh: make(chan struct{}, 1),
	}
	c.rx = buffer.NewSerial(opts.RXSize, c.guard)
	c.tx = buffer.NewSerial(opts.TXSize, c.guard)
	return c
}

func (c *Controller[E]) guard() func() {
	return c.binding.MaskIRQ(c.id)
}

// ID returns the unit.
func (c *Controller[E]) ID() sercom.ID {
	return c.id
}

// Init configures the hardware with initHW, attaches the handler and
// arms reception. It does nothing when already on.
func (c *Controller[E]) Init(initHW func() error) error {
	if c.Status().On {
		return nil
	}
	if initHW != nil {
		if err := initHW(); err != nil {
			return err
		}
	}
	c.ResetTX()
	c.ResetRX()
	c.binding.EnableSercomErrors(c.id, c.errorIRQ.Load())
	c.status.Store(Status[E]{On: true}.pack())
	c.binding.Attach(c.id, c.ISR)
	glog.V(4).Infof("%s: controller on", c.id)
	return nil
}

// Deinit detaches and disables the unit and discards buffered bytes.
func (c *Controller[E]) Deinit() {
	if !c.Status().On {
		return
	}
	c.binding.Attach(c.id, nil)
	c.binding.EnableTxEmpty(c.id, false)
	c.binding.EnableRxFull(c.id, false)
	c.binding.DeinitSercom(c.id)
	c.rx.Reset()
	c.tx.Reset()
	c.status.Store(0)
	glog.V(4).Infof("%s: controller off", c.id)
}

func (c *Controller[E]) update(fn func(*Status[E])) {
	for {
		old := c.status.Load()
		s := unpack[E](old)
		fn(&s)
		if c.status.CompareAndSwap(old, s.pack()) {
			return
		}
	}
}

// ISR services one interrupt: transmit first, then receive.
func (c *Controller[E]) ISR() {
	c.ExecuteTX(c.classifyTX())
	c.ExecuteRX(c.classifyRX())
}

func (c *Controller[E]) classifyTX() TXIRQState {
	if !c.binding.ReadyToTransmit(c.id) {
		return TXNone
	}
	if c.tx.Empty() {
		return TXComplete
	}
	return TXSuccess
}

func (c *Controller[E]) classifyRX() RXIRQState {
	if c.errorIRQ.Load() && c.binding.SercomHasErrors(c.id) {
		return RXError
	}
	if !c.binding.ReadyToReceive(c.id) {
		return RXNone
	}
	if c.rx.Full() {
		return RXComplete
	}
	return RXSuccess
}

// ExecuteTX runs the action bound to a transmit cause. Interrupt context.
func (c *Controller[E]) ExecuteTX(s TXIRQState) {
	switch s {
	case TXNone:
		return
	case TXComplete:
		c.binding.EnableTxEmpty(c.id, false)
	case TXSuccess:
		if b, ok := c.tx.Ring.Read(); ok {
			c.binding.SetSercomTX(c.id, b)
		}
	}
	c.update(func(st *Status[E]) { st.TX = s })
}

// ExecuteRX runs the action bound to a receive cause. Interrupt context.
func (c *Controller[E]) ExecuteRX(s RXIRQState) {
	switch s {
	case RXNone:
		return
	case RXError:
		if e := c.binding.ClassifyError(c.id); e != 0 {
			c.update(func(st *Status[E]) { st.Error = e })
			if glog.V(3) {
				glog.Infof("%s: rx error %s", c.id, e)
			}
		}
	case RXComplete:
		c.rx.Ring.Write(c.binding.GetSercomRX(c.id))
		c.binding.EnableRxFull(c.id, false)
		overflow := c.binding.Overflow()
		c.update(func(st *Status[E]) { st.Error = overflow })
	case RXSuccess:
		b := c.binding.GetSercomRX(c.id)
		c.rx.Ring.Write(b)
		if c.echo.Load() {
			if c.tx.Ring.Write(b) {
				c.binding.EnableTxEmpty(c.id, true)
			} else {
				overflow := c.binding.Overflow()
				c.update(func(st *Status[E]) { st.Error = overflow })
			}
		}
		select {
		case c.notifyCh <- struct{}{}:
		default:
		}
	}
	c.update(func(st *Status[E]) { st.RX = s })
}

// Transmit queues one byte.
func (c *Controller[E]) Transmit(b byte) bool {
	return c.TransmitPacket([]byte{b})
}

// TransmitPacket queues all of data or nothing.
func (c *Controller[E]) TransmitPacket(data []byte) bool {
	if !c.Status().On || len(data) == 0 {
		return false
	}
	if !c.tx.WritePacket(data) {
		return false
	}
	c.binding.EnableTxEmpty(c.id, true)
	return true
}

// TransmitString queues all of s or nothing.
func (c *Controller[E]) TransmitString(s string) bool {
	return c.TransmitPacket([]byte(s))
}

// TransmitInt queues the decimal form of v.
func (c *Controller[E]) TransmitInt(v uint32) bool {
	var digits [10]byte
	return c.TransmitPacket(buffer.AppendUint(digits[:0], v))
}

func (c *Controller[E]) rearmRX() {
	if c.Status().On {
		c.binding.EnableRxFull(c.id, true)
	}
}

// Receive takes one byte.
func (c *Controller[E]) Receive() (byte, bool) {
	b, ok := c.rx.Get()
	if ok {
		c.rearmRX()
	}
	return b, ok
}

// ReceivePacket takes up to len(p) bytes.
func (c *Controller[E]) ReceivePacket(p []byte) int {
	n := 0
	for n < len(p) {
		b, ok := c.rx.Get()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	if n > 0 {
		c.rearmRX()
	}
	return n
}

// ReceiveString drains RX and reports whether s was received ending
// shift bytes before the last byte. With movePointer the trailing shift
// bytes can be read again.
func (c *Controller[E]) ReceiveString(s string, shift int, movePointer bool) bool {
	ok := c.rx.MatchSuffix(s, shift, movePointer)
	c.rearmRX()
	return ok
}

// ReceiveInt takes leading ASCII digits.
func (c *Controller[E]) ReceiveInt() (uint32, bool) {
	v, ok := c.rx.ParseUint()
	c.rearmRX()
	return v, ok
}

// ReceiveParam looks for prefix followed by digits and the optional
// delimiter.
func (c *Controller[E]) ReceiveParam(prefix string, delimiter byte, maxDigits int) (uint32, bool) {
	v, ok := c.rx.Param(prefix, delimiter, maxDigits)
	c.rearmRX()
	return v, ok
}

// EchoRx makes every received byte transmitted back. A byte that does
// not fit in TX is not echoed and records the overflow error.
func (c *Controller[E]) EchoRx(enable bool) {
	c.echo.Store(enable)
}

// Echoing reports whether EchoRx is enabled.
func (c *Controller[E]) Echoing() bool {
	return c.echo.Load()
}

// EchoOnce moves one received byte to TX.
func (c *Controller[E]) EchoOnce() bool {
	if !c.Status().On || c.tx.Full() || c.rx.Empty() {
		return false
	}
	b, _ := c.Receive()
	return c.Transmit(b)
}

// EnableErrorIRQ arms hardware error detection.
func (c *Controller[E]) EnableErrorIRQ(enable bool) {
	c.errorIRQ.Store(enable)
	if c.Status().On {
		c.binding.EnableSercomErrors(c.id, enable)
	}
}

// ResetRX discards received bytes, clears the error and re-arms
// reception.
func (c *Controller[E]) ResetRX() {
	c.rx.Reset()
	c.update(func(st *Status[E]) {
		st.RX = RXNone
		st.Error = 0
	})
	c.binding.EnableRxFull(c.id, true)
}

// ResetTX discards queued bytes.
func (c *Controller[E]) ResetTX() {
	c.tx.Reset()
	c.binding.EnableTxEmpty(c.id, false)
	c.update(func(st *Status[E]) { st.TX = TXNone })
}

// ClearErrors clears hardware error bits and the recorded error.
func (c *Controller[E]) ClearErrors() {
	c.binding.ClearErrors(c.id)
	c.rx.ClearOverflow()
	c.update(func(st *Status[E]) { st.Error = 0 })
}

// ClearRXInterrupt forgets the last receive cause.
func (c *Controller[E]) ClearRXInterrupt() {
	c.update(func(st *Status[E]) { st.RX = RXNone })
}

// ClearTXInterrupt forgets the last transmit cause.
func (c *Controller[E]) ClearTXInterrupt() {
	c.update(func(st *Status[E]) { st.TX = TXNone })
}

// Status returns the current status.
func (c *Controller[E]) Status() Status[E] {
	return unpack[E](c.status.Load())
}

// BufferStates returns the fill states of RX and TX.
func (c *Controller[E]) BufferStates() BufferStates {
	return BufferStates{RX: c.rx.State(), TX: c.tx.State()}
}

// RXAvailable returns the number of received bytes.
func (c *Controller[E]) RXAvailable() int {
	return c.rx.Len()
}

// TXFree returns the free space of TX.
func (c *Controller[E]) TXFree() int {
	return c.tx.Free()
}

// TXCap returns the capacity of TX.
func (c *Controller[E]) TXCap() int {
	return c.tx.Cap()
}

// Notify is signaled when a byte is received.
func (c *Controller[E]) Notify() <-chan struct{} {
	return c.notifyCh
}

// SetTask sets the application hook run by Task.
func (c *Controller[E]) SetTask(fn func(*Controller[E])) {
	c.taskLock.Lock()
	c.task = fn
	c.taskLock.Unlock()
}

// Task runs the application hook.
func (c *Controller[E]) Task() {
	c.taskLock.Lock()
	fn := c.task
	c.taskLock.Unlock()
	if fn != nil {
		fn(c)
	}
}

// Control implements framework.Controller.
func (c *Controller[E]) Control(framework.ControlContext) error {
	c.Task()
	return nil
}
