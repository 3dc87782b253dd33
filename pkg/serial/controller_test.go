package serial

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sercom.go/pkg/buffer"
	"github.com/robotalks/sercom.go/pkg/sercom"
)

type testError uint8

const (
	tNone testError = iota
	tOverflow
	tParity
)

func (e testError) String() string {
	return [...]string{"none", "overflow", "parity"}[e]
}

type fakeHAL struct {
	irq     sync.Mutex
	lock    sync.Mutex
	intset  uint32
	intflag uint32
	data    byte
	sent    []byte
	hwErr   testError
	cleared int
	handler sercom.Handler
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{intflag: sercom.IntDRE}
}

func (f *fakeHAL) enable(bit uint32, on bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if on {
		f.intset |= bit
	} else {
		f.intset &^= bit
	}
}

func (f *fakeHAL) raised(bit uint32) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.intset&f.intflag&bit != 0
}

func (f *fakeHAL) armed(bit uint32) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.intset&bit != 0
}

func (f *fakeHAL) EnableRxFull(_ sercom.ID, on bool)       { f.enable(sercom.IntRXC, on) }
func (f *fakeHAL) EnableTxEmpty(_ sercom.ID, on bool)      { f.enable(sercom.IntDRE, on) }
func (f *fakeHAL) EnableSercomErrors(_ sercom.ID, on bool) { f.enable(sercom.IntERROR, on) }
func (f *fakeHAL) ReadyToReceive(sercom.ID) bool           { return f.raised(sercom.IntRXC) }
func (f *fakeHAL) ReadyToTransmit(sercom.ID) bool          { return f.raised(sercom.IntDRE) }
func (f *fakeHAL) DeinitSercom(sercom.ID)                  {}

func (f *fakeHAL) MaskIRQ(sercom.ID) func() {
	f.irq.Lock()
	return f.irq.Unlock
}

// fire runs the handler the way the interrupt line would.
func (f *fakeHAL) fire(c *Controller[testError]) {
	f.irq.Lock()
	defer f.irq.Unlock()
	c.ISR()
}

func (f *fakeHAL) SercomHasErrors(sercom.ID) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.intset&f.intflag&sercom.IntERROR == 0 {
		return false
	}
	f.intflag &^= sercom.IntERROR
	return true
}

func (f *fakeHAL) GetSercomRX(sercom.ID) byte {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.intflag &^= sercom.IntRXC
	return f.data
}

func (f *fakeHAL) SetSercomTX(_ sercom.ID, b byte) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.sent = append(f.sent, b)
}

func (f *fakeHAL) ClearErrors(sercom.ID) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.cleared++
	f.hwErr = tNone
}

func (f *fakeHAL) Attach(_ sercom.ID, h sercom.Handler) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.handler = h
}

func (f *fakeHAL) ClassifyError(sercom.ID) testError {
	f.lock.Lock()
	defer f.lock.Unlock()
	e := f.hwErr
	f.hwErr = tNone
	return e
}

func (f *fakeHAL) Overflow() testError {
	return tOverflow
}

func (f *fakeHAL) latch(b byte) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.data = b
	f.intflag |= sercom.IntRXC
}

func (f *fakeHAL) raiseError(e testError) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.hwErr = e
	f.intflag |= sercom.IntERROR
}

// busy holds the transmitter so TX does not drain.
func (f *fakeHAL) busy(on bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if on {
		f.intflag &^= sercom.IntDRE
	} else {
		f.intflag |= sercom.IntDRE
	}
}

func (f *fakeHAL) sentBytes() []byte {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]byte(nil), f.sent...)
}

func newTestController(t *testing.T, rxSize, txSize int) (*Controller[testError], *fakeHAL) {
	f := newFakeHAL()
	c := NewController[testError](sercom.Sercom0, f, Options{RXSize: rxSize, TXSize: txSize})
	require.NoError(t, c.Init(nil))
	require.True(t, c.Status().On)
	require.True(t, f.armed(sercom.IntRXC))
	require.False(t, f.armed(sercom.IntDRE))
	require.NotNil(t, f.handler)
	return c, f
}

func TestExecuteRXAllStates(t *testing.T) {
	for _, state := range RXIRQStates {
		t.Run(state.String(), func(t *testing.T) {
			c, f := newTestController(t, 2, 2)
			switch state {
			case RXNone:
				c.ExecuteRX(state)
				require.Equal(t, Status[testError]{On: true}, c.Status())
			case RXError:
				f.raiseError(tParity)
				c.ExecuteRX(state)
				require.Equal(t, tParity, c.Status().Error)
				require.Zero(t, c.RXAvailable())
			case RXComplete:
				f.latch('a')
				c.ExecuteRX(RXSuccess)
				f.latch('b')
				c.ExecuteRX(RXSuccess)
				f.latch('c')
				c.ExecuteRX(state)
				require.Equal(t, tOverflow, c.Status().Error)
				require.False(t, f.armed(sercom.IntRXC))
				require.False(t, f.raised(sercom.IntRXC))
				require.Equal(t, 2, c.RXAvailable())
			case RXSuccess:
				f.latch('a')
				c.ExecuteRX(state)
				require.Equal(t, tNone, c.Status().Error)
				require.Equal(t, BufferStates{RX: buffer.Partial, TX: buffer.Empty}, c.BufferStates())
				select {
				case <-c.Notify():
				default:
					t.Fatal("no notification")
				}
			}
			require.Equal(t, state, c.Status().RX)
			require.Equal(t, TXNone, c.Status().TX)
		})
	}
}

func TestExecuteTXAllStates(t *testing.T) {
	for _, state := range TXIRQStates {
		t.Run(state.String(), func(t *testing.T) {
			c, f := newTestController(t, 2, 2)
			switch state {
			case TXNone:
				c.ExecuteTX(state)
				require.Equal(t, Status[testError]{On: true}, c.Status())
			case TXComplete:
				f.EnableTxEmpty(0, true)
				c.ExecuteTX(state)
				require.False(t, f.armed(sercom.IntDRE))
			case TXSuccess:
				require.True(t, c.TransmitPacket([]byte("xy")))
				c.ExecuteTX(state)
				require.Equal(t, []byte("x"), f.sentBytes())
				require.Equal(t, 1, c.TXFree())
			}
			require.Equal(t, state, c.Status().TX)
			require.Equal(t, RXNone, c.Status().RX)
		})
	}
}

func TestISR(t *testing.T) {
	c, f := newTestController(t, 4, 4)
	require.True(t, c.TransmitString("hi"))
	require.True(t, f.armed(sercom.IntDRE))
	f.latch('r')
	c.ISR()
	require.Equal(t, TXSuccess, c.Status().TX)
	require.Equal(t, RXSuccess, c.Status().RX)
	c.ISR()
	c.ISR()
	require.Equal(t, TXComplete, c.Status().TX)
	require.Equal(t, RXSuccess, c.Status().RX, "last cause kept")
	require.False(t, f.armed(sercom.IntDRE))
	require.Equal(t, []byte("hi"), f.sentBytes())
	b, ok := c.Receive()
	require.True(t, ok)
	require.Equal(t, byte('r'), b)
}

func TestRXOverflow(t *testing.T) {
	c, f := newTestController(t, 4, 4)
	for _, b := range []byte{0x41, 0x42, 0x43, 0x44, 0x45} {
		f.latch(b)
		c.ISR()
	}
	require.Equal(t, tOverflow, c.Status().Error)
	require.Equal(t, RXComplete, c.Status().RX)
	require.Equal(t, buffer.Full, c.BufferStates().RX)

	var got []byte
	for {
		b, ok := c.Receive()
		if !ok {
			break
		}
		got = append(got, b)
	}
	require.Equal(t, []byte{0x41, 0x42, 0x43, 0x44}, got)
	require.True(t, f.armed(sercom.IntRXC), "reception re-armed")
	require.Equal(t, tOverflow, c.Status().Error, "error kept until cleared")

	c.ClearErrors()
	require.Equal(t, tNone, c.Status().Error)
	require.Equal(t, 1, f.cleared)
}

func TestErrorIRQ(t *testing.T) {
	c, f := newTestController(t, 4, 4)
	f.raiseError(tParity)
	f.latch('p')
	c.ISR()
	require.Equal(t, RXSuccess, c.Status().RX, "errors ignored while disarmed")
	require.Equal(t, tNone, c.Status().Error)

	c.EnableErrorIRQ(true)
	require.True(t, f.armed(sercom.IntERROR))
	f.raiseError(tParity)
	f.latch('q')
	c.ISR()
	require.Equal(t, RXError, c.Status().RX)
	require.Equal(t, tParity, c.Status().Error)
	c.ISR()
	require.Equal(t, RXSuccess, c.Status().RX)
	require.Equal(t, 2, c.RXAvailable())
}

func TestTransmitPacketAtomic(t *testing.T) {
	c, f := newTestController(t, 4, 1)
	require.False(t, c.TransmitPacket([]byte("AB")))
	require.Equal(t, buffer.Empty, c.BufferStates().TX)
	require.Equal(t, 1, c.TXFree())
	require.False(t, f.armed(sercom.IntDRE))
	require.False(t, c.TransmitString("AB"))
	require.True(t, c.Transmit('A'))
	require.False(t, c.Transmit('B'))
	require.Equal(t, buffer.Full, c.BufferStates().TX)
}

func TestTransmitInt(t *testing.T) {
	c, f := newTestController(t, 4, 16)
	require.True(t, c.TransmitInt(4096))
	for i := 0; i < 5; i++ {
		c.ISR()
	}
	require.Equal(t, []byte("4096"), f.sentBytes())
}

func TestEchoRx(t *testing.T) {
	c, f := newTestController(t, 4, 4)
	c.EchoRx(true)
	require.True(t, c.Echoing())
	f.latch(0x58)
	c.ISR()
	require.Equal(t, buffer.Partial, c.BufferStates().TX)
	require.True(t, f.armed(sercom.IntDRE))
	c.ISR()
	require.Equal(t, []byte{0x58}, f.sentBytes())
	b, ok := c.Receive()
	require.True(t, ok)
	require.Equal(t, byte(0x58), b)
}

func TestEchoRxTXFull(t *testing.T) {
	c, f := newTestController(t, 4, 1)
	f.busy(true)
	c.EchoRx(true)
	require.True(t, c.Transmit('a'))
	f.latch('x')
	c.ISR()
	require.Equal(t, tOverflow, c.Status().Error)
	require.Equal(t, buffer.Full, c.BufferStates().TX)
	b, ok := c.Receive()
	require.True(t, ok)
	require.Equal(t, byte('x'), b)

	f.busy(false)
	c.ISR()
	c.ISR()
	require.Equal(t, []byte("a"), f.sentBytes())
	require.Equal(t, buffer.Empty, c.BufferStates().TX)
}

func TestEchoOnce(t *testing.T) {
	c, f := newTestController(t, 4, 4)
	require.False(t, c.EchoOnce())
	f.latch('e')
	c.ISR()
	require.True(t, c.EchoOnce())
	require.Zero(t, c.RXAvailable())
	c.ISR()
	require.Equal(t, []byte("e"), f.sentBytes())
}

func TestResets(t *testing.T) {
	c, f := newTestController(t, 2, 4)
	for _, b := range []byte("abc") {
		f.latch(b)
		c.ISR()
	}
	require.True(t, c.TransmitString("xyz"))
	require.Equal(t, tOverflow, c.Status().Error)

	c.ResetRX()
	require.Equal(t, buffer.Empty, c.BufferStates().RX)
	require.Equal(t, buffer.Partial, c.BufferStates().TX, "TX untouched")
	require.Equal(t, tNone, c.Status().Error)
	require.True(t, f.armed(sercom.IntRXC))

	c.ResetTX()
	require.Equal(t, BufferStates{RX: buffer.Empty, TX: buffer.Empty}, c.BufferStates())
	require.False(t, f.armed(sercom.IntDRE))
}

func TestClearInterrupts(t *testing.T) {
	c, f := newTestController(t, 4, 4)
	c.Transmit('t')
	f.latch('r')
	c.ISR()
	c.ClearRXInterrupt()
	require.Equal(t, RXNone, c.Status().RX)
	require.Equal(t, TXSuccess, c.Status().TX)
	c.ClearTXInterrupt()
	require.Equal(t, TXNone, c.Status().TX)
}

func TestLifecycle(t *testing.T) {
	f := newFakeHAL()
	c := NewController[testError](sercom.Sercom3, f, Options{})
	require.Equal(t, sercom.Sercom3, c.ID())
	require.Equal(t, DefaultTXSize, c.TXCap())
	require.False(t, c.Transmit('a'), "not on")

	calls := 0
	initHW := func() error { calls++; return nil }
	require.NoError(t, c.Init(initHW))
	require.NoError(t, c.Init(initHW))
	require.Equal(t, 1, calls)

	require.True(t, c.Transmit('a'))
	c.Deinit()
	require.False(t, c.Status().On)
	require.Nil(t, f.handler)
	require.Equal(t, buffer.Empty, c.BufferStates().TX)
	require.False(t, f.armed(sercom.IntRXC))
	require.False(t, c.Transmit('a'))
}

func TestReceiveText(t *testing.T) {
	c, f := newTestController(t, 32, 4)
	for _, b := range []byte("integer_42;") {
		f.latch(b)
		c.ISR()
	}
	v, ok := c.ReceiveParam("integer_", ';', 0)
	require.True(t, ok)
	require.Equal(t, uint32(42), v)

	for _, b := range []byte("on") {
		f.latch(b)
		c.ISR()
	}
	require.True(t, c.ReceiveString("on", 0, false))
	require.False(t, c.ReceiveString("on", 0, false))

	for _, b := range []byte("77") {
		f.latch(b)
		c.ISR()
	}
	v, ok = c.ReceiveInt()
	require.True(t, ok)
	require.Equal(t, uint32(77), v)
}

func TestTask(t *testing.T) {
	c, _ := newTestController(t, 4, 4)
	c.Task()
	var ran *Controller[testError]
	c.SetTask(func(ctl *Controller[testError]) { ran = ctl })
	require.NoError(t, c.Control(nil))
	require.Equal(t, c, ran)
}

func TestStreamRead(t *testing.T) {
	c, f := newTestController(t, 8, 8)
	s := NewStream[testError](context.Background(), c)
	s.ReadTimeout = 10 * time.Millisecond
	buf := make([]byte, 4)
	_, err := s.Read(buf)
	require.True(t, errors.Is(err, os.ErrDeadlineExceeded))

	s.ReadTimeout = 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		for _, b := range []byte("ok") {
			f.latch(b)
			f.fire(c)
		}
	}()
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.NotZero(t, n)
	require.Equal(t, byte('o'), buf[0])
}

func TestStreamReadCanceled(t *testing.T) {
	c, _ := newTestController(t, 8, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStream[testError](ctx, c).Read(make([]byte, 1))
	require.True(t, errors.Is(err, context.Canceled))
}

func TestStreamWrite(t *testing.T) {
	c, f := newTestController(t, 8, 4)
	s := NewStream[testError](context.Background(), c)
	payload := []byte("0123456789")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(f.sentBytes()) < len(payload) {
			f.fire(c)
			time.Sleep(100 * time.Microsecond)
		}
	}()
	n, err := s.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	<-done
	require.Equal(t, payload, f.sentBytes())
}

func TestStreamWriteNotOn(t *testing.T) {
	c := NewController[testError](sercom.Sercom0, newFakeHAL(), Options{})
	_, err := NewStream[testError](context.Background(), c).Write([]byte("x"))
	require.True(t, errors.Is(err, ErrNotOn))
}
