package sim

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sercom.go/pkg/sercom"
)

func enable(d *Device, id sercom.ID, mode uint32) {
	d.Store(id, sercom.CTRLA, mode<<sercom.CtrlAModeShift|sercom.CtrlAEnable)
}

func TestRegisterSemantics(t *testing.T) {
	d := New()
	id := sercom.Sercom1
	require.Zero(t, d.Load(id, sercom.INTFLAG))
	enable(d, id, sercom.ModeUSARTInternalClock)
	require.Equal(t, sercom.IntDRE, d.Load(id, sercom.INTFLAG))

	d.Store(id, sercom.INTENSET, sercom.IntRXC|sercom.IntERROR)
	d.Store(id, sercom.INTENCLR, sercom.IntERROR)
	require.Equal(t, sercom.IntRXC, d.Load(id, sercom.INTENSET))
	require.Equal(t, sercom.IntRXC, d.Load(id, sercom.INTENCLR))

	d.InjectError(id, sercom.StatusPERR|sercom.StatusCTS)
	require.Equal(t, sercom.StatusPERR, d.Load(id, sercom.STATUS))
	require.NotZero(t, d.Load(id, sercom.INTFLAG)&sercom.IntERROR)
	d.Store(id, sercom.STATUS, sercom.StatusPERR)
	d.Store(id, sercom.INTFLAG, sercom.IntERROR|sercom.IntDRE)
	require.Zero(t, d.Load(id, sercom.STATUS))
	require.Equal(t, sercom.IntDRE, d.Load(id, sercom.INTFLAG))
}

func TestRXOverrun(t *testing.T) {
	d := New()
	id := sercom.Sercom0
	enable(d, id, sercom.ModeUSARTInternalClock)
	d.InjectRX(id, 'a')
	require.NotZero(t, d.Load(id, sercom.INTFLAG)&sercom.IntRXC)
	d.InjectRX(id, 'b')
	require.Equal(t, sercom.StatusBUFOVF, d.Load(id, sercom.STATUS))
	require.Equal(t, uint32('b'), d.Load(id, sercom.DATA))
	require.Zero(t, d.Load(id, sercom.INTFLAG)&sercom.IntRXC)
}

func TestDisabledUnitDropsData(t *testing.T) {
	d := New()
	d.InjectRX(sercom.Sercom2, 'x')
	d.Store(sercom.Sercom2, sercom.DATA, 'y')
	require.Zero(t, d.Load(sercom.Sercom2, sercom.INTFLAG))
	require.Empty(t, d.Transmitted(sercom.Sercom2))
}

func TestHandlerDelivery(t *testing.T) {
	d := New()
	id := sercom.Sercom3
	enable(d, id, sercom.ModeUSARTInternalClock)
	var got []byte
	d.Attach(id, func() {
		got = append(got, byte(d.Load(id, sercom.DATA)))
	})
	d.InjectRX(id, 'q')
	require.Empty(t, got, "line not enabled")

	d.Store(id, sercom.INTENSET, sercom.IntRXC)
	require.Equal(t, []byte("q"), got)

	restore := d.MaskIRQ(id)
	d.InjectRX(id, 'r')
	require.Equal(t, []byte("q"), got)
	restore()
	require.Equal(t, []byte("qr"), got)
}

func TestLoopbackAndConnect(t *testing.T) {
	d := New()
	a, b := sercom.Sercom0, sercom.Sercom5
	enable(d, a, sercom.ModeUSARTInternalClock)
	enable(d, b, sercom.ModeUSARTInternalClock)
	d.Connect(a, b)
	d.Store(a, sercom.DATA, 'z')
	require.Equal(t, []byte("z"), d.Transmitted(a))
	require.Equal(t, uint32('z'), d.Load(b, sercom.DATA))
	require.Equal(t, sercom.IntDRE|sercom.IntTXC, d.Load(a, sercom.INTFLAG))

	d.Loopback(b)
	d.Store(b, sercom.DATA, 'w')
	require.Equal(t, uint32('w'), d.Load(b, sercom.DATA))
}

func TestSPIHostResponder(t *testing.T) {
	d := New()
	id := sercom.Sercom4
	enable(d, id, sercom.ModeSPIHost)
	d.Store(id, sercom.DATA, 0x10)
	require.Equal(t, uint32(0xff), d.Load(id, sercom.DATA))

	d.SetResponder(id, func(b byte) byte { return b + 1 })
	d.Store(id, sercom.DATA, 0x10)
	require.Equal(t, uint32(0x11), d.Load(id, sercom.DATA))
}

func TestPinsAndClocks(t *testing.T) {
	d := New()
	p := sercom.Pin(sercom.FunctionD, sercom.PortB, 9)
	_, ok := d.PinMode(p)
	require.False(t, ok)
	d.ConfigPin(p, sercom.PinOutput)
	d.SetPin(p, true)
	mode, ok := d.PinMode(p)
	require.True(t, ok)
	require.Equal(t, sercom.PinOutput, mode)
	require.True(t, d.PinState(p))

	clk := sercom.EnableSercomClock(d, sercom.Sercom4, sercom.ProtocolSPI, sercom.ClockConfig{})
	require.Equal(t, sercom.SPIClockGenerator, clk.Generator)
	got, on := d.Clock(sercom.Sercom4)
	require.True(t, on)
	require.Equal(t, clk, got)
	d.DisableSercomClock(sercom.Sercom4)
	_, on = d.Clock(sercom.Sercom4)
	require.False(t, on)
}

func TestWatchPin(t *testing.T) {
	d := New()
	p := sercom.Pin(sercom.FunctionD, sercom.PortA, 17)
	var levels []bool
	d.WatchPin(p, func(high bool) { levels = append(levels, high) })
	d.SetPin(p, true)
	d.SetPin(p, true)
	d.SetPin(p, false)
	require.Equal(t, []bool{true, false}, levels)
}

func TestConcurrentInjection(t *testing.T) {
	d := New()
	id := sercom.Sercom2
	enable(d, id, sercom.ModeUSARTInternalClock)
	var count int
	d.Attach(id, func() {
		d.Store(id, sercom.INTFLAG, sercom.IntERROR)
		d.Store(id, sercom.STATUS, sercom.StatusErrors)
		d.Load(id, sercom.DATA)
		count++
	})
	d.Store(id, sercom.INTENSET, sercom.IntRXC|sercom.IntERROR)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				restore := d.MaskIRQ(id)
				restore()
				d.InjectRX(id, byte(i))
			}
		}()
	}
	wg.Wait()
	restore := d.MaskIRQ(id)
	n := count
	restore()
	require.NotZero(t, n)
	require.Zero(t, d.Load(id, sercom.INTFLAG)&(sercom.IntRXC|sercom.IntERROR))
}

func TestFeedPacing(t *testing.T) {
	d := New()
	id := sercom.Sercom1
	enable(d, id, sercom.ModeUSARTInternalClock)
	for _, b := range []byte("abc") {
		d.Feed(id, b)
	}
	require.Equal(t, 2, d.Pending(id))
	require.Zero(t, d.Load(id, sercom.STATUS), "no overrun")
	require.Equal(t, uint32('a'), d.Load(id, sercom.DATA))
	require.NotZero(t, d.Load(id, sercom.INTFLAG)&sercom.IntRXC)
	require.Equal(t, uint32('b'), d.Load(id, sercom.DATA))
	require.Equal(t, uint32('c'), d.Load(id, sercom.DATA))
	require.Zero(t, d.Load(id, sercom.INTFLAG)&sercom.IntRXC)

	d.Feed(id, 'x')
	d.Feed(id, 'y')
	d.Store(id, sercom.CTRLA, 0)
	require.Zero(t, d.Pending(id))
}
