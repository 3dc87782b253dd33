package sercom

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolClaimExclusive(t *testing.T) {
	p := DefaultPool()
	require.NoError(t, p.Claim(Sercom2, "uart0"))
	err := p.Claim(Sercom2, "spi0")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInUse))
	var ce *ClaimError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, "uart0", ce.Owner)

	owner, ok := p.Owner(Sercom2)
	require.True(t, ok)
	require.Equal(t, "uart0", owner)

	require.True(t, errors.Is(p.Release(Sercom2, "spi0"), ErrNotClaimed))
	require.NoError(t, p.Release(Sercom2, "uart0"))
	require.NoError(t, p.Claim(Sercom2, "spi0"))
}

func TestPoolUnknownUnit(t *testing.T) {
	p := NewPool(Sercom0, Sercom1)
	require.True(t, errors.Is(p.Claim(Sercom4, "x"), ErrUnknownUnit))
	require.Equal(t, []ID{Sercom0, Sercom1}, p.Units())
}

func TestPoolClaims(t *testing.T) {
	p := DefaultPool()
	require.Empty(t, p.Claims())
	require.NoError(t, p.Claim(Sercom5, "b"))
	require.NoError(t, p.Claim(Sercom1, "a"))
	require.Equal(t, []Claim{{Sercom1, "a"}, {Sercom5, "b"}}, p.Claims())
}

func TestPoolClaimPins(t *testing.T) {
	testCases := []struct {
		name string
		req  Request
		id   ID
		err  error
	}{
		{
			name: "uart sercom0",
			req:  UARTRequest("u", Pin(FunctionC, PortA, 10), Pin(FunctionC, PortA, 11), Tx2_Rx3),
			id:   Sercom0,
		},
		{
			name: "uart sercom5",
			req:  UARTRequest("u", Pin(FunctionD, PortA, 22), Pin(FunctionD, PortA, 23), Tx0_Rx1),
			id:   Sercom5,
		},
		{
			name: "uart wrong pads",
			req:  UARTRequest("u", Pin(FunctionC, PortA, 10), Pin(FunctionC, PortA, 11), Tx0_Rx1),
			err:  ErrNoMatch,
		},
		{
			name: "uart wrong function",
			req:  UARTRequest("u", Pin(FunctionD, PortA, 10), Pin(FunctionC, PortA, 11), Tx2_Rx3),
			err:  ErrNoMatch,
		},
		{
			name: "spi sercom4",
			req:  SPIRequest("s", Pin(FunctionD, PortB, 10), Pin(FunctionD, PortA, 12), Pin(FunctionD, PortB, 11), DO2_DI0_SCK3_CSS1),
			id:   Sercom4,
		},
		{
			name: "spi sercom1",
			req:  SPIRequest("s", Pin(FunctionC, PortA, 18), Pin(FunctionC, PortA, 16), Pin(FunctionC, PortA, 19), DO2_DI0_SCK3_CSS1),
			id:   Sercom1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultPool()
			id, err := p.ClaimPins(tc.req)
			if tc.err != nil {
				require.True(t, errors.Is(err, tc.err), "%v", err)
				require.Empty(t, p.Claims())
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.id, id)
			owner, ok := p.Owner(id)
			require.True(t, ok)
			require.Equal(t, tc.req.Owner, owner)
		})
	}
}

func TestPoolClaimPinsBusy(t *testing.T) {
	p := DefaultPool()
	req := UARTRequest("first", Pin(FunctionD, PortA, 18), Pin(FunctionD, PortA, 19), Tx2_Rx3)
	id, err := p.ClaimPins(req)
	require.NoError(t, err)
	require.Equal(t, Sercom3, id)

	req.Owner = "second"
	_, err = p.ClaimPins(req)
	require.True(t, errors.Is(err, ErrInUse))
}

func TestPoolClaimPinsDefaultOwner(t *testing.T) {
	p := DefaultPool()
	req := UARTRequest("", Pin(FunctionD, PortA, 18), Pin(FunctionD, PortA, 19), Tx2_Rx3)
	id, err := p.ClaimPins(req)
	require.NoError(t, err)
	owner, ok := p.Owner(id)
	require.True(t, ok)
	require.Equal(t, DefaultOwner(ProtocolUART, id), owner)
	require.Equal(t, "uart:SERCOM3", owner)
}

func TestPadConfigs(t *testing.T) {
	require.Equal(t, uint32(0), Tx0_Rx1.TXPO())
	require.Equal(t, uint32(1), Tx0_Rx1.RXPO())
	require.Equal(t, uint32(1), Tx2_Rx3.TXPO())
	require.Equal(t, uint32(3), Tx2_Rx3.RXPO())

	spi := []struct {
		pads       SPIPadConfig
		dipo, dopo uint32
	}{
		{DO0_DI2_SCK1_CSS2, 2, 0},
		{DO0_DI3_SCK1_CSS2, 3, 0},
		{DO0_DI1_SCK3_CSS1, 1, 3},
		{DO0_DI2_SCK3_CSS1, 2, 3},
		{DO2_DI0_SCK3_CSS1, 0, 1},
		{DO2_DI1_SCK3_CSS1, 1, 1},
		{DO3_DI0_SCK1_CSS2, 0, 2},
		{DO3_DI2_SCK1_CSS2, 2, 2},
	}
	for _, tc := range spi {
		require.Equal(t, tc.dipo, tc.pads.DIPO(), tc.pads.String())
		require.Equal(t, tc.dopo, tc.pads.DOPO(), tc.pads.String())
		parsed, err := ParseSPIPadConfig(tc.pads.String())
		require.NoError(t, err)
		require.Equal(t, tc.pads, parsed)
	}

	c, err := ParsePadConfig("Tx2_Rx0")
	require.NoError(t, err)
	require.Equal(t, Tx2_Rx0, c)
	_, err = ParsePadConfig("Tx1_Rx0")
	require.Error(t, err)
}
