package telemetry_test

import (
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/sercom.go/pkg/hal"
	"github.com/robotalks/sercom.go/pkg/sercom"
	"github.com/robotalks/sercom.go/pkg/sercom/sim"
	"github.com/robotalks/sercom.go/pkg/telemetry"
	"github.com/robotalks/sercom.go/pkg/uart"
)

func TestSnapshot(t *testing.T) {
	dev := sim.New()
	c, err := uart.New(dev, sercom.DefaultPool(), hal.DefaultUART(sercom.Sercom2), uart.Options{TXSize: 8, RXSize: 8})
	require.NoError(t, err)
	defer c.Close()

	dev.InjectRX(sercom.Sercom2, 'a')
	st := telemetry.Snapshot(c.Controller)
	require.Equal(t, uint32(2), st.Unit)
	require.True(t, st.On)
	require.Equal(t, "none", st.Error)
	require.Equal(t, "success", st.Rx)
	require.Equal(t, "partial", st.RxBuffer)
	require.Equal(t, "empty", st.TxBuffer)
	require.Equal(t, uint32(1), st.RxUsed)
	require.Equal(t, uint32(8), st.TxFree)

	st = c.Snapshot()
	require.Equal(t, "uart:SERCOM2", st.Name)
	require.Equal(t, "uart", st.Protocol)
}

func TestStatusWire(t *testing.T) {
	st := &telemetry.Status{Board: "b", Name: "console", Unit: 3, On: true}
	data, err := telemetry.Encode(st)
	require.NoError(t, err)
	// board, name, unit and on in field order.
	require.Equal(t, []byte{
		0x0a, 1, 'b',
		0x12, 7, 'c', 'o', 'n', 's', 'o', 'l', 'e',
		0x18, 3,
		0x28, 1,
	}, data)
	decoded, err := telemetry.DecodeStatus(data)
	require.NoError(t, err)
	require.True(t, proto.Equal(st, decoded))

	_, err = telemetry.DecodeData([]byte{0x0a, 5})
	require.Error(t, err)
}

func TestDirectionString(t *testing.T) {
	require.Equal(t, "RX", telemetry.Direction_RX.String())
	require.Equal(t, "TX", telemetry.Direction_TX.String())
	require.Equal(t, "7", telemetry.Direction(7).String())
}
