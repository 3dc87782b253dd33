package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sercom.go/pkg/hal"
	"github.com/robotalks/sercom.go/pkg/sercom"
	"github.com/robotalks/sercom.go/pkg/sercom/sim"
	"github.com/robotalks/sercom.go/pkg/uart"
)

func TestReadWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte{1, 2, 3}))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{3, 0, 0, 0, 1, 2, 3, 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)

	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	_, err = rw.ReadPacket()
	require.True(t, errors.Is(err, ErrPacketTooLarge))
	require.NoError(t, rw.Close())
}

func TestRaw(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRaw(&buf)
	rw.ChunkSize = 4
	require.NoError(t, rw.WritePacket([]byte("abcdef")))
	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "abcd", string(pkt))
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "ef", string(pkt))
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)
}

func TestServer(t *testing.T) {
	dev := sim.New()
	c, err := uart.New(dev, sercom.DefaultPool(), hal.DefaultUART(sercom.Sercom4), uart.Options{TXSize: 16, RXSize: 16})
	require.NoError(t, err)
	defer c.Close()
	dev.Loopback(c.ID())

	s := NewServer("uart", "127.0.0.1:0", c)
	s.Framed = true
	require.NoError(t, s.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	rw := New(conn)
	require.NoError(t, rw.WritePacket([]byte("ping")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []byte
	for len(got) < 4 {
		pkt, err := rw.ReadPacket()
		require.NoError(t, err)
		got = append(got, pkt...)
	}
	require.Equal(t, "ping", string(got))

	cancel()
	require.True(t, errors.Is(<-errCh, context.Canceled))
}
