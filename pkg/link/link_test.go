package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sercom.go/pkg/hal"
	"github.com/robotalks/sercom.go/pkg/sercom"
	"github.com/robotalks/sercom.go/pkg/sercom/sim"
	"github.com/robotalks/sercom.go/pkg/serial"
	"github.com/robotalks/sercom.go/pkg/uart"
)

const (
	codeEcho   byte = 0x02
	codeFail   byte = 0x04
	codeReject byte = 0x06
	codeNone   byte = 0x08
	codeNotify byte = 0x0a
)

type linkTestEnv struct {
	t      *testing.T
	ctx    context.Context
	client *Client
	server *Server
	errCh  chan error
}

func newLinkTestEnv(t *testing.T, timed bool) (*linkTestEnv, func()) {
	dev, pool := sim.New(), sercom.DefaultPool()
	opts := uart.Options{TXSize: 256, RXSize: 256}
	a, err := uart.New(dev, pool, hal.DefaultUART(sercom.Sercom0), opts)
	require.NoError(t, err)
	b, err := uart.New(dev, pool, hal.DefaultUART(sercom.Sercom5), opts)
	require.NoError(t, err)
	dev.Connect(a.ID(), b.ID())

	ctx, cancel := context.WithCancel(context.Background())
	sa, sb := serial.NewStream(ctx, a.Controller), serial.NewStream(ctx, b.Controller)
	la, lb := New(sa), New(sb)
	if timed {
		sa.ReadTimeout, sb.ReadTimeout = 200*time.Millisecond, 200*time.Millisecond
		la.TimedRead, lb.TimedRead = true, true
	}
	env := &linkTestEnv{
		t:      t,
		ctx:    ctx,
		client: NewClient(la),
		server: NewServer(lb),
		errCh:  make(chan error, 2),
	}
	env.server.
		Handle(codeEcho, func(ctx context.Context, data []byte) ([]byte, error) {
			return data, nil
		}).
		Handle(codeFail, func(ctx context.Context, data []byte) ([]byte, error) {
			return nil, errors.New("broken")
		}).
		Handle(codeReject, func(ctx context.Context, data []byte) ([]byte, error) {
			return nil, &CommandError{Code: 0x10}
		})
	go func() { env.errCh <- env.client.Run(ctx) }()
	go func() { env.errCh <- env.server.Run(ctx) }()
	env.waitReady()
	return env, func() {
		cancel()
		for i := 0; i < 2; i++ {
			require.True(t, errors.Is(<-env.errCh, context.Canceled))
		}
	}
}

func (e *linkTestEnv) waitReady() {
	deadline := time.Now().Add(2 * time.Second)
	for !e.client.Link().State().IsReady() || !e.server.Link().State().IsReady() {
		if time.Now().After(deadline) {
			e.t.Fatalf("link not ready: client %s server %s",
				e.client.Link().State(), e.server.Link().State())
		}
		time.Sleep(time.Millisecond)
	}
}

func (e *linkTestEnv) do(code byte, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(e.ctx, time.Second)
	defer cancel()
	return e.client.Do(ctx, code, data)
}

func TestLinkOverUART(t *testing.T) {
	for _, timed := range []bool{false, true} {
		name := "async"
		if timed {
			name = "timed"
		}
		t.Run(name, func(t *testing.T) {
			env, stop := newLinkTestEnv(t, timed)
			defer stop()

			out, err := env.do(codeEcho, []byte("ping"))
			require.NoError(t, err)
			require.Equal(t, []byte("ping"), out)

			long := make([]byte, 40)
			for i := range long {
				long[i] = byte(i)
			}
			out, err = env.do(codeEcho, long)
			require.NoError(t, err)
			require.Equal(t, long, out)

			_, err = env.do(codeFail, nil)
			var cmdErr *CommandError
			require.True(t, errors.As(err, &cmdErr))
			require.Equal(t, ErrCodeFailed, cmdErr.Code)

			_, err = env.do(codeReject, nil)
			require.True(t, errors.As(err, &cmdErr))
			require.Equal(t, byte(0x10), cmdErr.Code)

			_, err = env.do(codeNone, nil)
			require.True(t, errors.As(err, &cmdErr))
			require.Equal(t, ErrCodeUnknown, cmdErr.Code)

			require.NoError(t, env.server.Emit(codeNotify, []byte{7}))
			select {
			case f := <-env.client.Events():
				require.Equal(t, codeNotify|CodeEvent, f.Code)
				require.Equal(t, []byte{7}, f.Data)
			case <-time.After(time.Second):
				t.Fatal("event timeout")
			}

			st := env.client.Link().Stats()
			require.Equal(t, uint64(5), st.Sent)
			require.Equal(t, uint64(6), st.Received)
		})
	}
}

func TestClientNoReply(t *testing.T) {
	l := New(nil)
	c := NewClient(l)
	req := c.Send(codeEcho, nil)
	res := req.Wait(context.Background())
	require.True(t, errors.Is(res.Err, ErrNotReady))

	l.state = Ready
	l.RW = discard{}
	first, second := c.Send(codeEcho, nil), c.Send(codeEcho, []byte{1})
	c.HandleFrame(context.Background(), &Frame{Code: codeEcho, Data: []byte{byte(second.Seq()), 9}})
	require.True(t, errors.Is((<-first.Result()).Err, ErrNoReply))
	res = <-second.Result()
	require.NoError(t, res.Err)
	require.Equal(t, []byte{9}, res.Data)

	c.HandleFrame(context.Background(), &Frame{Code: codeEcho, Data: []byte{byte(first.Seq())}})
	require.Nil(t, c.head)
}

type discard struct{}

func (discard) Read(p []byte) (int, error)  { return 0, nil }
func (discard) Write(p []byte) (int, error) { return len(p), nil }
