package console

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sercom.go/pkg/framework"
	"github.com/robotalks/sercom.go/pkg/hal"
	"github.com/robotalks/sercom.go/pkg/sercom"
	"github.com/robotalks/sercom.go/pkg/sercom/sim"
	"github.com/robotalks/sercom.go/pkg/uart"
)

type session struct {
	t    *testing.T
	dev  *sim.Device
	port *uart.Controller
	con  *Console
}

func newSession(t *testing.T) *session {
	dev := sim.New()
	port, err := uart.New(dev, sercom.DefaultPool(), hal.DefaultUART(sercom.Sercom0), uart.Options{})
	require.NoError(t, err)
	return &session{t: t, dev: dev, port: port, con: New("console", port, nil)}
}

func (s *session) send(str string) {
	for i := 0; i < len(str); i++ {
		s.dev.InjectRX(s.port.ID(), str[i])
	}
}

func (s *session) step(want State) string {
	require.Equal(s.t, want, s.con.Step())
	return string(s.dev.Transmitted(s.port.ID()))
}

func TestConsoleSession(t *testing.T) {
	s := newSession(t)
	require.Equal(t, Disabled, s.con.State())
	s.step(Initializing)
	s.step(Off)

	s.send("hello_world\n")
	require.Empty(t, s.step(Off), "ignored while off")

	s.send("on\n")
	require.Equal(t, "Received on command! Turning on...\n\n", s.step(PromptUser))
	require.Equal(t, strings.Join(Prompt, ""), s.step(WaitForResponse))
	require.Empty(t, s.step(WaitForResponse))

	s.send("hello_world\n")
	s.step(Hello)
	require.Equal(t, "hello world\n", s.step(WaitForResponse))
	require.Empty(t, s.step(WaitForResponse), "command handled once")

	s.send("integer_")
	s.step(WaitForResponse)
	s.send("42")
	s.step(WaitForResponse)
	s.send("\n")
	s.step(Integer)
	require.Equal(t, uint32(42), s.con.Param())
	require.Equal(t, "Integer param: 42\n", s.step(WaitForResponse))
	require.Empty(t, s.step(WaitForResponse))

	s.send("off\n")
	require.Equal(t, "Received off command! Turning off...\n", s.step(Off))
	s.send("integer_7\n")
	require.Empty(t, s.step(Off))
	s.send("on\n")
	s.step(PromptUser)
}

func TestConsoleInitFailure(t *testing.T) {
	fail := true
	c := New("console", nil, func() error {
		if fail {
			return errors.New("no port")
		}
		return nil
	})
	require.Equal(t, Initializing, c.Step())
	require.Equal(t, Disabled, c.Step())
	fail = false
	c.Step()
	require.Equal(t, Off, c.Step())
}

func TestConsoleInLoop(t *testing.T) {
	s := newSession(t)
	l := framework.NewLoop()
	l.AddController(framework.PrLvApp, s.con)
	for i := 0; i < 2; i++ {
		l.RunOnce(context.Background())
	}
	require.Equal(t, Off, s.con.State())
	s.send("on\n")
	for i := 0; i < 3; i++ {
		l.RunOnce(context.Background())
	}
	require.Equal(t, WaitForResponse, s.con.State())
	require.Equal(t, "console", s.con.Name())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "wait-for-response", WaitForResponse.String())
	require.Equal(t, "State(9)", State(9).String())
}
