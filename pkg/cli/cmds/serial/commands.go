// Package serial provides the shell commands moving bytes through
// controllers.
package serial

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/sercom.go/pkg/bridge"
	"github.com/robotalks/sercom.go/pkg/buffer"
	"github.com/robotalks/sercom.go/pkg/cli/sh"
	"github.com/robotalks/sercom.go/pkg/sercom"
)

// Unescape interprets Go escapes such as \n and \x00 in s.
func Unescape(s string) (string, error) {
	return strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
}

// ParseHex parses bytes from hex arguments like "01 02" or "0102".
func ParseHex(args []string) ([]byte, error) {
	return hex.DecodeString(strings.Join(args, ""))
}

var errorBits = map[string]uint32{
	"parity":    sercom.StatusPERR,
	"frame":     sercom.StatusFERR,
	"overflow":  sercom.StatusBUFOVF,
	"sync":      sercom.StatusISF,
	"collision": sercom.StatusCOLL,
}

func apply(c *ishell.Context, cmd string) {
	p, err := sh.Port(c)
	if err != nil {
		c.Err(err)
		return
	}
	if err := bridge.Apply(p, cmd); err != nil {
		c.Err(err)
	}
}

var (
	// TransmitCmd queues text.
	TransmitCmd = ishell.Cmd{
		Name:    "tx",
		Aliases: []string{"send"},
		Help:    "[NAME] TEXT...  (Go escapes allowed)",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			p, err := sh.Port(c)
			if err != nil {
				c.Err(err)
				return
			}
			text, err := Unescape(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			if !p.TransmitPacket([]byte(text)) {
				c.Err(fmt.Errorf("%s: not queued, TX full or off", p.Name()))
			}
		}),
	}

	// TransmitHexCmd queues bytes.
	TransmitHexCmd = ishell.Cmd{
		Name: "txhex",
		Help: "[NAME] HEX...",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			p, err := sh.Port(c)
			if err != nil {
				c.Err(err)
				return
			}
			data, err := ParseHex(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if !p.TransmitPacket(data) {
				c.Err(fmt.Errorf("%s: not queued, TX full or off", p.Name()))
			}
		}),
	}

	// ReceiveCmd takes received bytes.
	ReceiveCmd = ishell.Cmd{
		Name:    "rx",
		Aliases: []string{"recv"},
		Help:    "[NAME] [MAX]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			p, err := sh.Port(c)
			if err != nil {
				c.Err(err)
				return
			}
			size := 256
			if len(c.Args) > 0 {
				if size, err = strconv.Atoi(c.Args[0]); err != nil || size <= 0 {
					c.Err(fmt.Errorf("invalid MAX %q", c.Args[0]))
					return
				}
			}
			buf := make([]byte, size)
			buf = buf[:p.ReceivePacket(buf)]
			sh.Print(c, map[string]string{"text": string(buf), "hex": hex.EncodeToString(buf)},
				fmt.Sprintf("%q (%s)", buf, hex.EncodeToString(buf)))
		}),
	}

	// InjectCmd feeds text into the receive line of the simulated unit.
	InjectCmd = ishell.Cmd{
		Name:    "inject",
		Aliases: []string{"in"},
		Help:    "[NAME] TEXT...  (Go escapes allowed)",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			p, err := sh.Port(c)
			if err != nil {
				c.Err(err)
				return
			}
			text, err := Unescape(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			id := sercom.ID(p.Snapshot().Unit)
			dev := sh.ShellFrom(c).Session.Device
			for _, b := range []byte(text) {
				dev.Feed(id, b)
			}
		}),
	}

	// InjectErrorCmd raises receive errors on the simulated unit.
	InjectErrorCmd = ishell.Cmd{
		Name: "error",
		Help: "[NAME] parity|frame|overflow|sync|collision...",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			p, err := sh.Port(c)
			if err != nil {
				c.Err(err)
				return
			}
			var bits uint32
			for _, arg := range c.Args {
				bit, ok := errorBits[arg]
				if !ok {
					c.Err(fmt.Errorf("unknown error %q", arg))
					return
				}
				bits |= bit
			}
			if bits == 0 {
				c.Err(fmt.Errorf("error kind required"))
				return
			}
			sh.ShellFrom(c).Session.Device.InjectError(sercom.ID(p.Snapshot().Unit), bits)
		}),
	}

	// EchoCmd switches echo.
	EchoCmd = ishell.Cmd{
		Name: "echo",
		Help: "[NAME] on|off",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("on|off required"))
				return
			}
			switch c.Args[len(c.Args)-1] {
			case "on":
				c.Args = c.Args[:len(c.Args)-1]
				apply(c, bridge.CmdEchoOn)
			case "off":
				c.Args = c.Args[:len(c.Args)-1]
				apply(c, bridge.CmdEchoOff)
			default:
				c.Err(fmt.Errorf("on|off required"))
			}
		}),
	}

	// ResetCmd resets buffers or errors.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "[NAME] rx|tx|errors",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("rx|tx|errors required"))
				return
			}
			what := c.Args[len(c.Args)-1]
			c.Args = c.Args[:len(c.Args)-1]
			switch what {
			case "rx":
				apply(c, bridge.CmdResetRX)
			case "tx":
				apply(c, bridge.CmdResetTX)
			case "errors":
				apply(c, bridge.CmdClearErrors)
			default:
				c.Err(fmt.Errorf("unknown reset %q", what))
			}
		}),
	}

	// MatchCmd checks the received bytes end with a string.
	MatchCmd = ishell.Cmd{
		Name: "match",
		Help: "[NAME] STRING [SHIFT]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			ctl, err := sh.UART(c)
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("STRING required"))
				return
			}
			var shift int
			if len(c.Args) > 1 {
				if shift, err = strconv.Atoi(c.Args[1]); err != nil {
					c.Err(fmt.Errorf("invalid SHIFT %q", c.Args[1]))
					return
				}
			}
			s, err := Unescape(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			matched := ctl.ReceiveString(s, shift, false)
			sh.Print(c, matched, strconv.FormatBool(matched))
		}),
	}

	// ParamCmd reads an integer parameter after a prefix.
	ParamCmd = ishell.Cmd{
		Name: "param",
		Help: "[NAME] PREFIX",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			ctl, err := sh.UART(c)
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("PREFIX required"))
				return
			}
			v, ok := ctl.ReceiveParam(c.Args[0], '\n', buffer.DefaultMaxDigits)
			if !ok {
				c.Err(fmt.Errorf("no parameter"))
				return
			}
			sh.Print(c, v, strconv.FormatUint(uint64(v), 10))
		}),
	}
)

func init() {
	sh.AddCmds(
		&TransmitCmd,
		&TransmitHexCmd,
		&ReceiveCmd,
		&InjectCmd,
		&InjectErrorCmd,
		&EchoCmd,
		&ResetCmd,
		&MatchCmd,
		&ParamCmd,
	)
}
