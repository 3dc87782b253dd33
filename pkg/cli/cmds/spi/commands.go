// Package spi provides the shell commands of SPI controllers.
package spi

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/sercom.go/pkg/cli/cmds/serial"
	"github.com/robotalks/sercom.go/pkg/cli/sh"
)

// TransferTimeout bounds a transfer started from the shell.
var TransferTimeout = time.Second

type transferResult struct {
	Status byte   `json:"status"`
	Data   string `json:"data"`
}

var (
	// TransferCmd runs a host procedure.
	TransferCmd = ishell.Cmd{
		Name:    "xfer",
		Aliases: []string{"transfer"},
		Help:    "[NAME] HEX... [+N]  (write bytes, then clock N dummy bytes)",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			ctl, err := sh.SPI(c)
			if err != nil {
				c.Err(err)
				return
			}
			args, numRead := c.Args, 0
			if n := len(args); n > 0 && len(args[n-1]) > 1 && args[n-1][0] == '+' {
				if numRead, err = strconv.Atoi(args[n-1][1:]); err != nil || numRead < 0 {
					c.Err(fmt.Errorf("invalid read count %q", args[n-1]))
					return
				}
				args = args[:n-1]
			}
			out, err := serial.ParseHex(args)
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), TransferTimeout)
			defer cancel()
			status, in, err := ctl.Transfer(ctx, out, numRead)
			if err != nil {
				c.Err(err)
				return
			}
			res := transferResult{Status: status, Data: hex.EncodeToString(in)}
			sh.Print(c, res, fmt.Sprintf("status %02x data %s", res.Status, res.Data))
		}),
	}

	// SelectCmd drives the client select line.
	SelectCmd = ishell.Cmd{
		Name: "ss",
		Help: "[NAME] low|high",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			ctl, err := sh.SPI(c)
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("low|high required"))
				return
			}
			switch c.Args[0] {
			case "low":
				ctl.SSLow()
			case "high":
				ctl.SSHigh()
			default:
				c.Err(fmt.Errorf("low|high required"))
			}
		}),
	}

	// RespondCmd sets the simulated client answering transfers: the
	// given bytes are clocked in one after another, then zeros.
	RespondCmd = ishell.Cmd{
		Name: "respond",
		Help: "[NAME] HEX...",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			ctl, err := sh.SPI(c)
			if err != nil {
				c.Err(err)
				return
			}
			script, err := serial.ParseHex(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.ShellFrom(c).Session.Device.SetResponder(ctl.ID(), func(byte) byte {
				if len(script) == 0 {
					return 0
				}
				b := script[0]
				script = script[1:]
				return b
			})
		}),
	}
)

func init() {
	sh.AddCmds(
		&TransferCmd,
		&SelectCmd,
		&RespondCmd,
	)
}
