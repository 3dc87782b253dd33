// Package console is a command prompt driven by a state machine over a
// serial controller.
//
// The console starts disabled, initializes the port and waits for "on".
// Once on it prints the command list and answers "hello_world" and
// "integer_<n>" until "off" is received. Commands end with Delimiter.
package console

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/buffer"
	"github.com/robotalks/sercom.go/pkg/framework"
	"github.com/robotalks/sercom.go/pkg/fsm"
)

// Port is the serial endpoint of a console.
type Port interface {
	TransmitString(s string) bool
	TransmitInt(v uint32) bool
	ReceiveString(s string, shift int, movePointer bool) bool
	ReceiveParam(prefix string, delimiter byte, maxDigits int) (uint32, bool)
}

// State is a console state.
type State uint8

// Console states.
const (
	Disabled State = iota
	Initializing
	Off
	PromptUser
	WaitForResponse
	Hello
	Integer
	// Super is the state every state from Off on belongs to. It is never
	// current.
	Super
)

var stateNames = [...]string{
	Disabled:        "disabled",
	Initializing:    "initializing",
	Off:             "off",
	PromptUser:      "prompt-user",
	WaitForResponse: "wait-for-response",
	Hello:           "hello",
	Integer:         "integer",
	Super:           "super",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Commands.
const (
	CmdOn      = "on"
	CmdOff     = "off"
	CmdHello   = "hello_world"
	CmdInteger = "integer_"
)

// Prompt is printed when the console turns on.
var Prompt = []string{
	"Send a command to test it out!\n\n",
	"Command list:\n",
	"\"hello_world\" -> replies hello world.\n",
	"\"integer_#\" -> replies the integer #.\n",
	"\"off\" -> turn off.\n",
}

// Console is the command prompt. It implements framework.Controller and
// executes one action per loop iteration.
type Console struct {
	// Delimiter terminates commands, none when zero.
	Delimiter byte

	port    Port
	init    func() error
	name    string
	machine *fsm.Machine[State]
	param   uint32
}

// New creates a console on port. init is run in the initializing state.
func New(name string, port Port, init func() error) *Console {
	c := &Console{Delimiter: '\n', port: port, init: init, name: name}
	c.machine = fsm.New(Disabled, map[State]fsm.Action[State]{
		Disabled:        c.disabled,
		Initializing:    c.initializing,
		Off:             c.off,
		PromptUser:      c.promptUser,
		WaitForResponse: c.waitForResponse,
		Hello:           c.hello,
		Integer:         c.integer,
	})
	return c
}

// Name implements framework.Named.
func (c *Console) Name() string {
	return c.name
}

// State returns the current state.
func (c *Console) State() State {
	return c.machine.Current
}

// Param returns the last received integer.
func (c *Console) Param() uint32 {
	return c.param
}

// Step executes the action of the current state.
func (c *Console) Step() State {
	prev := c.machine.Current
	next := c.machine.ExecuteAction()
	if next != prev {
		glog.V(2).Infof("%s: %s -> %s", c.name, prev, next)
	}
	return next
}

// Control implements framework.Controller. States which act without
// input are run in the next iteration right away.
func (c *Console) Control(cc framework.ControlContext) error {
	switch c.Step() {
	case Initializing, PromptUser, Hello, Integer:
		cc.TriggerNext()
	}
	return nil
}

func (c *Console) say(s string) {
	if !c.port.TransmitString(s) {
		glog.Warningf("%s: reply dropped: %q", c.name, s)
	}
}

func (c *Console) command(cmd string) bool {
	if c.Delimiter != 0 {
		cmd += string(c.Delimiter)
	}
	return c.port.ReceiveString(cmd, 0, false)
}

func (c *Console) disabled() State {
	return Initializing
}

func (c *Console) initializing() State {
	if c.init != nil {
		if err := c.init(); err != nil {
			glog.Errorf("%s: init: %v", c.name, err)
			return Disabled
		}
	}
	return Off
}

func (c *Console) off() State {
	next := Off
	if c.command(CmdOn) {
		c.say("Received on command! Turning on...\n\n")
		next = PromptUser
	}
	fsm.ProcessSuperState(&next, Super, c.super)
	return next
}

func (c *Console) promptUser() State {
	for _, line := range Prompt {
		c.say(line)
	}
	return WaitForResponse
}

func (c *Console) waitForResponse() State {
	next := WaitForResponse
	if c.command(CmdHello) {
		next = Hello
	} else if v, ok := c.port.ReceiveParam(CmdInteger, c.Delimiter, buffer.DefaultMaxDigits); ok {
		c.param = v
		next = Integer
	}
	fsm.ProcessSuperState(&next, Super, c.super)
	return next
}

func (c *Console) hello() State {
	c.say("hello world\n")
	return WaitForResponse
}

func (c *Console) integer() State {
	c.say("Integer param: ")
	if !c.port.TransmitInt(c.param) {
		glog.Warningf("%s: reply dropped: %d", c.name, c.param)
	}
	c.say("\n")
	return WaitForResponse
}

func (c *Console) super() State {
	if c.command(CmdOff) {
		c.say("Received off command! Turning off...\n")
		return Off
	}
	return Super
}
