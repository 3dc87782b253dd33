// Package board loads the board file describing the controllers of a
// simulated board and builds them.
package board

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/sercom.go/pkg/hal"
	"github.com/robotalks/sercom.go/pkg/sercom"
)

// ErrInvalid indicates an invalid board file.
var ErrInvalid = errors.New("invalid board")

// Board is the content of a board file.
type Board struct {
	Name        string        `yaml:"name"`
	MQTT        string        `yaml:"mqtt,omitempty"`
	WebSocket   string        `yaml:"websocket,omitempty"`
	Controllers []*Controller `yaml:"controllers"`
}

// Controller describes one controller.
type Controller struct {
	Name     string `yaml:"name"`
	Protocol string `yaml:"protocol"`
	Unit     uint8  `yaml:"unit"`
	// AnyUnit claims the first free unit routing the pins.
	AnyUnit bool   `yaml:"any_unit,omitempty"`
	Baud    uint32 `yaml:"baud,omitempty"`
	Pads    string `yaml:"pads,omitempty"`
	TXSize  int    `yaml:"tx_size,omitempty"`
	RXSize  int    `yaml:"rx_size,omitempty"`

	// UART line setup.
	Parity   string `yaml:"parity,omitempty"`
	StopBits int    `yaml:"stop_bits,omitempty"`
	Echo     bool   `yaml:"echo,omitempty"`

	// SPI setup.
	Mode   int  `yaml:"mode,omitempty"`
	LSB    bool `yaml:"lsb,omitempty"`
	Client bool `yaml:"client,omitempty"`

	// Simulated wiring: loop TX back to RX, or cross-wire with another
	// UART.
	Loopback bool   `yaml:"loopback,omitempty"`
	Connect  string `yaml:"connect,omitempty"`

	// Application: "console" runs the command console, "link" serves
	// link frames.
	App string `yaml:"app,omitempty"`

	// Bridges. A UART has at most one of App, TCP and Port, the others
	// are served over websocket or MQTT.
	TCP    string `yaml:"tcp,omitempty"`
	Framed bool   `yaml:"framed,omitempty"`
	Port   string `yaml:"port,omitempty"`
}

// Protocols and applications.
const (
	ProtocolUART = "uart"
	ProtocolSPI  = "spi"

	AppConsole = "console"
	AppLink    = "link"
)

// Load reads a board file.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Parse parses and validates the content of a board file.
func Parse(data []byte) (*Board, error) {
	var b Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Marshal encodes the board as YAML.
func (b *Board) Marshal() ([]byte, error) {
	return yaml.Marshal(b)
}

// Find returns the controller named name.
func (b *Board) Find(name string) *Controller {
	for _, c := range b.Controllers {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks names, protocols and references.
func (b *Board) Validate() error {
	if b.Name == "" {
		return invalid("name is required")
	}
	names := make(map[string]bool)
	for n, c := range b.Controllers {
		if c.Name == "" {
			return invalid("controller %d: name is required", n)
		}
		if names[c.Name] {
			return invalid("controller %s: duplicated name", c.Name)
		}
		names[c.Name] = true
		if !sercom.ID(c.Unit).IsValid() {
			return invalid("controller %s: unknown unit %d", c.Name, c.Unit)
		}
		var err error
		switch c.Protocol {
		case ProtocolUART:
			_, err = c.UART()
		case ProtocolSPI:
			_, err = c.SPI()
			if err == nil && (c.Loopback || c.Connect != "" || c.App == AppConsole || c.TCP != "" || c.Port != "") {
				err = errors.New("wiring, console and bridges are UART only")
			}
		default:
			err = fmt.Errorf("unknown protocol %q", c.Protocol)
		}
		if err != nil {
			return invalid("controller %s: %v", c.Name, err)
		}
		switch c.App {
		case "", AppConsole, AppLink:
		default:
			return invalid("controller %s: unknown app %q", c.Name, c.App)
		}
		consumers := 0
		for _, set := range []bool{c.App != "", c.TCP != "", c.Port != ""} {
			if set {
				consumers++
			}
		}
		if consumers > 1 {
			return invalid("controller %s: app, tcp and port are exclusive", c.Name)
		}
	}
	partners := make(map[string]string)
	for _, c := range b.Controllers {
		if c.Connect == "" {
			continue
		}
		peer := b.Find(c.Connect)
		if peer == nil || peer == c || peer.Protocol != ProtocolUART || peer.Loopback {
			return invalid("controller %s: cannot connect to %q", c.Name, c.Connect)
		}
		if c.Loopback {
			return invalid("controller %s: loopback and connect are exclusive", c.Name)
		}
		for _, pair := range [][2]string{{c.Name, peer.Name}, {peer.Name, c.Name}} {
			if p, ok := partners[pair[0]]; ok && p != pair[1] {
				return invalid("controller %s: already connected to %q", pair[0], p)
			}
			partners[pair[0]] = pair[1]
		}
	}
	return nil
}

// UART returns the peripheral of a UART controller.
func (c *Controller) UART() (hal.UARTPeripheral, error) {
	p := hal.DefaultUART(sercom.ID(c.Unit))
	if c.Baud != 0 {
		p.Baud = c.Baud
	}
	if _, err := hal.UARTBaud(p.Baud); err != nil {
		return p, err
	}
	if c.Pads != "" {
		pads, err := sercom.ParsePadConfig(c.Pads)
		if err != nil {
			return p, err
		}
		p.Pads = pads
	}
	switch c.Parity {
	case "", "none":
	case "even":
		p.Parity = hal.ParityEven
	case "odd":
		p.Parity = hal.ParityOdd
	default:
		return p, fmt.Errorf("unknown parity %q", c.Parity)
	}
	switch c.StopBits {
	case 0, 1:
	case 2:
		p.StopBits = hal.TwoStopBits
	default:
		return p, fmt.Errorf("invalid stop bits %d", c.StopBits)
	}
	return p, nil
}

// SPI returns the peripheral of a SPI controller.
func (c *Controller) SPI() (hal.SPIPeripheral, error) {
	p := hal.DefaultSPI(sercom.ID(c.Unit))
	if c.Baud != 0 {
		p.Baud = c.Baud
	}
	if _, err := hal.SPIBaud(p.Baud); err != nil {
		return p, err
	}
	if c.Pads != "" {
		pads, err := sercom.ParseSPIPadConfig(c.Pads)
		if err != nil {
			return p, err
		}
		p.Pads = pads
	}
	if c.Mode < 0 || c.Mode > int(hal.Mode3) {
		return p, fmt.Errorf("invalid clock mode %d", c.Mode)
	}
	p.ClockMode = hal.ClockMode(c.Mode)
	if c.LSB {
		p.Endianness = hal.LSB
	}
	p.Client = c.Client
	return p, nil
}
