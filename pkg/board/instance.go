package board

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/bridge"
	"github.com/robotalks/sercom.go/pkg/framework"
	"github.com/robotalks/sercom.go/pkg/sercom"
	"github.com/robotalks/sercom.go/pkg/sercom/sim"
	"github.com/robotalks/sercom.go/pkg/spi"
	"github.com/robotalks/sercom.go/pkg/uart"
)

// Instance holds the controllers built from a Board.
type Instance struct {
	Board  *Board
	Device sercom.Device
	Pool   *sercom.Pool
	UARTs  map[string]*uart.Controller
	SPIs   map[string]*spi.Controller

	ports []bridge.NamedPort
}

// Build creates the controllers of b on dev. Wiring is applied when dev
// is simulated.
func Build(b *Board, dev sercom.Device, pool *sercom.Pool) (*Instance, error) {
	inst := &Instance{
		Board:  b,
		Device: dev,
		Pool:   pool,
		UARTs:  make(map[string]*uart.Controller),
		SPIs:   make(map[string]*spi.Controller),
	}
	for _, c := range b.Controllers {
		if err := inst.build(c); err != nil {
			inst.Close()
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	if simDev, ok := dev.(*sim.Device); ok {
		inst.wire(simDev)
	}
	return inst, nil
}

func (i *Instance) build(c *Controller) error {
	switch c.Protocol {
	case ProtocolUART:
		p, err := c.UART()
		if err != nil {
			return err
		}
		ctl, err := uart.New(i.Device, i.Pool, p, uart.Options{
			Name:    c.Name,
			TXSize:  c.TXSize,
			RXSize:  c.RXSize,
			AnyUnit: c.AnyUnit,
		})
		if err != nil {
			return err
		}
		ctl.EchoRx(c.Echo)
		i.UARTs[c.Name] = ctl
		i.ports = append(i.ports, ctl)
		glog.Infof("board %s: %s on %s", i.Board.Name, c.Name, ctl.ID())
	case ProtocolSPI:
		p, err := c.SPI()
		if err != nil {
			return err
		}
		ctl, err := spi.New(i.Device, i.Pool, p, spi.Options{
			Name:    c.Name,
			TXSize:  c.TXSize,
			RXSize:  c.RXSize,
			AnyUnit: c.AnyUnit,
		})
		if err != nil {
			return err
		}
		i.SPIs[c.Name] = ctl
		i.ports = append(i.ports, ctl)
		glog.Infof("board %s: %s on %s", i.Board.Name, c.Name, ctl.ID())
	default:
		return fmt.Errorf("unknown protocol %q", c.Protocol)
	}
	return nil
}

func (i *Instance) wire(dev *sim.Device) {
	wired := make(map[string]bool)
	for _, c := range i.Board.Controllers {
		ctl := i.UARTs[c.Name]
		if ctl == nil || wired[c.Name] {
			continue
		}
		switch {
		case c.Loopback:
			dev.Loopback(ctl.ID())
		case c.Connect != "":
			dev.Connect(ctl.ID(), i.UARTs[c.Connect].ID())
			wired[c.Connect] = true
		}
	}
}

// Ports returns the controllers in board order.
func (i *Instance) Ports() []bridge.NamedPort {
	return i.ports
}

// Snapshotters returns the controllers as status sources.
func (i *Instance) Snapshotters() []bridge.Snapshotter {
	srcs := make([]bridge.Snapshotter, 0, len(i.ports))
	for _, p := range i.ports {
		srcs = append(srcs, p)
	}
	return srcs
}

// Port returns the controller named name.
func (i *Instance) Port(name string) bridge.NamedPort {
	for _, p := range i.ports {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// AddToLoop implements framework.LoopAdder. Controller tasks run at
// service priority.
func (i *Instance) AddToLoop(loop *framework.Loop) {
	for _, c := range i.Board.Controllers {
		if ctl := i.UARTs[c.Name]; ctl != nil {
			loop.AddController(framework.PrLvService, ctl)
		}
		if ctl := i.SPIs[c.Name]; ctl != nil {
			loop.AddController(framework.PrLvService, ctl)
		}
	}
}

// Close closes all controllers.
func (i *Instance) Close() error {
	var errs framework.AggregatedError
	for _, ctl := range i.UARTs {
		errs.Add(ctl.Close())
	}
	for _, ctl := range i.SPIs {
		errs.Add(ctl.Close())
	}
	return errs.Aggregate()
}
