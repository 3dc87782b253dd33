package bridge

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/framework"
	"github.com/robotalks/sercom.go/pkg/telemetry"
)

// RetryInterval is how often a Pump retries queueing into a full TX
// buffer.
var RetryInterval = time.Millisecond

// Pump moves bytes received by a Port to a PacketWriter, and packets
// read from a PacketReader into the Port for transmission. It is named
// after the port.
type Pump struct {
	Port Port
	RW   PacketReadWriter
	Tap  Tap
	// MaxPacket limits the size of uplink packets, defaults to 64.
	MaxPacket int
	// Linger is how long an uplink packet waits for more bytes before
	// being written.
	Linger time.Duration

	name string
}

// NewPump creates a Pump.
func NewPump(name string, port Port, rw PacketReadWriter) *Pump {
	return &Pump{Port: port, RW: rw, name: name}
}

// Name implements framework.Named.
func (p *Pump) Name() string {
	return p.name
}

// Run implements framework.Runnable. It returns when either direction
// fails or ctx is done. RW is closed on return.
func (p *Pump) Run(parent context.Context) error {
	defer p.closeRW()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	upCh := make(chan error, 1)
	go func() {
		upCh <- p.uplink(ctx)
		cancel()
	}()
	downErr := framework.RunWithContextCancel(ctx, p.closeRW, func() error {
		return p.downlink(ctx)
	})
	cancel()
	upErr := <-upCh

	var errs framework.AggregatedError
	for _, err := range []error{upErr, downErr} {
		if err != nil && !errors.Is(err, context.Canceled) {
			errs.Add(err)
		}
	}
	if err := errs.Aggregate(); err != nil {
		return err
	}
	return parent.Err()
}

func (p *Pump) closeRW() {
	if closer, ok := p.RW.(io.Closer); ok {
		closer.Close()
	}
}

func (p *Pump) tap(dir telemetry.Direction, data []byte) {
	if p.Tap != nil {
		p.Tap.Tap(p.name, dir, data)
	}
}

func (p *Pump) uplink(ctx context.Context) error {
	size := p.MaxPacket
	if size <= 0 {
		size = 64
	}
	buf := make([]byte, size)
	for {
		n := p.Port.ReceivePacket(buf)
		if n == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.Port.Notify():
			}
			continue
		}
		if n < len(buf) && p.Linger > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Linger):
			}
			n += p.Port.ReceivePacket(buf[n:])
		}
		pkt := append([]byte(nil), buf[:n]...)
		glog.V(2).Infof("%s: up %d bytes", p.name, n)
		p.tap(telemetry.Direction_RX, pkt)
		if err := p.RW.WritePacket(pkt); err != nil {
			return err
		}
	}
}

func (p *Pump) downlink(ctx context.Context) error {
	for {
		pkt, err := p.RW.ReadPacket()
		if err != nil {
			return err
		}
		glog.V(2).Infof("%s: down %d bytes", p.name, len(pkt))
		if err := Transmit(ctx, p.Port, pkt); err != nil {
			return err
		}
		p.tap(telemetry.Direction_TX, pkt)
	}
}

// Transmit queues data on the port in chunks no larger than the TX
// buffer, waiting for space as needed.
func Transmit(ctx context.Context, port Port, data []byte) error {
	for len(data) > 0 {
		chunk := data
		if limit := port.TXCap(); len(chunk) > limit {
			chunk = chunk[:limit]
		}
		if port.TransmitPacket(chunk) {
			data = data[len(chunk):]
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(RetryInterval):
		}
	}
	return nil
}
