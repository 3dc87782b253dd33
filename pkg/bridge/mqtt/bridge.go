package mqtt

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/bridge"
	"github.com/robotalks/sercom.go/pkg/telemetry"
)

// Topic kinds under <board>/<name>/.
const (
	// TopicRX carries bytes received by the controller.
	TopicRX = "rx"
	// TopicTX carries bytes for the controller to transmit.
	TopicTX = "tx"
	// TopicStatus carries the retained telemetry.Status.
	TopicStatus = "status"
	// TopicCtl carries control commands, see bridge.Apply.
	TopicCtl = "ctl"
	// TopicData carries telemetry.Data of both directions.
	TopicData = "data"
)

// Topic builds the topic of a controller.
func Topic(board, name, kind string) string {
	return board + "/" + name + "/" + kind
}

// ParseTopic splits a topic built by Topic.
func ParseTopic(topic string) (board, name, kind string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// Bridge publishes the controllers of a board.
type Bridge struct {
	Queue *Queue
	Board string

	lock sync.Mutex
	subs []*Subscription
}

// New creates a Bridge.
func New(q *Queue, board string) *Bridge {
	return &Bridge{Queue: q, Board: board}
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "mqtt"
}

// ReadWriter creates the packet transport of a controller: it reads
// from the tx topic and writes to the rx topic.
func (b *Bridge) ReadWriter(name string) *ReadWriter {
	rw := newReadWriter(b.Queue, Topic(b.Board, name, TopicRX))
	rw.sub = b.Queue.Sub(Topic(b.Board, name, TopicTX), rw.handleMsg)
	return rw
}

// Control subscribes the control topic of a controller.
func (b *Bridge) Control(name string, port bridge.Port) {
	sub := b.Queue.Sub(Topic(b.Board, name, TopicCtl), func(topic string, payload []byte) {
		cmd := strings.TrimSpace(string(payload))
		if err := bridge.Apply(port, cmd); err != nil {
			glog.Warningf("mqtt %s: %s: %v", name, cmd, err)
			return
		}
		glog.Infof("mqtt %s: %s", name, cmd)
	})
	b.lock.Lock()
	b.subs = append(b.subs, sub)
	b.lock.Unlock()
}

// Attach subscribes the control topic and creates the pump moving the
// data of a controller. The pump needs to be run.
func (b *Bridge) Attach(name string, port bridge.Port) *bridge.Pump {
	b.Control(name, port)
	pump := bridge.NewPump(name, port, b.ReadWriter(name))
	pump.Tap = b
	return pump
}

// PublishStatus implements bridge.StatusPublisher.
func (b *Bridge) PublishStatus(st *telemetry.Status) error {
	data, err := telemetry.Encode(st)
	if err != nil {
		return err
	}
	b.Queue.PubWith(Topic(b.Board, st.Name, TopicStatus), data, 0, true)
	return nil
}

// Tap implements bridge.Tap.
func (b *Bridge) Tap(name string, dir telemetry.Direction, payload []byte) {
	data, err := telemetry.Encode(&telemetry.Data{
		Board:     b.Board,
		Name:      name,
		Direction: dir,
		Payload:   payload,
		Timestamp: telemetry.Now(),
	})
	if err != nil {
		glog.Errorf("mqtt %s: encode data: %v", name, err)
		return
	}
	b.Queue.Pub(Topic(b.Board, name, TopicData), data)
}

// Run implements framework.Runnable. It connects and stays connected
// until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	token := b.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	<-ctx.Done()
	b.lock.Lock()
	for _, sub := range b.subs {
		sub.Close()
	}
	b.subs = nil
	b.lock.Unlock()
	b.Queue.Close()
	return ctx.Err()
}

// ReadWriter implements bridge.PacketReadWriter over two topics.
type ReadWriter struct {
	Queue    *Queue
	PubTopic string

	sub      *Subscription
	packetCh chan []byte
	doneCh   chan struct{}
	once     sync.Once
}

func newReadWriter(q *Queue, pub string) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		PubTopic: pub,
		packetCh: make(chan []byte, 16),
		doneCh:   make(chan struct{}),
	}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.doneCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	var err error
	p.once.Do(func() {
		close(p.doneCh)
		if p.sub != nil {
			err = p.sub.Close()
		}
	})
	return err
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.doneCh:
	}
}
