package link

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// FrameHandler is called for every received frame.
type FrameHandler interface {
	HandleFrame(context.Context, *Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, *Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// StateNotifier is called when the link state changes.
type StateNotifier interface {
	StateChanged(context.Context, State)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, State)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, s State) {
	f(ctx, s)
}

// DefaultSyncTimeout is the time allowed for a sync exchange or a frame
// to complete.
const DefaultSyncTimeout = 100 * time.Millisecond

// Stats counts link traffic.
type Stats struct {
	Sent     uint64
	Received uint64
	Resyncs  uint64
}

// Link sends and receives frames over a byte stream.
type Link struct {
	RW       io.ReadWriter
	Handler  FrameHandler
	Notifier StateNotifier
	// SyncTimeout bounds a sync exchange or a partially received frame.
	SyncTimeout time.Duration
	// TimedRead is set when Read of RW gives up after a while, returning
	// a timeout error or no data. Otherwise reads run in a goroutine.
	TimedRead bool

	seq   Seq
	state State
	lock  sync.RWMutex

	timer <-chan time.Time
	dec   Decoder

	sent, received, resyncs atomic.Uint64
}

// New creates a Link over rw.
func New(rw io.ReadWriter) *Link {
	return &Link{RW: rw, SyncTimeout: DefaultSyncTimeout, seq: NewSeq()}
}

// State returns the synchronization state.
func (l *Link) State() State {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.state
}

// Stats returns the traffic counters.
func (l *Link) Stats() Stats {
	return Stats{Sent: l.sent.Load(), Received: l.received.Load(), Resyncs: l.resyncs.Load()}
}

// Send assigns the next sequence number to f and writes it.
func (l *Link) Send(f *Frame) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.state.IsReady() {
		return ErrNotReady
	}
	f.Seq = l.seq
	if _, err := f.WriteTo(l.RW); err != nil {
		return err
	}
	l.seq = l.seq.Next()
	l.sent.Add(1)
	return nil
}

// Run synchronizes with the peer and receives frames until ctx is done
// or the stream fails.
func (l *Link) Run(ctx context.Context) error {
	if err := l.apply(ctx, l.dec.Reset()); err != nil {
		return err
	}
	if l.TimedRead {
		return l.runTimed(ctx)
	}
	return l.runAsync(ctx)
}

func (l *Link) feed(ctx context.Context, p []byte) error {
	for _, b := range p {
		if err := l.apply(ctx, l.dec.Feed(b)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Link) runTimed(ctx context.Context) error {
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.timer:
			if err := l.apply(ctx, l.dec.Timeout()); err != nil {
				return err
			}
			continue
		default:
		}
		n, err := l.RW.Read(buf)
		switch {
		case err != nil && os.IsTimeout(err), err == nil && n == 0:
			err = l.apply(ctx, l.dec.Timeout())
		case err != nil:
			return err
		default:
			err = l.feed(ctx, buf[:n])
		}
		if err != nil {
			return err
		}
	}
}

func (l *Link) runAsync(ctx context.Context) error {
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(readCtx, dataCh, errCh)
	for {
		select {
		case p := <-dataCh:
			if err := l.feed(ctx, p); err != nil {
				return err
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-l.timer:
			if err := l.apply(ctx, l.dec.Timeout()); err != nil {
				return err
			}
		}
	}
}

func (l *Link) readLoop(ctx context.Context, dataCh chan<- []byte, errCh chan<- error) {
	buf := make([]byte, 64)
	for {
		n, err := l.RW.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		if n == 0 {
			continue
		}
		p := make([]byte, n)
		copy(p, buf)
		select {
		case dataCh <- p:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Link) apply(ctx context.Context, s Step) (err error) {
	var notifier StateNotifier
	l.lock.Lock()
	if l.state != s.State {
		glog.V(2).Infof("link: %s -> %s", l.state, s.State)
		l.state = s.State
		notifier = l.Notifier
	}
	if s.Ctl != 0 {
		_, err = l.RW.Write([]byte{s.Ctl, byte(l.seq)})
	}
	l.lock.Unlock()
	if err != nil {
		return
	}

	if s.Ctl == CtlREQ {
		l.resyncs.Add(1)
	}
	switch {
	case s.RestartTimer():
		l.timer = time.After(l.SyncTimeout)
	case s.State.IsReady():
		l.timer = nil
	}

	if notifier != nil {
		notifier.StateChanged(ctx, s.State)
	}
	if s.Frame != nil {
		l.received.Add(1)
		if h := l.Handler; h != nil {
			h.HandleFrame(ctx, s.Frame)
		}
	}
	return
}
