package serial

import (
	"context"
	"os"
	"time"
)

// RetryInterval is how often Stream retries a write on a full TX buffer.
var RetryInterval = time.Millisecond

// Stream adapts a Controller to io.ReadWriter. Reads block until a byte
// arrives, ReadTimeout expires or the context is done.
type Stream[E ErrorCode] struct {
	C           *Controller[E]
	ReadTimeout time.Duration

	ctx context.Context
}

// NewStream creates a Stream bound to ctx.
func NewStream[E ErrorCode](ctx context.Context, c *Controller[E]) *Stream[E] {
	return &Stream[E]{C: c, ctx: ctx}
}

// Read implements io.Reader.
func (s *Stream[E]) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var timeout <-chan time.Time
	if s.ReadTimeout > 0 {
		timer := time.NewTimer(s.ReadTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	for {
		if n := s.C.ReceivePacket(p); n > 0 {
			return n, nil
		}
		select {
		case <-s.ctx.Done():
			return 0, s.ctx.Err()
		case <-timeout:
			return 0, os.ErrDeadlineExceeded
		case <-s.C.Notify():
		}
	}
}

// Write implements io.Writer. Data larger than the TX buffer is queued
// in chunks.
func (s *Stream[E]) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		chunk := p[written:]
		if limit := s.C.TXCap(); len(chunk) > limit {
			chunk = chunk[:limit]
		}
		if s.C.TransmitPacket(chunk) {
			written += len(chunk)
			continue
		}
		if !s.C.Status().On {
			return written, ErrNotOn
		}
		select {
		case <-s.ctx.Done():
			return written, s.ctx.Err()
		case <-time.After(RetryInterval):
		}
	}
	return written, nil
}
