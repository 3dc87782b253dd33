package link

import (
	"context"
	"sync"
)

// Result is the reply to a request.
type Result struct {
	Err  error
	Code byte
	Data []byte
}

// Request is a sent request waiting for its reply.
type Request struct {
	seq      Seq
	resultCh chan Result
	next     *Request
}

// Seq returns the sequence number of the request frame.
func (r *Request) Seq() Seq {
	return r.seq
}

// Result returns the chan receiving the reply.
func (r *Request) Result() <-chan Result {
	return r.resultCh
}

// Wait waits for the reply.
func (r *Request) Wait(ctx context.Context) Result {
	select {
	case res := <-r.resultCh:
		return res
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

// Client sends requests over a Link and dispatches replies and events.
type Client struct {
	link    *Link
	eventCh chan *Frame
	stateCh chan State

	lock sync.Mutex
	head *Request
	tail *Request
}

// NewClient creates a Client handling the frames of l.
func NewClient(l *Link) *Client {
	c := &Client{
		link:    l,
		eventCh: make(chan *Frame, 16),
		stateCh: make(chan State, 4),
	}
	l.Handler = c
	l.Notifier = StateChangedFunc(func(ctx context.Context, s State) {
		select {
		case c.stateCh <- s:
		default:
		}
	})
	return c
}

// Link returns the underlying link.
func (c *Client) Link() *Link {
	return c.link
}

// States receives link state changes. Changes nobody receives are
// dropped.
func (c *Client) States() <-chan State {
	return c.stateCh
}

// Events receives event frames.
func (c *Client) Events() <-chan *Frame {
	return c.eventCh
}

// Send sends a request with code and data.
func (c *Client) Send(code byte, data []byte) *Request {
	req := &Request{resultCh: make(chan Result, 1)}
	f := &Frame{Code: code &^ (CodeEvent | CodeError), Data: data}

	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.link.Send(f); err != nil {
		req.resultCh <- Result{Err: err}
		return req
	}
	req.seq = f.Seq
	if c.head == nil {
		c.head = req
	} else {
		c.tail.next = req
	}
	c.tail = req
	return req
}

// Do sends a request and waits for the reply.
func (c *Client) Do(ctx context.Context, code byte, data []byte) ([]byte, error) {
	res := c.Send(code, data).Wait(ctx)
	return res.Data, res.Err
}

// HandleFrame implements FrameHandler.
func (c *Client) HandleFrame(ctx context.Context, f *Frame) {
	if f.IsEvent() {
		select {
		case c.eventCh <- f:
		case <-ctx.Done():
		}
		return
	}
	if len(f.Data) == 0 || !Seq(f.Data[0]).IsValid() {
		return
	}
	seq := Seq(f.Data[0])

	c.lock.Lock()
	var skipped, req *Request
	for req = c.head; req != nil; req = req.next {
		if req.seq == seq {
			break
		}
	}
	if req != nil {
		skipped = c.head
		if c.head = req.next; c.head == nil {
			c.tail = nil
		}
		req.next = nil
	}
	c.lock.Unlock()
	if req == nil {
		return
	}
	for ; skipped != req; skipped = skipped.next {
		skipped.resultCh <- Result{Err: ErrNoReply}
	}
	if f.Code&CodeError != 0 {
		req.resultCh <- Result{Err: &CommandError{Code: f.Code &^ CodeError}}
		return
	}
	req.resultCh <- Result{Code: f.Code, Data: f.Data[1:]}
}

// Run implements framework.Runnable.
func (c *Client) Run(ctx context.Context) error {
	return c.link.Run(ctx)
}
