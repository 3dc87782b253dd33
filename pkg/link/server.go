package link

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"
)

// CommandHandler answers a request. A *CommandError is replied with its
// code, any other error with ErrCodeFailed.
type CommandHandler func(ctx context.Context, data []byte) ([]byte, error)

// Server answers requests received over a Link.
type Server struct {
	link *Link

	lock     sync.RWMutex
	handlers map[byte]CommandHandler
}

// NewServer creates a Server handling the frames of l.
func NewServer(l *Link) *Server {
	s := &Server{link: l, handlers: make(map[byte]CommandHandler)}
	l.Handler = s
	return s
}

// Link returns the underlying link.
func (s *Server) Link() *Link {
	return s.link
}

// Handle registers the handler of a request code.
func (s *Server) Handle(code byte, h CommandHandler) *Server {
	s.lock.Lock()
	s.handlers[code&^(CodeEvent|CodeError)] = h
	s.lock.Unlock()
	return s
}

// Emit sends an event frame.
func (s *Server) Emit(code byte, data []byte) error {
	return s.link.Send(&Frame{Code: code | CodeEvent, Data: data})
}

// HandleFrame implements FrameHandler.
func (s *Server) HandleFrame(ctx context.Context, f *Frame) {
	if f.IsEvent() {
		glog.V(2).Infof("link: ignore event %s", f)
		return
	}
	s.lock.RLock()
	h := s.handlers[f.Code]
	s.lock.RUnlock()

	code := f.Code
	var out []byte
	if h == nil {
		code = ErrCodeUnknown | CodeError
	} else {
		data, err := h(ctx, f.Data)
		var cmdErr *CommandError
		switch {
		case errors.As(err, &cmdErr):
			code = cmdErr.Code | CodeError
		case err != nil:
			glog.Warningf("link: command %02x: %v", f.Code, err)
			code = ErrCodeFailed | CodeError
		default:
			out = data
		}
	}
	if len(out) >= MaxData {
		glog.Warningf("link: command %02x: reply of %d bytes truncated", f.Code, len(out))
		out = out[:MaxData-1]
	}
	reply := &Frame{Code: code, Data: append([]byte{byte(f.Seq)}, out...)}
	if err := s.link.Send(reply); err != nil {
		glog.Warningf("link: reply %s: %v", reply, err)
	}
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	return s.link.Run(ctx)
}
