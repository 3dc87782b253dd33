package stream

import (
	"context"
	"net"

	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/bridge"
	"github.com/robotalks/sercom.go/pkg/framework"
)

// Server accepts TCP connections and pumps each one into the named port. Only
// one connection is served at a time.
type Server struct {
	ListenAddr string
	Port       bridge.Port
	Tap        bridge.Tap
	// Framed uses length prefixed packets instead of raw bytes.
	Framed bool

	name     string
	listener net.Listener
}

// NewServer creates a Server.
func NewServer(name, addr string, port bridge.Port) *Server {
	return &Server{ListenAddr: addr, Port: port, name: name}
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return s.name
}

// Listen starts listening. Run calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	glog.Infof("tcp %s: listening on %s", s.name, s.listener.Addr())
	return framework.RunWithContextCloser(ctx, s.listener, func() error {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				return err
			}
			s.serve(ctx, conn)
		}
	})
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	glog.Infof("tcp %s: connected %s", s.name, conn.RemoteAddr())
	var rw bridge.PacketReadWriter
	if s.Framed {
		rw = New(conn)
	} else {
		rw = NewRaw(conn)
	}
	pump := bridge.NewPump(s.name, s.Port, rw)
	pump.Tap = s.Tap
	err := pump.Run(ctx)
	glog.Infof("tcp %s: disconnected %s: %v", s.name, conn.RemoteAddr(), err)
}
