package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/net/websocket"

	"github.com/robotalks/sercom.go/pkg/bridge"
	"github.com/robotalks/sercom.go/pkg/framework"
)

// PathPrefix is where ports are served.
const PathPrefix = "/ws/"

// Server serves ports over websockets, one connection per port at a
// time. Binary messages are written to the port and received bytes are
// sent back as binary messages.
type Server struct {
	ListenAddr string
	Tap        bridge.Tap

	lock  sync.Mutex
	ports map[string]bridge.Port
	busy  map[string]bool
	ctx   context.Context
}

// NewServer creates a Server.
func NewServer(addr string) *Server {
	return &Server{
		ListenAddr: addr,
		ports:      make(map[string]bridge.Port),
		busy:       make(map[string]bool),
		ctx:        context.Background(),
	}
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "websocket"
}

// Add exposes a port under name.
func (s *Server) Add(name string, port bridge.Port) *Server {
	s.lock.Lock()
	s.ports[name] = port
	s.lock.Unlock()
	return s
}

// Names returns the sorted names of the ports.
func (s *Server) Names() []string {
	s.lock.Lock()
	names := maps.Keys(s.ports)
	s.lock.Unlock()
	slices.Sort(names)
	return names
}

func (s *Server) acquire(name string) (bridge.Port, context.Context, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	port := s.ports[name]
	if port == nil || s.busy[name] {
		return nil, nil, false
	}
	s.busy[name] = true
	return port, s.ctx, true
}

func (s *Server) release(name string) {
	s.lock.Lock()
	delete(s.busy, name)
	s.lock.Unlock()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, PathPrefix) {
		http.NotFound(w, r)
		return
	}
	name := r.URL.Path[len(PathPrefix):]
	port, ctx, ok := s.acquire(name)
	if !ok {
		s.lock.Lock()
		_, exists := s.ports[name]
		s.lock.Unlock()
		if exists {
			http.Error(w, "port in use", http.StatusConflict)
		} else {
			http.NotFound(w, r)
		}
		return
	}
	defer s.release(name)
	websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		glog.Infof("ws %s: connected %s", name, r.RemoteAddr)
		pump := bridge.NewPump(name, port, New(conn))
		pump.Tap = s.Tap
		err := pump.Run(ctx)
		glog.Infof("ws %s: disconnected %s: %v", name, r.RemoteAddr, err)
	}).ServeHTTP(w, r)
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.lock.Lock()
	s.ctx = ctx
	s.lock.Unlock()
	glog.Infof("websocket: listening on %s", ln.Addr())
	srv := &http.Server{Handler: s}
	err := framework.RunWithContextCancel(ctx, func() {
		srv.Close()
	}, func() error {
		return srv.Serve(ln)
	})
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}
