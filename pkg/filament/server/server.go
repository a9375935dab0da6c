package server

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/watt-toolkit/filament/pkg/filament/cgi"
	"github.com/watt-toolkit/filament/pkg/filament/config"
	"github.com/watt-toolkit/filament/pkg/filament/poller"
	"github.com/watt-toolkit/filament/pkg/filament/socket"
)

// Server owns the listeners, the poller, the registry and the CGI engine,
// and runs the single-threaded event loop over them.
type Server struct {
	cfg      *config.Config
	log      *logrus.Logger
	poller   *poller.Poller
	registry *Registry
	cgi      *cgi.Engine
	sockCfg  *socket.Config

	// listeners maps a listening descriptor to the index of the server
	// block it was bound for.
	listeners map[int]int

	stopping atomic.Bool
}

// New validates the configuration, binds every configured endpoint and
// registers the listeners with a fresh poller. Any failure unwinds all
// descriptors created so far.
func New(cfg *config.Config, log *logrus.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p, err := poller.New()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		log:       log,
		poller:    p,
		registry:  NewRegistry(p, log),
		cgi:       cgi.NewEngine(log),
		sockCfg:   socket.DefaultConfig(),
		listeners: make(map[int]int),
	}

	for i := 0; i < cfg.ServerCount(); i++ {
		srv := cfg.GetServer(i)
		fd, err := socket.Listen(srv.Host, srv.Port, s.sockCfg)
		if err != nil {
			s.closeListeners()
			p.Close()
			return nil, err
		}
		if err := p.Add(fd, true, false); err != nil {
			unix.Close(fd)
			s.closeListeners()
			p.Close()
			return nil, fmt.Errorf("server: register listener: %w", err)
		}
		s.listeners[fd] = i
		log.WithFields(logrus.Fields{
			"host": srv.Host,
			"port": srv.Port,
		}).Info("listening")
	}
	return s, nil
}

// Shutdown asks the event loop to stop. Safe to call from a signal
// handler goroutine; the loop notices within one poll timeout.
func (s *Server) Shutdown() {
	s.stopping.Store(true)
}

func (s *Server) closeListeners() {
	for fd := range s.listeners {
		s.poller.Remove(fd)
		unix.Close(fd)
	}
	s.listeners = make(map[int]int)
}

// cleanup releases everything the server owns, children included.
func (s *Server) cleanup() {
	s.registry.CloseAll(s.killConnCGI)
	s.closeListeners()
	s.poller.Close()
	s.log.Info("server shutdown complete")
}

// killConnCGI terminates a connection's child when the connection goes
// away mid-CGI.
func (s *Server) killConnCGI(c *Conn) {
	if c.CGI != nil {
		s.cgi.Kill(c.CGI)
	}
}
