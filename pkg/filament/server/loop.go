package server

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/watt-toolkit/filament/pkg/filament/cgi"
	"github.com/watt-toolkit/filament/pkg/filament/config"
	"github.com/watt-toolkit/filament/pkg/filament/http11"
	"github.com/watt-toolkit/filament/pkg/filament/poller"
	"github.com/watt-toolkit/filament/pkg/filament/socket"
)

const (
	// readChunkSize bounds one recv from a client socket.
	readChunkSize = 4096

	// waitTimeoutMs is the poll block; it also paces the CGI timeout
	// scan and the shutdown-flag check.
	waitTimeoutMs = 1000
)

// Run drives the event loop until Shutdown is called or the poller fails.
// All connection state is mutated here and nowhere else.
func (s *Server) Run() error {
	defer s.cleanup()
	s.log.Info("event loop running")

	for !s.stopping.Load() {
		events, err := s.poller.Wait(waitTimeoutMs)
		if err != nil {
			return err
		}
		s.checkCGITimeouts()
		for _, ev := range events {
			s.dispatch(ev)
		}
	}
	return nil
}

// dispatch routes one readiness event: CGI pipes first, then listener
// errors (logged, listener keeps serving), listener accepts, and finally
// client I/O.
func (s *Server) dispatch(ev poller.Event) {
	if s.registry.IsPipe(ev.FD) {
		s.handlePipeEvent(ev)
		return
	}

	if _, isListener := s.listeners[ev.FD]; isListener {
		if ev.Err {
			s.log.WithField("fd", ev.FD).Error("listener error event")
			return
		}
		s.acceptClient(ev.FD)
		return
	}

	if ev.Err || ev.PeerHup {
		s.removeClient(ev.FD)
		return
	}
	if ev.Readable {
		s.handleRead(ev.FD)
	}
	if ev.Writable {
		s.handleWrite(ev.FD)
	}
}

// acceptClient takes one connection off a ready listener. Level-triggered
// notification re-fires while the backlog is non-empty, so one accept per
// event is enough.
func (s *Server) acceptClient(listenFD int) {
	fd, peer, err := socket.Accept(listenFD, s.sockCfg)
	if err != nil {
		if err != unix.EAGAIN {
			s.log.WithError(err).Error("accept failed")
		}
		return
	}
	serverIndex := s.listeners[listenFD]
	if _, err := s.registry.AddClient(fd, serverIndex); err != nil {
		s.log.WithError(err).Error("register client failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"peer": peer, "fd": fd, "server": serverIndex,
	}).Debug("connection accepted")
}

func (s *Server) removeClient(fd int) {
	s.registry.RemoveClient(fd, s.killConnCGI)
}

// setError buffers an error response for a failure that breaks request
// framing and arms the connection for sending. The connection closes after
// the response drains.
func (s *Server) setError(c *Conn, code int) {
	c.SetResponse(errorResponse(code, s.cfg.GetServer(c.ServerIndex)))
	c.ForceClose = true
	s.armWrite(c)
}

// armWrite transitions to SendingResponse and flips the poller interest.
func (s *Server) armWrite(c *Conn) {
	c.State = SendingResponse
	if err := s.registry.ArmWritable(c); err != nil {
		s.log.WithError(err).Error("arm writable failed")
		s.removeClient(c.FD)
	}
}

// handleRead makes progress on a connection in ReadingRequest: appends one
// chunk, tracks header completion and body accounting, enforces the body
// cap, and dispatches to the router once the request is whole.
func (s *Server) handleRead(fd int) {
	c, ok := s.registry.Find(fd)
	if !ok {
		return
	}
	if c.State == CgiRunning {
		// stray readable edge while the pipes drive the connection
		return
	}

	buf := make([]byte, readChunkSize)
	n, err := unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		s.removeClient(fd)
		return
	}
	if n == 0 {
		s.removeClient(fd)
		return
	}

	prevLen := len(c.RequestBuf)
	c.RequestBuf = append(c.RequestBuf, buf[:n]...)

	if !c.HeadersComplete {
		end, found := http11.HeaderEnd(c.RequestBuf, prevLen)
		if !found {
			return
		}
		c.HeadersComplete = true
		c.HeaderEnd = end
	}
	c.BodyReceived = int64(len(c.RequestBuf) - c.HeaderEnd)

	if !c.capChosen {
		s.chooseBodyCap(c)
	}

	head := c.Head()
	chunked := http11.IsChunked(head)

	if !chunked && c.MaxBodySize > 0 {
		if declared, ok := http11.ContentLength(head); ok && declared > c.MaxBodySize {
			s.setError(c, 413)
			return
		}
		if c.BodyReceived > c.MaxBodySize {
			s.setError(c, 413)
			return
		}
	}

	method := http11.Method(c.RequestBuf)
	if method == http11.MethodPOST || method == http11.MethodPUT {
		if chunked {
			if !http11.HasFinalChunk(c.Body()) {
				return
			}
		} else {
			declared, ok := http11.ContentLength(head)
			if !ok {
				s.setError(c, 411)
				return
			}
			if c.BodyReceived < declared {
				return
			}
		}
	}

	s.route(c)

	if c.State == CgiRunning {
		if err := s.registry.Disarm(c); err != nil {
			s.log.WithError(err).Error("disarm client failed")
		}
		if err := s.registry.AttachCGI(c); err != nil {
			s.log.WithError(err).Error("attach cgi pipes failed")
			s.cgi.Kill(c.CGI)
			c.CGI = nil
			s.setError(c, 500)
		}
		return
	}
	if len(c.ResponseBuf) > 0 {
		s.armWrite(c)
	}
}

// chooseBodyCap records the effective body cap the moment the headers
// complete: the longest path-aligned location's explicit limit, otherwise
// the server default.
func (s *Server) chooseBodyCap(c *Conn) {
	srv := s.cfg.GetServer(c.ServerIndex)
	c.MaxBodySize = srv.MaxBodySize
	if _, target, _, ok := http11.ParseRequestLine(c.Head()); ok {
		reqPath, _ := http11.SplitTarget(target)
		loc := srv.FindLocation(reqPath)
		c.MaxBodySize = config.EffectiveMaxBody(srv, loc)
	}
	c.capChosen = true
}

// handleWrite drains the response buffer with one send per event and
// applies the keep-alive decision when the response completes.
func (s *Server) handleWrite(fd int) {
	c, ok := s.registry.Find(fd)
	if !ok {
		return
	}
	if c.ResponseComplete() {
		s.finishResponse(c)
		return
	}

	n, err := unix.Write(fd, c.ResponseBuf[c.BytesSent:])
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		s.removeClient(fd)
		return
	}
	c.BytesSent += n

	if c.ResponseComplete() {
		s.finishResponse(c)
	}
}

// finishResponse applies the persistence rules: HTTP/1.1 stays open unless
// the client said close, HTTP/1.0 stays open only if it asked to, anything
// else closes.
func (s *Server) finishResponse(c *Conn) {
	responsesByClass.WithLabelValues(statusClass(c.ResponseBuf)).Inc()

	head := c.RequestBuf
	if c.HeadersComplete {
		head = c.Head()
	}
	_, _, version, parsed := http11.ParseRequestLine(head)
	keep := !c.ForceClose && parsed && http11.WantsKeepAlive(version, head)

	s.log.WithFields(logrus.Fields{
		"fd": c.FD, "bytes": c.BytesSent, "keepalive": keep,
	}).Debug("response sent")

	if !keep {
		s.removeClient(c.FD)
		return
	}
	c.Reset()
	if err := s.registry.ArmReadable(c); err != nil {
		s.log.WithError(err).Error("re-arm readable failed")
		s.removeClient(c.FD)
	}
}

// handlePipeEvent drives the CGI child's stdin and stdout pipes.
func (s *Server) handlePipeEvent(ev poller.Event) {
	c, ok := s.registry.FindByPipe(ev.FD)
	if !ok || c.CGI == nil {
		return
	}
	p := c.CGI

	if ev.FD == p.StdinFD() {
		done, err := p.WriteBody()
		if err != nil {
			s.log.WithError(err).Error("cgi stdin write failed")
			s.failCGI(c)
			return
		}
		if done {
			// body exhausted: close stdin so the child sees EOF
			s.registry.DetachCGIInput(c)
		}
		return
	}

	if ev.Readable {
		eof, err := p.ReadOutput()
		if err != nil {
			s.log.WithError(err).Error("cgi stdout read failed")
			s.finishCGI(c)
			return
		}
		if eof {
			s.finishCGI(c)
		}
		return
	}
	if ev.Err || ev.PeerHup {
		// writer side closed with nothing left to read
		s.finishCGI(c)
	}
}

// finishCGI reaps the child, synthesizes the HTTP response from whatever
// the script wrote, and flips the connection to sending.
func (s *Server) finishCGI(c *Conn) {
	p := c.CGI
	s.cgi.Reap(p)
	resp := cgi.BuildResponse(p.Output)
	s.registry.DetachCGI(c)
	c.CGI = nil
	c.SetResponse(resp)
	s.armWrite(c)
}

// failCGI kills the child and answers 500. Spawn-side failures that never
// made it to CgiRunning are handled in the router instead.
func (s *Server) failCGI(c *Conn) {
	s.cgi.Kill(c.CGI)
	s.registry.DetachCGI(c)
	c.CGI = nil
	s.setError(c, 500)
}

// checkCGITimeouts runs every loop iteration: any child older than the
// engine timeout is killed and its client receives a 504.
func (s *Server) checkCGITimeouts() {
	now := time.Now()
	for _, c := range s.registry.Clients() {
		if c.State != CgiRunning || c.CGI == nil {
			continue
		}
		if !c.CGI.TimedOut(now, s.cgi.Timeout) {
			continue
		}
		s.log.WithField("pid", c.CGI.PID).Error("cgi timeout, killing child")
		cgiTimeouts.Inc()
		s.cgi.Kill(c.CGI)
		s.registry.DetachCGI(c)
		c.CGI = nil
		s.setError(c, 504)
	}
}
