package server

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/watt-toolkit/filament/pkg/filament/poller"
)

// Registry owns every admitted descriptor: client sockets and CGI pipe
// ends. A Conn is present in clients iff its descriptor is registered with
// the poller; pipe descriptors map back to the connection running the CGI.
// Dropping a descriptor without closing it here is a bug.
type Registry struct {
	poller  *poller.Poller
	clients map[int]*Conn // client fd -> connection
	pipes   map[int]*Conn // CGI pipe fd -> connection
	log     *logrus.Logger
}

// NewRegistry builds an empty registry over p.
func NewRegistry(p *poller.Poller, log *logrus.Logger) *Registry {
	return &Registry{
		poller:  p,
		clients: make(map[int]*Conn),
		pipes:   make(map[int]*Conn),
		log:     log,
	}
}

// AddClient admits a freshly accepted descriptor in ReadingRequest and
// arms it for readable + peer-hangup.
func (r *Registry) AddClient(fd, serverIndex int) (*Conn, error) {
	c := &Conn{FD: fd, ServerIndex: serverIndex, State: ReadingRequest}
	if err := r.poller.Add(fd, true, false); err != nil {
		unix.Close(fd)
		return nil, err
	}
	r.clients[fd] = c
	connectionsAccepted.Inc()
	connectionsActive.Inc()
	return c, nil
}

// RemoveClient tears a connection down: CGI pipes (and the child, if still
// running) first, then the descriptor, then the state.
func (r *Registry) RemoveClient(fd int, killCGI func(*Conn)) {
	c, ok := r.clients[fd]
	if !ok {
		return
	}
	if c.CGI != nil {
		if killCGI != nil {
			killCGI(c)
		}
		r.DetachCGI(c)
	}
	r.poller.Remove(fd)
	unix.Close(fd)
	delete(r.clients, fd)
	connectionsClosed.Inc()
	connectionsActive.Dec()
	r.log.WithField("fd", fd).Debug("connection closed")
}

// Find returns the connection owning a client descriptor.
func (r *Registry) Find(fd int) (*Conn, bool) {
	c, ok := r.clients[fd]
	return c, ok
}

// ArmReadable switches the client descriptor back to readable interest
// (next keep-alive request).
func (r *Registry) ArmReadable(c *Conn) error {
	return r.poller.Modify(c.FD, true, false)
}

// ArmWritable switches the client descriptor to writable interest for
// response draining.
func (r *Registry) ArmWritable(c *Conn) error {
	return r.poller.Modify(c.FD, false, true)
}

// Disarm removes both interest directions from the client descriptor while
// a CGI child runs; only the pipes stay armed.
func (r *Registry) Disarm(c *Conn) error {
	return r.poller.Modify(c.FD, false, false)
}

// AttachCGI registers the CGI pipes: stdin for writable (there is body to
// push) and stdout for readable. An attach failure closes both pipe ends
// immediately; the descriptors never outlive their registration.
func (r *Registry) AttachCGI(c *Conn) error {
	p := c.CGI
	if inFD := p.StdinFD(); inFD >= 0 {
		if err := r.poller.Add(inFD, false, true); err != nil {
			p.CloseStdin()
			p.CloseStdout()
			return err
		}
		r.pipes[inFD] = c
	}
	outFD := p.StdoutFD()
	if err := r.poller.Add(outFD, true, false); err != nil {
		r.DetachCGIInput(c)
		p.CloseStdout()
		return err
	}
	r.pipes[outFD] = c
	return nil
}

// DetachCGIInput deregisters and closes only the stdin pipe, once the body
// is fully written. The stdout pipe keeps running.
func (r *Registry) DetachCGIInput(c *Conn) {
	if fd := c.CGI.StdinFD(); fd >= 0 {
		r.poller.Remove(fd)
		delete(r.pipes, fd)
		c.CGI.CloseStdin()
	}
}

// DetachCGI deregisters and closes both pipe ends.
func (r *Registry) DetachCGI(c *Conn) {
	r.DetachCGIInput(c)
	if fd := c.CGI.StdoutFD(); fd >= 0 {
		r.poller.Remove(fd)
		delete(r.pipes, fd)
		c.CGI.CloseStdout()
	}
}

// FindByPipe returns the connection owning a CGI pipe descriptor.
func (r *Registry) FindByPipe(fd int) (*Conn, bool) {
	c, ok := r.pipes[fd]
	return c, ok
}

// IsPipe reports whether fd is a registered CGI pipe.
func (r *Registry) IsPipe(fd int) bool {
	_, ok := r.pipes[fd]
	return ok
}

// Clients returns the live connection set; the timeout scan iterates it.
func (r *Registry) Clients() map[int]*Conn {
	return r.clients
}

// CloseAll tears down every connection. Shutdown path.
func (r *Registry) CloseAll(killCGI func(*Conn)) {
	for fd := range r.clients {
		r.RemoveClient(fd, killCGI)
	}
}
