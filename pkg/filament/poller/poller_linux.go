//go:build linux
// +build linux

// Package poller wraps the OS readiness notifier behind a small interface:
// register a file descriptor for read or write interest, block for events,
// deregister. On Linux the notifier is epoll, used level-triggered
// throughout so an unconsumed event simply fires again.
package poller

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Event is one readiness report for a registered descriptor.
type Event struct {
	FD       int
	Readable bool // EPOLLIN
	Writable bool // EPOLLOUT
	PeerHup  bool // EPOLLRDHUP: peer closed its write side
	Err      bool // EPOLLERR or EPOLLHUP
}

// Poller is a level-triggered epoll instance. Not safe for concurrent use;
// the event loop is its only caller.
type Poller struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates the epoll instance with close-on-exec set, so CGI children
// never inherit it.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("poller: epoll_create1: %w", err)
	}
	return &Poller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, 64),
	}, nil
}

func interestMask(readable, writable bool) uint32 {
	var mask uint32 = unix.EPOLLRDHUP
	if readable {
		mask |= unix.EPOLLIN
	}
	if writable {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// Add registers fd with the given interest.
func (p *Poller) Add(fd int, readable, writable bool) error {
	ev := unix.EpollEvent{Events: interestMask(readable, writable), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("poller: add fd %d: %w", fd, err)
	}
	return nil
}

// Modify switches the interest set of an already-registered fd.
func (p *Poller) Modify(fd int, readable, writable bool) error {
	ev := unix.EpollEvent{Events: interestMask(readable, writable), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("poller: modify fd %d: %w", fd, err)
	}
	return nil
}

// Remove deregisters fd. Removing an fd that is already gone is not an
// error the caller can act on, so it is swallowed.
func (p *Poller) Remove(fd int) {
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks up to timeoutMs for events. A signal-interrupted wait returns
// an empty batch so the caller can re-check its shutdown flag.
func (p *Poller) Wait(timeoutMs int) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("poller: epoll_wait: %w", err)
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		out = append(out, Event{
			FD:       int(ev.Fd),
			Readable: ev.Events&unix.EPOLLIN != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			PeerHup:  ev.Events&unix.EPOLLRDHUP != 0,
			Err:      ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		})
	}
	return out, nil
}

// Close releases the epoll instance.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
