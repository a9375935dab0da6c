//go:build linux
// +build linux

// Package socket sets up the listening and accepted sockets the event loop
// drives: non-blocking, close-on-exec, with the TCP options an HTTP origin
// wants. It speaks raw file descriptors; net.Listener would hide them from
// the poller.
package socket

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Config selects the socket options applied to listeners and accepted
// connections. Zero values leave an option unset, except Backlog, which is
// passed to listen(2) as given.
type Config struct {
	// SO_REUSEADDR on the listener, so restarts do not trip over
	// TIME_WAIT remnants.
	ReuseAddr bool

	// TCP_NODELAY on accepted sockets; small HTTP responses should not
	// sit behind Nagle.
	NoDelay bool

	// SO_RCVBUF / SO_SNDBUF in bytes on accepted sockets.
	RecvBuffer int
	SendBuffer int

	// Listen backlog.
	Backlog int
}

// DefaultConfig returns the options used by the server unless overridden.
func DefaultConfig() *Config {
	return &Config{
		ReuseAddr: true,
		NoDelay:   true,
		Backlog:   128,
	}
}

// Listen creates a non-blocking, close-on-exec IPv4 listening socket bound
// to host:port. The caller owns the returned descriptor.
func Listen(host string, port int, cfg *Config) (int, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: create: %w", err)
	}

	if cfg.ReuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("socket: SO_REUSEADDR: %w", err)
		}
	}

	addr, err := inet4Addr(host, port)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("socket: bind %s:%d: %w", host, port, err)
	}
	if err := unix.Listen(fd, cfg.Backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("socket: listen %s:%d: %w", host, port, err)
	}
	return fd, nil
}

// Accept takes one connection off a listening socket. The accepted
// descriptor comes back non-blocking and close-on-exec in a single call;
// there is no window where a forked child could inherit it.
func Accept(listenFD int, cfg *Config) (int, string, error) {
	fd, sa, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, "", err
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	applyConnOptions(fd, cfg)
	return fd, peerAddr(sa), nil
}

// applyConnOptions applies the per-connection tuning. Option failures are
// not fatal; the connection still works without them.
func applyConnOptions(fd int, cfg *Config) {
	if cfg.NoDelay {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}
	if cfg.RecvBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBuffer)
	}
	if cfg.SendBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBuffer)
	}
}

func inet4Addr(host string, port int) (*unix.SockaddrInet4, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		// Only the name "localhost" is mapped, without pulling in a
		// resolver; any other host name is rejected.
		if host == "localhost" {
			ip = net.IPv4(127, 0, 0, 1)
		} else {
			return nil, fmt.Errorf("socket: invalid address %q", host)
		}
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("socket: %q is not an IPv4 address", host)
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

func peerAddr(sa unix.Sockaddr) string {
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d.%d:%d", in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3], in4.Port)
}
