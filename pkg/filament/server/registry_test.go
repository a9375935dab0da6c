//go:build linux
// +build linux

package server

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/watt-toolkit/filament/pkg/filament/poller"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	p, err := poller.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRegistry(p, log)
}

// clientFD returns a pollable descriptor the registry can own. The other
// end stays open so the fd remains healthy for the test's duration.
func clientFD(t *testing.T) int {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { unix.Close(fds[1]) })
	return fds[0]
}

func TestRegistryAddFindRemove(t *testing.T) {
	r := testRegistry(t)
	fd := clientFD(t)

	c, err := r.AddClient(fd, 3)
	if err != nil {
		t.Fatal(err)
	}
	if c.State != ReadingRequest || c.ServerIndex != 3 || c.FD != fd {
		t.Errorf("fresh conn = %+v", c)
	}

	found, ok := r.Find(fd)
	if !ok || found != c {
		t.Errorf("Find(%d) = %v, %v", fd, found, ok)
	}

	r.RemoveClient(fd, nil)
	if _, ok := r.Find(fd); ok {
		t.Error("connection still present after RemoveClient")
	}
	// the descriptor is closed: further syscalls on it fail
	if err := unix.SetNonblock(fd, true); err == nil {
		t.Error("client fd still open after RemoveClient")
	}

	// removing twice is a no-op
	r.RemoveClient(fd, nil)
}

func TestRegistryArmTransitions(t *testing.T) {
	r := testRegistry(t)
	fd := clientFD(t)

	c, err := r.AddClient(fd, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.ArmWritable(c); err != nil {
		t.Errorf("ArmWritable: %v", err)
	}
	if err := r.ArmReadable(c); err != nil {
		t.Errorf("ArmReadable: %v", err)
	}
	if err := r.Disarm(c); err != nil {
		t.Errorf("Disarm: %v", err)
	}
	r.RemoveClient(fd, nil)
}

func TestRegistryPipeMaps(t *testing.T) {
	r := testRegistry(t)

	if r.IsPipe(12345) {
		t.Error("IsPipe on empty registry")
	}
	if _, ok := r.FindByPipe(12345); ok {
		t.Error("FindByPipe on empty registry")
	}
}

func TestRegistryCloseAll(t *testing.T) {
	r := testRegistry(t)
	fds := []int{clientFD(t), clientFD(t), clientFD(t)}
	for _, fd := range fds {
		if _, err := r.AddClient(fd, 0); err != nil {
			t.Fatal(err)
		}
	}
	r.CloseAll(nil)
	if len(r.Clients()) != 0 {
		t.Errorf("clients left after CloseAll: %d", len(r.Clients()))
	}
}
