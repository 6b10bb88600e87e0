//go:build linux
// +build linux

package netpoll

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/gnet/errors"
	"golang.org/x/sys/unix"

	"shphttpd/internal/logging"
)

func openTestPoller(t *testing.T) *Poller {
	t.Helper()
	p, err := OpenPoller()
	if err != nil {
		t.Fatalf("OpenPoller: %v", err)
	}
	p.SetLogger(logging.Nop())
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestTriggerStopsPolling(t *testing.T) {
	p := openTestPoller(t)

	var ran int32
	done := make(chan error, 1)
	go func() {
		done <- p.Polling(func(fd int, ev uint32) error { return nil })
	}()

	if err := p.Trigger(func() error { atomic.AddInt32(&ran, 1); return nil }); err != nil {
		t.Fatal(err)
	}
	if err := p.Trigger(func() error { return errors.ErrServerShutdown }); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != errors.ErrServerShutdown {
			t.Fatalf("Polling returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Polling did not stop")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("task queued before shutdown did not run")
	}
}

func TestOneShotDeliversOnce(t *testing.T) {
	p := openTestPoller(t)
	a, b := socketPair(t)

	if err := p.AddReadOneShot(a); err != nil {
		t.Fatal(err)
	}

	events := make(chan uint32, 8)
	done := make(chan error, 1)
	go func() {
		done <- p.Polling(func(fd int, ev uint32) error {
			if fd == a {
				events <- ev
			}
			return nil
		})
	}()
	defer func() {
		_ = p.Trigger(func() error { return errors.ErrServerShutdown })
		<-done
	}()

	if _, err := unix.Write(b, []byte("ping")); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		if ev&InEvents == 0 {
			t.Fatalf("unexpected event mask %#x", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no readable event")
	}

	// Not re-armed: more data must not produce another event.
	if _, err := unix.Write(b, []byte("pong")); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		t.Fatalf("event %#x delivered without re-arming", ev)
	case <-time.After(50 * time.Millisecond):
	}

	// Re-arming for write fires right away on an idle socket.
	if err := p.ModWriteOneShot(a); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		if ev&OutEvents == 0 {
			t.Fatalf("unexpected event mask %#x", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no writable event after re-arm")
	}
}

func TestDeleteUnregistered(t *testing.T) {
	p := openTestPoller(t)
	a, _ := socketPair(t)
	if err := p.Delete(a); err == nil {
		t.Fatal("Delete of an unregistered fd should fail")
	}
}

func TestEventListResize(t *testing.T) {
	el := newEventList(InitEvents)
	el.expand()
	if el.size != InitEvents*2 || len(el.events) != el.size {
		t.Fatalf("expand: size %d len %d", el.size, len(el.events))
	}
	el.shrink()
	el.shrink()
	if el.size != InitEvents {
		t.Fatalf("shrink below InitEvents: %d", el.size)
	}
}

func TestSockaddrToTCPOrUnixAddr(t *testing.T) {
	addr := SockaddrToTCPOrUnixAddr(&unix.SockaddrInet4{Port: 8080, Addr: [4]byte{127, 0, 0, 1}})
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || tcp.String() != "127.0.0.1:8080" {
		t.Fatalf("got %v", addr)
	}
	if u, ok := SockaddrToTCPOrUnixAddr(&unix.SockaddrUnix{Name: "/tmp/x"}).(*net.UnixAddr); !ok || u.Name != "/tmp/x" {
		t.Fatal("unix sockaddr not converted")
	}
	if SockaddrToTCPOrUnixAddr(nil) != nil {
		t.Fatal("nil sockaddr should convert to nil")
	}
}
