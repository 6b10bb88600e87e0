//go:build linux
// +build linux

package shphttpd

import (
	"net"
	"os"
	"sync"

	"github.com/panjf2000/gnet/errors"
	"golang.org/x/sys/unix"

	"shphttpd/internal/netpoll"
	"shphttpd/internal/reuseport"
)

// listener is the one listening socket of a server.
type listener struct {
	once      sync.Once
	fd        int
	lnaddr    net.Addr // bound address, carries the real port for ":0"
	reusePort bool
	network   string
	addr      string
}

func initListener(network, addr string, reusePort bool) (*listener, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return nil, errors.ErrUnsupportedProtocol
	}
	fd, lnaddr, err := reuseport.TCPSocket(network, addr, reusePort)
	if err != nil {
		return nil, err
	}
	return &listener{fd: fd, lnaddr: lnaddr, reusePort: reusePort, network: "tcp", addr: addr}, nil
}

// register adds the listener to p level-triggered: the reactor accepts one connection per
// event and epoll keeps reporting the socket while more are pending.
func (ln *listener) register(p *netpoll.Poller) error {
	return p.AddRead(ln.fd)
}

func (ln *listener) close() {
	ln.once.Do(func() {
		if ln.fd > 0 {
			sniffErrorAndLog(os.NewSyscallError("close", unix.Close(ln.fd)))
		}
	})
}
