//go:build linux
// +build linux

package shphttpd

import (
	"os"

	"github.com/panjf2000/gnet/errors"
	"golang.org/x/sys/unix"

	"shphttpd/internal/httpconn"
	"shphttpd/internal/netpoll"
)

func (el *eventloop) loopAccept(fd int) error {
	// 建立连接，产生新的fd
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		switch err {
		case unix.EAGAIN, unix.EINTR, unix.ECONNABORTED:
			return nil
		case unix.EMFILE, unix.ENFILE:
			el.logger.Warnf("Accept: %v", err)
			return nil
		}
		el.logger.Errorf("Accept: %v", os.NewSyscallError("accept4", err))
		return errors.ErrAcceptSocket
	}

	if el.connCount >= el.svr.opts.MaxConns || nfd >= len(el.connections) {
		el.logger.Warnf("Too many connections (%d live), refusing fd %d", el.connCount, nfd)
		_ = unix.Close(nfd)
		return nil
	}

	if el.svr.opts.TCPNoDelay == TCPNoDelay {
		if err = netpoll.SetNoDelay(nfd, true); err != nil {
			el.logger.Debugf("Set TCP_NODELAY on fd %d: %v", nfd, err)
		}
	}
	if el.svr.opts.TCPKeepAlive > 0 {
		if err = netpoll.SetKeepAlive(nfd, el.svr.opts.TCPKeepAlive); err != nil {
			el.logger.Debugf("Set SO_KEEPALIVE on fd %d: %v", nfd, err)
		}
	}

	// 连接对象按 fd 复用
	c := el.connections[nfd]
	if c == nil {
		c = httpconn.New(el.connCfg, el.poller, el.release)
		el.connections[nfd] = c
	}
	if err = c.Init(nfd, netpoll.SockaddrToTCPOrUnixAddr(sa)); err != nil {
		el.logger.Warnf("Register fd %d: %v", nfd, err)
		_ = unix.Close(nfd)
		return nil
	}
	el.connCount++
	el.liveConns.Store(int64(el.connCount))
	return nil
}
