//go:build linux
// +build linux

package httpconn

import (
	"os"

	"golang.org/x/sys/unix"
)

// Process is run by a worker on a connection whose socket was just drained.
// It parses what is buffered and re-arms the socket: for reading when the request is
// incomplete, for writing once a response is ready.
func (c *Conn) Process() {
	ret := c.processRead()
	if ret == NoRequest && c.readIdx >= len(c.readBuf) {
		// the request can never complete in this buffer
		ret = BadRequest
	}
	if ret == NoRequest {
		if err := c.arm(InterestRead); err != nil {
			c.logger.Warnf("re-arm read on fd %d: %v", c.fd, err)
			c.release(c)
		}
		return
	}

	if !c.processWrite(ret) {
		c.logger.Warnf("fd %d: cannot build response for %s", c.fd, ret)
		c.release(c)
		return
	}
	if err := c.arm(InterestWrite); err != nil {
		c.logger.Warnf("re-arm write on fd %d: %v", c.fd, err)
		c.release(c)
	}
}

// Write sends the pending response with writev. It returns nil when the connection stays
// open (the socket would block, or the response completed on a keep-alive connection),
// ErrNotPersistent when the response completed and the connection should be closed, and
// any other error for a failed write.
func (c *Conn) Write() error {
	if c.bytesToSend == 0 {
		c.init()
		return c.arm(InterestRead)
	}

	for {
		n, err := unix.Writev(c.fd, c.iov[:c.iovCount])
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				// 写缓冲满了，等下一次 EPOLLOUT
				return c.arm(InterestWrite)
			}
			c.unmap()
			return os.NewSyscallError("writev", err)
		}

		c.bytesHaveSent += n
		c.bytesToSend -= n
		if c.bytesHaveSent >= c.headerLen {
			c.iov[0] = c.iov[0][:0]
			if c.iovCount == 2 {
				c.iov[1] = c.file.Bytes()[c.bytesHaveSent-c.headerLen:]
			}
		} else {
			c.iov[0] = c.wbuf.bytes()[c.bytesHaveSent:]
		}

		if c.bytesToSend <= 0 {
			c.unmap()
			if c.linger {
				c.init()
				return c.arm(InterestRead)
			}
			return ErrNotPersistent
		}
	}
}
