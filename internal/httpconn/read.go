//go:build linux
// +build linux

package httpconn

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Read drains the socket into the read buffer until it would block.
// It returns io.EOF when the peer closed the connection and ErrReadBufferFull when
// there is no room left for another byte.
func (c *Conn) Read() error {
	if c.readIdx >= len(c.readBuf) {
		return ErrReadBufferFull
	}
	for c.readIdx < len(c.readBuf) {
		n, err := unix.Read(c.fd, c.readBuf[c.readIdx:])
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return nil
			case unix.EINTR:
				continue
			}
			return os.NewSyscallError("read", err)
		}
		if n == 0 {
			return io.EOF
		}
		c.readIdx += n
	}
	// Full buffer: let the parser decide, the next Read reports ErrReadBufferFull.
	return nil
}
