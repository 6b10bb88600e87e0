//go:build linux
// +build linux

package httpconn

import (
	"fmt"

	"github.com/valyala/bytebufferpool"
)

type cannedResponse struct {
	status int
	title  string
	form   string
}

const ok200Title = "OK"

var cannedResponses = map[HTTPCode]cannedResponse{
	BadRequest: {400, "Bad Request",
		"Your request has bad syntax or is inherently impossible to satisfy.\n"},
	ForbiddenRequest: {403, "Forbidden",
		"You do not have permission to get file from this server.\n"},
	NoResource: {404, "Not Found",
		"The requested file was not found on this server.\n"},
	InternalError: {500, "Internal Error",
		"There was an unusual problem serving the requested file.\n"},
}

// writeBuffer holds the response head. It is taken from bytebufferpool for the life of
// one response and never grows past limit.
type writeBuffer struct {
	bb    *bytebufferpool.ByteBuffer
	limit int
}

func (w *writeBuffer) acquire() {
	if w.bb == nil {
		w.bb = bytebufferpool.Get()
	}
	w.bb.Reset()
}

func (w *writeBuffer) release() {
	if w.bb != nil {
		bytebufferpool.Put(w.bb)
		w.bb = nil
	}
}

func (w *writeBuffer) bytes() []byte {
	if w.bb == nil {
		return nil
	}
	return w.bb.B
}

// appendf formats into the buffer. On overflow nothing is appended and false is returned.
func (w *writeBuffer) appendf(format string, args ...interface{}) bool {
	n := len(w.bb.B)
	if n >= w.limit {
		return false
	}
	w.bb.B = fmt.Appendf(w.bb.B, format, args...)
	if len(w.bb.B) > w.limit {
		w.bb.B = w.bb.B[:n]
		return false
	}
	return true
}

func (c *Conn) addStatusLine(status int, title string) bool {
	return c.wbuf.appendf("%s %d %s\r\n", "HTTP/1.1", status, title)
}

func (c *Conn) addHeaders(contentLen int) bool {
	return c.addContentLength(contentLen) &&
		c.addContentType() &&
		c.addLinger() &&
		c.addBlankLine()
}

func (c *Conn) addContentLength(contentLen int) bool {
	return c.wbuf.appendf("Content-Length: %d\r\n", contentLen)
}

// addContentType always advertises text/html whatever the file is.
func (c *Conn) addContentType() bool {
	return c.wbuf.appendf("Content-Type: %s\r\n", "text/html")
}

func (c *Conn) addLinger() bool {
	v := "close"
	if c.linger {
		v = "keep-alive"
	}
	return c.wbuf.appendf("Connection: %s\r\n", v)
}

func (c *Conn) addBlankLine() bool {
	return c.wbuf.appendf("%s", "\r\n")
}

func (c *Conn) addContent(content string) bool {
	return c.wbuf.appendf("%s", content)
}

// processWrite builds the response for ret and sets up the iovecs to send it.
func (c *Conn) processWrite(ret HTTPCode) bool {
	c.wbuf.acquire()

	if ret == FileRequest {
		size := 0
		if c.file != nil {
			size = c.file.Len()
		}
		if !c.addStatusLine(200, ok200Title) || !c.addHeaders(size) {
			return false
		}
		c.headerLen = len(c.wbuf.bytes())
		c.iov[0] = c.wbuf.bytes()
		c.iovCount = 1
		if size > 0 {
			c.iov[1] = c.file.Bytes()
			c.iovCount = 2
		}
		c.bytesToSend = c.headerLen + size
		c.observe(200)
		return true
	}

	r, ok := cannedResponses[ret]
	if !ok {
		return false
	}
	if !c.addStatusLine(r.status, r.title) || !c.addHeaders(len(r.form)) || !c.addContent(r.form) {
		return false
	}
	c.headerLen = len(c.wbuf.bytes())
	c.iov[0] = c.wbuf.bytes()
	c.iovCount = 1
	c.bytesToSend = c.headerLen
	c.observe(r.status)
	return true
}

func (c *Conn) observe(status int) {
	if c.cfg.OnResponse != nil {
		c.cfg.OnResponse(status)
	}
}
