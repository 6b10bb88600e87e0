//go:build linux
// +build linux

package httpconn

import (
	"bytes"
	"strconv"
)

var (
	methodGet     = []byte("GET")
	versionHTTP11 = []byte("HTTP/1.1")
	schemeHTTP    = []byte("http://")

	headerConnection    = []byte("Connection:")
	headerContentLength = []byte("Content-Length:")
	headerHost          = []byte("Host:")
	keepAlive           = []byte("keep-alive")
)

// parseLine scans from checkedIdx for the end of the current line.
// Bytes before checkedIdx are never scanned again.
func (c *Conn) parseLine() LineStatus {
	for ; c.checkedIdx < c.readIdx; c.checkedIdx++ {
		switch c.readBuf[c.checkedIdx] {
		case '\r':
			if c.checkedIdx+1 == c.readIdx {
				return LineOpen
			}
			if c.readBuf[c.checkedIdx+1] == '\n' {
				c.lineEnd = c.checkedIdx
				c.checkedIdx += 2
				return LineOK
			}
			return LineBad
		case '\n':
			if c.checkedIdx > c.startLine && c.readBuf[c.checkedIdx-1] == '\r' {
				c.lineEnd = c.checkedIdx - 1
				c.checkedIdx++
				return LineOK
			}
			return LineBad
		}
	}
	return LineOpen
}

func (c *Conn) getLine() []byte {
	return c.readBuf[c.startLine:c.lineEnd]
}

// processRead runs the parser over everything buffered so far.
func (c *Conn) processRead() HTTPCode {
	lineStatus := LineOK
	for {
		if c.checkState == CheckStateContent {
			if lineStatus != LineOK {
				break
			}
			if c.parseContent() == GetRequest {
				return c.doRequest()
			}
			lineStatus = LineOpen
			continue
		}

		if lineStatus = c.parseLine(); lineStatus != LineOK {
			break
		}
		text := c.getLine()
		c.startLine = c.checkedIdx
		c.logger.Debugf("got 1 http line: %s", text)

		switch c.checkState {
		case CheckStateRequestLine:
			if c.parseRequestLine(text) == BadRequest {
				return BadRequest
			}
		case CheckStateHeader:
			switch c.parseHeaders(text) {
			case BadRequest:
				return BadRequest
			case GetRequest:
				return c.doRequest()
			}
		default:
			return InternalError
		}
	}
	if lineStatus == LineBad {
		return BadRequest
	}
	return NoRequest
}

// parseRequestLine parses "GET /path HTTP/1.1".
func (c *Conn) parseRequestLine(text []byte) HTTPCode {
	i := bytes.IndexAny(text, " \t")
	if i < 0 {
		return BadRequest
	}
	method, url := text[:i], text[i+1:]
	if !bytes.EqualFold(method, methodGet) {
		return BadRequest
	}

	if i = bytes.IndexAny(url, " \t"); i < 0 {
		return BadRequest
	}
	url, version := url[:i], url[i+1:]
	if !bytes.EqualFold(version, versionHTTP11) {
		return BadRequest
	}

	// http://192.168.1.1:8080/index.html
	if len(url) >= len(schemeHTTP) && bytes.EqualFold(url[:len(schemeHTTP)], schemeHTTP) {
		url = url[len(schemeHTTP):]
		if i = bytes.IndexByte(url, '/'); i < 0 {
			return BadRequest
		}
		url = url[i:]
	}
	if len(url) == 0 || url[0] != '/' {
		return BadRequest
	}

	c.method = string(methodGet)
	c.url = string(url)
	c.version = string(version)
	c.checkState = CheckStateHeader
	return NoRequest
}

// parseHeaders handles one header line, an empty line ends the header block.
func (c *Conn) parseHeaders(text []byte) HTTPCode {
	if len(text) == 0 {
		if c.contentLength == 0 {
			return GetRequest
		}
		if c.checkedIdx+c.contentLength > len(c.readBuf) {
			// The body can never fit.
			return BadRequest
		}
		c.checkState = CheckStateContent
		return NoRequest
	}

	switch {
	case hasPrefixFold(text, headerConnection):
		if bytes.EqualFold(headerValue(text, headerConnection), keepAlive) {
			c.linger = true
		}
	case hasPrefixFold(text, headerContentLength):
		n, err := strconv.ParseUint(string(headerValue(text, headerContentLength)), 10, 31)
		if err != nil {
			return BadRequest
		}
		c.contentLength = int(n)
	case hasPrefixFold(text, headerHost):
		c.host = string(headerValue(text, headerHost))
	default:
		c.logger.Debugf("oop! unknown header %s", text)
	}
	return NoRequest
}

// parseContent only checks that the whole body has arrived, the body is not interpreted.
func (c *Conn) parseContent() HTTPCode {
	if c.readIdx >= c.checkedIdx+c.contentLength {
		return GetRequest
	}
	return NoRequest
}

func hasPrefixFold(s, prefix []byte) bool {
	return len(s) >= len(prefix) && bytes.EqualFold(s[:len(prefix)], prefix)
}

func headerValue(text, name []byte) []byte {
	return bytes.Trim(text[len(name):], " \t")
}
