//go:build linux
// +build linux

package httpconn

import (
	"errors"
	"path"

	"golang.org/x/sys/unix"

	"shphttpd/internal/mmap"
)

// doRequest resolves the parsed URL under the document root. A world-readable regular
// file is mapped into memory for the response body.
func (c *Conn) doRequest() HTTPCode {
	realFile := c.cfg.DocRoot + path.Clean(c.url)
	if len(realFile) >= c.cfg.MaxFilenameLen {
		return BadRequest
	}
	c.realFile = realFile

	var st unix.Stat_t
	if err := unix.Stat(realFile, &st); err != nil {
		return NoResource
	}
	if st.Mode&unix.S_IROTH == 0 {
		return ForbiddenRequest
	}
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return BadRequest
	case unix.S_IFREG:
	default:
		return ForbiddenRequest
	}

	region, err := mmap.Map(realFile, int(st.Size))
	if err != nil {
		if errors.Is(err, unix.EACCES) {
			return ForbiddenRequest
		}
		c.logger.Errorf("map %s: %v", realFile, err)
		return InternalError
	}
	c.file = region
	return FileRequest
}
