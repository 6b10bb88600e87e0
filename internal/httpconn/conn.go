//go:build linux
// +build linux

// Package httpconn implements the per-connection HTTP/1.1 state machine: draining the socket
// into a fixed read buffer, resumable request parsing, resolving the target under the document
// root, and sending the response with a header segment and a memory-mapped file segment.
package httpconn

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"shphttpd/internal/logging"
	"shphttpd/internal/mmap"
)

const (
	// DefaultReadBufferSize is the default capacity of the read buffer.
	DefaultReadBufferSize = 2048
	// DefaultWriteBufferSize is the default capacity of the response header buffer.
	DefaultWriteBufferSize = 1024
	// DefaultMaxFilenameLen is the default limit of a resolved file path.
	DefaultMaxFilenameLen = 200
)

var (
	// ErrReadBufferFull is returned by Read when the request does not fit the read buffer.
	ErrReadBufferFull = errors.New("httpconn: read buffer full")
	// ErrNotPersistent is returned by Write once a response without keep-alive is fully sent.
	ErrNotPersistent = errors.New("httpconn: response sent, connection not persistent")
)

// Poller is the readiness facility connections arm themselves on.
type Poller interface {
	AddReadOneShot(fd int) error
	ModReadOneShot(fd int) error
	ModWriteOneShot(fd int) error
	Delete(fd int) error
}

// Config is shared by all connections of a server.
type Config struct {
	DocRoot         string
	ReadBufferSize  int
	WriteBufferSize int
	MaxFilenameLen  int
	Logger          logging.Logger

	// OnResponse, if set, is called by the worker with the status of every response built.
	OnResponse func(status int)
}

func (cfg *Config) normalize() {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = DefaultWriteBufferSize
	}
	if cfg.MaxFilenameLen <= 0 {
		cfg.MaxFilenameLen = DefaultMaxFilenameLen
	}
	if cfg.DocRoot != "" {
		root := filepath.Clean(cfg.DocRoot)
		if root == "/" {
			root = ""
		}
		// shared by running connections, only written when it changes
		if root != cfg.DocRoot {
			cfg.DocRoot = root
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.DefaultLogger
	}
}

// Conn is one client connection. A Conn is reused for every socket that gets the same
// descriptor value.
//
// Only the goroutine that took the last readiness event of a Conn may touch it: a Conn is
// re-armed only once its current event is fully handled.
type Conn struct {
	fd      int
	peer    net.Addr
	cfg     *Config
	poller  Poller
	release func(*Conn)
	logger  logging.Logger

	interest atomic.Uint32

	readBuf    []byte
	readIdx    int // bytes received
	checkedIdx int // bytes scanned by parseLine
	startLine  int // start of the line being parsed
	lineEnd    int // end of the last complete line, terminator excluded
	checkState CheckState

	method        string
	url           string
	version       string
	host          string
	contentLength int
	linger        bool

	realFile string
	file     *mmap.Region

	wbuf          writeBuffer
	iov           [2][]byte
	iovCount      int
	headerLen     int
	bytesToSend   int
	bytesHaveSent int
}

// New returns an unbound Conn. release is how a worker hands the connection back for
// closing, it must arrange for Close to run on the goroutine that owns the poller.
func New(cfg *Config, poller Poller, release func(*Conn)) *Conn {
	cfg.normalize()
	c := &Conn{
		fd:      -1,
		cfg:     cfg,
		poller:  poller,
		release: release,
		logger:  cfg.Logger,
		readBuf: make([]byte, cfg.ReadBufferSize),
	}
	c.wbuf.limit = cfg.WriteBufferSize
	return c
}

// Init binds c to an accepted non-blocking socket and arms it for one readable event.
func (c *Conn) Init(fd int, peer net.Addr) error {
	c.fd = fd
	c.peer = peer
	c.init()
	c.interest.Store(uint32(InterestRead))
	if err := c.poller.AddReadOneShot(fd); err != nil {
		c.interest.Store(uint32(InterestNone))
		c.fd = -1
		return err
	}
	return nil
}

// init resets the per-request state.
func (c *Conn) init() {
	c.bytesToSend = 0
	c.bytesHaveSent = 0
	c.headerLen = 0
	c.iov = [2][]byte{}
	c.iovCount = 0

	c.checkState = CheckStateRequestLine
	c.linger = false
	c.method = ""
	c.url = ""
	c.version = ""
	c.host = ""
	c.contentLength = 0
	c.startLine = 0
	c.lineEnd = 0
	c.checkedIdx = 0
	c.readIdx = 0
	c.realFile = ""

	c.wbuf.release()
}

// Fd returns the socket descriptor, -1 once closed.
func (c *Conn) Fd() int {
	return c.fd
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.peer
}

// Linger reports whether the current request asked for keep-alive.
func (c *Conn) Linger() bool {
	return c.linger
}

// Take claims c for the event the poller just delivered and returns the interest it was
// armed with. InterestNone means the event is stale and must be ignored.
func (c *Conn) Take() Interest {
	return Interest(c.interest.Swap(uint32(InterestNone)))
}

// arm re-registers c for one event of the given interest. The interest is published
// before epoll_ctl so the goroutine receiving the event observes everything done here.
// Nothing of c may be read after the Store: from then on c belongs to the receiver.
func (c *Conn) arm(in Interest) (err error) {
	fd, poller := c.fd, c.poller
	c.interest.Store(uint32(in))
	switch in {
	case InterestRead:
		err = poller.ModReadOneShot(fd)
	case InterestWrite:
		err = poller.ModWriteOneShot(fd)
	}
	if err != nil {
		c.interest.Store(uint32(InterestNone))
	}
	return
}

func (c *Conn) unmap() {
	if c.file == nil {
		return
	}
	if err := c.file.Unmap(); err != nil {
		c.logger.Warnf("unmap %s: %v", c.realFile, err)
	}
	c.file = nil
}

// Close deregisters and closes the socket and releases the mapping and buffers.
// Closing a closed Conn is a no-op.
func (c *Conn) Close() error {
	if c.fd < 0 {
		return nil
	}
	fd := c.fd
	c.fd = -1
	c.interest.Store(uint32(InterestNone))
	c.unmap()
	c.init()

	err := c.poller.Delete(fd)
	if cerr := unix.Close(fd); cerr != nil && err == nil {
		err = os.NewSyscallError("close", cerr)
	}
	return err
}
