package shphttpd

import (
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shphttpd/internal/logging"
)

// TCPSocketOpt is the type of options for TCP socket.
type TCPSocketOpt int

// Available TCP socket options.
const (
	TCPNoDelay TCPSocketOpt = iota
	TCPDelay
)

const (
	// DefaultMaxConns is the size of the connection table.
	DefaultMaxConns = 65536
	// DefaultNumWorkers is the number of worker goroutines.
	DefaultNumWorkers = 8
	// DefaultMaxRequests is the depth of the request queue.
	DefaultMaxRequests = 10000
	// DefaultShutdownTimeout bounds how long Serve waits for queued requests on shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = DefaultMaxConns
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultNumWorkers
	}
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = DefaultMaxRequests
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger
	}
	return opts
}

// Options are set when the server starts.
type Options struct {
	// LockOSThread is used to determine whether the reactor goroutine is pinned to its OS thread.
	LockOSThread bool

	// ReusePort indicates whether to set up the SO_REUSEPORT socket option.
	ReusePort bool

	// DocRoot is the directory files are served from, defaults to "root" under the working directory.
	DocRoot string

	// ReadBufferCap is the per-connection request buffer, a request must fit in it.
	ReadBufferCap int

	// WriteBufferCap bounds the response status line and headers.
	WriteBufferCap int

	// MaxFilenameLen bounds the resolved file path.
	MaxFilenameLen int

	// MaxConns is the maximum number of live connections, it also sizes the connection table
	// so descriptors at or above it are refused.
	MaxConns int

	// NumWorkers is the number of goroutines processing requests.
	NumWorkers int

	// MaxRequests is the number of ready connections that may wait for a worker.
	MaxRequests int

	// TCPKeepAlive sets up a duration for (SO_KEEPALIVE) socket option.
	TCPKeepAlive time.Duration

	// TCPNoDelay controls whether the operating system should delay
	// packet transmission in hopes of sending fewer packets (Nagle's algorithm).
	//
	// The default is true (no delay).
	TCPNoDelay TCPSocketOpt

	// ShutdownTimeout bounds the wait for queued requests when the server stops.
	ShutdownTimeout time.Duration

	// Logger is the customized logger for logging info, if it is not set,
	// then server will use logging.DefaultLogger.
	Logger logging.Logger

	// Metrics, if set, gets a collector exporting connection, queue and response counters.
	// It is unregistered when the server stops.
	Metrics prometheus.Registerer

	// OnBoot is called once the listener is bound and the reactor is running.
	OnBoot func(addr net.Addr)
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithLockOSThread sets up LockOSThread mode for the reactor goroutine.
func WithLockOSThread(lockOSThread bool) Option {
	return func(opts *Options) {
		opts.LockOSThread = lockOSThread
	}
}

// WithReusePort sets up SO_REUSEPORT socket option.
func WithReusePort(reusePort bool) Option {
	return func(opts *Options) {
		opts.ReusePort = reusePort
	}
}

// WithDocRoot sets up the document root.
func WithDocRoot(dir string) Option {
	return func(opts *Options) {
		opts.DocRoot = dir
	}
}

// WithReadBufferCap sets up ReadBufferCap for reading bytes.
func WithReadBufferCap(readBufferCap int) Option {
	return func(opts *Options) {
		opts.ReadBufferCap = readBufferCap
	}
}

// WithWriteBufferCap sets up WriteBufferCap for response headers.
func WithWriteBufferCap(writeBufferCap int) Option {
	return func(opts *Options) {
		opts.WriteBufferCap = writeBufferCap
	}
}

// WithMaxFilenameLen sets up the limit of a resolved file path.
func WithMaxFilenameLen(n int) Option {
	return func(opts *Options) {
		opts.MaxFilenameLen = n
	}
}

// WithMaxConns sets up the maximum number of live connections.
func WithMaxConns(n int) Option {
	return func(opts *Options) {
		opts.MaxConns = n
	}
}

// WithNumWorkers sets up the number of worker goroutines.
func WithNumWorkers(n int) Option {
	return func(opts *Options) {
		opts.NumWorkers = n
	}
}

// WithMaxRequests sets up the depth of the request queue.
func WithMaxRequests(n int) Option {
	return func(opts *Options) {
		opts.MaxRequests = n
	}
}

// WithTCPKeepAlive sets up the SO_KEEPALIVE socket option with duration.
func WithTCPKeepAlive(tcpKeepAlive time.Duration) Option {
	return func(opts *Options) {
		opts.TCPKeepAlive = tcpKeepAlive
	}
}

// WithTCPNoDelay enable/disable the TCP_NODELAY socket option.
func WithTCPNoDelay(tcpNoDelay TCPSocketOpt) Option {
	return func(opts *Options) {
		opts.TCPNoDelay = tcpNoDelay
	}
}

// WithShutdownTimeout sets up how long to wait for queued requests on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.ShutdownTimeout = d
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithOnBoot sets up a callback invoked with the bound address once the server runs.
func WithOnBoot(fn func(addr net.Addr)) Option {
	return func(opts *Options) {
		opts.OnBoot = fn
	}
}

// WithMetrics registers the server collector with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(opts *Options) {
		opts.Metrics = reg
	}
}
