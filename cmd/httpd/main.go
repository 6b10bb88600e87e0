// Command httpd serves static files over HTTP/1.1.
//
//	httpd [flags] <port>
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shphttpd"
	"shphttpd/internal/httpconn"
	"shphttpd/internal/logging"
)

func main() {
	var (
		host            = flag.String("host", "", "address to bind, empty means all interfaces")
		docRoot         = flag.String("root", "", "document root (default \"root\" under the working directory)")
		workers         = flag.Int("workers", shphttpd.DefaultNumWorkers, "number of worker goroutines")
		maxRequests     = flag.Int("queue", shphttpd.DefaultMaxRequests, "request queue depth")
		maxConns        = flag.Int("max-conns", shphttpd.DefaultMaxConns, "maximum live connections")
		readBufferCap   = flag.Int("read-buffer", httpconn.DefaultReadBufferSize, "per-connection request buffer in bytes")
		writeBufferCap  = flag.Int("write-buffer", httpconn.DefaultWriteBufferSize, "per-connection response header buffer in bytes")
		maxFilenameLen  = flag.Int("max-filename", httpconn.DefaultMaxFilenameLen, "maximum resolved file path length")
		reusePort       = flag.Bool("reuseport", false, "set SO_REUSEPORT on the listener")
		keepAlive       = flag.Duration("tcp-keepalive", 0, "TCP keep-alive period, 0 disables it")
		lockOSThread    = flag.Bool("lock-thread", true, "pin the reactor goroutine to its OS thread")
		shutdownTimeout = flag.Duration("shutdown-timeout", shphttpd.DefaultShutdownTimeout, "how long to wait for queued requests on exit")
		metricsAddr     = flag.String("metrics", "", "serve Prometheus metrics on this address, empty disables it")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] port_number\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	port, err := strconv.Atoi(flag.Arg(0))
	if err != nil || port < 0 || port > 65535 {
		fmt.Fprintf(os.Stderr, "invalid port %q\n", flag.Arg(0))
		os.Exit(2)
	}

	logger := logging.DefaultLogger
	defer logging.Cleanup()

	// A peer that goes away mid-response must not kill the process.
	signal.Ignore(syscall.SIGPIPE)

	protoAddr := fmt.Sprintf("tcp://%s:%d", *host, port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("Received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout+time.Second)
		defer cancel()
		if err := shphttpd.Stop(ctx, protoAddr); err != nil {
			logger.Errorf("Stop: %v", err)
		}
	}()

	opts := []shphttpd.Option{
		shphttpd.WithDocRoot(*docRoot),
		shphttpd.WithNumWorkers(*workers),
		shphttpd.WithMaxRequests(*maxRequests),
		shphttpd.WithMaxConns(*maxConns),
		shphttpd.WithReadBufferCap(*readBufferCap),
		shphttpd.WithWriteBufferCap(*writeBufferCap),
		shphttpd.WithMaxFilenameLen(*maxFilenameLen),
		shphttpd.WithReusePort(*reusePort),
		shphttpd.WithTCPKeepAlive(*keepAlive),
		shphttpd.WithLockOSThread(*lockOSThread),
		shphttpd.WithShutdownTimeout(*shutdownTimeout),
		shphttpd.WithLogger(logger),
	}
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, shphttpd.WithMetrics(reg))
		go serveMetrics(*metricsAddr, reg, logger)
	}

	if err = shphttpd.Serve(protoAddr, opts...); err != nil {
		logger.Errorf("Server exited with error: %v", err)
		logging.Cleanup()
		os.Exit(1)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Infof("Serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("Metrics server: %v", err)
	}
}
