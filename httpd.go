// Package shphttpd is a static file server for HTTP/1.1 GET requests built on a single epoll
// reactor and a fixed pool of worker goroutines.
//
// The reactor accepts connections and drains readable sockets, workers parse the buffered
// request and build the response, the reactor writes it back. Every connection is armed for
// exactly one event at a time, so a connection is never handled by two goroutines at once.
package shphttpd

import (
	"context"
	"strings"
	"time"

	"github.com/panjf2000/gnet/errors"

	"shphttpd/internal/logging"
)

const shutdownPollInterval = 100 * time.Millisecond

// Serve starts the server on protoAddr ("tcp://127.0.0.1:8080", a bare "host:port" means tcp)
// and blocks until it is stopped with Stop or the reactor fails.
func Serve(protoAddr string, opts ...Option) (err error) {
	options := loadOptions(opts...)

	network, addr := parseProtoAddr(protoAddr)

	var ln *listener
	if ln, err = initListener(network, addr, options.ReusePort); err != nil {
		return
	}
	defer ln.close()

	return serve(ln, options, protoAddr)
}

// Stop gracefully shuts down the server started on protoAddr without interrupting any
// request that a worker is processing. It waits until the server has released every
// connection or ctx is done.
func Stop(ctx context.Context, protoAddr string) error {
	var svr *server
	if s, ok := serverFarm.Load(protoAddr); ok {
		svr = s.(*server)
		svr.signalShutdown()
		defer serverFarm.Delete(protoAddr)
	} else {
		return errors.ErrServerInShutdown
	}

	if svr.isInShutdown() {
		return errors.ErrServerInShutdown
	}

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	for {
		if svr.isInShutdown() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func parseProtoAddr(addr string) (network, address string) {
	network = "tcp"
	address = strings.ToLower(addr)
	if strings.Contains(address, "://") {
		pair := strings.Split(address, "://")
		network = pair[0]
		address = pair[1]
	}
	return
}

func sniffErrorAndLog(err error) {
	if err != nil {
		logging.DefaultLogger.Errorf("%v", err)
	}
}
