//go:build linux
// +build linux

package shphttpd

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/gnet/errors"

	"shphttpd/internal/httpconn"
	"shphttpd/internal/locker"
	"shphttpd/internal/logging"
	"shphttpd/internal/metrics"
	"shphttpd/internal/netpoll"
	"shphttpd/internal/threadpool"
)

type server struct {
	ln         *listener          // the listener for accepting new connections
	el         *eventloop         // the reactor, owns the poller and every connection
	pool       *threadpool.Pool   // workers processing requests
	wg         sync.WaitGroup     // reactor close WaitGroup
	opts       *Options           // options with server
	once       sync.Once          // make sure only signalShutdown once
	mu         locker.Mutex       // guards shutdown
	cond       *locker.Cond       // shutdown signaler
	shutdown   bool               // shutdown was signaled
	collector  *metrics.Collector // registered with opts.Metrics
	logger     logging.Logger     // customized logger for logging info
	inShutdown int32              // whether the server is in shutdown
}

var serverFarm sync.Map

// testHookServerRegistered runs right after serve has published the server, tests only.
var testHookServerRegistered func()

func (svr *server) isInShutdown() bool {
	return atomic.LoadInt32(&svr.inShutdown) == 1
}

// waitForShutdown waits for a signal to shutdown.
func (svr *server) waitForShutdown() {
	svr.cond.L.Lock()
	for !svr.shutdown {
		svr.cond.Wait()
	}
	svr.cond.L.Unlock()
}

// signalShutdown signals the server to shut down.
func (svr *server) signalShutdown() {
	svr.once.Do(func() {
		svr.cond.L.Lock()
		svr.shutdown = true
		svr.cond.Signal()
		svr.cond.L.Unlock()
	})
}

func (svr *server) activateReactor() (err error) {
	var p *netpoll.Poller
	if p, err = netpoll.OpenPoller(); err != nil {
		return
	}
	p.SetLogger(svr.logger)

	el := newEventloop(svr, p)
	if err = svr.ln.register(p); err != nil {
		_ = p.Close()
		return
	}

	// 队列满后被拒绝的连接由 reactor 暂存，worker 腾出位置时再投递
	svr.pool, err = threadpool.New(svr.opts.NumWorkers, svr.opts.MaxRequests,
		threadpool.WithLogger(svr.logger),
		threadpool.WithVacancyNotify(el.notifyVacancy))
	if err != nil {
		_ = p.Close()
		return
	}
	el.pool = svr.pool
	svr.el = el

	if svr.opts.Metrics != nil {
		collector := metrics.NewCollector(el.snapshot)
		if err = svr.opts.Metrics.Register(collector); err != nil {
			_ = svr.pool.Close(context.Background())
			_ = p.Close()
			return
		}
		svr.collector = collector
		el.connCfg.OnResponse = collector.ObserveResponse
	}

	svr.wg.Add(1)
	go func() {
		svr.runReactor(svr.opts.LockOSThread)
		svr.wg.Done()
	}()
	return nil
}

func (svr *server) stop() {
	// Wait on a signal for shutdown
	svr.waitForShutdown()

	svr.logger.Infof("Server on %s is stopping", svr.ln.lnaddr)

	// Stop the reactor, from here on no connection gets a new event.
	sniffErrorAndLog(svr.el.poller.Trigger(func() error {
		return errors.ErrServerShutdown
	}))
	svr.wg.Wait()

	svr.logger.Infof("Worker pool at shutdown: %+v", svr.pool.Stats())
	ctx, cancel := context.WithTimeout(context.Background(), svr.opts.ShutdownTimeout)
	if err := svr.pool.Close(ctx); err != nil {
		svr.logger.Warnf("Worker pool closed with error: %v", err)
	}
	cancel()

	// Workers are gone too, whatever is still open belongs to nobody.
	svr.el.closeAllConns()
	if svr.collector != nil {
		svr.opts.Metrics.Unregister(svr.collector)
	}
	sniffErrorAndLog(svr.el.poller.Close())
	svr.ln.close()

	atomic.StoreInt32(&svr.inShutdown, 1)
}

func (svr *server) boot() error {
	options := svr.opts
	if options.DocRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		options.DocRoot = filepath.Join(wd, "root")
	}
	if abs, err := filepath.Abs(options.DocRoot); err == nil {
		options.DocRoot = abs
	}
	return svr.activateReactor()
}

func serve(ln *listener, options *Options, protoAddr string) error {
	svr := new(server)
	svr.opts = options
	svr.ln = ln
	svr.logger = options.Logger
	svr.cond, _ = locker.NewCond(&svr.mu)

	// Published before booting so a Stop issued meanwhile is not lost.
	serverFarm.Store(protoAddr, svr)
	if testHookServerRegistered != nil {
		testHookServerRegistered()
	}

	if err := svr.boot(); err != nil {
		svr.logger.Errorf("httpd server is stopping with error: %v", err)
		serverFarm.Delete(protoAddr)
		atomic.StoreInt32(&svr.inShutdown, 1)
		return err
	}
	defer svr.stop()

	svr.logger.Infof("Serving %s on %s with %d workers", options.DocRoot, ln.lnaddr, options.NumWorkers)
	if options.OnBoot != nil {
		options.OnBoot(ln.lnaddr)
	}

	return nil
}

func newConnConfig(opts *Options) *httpconn.Config {
	return &httpconn.Config{
		DocRoot:         opts.DocRoot,
		ReadBufferSize:  opts.ReadBufferCap,
		WriteBufferSize: opts.WriteBufferCap,
		MaxFilenameLen:  opts.MaxFilenameLen,
		Logger:          opts.Logger,
	}
}
