//go:build linux
// +build linux

package shphttpd

import (
	"io"
	"sync/atomic"

	"shphttpd/internal/httpconn"
	"shphttpd/internal/logging"
	"shphttpd/internal/metrics"
	"shphttpd/internal/netpoll"
	"shphttpd/internal/threadpool"
)

// eventloop is the reactor state. Except for notifyVacancy, release and snapshot, its methods only run
// on the reactor goroutine, or after the reactor and the workers have stopped.
type eventloop struct {
	svr         *server
	poller      *netpoll.Poller
	pool        *threadpool.Pool
	connCfg     *httpconn.Config
	connections []*httpconn.Conn // indexed by fd
	connCount   int              // live connections
	backlog     []*httpconn.Conn // drained connections the pool refused
	flushing    atomic.Bool      // a backlog flush is queued on the poller
	logger      logging.Logger

	// mirrors of connCount and len(backlog) for readers off the reactor goroutine
	liveConns  atomic.Int64
	backlogLen atomic.Int64
}

func newEventloop(svr *server, p *netpoll.Poller) *eventloop {
	return &eventloop{
		svr:         svr,
		poller:      p,
		connCfg:     newConnConfig(svr.opts),
		connections: make([]*httpconn.Conn, svr.opts.MaxConns),
		logger:      svr.logger,
	}
}

func (el *eventloop) handleEvent(fd int, ev uint32) error {
	if fd == el.svr.ln.fd {
		return el.loopAccept(fd)
	}
	if fd < 0 || fd >= len(el.connections) {
		return nil
	}
	c := el.connections[fd]
	if c == nil || c.Fd() != fd {
		return nil
	}

	// One-shot: whoever armed the connection handed it over with this event.
	in := c.Take()
	if in == httpconn.InterestNone {
		return nil
	}
	if ev&netpoll.ErrEvents != 0 {
		el.closeConn(c)
		return nil
	}

	switch in {
	case httpconn.InterestRead:
		el.loopRead(c)
	case httpconn.InterestWrite:
		el.loopWrite(c)
	}
	return nil
}

func (el *eventloop) loopRead(c *httpconn.Conn) {
	if err := c.Read(); err != nil {
		if err != io.EOF {
			el.logger.Debugf("Read from fd %d: %v", c.Fd(), err)
		}
		el.closeConn(c)
		return
	}
	el.dispatch(c)
}

// dispatch hands a drained connection to the workers. Connections refused by a full queue
// wait in the backlog, in order, until a worker frees a slot.
func (el *eventloop) dispatch(c *httpconn.Conn) {
	if len(el.backlog) == 0 && el.pool.Append(c) {
		return
	}
	el.backlog = append(el.backlog, c)
	el.backlogLen.Store(int64(len(el.backlog)))
	el.logger.Debugf("Request queue is full, fd %d waits in backlog (%d)", c.Fd(), len(el.backlog))
}

// notifyVacancy is called by a worker that freed a queue slot after a refused Append.
func (el *eventloop) notifyVacancy() {
	if !el.flushing.CompareAndSwap(false, true) {
		return
	}
	if err := el.poller.Trigger(el.flushBacklog); err != nil {
		el.flushing.Store(false)
		el.logger.Warnf("Failed to schedule backlog flush: %v", err)
	}
}

func (el *eventloop) flushBacklog() error {
	el.flushing.Store(false)
	n := 0
	for n < len(el.backlog) && el.pool.Append(el.backlog[n]) {
		el.backlog[n] = nil
		n++
	}
	el.backlog = el.backlog[n:]
	if len(el.backlog) == 0 {
		el.backlog = nil
	}
	el.backlogLen.Store(int64(len(el.backlog)))
	return nil
}

func (el *eventloop) loopWrite(c *httpconn.Conn) {
	switch err := c.Write(); err {
	case nil:
	case httpconn.ErrNotPersistent:
		el.closeConn(c)
	default:
		el.logger.Warnf("Write to fd %d: %v", c.Fd(), err)
		el.closeConn(c)
	}
}

// release is the hook workers use to give up a connection, the close itself is queued onto
// the reactor.
func (el *eventloop) release(c *httpconn.Conn) {
	err := el.poller.Trigger(func() error {
		el.closeConn(c)
		return nil
	})
	if err != nil {
		el.logger.Warnf("Failed to schedule close of fd %d: %v", c.Fd(), err)
	}
}

func (el *eventloop) closeConn(c *httpconn.Conn) {
	fd := c.Fd()
	if fd < 0 {
		return
	}
	if err := c.Close(); err != nil {
		el.logger.Debugf("Close fd %d: %v", fd, err)
	}
	el.connCount--
	el.liveConns.Store(int64(el.connCount))
}

func (el *eventloop) closeAllConns() {
	el.backlog = nil
	el.backlogLen.Store(0)
	for _, c := range el.connections {
		if c != nil {
			el.closeConn(c)
		}
	}
}

func (el *eventloop) snapshot() metrics.Snapshot {
	return metrics.Snapshot{
		Conns:   el.liveConns.Load(),
		Backlog: el.backlogLen.Load(),
		Pool:    el.pool.Stats(),
	}
}
