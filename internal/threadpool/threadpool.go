// Package threadpool runs jobs on a fixed set of long-lived worker goroutines fed from a
// bounded FIFO queue. The queue is guarded by a mutex and its length is mirrored by a
// counting semaphore that idle workers block on.
package threadpool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"shphttpd/internal/locker"
	"shphttpd/internal/logging"
)

// ErrPoolClosed is returned by Close when the pool was already closed.
var ErrPoolClosed = errors.New("threadpool: pool closed")

// Job is a unit of work, for the server it is a connection with a drained read buffer.
type Job interface {
	Process()
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	Workers   int
	Queued    int
	Running   int
	Submitted uint64
	Rejected  uint64
	Completed uint64
}

// Pool is a fixed-size worker pool. It is never resized.
type Pool struct {
	threadNumber int // 线程的数量
	maxRequests  int // 请求队列中最多允许的等待处理的请求的数量

	workers *ants.Pool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	workQueue   *list.List   // 请求队列
	queueLocker locker.Mutex // 保护请求队列的互斥锁
	queueStat   *locker.Sem  // 请求队列中任务的信号量
	idle        *locker.Cond // queue drained and nothing running
	running     int
	stopped     bool
	starved     bool // an Append was refused since the last vacancy notice
	submitted   uint64
	rejected    uint64
	completed   uint64

	logger    logging.Logger
	onVacancy func()
}

// Option configures a Pool.
type Option func(p *Pool)

// WithLogger sets the logger of the pool.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithVacancyNotify sets fn to be called by a worker right after it frees a queue slot
// following a rejected Append, so the rejected producer knows when to retry.
// fn runs on the worker goroutine and must not block.
func WithVacancyNotify(fn func()) Option {
	return func(p *Pool) {
		p.onVacancy = fn
	}
}

// New starts threadNumber workers serving a queue of at most maxRequests jobs.
func New(threadNumber, maxRequests int, opts ...Option) (*Pool, error) {
	if threadNumber <= 0 || maxRequests <= 0 {
		return nil, fmt.Errorf("threadpool: invalid size: %d workers, %d requests", threadNumber, maxRequests)
	}

	p := &Pool{
		threadNumber: threadNumber,
		maxRequests:  maxRequests,
		workQueue:    list.New(),
		logger:       logging.DefaultLogger,
	}
	for _, opt := range opts {
		opt(p)
	}
	logger := p.logger
	var err error
	if p.queueStat, err = locker.NewSem(0); err != nil {
		return nil, err
	}
	if p.idle, err = locker.NewCond(p.queueLocker.Get()); err != nil {
		return nil, err
	}
	p.workers, err = ants.NewPool(threadNumber,
		ants.WithPreAlloc(true),
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v interface{}) {
			logger.Errorf("worker exited on panic: %v", v)
		}))
	if err != nil {
		return nil, fmt.Errorf("threadpool: %w", err)
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	for i := 0; i < threadNumber; i++ {
		p.wg.Add(1)
		if err = p.workers.Submit(p.run); err != nil {
			p.wg.Done()
			p.cancel()
			p.wg.Wait()
			p.workers.Release()
			return nil, fmt.Errorf("threadpool: start worker %d: %w", i, err)
		}
	}
	return p, nil
}

// Append queues job for a worker. It never blocks: it reports false when the queue is
// full or the pool is closed, the caller should retry later.
func (p *Pool) Append(job Job) bool {
	p.queueLocker.Lock()
	if p.stopped || p.workQueue.Len() >= p.maxRequests {
		p.rejected++
		p.starved = !p.stopped
		p.queueLocker.Unlock()
		return false
	}
	p.workQueue.PushBack(job)
	p.submitted++
	p.queueLocker.Unlock()

	if err := p.queueStat.Post(); err != nil {
		p.logger.Errorf("threadpool: post: %v", err)
	}
	return true
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		if err := p.queueStat.Wait(p.ctx); err != nil {
			return
		}
		p.queueLocker.Lock()
		if p.workQueue.Len() == 0 {
			p.queueLocker.Unlock()
			continue
		}
		notify := p.starved
		p.starved = false
		job := p.workQueue.Remove(p.workQueue.Front()).(Job)
		p.running++
		p.queueLocker.Unlock()

		if notify && p.onVacancy != nil {
			p.onVacancy()
		}

		p.process(job)

		p.queueLocker.Lock()
		p.running--
		p.completed++
		if p.running == 0 && p.workQueue.Len() == 0 {
			p.idle.Broadcast()
		}
		p.queueLocker.Unlock()
	}
}

func (p *Pool) process(job Job) {
	defer func() {
		if v := recover(); v != nil {
			p.logger.Errorf("threadpool: job panicked: %v", v)
		}
	}()
	job.Process()
}

// Close stops accepting jobs, waits until every queued and running job has finished,
// then stops and joins the workers. If ctx ends first the jobs still queued are dropped
// and ctx.Err() is returned once the running ones have returned.
func (p *Pool) Close(ctx context.Context) error {
	p.queueLocker.Lock()
	if p.stopped {
		p.queueLocker.Unlock()
		return ErrPoolClosed
	}
	p.stopped = true

	var err error
	deadline, hasDeadline := ctx.Deadline()
	for p.running > 0 || p.workQueue.Len() > 0 {
		if err = ctx.Err(); err != nil {
			break
		}
		// wake up regularly to notice a ctx cancelled before its deadline
		wait := time.Now().Add(100 * time.Millisecond)
		if hasDeadline && deadline.Before(wait) {
			wait = deadline
		}
		p.idle.TimedWait(wait)
	}
	if dropped := p.workQueue.Len(); dropped > 0 {
		p.logger.Warnf("threadpool: dropping %d queued jobs", dropped)
		p.workQueue.Init()
	}
	p.queueLocker.Unlock()

	p.cancel()
	p.wg.Wait()
	p.workers.Release()
	return err
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.queueLocker.Lock()
	defer p.queueLocker.Unlock()
	return Stats{
		Workers:   p.threadNumber,
		Queued:    p.workQueue.Len(),
		Running:   p.running,
		Submitted: p.submitted,
		Rejected:  p.rejected,
		Completed: p.completed,
	}
}
