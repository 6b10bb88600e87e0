package locker

import (
	"sync"
	"time"
)

// Cond is a condition variable bound to a lock.
// Unlike sync.Cond it supports waiting with a deadline.
type Cond struct {
	L sync.Locker

	mu      sync.Mutex
	waiters []chan struct{}
}

// NewCond returns a Cond bound to l.
func NewCond(l sync.Locker) (*Cond, error) {
	if l == nil {
		return nil, ErrNilLocker
	}
	return &Cond{L: l}, nil
}

func (c *Cond) enqueue() chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

// remove drops ch from the wait list, it reports false if ch was already woken.
func (c *Cond) remove(ch chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Wait atomically unlocks c.L and suspends the caller until woken by Signal or Broadcast.
// c.L is locked again before Wait returns.
func (c *Cond) Wait() {
	ch := c.enqueue()
	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// TimedWait is like Wait but gives up at deadline. It reports whether the caller was woken
// by Signal or Broadcast.
func (c *Cond) TimedWait(deadline time.Time) bool {
	ch := c.enqueue()
	c.L.Unlock()
	defer c.L.Lock()

	t := time.NewTimer(time.Until(deadline))
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		if c.remove(ch) {
			return false
		}
		// Lost the race with a Signal, the wakeup belongs to us.
		<-ch
		return true
	}
}

// Signal wakes the longest waiting goroutine, if any.
func (c *Cond) Signal() {
	c.mu.Lock()
	if len(c.waiters) > 0 {
		close(c.waiters[0])
		c.waiters = c.waiters[1:]
	}
	c.mu.Unlock()
}

// Broadcast wakes all waiting goroutines.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
	c.mu.Unlock()
}
