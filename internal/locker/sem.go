package locker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// SemValueMax is the largest value a Sem can count to.
const SemValueMax = math.MaxInt32

// ErrSemOverflow is returned by Post when the count is already at SemValueMax.
var ErrSemOverflow = errors.New("locker: semaphore overflow")

// Sem is a counting semaphore.
//
// The available permits of the underlying weighted semaphore are the count: Post releases
// one permit and Wait acquires one.
type Sem struct {
	w *semaphore.Weighted
	n int64 // count including posts in flight
}

// NewSem returns a Sem whose count starts at initial.
func NewSem(initial int) (*Sem, error) {
	if initial < 0 || initial > SemValueMax {
		return nil, fmt.Errorf("locker: invalid semaphore value %d", initial)
	}
	w := semaphore.NewWeighted(SemValueMax)
	if !w.TryAcquire(int64(SemValueMax - initial)) {
		return nil, fmt.Errorf("locker: semaphore init failed")
	}
	return &Sem{w: w, n: int64(initial)}, nil
}

// Wait blocks while the count is zero, then decrements it.
// It returns ctx.Err() if ctx is done first, leaving the count untouched.
func (s *Sem) Wait(ctx context.Context) error {
	if err := s.w.Acquire(ctx, 1); err != nil {
		return err
	}
	atomic.AddInt64(&s.n, -1)
	return nil
}

// TryWait decrements the count if it is positive, without blocking.
func (s *Sem) TryWait() bool {
	if !s.w.TryAcquire(1) {
		return false
	}
	atomic.AddInt64(&s.n, -1)
	return true
}

// Post increments the count, waking one waiter.
func (s *Sem) Post() error {
	if atomic.AddInt64(&s.n, 1) > SemValueMax {
		atomic.AddInt64(&s.n, -1)
		return ErrSemOverflow
	}
	s.w.Release(1)
	return nil
}
