// Package locker wraps the synchronization primitives used by the worker pool and the server:
// a mutex, a condition variable with deadline waits and a counting semaphore.
package locker

import (
	"errors"
	"sync"
)

// ErrNilLocker is returned when a condition variable is built without a lock.
var ErrNilLocker = errors.New("locker: nil locker")

// Mutex is a mutual-exclusion lock.
type Mutex struct {
	mu sync.Mutex
}

// Lock locks m.
func (m *Mutex) Lock() {
	m.mu.Lock()
}

// Unlock unlocks m.
func (m *Mutex) Unlock() {
	m.mu.Unlock()
}

// Get returns the underlying lock, for waiting on a Cond.
func (m *Mutex) Get() *sync.Mutex {
	return &m.mu
}
