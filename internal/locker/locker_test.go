package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMutexGet(t *testing.T) {
	var m Mutex
	m.Lock()
	if m.Get().TryLock() {
		t.Fatal("raw handle should be locked")
	}
	m.Unlock()
	if !m.Get().TryLock() {
		t.Fatal("raw handle should be unlocked")
	}
	m.Get().Unlock()
}

func TestNewCondNilLocker(t *testing.T) {
	if _, err := NewCond(nil); err != ErrNilLocker {
		t.Fatalf("got %v, want ErrNilLocker", err)
	}
}

func TestCondSignalWakesOne(t *testing.T) {
	var m Mutex
	c, err := NewCond(m.Get())
	if err != nil {
		t.Fatal(err)
	}

	var woken int32
	var ready sync.WaitGroup
	for i := 0; i < 3; i++ {
		ready.Add(1)
		go func() {
			m.Lock()
			ready.Done()
			c.Wait()
			atomic.AddInt32(&woken, 1)
			m.Unlock()
		}()
	}
	ready.Wait()
	waitWaiters(t, c, 3)

	c.Signal()
	waitWaiters(t, c, 2)
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&woken); n != 1 {
		t.Fatalf("woken = %d, want 1", n)
	}

	c.Broadcast()
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&woken) != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("woken = %d after broadcast, want 3", atomic.LoadInt32(&woken))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCondTimedWait(t *testing.T) {
	var m Mutex
	c, _ := NewCond(m.Get())

	m.Lock()
	start := time.Now()
	if c.TimedWait(start.Add(30 * time.Millisecond)) {
		t.Fatal("TimedWait reported a wakeup without a signal")
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatal("TimedWait returned before the deadline")
	}
	m.Unlock()

	done := make(chan bool)
	go func() {
		m.Lock()
		ok := c.TimedWait(time.Now().Add(5 * time.Second))
		m.Unlock()
		done <- ok
	}()
	waitWaiters(t, c, 1)
	c.Signal()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("TimedWait reported timeout after Signal")
		}
	case <-time.After(time.Second):
		t.Fatal("TimedWait not woken by Signal")
	}
}

func waitWaiters(t *testing.T, c *Cond, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		c.mu.Lock()
		got := len(c.waiters)
		c.mu.Unlock()
		if got == n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("waiters = %d, want %d", got, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewSemInvalid(t *testing.T) {
	for _, v := range []int{-1, SemValueMax + 1} {
		if _, err := NewSem(v); err == nil {
			t.Errorf("NewSem(%d) succeeded", v)
		}
	}
}

func TestSemPostWait(t *testing.T) {
	s, err := NewSem(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if s.TryWait() {
		t.Fatal("TryWait succeeded on a zero count")
	}

	got := make(chan struct{})
	go func() {
		_ = s.Wait(ctx)
		close(got)
	}()
	select {
	case <-got:
		t.Fatal("Wait returned on a zero count")
	case <-time.After(20 * time.Millisecond):
	}
	if err := s.Post(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("Post did not wake the waiter")
	}
}

func TestSemWaitCancel(t *testing.T) {
	s, _ := NewSem(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}
	// The cancelled wait must not consume a later post.
	_ = s.Post()
	if !s.TryWait() {
		t.Fatal("post lost after cancelled wait")
	}
}

func TestSemOverflow(t *testing.T) {
	s, _ := NewSem(SemValueMax)
	if err := s.Post(); err != ErrSemOverflow {
		t.Fatalf("got %v, want ErrSemOverflow", err)
	}
}
