//go:build linux
// +build linux

package httpconn

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"golang.org/x/sys/unix"

	"shphttpd/internal/logging"
)

type fakePoller struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (p *fakePoller) record(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, op)
	return p.err
}

func (p *fakePoller) AddReadOneShot(int) error  { return p.record("add-read") }
func (p *fakePoller) ModReadOneShot(int) error  { return p.record("mod-read") }
func (p *fakePoller) ModWriteOneShot(int) error { return p.record("mod-write") }
func (p *fakePoller) Delete(int) error          { return p.record("delete") }

func (p *fakePoller) last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return ""
	}
	return p.calls[len(p.calls)-1]
}

func (p *fakePoller) count(op string) (n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.calls {
		if c == op {
			n++
		}
	}
	return
}

type testConn struct {
	*Conn
	poller   *fakePoller
	released int
}

func newTestConn(t *testing.T, cfg *Config) *testConn {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	tc := &testConn{poller: new(fakePoller)}
	tc.Conn = New(cfg, tc.poller, func(*Conn) { tc.released++ })
	t.Cleanup(func() {
		tc.unmap()
		tc.wbuf.release()
	})
	return tc
}

// feed appends data to the read buffer as if it had arrived from the socket.
func (tc *testConn) feed(t *testing.T, data string) {
	t.Helper()
	if tc.readIdx+len(data) > len(tc.readBuf) {
		t.Fatalf("feed overflows read buffer")
	}
	tc.readIdx += copy(tc.readBuf[tc.readIdx:], data)
}

// socketPair returns a non-blocking local end and a blocking peer end.
func socketPair(t *testing.T) (local, peer int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err = unix.SetNonblock(fds[1], false); err != nil {
		t.Fatalf("set blocking: %v", err)
	}
	t.Cleanup(func() { _ = unix.Close(fds[1]) })
	return fds[0], fds[1]
}

func writeFile(t *testing.T, dir, name, content string, perm os.FileMode) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), perm); err != nil {
		t.Fatal(err)
	}
	// umask must not decide the test
	if err := os.Chmod(p, perm); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestInitTakeClose(t *testing.T) {
	tc := newTestConn(t, nil)
	local, _ := socketPair(t)

	if err := tc.Init(local, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if tc.Fd() != local {
		t.Fatalf("Fd() = %d, want %d", tc.Fd(), local)
	}
	if in := tc.Take(); in != InterestRead {
		t.Fatalf("Take() = %d, want InterestRead", in)
	}
	if in := tc.Take(); in != InterestNone {
		t.Fatalf("second Take() = %d, want InterestNone", in)
	}

	if err := tc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if n := tc.poller.count("delete"); n != 1 {
		t.Fatalf("poller.Delete called %d times, want 1", n)
	}
	if tc.Fd() != -1 {
		t.Fatalf("Fd() after Close = %d", tc.Fd())
	}
}

func TestInitRegisterFailure(t *testing.T) {
	tc := newTestConn(t, nil)
	tc.poller.err = errors.New("boom")
	local, _ := socketPair(t)
	defer unix.Close(local)

	if err := tc.Init(local, nil); err == nil {
		t.Fatal("Init succeeded with a failing poller")
	}
	if tc.Take() != InterestNone || tc.Fd() != -1 {
		t.Fatal("failed Init left the conn bound")
	}
}

func TestRead(t *testing.T) {
	tc := newTestConn(t, &Config{ReadBufferSize: 16})
	local, peer := socketPair(t)
	if err := tc.Init(local, nil); err != nil {
		t.Fatal(err)
	}
	defer tc.Close()

	if err := tc.Read(); err != nil {
		t.Fatalf("Read on empty socket: %v", err)
	}
	if tc.readIdx != 0 {
		t.Fatalf("readIdx = %d, want 0", tc.readIdx)
	}

	if _, err := unix.Write(peer, []byte("GET / HTTP/1.1\r\n")); err != nil {
		t.Fatal(err)
	}
	if err := tc.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tc.readIdx != 16 {
		t.Fatalf("readIdx = %d, want 16", tc.readIdx)
	}

	if _, err := unix.Write(peer, []byte("more")); err != nil {
		t.Fatal(err)
	}
	if err := tc.Read(); err != ErrReadBufferFull {
		t.Fatalf("Read on full buffer = %v, want ErrReadBufferFull", err)
	}
}

func TestReadPeerClosed(t *testing.T) {
	tc := newTestConn(t, nil)
	local, peer := socketPair(t)
	if err := tc.Init(local, nil); err != nil {
		t.Fatal(err)
	}
	defer tc.Close()

	if _, err := unix.Write(peer, []byte("GET")); err != nil {
		t.Fatal(err)
	}
	_ = unix.Shutdown(peer, unix.SHUT_WR)

	if err := tc.Read(); err != io.EOF {
		t.Fatalf("Read = %v, want io.EOF", err)
	}
	if tc.readIdx != 3 {
		t.Fatalf("readIdx = %d, want 3", tc.readIdx)
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg := &Config{DocRoot: "/srv/www/../www/"}
	cfg.normalize()
	if cfg.DocRoot != "/srv/www" {
		t.Errorf("DocRoot = %q", cfg.DocRoot)
	}
	if cfg.ReadBufferSize != DefaultReadBufferSize ||
		cfg.WriteBufferSize != DefaultWriteBufferSize ||
		cfg.MaxFilenameLen != DefaultMaxFilenameLen {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	root := &Config{DocRoot: "/"}
	root.normalize()
	if root.DocRoot != "" {
		t.Errorf("DocRoot for / = %q, want empty", root.DocRoot)
	}
}

// The goroutine that takes the interest may close the conn at once, while the arming
// goroutine is still inside epoll_ctl. Run with -race.
func TestArmHandsOffToTaker(t *testing.T) {
	for i := 0; i < 50; i++ {
		tc := newTestConn(t, nil)
		local, _ := socketPair(t)
		if err := tc.Init(local, nil); err != nil {
			t.Fatal(err)
		}
		tc.Take()
		tc.feed(t, "GET /index.html HTTP/1.1\r\n")

		done := make(chan struct{})
		go func() {
			defer close(done)
			tc.Process() // incomplete request, re-arms for read
		}()
		for tc.Take() != InterestRead {
			runtime.Gosched()
		}
		if err := tc.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		<-done
	}
}
