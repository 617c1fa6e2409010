package appium

import (
	"io"
	"os/exec"
	"sync"
	"time"
)

// tailLimit bounds how much combined child output is retained in memory
// for failure diagnostics.
const tailLimit = 64 * 1024

// managedProcess is the handle to a server process this manager launched.
// It exists if and only if this manager is responsible for eventually
// stopping that process; an externally running server never gets one.
type managedProcess struct {
	cmd       *exec.Cmd
	tail      *tailBuffer
	outW      io.WriteCloser // rotating stdout capture, may be nil
	errW      io.WriteCloser // rotating stderr capture, may be nil
	waitCh    chan struct{}  // closed once cmd.Wait returns
	waitErr   error          // valid after waitCh is closed
	startedAt time.Time
}

// reap runs cmd.Wait and publishes the result. Started exactly once, right
// after a successful cmd.Start.
func (p *managedProcess) reap() {
	p.waitErr = p.cmd.Wait()
	close(p.waitCh)
}

// exited reports whether the child has been reaped, without blocking.
func (p *managedProcess) exited() bool {
	select {
	case <-p.waitCh:
		return true
	default:
		return false
	}
}

// awaitExit blocks until the child is reaped or the timeout elapses.
// A zero or negative timeout blocks unconditionally.
func (p *managedProcess) awaitExit(timeout time.Duration) bool {
	if timeout <= 0 {
		<-p.waitCh
		return true
	}
	select {
	case <-p.waitCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *managedProcess) pid() int {
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Pid
	}
	return 0
}

func (p *managedProcess) closeWriters() {
	if p.outW != nil {
		_ = p.outW.Close()
		p.outW = nil
	}
	if p.errW != nil {
		_ = p.errW.Close()
		p.errW = nil
	}
}

// tailBuffer is a bounded ring over the child's combined output. Safe for
// concurrent writes from the stdout and stderr pipes.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	b.mu.Unlock()
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// tee duplicates child output into the tail buffer and an optional
// rotating writer.
func tee(t *tailBuffer, w io.Writer) io.Writer {
	if w == nil {
		return t
	}
	return io.MultiWriter(t, w)
}
