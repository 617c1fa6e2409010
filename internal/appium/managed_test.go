package appium

import (
	"bytes"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestTailBufferBounds(t *testing.T) {
	b := newTailBuffer(8)
	if _, err := b.Write([]byte("abcd")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := b.String(); got != "abcd" {
		t.Fatalf("got %q", got)
	}
	if _, err := b.Write([]byte("efghijkl")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := b.String(); got != "efghijkl" {
		t.Fatalf("after overflow: got %q", got)
	}
	if _, err := b.Write(bytes.Repeat([]byte("x"), 100)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := b.String(); got != strings.Repeat("x", 8) {
		t.Fatalf("after large write: got %q", got)
	}
}

func TestTeeWritesBoth(t *testing.T) {
	tail := newTailBuffer(64)
	var side bytes.Buffer
	w := tee(tail, &side)
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if tail.String() != "hello" || side.String() != "hello" {
		t.Fatalf("tail=%q side=%q", tail.String(), side.String())
	}
}

func TestTeeNilWriter(t *testing.T) {
	tail := newTailBuffer(64)
	w := tee(tail, nil)
	if _, err := w.Write([]byte("ok")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if tail.String() != "ok" {
		t.Fatalf("got %q", tail.String())
	}
}

func TestManagedProcessExitLifecycle(t *testing.T) {
	requireUnix(t)
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	p := &managedProcess{cmd: cmd, tail: newTailBuffer(tailLimit), waitCh: make(chan struct{}), startedAt: time.Now()}
	go p.reap()
	if !p.awaitExit(5 * time.Second) {
		t.Fatalf("process did not exit within deadline")
	}
	if !p.exited() {
		t.Fatalf("exited() should report true after reap")
	}
	if p.waitErr != nil {
		t.Fatalf("unexpected wait error: %v", p.waitErr)
	}
}

func TestManagedProcessAwaitExitTimeout(t *testing.T) {
	requireUnix(t)
	cmd := exec.Command("/bin/sh", "-c", "sleep 10")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	p := &managedProcess{cmd: cmd, tail: newTailBuffer(tailLimit), waitCh: make(chan struct{}), startedAt: time.Now()}
	go p.reap()
	defer func() {
		_ = cmd.Process.Kill()
		p.awaitExit(0)
	}()
	if p.awaitExit(50 * time.Millisecond) {
		t.Fatalf("awaitExit should time out while the process sleeps")
	}
	if p.exited() {
		t.Fatalf("exited() should report false while running")
	}
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a unix shell")
	}
}
