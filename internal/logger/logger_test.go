package logger

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func closeIf(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func TestWritersWithDir(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir}
	outW, errW := cfg.Writers("appium")
	if outW == nil || errW == nil {
		t.Fatalf("expected both writers non-nil when Dir is set")
	}
	_, _ = outW.Write([]byte("hello-out\n"))
	_, _ = errW.Write([]byte("hello-err\n"))
	closeIf(outW)
	closeIf(errW)

	if _, err := os.Stat(filepath.Join(dir, "appium.stdout.log")); err != nil {
		t.Fatalf("stdout log not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "appium.stderr.log")); err != nil {
		t.Fatalf("stderr log not created: %v", err)
	}
}

func TestWritersWithoutDir(t *testing.T) {
	outW, errW := Config{}.Writers("appium")
	if outW != nil || errW != nil {
		t.Fatalf("expected nil writers without Dir")
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	log, closer, err := New(Config{Level: "debug", FilePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("probe succeeded", "endpoint", "localhost:4723")
	closeIf(closer)

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(b) == 0 {
		t.Fatalf("log file empty")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"warn":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
