package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/testsquadco/mailauto/internal/appium"
)

func testManager(t *testing.T, running bool) *appium.Manager {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := appium.Options{
		Exec:         "no-such-binary-mailauto-test",
		ProbeTimeout: 300 * time.Millisecond,
		DialTimeout:  200 * time.Millisecond,
	}
	if running {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)
		host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
		if err != nil {
			t.Fatalf("split addr: %v", err)
		}
		port, _ := strconv.Atoi(portStr)
		return appium.New(appium.Endpoint{Host: host, Port: port}, opts, log)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return appium.New(appium.Endpoint{Host: "127.0.0.1", Port: port}, opts, log)
}

func TestSanitizeBase(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"/", ""},
		{"api", "/api"},
		{"/api", "/api"},
		{"/api/", "/api"},
		{"  /api  ", "/api"},
	}
	for _, c := range cases {
		if got := sanitizeBase(c.in); got != c.want {
			t.Fatalf("sanitizeBase(%q): got %q want %q", c.in, got, c.want)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	r := NewRouter(testManager(t, true), "/api")
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code: %d", resp.StatusCode)
	}
	var info appium.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !info.Running {
		t.Fatalf("expected running=true, got %+v", info)
	}
	if info.OwnsProcess {
		t.Fatalf("server not launched by manager, owns_process must be false")
	}
}

func TestStartAgainstLiveServer(t *testing.T) {
	r := NewRouter(testManager(t, true), "")
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/start?timeout=2s", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code: %d", resp.StatusCode)
	}
}

func TestStartFailureReturnsBadGateway(t *testing.T) {
	r := NewRouter(testManager(t, false), "")
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/start?timeout=500ms", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status code: %d", resp.StatusCode)
	}
	var e errorResp
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Error == "" {
		t.Fatalf("expected error message in body")
	}
}

func TestStopWithoutProcessIsOK(t *testing.T) {
	r := NewRouter(testManager(t, false), "/api")
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST stop: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code: %d", resp.StatusCode)
	}
	var ok okResp
	if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ok.OK {
		t.Fatalf("expected ok=true")
	}
}

func TestHealthz(t *testing.T) {
	r := NewRouter(testManager(t, false), "")
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code: %d", resp.StatusCode)
	}
}

func TestParseTimeout(t *testing.T) {
	if d := parseTimeout(""); d != 0 {
		t.Fatalf("empty: %v", d)
	}
	if d := parseTimeout("5s"); d != 5*time.Second {
		t.Fatalf("5s: %v", d)
	}
	if d := parseTimeout("junk"); d != 0 {
		t.Fatalf("junk: %v", d)
	}
	if d := parseTimeout("-3s"); d != 0 {
		t.Fatalf("negative: %v", d)
	}
}
