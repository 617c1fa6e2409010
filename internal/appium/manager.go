package appium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/testsquadco/mailauto/internal/history"
	"github.com/testsquadco/mailauto/internal/logger"
	"github.com/testsquadco/mailauto/internal/metrics"
	"github.com/testsquadco/mailauto/internal/probe"
)

// Default timing parameters. All blocking operations are bounded; see the
// per-field comments for which suspension point each one covers.
const (
	DefaultExec         = "appium"
	DefaultStartTimeout = 30 * time.Second // overall budget for StartServer
	DefaultPollInterval = 2 * time.Second  // sleep between readiness polls
	DefaultStopGrace    = 10 * time.Second // voluntary-exit window after SIGTERM
)

// Options tune a Manager. Zero values select the defaults above.
type Options struct {
	Exec         string        // server executable name or path
	ExtraArgs    []string      // appended after --port/--address
	ProbeTimeout time.Duration // per HTTP health check
	DialTimeout  time.Duration // TCP connect fallback
	PollInterval time.Duration // between readiness polls during start
	StopGrace    time.Duration // before escalating SIGTERM to SIGKILL
	Log          logger.Config // rotating capture of child stdout/stderr
}

func (o *Options) withDefaults() {
	if o.Exec == "" {
		o.Exec = DefaultExec
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = probe.DefaultHTTPTimeout
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = probe.DefaultTCPTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.StopGrace <= 0 {
		o.StopGrace = DefaultStopGrace
	}
}

// Info is a point-in-time snapshot of the manager's view of the server.
// Running is re-derived by live probing on every call, never cached.
type Info struct {
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	URL         string    `json:"url"`
	Running     bool      `json:"running"`
	OwnsProcess bool      `json:"owns_process"`
	PID         int       `json:"pid,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
}

// Manager owns start/stop/health-check/restart of an Appium server and the
// readiness contract callers need before issuing WebDriver commands.
//
// A Manager holds a process handle if and only if it launched the server
// itself; stopping never touches a server somebody else started. All public
// operations are total: they log and return booleans for expected failure
// modes instead of propagating errors. Operations on one Manager are
// serialized, so no concurrent probes or double launches can happen even
// with concurrent callers.
type Manager struct {
	ep   Endpoint
	opts Options
	log  *slog.Logger

	mu    sync.Mutex
	proc  *managedProcess
	sinks []history.Sink
}

// New builds a Manager. It performs no I/O; the first probe happens on the
// first IsRunning/EnsureRunning call. A nil logger falls back to
// slog.Default.
func New(ep Endpoint, opts Options, log *slog.Logger) *Manager {
	if ep.Host == "" {
		ep.Host = "localhost"
	}
	if ep.Port == 0 {
		ep.Port = DefaultPort
	}
	if log == nil {
		log = slog.Default()
	}
	opts.withDefaults()
	return &Manager{ep: ep, opts: opts, log: log}
}

// Endpoint returns the endpoint this manager was built for.
func (m *Manager) Endpoint() Endpoint { return m.ep }

// SetHistorySinks configures destinations for lifecycle events. Passing no
// sinks clears the list.
func (m *Manager) SetHistorySinks(sinks ...history.Sink) {
	m.mu.Lock()
	m.sinks = append([]history.Sink(nil), sinks...)
	m.mu.Unlock()
}

// IsRunning probes the server with the ordered health-check chain: the
// version-specific status paths over HTTP, then a raw TCP connect. It is
// bounded by the sum of configured probe timeouts and never reports an
// error; anything unexpected reads as "not running".
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning()
}

func (m *Manager) isRunning() bool {
	ok, by := probe.Chain(context.Background(), m.probes())
	if ok {
		m.log.Info("appium server is running", "endpoint", m.ep.Addr(), "via", by)
	} else {
		m.log.Info("appium server is not running", "endpoint", m.ep.Addr())
	}
	return ok
}

func (m *Manager) probes() []probe.Probe {
	urls := m.ep.StatusURLs()
	ps := make([]probe.Probe, 0, len(urls)+1)
	for _, u := range urls {
		ps = append(ps, instrumented{probe.NewHTTPProbe(u, m.opts.ProbeTimeout)})
	}
	ps = append(ps, instrumented{probe.TCPProbe{Addr: m.ep.Addr(), Timeout: m.opts.DialTimeout}})
	return ps
}

// instrumented counts each probe outcome without changing chain semantics.
type instrumented struct{ probe.Probe }

func (p instrumented) Check(ctx context.Context) probe.Result {
	r := p.Probe.Check(ctx)
	metrics.IncProbeCheck(p.Describe(), r.String())
	return r
}

// StartServer spawns the server in its own process group and polls until a
// health probe succeeds or the timeout elapses. A child that dies before
// becoming ready fails fast with its captured output logged. A missing
// executable is reported as a distinct configuration problem, not a fault.
func (m *Manager) StartServer(timeout time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start(timeout)
}

func (m *Manager) start(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	m.log.Info("starting appium server", "endpoint", m.ep.Addr(), "timeout", timeout)

	args := []string{"--port", strconv.Itoa(m.ep.Port)}
	if !m.ep.IsLoopback() {
		args = append(args, "--address", m.ep.Host)
	}
	args = append(args, m.opts.ExtraArgs...)

	// #nosec G204 -- executable comes from our own configuration
	cmd := exec.Command(m.opts.Exec, args...)
	tail := newTailBuffer(tailLimit)
	outW, errW := m.opts.Log.Writers("appium")
	cmd.Stdout = tee(tail, outW)
	cmd.Stderr = tee(tail, errW)
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		if outW != nil {
			_ = outW.Close()
		}
		if errW != nil {
			_ = errW.Close()
		}
		if isExecNotFound(err) {
			m.log.Error("appium executable not found; install it with: npm install -g appium",
				"exec", m.opts.Exec)
			metrics.IncStartFailure("exec_not_found")
		} else {
			m.log.Error("failed to start appium server", "error", err)
			metrics.IncStartFailure("spawn")
		}
		return false
	}

	p := &managedProcess{
		cmd:       cmd,
		tail:      tail,
		outW:      outW,
		errW:      errW,
		waitCh:    make(chan struct{}),
		startedAt: time.Now(),
	}
	go p.reap()

	deadline := time.Now().Add(timeout)
	for {
		if m.probeReady() {
			elapsed := time.Since(p.startedAt)
			m.proc = p
			m.log.Info("appium server started", "pid", p.pid(), "elapsed", elapsed.Round(time.Millisecond))
			metrics.IncServerStart()
			metrics.ObserveStartDuration(elapsed.Seconds())
			m.emit(history.EventServerStart, history.Record{
				Name: "appium", PID: p.pid(), Endpoint: m.ep.Addr(), StartedAt: p.startedAt,
			})
			return true
		}
		if p.exited() {
			m.log.Error("appium server exited before becoming ready",
				"error", p.waitErr, "output", p.tail.String())
			p.closeWriters()
			metrics.IncStartFailure("early_exit")
			m.emit(history.EventServerFail, history.Record{
				Name: "appium", Endpoint: m.ep.Addr(), Detail: "exited before ready",
			})
			return false
		}
		if time.Now().After(deadline) {
			break
		}
		// Wake early if the child dies mid-sleep; a dead process is not
		// worth polling for another interval.
		p.awaitExit(m.opts.PollInterval)
	}

	m.log.Error("appium server failed to start within timeout", "timeout", timeout)
	metrics.IncStartFailure("timeout")
	m.emit(history.EventServerFail, history.Record{
		Name: "appium", PID: p.pid(), Endpoint: m.ep.Addr(), Detail: "startup timeout",
	})
	// Best-effort cleanup of the half-started process.
	m.proc = p
	_ = m.stop()
	return false
}

// probeReady is the readiness poll used by start. Unlike isRunning it does
// not log every negative attempt; the poll loop would be noisy at 2s
// intervals.
func (m *Manager) probeReady() bool {
	ok, _ := probe.Chain(context.Background(), m.probes())
	return ok
}

// StopServer terminates the server only if this manager launched it:
// SIGTERM to the process group, a grace period for voluntary exit, then
// SIGKILL and an unconditional reap. The handle is cleared in every path,
// success or failure, so a signaling error can never wedge the manager.
func (m *Manager) StopServer() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop()
}

func (m *Manager) stop() bool {
	p := m.proc
	if p == nil {
		m.log.Info("no appium server process to stop")
		return true
	}
	defer func() {
		p.closeWriters()
		m.proc = nil
	}()

	pid := p.pid()
	m.log.Info("stopping appium server", "pid", pid)

	if err := terminateGroup(pid); err != nil {
		m.log.Error("failed to signal appium server", "pid", pid, "error", err)
		if !p.exited() {
			return false
		}
	}

	if !p.awaitExit(m.opts.StopGrace) {
		m.log.Warn("appium server did not stop gracefully, force killing", "pid", pid)
		if err := killGroup(pid); err != nil {
			m.log.Error("failed to kill appium server", "pid", pid, "error", err)
			return false
		}
		p.awaitExit(0)
	}

	m.log.Info("appium server stopped", "pid", pid)
	metrics.IncServerStop()
	m.emit(history.EventServerStop, history.Record{
		Name: "appium", PID: pid, Endpoint: m.ep.Addr(),
		StartedAt: p.startedAt, StoppedAt: time.Now(),
	})
	return true
}

// EnsureRunning is the entry point callers use before issuing remote
// commands: probe first, launch only when nothing answered. It never
// restarts a healthy server and never double-launches.
func (m *Manager) EnsureRunning(timeout time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isRunning() {
		return true
	}
	return m.start(timeout)
}

// RestartServer stops the owned process (if any) and starts a fresh one.
// A stop failure aborts the restart to avoid leaking or double-launching.
func (m *Manager) RestartServer(timeout time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Info("restarting appium server", "endpoint", m.ep.Addr())
	if m.proc != nil {
		if !m.stop() {
			m.log.Error("failed to stop appium server for restart")
			return false
		}
	}
	return m.start(timeout)
}

// Info snapshots the manager state. Running triggers a fresh probe.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := Info{
		Host:    m.ep.Host,
		Port:    m.ep.Port,
		URL:     m.ep.URL(),
		Running: m.isRunning(),
	}
	if m.proc != nil {
		info.OwnsProcess = true
		info.PID = m.proc.pid()
		info.StartedAt = m.proc.startedAt
		if t := processStartTime(info.PID); !t.IsZero() {
			info.StartedAt = t
		}
	}
	return info
}

// WithServer runs fn with a ready server and guarantees the managed
// process does not outlive the call, even when fn returns an error.
func (m *Manager) WithServer(timeout time.Duration, fn func(*Manager) error) error {
	if !m.EnsureRunning(timeout) {
		return fmt.Errorf("appium server not ready on %s", m.ep.Addr())
	}
	defer m.StopServer()
	return fn(m)
}

func (m *Manager) emit(t history.EventType, rec history.Record) {
	if len(m.sinks) == 0 {
		return
	}
	evt := history.Event{Type: t, OccurredAt: time.Now().UTC(), Record: rec}
	for _, s := range m.sinks {
		if err := s.Send(context.Background(), evt); err != nil {
			m.log.Warn("history sink rejected event", "type", t, "error", err)
		}
	}
}

func isExecNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// Start ensures a running server and returns its manager, converting a
// boolean failure into an error for callers that must not proceed without
// one.
func Start(ep Endpoint, opts Options, timeout time.Duration, log *slog.Logger) (*Manager, error) {
	m := New(ep, opts, log)
	if !m.EnsureRunning(timeout) {
		return nil, fmt.Errorf("failed to start appium server on %s", ep.Addr())
	}
	return m, nil
}

// IsServerRunning is a one-shot probe without constructing a long-lived
// manager.
func IsServerRunning(ep Endpoint) bool {
	return New(ep, Options{}, slog.Default()).IsRunning()
}
