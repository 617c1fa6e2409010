package mailauto

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/testsquadco/mailauto/internal/appium"
	"github.com/testsquadco/mailauto/internal/automation"
	cfg "github.com/testsquadco/mailauto/internal/config"
	"github.com/testsquadco/mailauto/internal/history"
	"github.com/testsquadco/mailauto/internal/metrics"
	iapi "github.com/testsquadco/mailauto/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Endpoint = appium.Endpoint

type Options = appium.Options

type Info = appium.Info

type Config = cfg.Config

type HistorySink = history.Sink

type Outcome = automation.Outcome

const (
	OutcomeSuccess  = automation.OutcomeSuccess
	OutcomeBlocked  = automation.OutcomeBlocked
	OutcomeLaunched = automation.OutcomeLaunched
	OutcomeFailed   = automation.OutcomeFailed
)

// Manager is a thin facade over the internal server manager.
// It provides a stable public API for embedding.

type Manager struct{ inner *appium.Manager }

// NewManager builds a manager for the given endpoint. A nil logger falls
// back to slog.Default.
func NewManager(ep Endpoint, opts Options, log *slog.Logger) *Manager {
	return &Manager{inner: appium.New(ep, opts, log)}
}

func (m *Manager) Endpoint() Endpoint                      { return m.inner.Endpoint() }
func (m *Manager) IsRunning() bool                         { return m.inner.IsRunning() }
func (m *Manager) StartServer(timeout time.Duration) bool  { return m.inner.StartServer(timeout) }
func (m *Manager) StopServer() bool                        { return m.inner.StopServer() }
func (m *Manager) EnsureRunning(timeout time.Duration) bool {
	return m.inner.EnsureRunning(timeout)
}
func (m *Manager) RestartServer(timeout time.Duration) bool {
	return m.inner.RestartServer(timeout)
}
func (m *Manager) Info() Info                          { return m.inner.Info() }
func (m *Manager) SetHistorySinks(sinks ...HistorySink) { m.inner.SetHistorySinks(sinks...) }

// WithServer runs fn with a ready server and stops it afterwards if this
// manager launched it.
func (m *Manager) WithServer(timeout time.Duration, fn func(*Manager) error) error {
	return m.inner.WithServer(timeout, func(*appium.Manager) error { return fn(m) })
}

// DefaultEndpoint returns localhost:4723.
func DefaultEndpoint() Endpoint { return appium.DefaultEndpoint() }

// IsServerRunning probes an endpoint without keeping a manager around.
func IsServerRunning(ep Endpoint) bool { return appium.IsServerRunning(ep) }

// LoadConfig reads a TOML config file.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// DefaultConfig returns the built-in defaults with env overrides applied.
func DefaultConfig() *Config { return cfg.Default() }

// NewFlow builds the sign-in automation flow from a config and manager.
func NewFlow(c *Config, m *Manager, log *slog.Logger) *automation.Flow {
	return automation.New(c, m.inner, log)
}

// RunAutomation is the one-call entry point: ensure the server, drive the
// flow, clean up.
func RunAutomation(ctx context.Context, c *Config, log *slog.Logger) (Outcome, error) {
	m := NewManager(c.Endpoint(), c.ManagerOptions(), log)
	return NewFlow(c, m, log).Run(ctx, false)
}

// NewHTTPServer starts the control API on addr using the given manager.
func NewHTTPServer(addr, basePath string, m *Manager) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, m.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It blocks in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
