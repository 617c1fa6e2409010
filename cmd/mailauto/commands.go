package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/testsquadco/mailauto/internal/appium"
	"github.com/testsquadco/mailauto/internal/automation"
	"github.com/testsquadco/mailauto/internal/config"
	"github.com/testsquadco/mailauto/internal/history"
	"github.com/testsquadco/mailauto/internal/history/factory"
	"github.com/testsquadco/mailauto/internal/logger"
	"github.com/testsquadco/mailauto/internal/metrics"
	"github.com/testsquadco/mailauto/internal/server"
	"github.com/testsquadco/mailauto/pkg/client"
)

type command struct {
	global *GlobalFlags
}

// loadConfig reads the configured TOML file or falls back to defaults.
func (c command) loadConfig() (*config.Config, error) {
	if c.global.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(c.global.ConfigPath)
}

// setup builds the config, logger, and manager most commands need. The
// returned closer flushes the log file, if any.
func (c command) setup() (*config.Config, *appium.Manager, *slog.Logger, io.Closer, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if closer == nil {
		closer = nopCloser{}
	}
	mgr := appium.New(cfg.Endpoint(), cfg.ManagerOptions(), log)
	return cfg, mgr, log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// historySinks opens the configured history backend. A missing DSN is not
// an error; history is optional.
func historySinks(cfg *config.Config, log *slog.Logger) ([]history.Sink, func()) {
	if cfg.History.DSN == "" {
		return nil, func() {}
	}
	sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
	if err != nil {
		log.Warn("history disabled", "dsn", cfg.History.DSN, "error", err)
		return nil, func() {}
	}
	cleanup := func() {
		if closer, ok := sink.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	return []history.Sink{sink}, cleanup
}

// Run executes the automation flow.
func (c command) Run(f RunFlags) error {
	cfg, mgr, log, closer, err := c.setup()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	metrics.Register(prometheus.DefaultRegisterer)
	sinks, cleanup := historySinks(cfg, log)
	defer cleanup()
	mgr.SetHistorySinks(sinks...)

	flow := automation.New(cfg, mgr, log)
	flow.Sinks = sinks

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, err := flow.Run(ctx, f.LaunchOnly)
	if err != nil {
		return fmt.Errorf("automation failed: %w", err)
	}
	fmt.Printf("automation finished: %s\n", outcome)
	return nil
}

func (c command) apiClient(f ServerFlags) *client.Client {
	return client.New(client.Config{
		BaseURL: f.APIUrl,
		Timeout: f.APITimeout,
	})
}

// ServerStart ensures the automation server is running, locally or via a
// daemon.
func (c command) ServerStart(f ServerFlags) error {
	if f.APIUrl != "" {
		info, err := c.apiClient(f).Start(context.Background(), f.Timeout)
		if err != nil {
			return err
		}
		printJSON(info)
		return nil
	}
	cfg, mgr, _, closer, err := c.setup()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = cfg.Server.StartTimeout
	}
	if !mgr.EnsureRunning(timeout) {
		return fmt.Errorf("automation server failed to start on %s", cfg.Endpoint().Addr())
	}
	printJSON(mgr.Info())
	return nil
}

// ServerStop stops the server. Locally this is only meaningful against a
// process this invocation launched, so prefer --api-url with a daemon.
func (c command) ServerStop(f ServerFlags) error {
	if f.APIUrl != "" {
		return c.apiClient(f).Stop(context.Background())
	}
	_, mgr, _, closer, err := c.setup()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	if !mgr.StopServer() {
		return fmt.Errorf("automation server failed to stop")
	}
	return nil
}

// ServerStatus prints the server's current state.
func (c command) ServerStatus(f ServerFlags) error {
	if f.APIUrl != "" {
		info, err := c.apiClient(f).Status(context.Background())
		if err != nil {
			return err
		}
		printJSON(info)
		return nil
	}
	_, mgr, _, closer, err := c.setup()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	printJSON(mgr.Info())
	return nil
}

// ServerRestart restarts the server.
func (c command) ServerRestart(f ServerFlags) error {
	if f.APIUrl != "" {
		info, err := c.apiClient(f).Restart(context.Background(), f.Timeout)
		if err != nil {
			return err
		}
		printJSON(info)
		return nil
	}
	cfg, mgr, _, closer, err := c.setup()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = cfg.Server.StartTimeout
	}
	if !mgr.RestartServer(timeout) {
		return fmt.Errorf("automation server failed to restart")
	}
	printJSON(mgr.Info())
	return nil
}

// Serve runs the control API daemon until interrupted.
func (c command) Serve(f ServeFlags) error {
	cfg, mgr, log, closer, err := c.setup()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	metrics.Register(prometheus.DefaultRegisterer)
	sinks, cleanup := historySinks(cfg, log)
	defer cleanup()
	mgr.SetHistorySinks(sinks...)

	listen := cfg.API.Listen
	if f.Listen != "" {
		listen = f.Listen
	}
	basePath := cfg.API.BasePath
	if f.BasePath != "" {
		basePath = f.BasePath
	}

	srv, err := server.NewServer(listen, basePath, mgr)
	if err != nil {
		return err
	}
	log.Info("control API listening", "addr", listen, "base_path", basePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	mgr.StopServer()
	return nil
}

// eventQuerier is implemented by history backends that support reading
// back stored events.
type eventQuerier interface {
	Query(ctx context.Context, limit int) ([]history.Event, error)
}

// History prints recent events from the configured history backend.
func (c command) History(f HistoryFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.DSN == "" {
		return fmt.Errorf("no history backend configured (set history.dsn)")
	}
	sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if closer, ok := sink.(io.Closer); ok {
			_ = closer.Close()
		}
	}()
	q, ok := sink.(eventQuerier)
	if !ok {
		return fmt.Errorf("history backend %q does not support listing", cfg.History.DSN)
	}
	events, err := q.Query(context.Background(), f.Limit)
	if err != nil {
		return err
	}
	printJSON(events)
	return nil
}

// Doctor checks the local environment and reports findings.
func (c command) Doctor() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("endpoint: %s\n", cfg.Endpoint().Addr())

	if path, err := exec.LookPath(cfg.Server.Exec); err == nil {
		fmt.Printf("executable: ok (%s)\n", path)
	} else {
		fmt.Printf("executable: MISSING (%s) - install with: npm install -g appium\n", cfg.Server.Exec)
	}

	if appium.IsServerRunning(cfg.Endpoint()) {
		fmt.Println("server: running")
	} else {
		fmt.Println("server: not running")
	}

	if cfg.History.DSN == "" {
		fmt.Println("history: disabled")
	} else if sink, err := factory.NewSinkFromDSN(cfg.History.DSN); err == nil {
		if closer, ok := sink.(io.Closer); ok {
			_ = closer.Close()
		}
		fmt.Printf("history: ok (%s)\n", cfg.History.DSN)
	} else {
		fmt.Printf("history: FAILED (%s): %v\n", cfg.History.DSN, err)
	}

	if cfg.Credentials.Email == "" {
		fmt.Println("credentials: email not set (config or " + config.EnvEmail + ")")
	} else {
		fmt.Println("credentials: ok")
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
