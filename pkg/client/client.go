// Package client is the HTTP client for the mailauto control API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client communicates with a running mailauto control API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8088/api",
		Timeout: 60 * time.Second,
	}
}

// New creates a control API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// ServerInfo mirrors the control API's status payload.
type ServerInfo struct {
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	URL         string    `json:"url"`
	Running     bool      `json:"running"`
	OwnsProcess bool      `json:"owns_process"`
	PID         int       `json:"pid,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
}

type errorResp struct {
	Error string `json:"error"`
}

// IsReachable checks whether the control API answers at all.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("control API unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Status fetches the managed server's current state.
func (c *Client) Status(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.do(ctx, http.MethodGet, "/status", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Start asks the daemon to ensure the automation server is running. A zero
// timeout uses the daemon's default.
func (c *Client) Start(ctx context.Context, timeout time.Duration) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.do(ctx, http.MethodPost, "/start"+timeoutQuery(timeout), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Stop asks the daemon to stop the server it owns.
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stop", nil)
}

// Restart asks the daemon to stop and relaunch the server.
func (c *Client) Restart(ctx context.Context, timeout time.Duration) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.do(ctx, http.MethodPost, "/restart"+timeoutQuery(timeout), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func timeoutQuery(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return "?timeout=" + d.String()
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResp
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, e.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
