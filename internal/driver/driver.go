// Package driver is a minimal W3C WebDriver client covering the commands
// the automation flows need: session lifecycle, element lookup and
// interaction, app activation, and pointer gestures via the actions API.
package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrNoSuchElement reports that a locator matched nothing. Flows use it to
// fall through ordered selector candidates.
var ErrNoSuchElement = errors.New("no such element")

// Locator strategies understood by UiAutomator2.
const (
	ByID                 = "id"
	ByAccessibilityID    = "accessibility id"
	ByXPath              = "xpath"
	ByClassName          = "class name"
	ByAndroidUIAutomator = "-android uiautomator"
)

// Client talks to a WebDriver endpoint such as an Appium server.
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

// New creates a WebDriver client. An empty BaseURL defaults to the
// conventional local Appium address.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:4723"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
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

// Session is an open WebDriver session.
type Session struct {
	ID     string
	client *Client
}

// Element is a handle to an on-screen element within a session.
type Element struct {
	ID      string
	session *Session
}

// Rect is an element's position and size in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// wireError is the W3C error payload inside a "value" envelope.
type wireError struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace"`
}

// do issues a request and decodes the W3C envelope into out (which may be
// nil when the caller only cares about success).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var env struct {
			Value wireError `json:"value"`
		}
		if json.Unmarshal(raw, &env) == nil && env.Value.Error != "" {
			if env.Value.Error == "no such element" {
				return fmt.Errorf("%s %s: %w", method, path, ErrNoSuchElement)
			}
			return fmt.Errorf("%s %s: %s: %s", method, path, env.Value.Error, env.Value.Message)
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

// Status reports whether the remote end is ready for new sessions.
func (c *Client) Status(ctx context.Context) (bool, error) {
	var env struct {
		Value struct {
			Ready bool `json:"ready"`
		} `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, "/status", nil, &env); err != nil {
		return false, err
	}
	return env.Value.Ready, nil
}

// NewSession creates a session with the given W3C capabilities.
func (c *Client) NewSession(ctx context.Context, caps map[string]any) (*Session, error) {
	req := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": caps,
		},
	}
	var env struct {
		Value struct {
			SessionID string `json:"sessionId"`
		} `json:"value"`
	}
	if err := c.do(ctx, http.MethodPost, "/session", req, &env); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if env.Value.SessionID == "" {
		return nil, fmt.Errorf("create session: server returned empty session id")
	}
	c.logger.Info("webdriver session created", "session", env.Value.SessionID)
	return &Session{ID: env.Value.SessionID, client: c}, nil
}

func (s *Session) path(suffix string) string {
	return "/session/" + s.ID + suffix
}

// Delete ends the session.
func (s *Session) Delete(ctx context.Context) error {
	err := s.client.do(ctx, http.MethodDelete, s.path(""), nil, nil)
	if err == nil {
		s.client.logger.Info("webdriver session closed", "session", s.ID)
	}
	return err
}

// FindElement locates one element with the given strategy and selector.
// Returns ErrNoSuchElement (wrapped) when nothing matches.
func (s *Session) FindElement(ctx context.Context, by, value string) (*Element, error) {
	req := map[string]string{"using": by, "value": value}
	var env struct {
		Value map[string]string `json:"value"`
	}
	if err := s.client.do(ctx, http.MethodPost, s.path("/element"), req, &env); err != nil {
		return nil, err
	}
	for _, id := range env.Value {
		return &Element{ID: id, session: s}, nil
	}
	return nil, fmt.Errorf("find element %s=%q: %w", by, value, ErrNoSuchElement)
}

// Source returns the current UI hierarchy as XML.
func (s *Session) Source(ctx context.Context) (string, error) {
	var env struct {
		Value string `json:"value"`
	}
	if err := s.client.do(ctx, http.MethodGet, s.path("/source"), nil, &env); err != nil {
		return "", err
	}
	return env.Value, nil
}

// CurrentPackage returns the Android package in the foreground.
func (s *Session) CurrentPackage(ctx context.Context) (string, error) {
	var env struct {
		Value string `json:"value"`
	}
	if err := s.client.do(ctx, http.MethodGet, s.path("/appium/device/current_package"), nil, &env); err != nil {
		return "", err
	}
	return env.Value, nil
}

// ActivateApp brings the given package to the foreground, launching it if
// needed.
func (s *Session) ActivateApp(ctx context.Context, pkg string) error {
	req := map[string]string{"appId": pkg}
	return s.client.do(ctx, http.MethodPost, s.path("/appium/device/activate_app"), req, nil)
}

// StartActivity launches an explicit package/activity pair.
func (s *Session) StartActivity(ctx context.Context, pkg, activity string) error {
	req := map[string]string{"appPackage": pkg, "appActivity": activity}
	return s.client.do(ctx, http.MethodPost, s.path("/appium/device/start_activity"), req, nil)
}

// Tap performs a single pointer tap at screen coordinates using the W3C
// actions API.
func (s *Session) Tap(ctx context.Context, x, y int) error {
	req := map[string]any{
		"actions": []any{
			map[string]any{
				"type": "pointer",
				"id":   "finger1",
				"parameters": map[string]string{
					"pointerType": "touch",
				},
				"actions": []any{
					map[string]any{"type": "pointerMove", "duration": 0, "x": x, "y": y},
					map[string]any{"type": "pointerDown", "button": 0},
					map[string]any{"type": "pause", "duration": 100},
					map[string]any{"type": "pointerUp", "button": 0},
				},
			},
		},
	}
	return s.client.do(ctx, http.MethodPost, s.path("/actions"), req, nil)
}

func (e *Element) path(suffix string) string {
	return e.session.path("/element/" + e.ID + suffix)
}

// Click taps the element.
func (e *Element) Click(ctx context.Context) error {
	return e.session.client.do(ctx, http.MethodPost, e.path("/click"), struct{}{}, nil)
}

// SendKeys types text into the element.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	req := map[string]string{"text": text}
	return e.session.client.do(ctx, http.MethodPost, e.path("/value"), req, nil)
}

// Clear empties the element's text.
func (e *Element) Clear(ctx context.Context) error {
	return e.session.client.do(ctx, http.MethodPost, e.path("/clear"), struct{}{}, nil)
}

// Text returns the element's visible text.
func (e *Element) Text(ctx context.Context) (string, error) {
	var env struct {
		Value string `json:"value"`
	}
	if err := e.session.client.do(ctx, http.MethodGet, e.path("/text"), nil, &env); err != nil {
		return "", err
	}
	return env.Value, nil
}

// Displayed reports element visibility.
func (e *Element) Displayed(ctx context.Context) (bool, error) {
	var env struct {
		Value bool `json:"value"`
	}
	if err := e.session.client.do(ctx, http.MethodGet, e.path("/displayed"), nil, &env); err != nil {
		return false, err
	}
	return env.Value, nil
}

// GetRect returns the element's screen rectangle.
func (e *Element) GetRect(ctx context.Context) (Rect, error) {
	var env struct {
		Value Rect `json:"value"`
	}
	if err := e.session.client.do(ctx, http.MethodGet, e.path("/rect"), nil, &env); err != nil {
		return Rect{}, err
	}
	return env.Value, nil
}
