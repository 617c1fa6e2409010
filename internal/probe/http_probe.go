package probe

import (
	"context"
	"net/http"
	"time"
)

// DefaultHTTPTimeout bounds a single HTTP health check.
const DefaultHTTPTimeout = 3 * time.Second

// HTTPProbe issues a GET against a status URL. Any 2xx response proves the
// server is running. A 404 is not a negative signal: older and newer Appium
// versions expose different status paths, so a wrong path only means "ask
// the next URL". Transport errors (refused, timeout) classify as Down.
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

func NewHTTPProbe(url string, timeout time.Duration) HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return HTTPProbe{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (p HTTPProbe) Check(ctx context.Context) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Inconclusive
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Down
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Up
	}
	// 404 and any other unexpected status: server spoke HTTP but this path
	// said nothing definitive about liveness.
	return Inconclusive
}

func (p HTTPProbe) Describe() string { return "http:" + p.URL }
