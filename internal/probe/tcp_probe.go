package probe

import (
	"context"
	"net"
	"time"
)

// DefaultTCPTimeout bounds the raw connect fallback.
const DefaultTCPTimeout = 2 * time.Second

// TCPProbe is the last-resort fallback: if something accepts a TCP connect
// on the endpoint, the server is considered reachable even when its HTTP
// surface differs from every status path we know about.
type TCPProbe struct {
	Addr    string
	Timeout time.Duration
}

func (p TCPProbe) Check(ctx context.Context) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTCPTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return Down
	}
	_ = conn.Close()
	return Up
}

func (p TCPProbe) Describe() string { return "tcp:" + p.Addr }
