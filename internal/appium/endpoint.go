package appium

import (
	"fmt"
	"net"
	"strconv"
)

// DefaultPort is the conventional Appium listen port.
const DefaultPort = 4723

// Endpoint identifies the automation server's network location. It is
// immutable for the life of a Manager.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DefaultEndpoint returns localhost:4723.
func DefaultEndpoint() Endpoint { return Endpoint{Host: "localhost", Port: DefaultPort} }

// URL returns the server base URL.
func (e Endpoint) URL() string { return fmt.Sprintf("http://%s", e.Addr()) }

// Addr returns host:port suitable for dialing.
func (e Endpoint) Addr() string { return net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) }

// StatusURLs returns the ordered health-check URLs. Different Appium
// versions expose different status paths, so the list is tried in order
// until one answers 2xx.
func (e Endpoint) StatusURLs() []string {
	base := e.URL()
	return []string{
		base + "/wd/hub/status",
		base + "/status",
		base + "/wd/hub/sessions",
	}
}

// IsLoopback reports whether the host is a loopback alias. Appium binds to
// loopback by default; only non-loopback hosts need an explicit --address.
func (e Endpoint) IsLoopback() bool {
	if e.Host == "localhost" {
		return true
	}
	if ip := net.ParseIP(e.Host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
