package appium

import "testing"

func TestEndpointURLAndAddr(t *testing.T) {
	ep := Endpoint{Host: "localhost", Port: 4723}
	if got := ep.URL(); got != "http://localhost:4723" {
		t.Fatalf("URL: got %q", got)
	}
	if got := ep.Addr(); got != "localhost:4723" {
		t.Fatalf("Addr: got %q", got)
	}
}

func TestEndpointStatusURLs(t *testing.T) {
	ep := DefaultEndpoint()
	urls := ep.StatusURLs()
	want := []string{
		"http://localhost:4723/wd/hub/status",
		"http://localhost:4723/status",
		"http://localhost:4723/wd/hub/sessions",
	}
	if len(urls) != len(want) {
		t.Fatalf("got %d urls, want %d", len(urls), len(want))
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("url[%d]: got %q want %q", i, urls[i], want[i])
		}
	}
}

func TestEndpointIsLoopback(t *testing.T) {
	cases := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"0.0.0.0", false},
		{"192.168.1.10", false},
		{"appium.internal", false},
	}
	for _, c := range cases {
		ep := Endpoint{Host: c.host, Port: 4723}
		if got := ep.IsLoopback(); got != c.want {
			t.Fatalf("IsLoopback(%q): got %v want %v", c.host, got, c.want)
		}
	}
}
