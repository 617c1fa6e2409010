package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestBuildRootHasCommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{
		"run": false, "server": false, "serve": false, "history": false, "doctor": false, "version": false,
	}
	for _, sub := range root.Commands() {
		name := strings.Fields(sub.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}

func TestServerHasSubcommands(t *testing.T) {
	root := buildRoot()
	var server *cobra.Command
	for _, sub := range root.Commands() {
		if strings.Fields(sub.Use)[0] == "server" {
			server = sub
		}
	}
	if server == nil {
		t.Fatalf("server command not found")
	}
	want := map[string]bool{"start": false, "stop": false, "status": false, "restart": false}
	for _, sub := range server.Commands() {
		if _, ok := want[sub.Use]; ok {
			want[sub.Use] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing server subcommand %q", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "mailauto") {
		t.Fatalf("version output: %q", out.String())
	}
}

func TestServerStatusViaAPI(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"host": "localhost", "port": 4723, "running": true,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	root := buildRoot()
	root.SetArgs([]string{"server", "status", "--api-url", srv.URL + "/api"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestServerStopViaAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/stop", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"server failed to stop"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	root := buildRoot()
	root.SetArgs([]string{"server", "stop", "--api-url", srv.URL + "/api"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error from daemon")
	}
}

func TestHistoryCommandEmptyDatabase(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mailauto.toml")
	toml := "[history]\ndsn = \"sqlite://" + filepath.Join(dir, "history.db") + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(toml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := buildRoot()
	root.SetArgs([]string{"history", "--config", cfgPath, "--limit", "5"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestHistoryCommandRequiresDSN(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"history"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error without history.dsn")
	}
}

func TestRunRejectsBadConfigPath(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"run", "--config", "/nonexistent/mailauto.toml"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
