package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/testsquadco/mailauto/internal/appium"
	"github.com/testsquadco/mailauto/internal/metrics"
)

// Router provides embeddable HTTP handlers for controlling the managed
// automation server.
// Endpoints:
//   GET  {basePath}/status        current endpoint/ownership snapshot
//   POST {basePath}/start         query: timeout=30s (optional)
//   POST {basePath}/stop
//   POST {basePath}/restart       query: timeout=30s (optional)
//   GET  {basePath}/healthz       200 when the control API itself is up
//   GET  {basePath}/metrics       Prometheus exposition
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	mgr      *appium.Manager
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath: "/api" results in /api/start, /api/stop, /api/status.
func NewRouter(mgr *appium.Manager, basePath string) *Router {
	return &Router{mgr: mgr, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/restart", r.handleRestart)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Call Close or Shutdown on the returned server to stop it.
func NewServer(addr, basePath string, mgr *appium.Manager) (*http.Server, error) {
	r := NewRouter(mgr, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mgr.Info())
}

func (r *Router) handleStart(c *gin.Context) {
	timeout := parseTimeout(c.Query("timeout"))
	if !r.mgr.EnsureRunning(timeout) {
		writeJSON(c, http.StatusBadGateway, errorResp{Error: "server failed to start"})
		return
	}
	writeJSON(c, http.StatusOK, r.mgr.Info())
}

func (r *Router) handleStop(c *gin.Context) {
	if !r.mgr.StopServer() {
		writeJSON(c, http.StatusBadGateway, errorResp{Error: "server failed to stop"})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRestart(c *gin.Context) {
	timeout := parseTimeout(c.Query("timeout"))
	if !r.mgr.RestartServer(timeout) {
		writeJSON(c, http.StatusBadGateway, errorResp{Error: "server failed to restart"})
		return
	}
	writeJSON(c, http.StatusOK, r.mgr.Info())
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func parseTimeout(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
