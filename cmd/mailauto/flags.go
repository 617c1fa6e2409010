package main

import "time"

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags holds flags for the run command.
type RunFlags struct {
	LaunchOnly bool
}

// ServerFlags holds flags for the server subcommands.
type ServerFlags struct {
	Timeout time.Duration
	// Remote daemon connection; empty means operate locally.
	APIUrl     string
	APITimeout time.Duration
}

// HistoryFlags holds flags for the history command.
type HistoryFlags struct {
	Limit int
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen   string
	BasePath string
}
