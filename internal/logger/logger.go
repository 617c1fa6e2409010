package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters (lumberjack semantics).
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes logging for the automation run and for captured server
// output. Dir is the base directory; FilePath overrides Dir for the main
// application log. Captured Appium stdout/stderr go to
// Dir/<name>.stdout.log and Dir/<name>.stderr.log.
type Config struct {
	Level      string `json:"level" mapstructure:"level"`             // debug, info, warn, error
	Dir        string `json:"dir" mapstructure:"dir"`                 // base directory for logs
	FilePath   string `json:"file" mapstructure:"file"`               // explicit app log path, overrides Dir
	Color      bool   `json:"color" mapstructure:"color"`             // colorize console output
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"` // megabytes before rotation
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// New builds a slog.Logger per config. Console output always goes to
// stderr; when Dir or FilePath is set, records are duplicated into a
// rotating file. The returned closer owns the rotating writer and may be
// nil when no file is configured.
func New(c Config) (*slog.Logger, io.Closer, error) {
	level := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}

	var w io.Writer = os.Stderr
	var closer io.Closer
	path := c.FilePath
	if path == "" && c.Dir != "" {
		path = filepath.Join(c.Dir, "mailauto.log")
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, nil, err
		}
		rot := &lj.Logger{
			Filename:   path,
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
		w = io.MultiWriter(os.Stderr, rot)
		closer = rot
	}

	var h slog.Handler
	if c.Color {
		h = NewColorTextHandler(w, opts, true)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}

// Writers returns rotating io.WriteClosers used to capture a managed
// server's stdout and stderr under the given name. Both are nil when no
// directory is configured.
func (c Config) Writers(name string) (io.WriteCloser, io.WriteCloser) {
	if c.Dir == "" {
		return nil, nil
	}
	mk := func(stream string) io.WriteCloser {
		return &lj.Logger{
			Filename:   filepath.Join(c.Dir, fmt.Sprintf("%s.%s.log", name, stream)),
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
	}
	return mk("stdout"), mk("stderr")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
