package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

type Options struct {
	Level string
	JSON  bool
	// File, when set, receives log lines instead of stderr (opened for append).
	File string
}

var def atomic.Value

func init() {
	cfg := &slog.HandlerOptions{Level: slog.LevelInfo}
	h := slog.NewTextHandler(os.Stderr, cfg)
	def.Store(slog.New(h))
}

// Configure swaps the process logger. The returned closer releases the log
// file when Options.File is used; it is a no-op otherwise.
func Configure(opts Options) (io.Closer, error) {
	var out io.Writer = os.Stderr
	closer := io.Closer(nopCloser{})
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, err
		}
		out, closer = f, f
	}
	def.Store(New(out, opts))
	return closer, nil
}

// New builds a logger writing to w without touching the process default.
func New(w io.Writer, opts Options) *slog.Logger {
	cfg := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, cfg)
	} else {
		h = slog.NewTextHandler(w, cfg)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func L() *slog.Logger {
	l, _ := def.Load().(*slog.Logger)
	return l
}

// Set replaces the process logger; tests use it to capture output.
func Set(l *slog.Logger) {
	if l != nil {
		def.Store(l)
	}
}

func InitFromEnv() (io.Closer, error) {
	lvl := os.Getenv("IMA_LOG_LEVEL")
	jsonStr := os.Getenv("IMA_LOG_JSON")
	json := false
	if b, err := strconv.ParseBool(strings.TrimSpace(jsonStr)); err == nil {
		json = b
	}
	return Configure(Options{Level: lvl, JSON: json, File: strings.TrimSpace(os.Getenv("IMA_LOG_FILE"))})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
