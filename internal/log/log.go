// Package log provides the logging infrastructure shared by all components.
//
// Loggers are injected via constructors, never pulled from globals. Each
// component receives a *slog.Logger and may add context with With():
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	pipeline := ingest.New(store, embedder, logger.With("component", "ingest"))
//
// Tests use NewNop() or NewWithWriter() with a buffer to inspect output.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger aliases *slog.Logger so components depend on the standard type
// without each declaring its own interface.
type Logger = *slog.Logger

// Config controls handler construction.
type Config struct {
	// Level is the minimum level emitted. Default: slog.LevelInfo.
	Level slog.Level

	// JSON switches from text to JSON output.
	JSON bool

	// AddSource annotates records with file:line.
	AddSource bool
}

// New creates a logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w. Useful in tests:
//
//	var buf bytes.Buffer
//	logger := log.NewWithWriter(&buf, log.Config{})
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop returns a logger that discards everything. Test use only;
// production code should always log somewhere.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
