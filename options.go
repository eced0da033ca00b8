package gltfconv

import (
	"io"
	"io/fs"
	"log/slog"
)

// config holds shared configuration for both transform directions.
type config struct {
	logger      *slog.Logger
	fsys        fs.FS
	concurrency int
}

// log returns the logger, falling back to a discard logger if nil.
func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.logger
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a conversion.
type Option func(*config)

// WithLogger sets the logger used for operation progress. The default
// discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithFS sets the filesystem used to resolve relative resource URIs
// during decomposition (external buffers beyond the embedded chunk).
// DecomposeFile defaults this to the source file's directory; the
// in-memory Decompose has no default, and external references fail
// without one. Compose takes its filesystem as a direct argument.
func WithFS(fsys fs.FS) Option {
	return func(cfg *config) {
		cfg.fsys = fsys
	}
}

// WithConcurrency bounds the number of sidecar resources the composer
// loads in parallel. Values below 2 load sequentially, the default.
// Byte-offset assignment is a sequential scan either way, so the
// produced container is identical regardless of this setting.
func WithConcurrency(n int) Option {
	return func(cfg *config) {
		cfg.concurrency = n
	}
}
