package app

import (
	"io"
	"log/slog"

	"github.com/markdave123-py/docpipe/internal/config"
)

// NewLogger builds the process logger. Components get it injected; nothing
// below cmd/ touches slog.SetDefault.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("service", "docpipe")
}
