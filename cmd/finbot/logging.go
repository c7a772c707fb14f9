package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/randalmurphal/finflow/pkg/finbot/config"
)

// newLogger builds the process logger. Records go to w so that stdout stays
// free for answers; the "error" key is written as "err".
func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("FINBOT_LOG_LEVEL: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("FINBOT_LOG_FORMAT: unknown format %q", cfg.Format)
}
