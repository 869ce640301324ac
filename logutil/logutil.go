// Package logutil builds the structured logger used across the
// generation core: a slog.TextHandler with source file/line attached,
// trimmed to the base filename.
package logutil

import (
	"io"
	"log/slog"
	"path/filepath"
)

// NewLogger returns a slog.Logger writing text-formatted records to w at
// the given level, with AddSource enabled and the source file path
// trimmed to its base name.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.SourceKey {
				if source, ok := attr.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attr
		},
	})
	return slog.New(handler)
}
