// Package envconfig reads runtime configuration from environment
// variables: log verbosity, the default compute-thread hint, and the
// models directory. Everything is a plain getter, no global init.
package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Var returns an environment variable's value with surrounding
// whitespace and quotes stripped.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// Debug reports whether GENCORE_DEBUG is set to a truthy value.
func Debug() bool {
	b, _ := strconv.ParseBool(Var("GENCORE_DEBUG"))
	return b
}

// LogLevel returns the slog level implied by GENCORE_DEBUG: unset or
// false is INFO, true is DEBUG.
func LogLevel() slog.Level {
	if Debug() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NumThreads returns the default compute-thread hint from
// GENCORE_NUM_THREADS. 0 (the default) leaves the choice to the caller.
func NumThreads() int {
	s := Var("GENCORE_NUM_THREADS")
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		slog.Warn("invalid GENCORE_NUM_THREADS, ignoring", "value", s)
		return 0
	}
	return n
}

// ModelsDir returns the directory model files are loaded from,
// configurable via GENCORE_MODELS_DIR. Defaults to $HOME/.gencore/models.
func ModelsDir() string {
	if s := Var("GENCORE_MODELS_DIR"); s != "" {
		return s
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gencore/models"
	}
	return filepath.Join(home, ".gencore", "models")
}
