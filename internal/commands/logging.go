package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/diogo/llamigo/internal/config"
)

// newLogger builds a text logger. Verbose lowers the level to Debug.
func newLogger(w io.Writer, verbose bool, level slog.Level) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openLogFile opens the chat log for appending. The TUI owns the terminal,
// so chat sessions log here instead of stderr.
func openLogFile() (*os.File, error) {
	if _, err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}
	path, err := config.GetLogPath()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
