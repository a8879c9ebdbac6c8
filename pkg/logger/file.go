package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// OpenFile appends JSON records to the file at path, creating it and its
// parent directory when missing. The caller closes the returned file.
func OpenFile(path string, opts ...Option) (*slog.Logger, io.Closer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	opts = append(opts, WithWriter(f), WithPretty(false), WithJSON(true))
	return New(opts...), f, nil
}
