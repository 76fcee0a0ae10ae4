package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// OpenOutput resolves a configured log destination:
//
//   - "" or "stderr" writes to os.Stderr
//   - "stdout" writes to os.Stdout
//   - "file:///path" or any value containing a path separator appends to that file
//
// The returned close function is a no-op for the standard streams.
func OpenOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch {
	case output == "" || output == "stderr":
		return os.Stderr, noop, nil
	case output == "stdout":
		return os.Stdout, noop, nil
	case strings.HasPrefix(output, "file://"):
		return openFile(strings.TrimPrefix(output, "file://"))
	case strings.Contains(output, "://"):
		return nil, noop, fmt.Errorf("unsupported log output: %s", output)
	case strings.ContainsRune(output, '/') || strings.ContainsRune(output, filepath.Separator):
		return openFile(output)
	default:
		return nil, noop, fmt.Errorf("unsupported log output: %s", output)
	}
}

func openFile(path string) (io.Writer, func() error, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, f.Close, nil
}
