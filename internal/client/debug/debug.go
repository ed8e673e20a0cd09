package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

const DefaultFile = "debug.log"

// New returns a logger that appends to path when enabled and discards
// everything otherwise. The returned closer must be called on shutdown.
func New(path string, enabled bool) (*log.Logger, io.Closer, error) {
	if !enabled {
		return Discard(), nopCloser{}, nil
	}
	if path == "" {
		path = DefaultFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return log.New(f, "cldzchat ", log.LstdFlags|log.Lmicroseconds), f, nil
}

// Discard is the logger used when none is configured.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
