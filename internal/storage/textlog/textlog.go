// Package textlog appends every detected ball position to a plain-text
// file, one "x,y" line per detection, for offline analysis. The file is
// never read back by the running goalkeeper.
package textlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// Backend is the append-only position log.
type Backend struct {
	path string

	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// New creates the backend. The file is opened by Init.
func New(cfg config.TextLogConfig) *Backend {
	return &Backend{path: cfg.Path}
}

// Init opens the log for appending, creating it and its directory.
func (b *Backend) Init() error {
	if b.path == "" {
		return fmt.Errorf("textlog: no path configured")
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("textlog: failed to create directory: %w", err)
	}
	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("textlog: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.f = f
	b.w = bufio.NewWriter(f)
	return nil
}

// Close flushes and closes the file.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	flushErr := b.w.Flush()
	closeErr := b.f.Close()
	b.f, b.w = nil, nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// StartSession is a no-op; the log spans sessions.
func (b *Backend) StartSession(*core.Session) error {
	return nil
}

// EndSession flushes buffered lines.
func (b *Backend) EndSession(*core.Session) error {
	return b.Flush()
}

// RecordBallPosition appends the position as an "x,y" line.
func (b *Backend) RecordBallPosition(p *core.BallPosition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.w == nil {
		return fmt.Errorf("textlog: not initialised")
	}
	_, err := b.w.WriteString(p.Position.String() + "\n")
	return err
}

// RecordPrediction is a no-op.
func (b *Backend) RecordPrediction(*core.Prediction) error {
	return nil
}

// RecordStrike is a no-op.
func (b *Backend) RecordStrike(*core.StrikeEvent) error {
	return nil
}

// RecordStatus flushes buffered lines so the file trails the table by at
// most one status interval.
func (b *Backend) RecordStatus(*core.StatusSnapshot) error {
	return b.Flush()
}

// Flush writes buffered lines to the file.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.w == nil {
		return nil
	}
	return b.w.Flush()
}

// GetExportedFilePath returns the log location.
func (b *Backend) GetExportedFilePath() string {
	return b.path
}
