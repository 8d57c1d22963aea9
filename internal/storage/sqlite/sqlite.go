// Package sqlitestorage records sessions into an in-memory SQLite database
// with periodic disk dumps via VACUUM INTO. It wraps the GORM backend; the
// only SQLite-specific concerns are creating the in-memory DB and the dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/database"
	gormstorage "github.com/foosbot/goalkeeper/internal/storage/gorm"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	// DSN defaults to the shared in-memory database.
	DSN          string
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// FromConfig maps the file configuration onto Config.
func FromConfig(cfg config.SQLiteConfig) Config {
	return Config{DumpInterval: cfg.DumpInterval, DumpPath: cfg.DumpPath}
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.DSN == "" {
		cfg.DSN = database.MemoryDSN
	}
	db, err := database.GetSqliteDB(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
		cfg:      cfg,
		log:      logger.With("component", "storage.sqlite"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.started = true

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.done)
	}

	return nil
}

// EndSession finalizes the session and dumps so every finished session
// reaches the disk.
func (b *Backend) EndSession(s *core.Session) error {
	if err := b.Backend.EndSession(s); err != nil {
		return err
	}
	return b.Dump()
}

// Close stops the dump goroutine, flushes and writes a final dump.
func (b *Backend) Close() error {
	if !b.started {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.done
	})
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.Dump()
}

// Dump writes the database to DumpPath. It is a no-op without a path.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.DB(), b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}

// GetExportedFilePath returns the dump location.
func (b *Backend) GetExportedFilePath() string {
	return b.cfg.DumpPath
}
