// Package monitor periodically captures a status snapshot of the
// goalkeeper and writes it to the status file, storage and InfluxDB.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/foosbot/goalkeeper/internal/storage"
	"github.com/foosbot/goalkeeper/internal/worker"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// StateReader exposes the orchestrator state.
type StateReader interface {
	StateName() string
	SessionID() string
}

// StatsProvider exposes live worker figures.
type StatsProvider interface {
	Stats() worker.Stats
}

// StatusWriter receives each snapshot, e.g. the InfluxDB manager.
type StatusWriter interface {
	WriteStatus(s core.StatusSnapshot) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	State    StateReader
	Depths   func() map[string]int
	Workers  StatsProvider
	Encoders func() core.EncoderValues
	Backend  storage.Backend
	Influx   StatusWriter
	Logger   *slog.Logger

	StatusFile string
	Interval   time.Duration
	Now        func() time.Time
}

// Service manages status monitoring
type Service struct {
	deps   Dependencies
	logger *slog.Logger

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}

	statusFile *os.File
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps:   deps,
		logger: logger.With("component", "monitor"),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot assembles the current status.
func (s *Service) Snapshot() core.StatusSnapshot {
	snap := core.StatusSnapshot{
		Time:          s.deps.Now().UTC(),
		State:         s.deps.State.StateName(),
		SessionID:     s.deps.State.SessionID(),
		MailboxDepths: map[string]int{},
	}
	if s.deps.Depths != nil {
		snap.MailboxDepths = s.deps.Depths()
	}
	if s.deps.Workers != nil {
		st := s.deps.Workers.Stats()
		snap.Fps = st.Fps
		snap.StrikesAllowed = st.StrikesAllowed
		snap.StrikesDropped = st.StrikesDropped
	}
	if s.deps.Encoders != nil {
		snap.Encoders = s.deps.Encoders()
	}
	return snap
}

// Capture takes one snapshot and writes it everywhere. Sink failures are
// logged and do not stop the others.
func (s *Service) Capture() core.StatusSnapshot {
	snap := s.Snapshot()

	if err := s.writeStatusFile(snap); err != nil {
		s.logger.Error("Error writing status file", "error", err)
	}
	if s.deps.Backend != nil {
		if err := s.deps.Backend.RecordStatus(&snap); err != nil {
			s.logger.Error("Error recording status", "error", err)
		}
	}
	if s.deps.Influx != nil {
		if err := s.deps.Influx.WriteStatus(snap); err != nil {
			s.logger.Error("Error writing status to InfluxDB", "error", err)
		}
	}
	return snap
}

func (s *Service) writeStatusFile(snap core.StatusSnapshot) error {
	if s.deps.StatusFile == "" {
		return nil
	}
	if s.statusFile == nil {
		if err := os.MkdirAll(filepath.Dir(s.deps.StatusFile), 0755); err != nil {
			return fmt.Errorf("creating status directory: %w", err)
		}
		f, err := os.Create(s.deps.StatusFile)
		if err != nil {
			return fmt.Errorf("creating status file: %w", err)
		}
		s.statusFile = f
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := s.statusFile.Truncate(0); err != nil {
		return err
	}
	if _, err := s.statusFile.Seek(0, 0); err != nil {
		return err
	}
	_, err = s.statusFile.Write(append(body, '\n'))
	return err
}

// Start starts the status monitor goroutine
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			if s.statusFile != nil {
				s.statusFile.Close()
				s.statusFile = nil
			}
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.logger.Debug("Starting status monitor", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				s.Capture()
			}
		}
	}()
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	running, stop, done := s.isRunning, s.stopChan, s.done
	if running {
		close(stop)
		s.isRunning = false
	}
	s.mu.Unlock()
	if running {
		<-done
	}
}
