// Package memory keeps the current session in memory and exports it as a
// JSON document when the session ends.
package memory

import (
	"sync"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	positions   []core.BallPosition
	predictions []core.Prediction
	strikes     []core.StrikeEvent
	status      []core.StatusSnapshot

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session, discarding anything left
// from a previous one.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	session := *s
	b.session = &session
	b.positions = b.positions[:0]
	b.predictions = b.predictions[:0]
	b.strikes = b.strikes[:0]
	b.status = b.status[:0]
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil || b.session.ID != s.ID {
		return nil
	}
	b.session.EndedAt = s.EndedAt
	b.session.Reason = s.Reason

	err := b.exportJSON()
	b.session = nil
	return err
}

// active reports whether records for sessionID belong to the open session.
// Callers hold mu.
func (b *Backend) active(sessionID string) bool {
	return b.session != nil && b.session.ID == sessionID
}

// RecordBallPosition appends a ball position to the open session.
func (b *Backend) RecordBallPosition(p *core.BallPosition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active(p.SessionID) {
		b.positions = append(b.positions, *p)
	}
	return nil
}

// RecordPrediction appends a prediction to the open session.
func (b *Backend) RecordPrediction(p *core.Prediction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active(p.SessionID) {
		rec := *p
		rec.Path = p.Path.Clone()
		b.predictions = append(b.predictions, rec)
	}
	return nil
}

// RecordStrike appends a strike to the open session.
func (b *Backend) RecordStrike(e *core.StrikeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active(e.SessionID) {
		b.strikes = append(b.strikes, *e)
	}
	return nil
}

// RecordStatus appends a status snapshot to the open session.
func (b *Backend) RecordStatus(s *core.StatusSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active(s.SessionID) {
		b.status = append(b.status, *s)
	}
	return nil
}

// Counts returns the number of records held for the open session.
func (b *Backend) Counts() (positions, predictions, strikes, status int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions), len(b.predictions), len(b.strikes), len(b.status)
}

// GetExportedFilePath returns the path of the last export.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
