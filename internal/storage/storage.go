// internal/storage/storage.go
package storage

import (
	"time"

	"github.com/foosbot/goalkeeper/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession(s *core.Session) error

	// Recording
	RecordBallPosition(p *core.BallPosition) error
	RecordPrediction(p *core.Prediction) error
	RecordStrike(e *core.StrikeEvent) error
	RecordStatus(s *core.StatusSnapshot) error
}

// Exportable is an optional interface for backends that write a file
// per session, such as the JSON export of the memory backend.
type Exportable interface {
	GetExportedFilePath() string
}

// WriteDurationProvider is an optional interface for backends that can
// report how long their last flush to durable storage took.
type WriteDurationProvider interface {
	GetLastWriteDuration() time.Duration
}
