package storage

import (
	"errors"
	"time"

	"github.com/foosbot/goalkeeper/pkg/core"
)

// Multi fans every call out to several backends. All backends are called
// even when one fails; the errors are joined.
type Multi struct {
	backends []Backend
}

// NewMulti combines backends.
func NewMulti(backends ...Backend) *Multi {
	return &Multi{backends: backends}
}

// Backends returns the combined backends.
func (m *Multi) Backends() []Backend {
	return m.backends
}

func (m *Multi) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range m.backends {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Init() error {
	return m.each(func(b Backend) error { return b.Init() })
}

func (m *Multi) Close() error {
	return m.each(func(b Backend) error { return b.Close() })
}

func (m *Multi) StartSession(s *core.Session) error {
	return m.each(func(b Backend) error { return b.StartSession(s) })
}

func (m *Multi) EndSession(s *core.Session) error {
	return m.each(func(b Backend) error { return b.EndSession(s) })
}

func (m *Multi) RecordBallPosition(p *core.BallPosition) error {
	return m.each(func(b Backend) error { return b.RecordBallPosition(p) })
}

func (m *Multi) RecordPrediction(p *core.Prediction) error {
	return m.each(func(b Backend) error { return b.RecordPrediction(p) })
}

func (m *Multi) RecordStrike(e *core.StrikeEvent) error {
	return m.each(func(b Backend) error { return b.RecordStrike(e) })
}

func (m *Multi) RecordStatus(s *core.StatusSnapshot) error {
	return m.each(func(b Backend) error { return b.RecordStatus(s) })
}

// GetExportedFilePath returns the first exported path among the backends.
func (m *Multi) GetExportedFilePath() string {
	for _, b := range m.backends {
		if e, ok := b.(Exportable); ok {
			if p := e.GetExportedFilePath(); p != "" {
				return p
			}
		}
	}
	return ""
}

// GetLastWriteDuration returns the slowest last write among the backends.
func (m *Multi) GetLastWriteDuration() time.Duration {
	var longest time.Duration
	for _, b := range m.backends {
		if p, ok := b.(WriteDurationProvider); ok {
			longest = max(longest, p.GetLastWriteDuration())
		}
	}
	return longest
}
