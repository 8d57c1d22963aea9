// pkg/core/session.go
package core

import "time"

// Session is one PowerOn..Stop run of the goalkeeper.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Reason    string
}

// BallPosition is a detected ball position as recorded for offline analysis.
type BallPosition struct {
	SessionID string
	Time      time.Time
	Frame     uint64
	Position  Point
}

// PredictionKind tags the variant of a prediction result.
type PredictionKind string

const (
	PredictionNone     PredictionKind = "none"
	PredictionDirect   PredictionKind = "direct"
	PredictionCrossing PredictionKind = "crossing"
)

// Prediction is an accepted goal-line estimate as recorded for offline analysis.
type Prediction struct {
	SessionID string
	Time      time.Time
	Frame     uint64
	Kind      PredictionKind
	Y         float64
	Path      Trajectory
	Reused    bool
}

// StrikeEvent records a strike recommendation or an executed strike sequence.
type StrikeEvent struct {
	SessionID string
	Time      time.Time
	Kind      StrikeKind
	Source    string
	Executed  bool
	Duration  time.Duration
}

// StatusSnapshot is the periodic status written by the monitor.
type StatusSnapshot struct {
	SessionID      string         `json:"sessionId"`
	Time           time.Time      `json:"time"`
	State          string         `json:"state"`
	Fps            int            `json:"fps"`
	MailboxDepths  map[string]int `json:"mailboxDepths"`
	Encoders       EncoderValues  `json:"encoders"`
	StrikesAllowed uint64         `json:"strikesAllowed"`
	StrikesDropped uint64         `json:"strikesDropped"`
}
