// Package state holds the process-wide run/stop state and the per-session
// stop signal polled by every worker loop.
package state

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// SystemState is the orchestrator's two-state machine.
type SystemState int32

const (
	Stopped SystemState = iota
	Running
)

func (s SystemState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("SystemState(%d)", int32(s))
	}
}

// Holder stores a SystemState that many goroutines read and only the
// orchestrator writes. The zero value is Stopped.
type Holder struct {
	v atomic.Int32
}

// Load returns the current state.
func (h *Holder) Load() SystemState {
	return SystemState(h.v.Load())
}

// Store replaces the current state and returns the previous one.
func (h *Holder) Store(s SystemState) SystemState {
	return SystemState(h.v.Swap(int32(s)))
}

// Running reports whether the state is Running.
func (h *Holder) Running() bool {
	return h.Load() == Running
}

// StopChecker is the read-only view workers get of a session's stop signal.
type StopChecker interface {
	Stopped() bool
	Done() <-chan struct{}
}

// Signal is a write-once stop flag. Each PowerOn creates a new Signal, so a
// worker left over from a previous session can never be revived by a later
// PowerOn.
type Signal struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewSignal returns an unset signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Set raises the signal. Calling it more than once has no further effect.
func (s *Signal) Set() {
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
	})
}

// Stopped polls the signal without blocking.
func (s *Signal) Stopped() bool {
	return s.set.Load()
}

// Done returns a channel closed once the signal is raised. Workers that sleep
// between polls select on it so Stop is observed promptly.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}
