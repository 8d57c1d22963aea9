package storage

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/pkg/core"
)

type op struct {
	name string
	fn   func(Backend) error
}

// Async moves storage calls off the hot path. Calls are queued in order on
// an unbounded mailbox and applied by a single goroutine, so the camera
// and actuator loops never wait on disk or network. Errors are logged.
type Async struct {
	inner  Backend
	logger *slog.Logger

	ops  *channel.Mailbox[op]
	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	started   atomic.Bool
	closeOnce sync.Once
	failures  atomic.Uint64
}

// NewAsync wraps inner.
func NewAsync(inner Backend, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	return &Async{
		inner:  inner,
		logger: logger.With("component", "storage.async"),
		ops:    channel.New[op](),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Init initializes the wrapped backend and starts the writer.
func (a *Async) Init() error {
	if err := a.inner.Init(); err != nil {
		return err
	}
	a.started.Store(true)
	go a.loop()
	return nil
}

// Close applies every queued call, then closes the wrapped backend.
func (a *Async) Close() error {
	a.closeOnce.Do(func() {
		close(a.stop)
		if a.started.Load() {
			<-a.done
		}
	})
	a.apply()
	return a.inner.Close()
}

func (a *Async) enqueue(name string, fn func(Backend) error) error {
	a.ops.Send(op{name: name, fn: fn})
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

func (a *Async) StartSession(s *core.Session) error {
	session := *s
	return a.enqueue("start session", func(b Backend) error { return b.StartSession(&session) })
}

func (a *Async) EndSession(s *core.Session) error {
	session := *s
	return a.enqueue("end session", func(b Backend) error { return b.EndSession(&session) })
}

func (a *Async) RecordBallPosition(p *core.BallPosition) error {
	rec := *p
	return a.enqueue("record ball position", func(b Backend) error { return b.RecordBallPosition(&rec) })
}

func (a *Async) RecordPrediction(p *core.Prediction) error {
	rec := *p
	rec.Path = p.Path.Clone()
	return a.enqueue("record prediction", func(b Backend) error { return b.RecordPrediction(&rec) })
}

func (a *Async) RecordStrike(e *core.StrikeEvent) error {
	rec := *e
	return a.enqueue("record strike", func(b Backend) error { return b.RecordStrike(&rec) })
}

func (a *Async) RecordStatus(s *core.StatusSnapshot) error {
	rec := *s
	return a.enqueue("record status", func(b Backend) error { return b.RecordStatus(&rec) })
}

// Pending returns the number of queued calls.
func (a *Async) Pending() int {
	return a.ops.Len()
}

// Failures returns how many queued calls returned an error.
func (a *Async) Failures() uint64 {
	return a.failures.Load()
}

// GetExportedFilePath forwards to the wrapped backend.
func (a *Async) GetExportedFilePath() string {
	if e, ok := a.inner.(Exportable); ok {
		return e.GetExportedFilePath()
	}
	return ""
}

// GetLastWriteDuration forwards to the wrapped backend.
func (a *Async) GetLastWriteDuration() time.Duration {
	if p, ok := a.inner.(WriteDurationProvider); ok {
		return p.GetLastWriteDuration()
	}
	return 0
}

func (a *Async) apply() {
	for _, o := range a.ops.Drain() {
		if err := o.fn(a.inner); err != nil {
			a.failures.Add(1)
			a.logger.Error("Storage call failed", "op", o.name, "error", err)
		}
	}
}

func (a *Async) loop() {
	defer close(a.done)
	for {
		select {
		case <-a.stop:
			return
		case <-a.wake:
			a.apply()
		}
	}
}
