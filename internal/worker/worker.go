// Package worker launches the camera and motor workers of each session and
// reports their failures to the orchestrator.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/internal/motor"
	"github.com/foosbot/goalkeeper/internal/prediction"
	"github.com/foosbot/goalkeeper/internal/state"
	"github.com/foosbot/goalkeeper/internal/storage"
	"github.com/foosbot/goalkeeper/internal/vision"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// Mailboxes are the worker ends of the orchestrator channels.
type Mailboxes struct {
	CameraCommands channel.Receiver[message.CameraCommand]
	CameraEvents   channel.Sender[message.CameraEvent]
	MotorCommands  channel.Receiver[message.MotorCommand]
	MotorEvents    channel.Sender[message.MotorEvent]
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Mailboxes Mailboxes
	Bus       *motor.Bus
	// NewSource opens the frame source of a session. The source is closed
	// when the camera worker exits.
	NewSource func() (vision.FrameSource, error)
	Predictor prediction.Params
	Motor     motor.Config
	Vision    vision.Config
	Logger    *slog.Logger
}

// Stats are live figures of the current session's workers.
type Stats struct {
	Fps            int
	StrikesAllowed uint64
	StrikesDropped uint64
}

// Manager manages worker goroutines
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu     sync.Mutex
	camera *vision.Worker
	motor  *motor.Manager
}

// NewManager creates a new worker manager. backend may be nil.
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		logger:  logger,
	}
}

// Launch starts the camera and motor workers of session. Workers of the
// previous session are waited for first, since a motion in progress cannot
// be interrupted and must not overlap with the new session's commands.
func (m *Manager) Launch(ctx context.Context, session core.Session, stop state.StopChecker) error {
	m.wg.Wait()

	src, err := m.deps.NewSource()
	if err != nil {
		return fault.Configuration(fmt.Errorf("open frame source: %w", err))
	}

	logger := m.logger.With("session", session.ID)

	cameraOpts := []vision.Option{vision.WithLogger(logger)}
	motorOpts := []motor.Option{motor.WithLogger(logger)}
	if m.backend != nil {
		cameraOpts = append(cameraOpts, vision.WithRecorder(m.backend, session.ID))
		motorOpts = append(motorOpts, motor.WithRecorder(m.backend, session.ID))
	}

	mb := m.deps.Mailboxes
	camera := vision.NewWorker(m.deps.Vision, src, prediction.New(m.deps.Predictor), mb.CameraCommands, mb.CameraEvents, cameraOpts...)
	motors := motor.NewManager(m.deps.Bus, m.deps.Motor, mb.MotorCommands, mb.MotorEvents, motorOpts...)

	m.mu.Lock()
	m.camera, m.motor = camera, motors
	m.mu.Unlock()

	m.spawn(logger, "camera", func(e message.WorkerError) { mb.CameraEvents.Send(e) }, func() error {
		defer func() {
			if err := src.Close(); err != nil {
				logger.Warn("Failed to close frame source", "error", err)
			}
		}()
		return camera.Run(ctx, stop)
	})
	m.spawn(logger, "motor", func(e message.WorkerError) { mb.MotorEvents.Send(e) }, func() error {
		return motors.Run(ctx, stop)
	})
	return nil
}

// spawn runs fn on its own goroutine. An error or panic is sent through
// report as the worker's last message.
func (m *Manager) spawn(logger *slog.Logger, name string, report func(message.WorkerError), fn func() error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Worker panicked", "worker", name, "panic", r, "stack", string(debug.Stack()))
					err = fault.Actuator(fmt.Errorf("panic: %v", r))
				}
			}()
			return fn()
		}()

		if err != nil {
			logger.Error("Worker failed", "worker", name, "error", err)
			report(message.WorkerError{Source: name, Err: err})
		}
	}()
}

// Wait blocks until every launched worker has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stats returns figures of the most recently launched workers.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	camera, motors := m.camera, m.motor
	m.mu.Unlock()

	var s Stats
	if camera != nil {
		s.Fps = camera.LastFps()
	}
	if motors != nil {
		s.StrikesAllowed, s.StrikesDropped = motors.StrikeStats()
	}
	return s
}

// GetLastWriteDuration returns the duration of the last storage flush.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastWriteDuration() time.Duration {
	if p, ok := m.backend.(storage.WriteDurationProvider); ok {
		return p.GetLastWriteDuration()
	}
	return 0
}
