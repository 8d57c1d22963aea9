// Package orchestrator is the Stopped/Running state machine that routes
// worker messages each tick and gates operator controls.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/foosbot/goalkeeper/internal/dispatcher"
	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/internal/state"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// Launcher starts the camera and motor workers of a new session. The
// workers must exit once stop is raised. Wait blocks until the workers of
// earlier sessions have exited and sent their last messages.
type Launcher interface {
	Launch(ctx context.Context, session core.Session, stop state.StopChecker) error
	Wait()
}

// SessionRecorder persists session boundaries.
type SessionRecorder interface {
	StartSession(s *core.Session) error
	EndSession(s *core.Session) error
}

// Config tunes the routing loop.
type Config struct {
	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	// MoveDeadband holds back MoveTo commands closer than this many
	// millimetres to the last one sent.
	MoveDeadband float64
}

// DefaultConfig returns the default loop timings.
func DefaultConfig() Config {
	return Config{
		TickInterval:      5 * time.Millisecond,
		HeartbeatInterval: time.Second,
		MoveDeadband:      10,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithSessionRecorder records session start and end.
func WithSessionRecorder(r SessionRecorder) Option {
	return func(o *Orchestrator) { o.sessions = r }
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// Orchestrator owns the system state and the current session.
type Orchestrator struct {
	cfg        Config
	ch         Channels
	launcher   Launcher
	dispatcher *dispatcher.Dispatcher
	sessions   SessionRecorder
	logger     *slog.Logger
	newID      func() string

	state state.Holder

	mu      sync.Mutex
	session core.Session
	signal  *state.Signal
	failed  bool

	lastHeartbeat time.Time
	lastMove      float64

	routed metric.Int64Counter
}

// New creates an orchestrator in the Stopped state.
func New(cfg Config, ch Channels, launcher Launcher, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:      cfg,
		ch:       ch,
		launcher: launcher,
		logger:   slog.Default(),
		newID:    uuid.NewString,
		signal:   state.NewSignal(),
		lastMove: math.NaN(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.signal.Set()

	d, err := dispatcher.New(o.logger)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	o.dispatcher = d
	o.registerControls()

	if err := o.initMetrics(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Orchestrator) initMetrics() error {
	m := meter()

	var err error
	o.routed, err = m.Int64Counter(
		"orchestrator.messages.routed",
		metric.WithDescription("Total worker messages routed"),
	)
	if err != nil {
		return fmt.Errorf("creating routed counter: %w", err)
	}

	depth, err := m.Int64ObservableGauge(
		"orchestrator.mailbox.depth",
		metric.WithDescription("Pending messages per mailbox"),
	)
	if err != nil {
		return fmt.Errorf("creating mailbox depth gauge: %w", err)
	}
	_, err = m.RegisterCallback(
		func(ctx context.Context, obs metric.Observer) error {
			for name, n := range o.ch.Depths() {
				obs.ObserveInt64(depth, int64(n), metric.WithAttributes(attribute.String("mailbox", name)))
			}
			return nil
		},
		depth,
	)
	if err != nil {
		return fmt.Errorf("registering mailbox depth callback: %w", err)
	}
	return nil
}

func (o *Orchestrator) registerControls() {
	running := o.state.Running
	d := o.dispatcher

	d.Register(message.PowerOn, o.powerOn, dispatcher.Logged())
	d.Register(message.Stop, o.stop, dispatcher.Logged())
	d.Register(message.Start, func(context.Context, dispatcher.Event) error {
		o.ch.CameraCommands.Send(message.StartTracking{})
		return nil
	}, dispatcher.Guarded(running), dispatcher.Logged())
	d.Register(message.HomeAxis1, o.motor(message.Home{Axis: core.AxisLinear}), dispatcher.Guarded(running), dispatcher.Logged())
	d.Register(message.HomeAxis2, o.motor(message.Home{Axis: core.AxisRotational}), dispatcher.Guarded(running), dispatcher.Logged())
	d.Register(message.GoToDefault, o.motor(message.MoveToDefault{}), dispatcher.Guarded(running), dispatcher.Logged())
	d.Register(message.TestLatency, o.motor(message.TestStrike{}), dispatcher.Guarded(running), dispatcher.Logged())
}

func (o *Orchestrator) motor(cmd message.MotorCommand) dispatcher.HandlerFunc {
	return func(context.Context, dispatcher.Event) error {
		o.ch.MotorCommands.Send(cmd)
		return nil
	}
}

// State returns the current system state.
func (o *Orchestrator) State() state.SystemState {
	return o.state.Load()
}

// Session returns the current or most recent session.
func (o *Orchestrator) Session() core.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// StateName returns the current system state as text.
func (o *Orchestrator) StateName() string {
	return o.state.Load().String()
}

// SessionID returns the ID of the running session, or "" when stopped.
func (o *Orchestrator) SessionID() string {
	if !o.state.Running() {
		return ""
	}
	return o.Session().ID
}

// Channels returns the mailboxes the orchestrator routes between.
func (o *Orchestrator) Channels() Channels {
	return o.ch
}

// Submit queues an operator control for the next tick.
func (o *Orchestrator) Submit(c message.Control) {
	o.ch.Controls.Send(dispatcher.Event{Control: c, Timestamp: time.Now()})
}

// Run ticks until ctx is cancelled, then stops any running session.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("Orchestrator started", "tick", o.cfg.TickInterval)
	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if o.state.Running() {
				o.halt("shutdown")
			}
			o.logger.Info("Orchestrator stopped")
			return nil
		case now := <-ticker.C:
			o.Tick(ctx, now)
		}
	}
}

// Tick drains every inbound mailbox once, in the fixed order camera,
// motor, controls.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) {
	for _, ev := range o.ch.CameraEvents.Drain() {
		o.routeCamera(ev)
	}

	motorEvents := o.ch.MotorEvents.Drain()
	for _, ev := range motorEvents {
		o.routeMotor(ev)
	}
	if len(motorEvents) == 0 && o.state.Running() && now.Sub(o.lastHeartbeat) >= o.cfg.HeartbeatInterval {
		o.ch.MotorCommands.Send(message.ReadEncoders{})
		o.lastHeartbeat = now
	}

	for _, e := range o.ch.Controls.Drain() {
		if err := o.dispatcher.Dispatch(ctx, e); err != nil {
			o.ch.Updates.Send(message.Error{Text: err.Error()})
		}
	}
}

func (o *Orchestrator) routeCamera(ev message.CameraEvent) {
	o.count("camera", ev)
	switch e := ev.(type) {
	case message.BallPos:
		o.ch.Updates.Send(e)
	case message.PredictedPos:
		o.ch.Updates.Send(e)
		if o.state.Running() && (math.IsNaN(o.lastMove) || math.Abs(e.Y-o.lastMove) >= o.cfg.MoveDeadband) {
			o.ch.MotorCommands.Send(message.MoveTo{MM: e.Y})
			o.lastMove = e.Y
		}
	case message.Strike:
		if o.state.Running() {
			o.ch.MotorCommands.Send(e)
		}
	case message.QuickStrike:
		if o.state.Running() {
			o.ch.MotorCommands.Send(e)
		}
	case message.Fps:
		o.ch.Updates.Send(e)
	case message.WorkerError:
		o.fail(e)
	}
}

func (o *Orchestrator) routeMotor(ev message.MotorEvent) {
	o.count("motor", ev)
	switch e := ev.(type) {
	case message.Encoders:
		o.ch.Updates.Send(e)
	case message.WorkerError:
		o.fail(e)
	}
}

func (o *Orchestrator) count(source string, ev any) {
	o.routed.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("type", fmt.Sprintf("%T", ev)),
	))
}

// fail stops the session on a worker fault. Only the first fault of a
// session reaches the operator; the rest are consequences of the first.
func (o *Orchestrator) fail(e message.WorkerError) {
	o.mu.Lock()
	first := !o.failed
	o.failed = true
	o.mu.Unlock()

	if !first {
		o.logger.Warn("Additional worker error after session failure", "source", e.Source, "error", e.Err)
		return
	}
	o.logger.Error("Worker failed, stopping", "source", e.Source, "error", e.Err)
	if o.state.Running() {
		o.halt("error: " + e.Error())
	}
	o.ch.Updates.Send(message.Error{Text: e.Error()})
}

func (o *Orchestrator) powerOn(ctx context.Context, _ dispatcher.Event) error {
	if o.state.Running() {
		o.logger.Info("Power on ignored, already running", "session", o.Session().ID)
		return nil
	}

	// a motion in progress at Stop may still report after it
	o.launcher.Wait()
	o.ch.Clear()
	session := core.Session{ID: o.newID(), StartedAt: time.Now().UTC()}
	signal := state.NewSignal()

	o.mu.Lock()
	o.session = session
	o.signal = signal
	o.failed = false
	o.mu.Unlock()

	o.state.Store(state.Running)
	o.lastHeartbeat = time.Time{}
	o.lastMove = math.NaN()
	o.logger.Info("Powering on", "session", session.ID)

	if err := o.launcher.Launch(ctx, session, signal); err != nil {
		o.halt("launch failed")
		return fmt.Errorf("launching workers: %w", err)
	}
	if o.sessions != nil {
		if err := o.sessions.StartSession(&session); err != nil {
			o.logger.Warn("Failed to record session start", "session", session.ID, "error", err)
		}
	}
	o.ch.Updates.Send(message.Status{State: state.Running.String(), SessionID: session.ID})
	return nil
}

func (o *Orchestrator) stop(context.Context, dispatcher.Event) error {
	if !o.state.Running() {
		o.logger.Debug("Stop while already stopped")
		return nil
	}
	o.halt("operator stop")
	return nil
}

// halt moves to Stopped, raises the session's stop signal and closes the
// session record.
func (o *Orchestrator) halt(reason string) {
	o.state.Store(state.Stopped)

	o.mu.Lock()
	o.signal.Set()
	o.session.EndedAt = time.Now().UTC()
	o.session.Reason = reason
	session := o.session
	o.mu.Unlock()

	o.logger.Info("Stopped", "session", session.ID, "reason", reason)
	if o.sessions != nil && session.ID != "" {
		if err := o.sessions.EndSession(&session); err != nil {
			o.logger.Warn("Failed to record session end", "session", session.ID, "error", err)
		}
	}
	o.ch.Updates.Send(message.Status{State: state.Stopped.String(), SessionID: session.ID})
}
