// Package motor is the actuator worker. A Manager routes orchestrator
// commands to two sub-controllers, one per axis, that share a single
// motor-controller connection through a Bus.
package motor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/message"
	"github.com/foosbot/goalkeeper/internal/state"
	"github.com/foosbot/goalkeeper/internal/strike"
	"github.com/foosbot/goalkeeper/pkg/core"
)

// Config tunes the actuator worker.
type Config struct {
	Measurements   Measurements
	Timing         Timing
	StrikeCooldown time.Duration
}

// DefaultConfig returns the reference-table configuration.
func DefaultConfig() Config {
	return Config{
		Measurements:   DefaultMeasurements(),
		Timing:         DefaultTiming(),
		StrikeCooldown: strike.DefaultCooldown,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRecorder records strike requests.
func WithRecorder(r StrikeRecorder, sessionID string) Option {
	return func(m *Manager) {
		m.recorder = r
		m.sessionID = sessionID
	}
}

// WithClock replaces time.Now for the strike cooldown and records.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager is the actuator worker of one session.
type Manager struct {
	bus    *Bus
	cfg    Config
	in     channel.Receiver[message.MotorCommand]
	out    channel.Sender[message.MotorEvent]
	logger *slog.Logger

	recorder  StrikeRecorder
	sessionID string
	now       func() time.Time

	linear     *Linear
	rotational *Rotational
}

// NewManager creates the worker. Commands are read from in and encoder
// reports written to out.
func NewManager(bus *Bus, cfg Config, in channel.Receiver[message.MotorCommand], out channel.Sender[message.MotorEvent], opts ...Option) *Manager {
	m := &Manager{
		bus:    bus,
		cfg:    cfg,
		in:     in,
		out:    out,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("worker", "motor")
	m.linear = newLinear(bus, cfg.Measurements, cfg.Timing, m.logger)
	m.rotational = &Rotational{
		bus:       bus,
		meas:      cfg.Measurements,
		timing:    cfg.Timing,
		debouncer: strike.New(cfg.StrikeCooldown, strike.WithClock(m.now)),
		inbox:     channel.New[rotationalCommand](),
		recorder:  m.recorder,
		sessionID: m.sessionID,
		now:       m.now,
		logger:    m.logger.With("axis", core.AxisRotational.String()),
	}
	return m
}

// StrikeStats reports executed and dropped strikes.
func (m *Manager) StrikeStats() (allowed, dropped uint64) {
	return m.rotational.debouncer.Stats()
}

// Run blocks until stop is raised, ctx is cancelled or a sub-controller
// fails. A returned error is an actuator fault.
func (m *Manager) Run(ctx context.Context, stop state.StopChecker) error {
	m.logger.Info("Motor worker started")
	defer m.logger.Info("Motor worker stopped")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.linear.run(gctx, stop) })
	g.Go(func() error { return m.rotational.run(gctx, stop) })
	g.Go(func() error { return m.route(gctx, stop) })
	return g.Wait()
}

func (m *Manager) route(ctx context.Context, stop state.StopChecker) error {
	ticker := time.NewTicker(m.cfg.Timing.ManagerInterval)
	defer ticker.Stop()
	for {
		if stop.Stopped() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-stop.Done():
			return nil
		case <-ticker.C:
		}
		for _, cmd := range m.in.Drain() {
			if err := m.handle(cmd); err != nil {
				return err
			}
		}
	}
}

func (m *Manager) handle(cmd message.MotorCommand) error {
	switch c := cmd.(type) {
	case message.Home:
		if c.Axis == core.AxisLinear {
			m.linear.inbox.Send(linearHome{})
		} else {
			m.rotational.inbox.Send(rotationalHome{})
		}
	case message.MoveTo:
		m.linear.inbox.Send(linearMove{target: m.cfg.Measurements.LinearTarget(c.MM)})
	case message.Strike:
		m.rotational.inbox.Send(rotationalStrike{kind: core.StrikeFull})
	case message.QuickStrike:
		m.rotational.inbox.Send(rotationalStrike{kind: core.StrikeQuick})
	case message.MoveToDefault:
		m.rotational.inbox.Send(rotationalDefault{})
		m.linear.inbox.Send(linearDefault{})
	case message.TestStrike:
		m.rotational.inbox.Send(rotationalTestStrike{queued: m.now()})
	case message.ReadEncoders:
		vals, err := m.ReadEncoders()
		if err != nil {
			return err
		}
		m.out.Send(message.Encoders{Values: vals})
	}
	return nil
}

// ReadEncoders reads both encoders with their physical-unit conversions.
func (m *Manager) ReadEncoders() (core.EncoderValues, error) {
	lin, rot, err := m.bus.ReadEncoders()
	if err != nil {
		return core.EncoderValues{}, err
	}
	return core.EncoderValues{
		Linear:      lin,
		Rotational:  rot,
		LinearMM:    m.cfg.Measurements.EncoderToMM(lin),
		RotationDeg: m.cfg.Measurements.EncoderToDegrees(rot),
	}, nil
}
