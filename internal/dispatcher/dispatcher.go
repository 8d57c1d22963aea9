// Package dispatcher routes operator controls to their handlers. Handlers
// run synchronously on the caller's goroutine so controls keep the order in
// which the orchestrator drained them.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/internal/message"
)

// Event is an operator control as received by the orchestrator.
type Event struct {
	Control   message.Control
	Timestamp time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(ctx context.Context, e Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	guard  func() bool
	logged bool
}

// Guarded rejects the event with a fault.GuardViolation unless allowed
// returns true at dispatch time.
func Guarded(allowed func() bool) Option {
	return func(c *config) {
		c.guard = allowed
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[message.Control]HandlerFunc
	logger   Logger

	processed metric.Int64Counter
	rejected  metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[message.Control]HandlerFunc),
		logger:   logger,
	}

	m := meter()

	var err error

	d.processed, err = m.Int64Counter(
		"dispatcher.controls.processed",
		metric.WithDescription("Total operator controls handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.rejected, err = m.Int64Counter(
		"dispatcher.controls.rejected",
		metric.WithDescription("Total guarded controls rejected while stopped"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.controls.failed",
		metric.WithDescription("Total controls whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given control with optional configuration.
func (d *Dispatcher) Register(c message.Control, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(c, h)

	if cfg.guard != nil {
		handler = d.withGuard(c, cfg.guard, handler)
	}

	if cfg.logged {
		handler = d.withLogging(c, handler)
	}

	d.handlers[c] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	h, ok := d.handlers[e.Control]
	if !ok {
		return fmt.Errorf("unknown control: %s", e.Control)
	}
	return h(ctx, e)
}

// HasHandler returns true if a handler is registered for the control.
func (d *Dispatcher) HasHandler(c message.Control) bool {
	_, ok := d.handlers[c]
	return ok
}

func (d *Dispatcher) withMetrics(c message.Control, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("control", c.String()))
	return func(ctx context.Context, e Event) error {
		err := h(ctx, e)
		if err != nil {
			d.failed.Add(ctx, 1, attrs)
		} else {
			d.processed.Add(ctx, 1, attrs)
		}
		return err
	}
}

func (d *Dispatcher) withGuard(c message.Control, allowed func() bool, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("control", c.String()))
	return func(ctx context.Context, e Event) error {
		if !allowed() {
			d.rejected.Add(ctx, 1, attrs)
			return &fault.GuardViolation{Command: c.String()}
		}
		return h(ctx, e)
	}
}

func (d *Dispatcher) withLogging(c message.Control, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e Event) error {
		start := time.Now()
		d.logger.Debug("handling control", "control", c.String(), "age", start.Sub(e.Timestamp))

		err := h(ctx, e)

		switch {
		case fault.IsGuardViolation(err):
			d.logger.Info("control rejected", "control", c.String(), "reason", err)
		case err != nil:
			d.logger.Error("control failed", "control", c.String(), "duration", time.Since(start), "error", err)
		default:
			d.logger.Debug("control complete", "control", c.String(), "duration", time.Since(start))
		}

		return err
	}
}
