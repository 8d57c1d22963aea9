package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"
)

// MultiHandler fans each record out to every sink enabled for its level.
// A failing sink does not keep the record from the others; failures are
// counted instead.
type MultiHandler struct {
	sinks    []slog.Handler
	failures *atomic.Uint64
}

// NewMultiHandler builds a fan-out over the non-nil handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	sinks := slices.DeleteFunc(slices.Clone(handlers), func(h slog.Handler) bool { return h == nil })
	return &MultiHandler{sinks: sinks, failures: new(atomic.Uint64)}
}

// Failures reports how many records a sink rejected, across all handlers
// derived from this one.
func (m *MultiHandler) Failures() uint64 {
	return m.failures.Load()
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(m.sinks, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.sinks {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			m.failures.Add(1)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	sinks := make([]slog.Handler, len(m.sinks))
	for i, h := range m.sinks {
		sinks[i] = fn(h)
	}
	return &MultiHandler{sinks: sinks, failures: m.failures}
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}
